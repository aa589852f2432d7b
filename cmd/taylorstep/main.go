// Command taylorstep is a demo CLI exercising the library end to end:
// parsing an equation-DSL right-hand side, decomposing it, stepping it
// adaptively, and reporting the resulting run. Grounded on
// oisee-z80-optimizer's cmd/z80opt/main.go: a cobra.Command tree built
// in func main (no package-level command registry), flags bound to
// local variables via cmd.Flags().*Var, and RunE closures doing the
// actual work and returning a wrapped error instead of calling
// os.Exit directly — main calls os.Exit exactly once, with the exit
// code run returns (1 when rootCmd.Execute() fails, else 0).
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"taylorode/codegen"
	"taylorode/decompose"
	"taylorode/eqparse"
	"taylorode/report"
	"taylorode/stepper"
)

func main() {
	os.Exit(run())
}

// run builds and executes the command tree, returning a process exit
// code. Split out from main so the testscript harness in
// main_test.go can invoke it as a subcommand entry point without an
// os.Exit call tearing down the test binary itself.
func run() int {
	rootCmd := &cobra.Command{
		Use:   "taylorstep",
		Short: "Adaptive Taylor-series ODE integration from the command line",
	}

	rootCmd.AddCommand(newStepCmd(), newRunCmd(), newEmitIRCmd(), newKeplerDemoCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Printf("error: %v", err)
		return 1
	}
	return 0
}

// parseState parses a comma-separated list of floats, e.g. "1,0".
func parseState(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid state value %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// buildStepper parses eq and state and constructs a single-lane Stepper.
func buildStepper(eq, state string, opts ...stepper.Option) (*stepper.Stepper[float64], *decompose.System, error) {
	return buildBatchStepper(eq, state, 1, opts...)
}

// buildBatchStepper is buildStepper generalized to lanes independent,
// identical-start trajectories: --state is still parsed as one vector
// of length sys.NumStates and replicated across every lane, row-major
// (state[i*lanes+lane]) to match Stepper.New's expected layout.
func buildBatchStepper(eq, state string, lanes int, opts ...stepper.Option) (*stepper.Stepper[float64], *decompose.System, error) {
	rhs, stateVars, err := eqparse.Parse(eq)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing equations: %w", err)
	}
	sys, err := decompose.Decompose(rhs, stateVars)
	if err != nil {
		return nil, nil, fmt.Errorf("decomposing system: %w", err)
	}
	initial, err := parseState(state)
	if err != nil {
		return nil, nil, err
	}
	if len(initial) != sys.NumStates {
		return nil, nil, fmt.Errorf("equation has %d state variables %v, but --state supplied %d values",
			sys.NumStates, sys.StateVars, len(initial))
	}
	if lanes < 1 {
		lanes = 1
	}
	batched := make([]float64, len(initial)*lanes)
	for i, v := range initial {
		for lane := 0; lane < lanes; lane++ {
			batched[i*lanes+lane] = v
		}
	}
	allOpts := append([]stepper.Option{stepper.WithBatchSize(lanes)}, opts...)
	s, err := stepper.New[float64](sys, batched, allOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("constructing stepper: %w", err)
	}
	return s, sys, nil
}

func newStepCmd() *cobra.Command {
	var eq, state string
	var order int
	var tol float64

	cmd := &cobra.Command{
		Use:   "step",
		Short: "Take a single adaptive step and print the outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, sys, err := buildStepper(eq, state,
				stepper.WithOrder(order), stepper.WithTolerance(tol))
			if err != nil {
				return err
			}

			out := make([]stepper.StepResult, 1)
			s.Step(out)

			dst := make([]float64, sys.NumStates)
			s.State(0, dst)
			fmt.Printf("outcome=%s h=%g t=%g state=%v\n", out[0].Outcome, out[0].H, s.Time(0), dst)
			return nil
		},
	}
	cmd.Flags().StringVar(&eq, "eq", "", "equation DSL, e.g. \"dx/dt = v; dv/dt = -x;\"")
	cmd.Flags().StringVar(&state, "state", "", "comma-separated initial state, e.g. \"1,0\"")
	cmd.Flags().IntVar(&order, "order", 0, "Taylor order (0 = library default from --tol)")
	cmd.Flags().Float64Var(&tol, "tol", 1e-12, "step-acceptance tolerance")
	cmd.MarkFlagRequired("eq")
	cmd.MarkFlagRequired("state")
	return cmd
}

func newRunCmd() *cobra.Command {
	var eq, state, output, format string
	var order, lanes int
	var tol, tEnd float64

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Propagate a system to a final time and report the final step and state",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []stepper.Option{stepper.WithTolerance(tol)}
			if order > 0 {
				opts = append(opts, stepper.WithOrder(order))
			}
			// --lanes 0 (the default) means "let the hardware pick": run
			// codegen.DefaultBatchWidth() identical copies of the same
			// trajectory side by side rather than a single scalar lane,
			// since every lane here starts from the same --state.
			n := lanes
			if n <= 0 {
				n = codegen.DefaultBatchWidth()
			}
			s, sys, err := buildBatchStepper(eq, state, n, opts...)
			if err != nil {
				return err
			}

			run := report.NewRun(s.Options())
			dst := make([]float64, sys.NumStates)
			results := s.PropagateUntil(tEnd, nil)
			s.State(0, dst)
			if len(results) > 0 {
				run.Record(results[0].Outcome, results[0].H, float64(s.Time(0)), dst)
			}

			fmt.Printf("lanes=%d codegen_strategy=%s\n", s.BatchSize(), s.CodegenStrategy())
			fmt.Print(report.Summary(run))

			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				switch strings.ToLower(format) {
				case "json":
					return report.WriteJSON(f, run)
				case "csv":
					return report.WriteCSV(f, run)
				default:
					return fmt.Errorf("unknown --format %q (want json or csv)", format)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&eq, "eq", "", "equation DSL")
	cmd.Flags().StringVar(&state, "state", "", "comma-separated initial state")
	cmd.Flags().IntVar(&order, "order", 0, "Taylor order (0 = library default)")
	cmd.Flags().IntVar(&lanes, "lanes", 0, "identical trajectories to step in lockstep (0 = codegen.DefaultBatchWidth())")
	cmd.Flags().Float64Var(&tol, "tol", 1e-12, "step-acceptance tolerance")
	cmd.Flags().Float64Var(&tEnd, "tend", 1.0, "final integration time")
	cmd.Flags().StringVar(&output, "output", "", "write the run record to this file")
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or csv")
	cmd.MarkFlagRequired("eq")
	cmd.MarkFlagRequired("state")
	return cmd
}

func newEmitIRCmd() *cobra.Command {
	var eq, strategyName string
	var compact bool
	var order int

	cmd := &cobra.Command{
		Use:   "emit-ir",
		Short: "Emit the LLVM IR derivative kernels for an equation system",
		RunE: func(cmd *cobra.Command, args []string) error {
			rhs, stateVars, err := eqparse.Parse(eq)
			if err != nil {
				return fmt.Errorf("parsing equations: %w", err)
			}
			sys, err := decompose.Decompose(rhs, stateVars)
			if err != nil {
				return fmt.Errorf("decomposing system: %w", err)
			}

			// --strategy, when given, always wins. Otherwise --compact
			// flows through stepper.Options.CompactMode, same as a
			// Stepper built with stepper.WithCompactMode(true) would
			// resolve via Stepper.CodegenStrategy.
			ro := stepper.ResolveOptions(stepper.WithCompactMode(compact))

			var forced *codegen.Strategy
			switch strings.ToLower(strategyName) {
			case "":
				if ro.CompactMode {
					c := codegen.Compact
					forced = &c
				}
			case "unrolled":
				s := codegen.Unrolled
				forced = &s
			case "compact":
				s := codegen.Compact
				forced = &s
			default:
				return fmt.Errorf("unknown --strategy %q (want unrolled or compact)", strategyName)
			}
			strategy := codegen.SelectStrategy(len(sys.Defs), forced)

			m, err := codegen.EmitModule(sys, order, strategy)
			if err != nil {
				return err
			}
			fmt.Println(m.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&eq, "eq", "", "equation DSL")
	cmd.Flags().IntVar(&order, "order", 4, "highest Taylor order to emit kernels for")
	cmd.Flags().StringVar(&strategyName, "strategy", "", "unrolled, compact, or empty for the size-based default")
	cmd.Flags().BoolVar(&compact, "compact", false, "force the compact strategy via stepper.Options.CompactMode (overridden by --strategy)")
	cmd.MarkFlagRequired("eq")
	return cmd
}

// newKeplerDemoCmd integrates the planar two-body Kepler problem
// (x, y, vx, vy) under an inverse-square force, a standard
// non-trivial smoke test for a high-order Taylor integrator: the
// orbit's energy and angular momentum should stay constant across a
// full revolution.
func newKeplerDemoCmd() *cobra.Command {
	var tEnd float64
	var order int

	cmd := &cobra.Command{
		Use:   "kepler-demo",
		Short: "Integrate a planar two-body Kepler orbit and report its final state",
		RunE: func(cmd *cobra.Command, args []string) error {
			eq := "dx/dt = vx; dy/dt = vy; " +
				"dvx/dt = 0 - x * pow(x*x + y*y, -1.5); " +
				"dvy/dt = 0 - y * pow(x*x + y*y, -1.5);"
			s, sys, err := buildStepper(eq, "1,0,0,1", stepper.WithOrder(order))
			if err != nil {
				return err
			}

			run := report.NewRun(s.Options())
			results := s.PropagateUntil(tEnd, nil)
			dst := make([]float64, sys.NumStates)
			s.State(0, dst)
			if len(results) > 0 {
				run.Record(results[0].Outcome, results[0].H, float64(s.Time(0)), dst)
			}

			fmt.Print(report.Summary(run))
			fmt.Printf("final state (x,y,vx,vy) = %v\n", dst)
			return nil
		},
	}
	cmd.Flags().Float64Var(&tEnd, "tend", 6.283185307179586, "final time (default: one unit-circle orbit)")
	cmd.Flags().IntVar(&order, "order", 16, "Taylor order")
	return cmd
}
