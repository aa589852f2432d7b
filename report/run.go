// Package report records and exports the history of a stepper run, the
// "Glue" layer named in §2: the options a Stepper was constructed with,
// the sequence of per-step (outcome, h, t, state) records, and a stable
// identifier. Grounded on the teacher's internal/reporting package: the
// same shape (a typed record with an ID, a mutex-guarded in-memory
// store, and JSON/CSV export methods), generalized from a
// SecurityReport's vulnerability findings to an ODE integration run's
// step history.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"taylorode/stepper"
)

// StepRecord is one accepted or rejected integration step, mirroring
// stepper.StepResult plus the time and state it produced (or failed to
// produce).
type StepRecord struct {
	Outcome stepper.Outcome `json:"outcome"`
	H       float64         `json:"h"`
	T       float64         `json:"t"`
	State   []float64       `json:"state"`
}

// Run is the complete record of one lane's trajectory through a Stepper:
// the options it was constructed with, a stable UUID (mirroring the
// teacher's SecurityReport.ID field), and the ordered step history.
type Run struct {
	ID      uuid.UUID       `json:"id"`
	Options stepper.Options `json:"options"`
	Steps   []StepRecord    `json:"steps"`
}

// NewRun starts an empty Run for the given (already-constructed)
// Stepper options, generating a fresh UUID the way
// ReportingModule.CreateReport stamps a new SecurityReport.ID.
func NewRun(opts stepper.Options) *Run {
	return &Run{
		ID:      uuid.New(),
		Options: opts,
		Steps:   make([]StepRecord, 0),
	}
}

// Record appends one step's outcome to the run.
func (r *Run) Record(outcome stepper.Outcome, h, t float64, state []float64) {
	stateCopy := make([]float64, len(state))
	copy(stateCopy, state)
	r.Steps = append(r.Steps, StepRecord{Outcome: outcome, H: h, T: t, State: stateCopy})
}

// FinalOutcome reports the last recorded step's outcome, or
// stepper.Success for a run with no recorded steps yet.
func (r *Run) FinalOutcome() stepper.Outcome {
	if len(r.Steps) == 0 {
		return stepper.Success
	}
	return r.Steps[len(r.Steps)-1].Outcome
}

// AcceptedSteps counts steps recorded with a Success outcome.
func (r *Run) AcceptedSteps() int {
	n := 0
	for _, s := range r.Steps {
		if s.Outcome == stepper.Success {
			n++
		}
	}
	return n
}

// Store is a thread-safe, in-memory collection of Runs, keyed by ID —
// the same sync.RWMutex-guarded map-of-records shape as the teacher's
// ReportingModule.Reports, minus the template/compliance machinery this
// domain has no use for.
type Store struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*Run
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{runs: make(map[uuid.UUID]*Run)}
}

// Add registers a Run in the store.
func (s *Store) Add(r *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.ID] = r
}

// Get looks up a Run by ID.
func (s *Store) Get(id uuid.UUID) (*Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	return r, ok
}

// Delete removes a Run from the store.
func (s *Store) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; !ok {
		return fmt.Errorf("run not found: %s", id)
	}
	delete(s.runs, id)
	return nil
}

// WriteJSON streams r as indented JSON, mirroring
// ReportingModule.exportJSON/StreamReport.
func WriteJSON(w io.Writer, r *Run) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteCSV streams r's step history as CSV, one row per step, mirroring
// ReportingModule.exportCSV's header-then-rows shape. The state column
// holds a space-separated vector since CSV has no native nested field.
func WriteCSV(w io.Writer, r *Run) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"outcome", "h", "t", "state"}); err != nil {
		return err
	}
	for _, step := range r.Steps {
		if err := cw.Write([]string{
			step.Outcome.String(),
			fmt.Sprintf("%g", step.H),
			fmt.Sprintf("%g", step.T),
			formatState(step.State),
		}); err != nil {
			return err
		}
	}
	return nil
}

func formatState(state []float64) string {
	out := ""
	for i, v := range state {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%g", v)
	}
	return out
}
