package report

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Summary renders a human-readable one-paragraph digest of a Run,
// mirroring the teacher's ReportingModule.GenerateExecutiveSummary in
// spirit (a short prose overview derived from the record) but for a
// stepper run instead of a security assessment: step counts and
// stepsize magnitudes go through go-humanize instead of the teacher's
// bare fmt.Sprintf, so large step counts and very small/large h values
// read naturally in the CLI's text report.
func Summary(r *Run) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run %s: %s steps (%s accepted), order %d, tol %s, final outcome %s.\n",
		r.ID,
		humanize.Comma(int64(len(r.Steps))),
		humanize.Comma(int64(r.AcceptedSteps())),
		r.Options.Order,
		humanize.FormatFloat("#,###.###e-00", r.Options.Tol),
		r.FinalOutcome(),
	)

	if n := len(r.Steps); n > 0 {
		last := r.Steps[n-1]
		fmt.Fprintf(&b, "Landed at t = %s with step h = %s.\n",
			humanize.FormatFloat("#,###.######", last.T),
			humanize.FormatFloat("#,###.###e-00", last.H),
		)
	}

	return b.String()
}
