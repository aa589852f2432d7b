package taylor

import "fmt"

// DomainError reports a per-lane arithmetic domain violation discovered
// while computing a coefficient: division by a zero operand, log of a
// non-positive value, or sqrt of a negative value. The engine in this
// package does not construct DomainError values: it records each fault
// as a reason string in a FaultMask, and the stepper reports a faulted
// lane's outcome as NaNDetected rather than returning an error, per the
// error-handling design's distinction between construction-time
// errors (odeerr.Error) and runtime per-lane outcomes.
type DomainError struct {
	DefIndex int
	Lane     int
	Reason   string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("domain violation computing u_%d, lane %d: %s", e.DefIndex, e.Lane, e.Reason)
}

// FaultMask tracks, per lane, whether a domain violation has already
// been observed during the current step. Once a lane faults, the
// engine stops updating its coefficients (they stay at their
// last-good value, never NaN/Inf) but keeps computing the other lanes,
// matching the requirement that a batch's lanes fault independently.
type FaultMask struct {
	faulted []bool
	reason  []string
}

// NewFaultMask allocates a clear mask for batch width b.
func NewFaultMask(b int) *FaultMask {
	return &FaultMask{faulted: make([]bool, b), reason: make([]string, b)}
}

// Faulted reports whether lane has already faulted this step.
func (m *FaultMask) Faulted(lane int) bool { return m.faulted[lane] }

// Fault marks lane as faulted with the given reason, if it is not
// already faulted (the first fault per lane wins).
func (m *FaultMask) Fault(lane int, reason string) {
	if !m.faulted[lane] {
		m.faulted[lane] = true
		m.reason[lane] = reason
	}
}

// Reason returns the recorded reason for lane's fault, or "" if clean.
func (m *FaultMask) Reason(lane int) string { return m.reason[lane] }

// AnyFaulted reports whether at least one lane has faulted.
func (m *FaultMask) AnyFaulted() bool {
	for _, f := range m.faulted {
		if f {
			return true
		}
	}
	return false
}

// Clear resets the mask for reuse on the next step.
func (m *FaultMask) Clear() {
	for i := range m.faulted {
		m.faulted[i] = false
		m.reason[i] = ""
	}
}
