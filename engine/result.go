package engine

import "fmt"

// Status is the outcome of a test.
type Status int

const (
	// Passed tests returned without reporting errors.
	Passed Status = iota
	// Failed tests reported errors, panicked, could not be started or ran
	// past their frame budget.
	Failed
	// Aborted tests were stopped by Engine.Stop before completing, or never
	// started because of it.
	Aborted
)

func (s Status) String() string {
	switch s {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is the record of a completed test.
type Result struct {
	Name   string
	Status Status
	// Frames is the number of host frames the test ran for.
	Frames int
	Errors []string
}
