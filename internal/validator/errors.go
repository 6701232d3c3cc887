package validator

import "fmt"

// FatalError means the validator is unreachable or unhealthy. It ends the
// run; no turn-level recovery applies.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("validator %s: %v", e.Op, e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

// SubmitError is a turn-scoped rejection: the validator answered and
// refused the submitted transaction, typically because the transaction
// itself is malformed or unfundable.
type SubmitError struct {
	Code    int
	Message string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submission rejected (code %d): %s", e.Code, e.Message)
}
