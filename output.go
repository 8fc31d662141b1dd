package flow

import "errors"

var (
	// ErrBlockNotFound is returned when an Engine is asked to run, or reaches,
	// a node id for which no Block was built.
	ErrBlockNotFound = errors.New("Block not found")

	// ErrExecutionTimeout is returned alongside the timeout Output once the
	// invocation deadline has passed.
	ErrExecutionTimeout = errors.New("execution timeout exceeded")
)

// Output is the result of one block execution. The Engine uses it to choose
// the next step.
type Output struct {
	Successful     bool   `json:"successful"`
	ContinueIfFail bool   `json:"continueIfFail"`
	Output         any    `json:"output,omitempty"`
	Next           string `json:"next,omitempty"`
	Error          string `json:"error,omitempty"`
}

// IsFatal reports whether normal flow cannot proceed from this output.
func (o Output) IsFatal() bool {
	return !o.Successful && !o.ContinueIfFail
}

// Continue is a successful output handing out to next.
func Continue(next string, out any) Output {
	return Output{Successful: true, Next: next, Output: out}
}

// Branch is a branch outcome: a false result is not an error.
func Branch(ok bool, next string, out any) Output {
	return Output{Successful: ok, ContinueIfFail: true, Next: next, Output: out}
}

// Fatal is a non-continuable failure.
func Fatal(msg string) Output {
	return Output{Error: msg}
}

// FatalWith is a non-continuable failure carrying a payload.
func FatalWith(msg string, out any) Output {
	return Output{Error: msg, Output: out}
}

// TimeoutOutput is the output returned when the invocation deadline passes.
func TimeoutOutput() Output {
	return Fatal(ErrExecutionTimeout.Error())
}

// HTTPResponse is the payload of a terminal response block. The host maps it
// onto its own transport.
type HTTPResponse struct {
	HTTPCode int `json:"httpCode"`
	Body     any `json:"body"`
}
