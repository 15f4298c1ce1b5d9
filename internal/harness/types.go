package harness

// Trace event types.
const (
	EventInvocation = "invocation"
	EventCompletion = "completion"
)

// CaseSuccess is the completion case of a step that returned no error.
// Failed steps complete with their model.ErrorCode.
const CaseSuccess = "Success"

// TraceEvent is one entry of a scenario trace. Every flow step produces an
// invocation followed by its completion, sharing the same Seq.
type TraceEvent struct {
	Type   string         `json:"type"`
	Action string         `json:"action,omitempty"`
	Client string         `json:"client,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
	Case   string         `json:"case,omitempty"`
	Result map[string]any `json:"result,omitempty"`
	Seq    int64          `json:"seq"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors is empty when Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result with an empty trace.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddInvocationTrace appends the invocation of a flow step.
func (r *Result) AddInvocationTrace(action, client string, args map[string]any, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:   EventInvocation,
		Action: action,
		Client: client,
		Args:   args,
		Seq:    seq,
	})
}

// AddCompletionTrace appends the completion of a flow step.
func (r *Result) AddCompletionTrace(outputCase string, result map[string]any, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:   EventCompletion,
		Case:   outputCase,
		Result: result,
		Seq:    seq,
	})
}
