package harness

// StepResult is what one scenario step observed.
type StepResult struct {
	Index       int      `json:"index"`
	Noop        bool     `json:"noop"`
	Generation  int64    `json:"generation,omitempty"`
	CycleToken  string   `json:"cycle_token,omitempty"`
	Status      string   `json:"status,omitempty"`
	Rebuilt     []string `json:"rebuilt"`
	Reused      []string `json:"reused"`
	Failed      []string `json:"failed"`
	Skipped     []string `json:"skipped"`
	RenderOrder []string `json:"render_order"`
	Operations  []string `json:"operations"`
	Log         []string `json:"log"`
	Error       string   `json:"error,omitempty"`
}

func newStepResult(index int) StepResult {
	return StepResult{
		Index:       index,
		Rebuilt:     []string{},
		Reused:      []string{},
		Failed:      []string{},
		Skipped:     []string{},
		RenderOrder: []string{},
		Operations:  []string{},
		Log:         []string{},
	}
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every step matched its expect clause.
	Pass bool `json:"pass"`

	// Steps holds one entry per scenario step, in order.
	Steps []StepResult `json:"steps"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
