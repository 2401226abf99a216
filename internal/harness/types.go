package harness

import "github.com/roach88/stochos/internal/ir"

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when every assertion held and the replay matched.
	Pass bool `json:"pass"`

	Events     []ir.Event `json:"events"`
	Evicted    []string   `json:"evicted"`
	StreamHash string     `json:"stream_hash"`

	// RenderID is the id the render was stored under.
	RenderID string `json:"render_id"`

	// Errors contains assertion and replay failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Events:  []ir.Event{},
		Evicted: []string{},
		Errors:  []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
