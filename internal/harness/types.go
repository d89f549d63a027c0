package harness

import (
	"github.com/roach88/milestone/internal/generator"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation, principle and assertion held.
	Pass bool `json:"pass"`

	Steps  []StepResult `json:"steps"`
	Errors []string     `json:"errors,omitempty"`
}

// StepResult records what one step did.
type StepResult struct {
	Name    string  `json:"name"`
	Batches []Batch `json:"batches"`

	// Error is the DataError code, or the error text for other failures.
	Error string `json:"error,omitempty"`
}

// Batch is the deterministic part of an ingestor.Result.
type Batch struct {
	Status  string                    `json:"status"`
	BatchID int64                     `json:"batch_id"`
	Stats   map[string]int64          `json:"stats"`
	Split   *generator.DataSplitRange `json:"split,omitempty"`
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
