package shell

import (
	"time"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
)

// HandlerResult is what an engine operation reports besides its error:
// the business outcome plus how many attempts the optimistic retry needed.
type HandlerResult struct {
	Outcome circulation.Outcome

	// Idempotent is true when the current state already matched the request and nothing was written.
	Idempotent bool

	// RowsAffected is the number of rows the committed ChangeSet wrote.
	RowsAffected int64

	RetryAttempts    int
	TotalRetryDelay  time.Duration
	LastErrorType    string
	RetriesExhausted bool
}

// NewSuccessResult creates a HandlerResult for an operation that committed changes.
func NewSuccessResult(outcome circulation.Outcome, rowsAffected int64, retryMetrics RetryMetrics) HandlerResult {
	result := newResult(retryMetrics)
	result.Outcome = outcome
	result.RowsAffected = rowsAffected

	return result
}

// NewIdempotentResult creates a HandlerResult for an operation that had nothing to change.
func NewIdempotentResult(outcome circulation.Outcome, retryMetrics RetryMetrics) HandlerResult {
	result := newResult(retryMetrics)
	result.Outcome = outcome
	result.Idempotent = true

	return result
}

// NewErrorResult creates a HandlerResult for a failed operation, keeping the retry metadata.
func NewErrorResult(retryMetrics RetryMetrics) HandlerResult {
	return newResult(retryMetrics)
}

func newResult(retryMetrics RetryMetrics) HandlerResult {
	return HandlerResult{
		RetryAttempts:    retryMetrics.Attempts,
		TotalRetryDelay:  retryMetrics.TotalDelay,
		LastErrorType:    retryMetrics.LastErrorType,
		RetriesExhausted: retryMetrics.RetriesExhausted,
	}
}

// Respond renders the result, or err if there is one, as a user-visible response.
func (r HandlerResult) Respond(messages circulation.Messages, locale circulation.Locale, err error) circulation.Response {
	return circulation.Respond(messages, locale, r.Outcome, err)
}
