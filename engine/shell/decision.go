package shell

import "github.com/AntonStoeckl/circulation-consistency-go/circulation"

// Decision is the outcome of a pure decide function.
//
// Construct it only with IdempotentDecision, SuccessDecision, or ErrorDecision.
type Decision struct {
	outcome       string
	Changes       *circulation.ChangeSet
	Result        circulation.Outcome
	Notifications []circulation.Notification
	Err           error
}

const (
	idempotentOutcome = "idempotent"
	successOutcome    = "success"
	errorOutcome      = "error"
)

// IdempotentDecision reports that the requested state already holds.
func IdempotentDecision(result circulation.Outcome) Decision {
	return Decision{outcome: idempotentOutcome, Result: result}
}

// SuccessDecision carries the changes to apply and the notifications to send once they are committed.
func SuccessDecision(
	changes *circulation.ChangeSet,
	result circulation.Outcome,
	notifications ...circulation.Notification,
) Decision {
	return Decision{
		outcome:       successOutcome,
		Changes:       changes,
		Result:        result,
		Notifications: notifications,
	}
}

// ErrorDecision reports a business rule violation. Nothing is written.
func ErrorDecision(err error) Decision {
	return Decision{outcome: errorOutcome, Err: err}
}

// HasChangesToApply reports whether there is anything to commit.
func (d Decision) HasChangesToApply() bool {
	return d.outcome == successOutcome && !d.Changes.IsEmpty()
}

// IsIdempotent reports whether nothing needed to change.
func (d Decision) IsIdempotent() bool {
	return d.outcome == idempotentOutcome || (d.outcome == successOutcome && d.Changes.IsEmpty())
}

// HasError returns the business error, if any.
func (d Decision) HasError() error {
	if d.outcome == errorOutcome {
		return d.Err
	}

	return nil
}
