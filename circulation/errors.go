package circulation

import "errors"

// Error kinds. Business outcomes are reported as *Failure values that match one of these via errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrConflictingState = errors.New("conflicting state")
	ErrEncumbered       = errors.New("encumbered by dependent records")
	ErrMissingPlacement = errors.New("missing shelf placement")
	ErrInventoryMissing = errors.New("inventory record missing")
	ErrPaymentMismatch  = errors.New("payment mismatch")
)

// Infrastructure errors.
var (
	ErrConcurrencyConflict   = errors.New("concurrency error, no rows were affected")
	ErrInventoryInvariant    = errors.New("inventory invariant violated")
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")
	ErrQueryingFailed        = errors.New("querying failed")
	ErrScanningDBRowFailed   = errors.New("scanning db row failed")
	ErrBuildingQueryFailed   = errors.New("building query failed")
	ErrApplyingChangesFailed = errors.New("applying changes failed")
	ErrBeginningTxFailed     = errors.New("beginning transaction failed")
	ErrCommittingTxFailed    = errors.New("committing transaction failed")
	ErrGettingRowsAffected   = errors.New("getting rows affected failed")
	ErrMarshalingPayload     = errors.New("marshaling payload failed")
	ErrInvalidBusinessTZ     = errors.New("invalid business timezone")
	ErrInvalidBorrowSettings = errors.New("invalid borrow settings")
	ErrNotificationFailed    = errors.New("notification failed")
	ErrUserDirectoryFailed   = errors.New("user directory call failed")
)
