package circulation

// Code is the machine-readable result code of an operation. It doubles as the message catalog key.
type Code string

// Success codes.
const (
	CodeNoChanges              Code = "NO_CHANGES"
	CodeCopiesAdded            Code = "COPIES_ADDED"
	CodeCopyUpdated            Code = "COPY_UPDATED"
	CodeCopiesUpdated          Code = "COPIES_UPDATED"
	CodeCopySoftDeleted        Code = "COPY_SOFT_DELETED"
	CodeCopiesSoftDeleted      Code = "COPIES_SOFT_DELETED"
	CodeCopyRestored           Code = "COPY_RESTORED"
	CodeCopiesRestored         Code = "COPIES_RESTORED"
	CodeCopyDeleted            Code = "COPY_DELETED"
	CodeCopiesDeleted          Code = "COPIES_DELETED"
	CodeInventoryRecomputed    Code = "INVENTORY_RECOMPUTED"
	CodeCardConfirmed          Code = "CARD_CONFIRMED"
	CodeCardRejected           Code = "CARD_REJECTED"
	CodeCardResent             Code = "CARD_RESENT_FOR_CONFIRMATION"
	CodeCardSuspended          Code = "CARD_SUSPENDED"
	CodeCardUnsuspended        Code = "CARD_UNSUSPENDED"
	CodeCardExtensionAllowed   Code = "CARD_EXTENSION_ALLOWED"
	CodeCardExtended           Code = "CARD_EXTENDED"
	CodeCardArchived           Code = "CARD_ARCHIVED"
	CodeCardBorrowMoreUpdated  Code = "CARD_BORROW_MORE_UPDATED"
	CodeDigitalBorrowConfirmed Code = "DIGITAL_BORROW_CONFIRMED"
	CodeDigitalBorrowExtended  Code = "DIGITAL_BORROW_EXTENDED"
	CodeDigitalBorrowActivated Code = "DIGITAL_BORROW_ACTIVATED"
)

// Warning codes, attached to a successful outcome.
const (
	CodeNotificationNotSent Code = "NOTIFICATION_NOT_SENT"
)

// Failure codes.
const (
	CodeInternalError             Code = "INTERNAL_ERROR"
	CodeConcurrencyConflict       Code = "CONCURRENCY_CONFLICT"
	CodeValidationFailed          Code = "VALIDATION_FAILED"
	CodeBatchRejected             Code = "BATCH_REJECTED"
	CodeCopyNotFound              Code = "COPY_NOT_FOUND"
	CodeCatalogItemNotFound       Code = "CATALOG_ITEM_NOT_FOUND"
	CodeCardNotFound              Code = "CARD_NOT_FOUND"
	CodePackageNotFound           Code = "PACKAGE_NOT_FOUND"
	CodeUserNotFound              Code = "USER_NOT_FOUND"
	CodeResourceNotFound          Code = "RESOURCE_NOT_FOUND"
	CodeDigitalBorrowNotFound     Code = "DIGITAL_BORROW_NOT_FOUND"
	CodePaymentNotFound           Code = "PAYMENT_NOT_FOUND"
	CodePaymentMismatch           Code = "PAYMENT_MISMATCH"
	CodePaymentTokenInvalid       Code = "PAYMENT_TOKEN_INVALID"
	CodeCopyStatusConflict        Code = "COPY_STATUS_CONFLICT"
	CodeCopyInTrash               Code = "COPY_IN_TRASH"
	CodeCopyDeletionConflict      Code = "COPY_DELETION_CONFLICT"
	CodeCopyEncumbered            Code = "COPY_ENCUMBERED"
	CodeCopyHasDependentHistory   Code = "COPY_HAS_DEPENDENT_HISTORY"
	CodeMissingPlacement          Code = "COPY_MISSING_PLACEMENT"
	CodeInventoryMissing          Code = "INVENTORY_MISSING"
	CodeCardStatusConflict        Code = "CARD_STATUS_CONFLICT"
	CodeCardNotActivated          Code = "CARD_NOT_ACTIVATED"
	CodeCardSuspendedNoExtension  Code = "CARD_SUSPENDED_NO_EXTENSION"
	CodeCardNotDueForExtension    Code = "CARD_NOT_DUE_FOR_EXTENSION"
	CodeCardAlreadyArchived       Code = "CARD_ALREADY_ARCHIVED"
	CodeCardArchiveWhileSuspended Code = "CARD_ARCHIVE_WHILE_SUSPENDED"
	CodeDigitalBorrowStatus       Code = "DIGITAL_BORROW_STATUS_CONFLICT"
	CodeDigitalBorrowTooLate      Code = "DIGITAL_BORROW_TOO_LATE_TO_EXTEND"
)

// Field rule codes used inside ValidationFailed.
const (
	CodeFieldRequired       Code = "FIELD_REQUIRED"
	CodeFieldNotInFuture    Code = "FIELD_NOT_IN_FUTURE"
	CodeFieldTooLong        Code = "FIELD_TOO_LONG"
	CodeFieldBelowMinimum   Code = "FIELD_BELOW_MINIMUM"
	CodeFieldDuplicate      Code = "FIELD_DUPLICATE"
	CodeFieldEmptySelection Code = "FIELD_EMPTY_SELECTION"
)
