package digitalborrow

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
	"github.com/AntonStoeckl/circulation-consistency-go/engine/shell"
)

const (
	borrowEntity = "digital borrow"
	dateLayout   = "2006-01-02"
)

// ConfirmCommand asks for a new digital borrow paid by the transaction TransactionCode.
// Date is the day the payment was made, it is only checked when set.
type ConfirmCommand struct {
	UserID          uuid.UUID
	ResourceID      uuid.UUID
	TransactionCode string
	Token           string
	Date            time.Time
}

// ConfirmSnapshot is what DecideConfirm needs to know. Nil pointers mean the row does not exist.
type ConfirmSnapshot struct {
	Existing    *circulation.DigitalBorrow
	UserExists  bool
	Resource    *circulation.DigitalResource
	Transaction *circulation.Transaction
}

// DecideConfirm creates the borrow. Text resources are readable at once, audio resources start Prepared
// until watermarking is done. A transaction code that already created a borrow is not used twice.
func DecideConfirm(
	command ConfirmCommand,
	snapshot ConfirmSnapshot,
	now time.Time,
	newID func() uuid.UUID,
	locale circulation.Locale,
) shell.Decision {
	if command.TransactionCode == "" {
		return shell.ErrorDecision(fieldError("transactionCode", circulation.CodeFieldRequired))
	}

	if snapshot.Existing != nil {
		if snapshot.Existing.UserID != command.UserID || snapshot.Existing.ResourceID != command.ResourceID {
			return shell.ErrorDecision(circulation.PaymentMismatch(
				circulation.CodePaymentMismatch,
				fmt.Sprintf("transaction %s already paid for digital borrow %s", command.TransactionCode, snapshot.Existing.ID),
			))
		}

		return shell.IdempotentDecision(circulation.Outcome{Code: circulation.CodeDigitalBorrowConfirmed})
	}

	if !snapshot.UserExists {
		return shell.ErrorDecision(circulation.NotFound(circulation.CodeUserNotFound, "user", command.UserID))
	}

	if snapshot.Resource == nil {
		return shell.ErrorDecision(circulation.NotFound(circulation.CodeResourceNotFound, "resource", command.ResourceID))
	}

	tx, err := verify(snapshot.Transaction, circulation.PaymentQuery{
		Code:  command.TransactionCode,
		Type:  circulation.TransactionDigitalBorrow,
		Token: command.Token,
		Date:  command.Date,
	}, command.UserID, command.ResourceID)
	if err != nil {
		return shell.ErrorDecision(err)
	}

	status := circulation.DigitalBorrowActive
	if snapshot.Resource.Type.NeedsPreparation() {
		status = circulation.DigitalBorrowPrepared
	}

	borrow := circulation.DigitalBorrow{
		ID:              newID(),
		UserID:          command.UserID,
		ResourceID:      snapshot.Resource.ID,
		ResourceType:    snapshot.Resource.Type,
		Status:          status,
		BorrowDate:      now,
		ExpiryDate:      now.AddDate(0, 0, tx.BorrowDays),
		TransactionCode: tx.Code,
	}

	changes := circulation.NewChangeSet()
	changes.AddDigitalBorrow(borrow)

	return shell.SuccessDecision(
		changes,
		circulation.Outcome{Code: circulation.CodeDigitalBorrowConfirmed},
		notification(circulation.NotifyDigitalBorrowConfirmed, borrow, snapshot.Resource.Title, now, locale),
	)
}

// ExtensionCommand asks to extend a digital borrow with the transaction TransactionCode.
type ExtensionCommand struct {
	DigitalBorrowID uuid.UUID
	TransactionCode string
	Token           string
	Date            time.Time
}

// ExtensionSnapshot is what DecideExtension needs to know. Nil pointers mean the row does not exist.
type ExtensionSnapshot struct {
	Borrow      *circulation.DigitalBorrow
	Existing    *circulation.ExtensionHistory
	Resource    *circulation.DigitalResource
	Transaction *circulation.Transaction
}

// DecideExtension prolongs a borrow by the paid number of days. A borrow that is still running is extended
// on top of its expiry date, one that has run out within the grace period is extended from now.
func DecideExtension(
	command ExtensionCommand,
	snapshot ExtensionSnapshot,
	now time.Time,
	settings circulation.BorrowSettings,
	newID func() uuid.UUID,
	locale circulation.Locale,
) shell.Decision {
	if command.TransactionCode == "" {
		return shell.ErrorDecision(fieldError("transactionCode", circulation.CodeFieldRequired))
	}

	if snapshot.Borrow == nil {
		return shell.ErrorDecision(circulation.NotFound(circulation.CodeDigitalBorrowNotFound, borrowEntity, command.DigitalBorrowID))
	}

	borrow := *snapshot.Borrow

	if snapshot.Existing != nil {
		if snapshot.Existing.DigitalBorrowID != borrow.ID {
			return shell.ErrorDecision(circulation.PaymentMismatch(
				circulation.CodePaymentMismatch,
				fmt.Sprintf("transaction %s already paid for digital borrow %s", command.TransactionCode, snapshot.Existing.DigitalBorrowID),
			))
		}

		return shell.IdempotentDecision(circulation.Outcome{Code: circulation.CodeDigitalBorrowExtended})
	}

	if snapshot.Resource == nil {
		return shell.ErrorDecision(circulation.NotFound(circulation.CodeResourceNotFound, "resource", borrow.ResourceID))
	}

	lastChance := borrow.ExpiryDate.In(now.Location()).AddDate(0, 0, settings.DigitalExtensionGraceInDays)
	if now.After(lastChance) {
		return shell.ErrorDecision(circulation.Conflict(
			circulation.CodeDigitalBorrowTooLate,
			fmt.Sprintf("digital borrow %s expired on %s", borrow.ID, borrow.ExpiryDate.Format(dateLayout)),
		))
	}

	tx, err := verify(snapshot.Transaction, circulation.PaymentQuery{
		Code:  command.TransactionCode,
		Type:  circulation.TransactionDigitalExtension,
		Token: command.Token,
		Date:  command.Date,
	}, borrow.UserID, borrow.ID, borrow.ResourceID)
	if err != nil {
		return shell.ErrorDecision(err)
	}

	base := borrow.ExpiryDate.In(now.Location())
	if !base.After(now) {
		base = now
	}

	next := borrow
	next.ExpiryDate = base.AddDate(0, 0, tx.BorrowDays)
	next.ExtensionCount++
	next.IsExtended = true

	changes := circulation.NewChangeSet()
	changes.UpdateDigitalBorrow(next)
	changes.AddExtension(circulation.ExtensionHistory{
		ID:                 newID(),
		DigitalBorrowID:    borrow.ID,
		TransactionCode:    tx.Code,
		ExtendedAt:         now,
		PreviousExpiryDate: borrow.ExpiryDate,
		NewExpiryDate:      next.ExpiryDate,
		ExtensionNumber:    next.ExtensionCount,
	})

	return shell.SuccessDecision(
		changes,
		circulation.Outcome{Code: circulation.CodeDigitalBorrowExtended},
		notification(circulation.NotifyDigitalBorrowExtended, next, snapshot.Resource.Title, now, locale),
	)
}

// DecideActivate makes a Prepared borrow readable once its watermarked file is ready.
func DecideActivate(borrow circulation.DigitalBorrow) shell.Decision {
	outcome := circulation.Outcome{Code: circulation.CodeDigitalBorrowActivated}

	switch borrow.Status {
	case circulation.DigitalBorrowActive:
		return shell.IdempotentDecision(outcome)

	case circulation.DigitalBorrowPrepared:
		next := borrow
		next.Status = circulation.DigitalBorrowActive

		changes := circulation.NewChangeSet()
		changes.UpdateDigitalBorrow(next)

		return shell.SuccessDecision(changes, outcome)

	default:
		return shell.ErrorDecision(circulation.ConflictingState(
			circulation.CodeDigitalBorrowStatus, borrowEntity, borrow.ID, borrow.Status, circulation.DigitalBorrowActive,
		))
	}
}

// verify checks the paid transaction against the operation.
// A transaction that names a reference must name one of references.
func verify(
	tx *circulation.Transaction,
	query circulation.PaymentQuery,
	userID uuid.UUID,
	references ...uuid.UUID,
) (circulation.Transaction, error) {
	if tx == nil {
		return circulation.Transaction{}, circulation.NotFound(circulation.CodePaymentNotFound, "transaction", query.Code)
	}

	if err := circulation.VerifyPayment(*tx, query, userID); err != nil {
		return circulation.Transaction{}, err
	}

	if tx.ReferenceID != uuid.Nil && !slices.Contains(references, tx.ReferenceID) {
		return circulation.Transaction{}, circulation.PaymentMismatch(
			circulation.CodePaymentMismatch,
			fmt.Sprintf("transaction %s was paid for %s", tx.Code, tx.ReferenceID),
		)
	}

	if tx.BorrowDays < 1 {
		return circulation.Transaction{}, circulation.PaymentMismatch(
			circulation.CodePaymentMismatch,
			fmt.Sprintf("transaction %s carries no borrow duration", tx.Code),
		)
	}

	return *tx, nil
}

func fieldError(field string, code circulation.Code) error {
	fields := circulation.ValidationErrors{}
	fields.Add(field, code)

	return fields.Err()
}

func notification(
	kind circulation.NotificationKind,
	borrow circulation.DigitalBorrow,
	title string,
	now time.Time,
	locale circulation.Locale,
) circulation.Notification {
	return circulation.Notification{
		Kind:   kind,
		UserID: borrow.UserID,
		Locale: locale.String(),
		Params: map[string]string{
			"digital_borrow_id": borrow.ID.String(),
			"title":             title,
			"expiry_date":       borrow.ExpiryDate.Format(dateLayout),
		},
		OccurredAt: now,
	}
}
