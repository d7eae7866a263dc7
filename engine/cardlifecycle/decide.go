package cardlifecycle

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
	"github.com/AntonStoeckl/circulation-consistency-go/engine/shell"
)

const (
	maxReasonLength = 250
	cardEntity      = "library card"
	dateLayout      = "2006-01-02"
)

// DecideConfirm activates a Pending or Rejected card once its issuance payment is verified.
// tx is nil when no Paid transaction exists for the card's transaction code.
func DecideConfirm(
	card circulation.LibraryCard,
	pkg circulation.Package,
	tx *circulation.Transaction,
	now time.Time,
	locale circulation.Locale,
) shell.Decision {
	if card.Status != circulation.CardPending && card.Status != circulation.CardRejected {
		return shell.ErrorDecision(statusConflict(card, circulation.CardActive))
	}

	if tx == nil {
		return shell.ErrorDecision(circulation.NotFound(circulation.CodePaymentNotFound, "transaction", card.TransactionCode))
	}

	query := circulation.PaymentQuery{Code: card.TransactionCode, Type: circulation.TransactionCardIssuance}
	if err := circulation.VerifyPayment(*tx, query, userOf(card)); err != nil {
		return shell.ErrorDecision(err)
	}

	next := card
	next.Status = circulation.CardActive
	next.ExpiryDate = now.AddDate(0, pkg.DurationInMonths, 0)
	next.RejectReason = ""

	changes := circulation.NewChangeSet()
	changes.UpdateCard(next)

	return shell.SuccessDecision(
		changes,
		circulation.Outcome{Code: circulation.CodeCardConfirmed},
		notification(circulation.NotifyCardActivated, next, now, locale, map[string]string{
			"expiry_date": next.ExpiryDate.Format(dateLayout),
		}),
	)
}

// DecideReject rejects a Pending card and keeps the reason.
func DecideReject(card circulation.LibraryCard, reason string, now time.Time, locale circulation.Locale) shell.Decision {
	fields := circulation.ValidationErrors{}
	validateReason(fields, reason, true)

	if err := fields.Err(); err != nil {
		return shell.ErrorDecision(err)
	}

	if card.Status != circulation.CardPending {
		return shell.ErrorDecision(statusConflict(card, circulation.CardRejected))
	}

	next := card
	next.Status = circulation.CardRejected
	next.RejectReason = reason

	changes := circulation.NewChangeSet()
	changes.UpdateCard(next)

	return shell.SuccessDecision(
		changes,
		circulation.Outcome{Code: circulation.CodeCardRejected},
		notification(circulation.NotifyCardRejected, next, now, locale, map[string]string{"reason": reason}),
	)
}

// DecideResend puts a Rejected card back to Pending so it can be confirmed again.
func DecideResend(card circulation.LibraryCard) shell.Decision {
	if card.Status != circulation.CardRejected {
		return shell.ErrorDecision(statusConflict(card, circulation.CardPending))
	}

	next := card
	next.Status = circulation.CardPending
	next.RejectReason = ""

	changes := circulation.NewChangeSet()
	changes.UpdateCard(next)

	return shell.SuccessDecision(changes, circulation.Outcome{Code: circulation.CodeCardResent})
}

// DecideSuspend suspends a card until endDate.
// The input is validated before the status is looked at.
func DecideSuspend(card circulation.LibraryCard, endDate time.Time, reason string, now time.Time) shell.Decision {
	fields := circulation.ValidationErrors{}

	switch {
	case endDate.IsZero():
		fields.Add("endDate", circulation.CodeFieldRequired)
	case !endDate.After(now):
		fields.Add("endDate", circulation.CodeFieldNotInFuture)
	}

	validateReason(fields, reason, false)

	if err := fields.Err(); err != nil {
		return shell.ErrorDecision(err)
	}

	switch card.Status {
	case circulation.CardPending, circulation.CardRejected, circulation.CardSuspended:
		return shell.ErrorDecision(statusConflict(card, circulation.CardSuspended))
	}

	next := card
	next.Status = circulation.CardSuspended
	next.SuspensionEndDate = &endDate
	next.SuspensionReason = reason

	changes := circulation.NewChangeSet()
	changes.UpdateCard(next)

	return shell.SuccessDecision(changes, circulation.Outcome{Code: circulation.CodeCardSuspended})
}

// DecideUnsuspend lifts a suspension by hand, before its end date if need be.
func DecideUnsuspend(card circulation.LibraryCard, now time.Time) shell.Decision {
	if card.IsArchived {
		return shell.ErrorDecision(circulation.Conflict(
			circulation.CodeCardAlreadyArchived, fmt.Sprintf("library card %s is archived", card.ID),
		))
	}

	if card.Status != circulation.CardSuspended {
		return shell.ErrorDecision(statusConflict(card, circulation.CardActive))
	}

	changes := circulation.NewChangeSet()
	changes.UpdateCard(unsuspend(card, now))

	return shell.SuccessDecision(changes, circulation.Outcome{Code: circulation.CodeCardUnsuspended})
}

// CheckCardExtension returns nil if the card may be extended at now.
// Expired cards always may, Active cards only within the renewal window before their expiry.
func CheckCardExtension(card circulation.LibraryCard, now time.Time, settings circulation.BorrowSettings) error {
	switch card.Status {
	case circulation.CardExpired:
		return nil

	case circulation.CardPending, circulation.CardRejected:
		return circulation.Conflict(
			circulation.CodeCardNotActivated, fmt.Sprintf("library card %s is %s", card.ID, card.Status),
		)

	case circulation.CardSuspended:
		return circulation.Conflict(
			circulation.CodeCardSuspendedNoExtension, fmt.Sprintf("library card %s is suspended", card.ID),
		)

	case circulation.CardActive:
		windowOpens := card.ExpiryDate.In(now.Location()).AddDate(0, 0, -settings.CardRenewalWindowInDays)
		if now.Before(windowOpens) {
			return circulation.Conflict(
				circulation.CodeCardNotDueForExtension,
				fmt.Sprintf("library card %s can be extended from %s", card.ID, windowOpens.Format(dateLayout)),
				windowOpens.Format(dateLayout),
			)
		}

		return nil

	default:
		return statusConflict(card, circulation.CardActive)
	}
}

// ExtendCommand describes a paid card extension.
// A zero PackageID keeps the card's package. TransactionCode and Token are only needed for online payments.
type ExtendCommand struct {
	CardID          uuid.UUID
	PackageID       uuid.UUID
	Method          circulation.PaymentMethod
	TransactionCode string
	Token           string
}

// DecideExtend extends the card by the package duration, counted from its current expiry
// or from now, whichever is later. Cash payments are recorded as a Paid transaction in the same commit.
// Replaying the transaction that was applied last is a no-op.
func DecideExtend(
	command ExtendCommand,
	card circulation.LibraryCard,
	pkg circulation.Package,
	tx *circulation.Transaction,
	now time.Time,
	settings circulation.BorrowSettings,
	locale circulation.Locale,
) shell.Decision {
	if command.Method == circulation.PaymentOnline && command.TransactionCode != "" &&
		card.ExtensionCount > 0 && card.TransactionCode == command.TransactionCode &&
		card.Status == circulation.CardActive {
		return shell.IdempotentDecision(circulation.Outcome{Code: circulation.CodeCardExtended})
	}

	if err := CheckCardExtension(card, now, settings); err != nil {
		return shell.ErrorDecision(err)
	}

	changes := circulation.NewChangeSet()

	var paid circulation.Transaction

	switch command.Method {
	case circulation.PaymentOnline:
		if command.TransactionCode == "" {
			return shell.ErrorDecision(fieldError("transactionCode", circulation.CodeFieldRequired))
		}

		if tx == nil {
			return shell.ErrorDecision(circulation.NotFound(circulation.CodePaymentNotFound, "transaction", command.TransactionCode))
		}

		query := circulation.PaymentQuery{
			Code:  command.TransactionCode,
			Type:  circulation.TransactionCardExtension,
			Token: command.Token,
		}
		if err := circulation.VerifyPayment(*tx, query, userOf(card)); err != nil {
			return shell.ErrorDecision(err)
		}

		paid = *tx

	case circulation.PaymentCash:
		paid = circulation.Transaction{
			Code:        cashTransactionCode(card),
			Type:        circulation.TransactionCardExtension,
			Status:      circulation.TransactionPaid,
			Method:      circulation.PaymentCash,
			UserID:      userOf(card),
			ReferenceID: card.ID,
			Amount:      pkg.Price,
			CreatedAt:   now,
		}
		changes.AddTransaction(paid)

	default:
		return shell.ErrorDecision(fieldError("method", circulation.CodeFieldRequired))
	}

	// Month arithmetic depends on the location, so it always runs in the business timezone of now.
	base := card.ExpiryDate.In(now.Location())
	if base.Before(now) {
		base = now
	}

	next := card
	next.Status = circulation.CardActive
	next.PackageID = pkg.ID
	next.ExpiryDate = base.AddDate(0, pkg.DurationInMonths, 0)
	next.ExtensionCount++
	next.TransactionCode = paid.Code
	changes.UpdateCard(next)

	return shell.SuccessDecision(
		changes,
		circulation.Outcome{Code: circulation.CodeCardExtended},
		notification(circulation.NotifyCardExtended, next, now, locale, map[string]string{
			"expiry_date": next.ExpiryDate.Format(dateLayout),
		}),
	)
}

// DecideArchive returns the card to the pool: it is detached from userID, marked archived, and forced Suspended.
func DecideArchive(card circulation.LibraryCard, userID uuid.UUID, reason string) shell.Decision {
	fields := circulation.ValidationErrors{}
	validateReason(fields, reason, false)

	if err := fields.Err(); err != nil {
		return shell.ErrorDecision(err)
	}

	if card.IsArchived {
		return shell.ErrorDecision(circulation.Conflict(
			circulation.CodeCardAlreadyArchived, fmt.Sprintf("library card %s is archived", card.ID),
		))
	}

	if card.Status == circulation.CardSuspended {
		return shell.ErrorDecision(circulation.Conflict(
			circulation.CodeCardArchiveWhileSuspended, fmt.Sprintf("library card %s is suspended", card.ID),
		))
	}

	if card.UserID == nil || *card.UserID != userID {
		return shell.ErrorDecision(circulation.NotFound(circulation.CodeUserNotFound, "user", userID))
	}

	previous := userID
	next := card
	next.Status = circulation.CardSuspended
	next.IsArchived = true
	next.ArchiveReason = reason
	next.PreviousUserID = &previous
	next.UserID = nil
	next.SuspensionEndDate = nil

	changes := circulation.NewChangeSet()
	changes.UpdateCard(next)

	return shell.SuccessDecision(changes, circulation.Outcome{Code: circulation.CodeCardArchived})
}

// DecideBorrowMore sets the per-borrow limit override of a card.
// An enabled override must not go below the library minimum, a disabled one clears the limit.
func DecideBorrowMore(
	card circulation.LibraryCard,
	allow bool,
	maxItemOnceTime int,
	settings circulation.BorrowSettings,
) shell.Decision {
	if allow && maxItemOnceTime < settings.BorrowAmountOnceTime {
		return shell.ErrorDecision(fieldError("maxItemOnceTime", circulation.CodeFieldBelowMinimum))
	}

	if card.IsArchived {
		return shell.ErrorDecision(circulation.Conflict(
			circulation.CodeCardAlreadyArchived, fmt.Sprintf("library card %s is archived", card.ID),
		))
	}

	if !allow {
		maxItemOnceTime = 0
	}

	outcome := circulation.Outcome{Code: circulation.CodeCardBorrowMoreUpdated}

	if card.AllowBorrowMore == allow && card.MaxItemOnceTime == maxItemOnceTime {
		return shell.IdempotentDecision(outcome)
	}

	next := card
	next.AllowBorrowMore = allow
	next.MaxItemOnceTime = maxItemOnceTime

	changes := circulation.NewChangeSet()
	changes.UpdateCard(next)

	return shell.SuccessDecision(changes, outcome)
}

func statusConflict(card circulation.LibraryCard, attempted circulation.CardStatus) error {
	return circulation.ConflictingState(circulation.CodeCardStatusConflict, cardEntity, card.ID, card.Status, attempted)
}

func validateReason(fields circulation.ValidationErrors, reason string, required bool) {
	switch {
	case required && reason == "":
		fields.Add("reason", circulation.CodeFieldRequired)
	case utf8.RuneCountInString(reason) > maxReasonLength:
		fields.Add("reason", circulation.CodeFieldTooLong)
	}
}

func fieldError(field string, code circulation.Code) error {
	fields := circulation.ValidationErrors{}
	fields.Add(field, code)

	return fields.Err()
}

func userOf(card circulation.LibraryCard) uuid.UUID {
	if card.UserID == nil {
		return uuid.Nil
	}

	return *card.UserID
}

// cashTransactionCode is unique per card and extension, so a replayed cash extension collides on insert.
func cashTransactionCode(card circulation.LibraryCard) string {
	return fmt.Sprintf("CASH-%s-%d", card.ID, card.ExtensionCount+1)
}

func notification(
	kind circulation.NotificationKind,
	card circulation.LibraryCard,
	now time.Time,
	locale circulation.Locale,
	params map[string]string,
) circulation.Notification {
	params["card_id"] = card.ID.String()

	return circulation.Notification{
		Kind:       kind,
		UserID:     userOf(card),
		Locale:     locale.String(),
		Params:     params,
		OccurredAt: now,
	}
}
