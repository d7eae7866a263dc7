package cardlifecycle

import (
	"time"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
)

// EscalationReason is stored as the suspension reason of cards suspended for missed pickups.
const EscalationReason = "missed pick up limit reached"

// DecideExpiry expires an Active card whose ExpiryDate has passed.
// It reports false when the card is not due.
func DecideExpiry(card circulation.LibraryCard, now time.Time) (circulation.LibraryCard, bool) {
	if card.Status != circulation.CardActive || card.ExpiryDate.IsZero() || now.Before(card.ExpiryDate) {
		return card, false
	}

	card.Status = circulation.CardExpired

	return card, true
}

// DecideUnsuspension lifts a suspension whose end date has passed.
// The card becomes Expired instead of Active if its validity ran out in the meantime.
func DecideUnsuspension(card circulation.LibraryCard, now time.Time) (circulation.LibraryCard, bool) {
	if card.Status != circulation.CardSuspended || card.IsArchived || card.SuspensionEndDate == nil {
		return card, false
	}

	if now.Before(*card.SuspensionEndDate) {
		return card, false
	}

	return unsuspend(card, now), true
}

// DecideMissedPickUp counts misses expired pickups against the card.
// An Active card reaching the allowed total is suspended for EndSuspensionInDays and true is returned.
// Cards in any other status only get their counter incremented.
func DecideMissedPickUp(
	card circulation.LibraryCard,
	misses int,
	now time.Time,
	settings circulation.BorrowSettings,
) (circulation.LibraryCard, bool) {
	card.TotalMissedPickUp += misses

	if card.Status != circulation.CardActive || card.TotalMissedPickUp < settings.TotalMissedPickUpAllow {
		return card, false
	}

	end := settings.SuspensionEnd(now)
	card.Status = circulation.CardSuspended
	card.SuspensionEndDate = &end
	card.SuspensionReason = EscalationReason

	return card, true
}

func unsuspend(card circulation.LibraryCard, now time.Time) circulation.LibraryCard {
	card.TotalMissedPickUp = 0
	card.SuspensionEndDate = nil
	card.SuspensionReason = ""

	if !card.ExpiryDate.IsZero() && card.IsExpiredAt(now) {
		card.Status = circulation.CardExpired
	} else {
		card.Status = circulation.CardActive
	}

	return card
}
