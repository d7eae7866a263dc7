package cardlifecycle_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
	"github.com/AntonStoeckl/circulation-consistency-go/engine/cardlifecycle"
	"github.com/AntonStoeckl/circulation-consistency-go/testutil/fixtures"
)

func Test_DecideMissedPickUp_Escalation(t *testing.T) {
	now := fixtures.BusinessNow()
	settings := circulation.DefaultBorrowSettings()
	settings.TotalMissedPickUpAllow = 3

	testCases := []struct {
		name            string
		status          circulation.CardStatus
		missedBefore    int
		expectedStatus  circulation.CardStatus
		expectedMissed  int
		expectSuspended bool
	}{
		{"reaching the limit suspends", circulation.CardActive, 2, circulation.CardSuspended, 3, true},
		{"below the limit only counts", circulation.CardActive, 1, circulation.CardActive, 2, false},
		{"already past the limit suspends", circulation.CardActive, 5, circulation.CardSuspended, 6, true},
		{"expired card only counts", circulation.CardExpired, 2, circulation.CardExpired, 3, false},
		{"suspended card keeps its suspension", circulation.CardSuspended, 2, circulation.CardSuspended, 3, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			card := fixtures.ActiveCard(now.AddDate(0, 6, 0))
			card.Status = tc.status
			card.TotalMissedPickUp = tc.missedBefore

			// act
			next, suspended := cardlifecycle.DecideMissedPickUp(card, 1, now, settings)

			// assert
			assert.Equal(t, tc.expectSuspended, suspended)
			assert.Equal(t, tc.expectedStatus, next.Status)
			assert.Equal(t, tc.expectedMissed, next.TotalMissedPickUp)

			if tc.expectSuspended {
				if assert.NotNil(t, next.SuspensionEndDate) {
					assert.Equal(t, now.AddDate(0, 0, settings.EndSuspensionInDays), *next.SuspensionEndDate)
				}

				assert.Equal(t, cardlifecycle.EscalationReason, next.SuspensionReason)
			}
		})
	}
}

func Test_DecideExpiry(t *testing.T) {
	now := fixtures.BusinessNow()

	testCases := []struct {
		name      string
		status    circulation.CardStatus
		expiry    time.Time
		expectDue bool
	}{
		{"active and past expiry", circulation.CardActive, now.Add(-time.Minute), true},
		{"active and expiring exactly now", circulation.CardActive, now, true},
		{"active and still valid", circulation.CardActive, now.Add(time.Minute), false},
		{"active without expiry date", circulation.CardActive, time.Time{}, false},
		{"already expired", circulation.CardExpired, now.Add(-time.Hour), false},
		{"suspended past expiry", circulation.CardSuspended, now.Add(-time.Hour), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			card := fixtures.ActiveCard(tc.expiry)
			card.Status = tc.status

			// act
			next, due := cardlifecycle.DecideExpiry(card, now)

			// assert
			assert.Equal(t, tc.expectDue, due)

			if tc.expectDue {
				assert.Equal(t, circulation.CardExpired, next.Status)
			} else {
				assert.Equal(t, card, next)
			}
		})
	}
}

func Test_DecideUnsuspension_Branching(t *testing.T) {
	now := fixtures.BusinessNow()
	past := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 1)

	testCases := []struct {
		name           string
		suspensionEnd  *time.Time
		expiry         time.Time
		archived       bool
		expectDue      bool
		expectedStatus circulation.CardStatus
	}{
		{"suspension over and card valid", &past, future, false, true, circulation.CardActive},
		{"suspension over and card expired", &past, now.AddDate(0, 0, -2), false, true, circulation.CardExpired},
		{"suspension not over yet", &future, future, false, false, circulation.CardSuspended},
		{"no end date", nil, future, false, false, circulation.CardSuspended},
		{"archived card stays in the pool", &past, future, true, false, circulation.CardSuspended},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			card := fixtures.ActiveCard(tc.expiry)
			card.Status = circulation.CardSuspended
			card.SuspensionEndDate = tc.suspensionEnd
			card.SuspensionReason = "late returns"
			card.TotalMissedPickUp = 3
			card.IsArchived = tc.archived

			// act
			next, due := cardlifecycle.DecideUnsuspension(card, now)

			// assert
			assert.Equal(t, tc.expectDue, due)
			assert.Equal(t, tc.expectedStatus, next.Status)

			if tc.expectDue {
				assert.Nil(t, next.SuspensionEndDate)
				assert.Zero(t, next.TotalMissedPickUp)
				assert.Empty(t, next.SuspensionReason)
			}
		})
	}
}
