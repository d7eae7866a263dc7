package cardlifecycle_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
	"github.com/AntonStoeckl/circulation-consistency-go/engine/cardlifecycle"
	"github.com/AntonStoeckl/circulation-consistency-go/testutil/fixtures"
)

func updatedCard(t *testing.T, decisionChanges *circulation.ChangeSet) circulation.LibraryCard {
	t.Helper()
	require.NotNil(t, decisionChanges)
	require.Len(t, decisionChanges.CardUpdates, 1)

	return decisionChanges.CardUpdates[0]
}

func failureOf(t *testing.T, err error) *circulation.Failure {
	t.Helper()

	var failure *circulation.Failure
	require.ErrorAs(t, err, &failure)

	return failure
}

func Test_DecideConfirm(t *testing.T) {
	now := fixtures.BusinessNow()
	pkg := fixtures.MonthlyPackage(6)

	t.Run("pending card with paid issuance is activated", func(t *testing.T) {
		// arrange
		card := fixtures.PendingCard(pkg.ID, "TX-1")
		tx := fixtures.PaidTransaction("TX-1", circulation.TransactionCardIssuance, *card.UserID, card.ID, now)

		// act
		decision := cardlifecycle.DecideConfirm(card, pkg, &tx, now, circulation.LocaleVietnamese)

		// assert
		require.NoError(t, decision.HasError())
		next := updatedCard(t, decision.Changes)
		assert.Equal(t, circulation.CardActive, next.Status)
		assert.Equal(t, now.AddDate(0, 6, 0), next.ExpiryDate)
		require.Len(t, decision.Notifications, 1)
		assert.Equal(t, circulation.NotifyCardActivated, decision.Notifications[0].Kind)
		assert.Equal(t, *card.UserID, decision.Notifications[0].UserID)
		assert.Equal(t, "vi", decision.Notifications[0].Locale)
	})

	t.Run("rejected card can be confirmed", func(t *testing.T) {
		// arrange
		card := fixtures.PendingCard(pkg.ID, "TX-2")
		card.Status = circulation.CardRejected
		card.RejectReason = "blurry photo"
		tx := fixtures.PaidTransaction("TX-2", circulation.TransactionCardIssuance, *card.UserID, card.ID, now)

		// act
		decision := cardlifecycle.DecideConfirm(card, pkg, &tx, now, circulation.LocaleEnglish)

		// assert
		require.NoError(t, decision.HasError())
		assert.Empty(t, updatedCard(t, decision.Changes).RejectReason)
	})

	t.Run("missing payment is a hard failure", func(t *testing.T) {
		// arrange
		card := fixtures.PendingCard(pkg.ID, "TX-3")

		// act
		decision := cardlifecycle.DecideConfirm(card, pkg, nil, now, circulation.LocaleEnglish)

		// assert
		assert.ErrorIs(t, decision.HasError(), circulation.ErrNotFound)
		assert.Equal(t, circulation.CodePaymentNotFound, failureOf(t, decision.HasError()).Code)
	})

	t.Run("payment of another type is a mismatch", func(t *testing.T) {
		// arrange
		card := fixtures.PendingCard(pkg.ID, "TX-4")
		tx := fixtures.PaidTransaction("TX-4", circulation.TransactionDigitalBorrow, *card.UserID, card.ID, now)

		// act
		decision := cardlifecycle.DecideConfirm(card, pkg, &tx, now, circulation.LocaleEnglish)

		// assert
		assert.ErrorIs(t, decision.HasError(), circulation.ErrPaymentMismatch)
	})

	t.Run("active card cannot be confirmed again", func(t *testing.T) {
		// arrange
		card := fixtures.ActiveCard(now.AddDate(0, 1, 0))
		tx := fixtures.PaidTransaction("TX-5", circulation.TransactionCardIssuance, *card.UserID, card.ID, now)

		// act
		decision := cardlifecycle.DecideConfirm(card, pkg, &tx, now, circulation.LocaleEnglish)

		// assert
		assert.ErrorIs(t, decision.HasError(), circulation.ErrConflictingState)
		assert.Equal(t, []any{"Active", "Active"}, failureOf(t, decision.HasError()).Args)
	})
}

func Test_DecideReject_And_Resend(t *testing.T) {
	now := fixtures.BusinessNow()

	t.Run("reject stores the reason", func(t *testing.T) {
		// arrange
		card := fixtures.PendingCard(uuid.New(), "TX-1")

		// act
		decision := cardlifecycle.DecideReject(card, "photo missing", now, circulation.LocaleEnglish)

		// assert
		require.NoError(t, decision.HasError())
		next := updatedCard(t, decision.Changes)
		assert.Equal(t, circulation.CardRejected, next.Status)
		assert.Equal(t, "photo missing", next.RejectReason)
		assert.Equal(t, circulation.NotifyCardRejected, decision.Notifications[0].Kind)
	})

	t.Run("reject needs a reason", func(t *testing.T) {
		// arrange
		card := fixtures.PendingCard(uuid.New(), "TX-1")

		// act
		decision := cardlifecycle.DecideReject(card, "", now, circulation.LocaleEnglish)

		// assert
		failure := failureOf(t, decision.HasError())
		assert.Equal(t, []circulation.Code{circulation.CodeFieldRequired}, failure.Fields["reason"])
	})

	t.Run("only pending cards can be rejected", func(t *testing.T) {
		// arrange
		card := fixtures.ActiveCard(now.AddDate(0, 1, 0))

		// act
		decision := cardlifecycle.DecideReject(card, "too late", now, circulation.LocaleEnglish)

		// assert
		assert.ErrorIs(t, decision.HasError(), circulation.ErrConflictingState)
	})

	t.Run("resend moves rejected back to pending", func(t *testing.T) {
		// arrange
		card := fixtures.PendingCard(uuid.New(), "TX-1")
		card.Status = circulation.CardRejected
		card.RejectReason = "photo missing"

		// act
		decision := cardlifecycle.DecideResend(card)

		// assert
		require.NoError(t, decision.HasError())
		next := updatedCard(t, decision.Changes)
		assert.Equal(t, circulation.CardPending, next.Status)
		assert.Empty(t, next.RejectReason)
	})

	t.Run("resend of a pending card conflicts", func(t *testing.T) {
		// act
		decision := cardlifecycle.DecideResend(fixtures.PendingCard(uuid.New(), "TX-1"))

		// assert
		assert.ErrorIs(t, decision.HasError(), circulation.ErrConflictingState)
	})
}

func Test_DecideSuspend(t *testing.T) {
	now := fixtures.BusinessNow()
	tomorrow := now.AddDate(0, 0, 1)

	testCases := []struct {
		name           string
		status         circulation.CardStatus
		endDate        time.Time
		reason         string
		expectedKind   error
		expectedFields map[string][]circulation.Code
	}{
		{name: "active card is suspended", status: circulation.CardActive, endDate: tomorrow, reason: "damaged book"},
		{name: "expired card is suspended", status: circulation.CardExpired, endDate: tomorrow},
		{
			name: "end date in the past", status: circulation.CardActive, endDate: now.Add(-time.Hour),
			expectedKind:   circulation.ErrValidationFailed,
			expectedFields: map[string][]circulation.Code{"endDate": {circulation.CodeFieldNotInFuture}},
		},
		{
			name: "end date missing and reason too long", status: circulation.CardActive, reason: strings.Repeat("x", 251),
			expectedKind: circulation.ErrValidationFailed,
			expectedFields: map[string][]circulation.Code{
				"endDate": {circulation.CodeFieldRequired},
				"reason":  {circulation.CodeFieldTooLong},
			},
		},
		{
			name: "validation comes before the status check", status: circulation.CardPending, endDate: now,
			expectedKind:   circulation.ErrValidationFailed,
			expectedFields: map[string][]circulation.Code{"endDate": {circulation.CodeFieldNotInFuture}},
		},
		{name: "pending card", status: circulation.CardPending, endDate: tomorrow, expectedKind: circulation.ErrConflictingState},
		{name: "rejected card", status: circulation.CardRejected, endDate: tomorrow, expectedKind: circulation.ErrConflictingState},
		{name: "already suspended", status: circulation.CardSuspended, endDate: tomorrow, expectedKind: circulation.ErrConflictingState},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			card := fixtures.ActiveCard(now.AddDate(0, 3, 0))
			card.Status = tc.status

			// act
			decision := cardlifecycle.DecideSuspend(card, tc.endDate, tc.reason, now)

			// assert
			if tc.expectedKind != nil {
				assert.ErrorIs(t, decision.HasError(), tc.expectedKind)
				assert.Nil(t, decision.Changes)

				if tc.expectedFields != nil {
					assert.Equal(t, tc.expectedFields, failureOf(t, decision.HasError()).Fields)
				}

				return
			}

			require.NoError(t, decision.HasError())
			next := updatedCard(t, decision.Changes)
			assert.Equal(t, circulation.CardSuspended, next.Status)
			assert.Equal(t, tc.endDate, *next.SuspensionEndDate)
			assert.Equal(t, tc.reason, next.SuspensionReason)
		})
	}
}

func Test_DecideUnsuspend_ExpiredCardStaysExpired(t *testing.T) {
	// arrange
	now := fixtures.BusinessNow()
	end := now.AddDate(0, 0, -1)
	card := fixtures.ActiveCard(now.AddDate(0, 0, -3))
	card.Status = circulation.CardSuspended
	card.SuspensionEndDate = &end

	// act
	decision := cardlifecycle.DecideUnsuspend(card, now)

	// assert
	require.NoError(t, decision.HasError())
	assert.Equal(t, circulation.CardExpired, updatedCard(t, decision.Changes).Status)
}

func Test_DecideUnsuspend_Guards(t *testing.T) {
	now := fixtures.BusinessNow()

	t.Run("active card", func(t *testing.T) {
		// act
		decision := cardlifecycle.DecideUnsuspend(fixtures.ActiveCard(now.AddDate(0, 1, 0)), now)

		// assert
		assert.ErrorIs(t, decision.HasError(), circulation.ErrConflictingState)
	})

	t.Run("archived card", func(t *testing.T) {
		// arrange
		card := fixtures.ActiveCard(now.AddDate(0, 1, 0))
		card.Status = circulation.CardSuspended
		card.IsArchived = true

		// act
		decision := cardlifecycle.DecideUnsuspend(card, now)

		// assert
		assert.Equal(t, circulation.CodeCardAlreadyArchived, failureOf(t, decision.HasError()).Code)
	})
}

func Test_CheckCardExtension(t *testing.T) {
	now := fixtures.BusinessNow()
	settings := circulation.DefaultBorrowSettings()

	testCases := []struct {
		name         string
		status       circulation.CardStatus
		expiry       time.Time
		expectedCode circulation.Code
	}{
		{"expired card", circulation.CardExpired, now.AddDate(0, 0, -2), ""},
		{"active card inside the renewal window", circulation.CardActive, now.AddDate(0, 0, 5), ""},
		{"active card not due yet", circulation.CardActive, now.AddDate(0, 3, 0), circulation.CodeCardNotDueForExtension},
		{"pending card", circulation.CardPending, time.Time{}, circulation.CodeCardNotActivated},
		{"rejected card", circulation.CardRejected, time.Time{}, circulation.CodeCardNotActivated},
		{"suspended card", circulation.CardSuspended, now.AddDate(0, 0, 5), circulation.CodeCardSuspendedNoExtension},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			card := fixtures.ActiveCard(tc.expiry)
			card.Status = tc.status

			// act
			err := cardlifecycle.CheckCardExtension(card, now, settings)

			// assert
			if tc.expectedCode == "" {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, circulation.ErrConflictingState)
			assert.Equal(t, tc.expectedCode, failureOf(t, err).Code)
		})
	}
}

func Test_DecideExtend_ExtensionMath(t *testing.T) {
	now := fixtures.BusinessNow()
	settings := circulation.DefaultBorrowSettings()
	pkg := fixtures.MonthlyPackage(1)

	testCases := []struct {
		name           string
		status         circulation.CardStatus
		expiry         time.Time
		expectedExpiry time.Time
	}{
		{"active card extends from its expiry", circulation.CardActive, now.AddDate(0, 0, 5), now.AddDate(0, 0, 5).AddDate(0, 1, 0)},
		{"expired card extends from now", circulation.CardExpired, now.AddDate(0, 0, -2), now.AddDate(0, 1, 0)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			card := fixtures.ActiveCard(tc.expiry)
			card.Status = tc.status
			card.ExtensionCount = 2
			command := cardlifecycle.ExtendCommand{CardID: card.ID, Method: circulation.PaymentCash}

			// act
			decision := cardlifecycle.DecideExtend(command, card, pkg, nil, now, settings, circulation.LocaleEnglish)

			// assert
			require.NoError(t, decision.HasError())
			next := updatedCard(t, decision.Changes)
			assert.Equal(t, circulation.CardActive, next.Status)
			assert.Equal(t, tc.expectedExpiry, next.ExpiryDate)
			assert.Equal(t, 3, next.ExtensionCount)
			assert.Equal(t, pkg.ID, next.PackageID)

			require.Len(t, decision.Changes.NewTransactions, 1)
			cash := decision.Changes.NewTransactions[0]
			assert.Equal(t, circulation.TransactionPaid, cash.Status)
			assert.Equal(t, circulation.PaymentCash, cash.Method)
			assert.Equal(t, circulation.TransactionCardExtension, cash.Type)
			assert.Equal(t, cash.Code, next.TransactionCode)
		})
	}
}

func Test_DecideExtend_CountsMonthsInTheBusinessTimezone(t *testing.T) {
	// arrange
	business := time.FixedZone("ICT", 7*60*60)
	now := time.Date(2027, time.February, 20, 10, 0, 0, 0, business)
	expiry := time.Date(2027, time.March, 1, 0, 0, 0, 0, business)

	card := fixtures.ActiveCard(expiry.UTC())
	command := cardlifecycle.ExtendCommand{CardID: card.ID, Method: circulation.PaymentCash}

	// act
	decision := cardlifecycle.DecideExtend(
		command, card, fixtures.MonthlyPackage(1), nil, now, circulation.DefaultBorrowSettings(), circulation.LocaleEnglish,
	)

	// assert
	require.NoError(t, decision.HasError())
	next := updatedCard(t, decision.Changes)
	expected := time.Date(2027, time.April, 1, 0, 0, 0, 0, business)
	assert.True(t, expected.Equal(next.ExpiryDate), "expected %s, got %s", expected, next.ExpiryDate)
	assert.Equal(t, business, next.ExpiryDate.Location())
}

func Test_DecideExtend_OnlinePayment(t *testing.T) {
	now := fixtures.BusinessNow()
	settings := circulation.DefaultBorrowSettings()
	pkg := fixtures.MonthlyPackage(1)

	t.Run("verified token extends without inserting a transaction", func(t *testing.T) {
		// arrange
		card := fixtures.ActiveCard(now.AddDate(0, 0, -1))
		card.Status = circulation.CardExpired
		tx := fixtures.PaidTransaction("EXT-1", circulation.TransactionCardExtension, *card.UserID, card.ID, now)
		command := cardlifecycle.ExtendCommand{
			CardID: card.ID, Method: circulation.PaymentOnline, TransactionCode: "EXT-1", Token: tx.Token,
		}

		// act
		decision := cardlifecycle.DecideExtend(command, card, pkg, &tx, now, settings, circulation.LocaleEnglish)

		// assert
		require.NoError(t, decision.HasError())
		assert.Empty(t, decision.Changes.NewTransactions)
		assert.Equal(t, "EXT-1", updatedCard(t, decision.Changes).TransactionCode)
		assert.Equal(t, circulation.NotifyCardExtended, decision.Notifications[0].Kind)
	})

	t.Run("wrong token is rejected", func(t *testing.T) {
		// arrange
		card := fixtures.ActiveCard(now.AddDate(0, 0, -1))
		card.Status = circulation.CardExpired
		tx := fixtures.PaidTransaction("EXT-2", circulation.TransactionCardExtension, *card.UserID, card.ID, now)
		command := cardlifecycle.ExtendCommand{
			CardID: card.ID, Method: circulation.PaymentOnline, TransactionCode: "EXT-2", Token: "forged",
		}

		// act
		decision := cardlifecycle.DecideExtend(command, card, pkg, &tx, now, settings, circulation.LocaleEnglish)

		// assert
		assert.ErrorIs(t, decision.HasError(), circulation.ErrPaymentMismatch)
		assert.Equal(t, circulation.CodePaymentTokenInvalid, failureOf(t, decision.HasError()).Code)
	})

	t.Run("missing token is rejected", func(t *testing.T) {
		// arrange
		card := fixtures.ActiveCard(now.AddDate(0, 0, -1))
		card.Status = circulation.CardExpired
		tx := fixtures.PaidTransaction("EXT-P", circulation.TransactionCardExtension, *card.UserID, card.ID, now)
		command := cardlifecycle.ExtendCommand{CardID: card.ID, Method: circulation.PaymentOnline, TransactionCode: "EXT-P"}

		// act
		decision := cardlifecycle.DecideExtend(command, card, pkg, &tx, now, settings, circulation.LocaleEnglish)

		// assert
		assert.ErrorIs(t, decision.HasError(), circulation.ErrPaymentMismatch)
		assert.Equal(t, circulation.CodePaymentTokenInvalid, failureOf(t, decision.HasError()).Code)
		assert.Nil(t, decision.Changes)
	})

	t.Run("replaying the last applied transaction is a no-op", func(t *testing.T) {
		// arrange
		card := fixtures.ActiveCard(now.AddDate(0, 1, 0))
		card.ExtensionCount = 1
		card.TransactionCode = "EXT-3"
		command := cardlifecycle.ExtendCommand{CardID: card.ID, Method: circulation.PaymentOnline, TransactionCode: "EXT-3"}

		// act
		decision := cardlifecycle.DecideExtend(command, card, pkg, nil, now, settings, circulation.LocaleEnglish)

		// assert
		require.NoError(t, decision.HasError())
		assert.True(t, decision.IsIdempotent())
	})

	t.Run("missing method", func(t *testing.T) {
		// arrange
		card := fixtures.ActiveCard(now.AddDate(0, 0, 1))

		// act
		decision := cardlifecycle.DecideExtend(cardlifecycle.ExtendCommand{CardID: card.ID}, card, pkg, nil, now, settings, circulation.LocaleEnglish)

		// assert
		assert.ErrorIs(t, decision.HasError(), circulation.ErrValidationFailed)
	})
}

func Test_DecideArchive(t *testing.T) {
	now := fixtures.BusinessNow()

	t.Run("active card is detached and forced suspended", func(t *testing.T) {
		// arrange
		card := fixtures.ActiveCard(now.AddDate(0, 1, 0))
		owner := *card.UserID

		// act
		decision := cardlifecycle.DecideArchive(card, owner, "moved away")

		// assert
		require.NoError(t, decision.HasError())
		next := updatedCard(t, decision.Changes)
		assert.Equal(t, circulation.CardSuspended, next.Status)
		assert.True(t, next.IsArchived)
		assert.Nil(t, next.UserID)
		require.NotNil(t, next.PreviousUserID)
		assert.Equal(t, owner, *next.PreviousUserID)
		assert.Equal(t, "moved away", next.ArchiveReason)
	})

	testCases := []struct {
		name         string
		mutate       func(card *circulation.LibraryCard)
		user         func(card circulation.LibraryCard) uuid.UUID
		expectedCode circulation.Code
	}{
		{
			name:         "already archived",
			mutate:       func(card *circulation.LibraryCard) { card.IsArchived = true },
			expectedCode: circulation.CodeCardAlreadyArchived,
		},
		{
			name:         "suspended",
			mutate:       func(card *circulation.LibraryCard) { card.Status = circulation.CardSuspended },
			expectedCode: circulation.CodeCardArchiveWhileSuspended,
		},
		{
			name:         "card of another user",
			mutate:       func(*circulation.LibraryCard) {},
			user:         func(circulation.LibraryCard) uuid.UUID { return uuid.New() },
			expectedCode: circulation.CodeUserNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			card := fixtures.ActiveCard(now.AddDate(0, 1, 0))
			tc.mutate(&card)
			userID := *card.UserID
			if tc.user != nil {
				userID = tc.user(card)
			}

			// act
			decision := cardlifecycle.DecideArchive(card, userID, "")

			// assert
			assert.Equal(t, tc.expectedCode, failureOf(t, decision.HasError()).Code)
		})
	}
}

func Test_DecideBorrowMore(t *testing.T) {
	settings := circulation.DefaultBorrowSettings()
	card := fixtures.ActiveCard(fixtures.BusinessNow().AddDate(0, 1, 0))

	t.Run("limit at the minimum is accepted", func(t *testing.T) {
		// act
		decision := cardlifecycle.DecideBorrowMore(card, true, settings.BorrowAmountOnceTime, settings)

		// assert
		require.NoError(t, decision.HasError())
		assert.Equal(t, circulation.CodeCardBorrowMoreUpdated, decision.Result.Code)
		next := updatedCard(t, decision.Changes)
		assert.True(t, next.AllowBorrowMore)
		assert.Equal(t, settings.BorrowAmountOnceTime, next.MaxItemOnceTime)
	})

	t.Run("limit below the minimum fails validation", func(t *testing.T) {
		// act
		decision := cardlifecycle.DecideBorrowMore(card, true, settings.BorrowAmountOnceTime-1, settings)

		// assert
		failure := failureOf(t, decision.HasError())
		assert.Equal(t, circulation.CodeValidationFailed, failure.Code)
		assert.Equal(t, []circulation.Code{circulation.CodeFieldBelowMinimum}, failure.Fields["maxItemOnceTime"])
	})

	t.Run("disabling twice is idempotent", func(t *testing.T) {
		// act
		decision := cardlifecycle.DecideBorrowMore(card, false, 99, settings)

		// assert
		require.NoError(t, decision.HasError())
		assert.True(t, decision.IsIdempotent())
		assert.Equal(t, circulation.CodeCardBorrowMoreUpdated, decision.Result.Code)
	})
}
