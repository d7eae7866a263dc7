package digitalborrow_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
	"github.com/AntonStoeckl/circulation-consistency-go/engine/digitalborrow"
	"github.com/AntonStoeckl/circulation-consistency-go/testutil/fixtures"
)

func fixedID(id uuid.UUID) func() uuid.UUID {
	return func() uuid.UUID { return id }
}

func resourceOf(resourceType circulation.ResourceType) circulation.DigitalResource {
	return circulation.DigitalResource{ID: uuid.New(), Title: "Dế Mèn phiêu lưu ký", Type: resourceType}
}

func Test_DecideConfirm_StatusByResourceType(t *testing.T) {
	now := fixtures.BusinessNow()

	testCases := []struct {
		name           string
		resourceType   circulation.ResourceType
		expectedStatus circulation.DigitalBorrowStatus
	}{
		{"text is readable at once", circulation.ResourceText, circulation.DigitalBorrowActive},
		{"audio waits for watermarking", circulation.ResourceAudio, circulation.DigitalBorrowPrepared},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			userID := uuid.New()
			resource := resourceOf(tc.resourceType)
			tx := fixtures.PaidTransaction("DB-1", circulation.TransactionDigitalBorrow, userID, resource.ID, now)
			borrowID := uuid.New()
			command := digitalborrow.ConfirmCommand{UserID: userID, ResourceID: resource.ID, TransactionCode: "DB-1", Token: tx.Token}
			snapshot := digitalborrow.ConfirmSnapshot{UserExists: true, Resource: &resource, Transaction: &tx}

			// act
			decision := digitalborrow.DecideConfirm(command, snapshot, now, fixedID(borrowID), circulation.LocaleEnglish)

			// assert
			require.NoError(t, decision.HasError())
			require.Len(t, decision.Changes.NewDigitalBorrows, 1)
			borrow := decision.Changes.NewDigitalBorrows[0]
			assert.Equal(t, borrowID, borrow.ID)
			assert.Equal(t, tc.expectedStatus, borrow.Status)
			assert.Equal(t, now.AddDate(0, 0, tx.BorrowDays), borrow.ExpiryDate)
			assert.Equal(t, "DB-1", borrow.TransactionCode)
			assert.Equal(t, circulation.NotifyDigitalBorrowConfirmed, decision.Notifications[0].Kind)
		})
	}
}

func Test_DecideConfirm_Failures(t *testing.T) {
	now := fixtures.BusinessNow()
	userID := uuid.New()
	resource := resourceOf(circulation.ResourceText)
	paid := fixtures.PaidTransaction("DB-1", circulation.TransactionDigitalBorrow, userID, resource.ID, now)

	withTx := func(mutate func(tx *circulation.Transaction)) *circulation.Transaction {
		tx := paid
		mutate(&tx)
		return &tx
	}

	testCases := []struct {
		name         string
		command      digitalborrow.ConfirmCommand
		snapshot     digitalborrow.ConfirmSnapshot
		expectedKind error
		expectedCode circulation.Code
	}{
		{
			name:         "unknown user",
			command:      digitalborrow.ConfirmCommand{UserID: userID, ResourceID: resource.ID, TransactionCode: "DB-1"},
			snapshot:     digitalborrow.ConfirmSnapshot{Resource: &resource, Transaction: &paid},
			expectedKind: circulation.ErrNotFound,
			expectedCode: circulation.CodeUserNotFound,
		},
		{
			name:         "unknown resource",
			command:      digitalborrow.ConfirmCommand{UserID: userID, ResourceID: resource.ID, TransactionCode: "DB-1"},
			snapshot:     digitalborrow.ConfirmSnapshot{UserExists: true, Transaction: &paid},
			expectedKind: circulation.ErrNotFound,
			expectedCode: circulation.CodeResourceNotFound,
		},
		{
			name:         "no paid transaction",
			command:      digitalborrow.ConfirmCommand{UserID: userID, ResourceID: resource.ID, TransactionCode: "DB-1"},
			snapshot:     digitalborrow.ConfirmSnapshot{UserExists: true, Resource: &resource},
			expectedKind: circulation.ErrNotFound,
			expectedCode: circulation.CodePaymentNotFound,
		},
		{
			name:    "expired token",
			command: digitalborrow.ConfirmCommand{UserID: userID, ResourceID: resource.ID, TransactionCode: "DB-1", Token: "old"},
			snapshot: digitalborrow.ConfirmSnapshot{
				UserExists: true, Resource: &resource, Transaction: &paid,
			},
			expectedKind: circulation.ErrPaymentMismatch,
			expectedCode: circulation.CodePaymentTokenInvalid,
		},
		{
			name:    "missing token",
			command: digitalborrow.ConfirmCommand{UserID: userID, ResourceID: resource.ID, TransactionCode: "DB-1"},
			snapshot: digitalborrow.ConfirmSnapshot{
				UserExists: true, Resource: &resource, Transaction: &paid,
			},
			expectedKind: circulation.ErrPaymentMismatch,
			expectedCode: circulation.CodePaymentTokenInvalid,
		},
		{
			name: "payment made on another day",
			command: digitalborrow.ConfirmCommand{
				UserID: userID, ResourceID: resource.ID, TransactionCode: "DB-1", Token: paid.Token, Date: now.AddDate(0, 0, -1),
			},
			snapshot:     digitalborrow.ConfirmSnapshot{UserExists: true, Resource: &resource, Transaction: &paid},
			expectedKind: circulation.ErrPaymentMismatch,
			expectedCode: circulation.CodePaymentMismatch,
		},
		{
			name:    "payment for another resource",
			command: digitalborrow.ConfirmCommand{UserID: userID, ResourceID: resource.ID, TransactionCode: "DB-1", Token: paid.Token},
			snapshot: digitalborrow.ConfirmSnapshot{
				UserExists: true, Resource: &resource,
				Transaction: withTx(func(tx *circulation.Transaction) { tx.ReferenceID = uuid.New() }),
			},
			expectedKind: circulation.ErrPaymentMismatch,
			expectedCode: circulation.CodePaymentMismatch,
		},
		{
			name:         "missing transaction code",
			command:      digitalborrow.ConfirmCommand{UserID: userID, ResourceID: resource.ID},
			snapshot:     digitalborrow.ConfirmSnapshot{UserExists: true, Resource: &resource, Transaction: &paid},
			expectedKind: circulation.ErrValidationFailed,
			expectedCode: circulation.CodeValidationFailed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			decision := digitalborrow.DecideConfirm(tc.command, tc.snapshot, now, uuid.New, circulation.LocaleEnglish)

			// assert
			err := decision.HasError()
			assert.ErrorIs(t, err, tc.expectedKind)

			var failure *circulation.Failure
			require.ErrorAs(t, err, &failure)
			assert.Equal(t, tc.expectedCode, failure.Code)
			assert.Nil(t, decision.Changes)
		})
	}
}

func Test_DecideConfirm_ReusedTransactionCode(t *testing.T) {
	now := fixtures.BusinessNow()
	existing := circulation.DigitalBorrow{ID: uuid.New(), UserID: uuid.New(), ResourceID: uuid.New(), TransactionCode: "DB-1"}

	t.Run("same request again is a no-op", func(t *testing.T) {
		// arrange
		command := digitalborrow.ConfirmCommand{UserID: existing.UserID, ResourceID: existing.ResourceID, TransactionCode: "DB-1"}

		// act
		decision := digitalborrow.DecideConfirm(command, digitalborrow.ConfirmSnapshot{Existing: &existing}, now, uuid.New, circulation.LocaleEnglish)

		// assert
		require.NoError(t, decision.HasError())
		assert.True(t, decision.IsIdempotent())
	})

	t.Run("code already spent on another resource", func(t *testing.T) {
		// arrange
		command := digitalborrow.ConfirmCommand{UserID: existing.UserID, ResourceID: uuid.New(), TransactionCode: "DB-1"}

		// act
		decision := digitalborrow.DecideConfirm(command, digitalborrow.ConfirmSnapshot{Existing: &existing}, now, uuid.New, circulation.LocaleEnglish)

		// assert
		assert.ErrorIs(t, decision.HasError(), circulation.ErrPaymentMismatch)
	})
}

func Test_DecideExtension_Math(t *testing.T) {
	now := fixtures.BusinessNow()
	settings := circulation.DefaultBorrowSettings()

	testCases := []struct {
		name           string
		expiry         time.Time
		expectedExpiry time.Time
	}{
		{"running borrow is extended on top", now.AddDate(0, 0, 4), now.AddDate(0, 0, 4).AddDate(0, 0, 30)},
		{"recently expired borrow restarts from now", now.AddDate(0, 0, -3), now.AddDate(0, 0, 30)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			resource := resourceOf(circulation.ResourceText)
			borrow := circulation.DigitalBorrow{
				ID: uuid.New(), UserID: uuid.New(), ResourceID: resource.ID, Status: circulation.DigitalBorrowActive,
				ExpiryDate: tc.expiry, ExtensionCount: 1, Version: 4,
			}
			tx := fixtures.PaidTransaction("EXT-1", circulation.TransactionDigitalExtension, borrow.UserID, borrow.ID, now)
			extensionID := uuid.New()
			command := digitalborrow.ExtensionCommand{DigitalBorrowID: borrow.ID, TransactionCode: "EXT-1", Token: tx.Token}
			snapshot := digitalborrow.ExtensionSnapshot{Borrow: &borrow, Resource: &resource, Transaction: &tx}

			// act
			decision := digitalborrow.DecideExtension(command, snapshot, now, settings, fixedID(extensionID), circulation.LocaleEnglish)

			// assert
			require.NoError(t, decision.HasError())
			require.Len(t, decision.Changes.DigitalBorrowUpdates, 1)
			next := decision.Changes.DigitalBorrowUpdates[0]
			assert.Equal(t, tc.expectedExpiry, next.ExpiryDate)
			assert.Equal(t, 2, next.ExtensionCount)
			assert.True(t, next.IsExtended)
			assert.Equal(t, borrow.Version, next.Version)

			require.Len(t, decision.Changes.NewExtensions, 1)
			history := decision.Changes.NewExtensions[0]
			assert.Equal(t, extensionID, history.ID)
			assert.Equal(t, tc.expiry, history.PreviousExpiryDate)
			assert.Equal(t, tc.expectedExpiry, history.NewExpiryDate)
			assert.Equal(t, 2, history.ExtensionNumber)
		})
	}
}

func Test_DecideExtension_ReadsExpiryInTheBusinessTimezone(t *testing.T) {
	// arrange
	business := time.FixedZone("ICT", 7*60*60)
	now := time.Date(2027, time.February, 20, 10, 0, 0, 0, business)
	expiry := time.Date(2027, time.March, 1, 0, 0, 0, 0, business)

	resource := resourceOf(circulation.ResourceText)
	borrow := circulation.DigitalBorrow{
		ID: uuid.New(), UserID: uuid.New(), ResourceID: resource.ID, Status: circulation.DigitalBorrowActive,
		ExpiryDate: expiry.UTC(),
	}
	tx := fixtures.PaidTransaction("EXT-TZ", circulation.TransactionDigitalExtension, borrow.UserID, borrow.ID, now)
	command := digitalborrow.ExtensionCommand{DigitalBorrowID: borrow.ID, TransactionCode: "EXT-TZ", Token: tx.Token}
	snapshot := digitalborrow.ExtensionSnapshot{Borrow: &borrow, Resource: &resource, Transaction: &tx}

	// act
	decision := digitalborrow.DecideExtension(
		command, snapshot, now, circulation.DefaultBorrowSettings(), uuid.New, circulation.LocaleEnglish,
	)

	// assert
	require.NoError(t, decision.HasError())
	require.Len(t, decision.Changes.DigitalBorrowUpdates, 1)
	next := decision.Changes.DigitalBorrowUpdates[0]
	expected := expiry.AddDate(0, 0, tx.BorrowDays)
	assert.True(t, expected.Equal(next.ExpiryDate), "expected %s, got %s", expected, next.ExpiryDate)
	assert.Equal(t, business, next.ExpiryDate.Location())
}

func Test_DecideExtension_Guards(t *testing.T) {
	now := fixtures.BusinessNow()
	settings := circulation.DefaultBorrowSettings()
	resource := resourceOf(circulation.ResourceText)
	borrow := circulation.DigitalBorrow{
		ID: uuid.New(), UserID: uuid.New(), ResourceID: resource.ID, Status: circulation.DigitalBorrowActive,
		ExpiryDate: now.AddDate(0, 0, -settings.DigitalExtensionGraceInDays-1),
	}
	tx := fixtures.PaidTransaction("EXT-1", circulation.TransactionDigitalExtension, borrow.UserID, borrow.ID, now)
	command := digitalborrow.ExtensionCommand{DigitalBorrowID: borrow.ID, TransactionCode: "EXT-1", Token: tx.Token}

	t.Run("too long after expiry", func(t *testing.T) {
		// act
		decision := digitalborrow.DecideExtension(command, digitalborrow.ExtensionSnapshot{
			Borrow: &borrow, Resource: &resource, Transaction: &tx,
		}, now, settings, uuid.New, circulation.LocaleEnglish)

		// assert
		var failure *circulation.Failure
		require.ErrorAs(t, decision.HasError(), &failure)
		assert.Equal(t, circulation.CodeDigitalBorrowTooLate, failure.Code)
	})

	t.Run("unknown borrow", func(t *testing.T) {
		// act
		decision := digitalborrow.DecideExtension(command, digitalborrow.ExtensionSnapshot{}, now, settings, uuid.New, circulation.LocaleEnglish)

		// assert
		assert.ErrorIs(t, decision.HasError(), circulation.ErrNotFound)
	})

	t.Run("transaction already applied to this borrow", func(t *testing.T) {
		// arrange
		history := circulation.ExtensionHistory{DigitalBorrowID: borrow.ID, TransactionCode: "EXT-1"}

		// act
		decision := digitalborrow.DecideExtension(command, digitalborrow.ExtensionSnapshot{
			Borrow: &borrow, Existing: &history,
		}, now, settings, uuid.New, circulation.LocaleEnglish)

		// assert
		require.NoError(t, decision.HasError())
		assert.True(t, decision.IsIdempotent())
	})
}

func Test_DecideActivate(t *testing.T) {
	testCases := []struct {
		name             string
		status           circulation.DigitalBorrowStatus
		expectIdempotent bool
		expectError      bool
	}{
		{name: "prepared becomes active", status: circulation.DigitalBorrowPrepared},
		{name: "active stays active", status: circulation.DigitalBorrowActive, expectIdempotent: true},
		{name: "unknown status", status: 0, expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			borrow := circulation.DigitalBorrow{ID: uuid.New(), Status: tc.status}

			// act
			decision := digitalborrow.DecideActivate(borrow)

			// assert
			if tc.expectError {
				assert.ErrorIs(t, decision.HasError(), circulation.ErrConflictingState)
				return
			}

			require.NoError(t, decision.HasError())
			assert.Equal(t, tc.expectIdempotent, decision.IsIdempotent())
			assert.Equal(t, circulation.CodeDigitalBorrowActivated, decision.Result.Code)
		})
	}
}
