package postgresengine

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
)

func Test_BuildStatements_VersionedWritesCarryTheReadVersion(t *testing.T) {
	// arrange
	card := circulation.LibraryCard{ID: uuid.New(), Status: circulation.CardActive, Version: 4}
	request := circulation.BorrowRequest{ID: uuid.New(), Status: circulation.BorrowRequestExpired, Version: 2}
	changes := circulation.NewChangeSet()
	changes.UpdateCard(card)
	changes.UpdateRequest(request)

	// act
	statements, err := buildStatements(changes)

	// assert
	require.NoError(t, err)
	require.Len(t, statements, 2)

	assert.True(t, statements[0].versioned)
	assert.Contains(t, statements[0].sql, `UPDATE "library_cards"`)
	assert.Contains(t, statements[0].sql, `"version"=5`)
	assert.Contains(t, statements[0].sql, `("version" = 4)`)
	assert.Contains(t, statements[0].sql, card.ID.String())
	assert.Contains(t, statements[0].sql, `"user_id"=NULL`)

	assert.Contains(t, statements[1].sql, `UPDATE "borrow_requests"`)
	assert.Contains(t, statements[1].sql, `'Expired'`)
}

func Test_BuildStatements_Order(t *testing.T) {
	// arrange
	copyID := uuid.New()
	changes := circulation.NewChangeSet()
	changes.AddExtension(circulation.ExtensionHistory{ID: uuid.New(), TransactionCode: "EXT-1"})
	changes.SetCanBorrow(circulation.CanBorrowFlag{CatalogItemID: uuid.New(), CanBorrow: true})
	changes.AddCopy(circulation.NewCopy{
		Copy:      circulation.Copy{ID: copyID, Status: circulation.CopyOutOfShelf},
		Condition: circulation.ConditionHistory{ID: uuid.New(), CopyID: copyID, RecordedAt: time.Now()},
	})
	changes.DeleteCopy(circulation.Copy{ID: uuid.New(), Version: 3})

	// act
	statements, err := buildStatements(changes)

	// assert
	require.NoError(t, err)
	require.Len(t, statements, 5)

	entities := make([]string, 0, len(statements))
	for _, st := range statements {
		entities = append(entities, st.entity)
	}

	assert.Equal(t, []string{"copy", "condition history", "copy", "catalog item", "extension"}, entities)
	assert.Equal(t, circulation.CodeCopyEncumbered, statements[2].encumberedCode)
	assert.Contains(t, statements[2].sql, `DELETE FROM "book_copies"`)
	assert.Contains(t, statements[3].sql, `"version"=version + 1`)
	assert.False(t, statements[3].versioned)
}

func Test_TranslateExecError(t *testing.T) {
	copyID := uuid.New()
	deleteCopy := statement{entity: "copy", id: copyID, versioned: true, encumberedCode: circulation.CodeCopyEncumbered}
	insertBorrow := statement{entity: "digital borrow", id: uuid.New()}

	testCases := []struct {
		name     string
		err      error
		st       statement
		expected error
		business bool
	}{
		{
			name:     "pgx unique violation",
			err:      &pgconn.PgError{Code: sqlStateUniqueViolation},
			st:       insertBorrow,
			expected: circulation.ErrConcurrencyConflict,
		},
		{
			name:     "lib/pq unique violation",
			err:      &pq.Error{Code: sqlStateUniqueViolation},
			st:       insertBorrow,
			expected: circulation.ErrConcurrencyConflict,
		},
		{
			name:     "pgx foreign key violation on copy delete",
			err:      &pgconn.PgError{Code: sqlStateForeignKeyViolation},
			st:       deleteCopy,
			expected: circulation.ErrEncumbered,
			business: true,
		},
		{
			name:     "lib/pq foreign key violation on copy delete",
			err:      &pq.Error{Code: sqlStateForeignKeyViolation},
			st:       deleteCopy,
			expected: circulation.ErrEncumbered,
			business: true,
		},
		{
			name:     "foreign key violation without encumbrance meaning",
			err:      &pgconn.PgError{Code: sqlStateForeignKeyViolation},
			st:       insertBorrow,
			expected: circulation.ErrApplyingChangesFailed,
		},
		{
			name:     "anything else",
			err:      errors.New("connection reset by peer"),
			st:       deleteCopy,
			expected: circulation.ErrApplyingChangesFailed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			err := translateExecError(tc.err, tc.st)

			// assert
			assert.ErrorIs(t, err, tc.expected)
			assert.Equal(t, tc.business, circulation.IsBusinessOutcome(err))
		})
	}
}

func Test_Schema_CreatesEveryTable(t *testing.T) {
	for _, table := range []string{
		tableCatalogItems, tableCopies, tableConditionHistory, tableInventoryRecords, tablePackages, tableCards,
		tableBorrowRecords, tableBorrowRequests, tableTransactions, tableResources, tableDigitalBorrows,
		tableExtensionHistories, tableNotificationOutbox,
	} {
		assert.Contains(t, Schema(), "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}
