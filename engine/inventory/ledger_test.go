package inventory_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
	"github.com/AntonStoeckl/circulation-consistency-go/engine/inventory"
)

func Test_Ledger_Stage_SumsDeltasIntoOneWritePerTitle(t *testing.T) {
	// arrange
	catalogItemID := uuid.New()
	ledger := inventory.NewLedger([]circulation.InventoryRecord{
		{CatalogItemID: catalogItemID, TotalCopies: 5, AvailableCopies: 0, Version: 7},
	})

	// act
	ledger.ApplyDelta(catalogItemID, +1, 0)
	ledger.ApplyDelta(catalogItemID, +1, 0)
	ledger.ApplyDelta(catalogItemID, +1, 0)
	changes := circulation.NewChangeSet()
	err := ledger.Stage(changes)

	// assert
	require.NoError(t, err)
	require.Len(t, changes.InventoryUpdates, 1)
	assert.Equal(t, 3, changes.InventoryUpdates[0].AvailableCopies)
	assert.Equal(t, int64(7), changes.InventoryUpdates[0].Version, "the read version is carried for the version check")
	require.Len(t, changes.CanBorrowFlags, 1)
	assert.True(t, changes.CanBorrowFlags[0].CanBorrow)
}

func Test_Ledger_Stage_ChecksInvariantOnTheSumOnly(t *testing.T) {
	// arrange
	catalogItemID := uuid.New()
	ledger := inventory.NewLedger([]circulation.InventoryRecord{
		{CatalogItemID: catalogItemID, TotalCopies: 2, AvailableCopies: 2, Version: 1},
	})

	// act
	ledger.ApplyDelta(catalogItemID, +1, 0)
	ledger.ApplyDelta(catalogItemID, -1, 0)
	changes := circulation.NewChangeSet()
	err := ledger.Stage(changes)

	// assert
	require.NoError(t, err)
	assert.True(t, changes.IsEmpty(), "deltas that cancel out write nothing")
}

func Test_Ledger_Stage_Failures(t *testing.T) {
	catalogItemID := uuid.New()

	testCases := []struct {
		name      string
		records   []circulation.InventoryRecord
		available int
		total     int
		wantErr   error
	}{
		{
			name:      "missing record",
			available: +1,
			wantErr:   circulation.ErrInventoryMissing,
		},
		{
			name:      "available below zero",
			records:   []circulation.InventoryRecord{{CatalogItemID: catalogItemID, TotalCopies: 1}},
			available: -1,
			wantErr:   circulation.ErrInventoryInvariant,
		},
		{
			name:      "available above total",
			records:   []circulation.InventoryRecord{{CatalogItemID: catalogItemID, TotalCopies: 1, AvailableCopies: 1}},
			available: +1,
			wantErr:   circulation.ErrInventoryInvariant,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			ledger := inventory.NewLedger(tc.records)
			ledger.ApplyDelta(catalogItemID, tc.available, tc.total)
			changes := circulation.NewChangeSet()

			// act
			err := ledger.Stage(changes)

			// assert
			assert.ErrorIs(t, err, tc.wantErr)
			assert.False(t, circulation.IsBusinessOutcome(err), "inventory failures abort the transaction")
			assert.True(t, changes.IsEmpty())
		})
	}
}

func Test_Ledger_Create_InsertsRecordWithFlag(t *testing.T) {
	// arrange
	catalogItemID := uuid.New()
	ledger := inventory.NewLedger(nil)

	// act
	ledger.Create(catalogItemID)
	ledger.ApplyDelta(catalogItemID, 0, +3)
	changes := circulation.NewChangeSet()
	err := ledger.Stage(changes)

	// assert
	require.NoError(t, err)
	require.Len(t, changes.NewInventoryRecords, 1)
	assert.Equal(t, 3, changes.NewInventoryRecords[0].TotalCopies)
	assert.Equal(t, 0, changes.NewInventoryRecords[0].AvailableCopies)
	assert.Empty(t, changes.InventoryUpdates)
	require.Len(t, changes.CanBorrowFlags, 1)
	assert.False(t, changes.CanBorrowFlags[0].CanBorrow)
}
