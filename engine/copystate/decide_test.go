package copystate_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
	"github.com/AntonStoeckl/circulation-consistency-go/engine/copystate"
	"github.com/AntonStoeckl/circulation-consistency-go/testutil/fixtures"
)

func snapshotOf(item circulation.CatalogItem, record circulation.InventoryRecord, views ...circulation.CopyView) copystate.Snapshot {
	return copystate.Snapshot{
		Copies:       views,
		CatalogItems: []circulation.CatalogItem{item},
		Records:      []circulation.InventoryRecord{record},
	}
}

func viewOf(catalogItemID uuid.UUID, status circulation.CopyStatus) circulation.CopyView {
	c, _ := fixtures.CopyOf(catalogItemID, status)
	return circulation.CopyView{Copy: c, ConditionEntries: 1}
}

func Test_DecideStatusUpdate_BorrowedAndReservedAreNeverDirectTargets(t *testing.T) {
	item := fixtures.ShelvedCatalogItem()
	record := circulation.InventoryRecord{CatalogItemID: item.ID, TotalCopies: 1}

	for _, target := range []circulation.CopyStatus{circulation.CopyBorrowed, circulation.CopyReserved} {
		for _, current := range []circulation.CopyStatus{
			circulation.CopyOutOfShelf, circulation.CopyInShelf, circulation.CopyBorrowed, circulation.CopyReserved,
		} {
			t.Run(current.String()+" to "+target.String(), func(t *testing.T) {
				// arrange
				view := viewOf(item.ID, current)

				// act
				decision := copystate.DecideStatusUpdate([]uuid.UUID{view.ID}, target, snapshotOf(item, record, view))

				// assert
				assert.ErrorIs(t, decision.HasError(), circulation.ErrConflictingState)
				assert.False(t, decision.HasChangesToApply())
			})
		}
	}
}

func Test_DecideStatusUpdate_ConflictMessageNamesBothStates(t *testing.T) {
	// arrange
	item := fixtures.ShelvedCatalogItem()
	view := viewOf(item.ID, circulation.CopyInShelf)

	// act
	decision := copystate.DecideStatusUpdate([]uuid.UUID{view.ID}, circulation.CopyBorrowed, snapshotOf(item, circulation.InventoryRecord{}, view))

	// assert
	var failure *circulation.Failure
	require.ErrorAs(t, decision.HasError(), &failure)
	assert.Equal(t, []any{"InShelf", "Borrowed"}, failure.Args)
}

func Test_DecideStatusUpdate_ShelvingEmitsPositiveDelta(t *testing.T) {
	// arrange
	item := fixtures.ShelvedCatalogItem()
	record := circulation.InventoryRecord{CatalogItemID: item.ID, TotalCopies: 2, AvailableCopies: 0, Version: 3}
	first := viewOf(item.ID, circulation.CopyOutOfShelf)
	second := viewOf(item.ID, circulation.CopyOutOfShelf)

	// act
	decision := copystate.DecideStatusUpdate(
		[]uuid.UUID{first.ID, second.ID}, circulation.CopyInShelf, snapshotOf(item, record, first, second),
	)

	// assert
	require.NoError(t, decision.HasError())
	require.True(t, decision.HasChangesToApply())
	assert.Len(t, decision.Changes.CopyUpdates, 2)
	require.Len(t, decision.Changes.InventoryUpdates, 1, "one inventory write per title")
	assert.Equal(t, 2, decision.Changes.InventoryUpdates[0].AvailableCopies)
	require.Len(t, decision.Changes.CanBorrowFlags, 1)
	assert.True(t, decision.Changes.CanBorrowFlags[0].CanBorrow)
	assert.Equal(t, circulation.CodeCopiesUpdated, decision.Result.Code)
	assert.Equal(t, []any{2}, decision.Result.Args)
}

func Test_DecideStatusUpdate_SameStatusIsIdempotent(t *testing.T) {
	// arrange
	item := fixtures.ShelvedCatalogItem()
	view := viewOf(item.ID, circulation.CopyInShelf)
	view.OpenBorrowRequests = 1

	// act
	decision := copystate.DecideStatusUpdate([]uuid.UUID{view.ID}, circulation.CopyInShelf, snapshotOf(item, circulation.InventoryRecord{}, view))

	// assert
	assert.NoError(t, decision.HasError())
	assert.True(t, decision.IsIdempotent())
}

func Test_DecideStatusUpdate_CollectsEveryViolationPerCopy(t *testing.T) {
	// arrange
	item := fixtures.UnshelvedCatalogItem()
	record := circulation.InventoryRecord{CatalogItemID: item.ID, TotalCopies: 3}
	ok := viewOf(item.ID, circulation.CopyInShelf)
	encumbered := viewOf(item.ID, circulation.CopyOutOfShelf)
	encumbered.OpenBorrowRecords = 1
	missing := uuid.New()

	// act
	decision := copystate.DecideStatusUpdate(
		[]uuid.UUID{ok.ID, encumbered.ID, missing}, circulation.CopyInShelf, snapshotOf(item, record, ok, encumbered),
	)

	// assert
	var batch *circulation.BatchFailure
	require.ErrorAs(t, decision.HasError(), &batch)
	assert.Equal(t, circulation.CodeBatchRejected, batch.Code)
	assert.Len(t, batch.Items[encumbered.ID], 2, "encumbered and missing placement")
	assert.ErrorIs(t, batch.Items[missing][0], circulation.ErrNotFound)
	assert.NotContains(t, batch.Items, ok.ID)
	assert.False(t, decision.HasChangesToApply())
}

func Test_DecideSoftDelete_ShelvedCopyLeavesBothCounters(t *testing.T) {
	// arrange
	item := fixtures.ShelvedCatalogItem()
	record := circulation.InventoryRecord{CatalogItemID: item.ID, TotalCopies: 1, AvailableCopies: 1}
	view := viewOf(item.ID, circulation.CopyInShelf)

	// act
	decision := copystate.DecideSoftDelete([]uuid.UUID{view.ID}, snapshotOf(item, record, view))

	// assert
	require.True(t, decision.HasChangesToApply())
	assert.True(t, decision.Changes.CopyUpdates[0].IsDeleted)
	assert.Equal(t, circulation.CopyOutOfShelf, decision.Changes.CopyUpdates[0].Status)
	assert.Equal(t, 0, decision.Changes.InventoryUpdates[0].TotalCopies)
	assert.Equal(t, 0, decision.Changes.InventoryUpdates[0].AvailableCopies)
	assert.False(t, decision.Changes.CanBorrowFlags[0].CanBorrow)
	assert.Equal(t, circulation.CodeCopySoftDeleted, decision.Result.Code)
}

func Test_DecideHardDelete_Guards(t *testing.T) {
	item := fixtures.ShelvedCatalogItem()
	record := circulation.InventoryRecord{CatalogItemID: item.ID}

	testCases := []struct {
		name     string
		mutate   func(*circulation.CopyView)
		wantErr  error
		wantCode circulation.Code
	}{
		{
			name:     "not in trash",
			mutate:   func(v *circulation.CopyView) { v.IsDeleted = false },
			wantErr:  circulation.ErrConflictingState,
			wantCode: circulation.CodeCopyDeletionConflict,
		},
		{
			name:     "dependent condition history",
			mutate:   func(v *circulation.CopyView) { v.ConditionEntries = 2 },
			wantErr:  circulation.ErrEncumbered,
			wantCode: circulation.CodeCopyHasDependentHistory,
		},
		{
			name:     "open request",
			mutate:   func(v *circulation.CopyView) { v.OpenBorrowRequests = 1 },
			wantErr:  circulation.ErrEncumbered,
			wantCode: circulation.CodeCopyEncumbered,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			view := viewOf(item.ID, circulation.CopyOutOfShelf)
			view.IsDeleted = true
			tc.mutate(&view)

			// act
			decision := copystate.DecideHardDelete([]uuid.UUID{view.ID}, snapshotOf(item, record, view))

			// assert
			var failure *circulation.Failure
			require.ErrorAs(t, decision.HasError(), &failure)
			assert.ErrorIs(t, failure, tc.wantErr)
			assert.Equal(t, tc.wantCode, failure.Code)
		})
	}
}

func Test_DecideHardDelete_LeavesInventoryAlone(t *testing.T) {
	// arrange
	item := fixtures.ShelvedCatalogItem()
	view := viewOf(item.ID, circulation.CopyOutOfShelf)
	view.IsDeleted = true

	// act
	decision := copystate.DecideHardDelete([]uuid.UUID{view.ID}, snapshotOf(item, circulation.InventoryRecord{CatalogItemID: item.ID}, view))

	// assert
	require.True(t, decision.HasChangesToApply())
	assert.Len(t, decision.Changes.CopyDeletes, 1)
	assert.Empty(t, decision.Changes.InventoryUpdates)
}

func Test_DecideAddCopies_Validation(t *testing.T) {
	// arrange
	item := fixtures.ShelvedCatalogItem()
	existing, _ := fixtures.CopyOf(item.ID, circulation.CopyInShelf)
	command := copystate.BuildAddCopiesCommand(item.ID, []string{existing.Barcode, "", "B-2", "B-2"}, "", "")

	// act
	decision := copystate.DecideAddCopies(command, copystate.AddCopiesSnapshot{
		CatalogItem: &item,
		Existing:    []circulation.Copy{existing},
	}, time.Now(), uuid.New)

	// assert
	var failure *circulation.Failure
	require.ErrorAs(t, decision.HasError(), &failure)
	assert.ErrorIs(t, failure, circulation.ErrValidationFailed)
	assert.ElementsMatch(t, []circulation.Code{
		circulation.CodeFieldDuplicate, circulation.CodeFieldRequired, circulation.CodeFieldDuplicate,
	}, failure.Fields["barcodes"])
}

func Test_DecideAddCopies_MissingRecordWithExistingCopies(t *testing.T) {
	// arrange
	item := fixtures.ShelvedCatalogItem()
	existing, _ := fixtures.CopyOf(item.ID, circulation.CopyOutOfShelf)

	// act
	decision := copystate.DecideAddCopies(
		copystate.BuildAddCopiesCommand(item.ID, []string{"B-1"}, "good", ""),
		copystate.AddCopiesSnapshot{CatalogItem: &item, Existing: []circulation.Copy{existing}},
		time.Now(),
		uuid.New,
	)

	// assert
	assert.ErrorIs(t, decision.HasError(), circulation.ErrInventoryMissing)
}
