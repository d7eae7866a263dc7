package circulation_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
)

func Test_InventoryRecord_Apply(t *testing.T) {
	record := circulation.InventoryRecord{CatalogItemID: uuid.New(), TotalCopies: 3, AvailableCopies: 1, Version: 4}

	testCases := []struct {
		name           string
		availableDelta int
		totalDelta     int
		wantAvailable  int
		wantTotal      int
		wantErr        bool
	}{
		{name: "copy shelved", availableDelta: 1, wantAvailable: 2, wantTotal: 3},
		{name: "copy taken off shelf", availableDelta: -1, wantAvailable: 0, wantTotal: 3},
		{name: "shelved copy soft deleted", availableDelta: -1, totalDelta: -1, wantAvailable: 0, wantTotal: 2},
		{name: "copy restored", totalDelta: 1, wantAvailable: 1, wantTotal: 4},
		{name: "available below zero", availableDelta: -2, wantErr: true},
		{name: "available above total", availableDelta: 3, wantErr: true},
		{name: "total below available", totalDelta: -3, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			next, err := record.Apply(tc.availableDelta, tc.totalDelta)

			// assert
			if tc.wantErr {
				assert.ErrorIs(t, err, circulation.ErrInventoryInvariant)
				assert.Equal(t, record, next)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantAvailable, next.AvailableCopies)
			assert.Equal(t, tc.wantTotal, next.TotalCopies)
			assert.Equal(t, record.Version, next.Version, "the version is bumped by the store, not by Apply")
		})
	}
}

func Test_InventoryRecord_CanBorrow(t *testing.T) {
	assert.False(t, circulation.InventoryRecord{TotalCopies: 2}.CanBorrow())
	assert.True(t, circulation.InventoryRecord{TotalCopies: 2, AvailableCopies: 1}.CanBorrow())
}
