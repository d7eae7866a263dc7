package circulation

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// InventoryRecord is the denormalized availability counter of one catalog title.
// Invariant: 0 <= AvailableCopies <= TotalCopies.
type InventoryRecord struct {
	CatalogItemID   uuid.UUID
	TotalCopies     int
	AvailableCopies int
	Version         Version
}

// CanBorrow is the flag mirrored onto the CatalogItem whenever AvailableCopies changes.
func (r InventoryRecord) CanBorrow() bool {
	return r.AvailableCopies > 0
}

// Apply returns the record with both deltas applied, or ErrInventoryInvariant if the result breaks the invariant.
func (r InventoryRecord) Apply(availableDelta, totalDelta int) (InventoryRecord, error) {
	next := r
	next.AvailableCopies += availableDelta
	next.TotalCopies += totalDelta

	if next.AvailableCopies < 0 || next.TotalCopies < 0 || next.AvailableCopies > next.TotalCopies {
		return r, errors.Join(
			ErrInventoryInvariant,
			fmt.Errorf(
				"catalog item %s: available %d%+d, total %d%+d",
				r.CatalogItemID, r.AvailableCopies, availableDelta, r.TotalCopies, totalDelta,
			),
		)
	}

	return next, nil
}

// CanBorrowFlag is the CatalogItem.CanBorrow write that accompanies an inventory change.
type CanBorrowFlag struct {
	CatalogItemID uuid.UUID
	CanBorrow     bool
}
