package inventory

import (
	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
	"github.com/AntonStoeckl/circulation-consistency-go/engine/shell"
)

// Count is the result of a full scan of a title's copies.
type Count struct {
	Total     int
	Available int
}

// CountCopies counts the copies that are not soft-deleted, and of those the ones InShelf.
func CountCopies(copies []circulation.Copy) Count {
	var count Count

	for _, c := range copies {
		if c.IsDeleted {
			continue
		}

		count.Total++

		if c.Status.IsInShelf() {
			count.Available++
		}
	}

	return count
}

// DecideRecount compares the stored counters of a title with a fresh count and repairs any drift,
// including a CanBorrow flag that disagrees with the record.
func DecideRecount(
	item circulation.CatalogItem,
	record *circulation.InventoryRecord,
	copies []circulation.Copy,
) shell.Decision {
	count := CountCopies(copies)

	if record == nil {
		if count.Total == 0 {
			return shell.IdempotentDecision(circulation.Outcome{Code: circulation.CodeNoChanges})
		}

		return shell.ErrorDecision(circulation.InventoryMissing(item.ID))
	}

	changes := circulation.NewChangeSet()

	if record.TotalCopies != count.Total || record.AvailableCopies != count.Available {
		next := *record
		next.TotalCopies = count.Total
		next.AvailableCopies = count.Available
		changes.UpdateInventoryRecord(next)
	}

	if canBorrow := count.Available > 0; item.CanBorrow != canBorrow {
		changes.SetCanBorrow(circulation.CanBorrowFlag{CatalogItemID: item.ID, CanBorrow: canBorrow})
	}

	if changes.IsEmpty() {
		return shell.IdempotentDecision(circulation.Outcome{Code: circulation.CodeNoChanges})
	}

	return shell.SuccessDecision(changes, circulation.Outcome{
		Code: circulation.CodeInventoryRecomputed,
	})
}
