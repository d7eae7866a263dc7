package inventory

import (
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
)

// Delta is a signed change of the two counters of one catalog item.
type Delta struct {
	Available int
	Total     int
}

// Ledger accumulates deltas against the inventory records an operation has read.
type Ledger struct {
	records map[uuid.UUID]circulation.InventoryRecord
	created map[uuid.UUID]bool
	deltas  map[uuid.UUID]Delta
}

// NewLedger starts a Ledger over the records read for the current operation.
func NewLedger(records []circulation.InventoryRecord) *Ledger {
	ledger := &Ledger{
		records: make(map[uuid.UUID]circulation.InventoryRecord, len(records)),
		created: make(map[uuid.UUID]bool),
		deltas:  make(map[uuid.UUID]Delta),
	}

	for _, record := range records {
		ledger.records[record.CatalogItemID] = record
	}

	return ledger
}

// Create registers an empty record for a title that gets its first copies in this operation.
// It is a no-op if a record was read for the title.
func (l *Ledger) Create(catalogItemID uuid.UUID) {
	if _, ok := l.records[catalogItemID]; ok {
		return
	}

	l.records[catalogItemID] = circulation.InventoryRecord{CatalogItemID: catalogItemID}
	l.created[catalogItemID] = true
}

// Has reports whether a record exists, or was created, for the title.
func (l *Ledger) Has(catalogItemID uuid.UUID) bool {
	_, ok := l.records[catalogItemID]
	return ok
}

// ApplyDelta adds a signed delta for the title. Deltas of one operation are summed per title.
func (l *Ledger) ApplyDelta(catalogItemID uuid.UUID, availableDelta, totalDelta int) {
	d := l.deltas[catalogItemID]
	d.Available += availableDelta
	d.Total += totalDelta
	l.deltas[catalogItemID] = d
}

// Pending returns the summed delta of the title.
func (l *Ledger) Pending(catalogItemID uuid.UUID) Delta {
	return l.deltas[catalogItemID]
}

// Stage writes one record change per title into changes, in a stable order.
//
// A title without a record fails with an InventoryMissing failure, a sum that would break
// 0 <= available <= total fails with circulation.ErrInventoryInvariant. Both abort the operation.
// The CanBorrow flag is staged whenever the available counter changes.
func (l *Ledger) Stage(changes *circulation.ChangeSet) error {
	ids := make([]uuid.UUID, 0, len(l.deltas))
	for id := range l.deltas {
		ids = append(ids, id)
	}

	slices.SortFunc(ids, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })

	for _, id := range ids {
		delta := l.deltas[id]
		if delta == (Delta{}) && !l.created[id] {
			continue
		}

		record, ok := l.records[id]
		if !ok {
			return circulation.InventoryMissing(id)
		}

		next, err := record.Apply(delta.Available, delta.Total)
		if err != nil {
			return err
		}

		if l.created[id] {
			changes.AddInventoryRecord(next)
		} else {
			changes.UpdateInventoryRecord(next)
		}

		if delta.Available != 0 || l.created[id] {
			changes.SetCanBorrow(circulation.CanBorrowFlag{CatalogItemID: id, CanBorrow: next.CanBorrow()})
		}
	}

	return nil
}
