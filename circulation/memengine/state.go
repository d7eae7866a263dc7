package memengine

import (
	"maps"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
)

type memoryState struct {
	catalogItems   map[uuid.UUID]circulation.CatalogItem
	copies         map[uuid.UUID]circulation.Copy
	conditions     map[uuid.UUID][]circulation.ConditionHistory
	borrowRecords  map[uuid.UUID]circulation.BorrowRecord
	borrowRequests map[uuid.UUID]circulation.BorrowRequest
	inventory      map[uuid.UUID]circulation.InventoryRecord
	cards          map[uuid.UUID]circulation.LibraryCard
	packages       map[uuid.UUID]circulation.Package
	resources      map[uuid.UUID]circulation.DigitalResource
	digitalBorrows map[uuid.UUID]circulation.DigitalBorrow
	extensions     map[uuid.UUID]circulation.ExtensionHistory
	transactions   map[string]circulation.Transaction
}

func newMemoryState() memoryState {
	return memoryState{
		catalogItems:   map[uuid.UUID]circulation.CatalogItem{},
		copies:         map[uuid.UUID]circulation.Copy{},
		conditions:     map[uuid.UUID][]circulation.ConditionHistory{},
		borrowRecords:  map[uuid.UUID]circulation.BorrowRecord{},
		borrowRequests: map[uuid.UUID]circulation.BorrowRequest{},
		inventory:      map[uuid.UUID]circulation.InventoryRecord{},
		cards:          map[uuid.UUID]circulation.LibraryCard{},
		packages:       map[uuid.UUID]circulation.Package{},
		resources:      map[uuid.UUID]circulation.DigitalResource{},
		digitalBorrows: map[uuid.UUID]circulation.DigitalBorrow{},
		extensions:     map[uuid.UUID]circulation.ExtensionHistory{},
		transactions:   map[string]circulation.Transaction{},
	}
}

// clone returns a copy that can be mutated without affecting s.
// Condition slices are shared until written, writers always replace them.
func (s memoryState) clone() memoryState {
	return memoryState{
		catalogItems:   maps.Clone(s.catalogItems),
		copies:         maps.Clone(s.copies),
		conditions:     maps.Clone(s.conditions),
		borrowRecords:  maps.Clone(s.borrowRecords),
		borrowRequests: maps.Clone(s.borrowRequests),
		inventory:      maps.Clone(s.inventory),
		cards:          maps.Clone(s.cards),
		packages:       maps.Clone(s.packages),
		resources:      maps.Clone(s.resources),
		digitalBorrows: maps.Clone(s.digitalBorrows),
		extensions:     maps.Clone(s.extensions),
		transactions:   maps.Clone(s.transactions),
	}
}

func (s memoryState) copyView(c circulation.Copy) circulation.CopyView {
	view := circulation.CopyView{Copy: c, ConditionEntries: len(s.conditions[c.ID])}

	for _, record := range s.borrowRecords {
		if record.CopyID == c.ID && record.Status.Encumbers() {
			view.OpenBorrowRecords++
		}
	}

	for _, request := range s.borrowRequests {
		if request.CopyID == c.ID && request.Status.Encumbers() {
			view.OpenBorrowRequests++
		}
	}

	return view
}

// isReferenced mirrors the foreign keys of borrow_records and borrow_requests, which do not cascade.
func (s memoryState) isReferenced(copyID uuid.UUID) bool {
	for _, record := range s.borrowRecords {
		if record.CopyID == copyID {
			return true
		}
	}

	for _, request := range s.borrowRequests {
		if request.CopyID == copyID {
			return true
		}
	}

	return false
}
