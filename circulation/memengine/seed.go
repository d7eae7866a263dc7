package memengine

import (
	"slices"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
)

// The Put methods seed rows as they are, including their version, bypassing all checks.
// The getters return the current row and whether it exists.

func (s *Store) PutCatalogItem(item circulation.CatalogItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.catalogItems[item.ID] = item
}

// PutCopy seeds a copy together with its condition history.
func (s *Store) PutCopy(c circulation.Copy, conditions ...circulation.ConditionHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.copies[c.ID] = c
	s.state.conditions[c.ID] = append([]circulation.ConditionHistory(nil), conditions...)
}

func (s *Store) PutInventoryRecord(record circulation.InventoryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.inventory[record.CatalogItemID] = record
}

func (s *Store) PutBorrowRecord(record circulation.BorrowRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.borrowRecords[record.ID] = record
}

func (s *Store) PutBorrowRequest(request circulation.BorrowRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.borrowRequests[request.ID] = request
}

func (s *Store) PutCard(card circulation.LibraryCard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.cards[card.ID] = card
}

func (s *Store) PutPackage(pkg circulation.Package) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.packages[pkg.ID] = pkg
}

func (s *Store) PutResource(resource circulation.DigitalResource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.resources[resource.ID] = resource
}

func (s *Store) PutDigitalBorrow(borrow circulation.DigitalBorrow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.digitalBorrows[borrow.ID] = borrow
}

func (s *Store) PutTransaction(tx circulation.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.transactions[tx.Code] = tx
}

func (s *Store) Copy(id uuid.UUID) (circulation.Copy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.copies[id]
	return c, ok
}

func (s *Store) ConditionEntries(copyID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.conditions[copyID])
}

func (s *Store) CatalogItem(id uuid.UUID) (circulation.CatalogItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.state.catalogItems[id]
	return item, ok
}

func (s *Store) InventoryRecord(catalogItemID uuid.UUID) (circulation.InventoryRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.state.inventory[catalogItemID]
	return record, ok
}

func (s *Store) Card(id uuid.UUID) (circulation.LibraryCard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	card, ok := s.state.cards[id]
	return card, ok
}

func (s *Store) BorrowRequest(id uuid.UUID) (circulation.BorrowRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	request, ok := s.state.borrowRequests[id]
	return request, ok
}

func (s *Store) DigitalBorrow(id uuid.UUID) (circulation.DigitalBorrow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	borrow, ok := s.state.digitalBorrows[id]
	return borrow, ok
}

func (s *Store) Transaction(code string) (circulation.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.state.transactions[code]
	return tx, ok
}

// Extensions returns the extension history of a digital borrow, oldest first.
func (s *Store) Extensions(digitalBorrowID uuid.UUID) []circulation.ExtensionHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var extensions []circulation.ExtensionHistory
	for _, e := range s.state.extensions {
		if e.DigitalBorrowID == digitalBorrowID {
			extensions = append(extensions, e)
		}
	}

	slices.SortFunc(extensions, func(a, b circulation.ExtensionHistory) int {
		return a.ExtensionNumber - b.ExtensionNumber
	})

	return extensions
}
