package memengine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
)

// Store is an in-memory circulation.Store and circulation.PaymentLookup.
type Store struct {
	mu         sync.RWMutex
	state      memoryState
	applyCount int
	applyErrs  []error
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{state: newMemoryState()}
}

func byID[T any](id func(T) uuid.UUID) func(a, b T) int {
	return func(a, b T) int {
		return strings.Compare(id(a).String(), id(b).String())
	}
}

func (s *Store) CopiesByIDs(_ context.Context, ids []uuid.UUID) ([]circulation.CopyView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]circulation.CopyView, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.state.copies[id]; ok {
			views = append(views, s.state.copyView(c))
		}
	}

	return views, nil
}

func (s *Store) CopiesOfCatalogItem(_ context.Context, catalogItemID uuid.UUID) ([]circulation.Copy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var copies []circulation.Copy
	for _, c := range s.state.copies {
		if c.CatalogItemID == catalogItemID {
			copies = append(copies, c)
		}
	}

	slices.SortFunc(copies, byID(func(c circulation.Copy) uuid.UUID { return c.ID }))

	return copies, nil
}

func (s *Store) CatalogItemsByIDs(_ context.Context, ids []uuid.UUID) ([]circulation.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]circulation.CatalogItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := s.state.catalogItems[id]; ok {
			items = append(items, item)
		}
	}

	return items, nil
}

func (s *Store) InventoryRecordsByCatalogItems(
	_ context.Context,
	catalogItemIDs []uuid.UUID,
) ([]circulation.InventoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]circulation.InventoryRecord, 0, len(catalogItemIDs))
	for _, id := range catalogItemIDs {
		if record, ok := s.state.inventory[id]; ok {
			records = append(records, record)
		}
	}

	return records, nil
}

func (s *Store) CardByID(_ context.Context, id uuid.UUID) (circulation.LibraryCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	card, ok := s.state.cards[id]
	if !ok {
		return circulation.LibraryCard{}, circulation.ErrNotFound
	}

	return card, nil
}

func (s *Store) CardsByIDs(_ context.Context, ids []uuid.UUID) ([]circulation.LibraryCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cards := make([]circulation.LibraryCard, 0, len(ids))
	for _, id := range ids {
		if card, ok := s.state.cards[id]; ok {
			cards = append(cards, card)
		}
	}

	return cards, nil
}

func (s *Store) PackageByID(_ context.Context, id uuid.UUID) (circulation.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pkg, ok := s.state.packages[id]
	if !ok {
		return circulation.Package{}, circulation.ErrNotFound
	}

	return pkg, nil
}

func (s *Store) CardsDueForExpiry(_ context.Context, now time.Time) ([]circulation.LibraryCard, error) {
	return s.filterCards(func(c circulation.LibraryCard) bool {
		return c.Status == circulation.CardActive && !c.ExpiryDate.IsZero() && !c.ExpiryDate.After(now)
	}), nil
}

func (s *Store) CardsDueForUnsuspension(_ context.Context, now time.Time) ([]circulation.LibraryCard, error) {
	return s.filterCards(func(c circulation.LibraryCard) bool {
		return c.Status == circulation.CardSuspended && c.SuspensionEndDate != nil && !c.SuspensionEndDate.After(now)
	}), nil
}

func (s *Store) filterCards(keep func(circulation.LibraryCard) bool) []circulation.LibraryCard {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cards []circulation.LibraryCard
	for _, card := range s.state.cards {
		if keep(card) {
			cards = append(cards, card)
		}
	}

	slices.SortFunc(cards, byID(func(c circulation.LibraryCard) uuid.UUID { return c.ID }))

	return cards
}

func (s *Store) RequestsDueForExpiry(_ context.Context, now time.Time) ([]circulation.BorrowRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var requests []circulation.BorrowRequest
	for _, request := range s.state.borrowRequests {
		if request.Status == circulation.BorrowRequestCreated && !request.ExpirationDate.After(now) {
			requests = append(requests, request)
		}
	}

	slices.SortFunc(requests, byID(func(r circulation.BorrowRequest) uuid.UUID { return r.ID }))

	return requests, nil
}

func (s *Store) ResourceByID(_ context.Context, id uuid.UUID) (circulation.DigitalResource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resource, ok := s.state.resources[id]
	if !ok {
		return circulation.DigitalResource{}, circulation.ErrNotFound
	}

	return resource, nil
}

func (s *Store) DigitalBorrowByID(_ context.Context, id uuid.UUID) (circulation.DigitalBorrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	borrow, ok := s.state.digitalBorrows[id]
	if !ok {
		return circulation.DigitalBorrow{}, circulation.ErrNotFound
	}

	return borrow, nil
}

func (s *Store) DigitalBorrowByTransactionCode(_ context.Context, code string) (circulation.DigitalBorrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, borrow := range s.state.digitalBorrows {
		if borrow.TransactionCode == code {
			return borrow, nil
		}
	}

	return circulation.DigitalBorrow{}, circulation.ErrNotFound
}

func (s *Store) ExtensionByTransactionCode(_ context.Context, code string) (circulation.ExtensionHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, extension := range s.state.extensions {
		if extension.TransactionCode == code {
			return extension, nil
		}
	}

	return circulation.ExtensionHistory{}, circulation.ErrNotFound
}

// FindPaid implements circulation.PaymentLookup over the seeded transactions.
func (s *Store) FindPaid(_ context.Context, query circulation.PaymentQuery) (circulation.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.state.transactions[query.Code]
	if !ok || tx.Status != circulation.TransactionPaid {
		return circulation.Transaction{}, circulation.ErrNotFound
	}

	return tx, nil
}

// FailNextApply makes the next Apply calls fail with errs, one per call, without writing anything.
func (s *Store) FailNextApply(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.applyErrs = append(s.applyErrs, errs...)
}

// Apply implements circulation.Applier.
func (s *Store) Apply(ctx context.Context, changes *circulation.ChangeSet) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.applyErrs) > 0 {
		err := s.applyErrs[0]
		s.applyErrs = s.applyErrs[1:]

		return 0, err
	}

	next := s.state.clone()

	rows, err := apply(&next, changes)
	if err != nil {
		return 0, err
	}

	s.state = next
	s.applyCount++

	return rows, nil
}

// ApplyCount returns how many ChangeSets were committed.
func (s *Store) ApplyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.applyCount
}

//nolint:gocognit,funlen
func apply(state *memoryState, changes *circulation.ChangeSet) (int64, error) {
	var rows int64

	for _, nc := range changes.NewCopies {
		if _, exists := state.copies[nc.Copy.ID]; exists {
			return 0, errors.Join(circulation.ErrApplyingChangesFailed, fmt.Errorf("copy %s already exists", nc.Copy.ID))
		}

		c := nc.Copy
		c.Version = 1
		state.copies[c.ID] = c
		state.conditions[c.ID] = []circulation.ConditionHistory{nc.Condition}
		rows += 2
	}

	for _, c := range changes.CopyUpdates {
		stored, ok := state.copies[c.ID]
		if !ok || stored.Version != c.Version {
			return 0, conflict("copy", c.ID)
		}

		c.Version++
		state.copies[c.ID] = c
		rows++
	}

	for _, c := range changes.CopyDeletes {
		stored, ok := state.copies[c.ID]
		if !ok || stored.Version != c.Version {
			return 0, conflict("copy", c.ID)
		}

		if state.isReferenced(c.ID) {
			return 0, circulation.Encumbered(circulation.CodeCopyEncumbered, "copy", c.ID)
		}

		delete(state.copies, c.ID)
		delete(state.conditions, c.ID)
		rows++
	}

	for _, r := range changes.NewInventoryRecords {
		if _, exists := state.inventory[r.CatalogItemID]; exists {
			return 0, conflict("inventory record", r.CatalogItemID)
		}

		r.Version = 1
		state.inventory[r.CatalogItemID] = r
		rows++
	}

	for _, r := range changes.InventoryUpdates {
		stored, ok := state.inventory[r.CatalogItemID]
		if !ok || stored.Version != r.Version {
			return 0, conflict("inventory record", r.CatalogItemID)
		}

		r.Version++
		state.inventory[r.CatalogItemID] = r
		rows++
	}

	for _, f := range changes.CanBorrowFlags {
		item, ok := state.catalogItems[f.CatalogItemID]
		if !ok {
			continue
		}

		item.CanBorrow = f.CanBorrow
		item.Version++
		state.catalogItems[f.CatalogItemID] = item
		rows++
	}

	for _, c := range changes.CardUpdates {
		stored, ok := state.cards[c.ID]
		if !ok || stored.Version != c.Version {
			return 0, conflict("library card", c.ID)
		}

		c.Version++
		state.cards[c.ID] = c
		rows++
	}

	for _, r := range changes.RequestUpdates {
		stored, ok := state.borrowRequests[r.ID]
		if !ok || stored.Version != r.Version {
			return 0, conflict("borrow request", r.ID)
		}

		r.Version++
		state.borrowRequests[r.ID] = r
		rows++
	}

	for _, tx := range changes.NewTransactions {
		if _, exists := state.transactions[tx.Code]; exists {
			return 0, conflict("transaction", uuid.Nil)
		}

		state.transactions[tx.Code] = tx
		rows++
	}

	for _, b := range changes.NewDigitalBorrows {
		for _, existing := range state.digitalBorrows {
			if existing.TransactionCode == b.TransactionCode {
				return 0, conflict("digital borrow", b.ID)
			}
		}

		b.Version = 1
		state.digitalBorrows[b.ID] = b
		rows++
	}

	for _, b := range changes.DigitalBorrowUpdates {
		stored, ok := state.digitalBorrows[b.ID]
		if !ok || stored.Version != b.Version {
			return 0, conflict("digital borrow", b.ID)
		}

		b.Version++
		state.digitalBorrows[b.ID] = b
		rows++
	}

	for _, e := range changes.NewExtensions {
		for _, existing := range state.extensions {
			if existing.TransactionCode == e.TransactionCode {
				return 0, conflict("extension", e.ID)
			}
		}

		state.extensions[e.ID] = e
		rows++
	}

	return rows, nil
}

// conflict reports a failed version check or a lost insert race. Both are resolved by re-reading.
func conflict(entity string, id uuid.UUID) error {
	return errors.Join(circulation.ErrConcurrencyConflict, fmt.Errorf("%s %s was changed concurrently", entity, id))
}
