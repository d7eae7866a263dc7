package inventory

import (
	"context"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
	"github.com/AntonStoeckl/circulation-consistency-go/engine/shell"
)

const (
	commandTypeRecompute = "inventory_recompute"
)

// Store defines the reads the Service needs.
type Store interface {
	CatalogItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]circulation.CatalogItem, error)
	CopiesOfCatalogItem(ctx context.Context, catalogItemID uuid.UUID) ([]circulation.Copy, error)
	InventoryRecordsByCatalogItems(ctx context.Context, catalogItemIDs []uuid.UUID) ([]circulation.InventoryRecord, error)
}

// Service runs the inventory operations that are not part of a copy change.
type Service struct {
	store  Store
	runner *shell.Runner
}

// NewService creates a Service reading from store and committing through runner.
func NewService(store Store, runner *shell.Runner) (*Service, error) {
	if store == nil || runner == nil {
		return nil, circulation.ErrNilDatabaseConnection
	}

	return &Service{store: store, runner: runner}, nil
}

// Recompute recounts the copies of a title and repairs its counters in a separate commit.
func (s *Service) Recompute(ctx context.Context, catalogItemID uuid.UUID) (shell.HandlerResult, error) {
	return s.runner.Run(ctx, commandTypeRecompute, func(ctx context.Context) (shell.Decision, error) {
		items, err := s.store.CatalogItemsByIDs(ctx, []uuid.UUID{catalogItemID})
		if err != nil {
			return shell.Decision{}, err
		}

		if len(items) == 0 {
			return shell.ErrorDecision(
				circulation.NotFound(circulation.CodeCatalogItemNotFound, "catalog item", catalogItemID),
			), nil
		}

		records, err := s.store.InventoryRecordsByCatalogItems(ctx, []uuid.UUID{catalogItemID})
		if err != nil {
			return shell.Decision{}, err
		}

		copies, err := s.store.CopiesOfCatalogItem(ctx, catalogItemID)
		if err != nil {
			return shell.Decision{}, err
		}

		var record *circulation.InventoryRecord
		if len(records) > 0 {
			record = &records[0]
		}

		return DecideRecount(items[0], record, copies), nil
	})
}

// Availability returns the current counters of a title. It is a read-only view and may be served by a replica.
func (s *Service) Availability(ctx context.Context, catalogItemID uuid.UUID) (circulation.InventoryRecord, error) {
	records, err := s.store.InventoryRecordsByCatalogItems(circulation.WithEventualConsistency(ctx), []uuid.UUID{catalogItemID})
	if err != nil {
		return circulation.InventoryRecord{}, err
	}

	if len(records) == 0 {
		return circulation.InventoryRecord{}, circulation.NotFound(circulation.CodeCatalogItemNotFound, "catalog item", catalogItemID)
	}

	return records[0], nil
}
