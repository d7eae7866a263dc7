package copystate

import (
	"context"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
	"github.com/AntonStoeckl/circulation-consistency-go/engine/shell"
)

const (
	commandTypeAddCopies    = "copy_add"
	commandTypeUpdateStatus = "copy_update_status"
	commandTypeSoftDelete   = "copy_soft_delete"
	commandTypeUndoDelete   = "copy_undo_delete"
	commandTypeHardDelete   = "copy_hard_delete"
)

// Store defines the reads the Service needs.
type Store interface {
	CopiesByIDs(ctx context.Context, ids []uuid.UUID) ([]circulation.CopyView, error)
	CopiesOfCatalogItem(ctx context.Context, catalogItemID uuid.UUID) ([]circulation.Copy, error)
	CatalogItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]circulation.CatalogItem, error)
	InventoryRecordsByCatalogItems(ctx context.Context, catalogItemIDs []uuid.UUID) ([]circulation.InventoryRecord, error)
}

// Service runs the copy operations.
type Service struct {
	store  Store
	runner *shell.Runner
	clock  circulation.Clock
	newID  func() uuid.UUID
}

// Option configures a Service.
type Option func(*Service) error

// WithClock sets the clock used for condition history timestamps.
func WithClock(clock circulation.Clock) Option {
	return func(s *Service) error {
		s.clock = clock
		return nil
	}
}

// WithIDGenerator replaces uuid.New for new copies and condition entries.
func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(s *Service) error {
		s.newID = newID
		return nil
	}
}

// NewService creates a Service reading from store and committing through runner.
func NewService(store Store, runner *shell.Runner, options ...Option) (*Service, error) {
	if store == nil || runner == nil {
		return nil, circulation.ErrNilDatabaseConnection
	}

	clock, err := circulation.NewBusinessClock(circulation.DefaultBusinessTimezone)
	if err != nil {
		return nil, err
	}

	service := &Service{store: store, runner: runner, clock: clock, newID: uuid.New}

	for _, option := range options {
		if err := option(service); err != nil {
			return nil, err
		}
	}

	return service, nil
}

// AddCopies registers new copies of a title, OutOfShelf, and counts them into the title's inventory.
func (s *Service) AddCopies(ctx context.Context, command AddCopiesCommand) (shell.HandlerResult, error) {
	return s.runner.Run(ctx, commandTypeAddCopies, func(ctx context.Context) (shell.Decision, error) {
		snapshot := AddCopiesSnapshot{}

		items, err := s.store.CatalogItemsByIDs(ctx, []uuid.UUID{command.CatalogItemID})
		if err != nil {
			return shell.Decision{}, err
		}

		if len(items) > 0 {
			snapshot.CatalogItem = &items[0]
		}

		if snapshot.Existing, err = s.store.CopiesOfCatalogItem(ctx, command.CatalogItemID); err != nil {
			return shell.Decision{}, err
		}

		records, err := s.store.InventoryRecordsByCatalogItems(ctx, []uuid.UUID{command.CatalogItemID})
		if err != nil {
			return shell.Decision{}, err
		}

		if len(records) > 0 {
			snapshot.Record = &records[0]
		}

		return DecideAddCopies(command, snapshot, s.clock.Now(), s.newID), nil
	})
}

// UpdateStatus sets the status of one copy.
func (s *Service) UpdateStatus(ctx context.Context, copyID uuid.UUID, status circulation.CopyStatus) (shell.HandlerResult, error) {
	return s.UpdateRange(ctx, []uuid.UUID{copyID}, status)
}

// UpdateRange sets the status of all copies or, if any of them fails a guard, of none.
func (s *Service) UpdateRange(ctx context.Context, copyIDs []uuid.UUID, status circulation.CopyStatus) (shell.HandlerResult, error) {
	return s.run(ctx, commandTypeUpdateStatus, copyIDs, func(snapshot Snapshot) shell.Decision {
		return DecideStatusUpdate(copyIDs, status, snapshot)
	})
}

// SoftDelete moves one copy into the trash.
func (s *Service) SoftDelete(ctx context.Context, copyID uuid.UUID) (shell.HandlerResult, error) {
	return s.SoftDeleteRange(ctx, []uuid.UUID{copyID})
}

// SoftDeleteRange moves all copies into the trash, or none.
func (s *Service) SoftDeleteRange(ctx context.Context, copyIDs []uuid.UUID) (shell.HandlerResult, error) {
	return s.run(ctx, commandTypeSoftDelete, copyIDs, func(snapshot Snapshot) shell.Decision {
		return DecideSoftDelete(copyIDs, snapshot)
	})
}

// UndoDelete restores one copy from the trash.
func (s *Service) UndoDelete(ctx context.Context, copyID uuid.UUID) (shell.HandlerResult, error) {
	return s.UndoDeleteRange(ctx, []uuid.UUID{copyID})
}

// UndoDeleteRange restores all copies from the trash, or none.
func (s *Service) UndoDeleteRange(ctx context.Context, copyIDs []uuid.UUID) (shell.HandlerResult, error) {
	return s.run(ctx, commandTypeUndoDelete, copyIDs, func(snapshot Snapshot) shell.Decision {
		return DecideUndoDelete(copyIDs, snapshot)
	})
}

// HardDelete permanently removes one trashed copy.
func (s *Service) HardDelete(ctx context.Context, copyID uuid.UUID) (shell.HandlerResult, error) {
	return s.HardDeleteRange(ctx, []uuid.UUID{copyID})
}

// HardDeleteRange permanently removes all trashed copies, or none.
func (s *Service) HardDeleteRange(ctx context.Context, copyIDs []uuid.UUID) (shell.HandlerResult, error) {
	return s.run(ctx, commandTypeHardDelete, copyIDs, func(snapshot Snapshot) shell.Decision {
		return DecideHardDelete(copyIDs, snapshot)
	})
}

func (s *Service) run(
	ctx context.Context,
	commandType string,
	copyIDs []uuid.UUID,
	decide func(Snapshot) shell.Decision,
) (shell.HandlerResult, error) {
	return s.runner.Run(ctx, commandType, func(ctx context.Context) (shell.Decision, error) {
		snapshot, err := s.read(ctx, copyIDs)
		if err != nil {
			return shell.Decision{}, err
		}

		return decide(snapshot), nil
	})
}

func (s *Service) read(ctx context.Context, copyIDs []uuid.UUID) (Snapshot, error) {
	var snapshot Snapshot
	var err error

	if snapshot.Copies, err = s.store.CopiesByIDs(ctx, copyIDs); err != nil {
		return Snapshot{}, err
	}

	catalogItemIDs := make([]uuid.UUID, 0, len(snapshot.Copies))
	seen := make(map[uuid.UUID]bool, len(snapshot.Copies))

	for _, view := range snapshot.Copies {
		if !seen[view.CatalogItemID] {
			seen[view.CatalogItemID] = true
			catalogItemIDs = append(catalogItemIDs, view.CatalogItemID)
		}
	}

	if len(catalogItemIDs) == 0 {
		return snapshot, nil
	}

	if snapshot.CatalogItems, err = s.store.CatalogItemsByIDs(ctx, catalogItemIDs); err != nil {
		return Snapshot{}, err
	}

	if snapshot.Records, err = s.store.InventoryRecordsByCatalogItems(ctx, catalogItemIDs); err != nil {
		return Snapshot{}, err
	}

	return snapshot, nil
}
