package circulation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Reader is the read side of the persistence contract.
//
// Single-entity getters return ErrNotFound when the row does not exist.
// Multi-entity getters return the rows that exist and silently skip unknown IDs.
type Reader interface {
	CopiesByIDs(ctx context.Context, ids []uuid.UUID) ([]CopyView, error)
	CopiesOfCatalogItem(ctx context.Context, catalogItemID uuid.UUID) ([]Copy, error)
	CatalogItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]CatalogItem, error)
	InventoryRecordsByCatalogItems(ctx context.Context, catalogItemIDs []uuid.UUID) ([]InventoryRecord, error)

	CardByID(ctx context.Context, id uuid.UUID) (LibraryCard, error)
	CardsByIDs(ctx context.Context, ids []uuid.UUID) ([]LibraryCard, error)
	PackageByID(ctx context.Context, id uuid.UUID) (Package, error)
	CardsDueForExpiry(ctx context.Context, now time.Time) ([]LibraryCard, error)
	CardsDueForUnsuspension(ctx context.Context, now time.Time) ([]LibraryCard, error)
	RequestsDueForExpiry(ctx context.Context, now time.Time) ([]BorrowRequest, error)

	ResourceByID(ctx context.Context, id uuid.UUID) (DigitalResource, error)
	DigitalBorrowByID(ctx context.Context, id uuid.UUID) (DigitalBorrow, error)
	DigitalBorrowByTransactionCode(ctx context.Context, code string) (DigitalBorrow, error)
	ExtensionByTransactionCode(ctx context.Context, code string) (ExtensionHistory, error)
}

// Applier is the write side of the persistence contract.
// Apply commits every write of the ChangeSet or none of them and returns the number of rows written.
type Applier interface {
	Apply(ctx context.Context, changes *ChangeSet) (int64, error)
}

// Store is the complete persistence contract.
type Store interface {
	Reader
	Applier
}
