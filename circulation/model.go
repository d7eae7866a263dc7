package circulation

import (
	"time"

	"github.com/google/uuid"
)

// Version is the optimistic concurrency token carried by every mutable aggregate.
// Writes compare it against the stored value and bump it by one.
type Version = int64

// CatalogItem is a catalog title. A nil ShelfID means the title has no shelf placement yet.
type CatalogItem struct {
	ID        uuid.UUID
	ShelfID   *uuid.UUID
	CanBorrow bool
	Version   Version
}

// HasPlacement reports whether copies of this title may be put InShelf.
func (c CatalogItem) HasPlacement() bool {
	return c.ShelfID != nil
}

// Copy is one physical unit of a catalog title.
type Copy struct {
	ID            uuid.UUID
	CatalogItemID uuid.UUID
	Barcode       string
	Status        CopyStatus
	IsDeleted     bool
	Version       Version
}

// CopyView is a Copy together with the dependent records the state machine guards on.
type CopyView struct {
	Copy
	OpenBorrowRecords  int
	OpenBorrowRequests int
	ConditionEntries   int
}

// IsEncumbered reports whether any non-terminal borrow record or request references the copy.
func (v CopyView) IsEncumbered() bool {
	return v.OpenBorrowRecords > 0 || v.OpenBorrowRequests > 0
}

// ConditionHistory records the physical condition of a copy at a point in time.
type ConditionHistory struct {
	ID         uuid.UUID
	CopyID     uuid.UUID
	Condition  string
	Note       string
	RecordedAt time.Time
}

// NewCopy is a copy to be inserted together with its initial condition entry.
type NewCopy struct {
	Copy      Copy
	Condition ConditionHistory
}

// BorrowRecord is a physical loan.
type BorrowRecord struct {
	ID            uuid.UUID
	CopyID        uuid.UUID
	LibraryCardID uuid.UUID
	Status        BorrowRecordStatus
}

// BorrowRequest is a reservation waiting to be picked up before its ExpirationDate.
type BorrowRequest struct {
	ID             uuid.UUID
	CopyID         uuid.UUID
	LibraryCardID  uuid.UUID
	Status         BorrowRequestStatus
	ExpirationDate time.Time
	Version        Version
}

// LibraryCard is a reader's membership card.
type LibraryCard struct {
	ID                uuid.UUID
	UserID            *uuid.UUID
	Status            CardStatus
	PackageID         uuid.UUID
	TransactionCode   string
	ExpiryDate        time.Time
	SuspensionEndDate *time.Time
	SuspensionReason  string
	RejectReason      string
	TotalMissedPickUp int
	ExtensionCount    int
	IsArchived        bool
	ArchiveReason     string
	PreviousUserID    *uuid.UUID
	AllowBorrowMore   bool
	MaxItemOnceTime   int
	Version           Version
}

// IsExpiredAt reports whether the card's validity has run out at now.
func (c LibraryCard) IsExpiredAt(now time.Time) bool {
	return !now.Before(c.ExpiryDate)
}

// Package is a purchasable membership duration.
type Package struct {
	ID               uuid.UUID
	Name             string
	DurationInMonths int
	Price            int64
}

// DigitalResource is an e-book or audio book that can be borrowed digitally.
type DigitalResource struct {
	ID    uuid.UUID
	Title string
	Type  ResourceType
}

// DigitalBorrow is a time-bounded digital loan.
type DigitalBorrow struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	ResourceID      uuid.UUID
	ResourceType    ResourceType
	Status          DigitalBorrowStatus
	BorrowDate      time.Time
	ExpiryDate      time.Time
	ExtensionCount  int
	IsExtended      bool
	TransactionCode string
	Version         Version
}

// IsExpiredAt reports whether the loan has run out at now.
func (b DigitalBorrow) IsExpiredAt(now time.Time) bool {
	return !now.Before(b.ExpiryDate)
}

// ExtensionHistory records one paid extension of a digital borrow.
type ExtensionHistory struct {
	ID                 uuid.UUID
	DigitalBorrowID    uuid.UUID
	TransactionCode    string
	ExtendedAt         time.Time
	PreviousExpiryDate time.Time
	NewExpiryDate      time.Time
	ExtensionNumber    int
}

// Transaction is a payment reference handed to the engine by the payment subsystem.
type Transaction struct {
	Code        string
	Type        TransactionType
	Status      TransactionStatus
	Method      PaymentMethod
	UserID      uuid.UUID
	ReferenceID uuid.UUID
	Amount      int64
	BorrowDays  int
	Token       string
	CreatedAt   time.Time
}
