package fixtures

import (
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
)

// ShelvedCatalogItem returns a catalog item that has a shelf placement.
func ShelvedCatalogItem() circulation.CatalogItem {
	shelfID := uuid.New()
	return circulation.CatalogItem{ID: uuid.New(), ShelfID: &shelfID, Version: 1}
}

// UnshelvedCatalogItem returns a catalog item without a shelf placement.
func UnshelvedCatalogItem() circulation.CatalogItem {
	return circulation.CatalogItem{ID: uuid.New(), Version: 1}
}

// CopyOf returns a copy of catalogItemID in status with one condition entry.
func CopyOf(catalogItemID uuid.UUID, status circulation.CopyStatus) (circulation.Copy, circulation.ConditionHistory) {
	c := circulation.Copy{
		ID:            uuid.New(),
		CatalogItemID: catalogItemID,
		Barcode:       uuid.NewString()[:8],
		Status:        status,
		Version:       1,
	}

	return c, circulation.ConditionHistory{ID: uuid.New(), CopyID: c.ID, Condition: "new"}
}

// ActiveCard returns an Active card expiring at expiry.
func ActiveCard(expiry time.Time) circulation.LibraryCard {
	userID := uuid.New()

	return circulation.LibraryCard{
		ID:         uuid.New(),
		UserID:     &userID,
		Status:     circulation.CardActive,
		PackageID:  uuid.New(),
		ExpiryDate: expiry,
		Version:    1,
	}
}

// PendingCard returns a Pending card waiting for the transaction txCode.
func PendingCard(packageID uuid.UUID, txCode string) circulation.LibraryCard {
	userID := uuid.New()

	return circulation.LibraryCard{
		ID:              uuid.New(),
		UserID:          &userID,
		Status:          circulation.CardPending,
		PackageID:       packageID,
		TransactionCode: txCode,
		Version:         1,
	}
}

// MonthlyPackage returns a package of months duration.
func MonthlyPackage(months int) circulation.Package {
	return circulation.Package{ID: uuid.New(), Name: "standard", DurationInMonths: months, Price: 50000}
}

// PaidTransaction returns an online Paid transaction of txType for userID created at createdAt.
func PaidTransaction(
	code string,
	txType circulation.TransactionType,
	userID, referenceID uuid.UUID,
	createdAt time.Time,
) circulation.Transaction {
	return circulation.Transaction{
		Code:        code,
		Type:        txType,
		Status:      circulation.TransactionPaid,
		Method:      circulation.PaymentOnline,
		UserID:      userID,
		ReferenceID: referenceID,
		Amount:      50000,
		BorrowDays:  30,
		Token:       "token-" + code,
		CreatedAt:   createdAt,
	}
}
