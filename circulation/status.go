package circulation

import (
	"fmt"
	"strings"
)

// parseName maps a persisted status name back onto its enum value.
// Enum values start at 1 so the zero value is always recognizable as unset.
func parseName[T ~uint8](kind string, names []string, s string) (T, error) {
	for i, name := range names {
		if i > 0 && strings.EqualFold(name, s) {
			return T(i), nil
		}
	}

	return 0, fmt.Errorf("unknown %s %q", kind, s)
}

func nameOf[T ~uint8](names []string, v T) string {
	if int(v) < len(names) && v > 0 {
		return names[v]
	}

	return names[0]
}

// CopyStatus is the shelf state of one physical copy.
type CopyStatus uint8

const (
	CopyOutOfShelf CopyStatus = iota + 1
	CopyInShelf
	CopyBorrowed
	CopyReserved
)

var copyStatusNames = []string{"Unknown", "OutOfShelf", "InShelf", "Borrowed", "Reserved"}

func (s CopyStatus) String() string { return nameOf(copyStatusNames, s) }

// ParseCopyStatus parses the persisted name of a CopyStatus.
func ParseCopyStatus(s string) (CopyStatus, error) {
	return parseName[CopyStatus]("copy status", copyStatusNames, s)
}

// IsInShelf reports whether a copy in this status counts towards AvailableCopies.
func (s CopyStatus) IsInShelf() bool { return s == CopyInShelf }

// IsDirectlySettable reports whether staff may set this status through the status-update entry point.
// Borrowed and Reserved are only reachable through the borrowing workflow.
func (s CopyStatus) IsDirectlySettable() bool {
	return s == CopyOutOfShelf || s == CopyInShelf
}

// CanTransitionTo reports whether a copy may move from s to next.
func (s CopyStatus) CanTransitionTo(next CopyStatus) bool {
	switch s {
	case CopyOutOfShelf:
		return next == CopyInShelf
	case CopyInShelf:
		return next == CopyOutOfShelf || next == CopyBorrowed || next == CopyReserved
	case CopyBorrowed, CopyReserved:
		return next == CopyInShelf || next == CopyOutOfShelf
	default:
		return false
	}
}

// CardStatus is the lifecycle state of a library card.
type CardStatus uint8

const (
	CardPending CardStatus = iota + 1
	CardActive
	CardSuspended
	CardExpired
	CardRejected
)

var cardStatusNames = []string{"Unknown", "Pending", "Active", "Suspended", "Expired", "Rejected"}

func (s CardStatus) String() string { return nameOf(cardStatusNames, s) }

// ParseCardStatus parses the persisted name of a CardStatus.
func ParseCardStatus(s string) (CardStatus, error) {
	return parseName[CardStatus]("card status", cardStatusNames, s)
}

// CanTransitionTo encodes the card lifecycle table.
//
//	Pending   -> Active, Rejected
//	Rejected  -> Pending, Active
//	Active    -> Suspended, Expired
//	Suspended -> Active, Expired
//	Expired   -> Active
//
// Archiving is not part of the table, it forces Suspended from any non-suspended status.
func (s CardStatus) CanTransitionTo(next CardStatus) bool {
	switch s {
	case CardPending:
		return next == CardActive || next == CardRejected
	case CardRejected:
		return next == CardPending || next == CardActive
	case CardActive:
		return next == CardSuspended || next == CardExpired
	case CardSuspended:
		return next == CardActive || next == CardExpired
	case CardExpired:
		return next == CardActive
	default:
		return false
	}
}

// DigitalBorrowStatus is the persisted state of a digital loan. Expiry is derived from the expiry date.
type DigitalBorrowStatus uint8

const (
	DigitalBorrowPrepared DigitalBorrowStatus = iota + 1
	DigitalBorrowActive
)

var digitalBorrowStatusNames = []string{"Unknown", "Prepared", "Active"}

func (s DigitalBorrowStatus) String() string { return nameOf(digitalBorrowStatusNames, s) }

// ParseDigitalBorrowStatus parses the persisted name of a DigitalBorrowStatus.
func ParseDigitalBorrowStatus(s string) (DigitalBorrowStatus, error) {
	return parseName[DigitalBorrowStatus]("digital borrow status", digitalBorrowStatusNames, s)
}

// BorrowRecordStatus is the state of a physical loan.
type BorrowRecordStatus uint8

const (
	BorrowRecordBorrowing BorrowRecordStatus = iota + 1
	BorrowRecordOverdue
	BorrowRecordLost
	BorrowRecordReturned
)

var borrowRecordStatusNames = []string{"Unknown", "Borrowing", "Overdue", "Lost", "Returned"}

func (s BorrowRecordStatus) String() string { return nameOf(borrowRecordStatusNames, s) }

// ParseBorrowRecordStatus parses the persisted name of a BorrowRecordStatus.
func ParseBorrowRecordStatus(s string) (BorrowRecordStatus, error) {
	return parseName[BorrowRecordStatus]("borrow record status", borrowRecordStatusNames, s)
}

// Encumbers reports whether a record in this status blocks changes to its copy.
func (s BorrowRecordStatus) Encumbers() bool { return s != BorrowRecordReturned }

// BorrowRequestStatus is the state of a pickup request for a physical copy.
type BorrowRequestStatus uint8

const (
	BorrowRequestCreated BorrowRequestStatus = iota + 1
	BorrowRequestBorrowed
	BorrowRequestRejected
	BorrowRequestCancelled
	BorrowRequestExpired
)

var borrowRequestStatusNames = []string{"Unknown", "Created", "Borrowed", "Rejected", "Cancelled", "Expired"}

func (s BorrowRequestStatus) String() string { return nameOf(borrowRequestStatusNames, s) }

// ParseBorrowRequestStatus parses the persisted name of a BorrowRequestStatus.
func ParseBorrowRequestStatus(s string) (BorrowRequestStatus, error) {
	return parseName[BorrowRequestStatus]("borrow request status", borrowRequestStatusNames, s)
}

// Encumbers reports whether a request in this status blocks changes to its copy.
func (s BorrowRequestStatus) Encumbers() bool {
	return s != BorrowRequestRejected && s != BorrowRequestCancelled
}

// ResourceType distinguishes digital resources that are served as-is from those needing preparation.
type ResourceType uint8

const (
	ResourceText ResourceType = iota + 1
	ResourceAudio
)

var resourceTypeNames = []string{"Unknown", "Text", "Audio"}

func (t ResourceType) String() string { return nameOf(resourceTypeNames, t) }

// ParseResourceType parses the persisted name of a ResourceType.
func ParseResourceType(s string) (ResourceType, error) {
	return parseName[ResourceType]("resource type", resourceTypeNames, s)
}

// NeedsPreparation reports whether a new borrow of this type starts Prepared and waits for watermarking.
func (t ResourceType) NeedsPreparation() bool { return t == ResourceAudio }

// TransactionType tags what a payment was made for.
type TransactionType uint8

const (
	TransactionCardIssuance TransactionType = iota + 1
	TransactionCardExtension
	TransactionDigitalBorrow
	TransactionDigitalExtension
)

var transactionTypeNames = []string{"Unknown", "CardIssuance", "CardExtension", "DigitalBorrow", "DigitalExtension"}

func (t TransactionType) String() string { return nameOf(transactionTypeNames, t) }

// ParseTransactionType parses the persisted name of a TransactionType.
func ParseTransactionType(s string) (TransactionType, error) {
	return parseName[TransactionType]("transaction type", transactionTypeNames, s)
}

// TransactionStatus is the payment state of a transaction.
type TransactionStatus uint8

const (
	TransactionPending TransactionStatus = iota + 1
	TransactionPaid
	TransactionCancelled
	TransactionExpired
)

var transactionStatusNames = []string{"Unknown", "Pending", "Paid", "Cancelled", "Expired"}

func (s TransactionStatus) String() string { return nameOf(transactionStatusNames, s) }

// ParseTransactionStatus parses the persisted name of a TransactionStatus.
func ParseTransactionStatus(s string) (TransactionStatus, error) {
	return parseName[TransactionStatus]("transaction status", transactionStatusNames, s)
}

// PaymentMethod says how a transaction was settled.
type PaymentMethod uint8

const (
	PaymentOnline PaymentMethod = iota + 1
	PaymentCash
)

var paymentMethodNames = []string{"Unknown", "Online", "Cash"}

func (m PaymentMethod) String() string { return nameOf(paymentMethodNames, m) }

// ParsePaymentMethod parses the persisted name of a PaymentMethod.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	return parseName[PaymentMethod]("payment method", paymentMethodNames, s)
}
