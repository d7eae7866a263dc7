package circulation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Clock returns the current time in the business timezone.
type Clock interface {
	Now() time.Time
}

// BusinessClock is the production Clock: wall time in one fixed location.
type BusinessClock struct {
	location *time.Location
}

// DefaultBusinessTimezone is the timezone every date comparison of the engine is normalized to.
const DefaultBusinessTimezone = "Asia/Ho_Chi_Minh"

// NewBusinessClock loads the named IANA timezone.
func NewBusinessClock(timezone string) (BusinessClock, error) {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return BusinessClock{}, errors.Join(ErrInvalidBusinessTZ, err)
	}

	return BusinessClock{location: location}, nil
}

func (c BusinessClock) Now() time.Time {
	return time.Now().In(c.location)
}

// Location returns the business timezone.
func (c BusinessClock) Location() *time.Location {
	return c.location
}

// PaymentQuery identifies the paid transaction an operation relies on.
// Token is required for online payments and ignored for cash. Date is only checked when it is not zero.
type PaymentQuery struct {
	Code  string
	Type  TransactionType
	Token string
	Date  time.Time
}

// PaymentLookup finds the Paid transaction matching a query and returns ErrNotFound when there is none.
type PaymentLookup interface {
	FindPaid(ctx context.Context, query PaymentQuery) (Transaction, error)
}

// NotificationKind names the email a Notifier should send.
type NotificationKind string

const (
	NotifyCardActivated          NotificationKind = "card_activated"
	NotifyCardRejected           NotificationKind = "card_rejected"
	NotifyCardExtended           NotificationKind = "card_extended"
	NotifyDigitalBorrowConfirmed NotificationKind = "digital_borrow_confirmed"
	NotifyDigitalBorrowExtended  NotificationKind = "digital_borrow_extended"
)

// Notification is a best-effort message to a user.
type Notification struct {
	Kind       NotificationKind  `json:"kind"`
	UserID     uuid.UUID         `json:"user_id"`
	Locale     string            `json:"locale"`
	Params     map[string]string `json:"params,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Notifier delivers notifications. A failure never rolls back the transition that triggered it.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// UserDirectory is the user-profile collaborator.
type UserDirectory interface {
	UserExists(ctx context.Context, userID uuid.UUID) (bool, error)
	DetachCard(ctx context.Context, userID, cardID uuid.UUID) error
	AttachCard(ctx context.Context, userID, cardID uuid.UUID) error
}
