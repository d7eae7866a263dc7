package circulation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VerifyPayment checks a transaction returned by a PaymentLookup against what the operation expects.
// It returns a PaymentMismatch failure on the first deviation.
// Online payments always need the token handed out by the payment provider.
func VerifyPayment(tx Transaction, query PaymentQuery, userID uuid.UUID) error {
	switch {
	case tx.Status != TransactionPaid:
		return PaymentMismatch(CodePaymentMismatch, fmt.Sprintf("transaction %s is %s", tx.Code, tx.Status))

	case tx.Type != query.Type:
		return PaymentMismatch(CodePaymentMismatch, fmt.Sprintf("transaction %s is for %s, not %s", tx.Code, tx.Type, query.Type))

	case tx.UserID != userID:
		return PaymentMismatch(CodePaymentMismatch, fmt.Sprintf("transaction %s belongs to another user", tx.Code))

	case tx.Method == PaymentOnline && query.Token == "":
		return PaymentMismatch(CodePaymentTokenInvalid, fmt.Sprintf("transaction %s was given without a token", tx.Code))

	case tx.Method == PaymentOnline && tx.Token != query.Token:
		return PaymentMismatch(CodePaymentTokenInvalid, fmt.Sprintf("transaction %s token does not match", tx.Code))

	case !query.Date.IsZero() && !sameDay(tx.CreatedAt, query.Date):
		return PaymentMismatch(CodePaymentMismatch, fmt.Sprintf("transaction %s was not made on %s", tx.Code, query.Date.Format("2006-01-02")))

	default:
		return nil
	}
}

// sameDay compares calendar days in the location of b, which is the business timezone for engine-produced dates.
func sameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
