package postgresengine

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
)

// FindPaid implements circulation.PaymentLookup on the payment_transactions table.
// Only the code and the Paid status are matched here, circulation.VerifyPayment checks the rest.
func (s *Store) FindPaid(ctx context.Context, query circulation.PaymentQuery) (circulation.Transaction, error) {
	stmt := dialect().From(tableTransactions).
		Select(transactionColumns...).
		Where(
			goqu.C(colCode).Eq(query.Code),
			goqu.C(colStatus).Eq(circulation.TransactionPaid.String()),
		)

	return queryOne(circulation.WithStrongConsistency(ctx), s, "find_paid_transaction", stmt, s.scanTransaction)
}
