package sheets

import (
	"context"

	"presupuesto/internal/core"
)

// Ports for the spreadsheet backup adapters.
type (
	// TransactionWriter mirrors a transaction into the backup spreadsheet.
	TransactionWriter interface {
		Append(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}

	// TransactionDeleter drops a transaction's backup row. The database row
	// may already be gone, so deletion goes by transaction id alone.
	TransactionDeleter interface {
		Delete(ctx context.Context, txID string) error
	}
)
