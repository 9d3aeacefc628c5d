package sheets

import (
	"context"

	"hearth/internal/core"
)

// LedgerRow is one exported line of the household ledger.
type LedgerRow struct {
	Date        string // YYYY-MM-DD
	Description string
	Category    string
	Type        core.TxnType
	Amount      core.Money
}

// LedgerWriter is the port for outbound ledger export adapters.
type LedgerWriter interface {
	Append(ctx context.Context, row LedgerRow) (rowRef string, err error)
}
