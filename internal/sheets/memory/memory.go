// Package memory is an in-process ledger sink used in development and tests,
// when no spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"hearth/internal/sheets"
)

type Ledger struct {
	mu   sync.Mutex
	rows []sheets.LedgerRow
}

var _ sheets.LedgerWriter = (*Ledger)(nil)

func NewLedger() *Ledger {
	return &Ledger{}
}

// Append implements sheets.LedgerWriter.
func (l *Ledger) Append(_ context.Context, row sheets.LedgerRow) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, row)
	return fmt.Sprintf("memory:%d", len(l.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (l *Ledger) Rows() []sheets.LedgerRow {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]sheets.LedgerRow, len(l.rows))
	copy(out, l.rows)
	return out
}
