// Package worker consumes activity events from AMQP, records them in the
// audit table and optionally mirrors new transactions to the export ledger.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"hearth/internal/amqp"
	"hearth/internal/core"
	"hearth/internal/dates"
	"hearth/internal/log"
	"hearth/internal/sheets"
)

// Store is the storage surface the worker needs.
type Store interface {
	RecordEvent(ctx context.Context, kind string, workspaceID, entityID int64) error
	TransactionByID(ctx context.Context, id int64) (core.Transaction, error)
	CategoryByID(ctx context.Context, id int64) (core.Category, error)
}

// ActivityWorker handles events published by the web process.
type ActivityWorker struct {
	store  Store
	ledger sheets.LedgerWriter
}

func NewActivityWorker(store Store, ledger sheets.LedgerWriter) *ActivityWorker {
	return &ActivityWorker{store: store, ledger: ledger}
}

// HandleEvent processes a single activity event. A returned error requeues
// the delivery, so only failures worth retrying propagate.
func (w *ActivityWorker) HandleEvent(ctx context.Context, msg *amqp.EventMessage) error {
	if err := w.store.RecordEvent(ctx, msg.Kind, msg.WorkspaceID, msg.EntityID); err != nil {
		return fmt.Errorf("record event: %w", err)
	}

	if msg.Kind == amqp.KindTxnCreated {
		if err := w.exportTransaction(ctx, msg.EntityID); err != nil {
			return fmt.Errorf("export transaction: %w", err)
		}
	}

	return nil
}

func (w *ActivityWorker) exportTransaction(ctx context.Context, id int64) error {
	if w.ledger == nil {
		slog.DebugContext(ctx, "No ledger configured, skipping export", "id", id)
		return nil
	}

	txn, err := w.store.TransactionByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}

	categoryName := ""
	if cat, err := w.store.CategoryByID(ctx, txn.CategoryID); err == nil {
		categoryName = cat.Name
	} else {
		slog.WarnContext(ctx, "Category lookup failed, exporting without label",
			log.FieldComponent, log.ComponentWorker,
			"transaction_id", id,
			"category_id", txn.CategoryID,
			log.FieldError, err)
	}

	ref, err := w.ledger.Append(ctx, sheets.LedgerRow{
		Date:        dates.ToDisplayForm(txn.OccurredAt),
		Description: txn.Description,
		Category:    categoryName,
		Type:        txn.Type,
		Amount:      txn.Amount,
	})
	if err != nil {
		return fmt.Errorf("append to ledger: %w", err)
	}

	slog.InfoContext(ctx, "Exported transaction to ledger",
		log.FieldComponent, log.ComponentLedger,
		"transaction_id", id,
		log.FieldLedgerRef, ref,
		log.FieldAmountCents, txn.Amount.Cents)
	return nil
}
