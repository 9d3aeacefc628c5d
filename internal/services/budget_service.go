// Package services holds the orchestration layer: validate input, write to
// storage, then notify the activity exchange without blocking the request.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"hearth/internal/amqp"
	"hearth/internal/core"
)

// Publisher is the slice of the AMQP client services need.
type Publisher interface {
	PublishEvent(ctx context.Context, msg *amqp.EventMessage) error
}

// BudgetStore is the storage surface backing transaction and category work.
type BudgetStore interface {
	CreateTransaction(ctx context.Context, t core.Transaction, createdBy int64) (int64, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	ArchiveTransaction(ctx context.Context, workspaceID, id int64) error
	ListRecentTransactions(ctx context.Context, workspaceID int64, limit int) ([]core.Transaction, error)
	MonthTotals(ctx context.Context, workspaceID int64, startISO, endISO string) (core.MonthTotals, error)
	ListCategories(ctx context.Context, workspaceID int64) ([]core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (int64, error)
	RenameCategory(ctx context.Context, workspaceID, id int64, name string) error
	ArchiveCategory(ctx context.Context, workspaceID, id int64) error
}

// BudgetService orchestrates transaction and category operations.
type BudgetService struct {
	store  BudgetStore
	events Publisher
}

func NewBudgetService(store BudgetStore, events Publisher) *BudgetService {
	return &BudgetService{store: store, events: events}
}

// CreateTransaction validates and saves a transaction, then publishes an
// activity event. The event is best effort, the write already succeeded.
func (s *BudgetService) CreateTransaction(ctx context.Context, t core.Transaction, createdBy int64) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	id, err := s.store.CreateTransaction(ctx, t, createdBy)
	if err != nil {
		return 0, fmt.Errorf("save transaction: %w", err)
	}
	publish(ctx, s.events, amqp.KindTxnCreated, t.WorkspaceID, id)
	return id, nil
}

// UpdateTransaction validates and applies an edit to an existing transaction.
func (s *BudgetService) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

// ArchiveTransaction soft deletes a transaction and publishes an event.
func (s *BudgetService) ArchiveTransaction(ctx context.Context, workspaceID, id int64) error {
	if err := s.store.ArchiveTransaction(ctx, workspaceID, id); err != nil {
		return fmt.Errorf("archive transaction: %w", err)
	}
	publish(ctx, s.events, amqp.KindTxnArchived, workspaceID, id)
	return nil
}

// RecentTransactions returns the latest non-archived transactions.
func (s *BudgetService) RecentTransactions(ctx context.Context, workspaceID int64, limit int) ([]core.Transaction, error) {
	return s.store.ListRecentTransactions(ctx, workspaceID, limit)
}

// MonthTotals sums income and expense over a half-open storage window.
func (s *BudgetService) MonthTotals(ctx context.Context, workspaceID int64, startISO, endISO string) (core.MonthTotals, error) {
	return s.store.MonthTotals(ctx, workspaceID, startISO, endISO)
}

// Categories lists the workspace's non-archived categories.
func (s *BudgetService) Categories(ctx context.Context, workspaceID int64) ([]core.Category, error) {
	return s.store.ListCategories(ctx, workspaceID)
}

// CreateCategory validates and saves a category.
func (s *BudgetService) CreateCategory(ctx context.Context, c core.Category) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	id, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return 0, fmt.Errorf("save category: %w", err)
	}
	return id, nil
}

// RenameCategory applies a validated rename.
func (s *BudgetService) RenameCategory(ctx context.Context, workspaceID, id int64, name string) error {
	if err := (core.Category{WorkspaceID: workspaceID, Name: name}).Validate(); err != nil {
		return err
	}
	if err := s.store.RenameCategory(ctx, workspaceID, id, name); err != nil {
		return fmt.Errorf("rename category: %w", err)
	}
	return nil
}

// ArchiveCategory hides a category from future pickers.
func (s *BudgetService) ArchiveCategory(ctx context.Context, workspaceID, id int64) error {
	if err := s.store.ArchiveCategory(ctx, workspaceID, id); err != nil {
		return fmt.Errorf("archive category: %w", err)
	}
	return nil
}

func publish(ctx context.Context, events Publisher, kind string, workspaceID, entityID int64) {
	if events == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping event", "kind", kind)
		return
	}
	if err := events.PublishEvent(ctx, amqp.NewEventMessage(kind, workspaceID, entityID)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish event",
			"kind", kind, "entity_id", entityID, "error", err)
		// Don't fail the request, the local write already happened
	}
}
