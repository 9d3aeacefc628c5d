package services

import (
	"context"
	"errors"
	"fmt"

	"hearth/internal/amqp"
	"hearth/internal/calendar"
	"hearth/internal/core"
	"hearth/internal/dates"
)

// ErrPaymentOutsideMonth rejects a payment dated outside the month being viewed.
var ErrPaymentOutsideMonth = errors.New("payment date outside selected month")

// BillStore is the storage surface backing recurring bill work.
type BillStore interface {
	ListBills(ctx context.Context, workspaceID int64) ([]core.Bill, error)
	CreateBill(ctx context.Context, b core.Bill) (int64, error)
	PaymentsInWindow(ctx context.Context, workspaceID int64, startISO, endISO string) ([]core.BillPayment, error)
	CreatePayment(ctx context.Context, p core.BillPayment) (int64, error)
}

// BillService orchestrates recurring bills and their per-month payments.
type BillService struct {
	store  BillStore
	events Publisher
}

func NewBillService(store BillStore, events Publisher) *BillService {
	return &BillService{store: store, events: events}
}

// Bills lists the workspace's bills ordered by due day.
func (s *BillService) Bills(ctx context.Context, workspaceID int64) ([]core.Bill, error) {
	return s.store.ListBills(ctx, workspaceID)
}

// CreateBill validates and saves a recurring bill.
func (s *BillService) CreateBill(ctx context.Context, b core.Bill) (int64, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}
	id, err := s.store.CreateBill(ctx, b)
	if err != nil {
		return 0, fmt.Errorf("save bill: %w", err)
	}
	return id, nil
}

// MonthPayments returns the payments recorded inside the given month.
func (s *BillService) MonthPayments(ctx context.Context, workspaceID int64, monthKey string) ([]core.BillPayment, error) {
	startISO, endISO := MonthWindow(monthKey)
	return s.store.PaymentsInWindow(ctx, workspaceID, startISO, endISO)
}

// MarkPaid records a payment for a bill. The payment date must fall inside
// the month the caller is viewing, otherwise the paid state shown for that
// month would not match the row just written.
func (s *BillService) MarkPaid(ctx context.Context, p core.BillPayment, monthKey string) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	startISO, endISO := MonthWindow(monthKey)
	if p.PaidOn < startISO || p.PaidOn >= endISO {
		return 0, ErrPaymentOutsideMonth
	}
	id, err := s.store.CreatePayment(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("save payment: %w", err)
	}
	publish(ctx, s.events, amqp.KindBillPaid, p.WorkspaceID, p.BillID)
	return id, nil
}

// MonthWindow converts a month key to the half-open storage window
// [first of month, first of next month) as sortable instant strings.
func MonthWindow(monthKey string) (startISO, endISO string) {
	start := calendar.MonthStart(monthKey)
	end := calendar.MonthEndExclusive(monthKey)
	return start.Format(dates.StorageLayout), end.Format(dates.StorageLayout)
}
