package http

import (
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"hearth/internal/calendar"
	"hearth/internal/core"
	"hearth/internal/dates"
	"hearth/internal/services"
)

type billRow struct {
	ID      int64
	Name    string
	Amount  string
	DueDay  int
	DueDate string
	Paid    bool
}

type calendarDay struct {
	ISO        string
	DayOfMonth int
	InMonth    bool
	Bills      []billRow
}

type calendarPageData struct {
	Profile    core.Profile
	MonthKey   string
	MonthLabel string
	PrevMonth  string
	NextMonth  string
	Weeks      [][]calendarDay
	Bills      []billRow
}

// handleCalendarPage renders the month grid with each bill pinned to its
// clamped due date, and the paid state from this month's payments.
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	monthKey := MonthKey(r.URL.Query())

	var (
		bills    []core.Bill
		payments []core.BillPayment
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		bills, err = s.bills.Bills(ctx, id.WorkspaceID)
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = s.bills.MonthPayments(ctx, id.WorkspaceID, monthKey)
		return err
	})
	if err := g.Wait(); err != nil {
		slog.ErrorContext(r.Context(), "Calendar page load failed",
			"error", err, "workspace_id", id.WorkspaceID, "month", monthKey)
		http.Error(w, "failed to load calendar", http.StatusInternalServerError)
		return
	}

	paid := make(map[int64]bool, len(payments))
	for _, p := range payments {
		paid[p.BillID] = true
	}

	monthStart := calendar.MonthStart(monthKey)
	billsByDate := make(map[string][]billRow)
	var rows []billRow
	for _, b := range bills {
		due := calendar.DueDate(b.DueDay, monthStart).Format("2006-01-02")
		row := billRow{
			ID:      b.ID,
			Name:    b.Name,
			Amount:  formatEuros(b.Amount.Cents),
			DueDay:  b.DueDay,
			DueDate: due,
			Paid:    paid[b.ID],
		}
		rows = append(rows, row)
		billsByDate[due] = append(billsByDate[due], row)
	}

	grid := calendar.BuildGrid(monthKey)
	weeks := make([][]calendarDay, 0, len(grid))
	for _, week := range grid {
		cells := make([]calendarDay, 0, 7)
		for _, day := range week {
			cells = append(cells, calendarDay{
				ISO:        day.ISO,
				DayOfMonth: day.DayOfMonth,
				InMonth:    day.InMonth,
				Bills:      billsByDate[day.ISO],
			})
		}
		weeks = append(weeks, cells)
	}

	prev, next := PrevNextMonthKeys(monthKey)
	s.render(w, r, "calendar.html", calendarPageData{
		Profile:    id.Profile,
		MonthKey:   monthKey,
		MonthLabel: dates.PrettyLabel(monthStart.Format("2006-01-02")),
		PrevMonth:  prev,
		NextMonth:  next,
		Weeks:      weeks,
		Bills:      rows,
	})
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id := identityFrom(r.Context())

	cents, err := core.ParseDecimalToCents(r.Form.Get("amount"))
	if err != nil {
		UnprocessableEntityError("Invalid amount").Write(w)
		return
	}

	bill := core.Bill{
		WorkspaceID: id.WorkspaceID,
		Name:        sanitizeInput(r.Form.Get("name")),
		Amount:      core.Money{Cents: cents},
		DueDay:      int(parseID(r.Form.Get("due_day"))),
	}

	if _, err := s.bills.CreateBill(r.Context(), bill); err != nil {
		writeValidationOrServerError(w, r, err, "Could not save bill")
		return
	}

	NewHTMXResponse().
		Trigger("bill:changed", struct{}{}).
		TriggerFormReset().
		TriggerSuccessNotification("Bill added").
		Write(w)
}

func (s *Server) handleMarkBillPaid(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id := identityFrom(r.Context())
	monthKey := MonthKey(r.URL.Query())

	paidOn, err := dates.NormalizeToStorage(DefaultedDate(r.Form))
	if err != nil {
		UnprocessableEntityError("Invalid date").Write(w)
		return
	}

	payment := core.BillPayment{
		WorkspaceID: id.WorkspaceID,
		BillID:      parseID(r.Form.Get("bill_id")),
		PaidOn:      paidOn,
	}

	if _, err := s.bills.MarkPaid(r.Context(), payment, monthKey); err != nil {
		if errors.Is(err, services.ErrPaymentOutsideMonth) {
			UnprocessableEntityError("Payment date is outside the selected month").Write(w)
			return
		}
		writeValidationOrServerError(w, r, err, "Could not record payment")
		return
	}

	slog.InfoContext(r.Context(), "Bill marked paid",
		"bill_id", payment.BillID,
		"workspace_id", id.WorkspaceID,
		"month", monthKey)

	NewHTMXResponse().
		TriggerBillPaid(monthKey).
		TriggerSuccessNotification("Payment recorded").
		Write(w)
}
