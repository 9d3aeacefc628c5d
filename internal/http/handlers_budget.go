package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"hearth/internal/core"
	"hearth/internal/dates"
	"hearth/internal/services"
)

type txnRow struct {
	ID          int64
	Date        string
	DateLabel   string
	Description string
	Category    string
	Type        core.TxnType
	Amount      string
}

type budgetPageData struct {
	Profile     core.Profile
	Members     []core.Profile
	MonthKey    string
	PrevMonth   string
	NextMonth   string
	Income      string
	Expense     string
	Net         string
	Categories  []core.Category
	Recent      []txnRow
	RecentLimit int
}

// handleBudgetPage renders the dashboard. Categories, recent transactions
// and the month summary are independent reads, so they run concurrently.
func (s *Server) handleBudgetPage(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	monthKey := MonthKey(r.URL.Query())

	var (
		cats    []core.Category
		recent  []core.Transaction
		totals  core.MonthTotals
		members []core.Profile
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		cats, err = s.budget.Categories(ctx, id.WorkspaceID)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.budget.RecentTransactions(ctx, id.WorkspaceID, s.recentLimit)
		return err
	})
	g.Go(func() error {
		var err error
		totals, err = s.monthTotals(ctx, id.WorkspaceID, monthKey)
		return err
	})
	g.Go(func() error {
		var err error
		members, err = s.profiles.WorkspaceProfiles(ctx, id.WorkspaceID)
		return err
	})
	if err := g.Wait(); err != nil {
		slog.ErrorContext(r.Context(), "Budget page load failed",
			"error", err, "workspace_id", id.WorkspaceID)
		http.Error(w, "failed to load budget", http.StatusInternalServerError)
		return
	}

	catNames := make(map[int64]string, len(cats))
	for _, c := range cats {
		catNames[c.ID] = c.Name
	}

	prev, next := PrevNextMonthKeys(monthKey)
	data := budgetPageData{
		Profile:     id.Profile,
		Members:     members,
		MonthKey:    monthKey,
		PrevMonth:   prev,
		NextMonth:   next,
		Income:      formatEuros(totals.Income.Cents),
		Expense:     formatEuros(totals.Expense.Cents),
		Net:         formatEuros(totals.Net().Cents),
		Categories:  cats,
		RecentLimit: s.recentLimit,
	}
	for _, t := range recent {
		data.Recent = append(data.Recent, txnRow{
			ID:          t.ID,
			Date:        dates.ToDisplayForm(t.OccurredAt),
			DateLabel:   dates.PrettyLabel(dates.ToDisplayForm(t.OccurredAt)),
			Description: t.Description,
			Category:    catNames[t.CategoryID],
			Type:        t.Type,
			Amount:      formatEuros(t.Amount.Cents),
		})
	}

	s.render(w, r, "budget.html", data)
}

// handleMonthSummary renders the totals partial for a month.
func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	monthKey := MonthKey(r.URL.Query())

	totals, err := s.monthTotals(r.Context(), id.WorkspaceID, monthKey)
	if err != nil {
		slog.ErrorContext(r.Context(), "Month summary failed",
			"error", err, "workspace_id", id.WorkspaceID, "month", monthKey)
		InternalServerError("Could not load month summary").Write(w)
		return
	}

	s.render(w, r, "month_summary.html", struct {
		MonthKey string
		Income   string
		Expense  string
		Net      string
	}{
		MonthKey: monthKey,
		Income:   formatEuros(totals.Income.Cents),
		Expense:  formatEuros(totals.Expense.Cents),
		Net:      formatEuros(totals.Net().Cents),
	})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id := identityFrom(r.Context())

	occurredAt, err := dates.NormalizeToStorage(DefaultedDate(r.Form))
	if err != nil {
		UnprocessableEntityError("Invalid date").Write(w)
		return
	}

	cents, err := core.ParseDecimalToCents(r.Form.Get("amount"))
	if err != nil {
		UnprocessableEntityError("Invalid amount").Write(w)
		return
	}

	txn := core.Transaction{
		WorkspaceID: id.WorkspaceID,
		CategoryID:  parseID(r.Form.Get("category_id")),
		Type:        core.TxnType(sanitizeInput(r.Form.Get("type"))),
		Description: sanitizeInput(r.Form.Get("description")),
		Amount:      core.Money{Cents: cents},
		OccurredAt:  occurredAt,
	}

	txnID, err := s.budget.CreateTransaction(r.Context(), txn, id.Profile.ID)
	if err != nil {
		writeValidationOrServerError(w, r, err, "Could not save transaction")
		return
	}

	monthKey := dates.ToDisplayForm(occurredAt)[:7]
	s.invalidateSummary(id.WorkspaceID, monthKey)

	slog.InfoContext(r.Context(), "Transaction created",
		"transaction_id", txnID,
		"workspace_id", id.WorkspaceID,
		"amount_cents", txn.Amount.Cents,
		"type", string(txn.Type))

	NewHTMXResponse().
		TriggerTransactionCreated(monthKey).
		TriggerFormReset().
		TriggerSuccessNotification("Saved " + formatEuros(cents)).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id := identityFrom(r.Context())

	txnID := parseID(r.Form.Get("id"))
	if txnID == 0 {
		BadRequestError("Missing transaction id").Write(w)
		return
	}

	occurredAt, err := dates.NormalizeToStorage(DefaultedDate(r.Form))
	if err != nil {
		UnprocessableEntityError("Invalid date").Write(w)
		return
	}

	cents, err := core.ParseDecimalToCents(r.Form.Get("amount"))
	if err != nil {
		UnprocessableEntityError("Invalid amount").Write(w)
		return
	}

	txn := core.Transaction{
		ID:          txnID,
		WorkspaceID: id.WorkspaceID,
		CategoryID:  parseID(r.Form.Get("category_id")),
		Type:        core.TxnType(sanitizeInput(r.Form.Get("type"))),
		Description: sanitizeInput(r.Form.Get("description")),
		Amount:      core.Money{Cents: cents},
		OccurredAt:  occurredAt,
	}

	if err := s.budget.UpdateTransaction(r.Context(), txn); err != nil {
		writeValidationOrServerError(w, r, err, "Could not update transaction")
		return
	}

	// The edit may have moved the transaction across months; drop both the
	// viewed month and the transaction's new month from the cache.
	monthKey := dates.ToDisplayForm(occurredAt)[:7]
	s.invalidateSummary(id.WorkspaceID, monthKey)
	s.invalidateSummary(id.WorkspaceID, MonthKey(r.URL.Query()))

	NewHTMXResponse().
		TriggerTransactionCreated(monthKey).
		TriggerSuccessNotification("Transaction updated").
		Write(w)
}

func (s *Server) handleArchiveTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}

	id := identityFrom(r.Context())
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	txnID := parseID(parser.Get("id"))
	if txnID == 0 {
		BadRequestError("Missing transaction id").Write(w)
		return
	}
	monthKey := MonthKey(r.URL.Query())

	if err := s.budget.ArchiveTransaction(r.Context(), id.WorkspaceID, txnID); err != nil {
		slog.ErrorContext(r.Context(), "Archive transaction failed",
			"error", err, "transaction_id", txnID, "workspace_id", id.WorkspaceID)
		NotFoundError("Transaction not found").Write(w)
		return
	}

	s.invalidateSummary(id.WorkspaceID, monthKey)

	NewHTMXResponse().
		TriggerTransactionArchived(monthKey).
		TriggerSuccessNotification("Transaction removed").
		Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id := identityFrom(r.Context())
	name := sanitizeInput(r.Form.Get("name"))

	if _, err := s.budget.CreateCategory(r.Context(), core.Category{
		WorkspaceID: id.WorkspaceID,
		Name:        name,
	}); err != nil {
		writeValidationOrServerError(w, r, err, "Could not save category")
		return
	}

	NewHTMXResponse().
		Trigger("category:changed", struct{}{}).
		TriggerSuccessNotification("Category added").
		Write(w)
}

func (s *Server) handleRenameCategory(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id := identityFrom(r.Context())
	catID := parseID(r.Form.Get("id"))
	name := sanitizeInput(r.Form.Get("name"))

	if err := s.budget.RenameCategory(r.Context(), id.WorkspaceID, catID, name); err != nil {
		writeValidationOrServerError(w, r, err, "Could not rename category")
		return
	}

	NewHTMXResponse().
		Trigger("category:changed", struct{}{}).
		Write(w)
}

func (s *Server) handleArchiveCategory(w http.ResponseWriter, r *http.Request) {
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id := identityFrom(r.Context())
	catID := parseID(r.Form.Get("id"))

	if err := s.budget.ArchiveCategory(r.Context(), id.WorkspaceID, catID); err != nil {
		slog.ErrorContext(r.Context(), "Archive category failed",
			"error", err, "category_id", catID, "workspace_id", id.WorkspaceID)
		NotFoundError("Category not found").Write(w)
		return
	}

	NewHTMXResponse().
		Trigger("category:changed", struct{}{}).
		Write(w)
}

// monthTotals reads the cached summary for a month, computing it on a miss.
func (s *Server) monthTotals(ctx context.Context, workspaceID int64, monthKey string) (core.MonthTotals, error) {
	key := summaryCacheKey(workspaceID, monthKey)
	if totals, found := s.summaryCache.Get(key); found {
		return totals, nil
	}

	startISO, endISO := services.MonthWindow(monthKey)
	totals, err := s.budget.MonthTotals(ctx, workspaceID, startISO, endISO)
	if err != nil {
		return core.MonthTotals{}, fmt.Errorf("month totals (month=%s): %w", monthKey, err)
	}

	s.summaryCache.Set(key, totals)
	return totals, nil
}

func (s *Server) invalidateSummary(workspaceID int64, monthKey string) {
	s.summaryCache.Delete(summaryCacheKey(workspaceID, monthKey))
}

func summaryCacheKey(workspaceID int64, monthKey string) string {
	return strconv.FormatInt(workspaceID, 10) + ":" + monthKey
}

// writeValidationOrServerError maps domain validation failures to 422 and
// everything else to 500.
func writeValidationOrServerError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	for _, sentinel := range []error{
		core.ErrInvalidAmount, core.ErrInvalidType, core.ErrMissingCategory,
		core.ErrInvalidDate, core.ErrEmptyName, core.ErrNameTooLong,
		core.ErrInvalidDueDay, core.ErrEmptyTitle,
	} {
		if errors.Is(err, sentinel) {
			UnprocessableEntityError(err.Error()).Write(w)
			return
		}
	}
	slog.ErrorContext(r.Context(), "Request failed", "error", err, "url", r.URL.Path)
	InternalServerError(fallback).Write(w)
}
