package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"hearth/internal/core"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a scoped lookup or mutation matches no row.
	ErrNotFound = errors.New("not found")
	// ErrNoWorkspace is returned when a profile has no workspace membership.
	ErrNoWorkspace = errors.New("no workspace membership")
	// ErrForeignItems is returned when a reorder request names items the
	// caller does not own.
	ErrForeignItems = errors.New("reorder includes items owned by someone else")
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- profiles and workspaces ---

func (r *SQLiteRepository) CreateProfile(ctx context.Context, displayName string) (core.Profile, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (display_name) VALUES (?)`, displayName)
	if err != nil {
		return core.Profile{}, fmt.Errorf("create profile: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Profile{}, fmt.Errorf("profile insert id: %w", err)
	}
	return core.Profile{ID: id, DisplayName: displayName}, nil
}

func (r *SQLiteRepository) ProfileByName(ctx context.Context, displayName string) (core.Profile, error) {
	var p core.Profile
	err := r.db.QueryRowContext(ctx,
		`SELECT id, display_name FROM profiles WHERE display_name = ? LIMIT 1`,
		displayName).Scan(&p.ID, &p.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Profile{}, ErrNotFound
	}
	if err != nil {
		return core.Profile{}, fmt.Errorf("profile by name: %w", err)
	}
	return p, nil
}

// WorkspaceProfiles lists every member profile of a workspace, ordered by
// display name. Feeds the wishlist profile switcher.
func (r *SQLiteRepository) WorkspaceProfiles(ctx context.Context, workspaceID int64) ([]core.Profile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.display_name
		FROM profiles p
		JOIN workspace_members m ON m.profile_id = p.id
		WHERE m.workspace_id = ?
		ORDER BY p.display_name ASC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("workspace profiles: %w", err)
	}
	defer rows.Close()

	var out []core.Profile
	for rows.Next() {
		var p core.Profile
		if err := rows.Scan(&p.ID, &p.DisplayName); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateWorkspace creates the workspace and its first membership in one
// transaction.
func (r *SQLiteRepository) CreateWorkspace(ctx context.Context, name string, ownerProfileID int64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO workspaces (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("create workspace: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("workspace insert id: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO workspace_members (workspace_id, profile_id) VALUES (?, ?)`,
		id, ownerProfileID); err != nil {
		return 0, fmt.Errorf("add owner membership: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Workspace created", "workspace_id", id, "owner_profile_id", ownerProfileID)
	return id, nil
}

func (r *SQLiteRepository) AddMember(ctx context.Context, workspaceID, profileID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO workspace_members (workspace_id, profile_id) VALUES (?, ?)`,
		workspaceID, profileID)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// WorkspaceForProfile resolves the tenant every page is scoped by.
func (r *SQLiteRepository) WorkspaceForProfile(ctx context.Context, profileID int64) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`SELECT workspace_id FROM workspace_members WHERE profile_id = ? LIMIT 1`,
		profileID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoWorkspace
	}
	if err != nil {
		return 0, fmt.Errorf("workspace for profile: %w", err)
	}
	return id, nil
}

// --- sessions ---

func (r *SQLiteRepository) CreateSession(ctx context.Context, token string, profileID int64, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token, profile_id, expires_at) VALUES (?, ?, ?)`,
		token, profileID, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ProfileByToken(ctx context.Context, token string) (core.Profile, error) {
	var p core.Profile
	err := r.db.QueryRowContext(ctx, `
		SELECT p.id, p.display_name
		FROM sessions s
		JOIN profiles p ON p.id = s.profile_id
		WHERE s.token = ? AND s.expires_at > ?`,
		token, time.Now().UTC()).Scan(&p.ID, &p.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Profile{}, ErrNotFound
	}
	if err != nil {
		return core.Profile{}, fmt.Errorf("profile by token: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// --- categories ---

func (r *SQLiteRepository) ListCategories(ctx context.Context, workspaceID int64) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workspace_id, name
		FROM budget_categories
		WHERE workspace_id = ? AND is_archived = 0
		ORDER BY name ASC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budget_categories (workspace_id, name) VALUES (?, ?)`,
		c.WorkspaceID, c.Name)
	if err != nil {
		return 0, fmt.Errorf("create category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("category insert id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) RenameCategory(ctx context.Context, workspaceID, id int64, name string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE budget_categories
		SET name = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND workspace_id = ? AND is_archived = 0`,
		name, id, workspaceID)
	if err != nil {
		return fmt.Errorf("rename category: %w", err)
	}
	return requireRow(res, "rename category")
}

func (r *SQLiteRepository) ArchiveCategory(ctx context.Context, workspaceID, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE budget_categories
		SET is_archived = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND workspace_id = ? AND is_archived = 0`,
		id, workspaceID)
	if err != nil {
		return fmt.Errorf("archive category: %w", err)
	}
	return requireRow(res, "archive category")
}

// --- transactions ---

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction, createdBy int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO budget_transactions
			(workspace_id, category_id, type, description, amount_cents, occurred_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.WorkspaceID, t.CategoryID, string(t.Type), nullable(t.Description),
		t.Amount.Cents, t.OccurredAt, createdBy)
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction insert id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", id,
		"workspace_id", t.WorkspaceID,
		"type", string(t.Type),
		"amount_cents", t.Amount.Cents,
		"occurred_at", t.OccurredAt)
	return id, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE budget_transactions
		SET category_id = ?, type = ?, description = ?, amount_cents = ?,
		    occurred_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND workspace_id = ? AND is_archived = 0`,
		t.CategoryID, string(t.Type), nullable(t.Description), t.Amount.Cents,
		t.OccurredAt, t.ID, t.WorkspaceID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireRow(res, "update transaction")
}

func (r *SQLiteRepository) ArchiveTransaction(ctx context.Context, workspaceID, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE budget_transactions
		SET is_archived = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND workspace_id = ? AND is_archived = 0`,
		id, workspaceID)
	if err != nil {
		return fmt.Errorf("archive transaction: %w", err)
	}
	return requireRow(res, "archive transaction")
}

// TransactionByID fetches a single transaction regardless of archive state.
func (r *SQLiteRepository) TransactionByID(ctx context.Context, id int64) (core.Transaction, error) {
	var t core.Transaction
	var typ string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, category_id, type, COALESCE(description, ''), amount_cents, occurred_at
		FROM budget_transactions
		WHERE id = ?`, id).
		Scan(&t.ID, &t.WorkspaceID, &t.CategoryID, &typ,
			&t.Description, &t.Amount.Cents, &t.OccurredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	t.Type = core.TxnType(typ)
	return t, nil
}

// CategoryByID fetches a category by id, archived ones included so old
// transactions keep rendering their label.
func (r *SQLiteRepository) CategoryByID(ctx context.Context, id int64) (core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, name
		FROM budget_categories
		WHERE id = ?`, id).
		Scan(&c.ID, &c.WorkspaceID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// ListRecentTransactions returns the latest non-archived transactions,
// newest first.
func (r *SQLiteRepository) ListRecentTransactions(ctx context.Context, workspaceID int64, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workspace_id, category_id, type, COALESCE(description, ''), amount_cents, occurred_at
		FROM budget_transactions
		WHERE workspace_id = ? AND is_archived = 0
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?`, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var typ string
		if err := rows.Scan(&t.ID, &t.WorkspaceID, &t.CategoryID, &typ,
			&t.Description, &t.Amount.Cents, &t.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = core.TxnType(typ)
		out = append(out, t)
	}
	return out, rows.Err()
}

// MonthTotals sums income and expense over the half-open window
// [startISO, endISO). The bounds are storage-form instant strings.
func (r *SQLiteRepository) MonthTotals(ctx context.Context, workspaceID int64, startISO, endISO string) (core.MonthTotals, error) {
	var totals core.MonthTotals
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents ELSE 0 END), 0)
		FROM budget_transactions
		WHERE workspace_id = ? AND is_archived = 0
		  AND occurred_at >= ? AND occurred_at < ?`,
		workspaceID, startISO, endISO).Scan(&totals.Income.Cents, &totals.Expense.Cents)
	if err != nil {
		return core.MonthTotals{}, fmt.Errorf("month totals: %w", err)
	}
	return totals, nil
}

// --- bills and payments ---

func (r *SQLiteRepository) ListBills(ctx context.Context, workspaceID int64) ([]core.Bill, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workspace_id, name, amount_cents, due_day
		FROM budget_bills
		WHERE workspace_id = ? AND is_archived = 0
		ORDER BY due_day ASC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	defer rows.Close()

	var out []core.Bill
	for rows.Next() {
		var b core.Bill
		if err := rows.Scan(&b.ID, &b.WorkspaceID, &b.Name, &b.Amount.Cents, &b.DueDay); err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateBill(ctx context.Context, b core.Bill) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO budget_bills (workspace_id, name, amount_cents, due_day)
		VALUES (?, ?, ?, ?)`,
		b.WorkspaceID, b.Name, b.Amount.Cents, b.DueDay)
	if err != nil {
		return 0, fmt.Errorf("create bill: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("bill insert id: %w", err)
	}
	return id, nil
}

// PaymentsInWindow returns payments whose paid_on falls in [startISO,
// endISO), oldest first.
func (r *SQLiteRepository) PaymentsInWindow(ctx context.Context, workspaceID int64, startISO, endISO string) ([]core.BillPayment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workspace_id, bill_id, paid_on
		FROM budget_bill_payments
		WHERE workspace_id = ? AND paid_on >= ? AND paid_on < ?
		ORDER BY paid_on ASC`, workspaceID, startISO, endISO)
	if err != nil {
		return nil, fmt.Errorf("payments in window: %w", err)
	}
	defer rows.Close()

	var out []core.BillPayment
	for rows.Next() {
		var p core.BillPayment
		if err := rows.Scan(&p.ID, &p.WorkspaceID, &p.BillID, &p.PaidOn); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreatePayment(ctx context.Context, p core.BillPayment) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO budget_bill_payments (workspace_id, bill_id, paid_on)
		VALUES (?, ?, ?)`,
		p.WorkspaceID, p.BillID, p.PaidOn)
	if err != nil {
		return 0, fmt.Errorf("create payment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("payment insert id: %w", err)
	}
	return id, nil
}

// --- wishlist ---

func (r *SQLiteRepository) ListWishlist(ctx context.Context, ownerID int64) ([]core.WishlistItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, title, COALESCE(url, ''), sort_order
		FROM wishlist_items
		WHERE owner_id = ?
		ORDER BY sort_order ASC, id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	defer rows.Close()

	var out []core.WishlistItem
	for rows.Next() {
		var w core.WishlistItem
		if err := rows.Scan(&w.ID, &w.OwnerID, &w.Title, &w.URL, &w.SortOrder); err != nil {
			return nil, fmt.Errorf("scan wishlist item: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// AddWishlistItem appends the item at the end of the owner's list. The
// next sort_order is computed inside the transaction so concurrent adds
// cannot collide.
func (r *SQLiteRepository) AddWishlistItem(ctx context.Context, item core.WishlistItem) (core.WishlistItem, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WishlistItem{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sort_order), -1) + 1 FROM wishlist_items WHERE owner_id = ?`,
		item.OwnerID).Scan(&next); err != nil {
		return core.WishlistItem{}, fmt.Errorf("next sort order: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO wishlist_items (owner_id, title, url, sort_order)
		VALUES (?, ?, ?, ?)`,
		item.OwnerID, item.Title, nullable(item.URL), next)
	if err != nil {
		return core.WishlistItem{}, fmt.Errorf("add wishlist item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.WishlistItem{}, fmt.Errorf("wishlist insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.WishlistItem{}, fmt.Errorf("commit: %w", err)
	}

	item.ID = id
	item.SortOrder = next
	return item, nil
}

func (r *SQLiteRepository) DeleteWishlistItem(ctx context.Context, ownerID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM wishlist_items WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete wishlist item: %w", err)
	}
	return requireRow(res, "delete wishlist item")
}

// ReorderWishlist rewrites sort_order to match orderedIDs. The store is
// the ordering authority: the whole list is rewritten in one transaction,
// and the request is rejected if any id belongs to another owner.
func (r *SQLiteRepository) ReorderWishlist(ctx context.Context, ownerID int64, orderedIDs []int64) error {
	if len(orderedIDs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for pos, id := range orderedIDs {
		res, err := tx.ExecContext(ctx, `
			UPDATE wishlist_items
			SET sort_order = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND owner_id = ?`,
			pos, id, ownerID)
		if err != nil {
			return fmt.Errorf("reorder item %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("reorder rows affected: %w", err)
		}
		if n == 0 {
			return ErrForeignItems
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Wishlist reordered", "owner_id", ownerID, "items", len(orderedIDs))
	return nil
}

// --- events ---

// RecordEvent appends to the audit trail written by the activity worker.
func (r *SQLiteRepository) RecordEvent(ctx context.Context, kind string, workspaceID, entityID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (kind, workspace_id, entity_id) VALUES (?, ?, ?)`,
		kind, workspaceID, entityID)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
