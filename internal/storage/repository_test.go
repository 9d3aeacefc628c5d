package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"hearth/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "hearth.db"))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedWorkspace(t *testing.T, repo *SQLiteRepository) (workspaceID int64, owner core.Profile) {
	t.Helper()
	ctx := context.Background()
	owner, err := repo.CreateProfile(ctx, "Alex")
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	workspaceID, err = repo.CreateWorkspace(ctx, "Home", owner.ID)
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	return workspaceID, owner
}

func TestWorkspaceMembership(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	wsID, owner := seedWorkspace(t, repo)

	got, err := repo.WorkspaceForProfile(ctx, owner.ID)
	if err != nil {
		t.Fatalf("workspace for profile: %v", err)
	}
	if got != wsID {
		t.Errorf("workspace = %d, want %d", got, wsID)
	}

	stranger, err := repo.CreateProfile(ctx, "Sam")
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if _, err := repo.WorkspaceForProfile(ctx, stranger.ID); !errors.Is(err, ErrNoWorkspace) {
		t.Errorf("stranger membership: got %v, want ErrNoWorkspace", err)
	}

	if err := repo.AddMember(ctx, wsID, stranger.ID); err != nil {
		t.Fatalf("add member: %v", err)
	}
	profiles, err := repo.WorkspaceProfiles(ctx, wsID)
	if err != nil {
		t.Fatalf("workspace profiles: %v", err)
	}
	if len(profiles) != 2 {
		t.Errorf("got %d profiles, want 2", len(profiles))
	}
}

func TestSessions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, owner := seedWorkspace(t, repo)

	if err := repo.CreateSession(ctx, "tok-live", owner.ID, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := repo.CreateSession(ctx, "tok-dead", owner.ID, time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("create expired session: %v", err)
	}

	p, err := repo.ProfileByToken(ctx, "tok-live")
	if err != nil {
		t.Fatalf("profile by token: %v", err)
	}
	if p.ID != owner.ID {
		t.Errorf("profile = %d, want %d", p.ID, owner.ID)
	}

	if _, err := repo.ProfileByToken(ctx, "tok-dead"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired token: got %v, want ErrNotFound", err)
	}
	if _, err := repo.ProfileByToken(ctx, "unknown"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown token: got %v, want ErrNotFound", err)
	}

	if err := repo.DeleteSession(ctx, "tok-live"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := repo.ProfileByToken(ctx, "tok-live"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted token: got %v, want ErrNotFound", err)
	}
}

func TestCategoriesLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	wsID, _ := seedWorkspace(t, repo)

	id, err := repo.CreateCategory(ctx, core.Category{WorkspaceID: wsID, Name: "Groceries"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	if err := repo.RenameCategory(ctx, wsID, id, "Food"); err != nil {
		t.Fatalf("rename category: %v", err)
	}
	cats, err := repo.ListCategories(ctx, wsID)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(cats) != 1 || cats[0].Name != "Food" {
		t.Errorf("categories = %+v, want one named Food", cats)
	}

	// Scoped to the workspace: a different tenant cannot touch it.
	if err := repo.RenameCategory(ctx, wsID+1, id, "Nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-tenant rename: got %v, want ErrNotFound", err)
	}

	if err := repo.ArchiveCategory(ctx, wsID, id); err != nil {
		t.Fatalf("archive category: %v", err)
	}
	cats, err = repo.ListCategories(ctx, wsID)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(cats) != 0 {
		t.Errorf("archived category still listed: %+v", cats)
	}
	if err := repo.ArchiveCategory(ctx, wsID, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("double archive: got %v, want ErrNotFound", err)
	}
}

func TestTransactionsAndTotals(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	wsID, owner := seedWorkspace(t, repo)

	catID, err := repo.CreateCategory(ctx, core.Category{WorkspaceID: wsID, Name: "General"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	mk := func(typ core.TxnType, cents int64, occurredAt string) int64 {
		t.Helper()
		id, err := repo.CreateTransaction(ctx, core.Transaction{
			WorkspaceID: wsID,
			CategoryID:  catID,
			Type:        typ,
			Amount:      core.Money{Cents: cents},
			OccurredAt:  occurredAt,
		}, owner.ID)
		if err != nil {
			t.Fatalf("create transaction: %v", err)
		}
		return id
	}

	inMonth := mk(core.Income, 300000, "2024-03-01T12:00:00.000Z")
	mk(core.Expense, 12500, "2024-03-15T12:00:00.000Z")
	mk(core.Expense, 9900, "2024-04-02T12:00:00.000Z") // outside window

	totals, err := repo.MonthTotals(ctx, wsID,
		"2024-03-01T00:00:00.000Z", "2024-04-01T00:00:00.000Z")
	if err != nil {
		t.Fatalf("month totals: %v", err)
	}
	if totals.Income.Cents != 300000 || totals.Expense.Cents != 12500 {
		t.Errorf("totals = %+v, want income 300000 expense 12500", totals)
	}
	if totals.Net().Cents != 287500 {
		t.Errorf("net = %d, want 287500", totals.Net().Cents)
	}

	txns, err := repo.ListRecentTransactions(ctx, wsID, 20)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txns) != 3 {
		t.Fatalf("got %d transactions, want 3", len(txns))
	}
	if txns[0].OccurredAt != "2024-04-02T12:00:00.000Z" {
		t.Errorf("ordering: newest first, got %s", txns[0].OccurredAt)
	}

	if err := repo.ArchiveTransaction(ctx, wsID, inMonth); err != nil {
		t.Fatalf("archive transaction: %v", err)
	}
	totals, err = repo.MonthTotals(ctx, wsID,
		"2024-03-01T00:00:00.000Z", "2024-04-01T00:00:00.000Z")
	if err != nil {
		t.Fatalf("month totals after archive: %v", err)
	}
	if totals.Income.Cents != 0 {
		t.Errorf("archived income still counted: %d", totals.Income.Cents)
	}
}

func TestBillsAndPayments(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	wsID, _ := seedWorkspace(t, repo)

	billID, err := repo.CreateBill(ctx, core.Bill{
		WorkspaceID: wsID,
		Name:        "Rent",
		Amount:      core.Money{Cents: 120000},
		DueDay:      31,
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if _, err := repo.CreateBill(ctx, core.Bill{
		WorkspaceID: wsID, Name: "Internet", Amount: core.Money{Cents: 4500}, DueDay: 5,
	}); err != nil {
		t.Fatalf("create bill: %v", err)
	}

	bills, err := repo.ListBills(ctx, wsID)
	if err != nil {
		t.Fatalf("list bills: %v", err)
	}
	if len(bills) != 2 || bills[0].Name != "Internet" {
		t.Errorf("bills = %+v, want due-day order with Internet first", bills)
	}

	if _, err := repo.CreatePayment(ctx, core.BillPayment{
		WorkspaceID: wsID, BillID: billID, PaidOn: "2024-02-29T12:00:00.000Z",
	}); err != nil {
		t.Fatalf("create payment: %v", err)
	}

	pays, err := repo.PaymentsInWindow(ctx, wsID,
		"2024-02-01T00:00:00.000Z", "2024-03-01T00:00:00.000Z")
	if err != nil {
		t.Fatalf("payments in window: %v", err)
	}
	if len(pays) != 1 || pays[0].BillID != billID {
		t.Errorf("payments = %+v, want one for bill %d", pays, billID)
	}

	pays, err = repo.PaymentsInWindow(ctx, wsID,
		"2024-03-01T00:00:00.000Z", "2024-04-01T00:00:00.000Z")
	if err != nil {
		t.Fatalf("payments in window: %v", err)
	}
	if len(pays) != 0 {
		t.Errorf("march window should be empty, got %+v", pays)
	}
}

func TestWishlistOrdering(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, owner := seedWorkspace(t, repo)

	var ids []int64
	for _, title := range []string{"first", "second", "third"} {
		item, err := repo.AddWishlistItem(ctx, core.WishlistItem{OwnerID: owner.ID, Title: title})
		if err != nil {
			t.Fatalf("add wishlist item: %v", err)
		}
		ids = append(ids, item.ID)
	}

	items, err := repo.ListWishlist(ctx, owner.ID)
	if err != nil {
		t.Fatalf("list wishlist: %v", err)
	}
	if len(items) != 3 || items[0].Title != "first" || items[2].SortOrder != 2 {
		t.Fatalf("append order wrong: %+v", items)
	}

	// Reverse the list.
	if err := repo.ReorderWishlist(ctx, owner.ID, []int64{ids[2], ids[1], ids[0]}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	items, err = repo.ListWishlist(ctx, owner.ID)
	if err != nil {
		t.Fatalf("list wishlist: %v", err)
	}
	if items[0].Title != "third" || items[2].Title != "first" {
		t.Errorf("reorder not applied: %+v", items)
	}
}

func TestWishlistReorderRejectsForeignItems(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, owner := seedWorkspace(t, repo)

	other, err := repo.CreateProfile(ctx, "Sam")
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	mine, err := repo.AddWishlistItem(ctx, core.WishlistItem{OwnerID: owner.ID, Title: "mine"})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	theirs, err := repo.AddWishlistItem(ctx, core.WishlistItem{OwnerID: other.ID, Title: "theirs"})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}

	err = repo.ReorderWishlist(ctx, owner.ID, []int64{theirs.ID, mine.ID})
	if !errors.Is(err, ErrForeignItems) {
		t.Fatalf("got %v, want ErrForeignItems", err)
	}

	// The failed reorder must leave the foreign item untouched.
	items, err := repo.ListWishlist(ctx, other.ID)
	if err != nil {
		t.Fatalf("list wishlist: %v", err)
	}
	if len(items) != 1 || items[0].SortOrder != 0 {
		t.Errorf("foreign list mutated: %+v", items)
	}
}

func TestDeleteWishlistItemScopedToOwner(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, owner := seedWorkspace(t, repo)

	item, err := repo.AddWishlistItem(ctx, core.WishlistItem{OwnerID: owner.ID, Title: "keep out"})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if err := repo.DeleteWishlistItem(ctx, owner.ID+99, item.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign delete: got %v, want ErrNotFound", err)
	}
	if err := repo.DeleteWishlistItem(ctx, owner.ID, item.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}
