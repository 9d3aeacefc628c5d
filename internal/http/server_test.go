package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hearth/internal/identity"
	"hearth/internal/services"
	"hearth/internal/storage"
)

const testPassphrase = "open sesame"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("init repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	srv := NewServer(":0", Options{
		Budget:      services.NewBudgetService(repo, nil),
		Bills:       services.NewBillService(repo, nil),
		Wishlist:    services.NewWishlistService(repo, nil),
		Sessions:    identity.NewSessionProvider(repo, testPassphrase, time.Hour),
		Profiles:    repo,
		RecentLimit: 20,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return srv
}

// register creates a profile through the HTTP surface and returns its
// session cookie.
func register(t *testing.T, srv *Server, name string) *http.Cookie {
	t.Helper()

	form := url.Values{"name": {name}, "passphrase": {testPassphrase}}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("register status = %d, body %s", rr.Code, rr.Body.String())
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("register did not set a session cookie")
	return nil
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rr.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if !strings.Contains(rr.Body.String(), "requests_total") {
		t.Errorf("metrics body missing requests_total: %s", rr.Body.String())
	}
}

func TestUnauthenticatedRedirectsToLogin(t *testing.T) {
	srv := newTestServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/budget", nil)
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusSeeOther)
	}
	if loc := rr.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}
}

func TestUnauthenticatedHTMXGets401WithRedirect(t *testing.T) {
	srv := newTestServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/budget/summary", nil)
	req.Header.Set("HX-Request", "true")
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
	if got := rr.Header().Get("HX-Redirect"); got != "/login" {
		t.Errorf("HX-Redirect = %q, want /login", got)
	}
}

func TestRegisterLoginLogout(t *testing.T) {
	srv := newTestServer(t)
	cookie := register(t, srv, "Ada")

	// Authenticated page load works.
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/budget", nil)
	req.AddCookie(cookie)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("/budget status = %d, body %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "Ada") {
		t.Error("budget page missing profile name")
	}

	// A fresh login with the right passphrase works too.
	form := url.Values{"name": {"Ada"}, "passphrase": {testPassphrase}}
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d", rr.Code)
	}

	// Logout revokes the original session.
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("logout status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/budget", nil)
	req.AddCookie(cookie)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusSeeOther {
		t.Errorf("revoked session status = %d, want redirect", rr.Code)
	}
}

func TestLoginRejectsWrongPassphrase(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "Ada")

	form := url.Values{"name": {"Ada"}, "passphrase": {"guess"}}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func postForm(srv *Server, cookie *http.Cookie, path string, form url.Values) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestCreateTransactionFlow(t *testing.T) {
	srv := newTestServer(t)
	cookie := register(t, srv, "Ada")

	rr := postForm(srv, cookie, "/budget/categories", url.Values{"name": {"Groceries"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("create category status = %d, body %s", rr.Code, rr.Body.String())
	}

	rr = postForm(srv, cookie, "/budget/transactions", url.Values{
		"type":        {"expense"},
		"description": {"Weekly shop"},
		"amount":      {"45,50"},
		"date":        {"2024-03-15"},
		"category_id": {"1"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("create transaction status = %d, body %s", rr.Code, rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, `"txn:created"`) {
		t.Errorf("HX-Trigger missing txn:created: %s", trigger)
	}
	if !strings.Contains(trigger, `"month":"2024-03"`) {
		t.Errorf("HX-Trigger missing month: %s", trigger)
	}

	// The summary partial reflects the write.
	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/budget/summary?month=2024-03", nil)
	req.AddCookie(cookie)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "45,50") {
		t.Errorf("summary missing amount, body %s", rr.Body.String())
	}
}

func TestCreateTransactionRejectsMissingCategory(t *testing.T) {
	srv := newTestServer(t)
	cookie := register(t, srv, "Ada")

	rr := postForm(srv, cookie, "/budget/transactions", url.Values{
		"type":        {"expense"},
		"description": {"No category"},
		"amount":      {"10,00"},
		"date":        {"2024-03-15"},
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rr.Code)
	}
}

func TestUpdateTransactionMovesMonth(t *testing.T) {
	srv := newTestServer(t)
	cookie := register(t, srv, "Ada")

	postForm(srv, cookie, "/budget/categories", url.Values{"name": {"Travel"}})
	rr := postForm(srv, cookie, "/budget/transactions", url.Values{
		"type":        {"expense"},
		"description": {"Train ticket"},
		"amount":      {"30,00"},
		"date":        {"2024-03-10"},
		"category_id": {"1"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("create status = %d", rr.Code)
	}

	rr = postForm(srv, cookie, "/budget/transactions/update?month=2024-03", url.Values{
		"id":          {"1"},
		"type":        {"expense"},
		"description": {"Train ticket"},
		"amount":      {"35,00"},
		"date":        {"2024-04-02"},
		"category_id": {"1"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rr.Code, rr.Body.String())
	}

	// March is empty again, April carries the edited amount.
	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/budget/summary?month=2024-03", nil)
	req.AddCookie(cookie)
	srv.Handler.ServeHTTP(rr, req)
	if !strings.Contains(rr.Body.String(), "0,00") {
		t.Errorf("march summary should be empty, body %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/budget/summary?month=2024-04", nil)
	req.AddCookie(cookie)
	srv.Handler.ServeHTTP(rr, req)
	if !strings.Contains(rr.Body.String(), "35,00") {
		t.Errorf("april summary missing updated amount, body %s", rr.Body.String())
	}
}

func TestArchiveTransactionUpdatesSummary(t *testing.T) {
	srv := newTestServer(t)
	cookie := register(t, srv, "Ada")

	postForm(srv, cookie, "/budget/categories", url.Values{"name": {"Rent"}})
	rr := postForm(srv, cookie, "/budget/transactions", url.Values{
		"type":        {"expense"},
		"description": {"March rent"},
		"amount":      {"800,00"},
		"date":        {"2024-03-01"},
		"category_id": {"1"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("create status = %d", rr.Code)
	}

	rr = postForm(srv, cookie, "/budget/transactions/archive?month=2024-03",
		url.Values{"id": {"1"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("archive status = %d, body %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), `"txn:archived"`) {
		t.Error("HX-Trigger missing txn:archived")
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/budget/summary?month=2024-03", nil)
	req.AddCookie(cookie)
	srv.Handler.ServeHTTP(rr, req)
	if !strings.Contains(rr.Body.String(), "0,00") {
		t.Errorf("summary should be back to zero, body %s", rr.Body.String())
	}
}

func TestBillPaymentFlow(t *testing.T) {
	srv := newTestServer(t)
	cookie := register(t, srv, "Ada")

	rr := postForm(srv, cookie, "/calendar/bills", url.Values{
		"name":    {"Electricity"},
		"amount":  {"60,00"},
		"due_day": {"15"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("create bill status = %d, body %s", rr.Code, rr.Body.String())
	}

	// Payment outside the viewed month is rejected.
	rr = postForm(srv, cookie, "/calendar/bills/pay?month=2024-03", url.Values{
		"bill_id": {"1"},
		"date":    {"2024-04-01"},
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("out-of-month payment status = %d, want 422", rr.Code)
	}

	rr = postForm(srv, cookie, "/calendar/bills/pay?month=2024-03", url.Values{
		"bill_id": {"1"},
		"date":    {"2024-03-14"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("payment status = %d, body %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), `"bill:paid"`) {
		t.Error("HX-Trigger missing bill:paid")
	}

	// The calendar page shows the bill as paid.
	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/calendar?month=2024-03", nil)
	req.AddCookie(cookie)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("calendar status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Electricity") {
		t.Error("calendar missing bill name")
	}
}

func TestWishlistFlow(t *testing.T) {
	srv := newTestServer(t)
	cookie := register(t, srv, "Ada")

	for _, title := range []string{"Book", "Lamp", "Chair"} {
		rr := postForm(srv, cookie, "/wishlist/items", url.Values{"title": {title}})
		if rr.Code != http.StatusOK {
			t.Fatalf("add %q status = %d, body %s", title, rr.Code, rr.Body.String())
		}
	}

	rr := postForm(srv, cookie, "/wishlist/reorder", url.Values{"ids": {"3,1,2"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("reorder status = %d, body %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/wishlist", nil)
	req.AddCookie(cookie)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("wishlist status = %d", rr.Code)
	}
	body := rr.Body.String()
	if strings.Index(body, "Chair") > strings.Index(body, "Book") {
		t.Error("reorder not reflected on the page")
	}

	rr = postForm(srv, cookie, "/wishlist/items/delete", url.Values{"id": {"2"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body %s", rr.Code, rr.Body.String())
	}
}

func TestWishlistOfAnotherMemberIsReadOnly(t *testing.T) {
	srv := newTestServer(t)
	ada := register(t, srv, "Ada")

	rr := postForm(srv, ada, "/wishlist/items", url.Values{"title": {"Secret gift"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("add item status = %d", rr.Code)
	}

	// A second profile joining Ada's workspace sees her list but cannot
	// reorder it.
	form := url.Values{
		"name":         {"Ben"},
		"passphrase":   {testPassphrase},
		"workspace_id": {"1"},
	}
	reg := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.Handler.ServeHTTP(reg, req)
	if reg.Code != http.StatusOK {
		t.Fatalf("second register status = %d, body %s", reg.Code, reg.Body.String())
	}
	var ben *http.Cookie
	for _, c := range reg.Result().Cookies() {
		if c.Name == sessionCookie {
			ben = c
		}
	}
	if ben == nil {
		t.Fatal("no session cookie for second profile")
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/wishlist?profile=1", nil)
	req.AddCookie(ben)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("view status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Secret gift") {
		t.Error("member cannot see the other list")
	}

	rr = postForm(srv, ben, "/wishlist/reorder", url.Values{"ids": {"1"}})
	if rr.Code != http.StatusForbidden {
		t.Errorf("foreign reorder status = %d, want 403", rr.Code)
	}
}
