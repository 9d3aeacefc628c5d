package core

import (
	"errors"
	"strings"

	"hearth/internal/dates"
)

const (
	Income  TxnType = "income"
	Expense TxnType = "expense"
)

type (
	// TxnType discriminates budget transactions.
	TxnType string

	Money struct {
		Cents int64
	}

	// Profile is a member of a workspace. Identity lives in the sessions
	// table; this is the value handlers work with.
	Profile struct {
		ID          int64
		DisplayName string
	}

	// Transaction is a single income or expense entry. OccurredAt is the
	// canonical storage instant (midday UTC) produced by dates.NormalizeToStorage.
	Transaction struct {
		ID          int64
		WorkspaceID int64
		CategoryID  int64
		Type        TxnType
		Description string
		Amount      Money
		OccurredAt  string
	}

	Category struct {
		ID          int64
		WorkspaceID int64
		Name        string
	}

	// Bill recurs monthly on DueDay (1-31, clamped to the month at render time).
	Bill struct {
		ID          int64
		WorkspaceID int64
		Name        string
		Amount      Money
		DueDay      int
	}

	// BillPayment records that a bill was paid on a given day. PaidOn is in
	// storage form, like Transaction.OccurredAt.
	BillPayment struct {
		ID          int64
		WorkspaceID int64
		BillID      int64
		PaidOn      string
	}

	WishlistItem struct {
		ID        int64
		OwnerID   int64
		Title     string
		URL       string
		SortOrder int
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrMissingCategory = errors.New("missing category")
	ErrInvalidDate     = errors.New("invalid date")
	ErrEmptyName       = errors.New("empty name")
	ErrNameTooLong     = errors.New("name too long (max 60 characters)")
	ErrInvalidDueDay   = errors.New("due day must be between 1 and 31")
	ErrEmptyTitle      = errors.New("empty title")
)

func (t TxnType) Valid() bool {
	return t == Income || t == Expense
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// validStorageDate accepts only strings whose day prefix survives the
// display round trip.
func validStorageDate(s string) bool {
	ymd := dates.ToDisplayForm(s)
	if ymd == "" {
		return false
	}
	_, err := dates.NormalizeToStorage(ymd)
	return err == nil
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if t.CategoryID == 0 {
		return ErrMissingCategory
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !validStorageDate(t.OccurredAt) {
		return ErrInvalidDate
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > 60 {
		return ErrNameTooLong
	}
	return nil
}

func (b Bill) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if b.DueDay < 1 || b.DueDay > 31 {
		return ErrInvalidDueDay
	}
	return nil
}

func (p BillPayment) Validate() error {
	if p.BillID == 0 {
		return errors.New("missing bill")
	}
	if !validStorageDate(p.PaidOn) {
		return ErrInvalidDate
	}
	return nil
}

func (w WishlistItem) Validate() error {
	if strings.TrimSpace(w.Title) == "" {
		return ErrEmptyTitle
	}
	if len(w.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	return nil
}
