package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"hearth/internal/core"
)

type fakeStore struct {
	profiles   map[string]core.Profile
	sessions   map[string]sessionRow
	workspaces map[int64]int64 // profileID -> workspaceID
	nextID     int64
}

type sessionRow struct {
	profileID int64
	expiresAt time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles:   map[string]core.Profile{},
		sessions:   map[string]sessionRow{},
		workspaces: map[int64]int64{},
	}
}

func (s *fakeStore) CreateProfile(_ context.Context, displayName string) (core.Profile, error) {
	s.nextID++
	p := core.Profile{ID: s.nextID, DisplayName: displayName}
	s.profiles[displayName] = p
	return p, nil
}

func (s *fakeStore) ProfileByName(_ context.Context, displayName string) (core.Profile, error) {
	p, ok := s.profiles[displayName]
	if !ok {
		return core.Profile{}, errors.New("not found")
	}
	return p, nil
}

func (s *fakeStore) CreateWorkspace(_ context.Context, _ string, ownerProfileID int64) (int64, error) {
	s.nextID++
	s.workspaces[ownerProfileID] = s.nextID
	return s.nextID, nil
}

func (s *fakeStore) AddMember(_ context.Context, workspaceID, profileID int64) error {
	s.workspaces[profileID] = workspaceID
	return nil
}

func (s *fakeStore) WorkspaceForProfile(_ context.Context, profileID int64) (int64, error) {
	id, ok := s.workspaces[profileID]
	if !ok {
		return 0, errors.New("no workspace")
	}
	return id, nil
}

func (s *fakeStore) CreateSession(_ context.Context, token string, profileID int64, expiresAt time.Time) error {
	s.sessions[token] = sessionRow{profileID: profileID, expiresAt: expiresAt}
	return nil
}

func (s *fakeStore) ProfileByToken(_ context.Context, token string) (core.Profile, error) {
	row, ok := s.sessions[token]
	if !ok || row.expiresAt.Before(time.Now()) {
		return core.Profile{}, errors.New("not found")
	}
	for _, p := range s.profiles {
		if p.ID == row.profileID {
			return p, nil
		}
	}
	return core.Profile{}, errors.New("not found")
}

func (s *fakeStore) DeleteSession(_ context.Context, token string) error {
	delete(s.sessions, token)
	return nil
}

func TestRegisterAndResolve(t *testing.T) {
	ctx := context.Background()
	provider := NewSessionProvider(newFakeStore(), "open sesame", time.Hour)

	token, err := provider.Register(ctx, "Alex", "open sesame", "Home", 0)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if token == "" {
		t.Fatal("register returned empty token")
	}

	id, err := provider.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id.Profile.DisplayName != "Alex" {
		t.Errorf("profile = %q, want Alex", id.Profile.DisplayName)
	}
	if id.WorkspaceID == 0 {
		t.Error("workspace not attached")
	}
}

func TestRegisterJoinsExistingWorkspace(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	provider := NewSessionProvider(store, "open sesame", time.Hour)

	tok, err := provider.Register(ctx, "Alex", "open sesame", "Home", 0)
	if err != nil {
		t.Fatalf("register owner: %v", err)
	}
	owner, err := provider.Resolve(ctx, tok)
	if err != nil {
		t.Fatalf("resolve owner: %v", err)
	}

	tok2, err := provider.Register(ctx, "Sam", "open sesame", "", owner.WorkspaceID)
	if err != nil {
		t.Fatalf("register joiner: %v", err)
	}
	joiner, err := provider.Resolve(ctx, tok2)
	if err != nil {
		t.Fatalf("resolve joiner: %v", err)
	}
	if joiner.WorkspaceID != owner.WorkspaceID {
		t.Errorf("joiner workspace = %d, want %d", joiner.WorkspaceID, owner.WorkspaceID)
	}
}

func TestLoginRejectsBadPassphrase(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	provider := NewSessionProvider(store, "open sesame", time.Hour)
	if _, err := provider.Register(ctx, "Alex", "open sesame", "Home", 0); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := provider.Login(ctx, "Alex", "wrong"); !errors.Is(err, ErrBadPassphrase) {
		t.Errorf("got %v, want ErrBadPassphrase", err)
	}
	if _, err := provider.Login(ctx, "Nobody", "open sesame"); !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("got %v, want ErrUnknownProfile", err)
	}
	if _, err := provider.Login(ctx, "Alex", "open sesame"); err != nil {
		t.Errorf("valid login failed: %v", err)
	}
}

func TestResolveRejectsMissingToken(t *testing.T) {
	provider := NewSessionProvider(newFakeStore(), "pw", time.Hour)
	if _, err := provider.Resolve(context.Background(), ""); !errors.Is(err, ErrNoSession) {
		t.Errorf("got %v, want ErrNoSession", err)
	}
	if _, err := provider.Resolve(context.Background(), "bogus"); !errors.Is(err, ErrNoSession) {
		t.Errorf("got %v, want ErrNoSession", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	ctx := context.Background()
	provider := NewSessionProvider(newFakeStore(), "pw", time.Hour)
	token, err := provider.Register(ctx, "Alex", "pw", "Home", 0)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := provider.Logout(ctx, token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := provider.Resolve(ctx, token); !errors.Is(err, ErrNoSession) {
		t.Errorf("got %v, want ErrNoSession after logout", err)
	}
}
