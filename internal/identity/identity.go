// Package identity resolves who is making a request. Sessions are opaque
// tokens stored server side, so swapping in a hosted auth provider later
// only means replacing the Provider implementation.
package identity

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"hearth/internal/core"
)

var (
	ErrBadPassphrase  = errors.New("identity: passphrase mismatch")
	ErrUnknownProfile = errors.New("identity: unknown profile")
	ErrNoSession      = errors.New("identity: no valid session")
)

// Identity is a resolved caller: the profile plus the workspace it belongs to.
type Identity struct {
	Profile     core.Profile
	WorkspaceID int64
}

// Provider resolves session tokens to identities.
type Provider interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// Store is the slice of the storage layer sessions need.
type Store interface {
	CreateProfile(ctx context.Context, displayName string) (core.Profile, error)
	ProfileByName(ctx context.Context, displayName string) (core.Profile, error)
	CreateWorkspace(ctx context.Context, name string, ownerProfileID int64) (int64, error)
	AddMember(ctx context.Context, workspaceID, profileID int64) error
	WorkspaceForProfile(ctx context.Context, profileID int64) (int64, error)
	CreateSession(ctx context.Context, token string, profileID int64, expiresAt time.Time) error
	ProfileByToken(ctx context.Context, token string) (core.Profile, error)
	DeleteSession(ctx context.Context, token string) error
}

// SessionProvider authenticates against a shared household passphrase and
// keeps sessions in SQLite.
type SessionProvider struct {
	store      Store
	passphrase string
	ttl        time.Duration
}

func NewSessionProvider(store Store, passphrase string, ttl time.Duration) *SessionProvider {
	return &SessionProvider{store: store, passphrase: passphrase, ttl: ttl}
}

// Login checks the passphrase and opens a session for an existing profile.
func (p *SessionProvider) Login(ctx context.Context, displayName, passphrase string) (string, error) {
	if err := p.checkPassphrase(passphrase); err != nil {
		return "", err
	}
	profile, err := p.store.ProfileByName(ctx, strings.TrimSpace(displayName))
	if err != nil {
		return "", ErrUnknownProfile
	}
	return p.openSession(ctx, profile.ID)
}

// Register creates a profile, attaches it to a workspace and opens a session.
// When workspaceID is zero a fresh workspace named workspaceName is created,
// otherwise the profile joins the given one.
func (p *SessionProvider) Register(ctx context.Context, displayName, passphrase, workspaceName string, workspaceID int64) (string, error) {
	if err := p.checkPassphrase(passphrase); err != nil {
		return "", err
	}
	profile, err := p.store.CreateProfile(ctx, strings.TrimSpace(displayName))
	if err != nil {
		return "", fmt.Errorf("create profile: %w", err)
	}
	if workspaceID == 0 {
		if _, err := p.store.CreateWorkspace(ctx, workspaceName, profile.ID); err != nil {
			return "", fmt.Errorf("create workspace: %w", err)
		}
	} else if err := p.store.AddMember(ctx, workspaceID, profile.ID); err != nil {
		return "", fmt.Errorf("join workspace: %w", err)
	}
	return p.openSession(ctx, profile.ID)
}

// Resolve implements Provider.
func (p *SessionProvider) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrNoSession
	}
	profile, err := p.store.ProfileByToken(ctx, token)
	if err != nil {
		return Identity{}, ErrNoSession
	}
	workspaceID, err := p.store.WorkspaceForProfile(ctx, profile.ID)
	if err != nil {
		return Identity{}, fmt.Errorf("resolve workspace: %w", err)
	}
	return Identity{Profile: profile, WorkspaceID: workspaceID}, nil
}

// Logout revokes a session token. Unknown tokens are not an error.
func (p *SessionProvider) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return p.store.DeleteSession(ctx, token)
}

func (p *SessionProvider) checkPassphrase(got string) error {
	if subtle.ConstantTimeCompare([]byte(got), []byte(p.passphrase)) != 1 {
		return ErrBadPassphrase
	}
	return nil
}

func (p *SessionProvider) openSession(ctx context.Context, profileID int64) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	if err := p.store.CreateSession(ctx, token, profileID, time.Now().Add(p.ttl)); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
