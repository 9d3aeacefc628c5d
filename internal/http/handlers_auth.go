package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"hearth/internal/identity"
)

const sessionCookie = "hearth_session"

type contextKey string

const identityKey contextKey = "identity"

// requireIdentity resolves the session cookie before running the handler.
// Unauthenticated page loads redirect to /login; HTMX partials get a 401
// with HX-Redirect so the client navigates instead of swapping in a page.
func (s *Server) requireIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if c, err := r.Cookie(sessionCookie); err == nil {
			token = c.Value
		}

		id, err := s.sessions.Resolve(r.Context(), token)
		if err != nil {
			if r.Header.Get("HX-Request") == "true" {
				w.Header().Set("HX-Redirect", "/login")
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, id)
		next(w, r.WithContext(ctx))
	}
}

// identityFrom returns the resolved caller; requireIdentity guarantees it
// is present on protected routes.
func identityFrom(ctx context.Context) identity.Identity {
	id, _ := ctx.Value(identityKey).(identity.Identity)
	return id
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.render(w, r, "login.html", nil)
		return
	}
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	name := sanitizeInput(r.Form.Get("name"))
	passphrase := r.Form.Get("passphrase")

	token, err := s.sessions.Login(r.Context(), name, passphrase)
	if err != nil {
		slog.WarnContext(r.Context(), "Login rejected", "name", name, "error", err)
		switch {
		case errors.Is(err, identity.ErrBadPassphrase):
			ErrorResponse(http.StatusUnauthorized, "Wrong passphrase").Write(w)
		case errors.Is(err, identity.ErrUnknownProfile):
			ErrorResponse(http.StatusUnauthorized, "No profile with that name").Write(w)
		default:
			InternalServerError("Login failed").Write(w)
		}
		return
	}

	s.setSessionCookie(w, token)
	w.Header().Set("HX-Redirect", "/budget")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	name := sanitizeInput(r.Form.Get("name"))
	passphrase := r.Form.Get("passphrase")
	workspaceName := sanitizeInput(r.Form.Get("workspace"))
	workspaceID := parseID(r.Form.Get("workspace_id"))

	if name == "" {
		UnprocessableEntityError("Name is required").Write(w)
		return
	}
	if workspaceID == 0 && workspaceName == "" {
		workspaceName = name + "'s household"
	}

	token, err := s.sessions.Register(r.Context(), name, passphrase, workspaceName, workspaceID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Registration failed", "name", name, "error", err)
		if errors.Is(err, identity.ErrBadPassphrase) {
			ErrorResponse(http.StatusUnauthorized, "Wrong passphrase").Write(w)
			return
		}
		InternalServerError("Could not create profile").Write(w)
		return
	}

	s.setSessionCookie(w, token)
	w.Header().Set("HX-Redirect", "/budget")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	if c, err := r.Cookie(sessionCookie); err == nil {
		if err := s.sessions.Logout(r.Context(), c.Value); err != nil {
			slog.WarnContext(r.Context(), "Logout cleanup failed", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
