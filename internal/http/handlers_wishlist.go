package http

import (
	"log/slog"
	"net/http"

	"hearth/internal/core"
)

type wishlistPageData struct {
	Profile core.Profile
	Viewing core.Profile
	Own     bool
	Members []core.Profile
	Items   []core.WishlistItem
}

// handleWishlistPage shows a profile's wishlist. The viewer picks whose
// list via the profile query parameter; only the owner's own list is
// editable.
func (s *Server) handleWishlistPage(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())

	members, err := s.profiles.WorkspaceProfiles(r.Context(), id.WorkspaceID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Wishlist members load failed",
			"error", err, "workspace_id", id.WorkspaceID)
		http.Error(w, "failed to load wishlist", http.StatusInternalServerError)
		return
	}

	viewing := id.Profile
	if pid := parseID(r.URL.Query().Get("profile")); pid != 0 && pid != id.Profile.ID {
		for _, m := range members {
			if m.ID == pid {
				viewing = m
				break
			}
		}
		// An id outside the workspace silently falls back to the
		// viewer's own list.
	}

	items, err := s.wishlist.Items(r.Context(), viewing.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Wishlist load failed",
			"error", err, "owner_id", viewing.ID)
		http.Error(w, "failed to load wishlist", http.StatusInternalServerError)
		return
	}

	s.render(w, r, "wishlist.html", wishlistPageData{
		Profile: id.Profile,
		Viewing: viewing,
		Own:     viewing.ID == id.Profile.ID,
		Members: members,
		Items:   items,
	})
}

func (s *Server) handleAddWishlistItem(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id := identityFrom(r.Context())
	item := core.WishlistItem{
		OwnerID: id.Profile.ID,
		Title:   sanitizeInput(r.Form.Get("title")),
		URL:     sanitizeInput(r.Form.Get("url")),
	}

	created, err := s.wishlist.Add(r.Context(), item)
	if err != nil {
		writeValidationOrServerError(w, r, err, "Could not save item")
		return
	}

	slog.InfoContext(r.Context(), "Wishlist item added",
		"item_id", created.ID, "owner_id", id.Profile.ID)

	NewHTMXResponse().
		TriggerWishlistChanged().
		TriggerFormReset().
		Write(w)
}

func (s *Server) handleDeleteWishlistItem(w http.ResponseWriter, r *http.Request) {
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

	itemID := parseID(parser.Get("id"))
	if itemID == 0 {
		BadRequestError("Missing item id").Write(w)
		return
	}

	if err := s.wishlist.Delete(r.Context(), id.Profile.ID, itemID); err != nil {
		slog.WarnContext(r.Context(), "Wishlist delete failed",
			"error", err, "item_id", itemID, "owner_id", id.Profile.ID)
		NotFoundError("Item not found").Write(w)
		return
	}

	NewHTMXResponse().
		TriggerWishlistChanged().
		Write(w)
}

// handleReorderWishlist applies a full ordering of the caller's own list.
// Ids belonging to someone else fail the whole request; the storage layer
// rolls back, so a crafted payload cannot shuffle another profile's list.
func (s *Server) handleReorderWishlist(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	id := identityFrom(r.Context())
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	orderedIDs := parser.IDList("ids")
	if len(orderedIDs) == 0 {
		BadRequestError("Missing item ids").Write(w)
		return
	}

	if err := s.wishlist.Reorder(r.Context(), id.Profile.ID, orderedIDs); err != nil {
		slog.WarnContext(r.Context(), "Wishlist reorder rejected",
			"error", err, "owner_id", id.Profile.ID, "count", len(orderedIDs))
		ErrorResponse(http.StatusForbidden, "Reorder includes items you do not own").Write(w)
		return
	}

	NewHTMXResponse().
		TriggerWishlistChanged().
		Write(w)
}
