package services

import (
	"context"
	"fmt"

	"hearth/internal/amqp"
	"hearth/internal/core"
)

// WishlistStore is the storage surface backing wishlist work.
type WishlistStore interface {
	ListWishlist(ctx context.Context, ownerID int64) ([]core.WishlistItem, error)
	AddWishlistItem(ctx context.Context, item core.WishlistItem) (core.WishlistItem, error)
	DeleteWishlistItem(ctx context.Context, ownerID, id int64) error
	ReorderWishlist(ctx context.Context, ownerID int64, orderedIDs []int64) error
}

// WishlistService orchestrates per-profile wishlists. Items belong to a
// profile, not a workspace, so every mutation is owner scoped.
type WishlistService struct {
	store  WishlistStore
	events Publisher
}

func NewWishlistService(store WishlistStore, events Publisher) *WishlistService {
	return &WishlistService{store: store, events: events}
}

// Items returns a profile's wishlist in display order.
func (s *WishlistService) Items(ctx context.Context, ownerID int64) ([]core.WishlistItem, error) {
	return s.store.ListWishlist(ctx, ownerID)
}

// Add validates and appends an item to the end of the owner's list, returning
// the created row so the caller can render it without a second read.
func (s *WishlistService) Add(ctx context.Context, item core.WishlistItem) (core.WishlistItem, error) {
	if err := item.Validate(); err != nil {
		return core.WishlistItem{}, err
	}
	created, err := s.store.AddWishlistItem(ctx, item)
	if err != nil {
		return core.WishlistItem{}, fmt.Errorf("save wishlist item: %w", err)
	}
	return created, nil
}

// Delete removes an item the owner holds.
func (s *WishlistService) Delete(ctx context.Context, ownerID, id int64) error {
	if err := s.store.DeleteWishlistItem(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete wishlist item: %w", err)
	}
	return nil
}

// Reorder replaces the owner's list order with orderedIDs. The storage layer
// verifies ownership of every id inside one transaction, so a mixed list
// leaves nothing half applied.
func (s *WishlistService) Reorder(ctx context.Context, ownerID int64, orderedIDs []int64) error {
	if len(orderedIDs) == 0 {
		return nil
	}
	if err := s.store.ReorderWishlist(ctx, ownerID, orderedIDs); err != nil {
		return fmt.Errorf("reorder wishlist: %w", err)
	}
	publish(ctx, s.events, amqp.KindWishReordered, 0, ownerID)
	return nil
}
