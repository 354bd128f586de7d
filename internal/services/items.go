// Package services – ItemSync
//
// ItemSync walks the paged item list of an account and upserts every item
// into the local item table, so ownership checks and rule search text work
// for items that never appeared in a conversation yet.
package services

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/xianyu-agent/internal/domain"
	"github.com/tbourn/xianyu-agent/internal/market"
	"github.com/tbourn/xianyu-agent/internal/protocol"
	"github.com/tbourn/xianyu-agent/internal/repo"
	"github.com/tbourn/xianyu-agent/internal/store"
)

// ErrNoUserID means the credential blob carries no unb cookie.
var ErrNoUserID = errors.New("credential has no unb cookie")

const (
	itemPageSize = 20
	maxItemPages = 50
)

// ItemLister is the marketplace call used by ItemSync.
type ItemLister interface {
	ListItems(ctx context.Context, credentialID, userID string, page, size int) ([]market.ItemSummary, bool, error)
}

// ItemSync refreshes the cached items of an account.
type ItemSync struct {
	Store  *store.Store
	Market ItemLister
}

// Sync fetches every page and returns the number of items stored.
func (s *ItemSync) Sync(ctx context.Context, credentialID string) (int, error) {
	ctx, span := otel.Tracer("services/items").Start(ctx, "ItemSync.Sync")
	defer span.End()
	span.SetAttributes(attribute.String("credential.id", credentialID))

	cred, err := s.Store.Credential(ctx, credentialID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "credential")
		return 0, err
	}
	unb := protocol.CookieValue(cred.Value, "unb")
	if unb == "" {
		span.SetStatus(codes.Error, "no unb")
		return 0, ErrNoUserID
	}

	n := 0
	for page := 1; page <= maxItemPages; page++ {
		items, more, err := s.Market.ListItems(ctx, credentialID, unb, page, itemPageSize)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "list items")
			return n, fmt.Errorf("list items page %d: %w", page, err)
		}
		for _, it := range items {
			if it.ItemID == "" {
				continue
			}
			_, err := s.Store.UpsertItem(ctx, &domain.Item{
				CredentialID: credentialID,
				ItemID:       it.ItemID,
				Title:        it.Title,
				Price:        it.Price,
			})
			if err != nil {
				span.RecordError(err)
				return n, err
			}
			n++
		}
		if !more || len(items) == 0 {
			break
		}
	}
	span.SetAttributes(attribute.Int("items.count", n))
	log.Info().Str("account", credentialID).Int("items", n).Msg("items synced")
	return n, nil
}

// SetFlags updates the delivery flags of a cached item. Nil flags are left
// as they are. Unknown items return repo.ErrNotFound.
func (s *ItemSync) SetFlags(ctx context.Context, credentialID, itemID string, multiSpec, multiQuantity *bool) (*domain.Item, error) {
	ctx, span := otel.Tracer("services/items").Start(ctx, "ItemSync.SetFlags")
	defer span.End()
	span.SetAttributes(attribute.String("credential.id", credentialID), attribute.String("item.id", itemID))

	it, err := s.Store.SetItemFlags(ctx, credentialID, itemID, repo.ItemFlags{
		MultiSpec:     multiSpec,
		MultiQuantity: multiQuantity,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "set flags")
		return nil, err
	}
	log.Info().Str("account", credentialID).Str("item_id", itemID).
		Bool("multi_spec", it.IsMultiSpec).
		Bool("multi_quantity", it.MultiQuantityDelivery).
		Msg("item flags updated")
	return it, nil
}
