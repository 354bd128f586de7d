// Package store layers the locking and caching rules of the agent on top of
// the repo functions. Plain reads and writes go straight to repo with
// Store.DB; the methods here cover the shared resources that need more:
//
//   - credential blobs, rewritten by both the token refresher and the
//     Set-Cookie merge, are serialized per credential;
//   - data-card queues are popped under a per-card lock;
//   - item rows are read through a bounded LRU cache, kept coherent by the
//     item writers below.
package store

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"gorm.io/gorm"

	"github.com/tbourn/xianyu-agent/internal/domain"
	"github.com/tbourn/xianyu-agent/internal/protocol"
	"github.com/tbourn/xianyu-agent/internal/repo"
)

// Store is safe for concurrent use.
type Store struct {
	DB *gorm.DB

	items *lru.Cache[string, domain.Item]

	blobLocks keyedMutex
	cardLocks keyedMutex
}

// New wraps db. itemCacheSize <= 0 selects a default of 1024 entries.
func New(db *gorm.DB, itemCacheSize int) (*Store, error) {
	if itemCacheSize <= 0 {
		itemCacheSize = 1024
	}
	c, err := lru.New[string, domain.Item](itemCacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db, items: c}, nil
}

// Credential loads a credential with its enable flag.
func (s *Store) Credential(ctx context.Context, id string) (*domain.Credential, error) {
	return repo.GetCredential(ctx, s.DB, id)
}

// UpdateBlob rewrites the credential blob with fn(current). Calls for the
// same credential are serialized so concurrent rotations never lose cookies.
// It returns the stored value.
func (s *Store) UpdateBlob(ctx context.Context, id string, fn func(cur string) string) (string, error) {
	unlock := s.blobLocks.lock(id)
	defer unlock()

	c, err := repo.GetCredential(ctx, s.DB, id)
	if err != nil {
		return "", err
	}
	next := fn(c.Value)
	if next == c.Value {
		return next, nil
	}
	if err := repo.UpdateCredentialValue(ctx, s.DB, id, next); err != nil {
		return "", err
	}
	return next, nil
}

// Cookies returns the current credential blob.
func (s *Store) Cookies(ctx context.Context, credentialID string) (string, error) {
	c, err := repo.GetCredential(ctx, s.DB, credentialID)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}

// MergeCookies applies response cookies to the stored blob.
func (s *Store) MergeCookies(ctx context.Context, credentialID string, set []*http.Cookie) (string, error) {
	return s.UpdateBlob(ctx, credentialID, func(cur string) string {
		return protocol.MergeSetCookie(cur, set)
	})
}

// PopCardLine consumes the head line of a data card under the card's lock.
func (s *Store) PopCardLine(ctx context.Context, cardID uint) (string, error) {
	unlock := s.cardLocks.lock(strconv.FormatUint(uint64(cardID), 10))
	defer unlock()
	return repo.PopCardLine(ctx, s.DB, cardID)
}

func itemKey(credentialID, itemID string) string { return credentialID + "/" + itemID }

// Item returns the cached item of a credential, reading through to the
// database on a miss.
func (s *Store) Item(ctx context.Context, credentialID, itemID string) (*domain.Item, error) {
	k := itemKey(credentialID, itemID)
	if it, ok := s.items.Get(k); ok {
		return &it, nil
	}
	it, err := repo.GetItem(ctx, s.DB, credentialID, itemID)
	if err != nil {
		return nil, err
	}
	s.items.Add(k, *it)
	return it, nil
}

// UpsertItem merges an item and refreshes the cache entry.
func (s *Store) UpsertItem(ctx context.Context, in *domain.Item) (*domain.Item, error) {
	it, err := repo.UpsertItem(ctx, s.DB, in)
	if err != nil {
		s.items.Remove(itemKey(in.CredentialID, in.ItemID))
		return nil, err
	}
	s.items.Add(itemKey(it.CredentialID, it.ItemID), *it)
	return it, nil
}

// UpdateItemDetail writes the detail field and drops the cache entry.
func (s *Store) UpdateItemDetail(ctx context.Context, credentialID, itemID, detail string) error {
	defer s.items.Remove(itemKey(credentialID, itemID))
	return repo.UpdateItemDetail(ctx, s.DB, credentialID, itemID, detail)
}

// SetItemFlags applies a partial flag update and returns the fresh item.
func (s *Store) SetItemFlags(ctx context.Context, credentialID, itemID string, f repo.ItemFlags) (*domain.Item, error) {
	s.items.Remove(itemKey(credentialID, itemID))
	if err := repo.SetItemFlags(ctx, s.DB, credentialID, itemID, f); err != nil {
		return nil, err
	}
	return s.Item(ctx, credentialID, itemID)
}

// ForgetCredential drops every cached item of a credential.
func (s *Store) ForgetCredential(credentialID string) {
	prefix := credentialID + "/"
	for _, k := range s.items.Keys() {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			s.items.Remove(k)
		}
	}
}

// keyedMutex hands out one mutex per key. Keys are credential and card ids,
// a bounded population, so entries are never reclaimed.
type keyedMutex struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.m == nil {
		k.m = make(map[string]*sync.Mutex)
	}
	l, ok := k.m[key]
	if !ok {
		l = &sync.Mutex{}
		k.m[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// BoundChannels returns the enabled notification channels of a credential.
func (s *Store) BoundChannels(ctx context.Context, credentialID string) ([]domain.NotificationChannel, error) {
	return repo.BoundChannels(ctx, s.DB, credentialID)
}
