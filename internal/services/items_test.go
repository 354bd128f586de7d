package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/xianyu-agent/internal/domain"
	"github.com/tbourn/xianyu-agent/internal/market"
	"github.com/tbourn/xianyu-agent/internal/repo"
)

type pagedLister struct {
	pages  [][]market.ItemSummary
	userID string
	calls  int
	err    error
}

func (p *pagedLister) ListItems(_ context.Context, _, userID string, page, _ int) ([]market.ItemSummary, bool, error) {
	p.calls++
	p.userID = userID
	if p.err != nil {
		return nil, false, p.err
	}
	if page > len(p.pages) {
		return nil, false, nil
	}
	return p.pages[page-1], page < len(p.pages), nil
}

func TestItemSync_WalksAllPages(t *testing.T) {
	st := newTestStore(t)
	seedCredential(t, st, "c1", false)
	seedItem(t, st, "c1", "i1", "old title")
	require.NoError(t, st.UpdateItemDetail(context.Background(), "c1", "i1", "keep me"))

	lister := &pagedLister{pages: [][]market.ItemSummary{
		{{ItemID: "i1", Title: "卡密 A", Price: "9.9"}, {ItemID: "i2", Title: "卡密 B"}},
		{{ItemID: "i3", Title: "卡密 C"}, {ItemID: ""}},
	}}
	s := &ItemSync{Store: st, Market: lister}

	n, err := s.Sync(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, lister.calls)
	assert.Equal(t, "c1", lister.userID)

	items, err := repo.ListItems(context.Background(), st.DB, "c1")
	require.NoError(t, err)
	require.Len(t, items, 3)
	got, err := st.Item(context.Background(), "c1", "i1")
	require.NoError(t, err)
	assert.Equal(t, "卡密 A", got.Title)
	assert.Equal(t, "keep me", got.Detail)
}

func TestItemSync_Errors(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, repo.CreateCredential(context.Background(), st.DB, &domain.Credential{ID: "nounb", Value: "a=b", Enabled: true}))
	seedCredential(t, st, "c1", false)

	s := &ItemSync{Store: st, Market: &pagedLister{}}
	_, err := s.Sync(context.Background(), "nounb")
	assert.ErrorIs(t, err, ErrNoUserID)

	_, err = s.Sync(context.Background(), "missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	s.Market = &pagedLister{err: &market.Error{Kind: market.KindTransient, Err: fmt.Errorf("502")}}
	_, err = s.Sync(context.Background(), "c1")
	assert.True(t, market.IsTransient(err))
}

func TestItemSync_SetFlags(t *testing.T) {
	st := newTestStore(t)
	seedCredential(t, st, "c1", false)
	seedItem(t, st, "c1", "i1", "激活码")
	s := &ItemSync{Store: st}

	on := true
	it, err := s.SetFlags(context.Background(), "c1", "i1", nil, &on)
	require.NoError(t, err)
	assert.True(t, it.MultiQuantityDelivery)
	assert.False(t, it.IsMultiSpec)

	cached, err := st.Item(context.Background(), "c1", "i1")
	require.NoError(t, err)
	assert.True(t, cached.MultiQuantityDelivery)

	_, err = s.SetFlags(context.Background(), "c1", "ghost", nil, &on)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}
