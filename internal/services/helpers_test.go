package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/xianyu-agent/internal/clock"
	"github.com/tbourn/xianyu-agent/internal/domain"
	"github.com/tbourn/xianyu-agent/internal/llm"
	"github.com/tbourn/xianyu-agent/internal/market"
	"github.com/tbourn/xianyu-agent/internal/notify"
	"github.com/tbourn/xianyu-agent/internal/repo"
	"github.com/tbourn/xianyu-agent/internal/store"
)

var t0 = time.Unix(1_700_000_000, 0)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))
	st, err := store.New(db, 16)
	require.NoError(t, err)
	return st
}

func seedCredential(t *testing.T, st *store.Store, id string, autoConfirm bool) {
	t.Helper()
	require.NoError(t, repo.CreateCredential(context.Background(), st.DB, &domain.Credential{
		ID: id, Value: "unb=" + id + "; _m_h5_tk=tok_1", PauseMinutes: 10, AutoConfirm: autoConfirm, Enabled: true,
	}))
}

func seedItem(t *testing.T, st *store.Store, cred, itemID, title string) {
	t.Helper()
	_, err := st.UpsertItem(context.Background(), &domain.Item{CredentialID: cred, ItemID: itemID, Title: title})
	require.NoError(t, err)
}

func seedRule(t *testing.T, st *store.Store, keyword string, card *domain.Card, specName, specValue string) *domain.DeliveryRule {
	t.Helper()
	ctx := context.Background()
	if card.ID == 0 {
		card.Enabled = true
		if card.Name == "" {
			card.Name = "card-" + keyword
		}
		require.NoError(t, repo.CreateCard(ctx, st.DB, card))
	}
	r := &domain.DeliveryRule{Keyword: keyword, CardID: card.ID, Enabled: true, SpecName: specName, SpecValue: specValue}
	require.NoError(t, repo.CreateDeliveryRule(ctx, st.DB, r))
	return r
}

type sentMessage struct {
	ChatID, PeerID string
	Text           string
	ImageURL       string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeSender) SendText(_ context.Context, chatID, peerID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{ChatID: chatID, PeerID: peerID, Text: text})
	return nil
}

func (f *fakeSender) SendImage(_ context.Context, chatID, peerID, url string, _, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{ChatID: chatID, PeerID: peerID, ImageURL: url})
	return nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fakeMarket struct {
	mu          sync.Mutex
	itemErr     error
	item        market.ItemDetail
	order       market.OrderDetail
	orderErr    error
	orderCalls  int
	confirmed   []string
	confirmErr  error
	freeShipped []string
	freeErr     error
}

func (f *fakeMarket) GetItemDetail(_ context.Context, _, itemID string) (market.ItemDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.itemErr != nil || f.item.ItemID == "" {
		return market.ItemDetail{}, fmt.Errorf("item %s: %w", itemID, errOffline)
	}
	return f.item, nil
}

func (f *fakeMarket) OrderDetail(_ context.Context, _, orderID string) (market.OrderDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderCalls++
	if f.orderErr != nil {
		return market.OrderDetail{}, f.orderErr
	}
	d := f.order
	d.OrderID = orderID
	return d, nil
}

func (f *fakeMarket) ConfirmShipment(_ context.Context, _, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, orderID)
	return f.confirmErr
}

func (f *fakeMarket) GrantFreeShipping(_ context.Context, _, orderID, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.freeShipped = append(f.freeShipped, orderID)
	return f.freeErr
}

var errOffline = errors.New("offline")

type notice struct{ Kind, Text string }

type fakeNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (f *fakeNotifier) Notify(_ context.Context, _, kind, text string) notify.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, notice{Kind: kind, Text: text})
	return notify.OutcomeSent
}

func (f *fakeNotifier) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, n := range f.notices {
		out = append(out, n.Kind)
	}
	return out
}

// scriptedChatter answers the intent prompt with intent and everything else
// with reply, recording the conversations it saw.
type scriptedChatter struct {
	mu     sync.Mutex
	intent string
	reply  string
	calls  [][]llm.Message
}

func (s *scriptedChatter) Chat(_ context.Context, _ string, msgs []llm.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, msgs)
	if msgs[0].Content == builtinPrompts["classify"] {
		return s.intent, nil
	}
	return s.reply, nil
}

type staticChatters struct{ c llm.Chatter }

func (s staticChatters) For(string, string) llm.Chatter { return s.c }

// recordSleeps returns a Sleep func that records durations without waiting.
func recordSleeps() (func(context.Context, time.Duration) error, func() []time.Duration) {
	var mu sync.Mutex
	var got []time.Duration
	return func(ctx context.Context, d time.Duration) error {
			mu.Lock()
			got = append(got, d)
			mu.Unlock()
			return ctx.Err()
		}, func() []time.Duration {
			mu.Lock()
			defer mu.Unlock()
			return append([]time.Duration(nil), got...)
		}
}

func newPipeline(t *testing.T, st *store.Store, clk *clock.Fake, m *fakeMarket) (*DeliveryPipeline, *fakeSender, *fakeNotifier) {
	t.Helper()
	snd := &fakeSender{}
	ntf := &fakeNotifier{}
	sleep, _ := recordSleeps()
	p := &DeliveryPipeline{
		CredentialID: "c1",
		Store:        st,
		Market:       m,
		Sender:       snd,
		Notifier:     ntf,
		Gate:         NewOrderGate(clk, 10*time.Minute, 10*time.Minute),
		Clock:        clk,
		Sleep:        sleep,
	}
	return p, snd, ntf
}
