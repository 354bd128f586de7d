package fleet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/xianyu-agent/internal/account"
	"github.com/tbourn/xianyu-agent/internal/domain"
	"github.com/tbourn/xianyu-agent/internal/repo"
	"github.com/tbourn/xianyu-agent/internal/store"
)

type fakeRunner struct {
	blob    string
	mu      sync.Mutex
	started bool
	stopped bool
}

func (r *fakeRunner) Start(context.Context) {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
}

func (r *fakeRunner) Stop(time.Duration) error {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	return nil
}

func (r *fakeRunner) Status() account.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return account.Status{Status: account.StatusStopped}
	}
	return account.Status{Status: account.StatusRunning, ConnState: "live"}
}

// builder records every runner it creates, in order.
type builder struct {
	mu      sync.Mutex
	runners map[string][]*fakeRunner
}

func (b *builder) build(cred *domain.Credential) (Runner, error) {
	if cred.Value == "" {
		return nil, account.ErrMissingUnb
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	r := &fakeRunner{blob: cred.Value}
	b.runners[cred.ID] = append(b.runners[cred.ID], r)
	return r, nil
}

func (b *builder) of(id string) []*fakeRunner {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*fakeRunner(nil), b.runners[id]...)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:fleet_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))
	st, err := store.New(db, 16)
	require.NoError(t, err)
	return st
}

func runFleet(t *testing.T, st *store.Store) (*Fleet, *builder, context.CancelFunc) {
	t.Helper()
	b := &builder{runners: map[string][]*fakeRunner{}}
	f := NewWith(st, b.build)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return f, b, cancel
}

func TestFleet_RunStartsEnabledCredentials(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateCredential(ctx, st.DB, &domain.Credential{ID: "on", Value: "unb=1", Enabled: true}))
	require.NoError(t, repo.CreateCredential(ctx, st.DB, &domain.Credential{ID: "off", Value: "unb=2", Enabled: false}))

	f, b, _ := runFleet(t, st)

	entries, err := f.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	byID := map[string]Entry{}
	for _, e := range entries {
		byID[e.Credential.ID] = e
	}
	assert.Equal(t, account.StatusRunning, byID["on"].Status.Status)
	assert.Equal(t, account.StatusStopped, byID["off"].Status.Status)
	assert.Len(t, b.of("on"), 1)
	assert.Empty(t, b.of("off"))
}

func TestFleet_AddRemove(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	f, b, _ := runFleet(t, st)

	require.NoError(t, f.Add(ctx, &domain.Credential{ID: "c1", Value: "unb=1", Enabled: true}))
	require.Len(t, b.of("c1"), 1)
	assert.True(t, b.of("c1")[0].started)

	st1, err := f.Status(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, account.StatusRunning, st1.Status)

	err = f.Add(ctx, &domain.Credential{ID: "c1", Value: "unb=1", Enabled: true})
	assert.ErrorIs(t, err, repo.ErrDuplicate)
	assert.Len(t, b.of("c1"), 1)

	var removed []string
	f.OnRemove = func(id string) { removed = append(removed, id) }
	require.NoError(t, f.Remove(ctx, "c1"))
	assert.True(t, b.of("c1")[0].stopped)
	assert.Equal(t, []string{"c1"}, removed)
	assert.ErrorIs(t, f.Remove(ctx, "c1"), repo.ErrNotFound)
	assert.Len(t, removed, 1)
	_, err = f.Status(ctx, "c1")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestFleet_UpdateRestartsWithNewBlob(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	f, b, _ := runFleet(t, st)

	require.NoError(t, f.Add(ctx, &domain.Credential{ID: "c1", Value: "unb=1; a=old", Enabled: true}))
	require.NoError(t, repo.CreateKeyword(ctx, st.DB, &domain.Keyword{CredentialID: "c1", Keyword: "hi", Reply: "hello", Kind: domain.KeywordKindText}))

	require.NoError(t, f.Update(ctx, "c1", "unb=1; a=new"))
	runners := b.of("c1")
	require.Len(t, runners, 2)
	assert.True(t, runners[0].stopped)
	assert.Equal(t, "unb=1; a=new", runners[1].blob)
	assert.True(t, runners[1].started)

	// rules survive the restart
	kws, err := f.KeywordsOf(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, kws, 1)

	assert.ErrorIs(t, f.Update(ctx, "missing", "unb=9"), repo.ErrNotFound)
}

func TestFleet_SetEnabled(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	f, b, _ := runFleet(t, st)

	require.NoError(t, f.Add(ctx, &domain.Credential{ID: "c1", Value: "unb=1", Enabled: true}))
	require.NoError(t, f.SetEnabled(ctx, "c1", false))
	assert.True(t, b.of("c1")[0].stopped)

	cred, err := st.Credential(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, cred.Enabled)
	s, err := f.Status(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, account.StatusStopped, s.Status)

	// disabling twice is a no-op
	require.NoError(t, f.SetEnabled(ctx, "c1", false))
	assert.Len(t, b.of("c1"), 1)

	require.NoError(t, f.SetEnabled(ctx, "c1", true))
	require.Len(t, b.of("c1"), 2)
	s, err = f.Status(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, account.StatusRunning, s.Status)

	assert.ErrorIs(t, f.SetEnabled(ctx, "nope", true), repo.ErrNotFound)
}

func TestFleet_StartFailureIsReported(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	f, b, _ := runFleet(t, st)

	// the fake builder refuses an empty blob the way a missing unb is refused
	require.NoError(t, repo.CreateCredential(ctx, st.DB, &domain.Credential{ID: "c1", Value: "x", Enabled: false}))
	require.NoError(t, st.DB.Model(&domain.Credential{}).Where("id = ?", "c1").Update("value", "").Error)
	require.NoError(t, f.SetEnabled(ctx, "c1", true))

	assert.Empty(t, b.of("c1"))
	s, err := f.Status(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, account.StatusError, s.Status)
	assert.Contains(t, s.LastError, "unb")
}

func TestFleet_ConcurrentMutationsAreSerialized(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	f, b, _ := runFleet(t, st)
	require.NoError(t, f.Add(ctx, &domain.Credential{ID: "c1", Value: "unb=1", Enabled: true}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = f.SetEnabled(ctx, "c1", i%2 == 0)
		}(i)
	}
	wg.Wait()

	// every runner but the newest one must have been stopped
	runners := b.of("c1")
	live := 0
	for _, r := range runners {
		r.mu.Lock()
		if r.started && !r.stopped {
			live++
		}
		r.mu.Unlock()
	}
	assert.LessOrEqual(t, live, 1)
}

func TestFleet_ShutdownStopsRunnersAndCloses(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	f, b, cancel := runFleet(t, st)
	require.NoError(t, f.Add(ctx, &domain.Credential{ID: "c1", Value: "unb=1", Enabled: true}))

	cancel()
	require.Eventually(t, func() bool {
		_, err := f.List(ctx)
		return errors.Is(err, ErrClosed)
	}, time.Second, time.Millisecond)
	assert.True(t, b.of("c1")[0].stopped)
}
