// Package fleet owns every account runtime of the process.
//
// All mutations run on a single control goroutine, so add, remove, update
// and enable toggles never interleave; the public methods are safe to call
// from any goroutine and block until the control loop has applied them.
package fleet

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/xianyu-agent/internal/account"
	"github.com/tbourn/xianyu-agent/internal/domain"
	"github.com/tbourn/xianyu-agent/internal/repo"
	"github.com/tbourn/xianyu-agent/internal/store"
)

// ErrClosed is returned once the control loop has exited.
var ErrClosed = errors.New("fleet: closed")

// Runner is a started account.
type Runner interface {
	Start(ctx context.Context)
	Stop(timeout time.Duration) error
	Status() account.Status
}

// Entry is one credential with its runtime state.
type Entry struct {
	Credential domain.Credential `json:"credential"`
	Status     account.Status    `json:"status"`
}

// Fleet is safe for concurrent use once Run has been called.
type Fleet struct {
	Store *store.Store
	// NewRunner builds the runtime of a credential.
	NewRunner   func(cred *domain.Credential) (Runner, error)
	StopTimeout time.Duration
	// OnRemove, when set, runs after a credential was deleted.
	OnRemove func(id string)

	ops  chan func(ctx context.Context)
	done chan struct{}

	// owned by the control goroutine
	runners map[string]Runner
	failed  map[string]string
}

// New returns a fleet whose runtimes are built from deps.
func New(st *store.Store, deps account.Deps) *Fleet {
	return NewWith(st, func(cred *domain.Credential) (Runner, error) {
		rt, err := account.New(cred, deps)
		if err != nil {
			return nil, err
		}
		return rt, nil
	})
}

// NewWith returns a fleet using a custom runtime constructor.
func NewWith(st *store.Store, newRunner func(*domain.Credential) (Runner, error)) *Fleet {
	return &Fleet{
		Store:       st,
		NewRunner:   newRunner,
		StopTimeout: 10 * time.Second,
		ops:         make(chan func(context.Context)),
		done:        make(chan struct{}),
		runners:     make(map[string]Runner),
		failed:      make(map[string]string),
	}
}

// Run starts every enabled credential and serves mutations until ctx is
// done, then stops all runtimes.
func (f *Fleet) Run(ctx context.Context) error {
	defer close(f.done)

	creds, err := repo.ListCredentials(ctx, f.Store.DB)
	if err != nil {
		return err
	}
	for i := range creds {
		if creds[i].Enabled {
			f.start(ctx, &creds[i])
		}
	}
	log.Info().Int("accounts", len(f.runners)).Msg("fleet started")

	for {
		select {
		case <-ctx.Done():
			for id := range f.runners {
				f.stop(id)
			}
			log.Info().Msg("fleet stopped")
			return nil
		case op := <-f.ops:
			op(ctx)
		}
	}
}

// do runs fn on the control goroutine and waits for its result.
func (f *Fleet) do(ctx context.Context, fn func(ctx context.Context) error) error {
	res := make(chan error, 1)
	select {
	case f.ops <- func(runCtx context.Context) { res <- fn(runCtx) }:
	case <-f.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Fleet) start(ctx context.Context, cred *domain.Credential) {
	delete(f.failed, cred.ID)
	r, err := f.NewRunner(cred)
	if err != nil {
		log.Error().Err(err).Str("account", cred.ID).Msg("account not started")
		f.failed[cred.ID] = err.Error()
		return
	}
	r.Start(ctx)
	f.runners[cred.ID] = r
}

func (f *Fleet) stop(id string) {
	delete(f.failed, id)
	r, ok := f.runners[id]
	if !ok {
		return
	}
	delete(f.runners, id)
	if err := r.Stop(f.StopTimeout); err != nil {
		log.Warn().Err(err).Str("account", id).Msg("account stop")
	}
}

// Add persists cred and starts it when enabled.
func (f *Fleet) Add(ctx context.Context, cred *domain.Credential) error {
	return f.do(ctx, func(runCtx context.Context) error {
		if err := repo.CreateCredential(ctx, f.Store.DB, cred); err != nil {
			return err
		}
		if cred.Enabled {
			f.start(runCtx, cred)
		}
		return nil
	})
}

// Remove stops the runtime and deletes the credential with its rows.
func (f *Fleet) Remove(ctx context.Context, id string) error {
	return f.do(ctx, func(context.Context) error {
		f.stop(id)
		f.Store.ForgetCredential(id)
		if err := repo.DeleteCredential(ctx, f.Store.DB, id); err != nil {
			return err
		}
		if f.OnRemove != nil {
			f.OnRemove(id)
		}
		return nil
	})
}

// Update replaces the cookie blob and restarts the runtime so the new
// session is used from the first frame.
func (f *Fleet) Update(ctx context.Context, id, blob string) error {
	return f.do(ctx, func(runCtx context.Context) error {
		if err := repo.UpdateCredentialValue(ctx, f.Store.DB, id, blob); err != nil {
			return err
		}
		f.stop(id)
		cred, err := f.Store.Credential(ctx, id)
		if err != nil {
			return err
		}
		if cred.Enabled {
			f.start(runCtx, cred)
		}
		return nil
	})
}

// SetEnabled toggles a credential, starting or stopping its runtime.
func (f *Fleet) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return f.do(ctx, func(runCtx context.Context) error {
		cred, err := f.Store.Credential(ctx, id)
		if err != nil {
			return err
		}
		if err := repo.SetCredentialEnabled(ctx, f.Store.DB, id, enabled); err != nil {
			return err
		}
		f.stop(id)
		if enabled {
			cred.Enabled = true
			f.start(runCtx, cred)
		}
		return nil
	})
}

// List returns every credential with its runtime status.
func (f *Fleet) List(ctx context.Context) ([]Entry, error) {
	var out []Entry
	err := f.do(ctx, func(context.Context) error {
		creds, err := repo.ListCredentials(ctx, f.Store.DB)
		if err != nil {
			return err
		}
		out = make([]Entry, 0, len(creds))
		for _, c := range creds {
			out = append(out, Entry{Credential: c, Status: f.statusLocked(c.ID)})
		}
		return nil
	})
	return out, err
}

// Status returns the runtime status of id.
func (f *Fleet) Status(ctx context.Context, id string) (account.Status, error) {
	var st account.Status
	err := f.do(ctx, func(context.Context) error {
		if _, err := repo.GetCredential(ctx, f.Store.DB, id); err != nil {
			return err
		}
		st = f.statusLocked(id)
		return nil
	})
	return st, err
}

// KeywordsOf lists the keyword rules of id.
func (f *Fleet) KeywordsOf(ctx context.Context, id string) ([]domain.Keyword, error) {
	return repo.ListKeywords(ctx, f.Store.DB, id)
}

func (f *Fleet) statusLocked(id string) account.Status {
	if r, ok := f.runners[id]; ok {
		return r.Status()
	}
	if msg, ok := f.failed[id]; ok {
		return account.Status{Status: account.StatusError, LastError: msg, ConnState: "closed"}
	}
	return account.Status{Status: account.StatusStopped, ConnState: "closed"}
}
