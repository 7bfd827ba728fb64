package lifecycle

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/gamestatushq/statusbot/internal/chat"
	"github.com/gamestatushq/statusbot/internal/metrics"
	"github.com/gamestatushq/statusbot/internal/query"
	"github.com/gamestatushq/statusbot/internal/reconcile"
	"github.com/gamestatushq/statusbot/internal/render"
	"github.com/gamestatushq/statusbot/internal/store"
)

// Config controls the managed reconciliation loop.
type Config struct {
	Interval      time.Duration
	RenderOptions render.Options
}

// Dependencies holds everything the loop needs except the live chat client,
// which arrives at Start.
type Dependencies struct {
	Store   store.Store
	Fetcher query.Fetcher
	Logger  *log.Logger
	Metrics metrics.CycleRecorder
	Observe func(time.Time, error)
}

// Manager owns the reconciliation loop goroutine and the store handle.
// Start spawns exactly one loop per call; calling it twice produces two
// independent loops, which is a caller error. Stop is safe without a prior
// Start and must be called exactly once during orderly shutdown.
type Manager struct {
	cfg  Config
	deps Dependencies

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config, deps Dependencies) *Manager {
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard, "", 0)
	}
	return &Manager{cfg: cfg, deps: deps}
}

// Start binds a reconciliation loop to the given live chat client and runs
// it until Stop is called or the parent context ends.
func (m *Manager) Start(ctx context.Context, client chat.Client) {
	loop := reconcile.New(
		reconcile.Config{
			Interval:      m.cfg.Interval,
			RenderOptions: m.cfg.RenderOptions,
		},
		reconcile.Dependencies{
			Store:   m.deps.Store,
			Fetcher: m.deps.Fetcher,
			Chat:    client,
			Logger:  m.deps.Logger,
			Metrics: m.deps.Metrics,
			Observe: m.deps.Observe,
		},
	)

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	m.mu.Lock()
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	go func() {
		defer close(done)
		if err := loop.Run(loopCtx); err != nil && loopCtx.Err() == nil {
			m.deps.Logger.Printf("lifecycle: reconcile loop stopped: %v", err)
		}
	}()
}

// Stop cancels the loop, waits for the in-flight cycle to finish, and
// closes the store handle.
func (m *Manager) Stop() error {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	if m.deps.Store != nil {
		if err := m.deps.Store.Close(); err != nil {
			return err
		}
	}
	return nil
}
