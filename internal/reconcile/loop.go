package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/gamestatushq/statusbot/internal/chat"
	"github.com/gamestatushq/statusbot/internal/metrics"
	"github.com/gamestatushq/statusbot/internal/query"
	"github.com/gamestatushq/statusbot/internal/render"
	"github.com/gamestatushq/statusbot/internal/store"
)

const defaultInterval = time.Minute

// Config controls loop behaviour.
type Config struct {
	// Interval is the fixed sleep between cycles. Defaults to one minute.
	Interval time.Duration
	// RenderOptions is passed through to the embed renderer.
	RenderOptions render.Options
}

// Dependencies holds the collaborators the loop drives each cycle.
type Dependencies struct {
	Store   store.Store
	Fetcher query.Fetcher
	Chat    chat.Client
	Logger  *log.Logger
	Metrics metrics.CycleRecorder
	// Observe, when set, receives the outcome of every cycle (readiness).
	Observe func(time.Time, error)
}

// Option configures a Loop instance.
type Option func(*Loop)

// WithNow overrides the loop's clock.
func WithNow(now func() time.Time) Option {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

// Loop reconciles every stored monitor against its channel's status message
// on a fixed cadence. It is the only writer of Monitor.CurrentMessageID.
type Loop struct {
	interval   time.Duration
	renderOpts render.Options
	deps       Dependencies
	now        func() time.Time
}

func New(cfg Config, deps Dependencies, opts ...Option) *Loop {
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard, "", 0)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoopCycleRecorder{}
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	l := &Loop{
		interval:   interval,
		renderOpts: cfg.RenderOptions,
		deps:       deps,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run blocks until the context is cancelled. A cycle that fails for any
// reason is logged and the loop sleeps and continues; only cancellation
// terminates it.
func (l *Loop) Run(ctx context.Context) error {
	if l.deps.Store == nil {
		return errors.New("reconcile loop store is nil")
	}
	if l.deps.Fetcher == nil {
		return errors.New("reconcile loop fetcher is nil")
	}
	if l.deps.Chat == nil {
		return errors.New("reconcile loop chat client is nil")
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.runCycle(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.interval):
		}
	}
}

// runCycle performs one full pass over the stored monitors. One monitor's
// failure never aborts the others; a panic aborts only the current pass.
func (l *Loop) runCycle(ctx context.Context) {
	completed := false
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("cycle aborted: %v", r)
			l.deps.Logger.Printf("reconcile: %v", err)
			l.deps.Metrics.IncCycleFailures()
			l.observe(err)
			return
		}
		if !completed {
			return
		}
		l.observe(nil)
	}()

	monitors, err := l.deps.Store.List(ctx, "")
	if err != nil {
		err = fmt.Errorf("list monitors: %w", err)
		l.deps.Logger.Printf("reconcile: %v", err)
		l.deps.Metrics.IncCycleFailures()
		l.observe(err)
		return
	}

	for _, monitor := range monitors {
		l.reconcile(ctx, monitor)
	}

	l.deps.Metrics.ObserveCycle(len(monitors), l.now().UTC().Unix())
	completed = true
}

// reconcile applies the per-monitor state machine: resolve the channel,
// fetch status, then create, edit, or clear the stored message id. Any
// transient failure skips the monitor without mutating stored state.
func (l *Loop) reconcile(ctx context.Context, monitor store.Monitor) {
	channel, err := l.deps.Chat.ResolveChannel(ctx, monitor.ChannelID)
	if err != nil {
		l.skip(monitor, fmt.Errorf("resolve channel: %w", err))
		return
	}
	if !channel.Postable {
		l.skip(monitor, fmt.Errorf("channel %s is not a message channel", channel.ID))
		return
	}

	status, err := l.deps.Fetcher.ServerInfo(ctx, monitor.HostName, monitor.QueryPort)
	if err != nil {
		l.skip(monitor, err)
		return
	}
	players, err := l.deps.Fetcher.PlayerList(ctx, monitor.HostName, monitor.QueryPort)
	if err != nil {
		l.skip(monitor, err)
		return
	}
	rules, err := l.deps.Fetcher.Rules(ctx, monitor.HostName, monitor.QueryPort)
	if err != nil {
		l.skip(monitor, err)
		return
	}

	embed := render.Render(status, players, rules, l.renderOpts)

	if monitor.CurrentMessageID != "" {
		_, err := l.deps.Chat.GetMessage(ctx, monitor.ChannelID, monitor.CurrentMessageID)
		switch {
		case err == nil:
		case errors.Is(err, chat.ErrNotFound):
			l.clearStaleID(ctx, monitor)
			return
		default:
			l.skip(monitor, fmt.Errorf("get message: %w", err))
			return
		}

		err = l.deps.Chat.EditMessage(ctx, monitor.ChannelID, monitor.CurrentMessageID, embed)
		switch {
		case err == nil:
			l.deps.Metrics.IncMessagesEdited()
			return
		case errors.Is(err, chat.ErrNotFound):
			// Deleted between lookup and edit.
			l.clearStaleID(ctx, monitor)
			return
		default:
			l.skip(monitor, fmt.Errorf("edit message: %w", err))
			return
		}
	}

	messageID, err := l.deps.Chat.CreateMessage(ctx, monitor.ChannelID, embed)
	if err != nil {
		l.skip(monitor, fmt.Errorf("create message: %w", err))
		return
	}
	monitor.CurrentMessageID = messageID
	l.persist(ctx, monitor)
	l.deps.Metrics.IncMessagesCreated()
}

// clearStaleID drops a message id that no longer resolves remotely. The
// create happens on the next cycle.
func (l *Loop) clearStaleID(ctx context.Context, monitor store.Monitor) {
	monitor.CurrentMessageID = ""
	l.persist(ctx, monitor)
	l.deps.Metrics.IncStaleIDsCleared()
	l.deps.Logger.Printf("reconcile: monitor %s/%s message deleted remotely, recreating next cycle", monitor.OwningGroupID, monitor.ID)
}

func (l *Loop) persist(ctx context.Context, monitor store.Monitor) {
	if err := l.deps.Store.Upsert(ctx, monitor); err != nil {
		l.deps.Logger.Printf("reconcile: persist monitor %s/%s: %v", monitor.OwningGroupID, monitor.ID, err)
	}
}

func (l *Loop) skip(monitor store.Monitor, err error) {
	l.deps.Metrics.IncMonitorsSkipped()
	l.deps.Logger.Printf("reconcile: skipping monitor %s/%s this cycle: %v", monitor.OwningGroupID, monitor.ID, err)
}

func (l *Loop) observe(err error) {
	if l.deps.Observe != nil {
		l.deps.Observe(l.now().UTC(), err)
	}
}
