package query

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/gamestatushq/statusbot/pkg/types"
)

// RateGoverned wraps a Fetcher with a global and a per-destination rate cap
// so a large monitor set cannot flood a single target or the local uplink.
type RateGoverned struct {
	inner  Fetcher
	global *rate.Limiter

	perHostQPS int
	mu         sync.Mutex
	perHost    map[string]*rate.Limiter
}

// NewRateGoverned builds the decorator. A cap of zero or less disables the
// corresponding limiter.
func NewRateGoverned(inner Fetcher, globalQPS, perHostQPS int) *RateGoverned {
	g := &RateGoverned{
		inner:      inner,
		perHostQPS: perHostQPS,
		perHost:    make(map[string]*rate.Limiter),
	}
	if globalQPS > 0 {
		g.global = rate.NewLimiter(rate.Limit(globalQPS), globalQPS)
	}
	return g
}

func (g *RateGoverned) ServerInfo(ctx context.Context, host string, port int) (types.ServerStatus, error) {
	if err := g.wait(ctx, host); err != nil {
		return types.ServerStatus{}, err
	}
	return g.inner.ServerInfo(ctx, host, port)
}

func (g *RateGoverned) PlayerList(ctx context.Context, host string, port int) ([]types.Player, error) {
	if err := g.wait(ctx, host); err != nil {
		return nil, err
	}
	return g.inner.PlayerList(ctx, host, port)
}

func (g *RateGoverned) Rules(ctx context.Context, host string, port int) (types.Rules, error) {
	if err := g.wait(ctx, host); err != nil {
		return nil, err
	}
	return g.inner.Rules(ctx, host, port)
}

func (g *RateGoverned) wait(ctx context.Context, host string) error {
	if g.global != nil {
		if err := g.global.Wait(ctx); err != nil {
			return err
		}
	}
	if limiter := g.hostLimiter(host); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (g *RateGoverned) hostLimiter(host string) *rate.Limiter {
	if g.perHostQPS <= 0 {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	limiter, ok := g.perHost[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(g.perHostQPS), g.perHostQPS)
		g.perHost[host] = limiter
	}
	return limiter
}
