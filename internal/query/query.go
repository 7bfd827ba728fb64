package query

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rumblefrog/go-a2s"

	"github.com/gamestatushq/statusbot/pkg/types"
)

const defaultTimeout = 5 * time.Second

// Fetcher resolves a game-server address into status records. Any error is a
// transient network condition; callers skip the affected monitor for the
// current cycle.
type Fetcher interface {
	ServerInfo(ctx context.Context, host string, port int) (types.ServerStatus, error)
	PlayerList(ctx context.Context, host string, port int) ([]types.Player, error)
	Rules(ctx context.Context, host string, port int) (types.Rules, error)
}

// Config controls query behaviour.
type Config struct {
	Timeout time.Duration
}

// Client queries servers over the Source (A2S) protocol. The wire format is
// handled entirely by the underlying library.
type Client struct {
	timeout time.Duration
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{timeout: timeout}
}

func (c *Client) ServerInfo(ctx context.Context, host string, port int) (types.ServerStatus, error) {
	var status types.ServerStatus

	cl, err := c.dial(host, port)
	if err != nil {
		return status, err
	}
	defer cl.Close()

	info, err := cl.QueryInfo()
	if err != nil {
		return status, fmt.Errorf("query info %s:%d: %w", host, port, err)
	}

	status = types.ServerStatus{
		Name:       info.Name,
		Map:        info.Map,
		Game:       info.Game,
		Players:    int(info.Players),
		MaxPlayers: int(info.MaxPlayers),
		VAC:        info.VAC,
		Version:    info.Version,
	}
	return status, nil
}

func (c *Client) PlayerList(ctx context.Context, host string, port int) ([]types.Player, error) {
	cl, err := c.dial(host, port)
	if err != nil {
		return nil, err
	}
	defer cl.Close()

	info, err := cl.QueryPlayer()
	if err != nil {
		return nil, fmt.Errorf("query players %s:%d: %w", host, port, err)
	}

	players := make([]types.Player, 0, len(info.Players))
	for _, p := range info.Players {
		players = append(players, types.Player{
			Name:     p.Name,
			Score:    int(p.Score),
			Duration: time.Duration(p.Duration * float32(time.Second)),
		})
	}
	return players, nil
}

func (c *Client) Rules(ctx context.Context, host string, port int) (types.Rules, error) {
	cl, err := c.dial(host, port)
	if err != nil {
		return nil, err
	}
	defer cl.Close()

	info, err := cl.QueryRules()
	if err != nil {
		return nil, fmt.Errorf("query rules %s:%d: %w", host, port, err)
	}

	rules := make(types.Rules, len(info.Rules))
	for k, v := range info.Rules {
		rules[k] = v
	}
	return rules, nil
}

func (c *Client) dial(host string, port int) (*a2s.Client, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	cl, err := a2s.NewClient(addr, a2s.TimeoutOption(c.timeout))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return cl, nil
}
