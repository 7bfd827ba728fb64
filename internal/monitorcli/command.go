// Package monitorcli implements the `monitors` subcommand, the offline
// configuration surface for monitor records. It operates directly on the
// configured store; the running bot picks changes up on its next cycle.
package monitorcli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/gamestatushq/statusbot/internal/config"
	"github.com/gamestatushq/statusbot/internal/store"
)

type Dependencies struct {
	Out io.Writer
	// OpenStore overrides store construction, mainly for tests.
	OpenStore func(ctx context.Context, cfg config.StorageConfig) (store.Store, error)
}

func Run(ctx context.Context, args []string, deps Dependencies) error {
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.OpenStore == nil {
		deps.OpenStore = func(ctx context.Context, cfg config.StorageConfig) (store.Store, error) {
			return store.Open(ctx, cfg.Driver, cfg.Path, cfg.DSN)
		}
	}

	if len(args) < 1 {
		return fmt.Errorf("missing monitors action (allowed: list, add, remove)")
	}
	action := args[0]

	fs := flag.NewFlagSet("monitors "+action, flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "Path to bot configuration file")
	group := fs.String("group", "", "Owning group id")
	id := fs.String("id", "", "Monitor id")
	channel := fs.String("channel", "", "Chat channel id to post in")
	host := fs.String("host", "", "Game server host name or address")
	port := fs.Int("port", 0, "Game server query port")

	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(ctx, *configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := deps.OpenStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	switch action {
	case "list":
		return runList(ctx, st, deps.Out, *group)
	case "add":
		return runAdd(ctx, st, deps.Out, *group, *id, *channel, *host, *port)
	case "remove":
		return runRemove(ctx, st, deps.Out, *group, *id)
	default:
		return fmt.Errorf("unknown monitors action %q (allowed: list, add, remove)", action)
	}
}

func runList(ctx context.Context, st store.Store, out io.Writer, group string) error {
	monitors, err := st.List(ctx, group)
	if err != nil {
		return fmt.Errorf("list monitors: %w", err)
	}
	sort.Slice(monitors, func(i, j int) bool {
		if monitors[i].OwningGroupID != monitors[j].OwningGroupID {
			return monitors[i].OwningGroupID < monitors[j].OwningGroupID
		}
		return monitors[i].ID < monitors[j].ID
	})
	if len(monitors) == 0 {
		fmt.Fprintln(out, "no monitors configured")
		return nil
	}
	for _, m := range monitors {
		message := m.CurrentMessageID
		if message == "" {
			message = "(none)"
		}
		fmt.Fprintf(out, "%s/%s channel=%s target=%s:%d message=%s\n",
			m.OwningGroupID, m.ID, m.ChannelID, m.HostName, m.QueryPort, message)
	}
	return nil
}

func runAdd(ctx context.Context, st store.Store, out io.Writer, group, id, channel, host string, port int) error {
	if strings.TrimSpace(group) == "" {
		return fmt.Errorf("--group is required")
	}
	if strings.TrimSpace(channel) == "" {
		return fmt.Errorf("--channel is required")
	}
	if strings.TrimSpace(host) == "" {
		return fmt.Errorf("--host is required")
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("--port must be in 1..65535")
	}
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}

	monitor := store.Monitor{
		ID:            id,
		OwningGroupID: group,
		ChannelID:     channel,
		HostName:      host,
		QueryPort:     port,
	}

	// An existing record keeps its message id so the posted status message
	// is edited rather than recreated after reconfiguration.
	existing, err := st.List(ctx, group)
	if err != nil {
		return fmt.Errorf("list monitors: %w", err)
	}
	for _, m := range existing {
		if m.ID == monitor.ID {
			monitor.CurrentMessageID = m.CurrentMessageID
			break
		}
	}

	if err := st.Upsert(ctx, monitor); err != nil {
		return fmt.Errorf("upsert monitor: %w", err)
	}
	fmt.Fprintf(out, "stored monitor %s/%s for %s:%d\n", group, id, host, port)
	return nil
}

func runRemove(ctx context.Context, st store.Store, out io.Writer, group, id string) error {
	if strings.TrimSpace(group) == "" {
		return fmt.Errorf("--group is required")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("--id is required")
	}
	removed, err := st.Remove(ctx, id, group)
	if err != nil {
		return fmt.Errorf("remove monitor: %w", err)
	}
	if !removed {
		return fmt.Errorf("monitor %s/%s not found", group, id)
	}
	fmt.Fprintf(out, "removed monitor %s/%s\n", group, id)
	return nil
}
