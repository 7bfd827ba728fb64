package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"

	"github.com/gamestatushq/statusbot/internal/admin"
	"github.com/gamestatushq/statusbot/internal/chat"
	"github.com/gamestatushq/statusbot/internal/config"
	"github.com/gamestatushq/statusbot/internal/health"
	"github.com/gamestatushq/statusbot/internal/lifecycle"
	"github.com/gamestatushq/statusbot/internal/logging"
	"github.com/gamestatushq/statusbot/internal/metrics"
	"github.com/gamestatushq/statusbot/internal/monitorcli"
	"github.com/gamestatushq/statusbot/internal/query"
	"github.com/gamestatushq/statusbot/internal/render"
	"github.com/gamestatushq/statusbot/internal/store"
)

const defaultUpdateInterval = time.Minute

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = run(ctx, os.Args[2:])
	case "monitors":
		err = monitorcli.Run(ctx, os.Args[2:], monitorcli.Dependencies{})
	case "-h", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "command %s failed: %v\n", cmd, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "Path to bot configuration file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(ctx, *configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	token, err := cfg.Bot.ResolveToken()
	if err != nil {
		return fmt.Errorf("resolve bot token: %w", err)
	}

	logger := logging.New()

	interval := cfg.Bot.UpdateInterval.Std()
	if interval <= 0 {
		interval = defaultUpdateInterval
	}
	logger.Printf("statusbot starting (driver=%s, interval=%s)", cfg.Storage.Driver, interval)

	st, err := store.Open(ctx, cfg.Storage.Driver, cfg.Storage.Path, cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	metricsStore := metrics.NewStore()
	healthChecker := health.NewChecker(metricsStore, interval*3)

	fetcher := query.NewRateGoverned(
		query.NewClient(query.Config{Timeout: cfg.Query.Timeout.Std()}),
		cfg.Query.GlobalQPSCap,
		cfg.Query.PerHostQPSCap,
	)

	manager := lifecycle.New(
		lifecycle.Config{
			Interval: interval,
			RenderOptions: render.Options{
				DisplayPlayerGearLevel: cfg.Bot.DisplayPlayerGearLevel,
			},
		},
		lifecycle.Dependencies{
			Store:   st,
			Fetcher: fetcher,
			Logger:  logger,
			Metrics: metricsStore.CycleRecorder(),
			Observe: healthChecker.ObserveCycle,
		},
	)

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		st.Close()
		return fmt.Errorf("create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds
	if err := session.Open(); err != nil {
		st.Close()
		return fmt.Errorf("open gateway connection: %w", err)
	}
	defer session.Close()

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager.Start(runCtx, chat.NewDiscord(session))

	grp, groupCtx := errgroup.WithContext(runCtx)

	grp.Go(func() error {
		<-groupCtx.Done()
		return manager.Stop()
	})

	grp.Go(func() error {
		return serveAdmin(groupCtx, cfg.Admin, admin.Dependencies{
			Logger:  logger,
			Store:   st,
			Metrics: metricsStore,
			Health:  healthChecker,
		})
	})

	if err := grp.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		stop()
		return err
	}

	logger.Printf("statusbot stopped")
	return nil
}

func serveAdmin(ctx context.Context, cfg config.AdminConfig, deps admin.Dependencies) error {
	srv := admin.New(admin.Config{
		Addr:         cfg.Addr,
		BearerToken:  cfg.BearerToken,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, deps)

	errCh := make(chan error, 1)
	go func() {
		deps.Logger.Printf("admin listening on http://%s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func printUsage() {
	fmt.Println("Statusbot CLI")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  statusbot run [--config /etc/statusbot/config.yaml]")
	fmt.Println("  statusbot monitors list [--config path] [--group id]")
	fmt.Println("  statusbot monitors add --group id --channel id --host name --port n [--id id] [--config path]")
	fmt.Println("  statusbot monitors remove --group id --id id [--config path]")
}
