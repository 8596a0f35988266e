package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"log/slog"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ecoxlabs/growthworker/internal/config"
	"github.com/ecoxlabs/growthworker/internal/database"
	"github.com/ecoxlabs/growthworker/internal/ecox"
	"github.com/ecoxlabs/growthworker/internal/engine"
	"github.com/ecoxlabs/growthworker/internal/logging"
	"github.com/ecoxlabs/growthworker/internal/metrics"
	"github.com/ecoxlabs/growthworker/internal/models"
	"github.com/ecoxlabs/growthworker/internal/suggest"
)

func main() {
	app := &cli.App{
		Name:  "growthworker",
		Usage: "multi-account follow and reward automation engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "load environment variables from `FILE` before starting",
			},
		},
		Before: func(c *cli.Context) error {
			if file := c.String("env-file"); file != "" {
				if err := godotenv.Load(file); err != nil {
					return fmt.Errorf("loading env file %s: %w", file, err)
				}
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run the engine: one loop per active account, reacting to store changes",
				Action: runEngine,
			},
			{
				Name:  "unfollow-pass",
				Usage: "unfollow everyone an account follows, except the whitelist, then exit",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "account", Usage: "account `NAME`", Required: true},
				},
				Action: runUnfollowPass,
			},
			{
				Name:  "suggest",
				Usage: "ask the LLM for new seed targets for an account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "account", Usage: "account `NAME`", Required: true},
					&cli.IntFlag{Name: "limit", Value: 5, Usage: "maximum suggestions"},
				},
				Action: runSuggest,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// bootstrap loads config, wires logging, connects the store and runs
// migrations. Shared by every command.
type bootstrap struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *sql.DB
	accounts *database.AccountRepository
	configs  *database.ConfigRepository
}

func setup(ctx context.Context) (*bootstrap, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("configuring logging: %w", err)
	}
	slog.SetDefault(logger)

	dbCfg := database.DefaultConfig(cfg.Store.URL)
	dbCfg.ConnectTimeout = cfg.Store.ConnectTimeout
	db, err := database.Connect(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to store: %w", err)
	}

	if err := database.RunMigrations(db, cfg.Store.MigrationsDir, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &bootstrap{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		accounts: database.NewAccountRepository(db),
		configs:  database.NewConfigRepository(db),
	}, nil
}

func runEngine(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	boot, err := setup(ctx)
	if err != nil {
		return err
	}
	defer boot.db.Close()

	engineCfg, err := boot.configs.Get(ctx)
	if err != nil {
		return fmt.Errorf("loading engine config: %w", err)
	}
	holder := engine.NewConfigHolder(engineCfg)

	collector, err := metrics.NewCollector()
	if err != nil {
		return fmt.Errorf("building metrics collector: %w", err)
	}

	client := ecox.NewClient(ecox.Options{
		BaseURL:  boot.cfg.API.BaseURL,
		Timeout:  boot.cfg.API.Timeout,
		Observer: collector,
	}, boot.logger)

	manager := engine.NewManager(client, boot.accounts, boot.configs, holder, collector, boot.logger)

	stream, err := database.NewChangeStream(boot.cfg.Store.URL, boot.logger)
	if err != nil {
		return fmt.Errorf("opening change stream: %w", err)
	}

	boot.logger.Info("engine starting", "api_base_url", boot.cfg.API.BaseURL)

	changes := make(chan database.Change, 16)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(changes)
		return stream.Run(ctx, changes)
	})
	g.Go(func() error {
		return manager.Run(ctx, changes)
	})
	if addr := boot.cfg.Metrics.Addr; addr != "" {
		g.Go(func() error {
			return serveMetrics(ctx, addr, collector, boot.logger)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	boot.logger.Info("engine shut down cleanly")
	return nil
}

func serveMetrics(ctx context.Context, addr string, collector *metrics.Collector, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listener starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runUnfollowPass(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	boot, err := setup(ctx)
	if err != nil {
		return err
	}
	defer boot.db.Close()

	account, err := findAccountByName(ctx, boot.accounts, c.String("account"))
	if err != nil {
		return err
	}

	engineCfg, err := boot.configs.Get(ctx)
	if err != nil {
		return fmt.Errorf("loading engine config: %w", err)
	}

	collector, err := metrics.NewCollector()
	if err != nil {
		return fmt.Errorf("building metrics collector: %w", err)
	}

	client := ecox.NewClient(ecox.Options{
		BaseURL:  boot.cfg.API.BaseURL,
		Timeout:  boot.cfg.API.Timeout,
		Observer: collector,
	}, boot.logger)

	manager := engine.NewManager(client, boot.accounts, boot.configs,
		engine.NewConfigHolder(engineCfg), collector, boot.logger)
	return manager.RunStandardUnfollowPass(ctx, account)
}

func runSuggest(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	boot, err := setup(ctx)
	if err != nil {
		return err
	}
	defer boot.db.Close()

	account, err := findAccountByName(ctx, boot.accounts, c.String("account"))
	if err != nil {
		return err
	}

	suggestCfg := suggest.DefaultConfig(boot.cfg.Suggest.APIKey)
	if boot.cfg.Suggest.Model != "" {
		suggestCfg.Model = boot.cfg.Suggest.Model
	}
	suggester, err := suggest.New(suggestCfg, boot.logger)
	if err != nil {
		return err
	}

	engineCfg, err := boot.configs.Get(ctx)
	if err != nil {
		return fmt.Errorf("loading engine config: %w", err)
	}
	seeds := account.TargetUsernames
	if len(seeds) == 0 {
		seeds = engineCfg.TargetUsernames
	}

	suggestions, err := suggester.SuggestTargets(ctx, account.Name, seeds, c.Int("limit"))
	if err != nil {
		return err
	}
	for _, name := range suggestions {
		fmt.Println(name)
	}
	return nil
}

func findAccountByName(ctx context.Context, repo *database.AccountRepository, name string) (*models.Account, error) {
	accounts, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	for i := range accounts {
		if strings.EqualFold(accounts[i].Name, name) {
			return &accounts[i], nil
		}
	}
	return nil, fmt.Errorf("account %q not found", name)
}
