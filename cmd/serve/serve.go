package serve

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"golang.org/x/sync/errgroup"

	"github.com/sig-0/p2prates/cmd/env"
	"github.com/sig-0/p2prates/cmd/sources"
	"github.com/sig-0/p2prates/config"
	"github.com/sig-0/p2prates/engine"
	"github.com/sig-0/p2prates/ingest"
	"github.com/sig-0/p2prates/server"
	"github.com/sig-0/p2prates/server/graph"
)

// serveCfg wraps the serve configuration
type serveCfg struct {
	listenAddress string
	configPath    string
	warmup        bool
}

// NewServeCmd creates the serve subcommand
func NewServeCmd() *ffcli.Command {
	cfg := &serveCfg{}

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg.registerFlags(fs)

	return &ffcli.Command{
		Name:       "serve",
		ShortUsage: "serve [flags]",
		LongHelp:   "Serves the p2prates API",
		FlagSet:    fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

func (c *serveCfg) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(
		&c.listenAddress,
		"listen",
		"",
		fmt.Sprintf("the IP:PORT URL for the server (default %s)", config.DefaultListenAddress),
	)

	fs.StringVar(
		&c.configPath,
		"config",
		"",
		"the path to the server TOML configuration, if any",
	)

	fs.BoolVar(
		&c.warmup,
		"warmup",
		false,
		"keep the configured markets warm in the cache, regardless of the config",
	)
}

// exec executes the serve command
func (c *serveCfg) exec(ctx context.Context, _ []string) error {
	// Create a new logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Read the service configuration
	cfg, err := env.LoadConfig(c.configPath, logger)
	if err != nil {
		return err
	}

	if c.listenAddress != "" {
		cfg.ListenAddress = c.listenAddress
	}

	if c.warmup {
		cfg.Warmup.Enabled = true
	}

	if err = config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration, %w", err)
	}

	// Create the query engine
	queryEngine := engine.New(
		cfg.Engine,
		sources.New(cfg.Upstreams, logger),
		engine.WithLogger(logger),
	)

	// Create the cache warm-up service
	orchestrator := ingest.New(ingest.WithLogger(logger))

	if cfg.Warmup.Enabled {
		jobs, err := warmupJobs(queryEngine, cfg.Warmup)
		if err != nil {
			return err
		}

		for _, job := range jobs {
			if err = orchestrator.Register(job); err != nil {
				return fmt.Errorf("unable to register warm-up job: %w", err)
			}
		}
	}

	// Create the server instance
	s, err := server.New(
		queryEngine,
		server.WithLogger(logger),
		server.WithConfig(cfg),
	)
	if err != nil {
		return fmt.Errorf("unable to create server, %w", err)
	}

	// Register the GraphQL endpoint
	s.Routes(func(router chi.Router) {
		graph.Setup(queryEngine, router, logger)
	})

	runCtx, cancelFn := signal.NotifyContext(
		ctx,
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	defer cancelFn()

	group, gCtx := errgroup.WithContext(runCtx)

	// Start the HTTP server
	group.Go(func() error {
		return s.Serve(gCtx)
	})

	// Start the warm-up service
	if cfg.Warmup.Enabled {
		group.Go(func() error {
			return orchestrator.Start(gCtx)
		})
	}

	return group.Wait()
}
