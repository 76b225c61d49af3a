package query

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/shopspring/decimal"

	"github.com/sig-0/p2prates/cmd/env"
	"github.com/sig-0/p2prates/cmd/sources"
	"github.com/sig-0/p2prates/config"
	"github.com/sig-0/p2prates/engine"
	"github.com/sig-0/p2prates/types"
)

var errInvalidArgs = errors.New("invalid number of arguments")

// queryCfg wraps the shared query configuration
type queryCfg struct {
	configPath string
	verbose    bool

	out io.Writer
}

// NewQueryCmd creates the query subcommand
func NewQueryCmd() *ffcli.Command {
	cfg := &queryCfg{
		out: os.Stdout,
	}

	fs := flag.NewFlagSet("query", flag.ExitOnError)
	cfg.registerFlags(fs)

	cmd := &ffcli.Command{
		Name:       "query",
		ShortUsage: "query <subcommand> [flags] [<arg>...]",
		LongHelp:   "Runs a one-off market query against the upstream sources",
		FlagSet:    fs,
		Exec: func(_ context.Context, _ []string) error {
			return flag.ErrHelp
		},
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}

	cmd.Subcommands = []*ffcli.Command{
		newOffersCmd(cfg),
		newConvertCmd(cfg),
		newSnapshotCmd(cfg),
	}

	return cmd
}

func (c *queryCfg) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(
		&c.configPath,
		"config",
		"",
		"the path to the TOML configuration, if any",
	)

	fs.BoolVar(
		&c.verbose,
		"verbose",
		false,
		"log upstream activity to stderr",
	)
}

// newEngine creates a query engine from the configuration
func (c *queryCfg) newEngine() (*engine.Engine, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if c.verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	cfg, err := env.LoadConfig(c.configPath, logger)
	if err != nil {
		return nil, err
	}

	if err = config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration, %w", err)
	}

	return engine.New(
		cfg.Engine,
		sources.New(cfg.Upstreams, logger),
		engine.WithLogger(logger),
	), nil
}

// print writes the result as indented JSON
func (c *queryCfg) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

type offersCfg struct {
	rootCfg *queryCfg

	side   string
	amount string
}

// newOffersCmd creates the query offers subcommand
func newOffersCmd(rootCfg *queryCfg) *ffcli.Command {
	cfg := &offersCfg{
		rootCfg: rootCfg,
	}

	fs := flag.NewFlagSet("offers", flag.ExitOnError)
	cfg.rootCfg.registerFlags(fs)

	fs.StringVar(&cfg.side, "side", types.SideBUY.String(), "the taker side (BUY or SELL)")
	fs.StringVar(&cfg.amount, "amount", "", "the amount to fill, e.g. 5000ETB or 50USDT")

	return &ffcli.Command{
		Name:       "offers",
		ShortUsage: "query offers [flags] <ASSET/FIAT>",
		LongHelp:   "Lists the best P2P offers for a market",
		FlagSet:    fs,
		Exec:       cfg.exec,
	}
}

func (c *offersCfg) exec(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errInvalidArgs
	}

	pair, err := types.ParsePair(args[0])
	if err != nil {
		return err
	}

	side, err := types.ParseSide(c.side)
	if err != nil {
		return err
	}

	e, err := c.rootCfg.newEngine()
	if err != nil {
		return err
	}

	var offers []types.Offer

	if c.amount != "" {
		amount, err := types.ParseQuantity(c.amount)
		if err != nil {
			return err
		}

		offers, err = e.OffersForAmount(ctx, pair, side, amount)
		if err != nil {
			return err
		}
	} else {
		offers, err = e.TopOffers(ctx, pair, side)
		if err != nil {
			return err
		}
	}

	return c.rootCfg.print(offers)
}

type convertCfg struct {
	rootCfg *queryCfg

	amount string
}

// newConvertCmd creates the query convert subcommand
func newConvertCmd(rootCfg *queryCfg) *ffcli.Command {
	cfg := &convertCfg{
		rootCfg: rootCfg,
	}

	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	cfg.rootCfg.registerFlags(fs)

	fs.StringVar(&cfg.amount, "amount", "", "the amount of the source asset, if any")

	return &ffcli.Command{
		Name:       "convert",
		ShortUsage: "query convert [flags] <FROM> <TO>",
		LongHelp:   "Converts between two assets, bridging when no direct rate exists",
		FlagSet:    fs,
		Exec:       cfg.exec,
	}
}

func (c *convertCfg) exec(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errInvalidArgs
	}

	var amount *decimal.Decimal

	if c.amount != "" {
		v, err := decimal.NewFromString(c.amount)
		if err != nil {
			return fmt.Errorf("%w: %q", types.ErrInvalidAmount, c.amount)
		}

		amount = &v
	}

	e, err := c.rootCfg.newEngine()
	if err != nil {
		return err
	}

	result, err := e.Convert(
		ctx,
		types.NormalizeCurrency(args[0]),
		types.NormalizeCurrency(args[1]),
		amount,
	)
	if err != nil {
		return err
	}

	return c.rootCfg.print(result)
}

type snapshotCfg struct {
	rootCfg *queryCfg
}

// newSnapshotCmd creates the query snapshot subcommand
func newSnapshotCmd(rootCfg *queryCfg) *ffcli.Command {
	cfg := &snapshotCfg{
		rootCfg: rootCfg,
	}

	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	cfg.rootCfg.registerFlags(fs)

	return &ffcli.Command{
		Name:       "snapshot",
		ShortUsage: "query snapshot [flags] <SYMBOL>",
		LongHelp:   "Shows the market snapshot of an asset",
		FlagSet:    fs,
		Exec:       cfg.exec,
	}
}

func (c *snapshotCfg) exec(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errInvalidArgs
	}

	e, err := c.rootCfg.newEngine()
	if err != nil {
		return err
	}

	snapshot, err := e.Snapshot(ctx, types.NormalizeCurrency(args[0]))
	if err != nil {
		return err
	}

	return c.rootCfg.print(snapshot)
}
