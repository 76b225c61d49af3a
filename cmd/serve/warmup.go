package serve

import (
	"fmt"

	"github.com/sig-0/p2prates/config"
	"github.com/sig-0/p2prates/ingest"
	"github.com/sig-0/p2prates/types"
)

// warmupJobs creates the refresh jobs for the configured markets and assets
func warmupJobs(r ingest.Refresher, cfg *config.Warmup) ([]ingest.Job, error) {
	pairs := make([]types.Pair, 0, len(cfg.Pairs))

	for _, raw := range cfg.Pairs {
		pair, err := types.ParsePair(raw)
		if err != nil {
			return nil, fmt.Errorf("unable to parse warm-up pair: %w", err)
		}

		pairs = append(pairs, pair)
	}

	symbols := make([]types.Currency, 0, len(cfg.Symbols))

	for _, raw := range cfg.Symbols {
		symbol := types.NormalizeCurrency(raw)
		if symbol == "" {
			continue
		}

		symbols = append(symbols, symbol)
	}

	return ingest.WarmupJobs(r, pairs, symbols, cfg.Interval()), nil
}
