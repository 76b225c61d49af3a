package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/sig-0/p2prates/types"
)

// Job is a single periodic cache refresh
type Job interface {
	// Name returns the human-readable name of the job
	Name() string

	// Interval returns the interval at which the job should be run
	Interval() time.Duration

	// Run executes a single refresh
	Run(context.Context) error
}

type funcJob struct {
	run      func(context.Context) error
	name     string
	interval time.Duration
}

// NewJob wraps the given function into a Job
func NewJob(name string, interval time.Duration, run func(context.Context) error) Job {
	return &funcJob{
		run:      run,
		name:     name,
		interval: interval,
	}
}

func (j *funcJob) Name() string {
	return j.name
}

func (j *funcJob) Interval() time.Duration {
	return j.interval
}

func (j *funcJob) Run(ctx context.Context) error {
	return j.run(ctx)
}

// Refresher refreshes cached market data
type Refresher interface {
	// RefreshOffers refetches the offers for the pair and side
	RefreshOffers(ctx context.Context, pair types.Pair, side types.Side) error

	// RefreshSnapshot refetches the market snapshot for the symbol
	RefreshSnapshot(ctx context.Context, symbol types.Currency) error
}

// WarmupJobs creates the refresh jobs keeping the given
// markets (both sides) and snapshots warm
func WarmupJobs(
	r Refresher,
	pairs []types.Pair,
	symbols []types.Currency,
	interval time.Duration,
) []Job {
	jobs := make([]Job, 0, len(pairs)*2+len(symbols))

	for _, pair := range pairs {
		for _, side := range []types.Side{types.SideBUY, types.SideSELL} {
			jobs = append(jobs, NewJob(
				fmt.Sprintf("offers %s %s", pair, side),
				interval,
				func(ctx context.Context) error {
					return r.RefreshOffers(ctx, pair, side)
				},
			))
		}
	}

	for _, symbol := range symbols {
		jobs = append(jobs, NewJob(
			fmt.Sprintf("snapshot %s", symbol),
			interval,
			func(ctx context.Context) error {
				return r.RefreshSnapshot(ctx, symbol)
			},
		))
	}

	return jobs
}
