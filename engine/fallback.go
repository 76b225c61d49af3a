package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sig-0/p2prates/types"
)

// DefaultAttemptTimeout is the default deadline for a single source attempt
const DefaultAttemptTimeout = 5 * time.Second

// Attempt is a single source in a fallback chain
type Attempt[T any] struct {
	Fetch  func(context.Context) (T, error)
	Source types.Source
}

// SourceFailure is the failure reason of a single source.
// Leg names the conversion leg the source was queried for, if any
type SourceFailure struct {
	Err    error
	Source types.Source
	Leg    string
}

func (f SourceFailure) String() string {
	var b strings.Builder

	if f.Leg != "" {
		b.WriteString(f.Leg)
		b.WriteString(" ")
	}

	if f.Source != "" {
		b.WriteString(f.Source.String())
		b.WriteString(": ")
	}

	b.WriteString(f.Err.Error())

	return b.String()
}

// ExhaustedError is returned when no source in a chain produced a value
type ExhaustedError struct {
	Failures []SourceFailure
}

func (e *ExhaustedError) Error() string {
	if len(e.Failures) == 0 {
		return types.ErrAllSourcesExhausted.Error()
	}

	return fmt.Sprintf("%s: %s", types.ErrAllSourcesExhausted, describe(e.Failures))
}

// Is matches types.ErrAllSourcesExhausted
func (e *ExhaustedError) Is(target error) bool {
	return target == types.ErrAllSourcesExhausted
}

// Resolution is a successful fallback chain outcome
type Resolution[T any] struct {
	Value  T
	Source types.Source
	Origin types.Origin

	// Failures of the higher priority sources, if any
	Failures []SourceFailure
}

// Resolver runs fallback chains, bounding every attempt by a fixed deadline
type Resolver struct {
	logger *slog.Logger

	attemptTimeout time.Duration
	sequential     bool
}

// NewResolver creates a new fallback resolver.
// A sequential resolver only queries a source after all higher priority
// sources failed, otherwise all sources are queried at once
func NewResolver(attemptTimeout time.Duration, sequential bool, logger *slog.Logger) *Resolver {
	if attemptTimeout <= 0 {
		attemptTimeout = DefaultAttemptTimeout
	}

	if logger == nil {
		logger = noopLogger
	}

	return &Resolver{
		logger:         logger,
		attemptTimeout: attemptTimeout,
		sequential:     sequential,
	}
}

type outcome[T any] struct {
	value T
	err   error
}

// Resolve returns the highest priority successful attempt. The first
// attempt is the primary source, the rest are fallbacks in order
func Resolve[T any](ctx context.Context, r *Resolver, attempts []Attempt[T]) (Resolution[T], error) {
	if len(attempts) == 0 {
		return Resolution[T]{}, &ExhaustedError{}
	}

	if r.sequential {
		return resolveSequential(ctx, r, attempts)
	}

	return resolveConcurrent(ctx, r, attempts)
}

func resolveSequential[T any](ctx context.Context, r *Resolver, attempts []Attempt[T]) (Resolution[T], error) {
	failures := make([]SourceFailure, 0, len(attempts))

	for i, attempt := range attempts {
		value, err := runAttempt(ctx, r.attemptTimeout, attempt)
		if err == nil {
			return Resolution[T]{
				Value:    value,
				Source:   attempt.Source,
				Origin:   originAt(i),
				Failures: failures,
			}, nil
		}

		r.logFailure(attempt.Source, i, err)

		failures = append(failures, SourceFailure{
			Source: attempt.Source,
			Err:    err,
		})

		if ctx.Err() != nil {
			break
		}
	}

	return Resolution[T]{}, exhausted(failures)
}

func resolveConcurrent[T any](ctx context.Context, r *Resolver, attempts []Attempt[T]) (Resolution[T], error) {
	// Lower priority attempts are canceled once a result is picked
	ctx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()

	outcomes := make([]chan outcome[T], len(attempts))

	for i, attempt := range attempts {
		outCh := make(chan outcome[T], 1)
		outcomes[i] = outCh

		go func() {
			value, err := runAttempt(ctx, r.attemptTimeout, attempt)

			outCh <- outcome[T]{
				value: value,
				err:   err,
			}
		}()
	}

	failures := make([]SourceFailure, 0, len(attempts))

	// Collect in priority order. Every attempt is deadline bound,
	// so waiting on a slow primary is bounded as well
	for i, outCh := range outcomes {
		out := <-outCh

		if out.err == nil {
			return Resolution[T]{
				Value:    out.value,
				Source:   attempts[i].Source,
				Origin:   originAt(i),
				Failures: failures,
			}, nil
		}

		r.logFailure(attempts[i].Source, i, out.err)

		failures = append(failures, SourceFailure{
			Source: attempts[i].Source,
			Err:    out.err,
		})
	}

	return Resolution[T]{}, exhausted(failures)
}

// runAttempt runs a single attempt under the per-attempt deadline.
// The attempt is abandoned, not awaited, once the deadline passes
func runAttempt[T any](ctx context.Context, timeout time.Duration, attempt Attempt[T]) (T, error) {
	var zero T

	attemptCtx, cancelFn := context.WithTimeout(ctx, timeout)
	defer cancelFn()

	outCh := make(chan outcome[T], 1)

	go func() {
		value, err := attempt.Fetch(attemptCtx)

		outCh <- outcome[T]{
			value: value,
			err:   err,
		}
	}()

	select {
	case out := <-outCh:
		if out.err != nil &&
			errors.Is(out.err, context.DeadlineExceeded) &&
			!errors.Is(out.err, types.ErrUpstreamUnavailable) {
			return zero, fmt.Errorf("%w: %w", types.ErrUpstreamUnavailable, out.err)
		}

		return out.value, out.err
	case <-attemptCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		return zero, fmt.Errorf(
			"%w: no response within %s",
			types.ErrUpstreamUnavailable,
			timeout,
		)
	}
}

func (r *Resolver) logFailure(source types.Source, priority int, err error) {
	r.logger.Warn(
		"source attempt failed",
		"source", source.String(),
		"priority", priority,
		"err", err,
	)
}

func originAt(i int) types.Origin {
	if i == 0 {
		return types.OriginPrimary
	}

	return types.OriginFallback
}

// exhausted builds the chain failure. When every source reported the
// same no-data outcome, that outcome is returned instead
func exhausted(failures []SourceFailure) error {
	for _, kind := range []error{
		types.ErrSymbolNotFound,
		types.ErrNoOffersFound,
		types.ErrNoConversionPath,
	} {
		if allFailWith(failures, kind) {
			return fmt.Errorf("%w (%s)", kind, describe(failures))
		}
	}

	return &ExhaustedError{
		Failures: failures,
	}
}

func allFailWith(failures []SourceFailure, kind error) bool {
	if len(failures) == 0 {
		return false
	}

	for _, f := range failures {
		if !errors.Is(f.Err, kind) {
			return false
		}
	}

	return true
}

func describe(failures []SourceFailure) string {
	reasons := make([]string, 0, len(failures))

	for _, f := range failures {
		reasons = append(reasons, f.String())
	}

	return strings.Join(reasons, "; ")
}

// isNoData reports whether the error is a no-data outcome,
// including chains where every source found no data
func isNoData(err error) bool {
	var exhaustedErr *ExhaustedError

	if errors.As(err, &exhaustedErr) {
		if len(exhaustedErr.Failures) == 0 {
			return false
		}

		for _, f := range exhaustedErr.Failures {
			if !isNoData(f.Err) {
				return false
			}
		}

		return true
	}

	return types.IsNoData(err)
}
