package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/p2prates/types"
)

func valueAttempt(source types.Source, v int) Attempt[int] {
	return Attempt[int]{
		Source: source,
		Fetch: func(context.Context) (int, error) {
			return v, nil
		},
	}
}

func failingAttempt(source types.Source, err error) Attempt[int] {
	return Attempt[int]{
		Source: source,
		Fetch: func(context.Context) (int, error) {
			return 0, err
		},
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	for _, sequential := range []bool{false, true} {
		mode := "concurrent"
		if sequential {
			mode = "sequential"
		}

		t.Run(mode, func(t *testing.T) {
			t.Parallel()

			r := NewResolver(time.Millisecond*100, sequential, nil)

			t.Run("primary succeeds", func(t *testing.T) {
				t.Parallel()

				res, err := Resolve(context.Background(), r, []Attempt[int]{
					valueAttempt("primary", 1),
					valueAttempt("secondary", 2),
				})
				require.NoError(t, err)

				assert.Equal(t, 1, res.Value)
				assert.Equal(t, types.Source("primary"), res.Source)
				assert.Equal(t, types.OriginPrimary, res.Origin)
				assert.Empty(t, res.Failures)
			})

			t.Run("primary fails, secondary succeeds", func(t *testing.T) {
				t.Parallel()

				res, err := Resolve(context.Background(), r, []Attempt[int]{
					failingAttempt("primary", types.ErrUpstreamError),
					valueAttempt("secondary", 2),
				})
				require.NoError(t, err)

				assert.Equal(t, 2, res.Value)
				assert.Equal(t, types.Source("secondary"), res.Source)
				assert.Equal(t, types.OriginFallback, res.Origin)

				require.Len(t, res.Failures, 1)
				assert.Equal(t, types.Source("primary"), res.Failures[0].Source)
				assert.ErrorIs(t, res.Failures[0].Err, types.ErrUpstreamError)
			})

			t.Run("all sources fail", func(t *testing.T) {
				t.Parallel()

				_, err := Resolve(context.Background(), r, []Attempt[int]{
					failingAttempt("primary", types.ErrUpstreamUnavailable),
					failingAttempt("secondary", types.ErrUpstreamError),
				})
				require.ErrorIs(t, err, types.ErrAllSourcesExhausted)

				var exhaustedErr *ExhaustedError

				require.ErrorAs(t, err, &exhaustedErr)
				require.Len(t, exhaustedErr.Failures, 2)

				assert.Equal(t, types.Source("primary"), exhaustedErr.Failures[0].Source)
				assert.ErrorIs(t, exhaustedErr.Failures[0].Err, types.ErrUpstreamUnavailable)
				assert.Equal(t, types.Source("secondary"), exhaustedErr.Failures[1].Source)
				assert.ErrorIs(t, exhaustedErr.Failures[1].Err, types.ErrUpstreamError)

				assert.Contains(t, err.Error(), "primary")
				assert.Contains(t, err.Error(), "secondary")
			})

			t.Run("all sources lack the symbol", func(t *testing.T) {
				t.Parallel()

				_, err := Resolve(context.Background(), r, []Attempt[int]{
					failingAttempt("primary", types.ErrSymbolNotFound),
					failingAttempt("secondary", types.ErrSymbolNotFound),
				})
				require.ErrorIs(t, err, types.ErrSymbolNotFound)
				assert.NotErrorIs(t, err, types.ErrAllSourcesExhausted)
			})

			t.Run("mixed no-data and fault", func(t *testing.T) {
				t.Parallel()

				_, err := Resolve(context.Background(), r, []Attempt[int]{
					failingAttempt("primary", types.ErrSymbolNotFound),
					failingAttempt("secondary", types.ErrUpstreamUnavailable),
				})
				assert.ErrorIs(t, err, types.ErrAllSourcesExhausted)
			})

			t.Run("primary exceeds deadline", func(t *testing.T) {
				t.Parallel()

				release := make(chan struct{})
				defer close(release)

				res, err := Resolve(context.Background(), r, []Attempt[int]{
					{
						Source: "primary",
						Fetch: func(context.Context) (int, error) {
							// Ignores cancellation on purpose
							<-release

							return 1, nil
						},
					},
					valueAttempt("secondary", 2),
				})
				require.NoError(t, err)

				assert.Equal(t, types.OriginFallback, res.Origin)
				require.Len(t, res.Failures, 1)
				assert.ErrorIs(t, res.Failures[0].Err, types.ErrUpstreamUnavailable)
			})

			t.Run("deadline error from the source", func(t *testing.T) {
				t.Parallel()

				_, err := Resolve(context.Background(), r, []Attempt[int]{
					{
						Source: "primary",
						Fetch: func(ctx context.Context) (int, error) {
							<-ctx.Done()

							return 0, ctx.Err()
						},
					},
				})

				var exhaustedErr *ExhaustedError

				require.ErrorAs(t, err, &exhaustedErr)
				require.Len(t, exhaustedErr.Failures, 1)
				assert.ErrorIs(t, exhaustedErr.Failures[0].Err, types.ErrUpstreamUnavailable)
			})

			t.Run("no attempts", func(t *testing.T) {
				t.Parallel()

				_, err := Resolve[int](context.Background(), r, nil)
				assert.ErrorIs(t, err, types.ErrAllSourcesExhausted)
			})
		})
	}
}

func TestResolve_Concurrent(t *testing.T) {
	t.Parallel()

	var (
		r       = NewResolver(time.Second, false, nil)
		started = make(chan struct{})
	)

	// The primary only succeeds if the secondary is in flight at the same time
	res, err := Resolve(context.Background(), r, []Attempt[int]{
		{
			Source: "primary",
			Fetch: func(ctx context.Context) (int, error) {
				select {
				case <-started:
					return 1, nil
				case <-ctx.Done():
					return 0, ctx.Err()
				}
			},
		},
		{
			Source: "secondary",
			Fetch: func(ctx context.Context) (int, error) {
				close(started)
				<-ctx.Done()

				return 0, ctx.Err()
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Value)
	assert.Equal(t, types.OriginPrimary, res.Origin)
}

func TestResolve_SequentialSkipsFallback(t *testing.T) {
	t.Parallel()

	var (
		r     = NewResolver(time.Second, true, nil)
		calls atomic.Int32
	)

	res, err := Resolve(context.Background(), r, []Attempt[int]{
		valueAttempt("primary", 1),
		{
			Source: "secondary",
			Fetch: func(context.Context) (int, error) {
				calls.Add(1)

				return 0, errors.New("unexpected call")
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, types.OriginPrimary, res.Origin)
	assert.Equal(t, int32(0), calls.Load())
}
