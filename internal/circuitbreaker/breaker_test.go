package circuitbreaker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ounols/jekyll-news/internal/circuitbreaker"
)

var errBackend = errors.New("backend down")

func TestBreaker_OpensAfterThresholdAndRecovers(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var transitions []string
	b := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
		Now:              func() time.Time { return now },
		OnStateChange: func(from, to circuitbreaker.State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	ctx := context.Background()
	failing := func(context.Context) error { return errBackend }

	assert.ErrorIs(t, b.Execute(ctx, failing), errBackend)
	assert.Equal(t, circuitbreaker.StateClosed, b.State())
	assert.ErrorIs(t, b.Execute(ctx, failing), errBackend)
	assert.Equal(t, circuitbreaker.StateOpen, b.State())

	called := false
	err := b.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.False(t, called)

	now = now.Add(2 * time.Minute)
	require.NoError(t, b.Execute(ctx, func(context.Context) error { return nil }))
	assert.Equal(t, circuitbreaker.StateClosed, b.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	now := time.Now()
	b := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: 1,
		Timeout:          time.Second,
		Now:              func() time.Time { return now },
	})
	ctx := context.Background()

	_ = b.Execute(ctx, func(context.Context) error { return errBackend })
	now = now.Add(time.Second)
	_ = b.Execute(ctx, func(context.Context) error { return errBackend })
	assert.Equal(t, circuitbreaker.StateOpen, b.State())

	b.Reset()
	assert.Equal(t, circuitbreaker.StateClosed, b.State())
}

func TestBreaker_CancellationIsNotAFailure(t *testing.T) {
	t.Parallel()

	b := circuitbreaker.New(circuitbreaker.Config{FailureThreshold: 1})
	err := b.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, circuitbreaker.StateClosed, b.State())
}
