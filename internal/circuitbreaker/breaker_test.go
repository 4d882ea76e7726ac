package circuitbreaker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/titan-flow/fetchengine/internal/circuitbreaker"
	"github.com/titan-flow/fetchengine/internal/identity"
	"github.com/titan-flow/fetchengine/internal/redisstate"
)

func TestBreaker_ClosedOnEntry(t *testing.T) {
	store := redisstate.NewFakeStore()
	b := circuitbreaker.New(store, circuitbreaker.DefaultConfig())

	result, err := b.Check(context.Background(), identity.NewDomainKey("d.com"))
	require.NoError(t, err)
	assert.Equal(t, circuitbreaker.Closed, result.State)
	assert.Zero(t, result.FailureCount)
}

func TestBreaker_TripsOpenOnFourthFailure(t *testing.T) {
	store := redisstate.NewFakeStore()
	b := circuitbreaker.New(store, circuitbreaker.DefaultConfig())
	ctx := context.Background()
	domain := identity.NewDomainKey("d.com")

	for i := 0; i < 3; i++ {
		handedOff, err := b.HandleFailure(ctx, domain, "https://d.com/x")
		require.NoError(t, err)
		assert.False(t, handedOff, "attempt %d should not trip the circuit", i+1)
	}

	handedOff, err := b.HandleFailure(ctx, domain, "https://d.com/x")
	require.NoError(t, err)
	assert.True(t, handedOff, "fourth failure should trip the circuit")

	result, err := b.Check(ctx, domain)
	require.NoError(t, err)
	assert.Equal(t, circuitbreaker.Open, result.State)
	assert.True(t, result.RequiresFullBrowser)

	queued := store.QueueForTest("queue:slow_render_tasks")
	require.Len(t, queued, 1)
	assert.Equal(t, "https://d.com/x", queued[0])
}

func TestBreaker_StickyFlagSurvivesCounterExpiry(t *testing.T) {
	store := redisstate.NewFakeStore()
	now := time.Now()
	store.SetClockForTest(func() time.Time { return now })
	b := circuitbreaker.New(store, circuitbreaker.DefaultConfig())
	ctx := context.Background()
	domain := identity.NewDomainKey("d.com")

	for i := 0; i < 4; i++ {
		_, err := b.HandleFailure(ctx, domain, "https://d.com/x")
		require.NoError(t, err)
	}

	now = now.Add(2 * time.Hour) // past the 3600s failure TTL

	result, err := b.Check(ctx, domain)
	require.NoError(t, err)
	assert.Equal(t, circuitbreaker.Open, result.State, "sticky flag must not auto-clear")
	assert.True(t, result.RequiresFullBrowser)
}

func TestBreaker_ResetClearsBothCounterAndSticky(t *testing.T) {
	store := redisstate.NewFakeStore()
	b := circuitbreaker.New(store, circuitbreaker.DefaultConfig())
	ctx := context.Background()
	domain := identity.NewDomainKey("d.com")

	for i := 0; i < 4; i++ {
		_, err := b.HandleFailure(ctx, domain, "https://d.com/x")
		require.NoError(t, err)
	}

	require.NoError(t, b.Reset(ctx, domain))

	result, err := b.Check(ctx, domain)
	require.NoError(t, err)
	assert.Equal(t, circuitbreaker.Closed, result.State)
	assert.False(t, result.RequiresFullBrowser)
	assert.Zero(t, result.FailureCount)
}
