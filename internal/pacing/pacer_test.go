package pacing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFixedDelayFirstCallImmediate(t *testing.T) {
	p := NewFixedDelay(time.Hour)

	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestFixedDelaySpacing(t *testing.T) {
	p := NewFixedDelay(60 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Wait(ctx))
	}
	require.GreaterOrEqual(t, time.Since(start), 115*time.Millisecond)
}

func TestFixedDelayCancelled(t *testing.T) {
	p := NewFixedDelay(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, p.Wait(ctx))
	cancel()
	require.ErrorIs(t, p.Wait(ctx), context.Canceled)
}

func TestTokenBucketBurst(t *testing.T) {
	p := NewTokenBucket(1, 2)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, p.Wait(ctx))
	require.NoError(t, p.Wait(ctx))
	require.Less(t, time.Since(start), 100*time.Millisecond)

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	require.Error(t, p.Wait(short))
}
