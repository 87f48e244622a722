package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPacerCooldownsForTwentyFiveItems(t *testing.T) {
	t.Parallel()

	pauser := &recordingPauser{}
	pacer := NewPacer(DefaultBatchSize, DefaultBatchCooldown, pauser)

	var taken []int
	for i := 0; i < 25; i++ {
		paused, err := pacer.Before(context.Background(), i)
		require.NoError(t, err)
		if paused {
			taken = append(taken, i)
		}
	}

	require.Equal(t, []int{10, 20}, taken)
	require.Equal(t, []time.Duration{20 * time.Second, 20 * time.Second}, pauser.recorded())
}

func TestPacerDisabled(t *testing.T) {
	t.Parallel()

	pacer := NewPacer(0, time.Second, &recordingPauser{})
	require.False(t, pacer.Due(10))

	var nilPacer *Pacer
	require.False(t, nilPacer.Due(10))
	require.Zero(t, nilPacer.Cooldown())
}

func TestPacerPropagatesCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pacer := NewPacer(1, time.Second, &recordingPauser{})
	paused, err := pacer.Before(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, paused)
}
