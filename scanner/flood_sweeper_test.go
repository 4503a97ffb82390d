package scanner

import (
	"context"
	"testing"
	"time"

	"guardbot/flood"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloodSweeperEvictsStaleWindows(t *testing.T) {
	store := flood.NewMemStore()
	_, err := store.Observe(context.Background(), "g/u", time.Now().Add(-time.Hour), 5, time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	done := make(chan struct{})
	stopped := StartFloodSweeper(store, 10*time.Millisecond, time.Second, done)

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 10*time.Millisecond)
	close(done)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
