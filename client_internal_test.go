package embeddb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/embeddb/blobstore"
)

func TestClient_FlushWaitsForBackgroundSlot(t *testing.T) {
	ctx := context.Background()
	cl, err := NewClient(ctx,
		WithCompactionInterval(0),
		WithBlobStore(blobstore.NewMemoryStore()),
		WithResourceLimits(ResourceLimits{MaxBackgroundWorkers: 1}))
	require.NoError(t, err)
	defer cl.Close()

	_, err = cl.CreateCollection(ctx, "c", WithDimension(2))
	require.NoError(t, err)

	// Hold the only slot the way a running compaction does.
	require.True(t, cl.resources.TryAcquireBackground())

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, cl.Flush(short), context.DeadlineExceeded)
	assert.Zero(t, cl.snapshots.Version())

	done := make(chan error, 1)
	go func() { done <- cl.Flush(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("flush finished while the slot was held: %v", err)
	case <-time.After(30 * time.Millisecond):
	}

	cl.resources.ReleaseBackground()
	require.NoError(t, <-done)
	assert.Equal(t, uint64(1), cl.snapshots.Version())

	// The slot is free again for compaction.
	assert.True(t, cl.resources.TryAcquireBackground())
	cl.resources.ReleaseBackground()
}
