package matrixfeed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminal-bench/pizzaplanner/pkg/messaging"
)

func TestFetchCachesSnapshotOnSuccess(t *testing.T) {
	f := NewFeed(&messaging.Client{})

	snap, err := f.Fetch(context.Background(), "region-1", func(ctx context.Context, regionID string) ([][]int, error) {
		return [][]int{{0, 5}, {5, 0}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "region-1", snap.RegionID)
	assert.Equal(t, 2, snap.Size)

	cached, ok := f.GetSnapshot("region-1")
	require.True(t, ok)
	assert.Equal(t, snap.Tau, cached.Tau)
}

func TestFetchPropagatesUpstreamError(t *testing.T) {
	f := NewFeed(&messaging.Client{})

	_, err := f.Fetch(context.Background(), "region-1", func(ctx context.Context, regionID string) ([][]int, error) {
		return nil, errors.New("duration service unavailable")
	})
	assert.Error(t, err)

	_, ok := f.GetSnapshot("region-1")
	assert.False(t, ok)
}

func TestSubscribeUnsubscribeRemovesSubscriber(t *testing.T) {
	f := NewFeed(&messaging.Client{})

	sub, err := f.Subscribe([]string{"region-1"})
	require.NoError(t, err)

	f.mu.RLock()
	_, exists := f.subscribers["region-1"][sub.ID]
	f.mu.RUnlock()
	assert.True(t, exists)

	f.Unsubscribe(sub.ID)

	f.mu.RLock()
	_, exists = f.subscribers["region-1"]
	f.mu.RUnlock()
	assert.False(t, exists)
}

func TestGetSnapshotMissingRegion(t *testing.T) {
	f := NewFeed(&messaging.Client{})
	_, ok := f.GetSnapshot("unknown")
	assert.False(t, ok)
}
