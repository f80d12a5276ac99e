package fleet

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminal-bench/pizzaplanner/pkg/messaging"
)

func newTestTracker() *Tracker {
	return NewTracker(&messaging.Client{})
}

func TestOpenRouteRejectsDuplicate(t *testing.T) {
	tr := newTestTracker()
	fleetID := uuid.New()
	ctx := context.Background()

	_, err := tr.OpenRoute(ctx, fleetID, "courier-1", decimal.NewFromInt(50))
	require.NoError(t, err)

	_, err = tr.OpenRoute(ctx, fleetID, "courier-1", decimal.NewFromInt(50))
	assert.Error(t, err)
}

func TestAdjustLoadUpdatesLoadFactor(t *testing.T) {
	tr := newTestTracker()
	fleetID := uuid.New()
	ctx := context.Background()

	_, err := tr.OpenRoute(ctx, fleetID, "courier-1", decimal.NewFromInt(100))
	require.NoError(t, err)

	route, err := tr.AdjustLoad(ctx, fleetID, "courier-1", decimal.NewFromInt(40), 4)
	require.NoError(t, err)

	assert.True(t, route.BoxesLoaded.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, 4, route.OrdersLoaded)
	assert.True(t, route.LoadFactor.Equal(decimal.NewFromFloat(0.4)))
}

func TestCloseRouteRemovesFromActiveSet(t *testing.T) {
	tr := newTestTracker()
	fleetID := uuid.New()
	ctx := context.Background()

	_, err := tr.OpenRoute(ctx, fleetID, "courier-1", decimal.NewFromInt(50))
	require.NoError(t, err)

	_, err = tr.CloseRoute(ctx, fleetID, "courier-1")
	require.NoError(t, err)

	_, exists := tr.GetRoute(fleetID, "courier-1")
	assert.False(t, exists)
}

func TestGetEventsFromSequenceOnlyReturnsLater(t *testing.T) {
	tr := newTestTracker()
	fleetID := uuid.New()
	ctx := context.Background()

	_, err := tr.OpenRoute(ctx, fleetID, "courier-1", decimal.NewFromInt(50))
	require.NoError(t, err)
	_, err = tr.AdjustLoad(ctx, fleetID, "courier-1", decimal.NewFromInt(10), 1)
	require.NoError(t, err)
	_, err = tr.AdjustLoad(ctx, fleetID, "courier-1", decimal.NewFromInt(10), 1)
	require.NoError(t, err)

	events := tr.GetEventsFromSequence(1)
	assert.Len(t, events, 2)
	for _, e := range events {
		assert.Greater(t, e.SequenceNum, int64(1))
	}
}
