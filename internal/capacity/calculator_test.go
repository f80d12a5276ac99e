package capacity

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminal-bench/pizzaplanner/pkg/messaging"
)

func newTestCalculator() *Calculator {
	return NewCalculator(&messaging.Client{})
}

func TestCalculateFleetMetrics(t *testing.T) {
	calc := newTestCalculator()
	fleetID := uuid.New()
	ctx := context.Background()

	calc.SetLimits(fleetID, &FleetLimits{
		MaxUtilizationRate:  decimal.NewFromFloat(0.9),
		MaxOrdersPerCourier: 20,
		DailySkipBudget:     5,
	})

	require.NoError(t, calc.UpdateLoad(ctx, &CourierLoad{FleetID: fleetID, CourierID: "c1", BoxCapacity: 100, BoxesLoaded: 90, OrdersLoaded: 10}))
	require.NoError(t, calc.UpdateLoad(ctx, &CourierLoad{FleetID: fleetID, CourierID: "c2", BoxCapacity: 100, BoxesLoaded: 50, OrdersLoaded: 5}))

	metrics, err := calc.CalculateFleetMetrics(ctx, fleetID)
	require.NoError(t, err)

	assert.Equal(t, 200, metrics.TotalCapacity)
	assert.Equal(t, 140, metrics.TotalLoaded)
	assert.Equal(t, 60, metrics.AvailableCapacity)
	assert.Equal(t, 1, metrics.CouriersAtLimit) // c1 is at 90% >= 0.9 limit
}

func TestCalculateFleetMetricsRequiresLimits(t *testing.T) {
	calc := newTestCalculator()
	fleetID := uuid.New()

	_, err := calc.CalculateFleetMetrics(context.Background(), fleetID)
	assert.Error(t, err)
}

func TestCheckBatchCapacityRejectsOverCapacity(t *testing.T) {
	calc := newTestCalculator()
	fleetID := uuid.New()
	ctx := context.Background()

	calc.SetLimits(fleetID, &FleetLimits{MaxUtilizationRate: decimal.NewFromFloat(0.95)})
	require.NoError(t, calc.UpdateLoad(ctx, &CourierLoad{FleetID: fleetID, CourierID: "c1", BoxCapacity: 50, BoxesLoaded: 40}))

	err := calc.CheckBatchCapacity(ctx, fleetID, 20, 2)
	assert.Error(t, err)
}

func TestSkipBudgetTracksDailyCount(t *testing.T) {
	calc := newTestCalculator()
	fleetID := uuid.New()
	ctx := context.Background()

	calc.SetLimits(fleetID, &FleetLimits{DailySkipBudget: 2})

	ok, err := calc.CheckSkipBudget(ctx, fleetID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, calc.RecordSkip(ctx, fleetID, 2))

	ok, err = calc.CheckSkipBudget(ctx, fleetID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResetDailySkips(t *testing.T) {
	calc := newTestCalculator()
	fleetID := uuid.New()
	ctx := context.Background()

	calc.SetLimits(fleetID, &FleetLimits{DailySkipBudget: 1})
	require.NoError(t, calc.RecordSkip(ctx, fleetID, 1))

	require.NoError(t, calc.ResetDailySkips(ctx, fleetID))

	limits, ok := calc.GetLimits(fleetID)
	require.True(t, ok)
	assert.Equal(t, 0, limits.CurrentDailySkips)
}
