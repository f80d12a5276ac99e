// Package capacity gives operators pre-solve visibility into fleet box
// capacity: how loaded each courier already is, whether a prospective batch
// of orders fits, and when to fire a capacity.alert. Adapted from
// internal/risk/calculator.go's position/limits/metrics shape, swapping
// money exposure for box load.
package capacity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/terminal-bench/pizzaplanner/pkg/messaging"
)

// Calculator tracks per-courier box load against configured limits.
type Calculator struct {
	loads  map[uuid.UUID]map[string]*CourierLoad // fleetID -> courierID -> load
	limits map[uuid.UUID]*FleetLimits

	mu        sync.RWMutex
	msgClient *messaging.Client
}

// CourierLoad is one courier's current box assignment within a fleet.
type CourierLoad struct {
	FleetID      uuid.UUID
	CourierID    string
	BoxCapacity  int
	BoxesLoaded  int
	OrdersLoaded int
	UpdatedAt    time.Time
}

// FleetLimits bounds how hard a fleet's couriers may be pushed.
type FleetLimits struct {
	FleetID             uuid.UUID
	MaxUtilizationRate  decimal.Decimal // e.g. 0.90 = 90% of box capacity
	MaxOrdersPerCourier int
	DailySkipBudget     int
	CurrentDailySkips   int
	LastResetDate       time.Time
}

// FleetMetrics summarizes current fleet-wide capacity.
type FleetMetrics struct {
	TotalCapacity     int
	TotalLoaded       int
	UtilizationRate   decimal.Decimal
	AvailableCapacity int
	CouriersAtLimit   int
}

// NewCalculator builds a Calculator that publishes alerts via msgClient.
func NewCalculator(msgClient *messaging.Client) *Calculator {
	return &Calculator{
		loads:     make(map[uuid.UUID]map[string]*CourierLoad),
		limits:    make(map[uuid.UUID]*FleetLimits),
		msgClient: msgClient,
	}
}

// UpdateLoad records a courier's current box assignment.
func (c *Calculator) UpdateLoad(ctx context.Context, load *CourierLoad) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loads[load.FleetID] == nil {
		c.loads[load.FleetID] = make(map[string]*CourierLoad)
	}

	c.loads[load.FleetID][load.CourierID] = load
	load.UpdatedAt = time.Now()

	return nil
}

// CalculateFleetMetrics computes aggregate capacity metrics for a fleet.
func (c *Calculator) CalculateFleetMetrics(ctx context.Context, fleetID uuid.UUID) (*FleetMetrics, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	loads := c.loads[fleetID]
	limits := c.limits[fleetID]

	if limits == nil {
		return nil, fmt.Errorf("no capacity limits defined for fleet %s", fleetID)
	}

	metrics := &FleetMetrics{}

	for _, load := range loads {
		metrics.TotalCapacity += load.BoxCapacity
		metrics.TotalLoaded += load.BoxesLoaded

		if load.BoxCapacity > 0 {
			rate := decimal.NewFromInt(int64(load.BoxesLoaded)).Div(decimal.NewFromInt(int64(load.BoxCapacity)))
			if rate.GreaterThanOrEqual(limits.MaxUtilizationRate) {
				metrics.CouriersAtLimit++
			}
		}
	}

	metrics.AvailableCapacity = metrics.TotalCapacity - metrics.TotalLoaded
	if metrics.TotalCapacity > 0 {
		metrics.UtilizationRate = decimal.NewFromInt(int64(metrics.TotalLoaded)).
			Div(decimal.NewFromInt(int64(metrics.TotalCapacity)))
	}

	return metrics, nil
}

// CheckBatchCapacity checks whether adding a batch of boxes to a fleet
// would breach its configured limits, ahead of handing the batch to the
// planner.
func (c *Calculator) CheckBatchCapacity(ctx context.Context, fleetID uuid.UUID, additionalBoxes, additionalOrders int) error {
	c.mu.RLock()
	limits := c.limits[fleetID]
	c.mu.RUnlock()

	if limits == nil {
		return fmt.Errorf("no capacity limits for fleet")
	}

	metrics, err := c.CalculateFleetMetrics(ctx, fleetID)
	if err != nil {
		return err
	}

	if additionalBoxes > metrics.AvailableCapacity {
		return fmt.Errorf("batch would exceed available capacity: %d boxes requested, %d available",
			additionalBoxes, metrics.AvailableCapacity)
	}

	projected := decimal.NewFromInt(int64(metrics.TotalLoaded + additionalBoxes)).
		Div(decimal.NewFromInt(int64(metrics.TotalCapacity)))
	if projected.GreaterThan(limits.MaxUtilizationRate) {
		return fmt.Errorf("batch would push fleet utilization to %s, limit is %s",
			projected.StringFixed(2), limits.MaxUtilizationRate.StringFixed(2))
	}

	return nil
}

// CheckSkipBudget reports whether the fleet has exhausted its daily
// tolerance for skipped orders.
func (c *Calculator) CheckSkipBudget(ctx context.Context, fleetID uuid.UUID) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	limits, exists := c.limits[fleetID]
	if !exists {
		return false, fmt.Errorf("no limits for fleet %s", fleetID)
	}

	return limits.CurrentDailySkips < limits.DailySkipBudget, nil
}

// RecordSkip increments the fleet's daily skip counter.
func (c *Calculator) RecordSkip(ctx context.Context, fleetID uuid.UUID, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	limits, exists := c.limits[fleetID]
	if !exists {
		return fmt.Errorf("no limits for fleet %s", fleetID)
	}
	limits.CurrentDailySkips += n
	return nil
}

// SetLimits configures a fleet's capacity limits.
func (c *Calculator) SetLimits(fleetID uuid.UUID, limits *FleetLimits) {
	c.mu.Lock()
	defer c.mu.Unlock()

	limits.FleetID = fleetID
	limits.LastResetDate = time.Now()
	c.limits[fleetID] = limits
}

// GetLimits returns a fleet's configured limits.
func (c *Calculator) GetLimits(fleetID uuid.UUID) (*FleetLimits, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	limits, exists := c.limits[fleetID]
	return limits, exists
}

// ResetDailySkips resets the fleet's daily skip counter; it is exported for
// callers and nothing in this repository schedules it.
func (c *Calculator) ResetDailySkips(ctx context.Context, fleetID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	limits, exists := c.limits[fleetID]
	if !exists {
		return fmt.Errorf("no limits for fleet %s", fleetID)
	}

	limits.CurrentDailySkips = 0
	limits.LastResetDate = time.Now()

	return nil
}

// PublishCapacityAlert publishes a capacity.alert event over NATS.
func (c *Calculator) PublishCapacityAlert(ctx context.Context, fleetID uuid.UUID, alertType, severity, message string) error {
	alert := messaging.CapacityAlertEvent{
		AlertID:  uuid.New(),
		FleetID:  fleetID,
		Type:     alertType,
		Severity: severity,
		Message:  message,
	}

	return c.msgClient.Publish(ctx, messaging.EventTypeCapacityAlert, alert)
}
