// Package fleet tracks each courier's live route state — what it's
// currently loaded with, how that evolves as the planner reassigns orders
// intraday, and an event-sourced history for replay. Adapted from
// internal/positions/tracker.go: a courier's open route stands in for a
// trading position, and load-factor (boxes loaded / capacity) stands in
// for P&L.
package fleet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/terminal-bench/pizzaplanner/pkg/messaging"
)

// Tracker tracks live courier route state across fleets.
type Tracker struct {
	routes map[uuid.UUID]map[string]*CourierRoute // fleetID -> courierID -> route
	events []RouteEvent

	mu         sync.RWMutex
	eventMu    sync.Mutex
	msgClient  *messaging.Client
	lastSeqNum int64
}

// CourierRoute is a courier's currently open route.
type CourierRoute struct {
	ID           uuid.UUID
	FleetID      uuid.UUID
	CourierID    string
	BoxCapacity  decimal.Decimal
	BoxesLoaded  decimal.Decimal
	OrdersLoaded int
	LoadFactor   decimal.Decimal // BoxesLoaded / BoxCapacity
	OpenedAt     time.Time
	UpdatedAt    time.Time
	Version      int
}

// RouteEvent is one state change in a courier route's lifecycle.
type RouteEvent struct {
	ID          uuid.UUID
	RouteID     uuid.UUID
	FleetID     uuid.UUID
	CourierID   string
	Type        string // "opened", "updated", "closed"
	BoxDelta    decimal.Decimal
	Timestamp   time.Time
	SequenceNum int64
	Version     int
}

// NewTracker creates a new fleet tracker.
func NewTracker(msgClient *messaging.Client) *Tracker {
	return &Tracker{
		routes:    make(map[uuid.UUID]map[string]*CourierRoute),
		events:    make([]RouteEvent, 0),
		msgClient: msgClient,
	}
}

// OpenRoute opens a courier's route for the day with a fixed box capacity.
func (t *Tracker) OpenRoute(ctx context.Context, fleetID uuid.UUID, courierID string, capacity decimal.Decimal) (*CourierRoute, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.routes[fleetID] != nil {
		if existing, exists := t.routes[fleetID][courierID]; exists {
			return nil, fmt.Errorf("route already open: %s", existing.ID)
		}
	}

	route := &CourierRoute{
		ID:          uuid.New(),
		FleetID:     fleetID,
		CourierID:   courierID,
		BoxCapacity: capacity,
		BoxesLoaded: decimal.Zero,
		OpenedAt:    time.Now(),
		UpdatedAt:   time.Now(),
		Version:     1,
	}

	if t.routes[fleetID] == nil {
		t.routes[fleetID] = make(map[string]*CourierRoute)
	}
	t.routes[fleetID][courierID] = route

	t.eventMu.Lock()
	t.lastSeqNum++
	event := RouteEvent{
		ID:          uuid.New(),
		RouteID:     route.ID,
		FleetID:     fleetID,
		CourierID:   courierID,
		Type:        "opened",
		BoxDelta:    decimal.Zero,
		Timestamp:   time.Now(),
		SequenceNum: t.lastSeqNum,
		Version:     1,
	}
	t.events = append(t.events, event)
	t.eventMu.Unlock()

	t.publishRouteEvent(ctx, route, "opened")

	return route, nil
}

// AdjustLoad applies a box-count delta to a courier's open route, e.g. when
// the planner adds or removes an order assignment.
func (t *Tracker) AdjustLoad(ctx context.Context, fleetID uuid.UUID, courierID string, boxDelta decimal.Decimal, orderDelta int) (*CourierRoute, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.routes[fleetID] == nil {
		return nil, fmt.Errorf("no routes for fleet %s", fleetID)
	}

	route, exists := t.routes[fleetID][courierID]
	if !exists {
		return nil, fmt.Errorf("route not found: %s", courierID)
	}

	route.BoxesLoaded = route.BoxesLoaded.Add(boxDelta)
	route.OrdersLoaded += orderDelta
	route.UpdatedAt = time.Now()
	route.Version++

	if route.BoxCapacity.IsPositive() {
		route.LoadFactor = route.BoxesLoaded.Div(route.BoxCapacity)
	}

	t.eventMu.Lock()
	t.lastSeqNum++
	event := RouteEvent{
		ID:          uuid.New(),
		RouteID:     route.ID,
		FleetID:     fleetID,
		CourierID:   courierID,
		Type:        "updated",
		BoxDelta:    boxDelta,
		Timestamp:   time.Now(),
		SequenceNum: t.lastSeqNum,
		Version:     route.Version,
	}
	t.events = append(t.events, event)
	t.eventMu.Unlock()

	t.publishRouteEvent(ctx, route, "updated")

	return route, nil
}

// CloseRoute closes a courier's route once it has returned to the depot.
func (t *Tracker) CloseRoute(ctx context.Context, fleetID uuid.UUID, courierID string) (*CourierRoute, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.routes[fleetID] == nil {
		return nil, fmt.Errorf("no routes for fleet %s", fleetID)
	}

	route, exists := t.routes[fleetID][courierID]
	if !exists {
		return nil, fmt.Errorf("route not found: %s", courierID)
	}

	route.UpdatedAt = time.Now()
	route.Version++

	t.eventMu.Lock()
	t.lastSeqNum++
	event := RouteEvent{
		ID:          uuid.New(),
		RouteID:     route.ID,
		FleetID:     fleetID,
		CourierID:   courierID,
		Type:        "closed",
		BoxDelta:    route.BoxesLoaded.Neg(),
		Timestamp:   time.Now(),
		SequenceNum: t.lastSeqNum,
		Version:     route.Version,
	}
	t.events = append(t.events, event)
	t.eventMu.Unlock()

	delete(t.routes[fleetID], courierID)

	t.publishRouteEvent(ctx, route, "closed")

	return route, nil
}

// GetRoute returns a courier's currently open route, if any.
func (t *Tracker) GetRoute(fleetID uuid.UUID, courierID string) (*CourierRoute, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.routes[fleetID] == nil {
		return nil, false
	}
	route, exists := t.routes[fleetID][courierID]
	return route, exists
}

// GetRoutes returns every open route for a fleet.
func (t *Tracker) GetRoutes(fleetID uuid.UUID) []*CourierRoute {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.routes[fleetID] == nil {
		return []*CourierRoute{}
	}

	routes := make([]*CourierRoute, 0, len(t.routes[fleetID]))
	for _, r := range t.routes[fleetID] {
		routes = append(routes, r)
	}
	return routes
}

// GetEvents returns the event history for one route.
func (t *Tracker) GetEvents(routeID uuid.UUID) []RouteEvent {
	t.eventMu.Lock()
	defer t.eventMu.Unlock()

	events := make([]RouteEvent, 0)
	for _, event := range t.events {
		if event.RouteID == routeID {
			events = append(events, event)
		}
	}
	return events
}

// GetEventsFromSequence returns events after a given sequence number, for
// catching up a watcher that missed the live stream.
func (t *Tracker) GetEventsFromSequence(fromSeq int64) []RouteEvent {
	t.eventMu.Lock()
	defer t.eventMu.Unlock()

	events := make([]RouteEvent, 0)
	for _, event := range t.events {
		if event.SequenceNum > fromSeq {
			events = append(events, event)
		}
	}
	return events
}

func (t *Tracker) publishRouteEvent(ctx context.Context, route *CourierRoute, eventType string) {
	event := struct {
		RouteID      uuid.UUID `json:"route_id"`
		FleetID      uuid.UUID `json:"fleet_id"`
		CourierID    string    `json:"courier_id"`
		BoxesLoaded  string    `json:"boxes_loaded"`
		OrdersLoaded int       `json:"orders_loaded"`
		LoadFactor   string    `json:"load_factor"`
	}{
		RouteID:      route.ID,
		FleetID:      route.FleetID,
		CourierID:    route.CourierID,
		BoxesLoaded:  route.BoxesLoaded.String(),
		OrdersLoaded: route.OrdersLoaded,
		LoadFactor:   route.LoadFactor.String(),
	}

	t.msgClient.Publish(ctx, "courier.route."+eventType, event)
}
