package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventTypePlanRequested = "plan.requested"
	EventTypePlanComputed  = "plan.computed"
	EventTypePlanFailed    = "plan.failed"

	EventTypeOrderAssigned = "order.assigned"
	EventTypeOrderSkipped  = "order.skipped"
	EventTypeCertificate   = "order.certificate"

	EventTypeMatrixUpdated = "matrix.updated"
	EventTypeMatrixStale   = "matrix.stale"

	EventTypeCapacityAlert = "capacity.alert"
	EventTypeFleetOverload = "capacity.fleet_overload"

	EventTypeLedgerEntry = "ledger.entry"
)

// Event is the base event structure
type Event struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	AggregateID uuid.UUID       `json:"aggregate_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Version     int             `json:"version"`
	Data        json.RawMessage `json:"data"`
	Metadata    EventMetadata   `json:"metadata"`
}

// EventMetadata contains event metadata
type EventMetadata struct {
	CorrelationID string `json:"correlation_id"`
	CausationID   string `json:"causation_id"`
	UserID        string `json:"user_id,omitempty"`
	Source        string `json:"source"`
}

// PlanRequestedEvent records a solve request entering the system.
type PlanRequestedEvent struct {
	RequestID    uuid.UUID `json:"request_id"`
	OrderCount   int       `json:"order_count"`
	CourierCount int       `json:"courier_count"`
}

// PlanComputedEvent records a completed solve, status and objective only;
// the full response travels in the API response, not the event bus.
type PlanComputedEvent struct {
	RequestID    uuid.UUID `json:"request_id"`
	Status       string    `json:"status"`
	Objective    *int      `json:"objective,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	SkippedCount int       `json:"skipped_count"`
}

// OrderAssignedEvent fires once per order that landed on a route.
type OrderAssignedEvent struct {
	OrderID            string `json:"order_id"`
	CourierID          string `json:"courier_id"`
	IsCertificate      bool   `json:"is_certificate"`
	PlannedDeliveryUTC string `json:"planned_delivery_utc"`
}

// OrderSkippedEvent fires once per order the planner could not fit.
type OrderSkippedEvent struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// MatrixUpdatedEvent announces a fresh travel-time matrix pull.
type MatrixUpdatedEvent struct {
	RegionID  string    `json:"region_id"`
	Size      int       `json:"size"`
	FetchedAt time.Time `json:"fetched_at"`
}

// CapacityAlertEvent contains fleet capacity alert data.
type CapacityAlertEvent struct {
	AlertID  uuid.UUID `json:"alert_id"`
	FleetID  uuid.UUID `json:"fleet_id"`
	Type     string    `json:"type"`
	Severity string    `json:"severity"`
	Message  string    `json:"message"`
}

// LedgerEntryEvent contains audit ledger entry data.
type LedgerEntryEvent struct {
	EntryID     uuid.UUID `json:"entry_id"`
	SessionID   uuid.UUID `json:"session_id"`
	Type        string    `json:"type"`
	Reference   string    `json:"reference"`
	Description string    `json:"description"`
}

// NewEvent creates a new event
func NewEvent(eventType string, aggregateID uuid.UUID, data interface{}, metadata EventMetadata) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:          uuid.New(),
		Type:        eventType,
		AggregateID: aggregateID,
		Timestamp:   time.Now(),
		Version:     1,
		Data:        dataBytes,
		Metadata:    metadata,
	}, nil
}

// ParseEventData parses event data into the specified type
func ParseEventData[T any](event *Event) (*T, error) {
	var data T
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// EventStore interface for event sourcing
type EventStore interface {
	Append(ctx interface{}, aggregateID uuid.UUID, events []Event, expectedVersion int) error
	Load(ctx interface{}, aggregateID uuid.UUID) ([]Event, error)
	LoadFrom(ctx interface{}, aggregateID uuid.UUID, fromVersion int) ([]Event, error)
}

// EventBus interface for publishing events
type EventBus interface {
	Publish(ctx interface{}, event Event) error
	Subscribe(eventType string, handler func(Event) error) error
}

// Snapshot represents an aggregate snapshot
type Snapshot struct {
	AggregateID uuid.UUID       `json:"aggregate_id"`
	Version     int             `json:"version"`
	State       json.RawMessage `json:"state"`
	Timestamp   time.Time       `json:"timestamp"`
}
