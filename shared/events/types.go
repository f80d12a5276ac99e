// Package events defines durable, event-sourced envelopes (aggregate type,
// full trace context, an open Extra bag) richer than pkg/messaging's
// fire-and-forget pub/sub events. No package in this repository imports it;
// internal/ledger publishes pkg/messaging events.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Plan lifecycle events
	PlanRequested = "plan.requested"
	PlanComputed  = "plan.computed"
	PlanFailed    = "plan.failed"

	// Order events
	OrderAssigned  = "order.assigned"
	OrderSkipped   = "order.skipped"
	OrderCertified = "order.certified"

	// Courier/fleet events
	CourierRouted    = "courier.routed"
	FleetOverloaded  = "fleet.overloaded"
	CapacityBreached = "capacity.breached"

	// Matrix events
	MatrixFetched = "matrix.fetched"
	MatrixStale   = "matrix.stale"

	// Session events
	SessionOpened  = "session.opened"
	SessionClosed  = "session.closed"
	SessionExpired = "session.expired"
)

// BaseEvent contains common event fields
type BaseEvent struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	Data          json.RawMessage `json:"data"`
	Metadata      Metadata        `json:"metadata"`
}

// Metadata contains event metadata
type Metadata struct {
	CorrelationID string            `json:"correlation_id"`
	CausationID   string            `json:"causation_id"`
	UserID        string            `json:"user_id,omitempty"`
	Source        string            `json:"source"`
	TraceID       string            `json:"trace_id,omitempty"`
	SpanID        string            `json:"span_id,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// PlanData records a solve outcome for the audit ledger.
type PlanData struct {
	RequestID    uuid.UUID `json:"request_id"`
	Status       string    `json:"status"`
	Objective    *int      `json:"objective,omitempty"`
	OrderCount   int       `json:"order_count"`
	SkippedCount int       `json:"skipped_count"`
}

// OrderAssignmentData records where one order ended up.
type OrderAssignmentData struct {
	OrderID            string `json:"order_id"`
	CourierID          string `json:"courier_id,omitempty"`
	IsCertificate      bool   `json:"is_certificate"`
	IsSkipped          bool   `json:"is_skipped"`
	PlannedDeliveryUTC string `json:"planned_delivery_utc,omitempty"`
}

// FleetData records fleet-wide capacity events.
type FleetData struct {
	FleetID         uuid.UUID `json:"fleet_id"`
	UtilizationRate string    `json:"utilization_rate"`
	Severity        string    `json:"severity"`
	Message         string    `json:"message"`
}

// SessionData records a planning session's bundle/case lifecycle.
type SessionData struct {
	SessionID uuid.UUID `json:"session_id"`
	Label     string    `json:"label,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// NewEvent creates a new event
func NewEvent(eventType string, aggregateID uuid.UUID, aggregateType string, data interface{}, metadata Metadata) (*BaseEvent, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &BaseEvent{
		ID:            uuid.New(),
		Type:          eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Timestamp:     time.Now(),
		Version:       1,
		Data:          dataBytes,
		Metadata:      metadata,
	}, nil
}

// ParseData parses event data into the given type
func (e *BaseEvent) ParseData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// WithCorrelation sets correlation and causation IDs
func (m *Metadata) WithCorrelation(correlationID, causationID string) *Metadata {
	m.CorrelationID = correlationID
	m.CausationID = causationID
	return m
}

// WithTracing sets trace context
func (m *Metadata) WithTracing(traceID, spanID string) *Metadata {
	m.TraceID = traceID
	m.SpanID = spanID
	return m
}
