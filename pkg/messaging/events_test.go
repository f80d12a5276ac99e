package messaging

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventRoundTrip(t *testing.T) {
	requestID := uuid.New()
	data := PlanRequestedEvent{RequestID: requestID, OrderCount: 12, CourierCount: 3}

	event, err := NewEvent(EventTypePlanRequested, requestID, data, EventMetadata{Source: "gateway"})
	require.NoError(t, err)

	assert.Equal(t, EventTypePlanRequested, event.Type)
	assert.Equal(t, requestID, event.AggregateID)

	parsed, err := ParseEventData[PlanRequestedEvent](event)
	require.NoError(t, err)
	assert.Equal(t, 12, parsed.OrderCount)
	assert.Equal(t, 3, parsed.CourierCount)
}

func TestParseEventDataRejectsWrongShape(t *testing.T) {
	requestID := uuid.New()
	event, err := NewEvent(EventTypeOrderAssigned, requestID, "not-an-object", EventMetadata{})
	require.NoError(t, err)

	_, err = ParseEventData[OrderAssignedEvent](event)
	assert.Error(t, err)
}
