package formatter

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminal-bench/pizzaplanner/internal/mapper"
	"github.com/terminal-bench/pizzaplanner/internal/planner"
)

func rt(s string) json.RawMessage { return json.RawMessage(`"` + s + `"`) }

func unmarshalRaw(t *testing.T, s string, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rt(s), v))
}

func buildBasicRequest(t *testing.T) *mapper.Request {
	req := &mapper.Request{
		TravelTimeMatrix: [][]int{{0, 10}, {10, 0}},
		Orders: []mapper.Order{
			{OrderID: "ord-1", BoxesCount: 1},
		},
		Couriers: []mapper.Courier{
			{CourierID: "cour-1", BoxCapacity: 10},
		},
		Weights: mapper.Weights{CertificatePenaltyWeight: 100, ClickToEatPenaltyWeight: 1},
	}
	unmarshalRaw(t, "2024-01-01T00:00:00Z", &req.ReferenceTimestampUTC)
	unmarshalRaw(t, "2024-01-01T00:00:00Z", &req.Orders[0].CreatedAtUTC)
	unmarshalRaw(t, "2024-01-01T00:00:00Z", &req.Orders[0].ExpectedReadyAtUTC)
	unmarshalRaw(t, "2024-01-01T00:00:00Z", &req.Couriers[0].ExpectedCourierReturnAtUTC)
	return req
}

func TestBuildResponse(t *testing.T) {
	t.Run("should format a solved basic scenario end to end", func(t *testing.T) {
		req := buildBasicRequest(t)
		p, meta, err := mapper.Build(req)
		require.NoError(t, err)

		sol := planner.Solve(context.Background(), p)
		resp := Build(req, meta, p, sol)

		assert.Equal(t, "OPTIMAL", resp.Status)
		require.Len(t, resp.CourierPlans, 1)
		cp := resp.CourierPlans[0]
		assert.Equal(t, "cour-1", cp.CourierID)
		require.NotNil(t, cp.PlannedDepartureUTC)
		assert.Equal(t, "2024-01-01T00:00:00Z", *cp.PlannedDepartureUTC)
		require.NotNil(t, cp.PlannedReturnUTC)
		assert.Equal(t, "2024-01-01T00:20:00Z", *cp.PlannedReturnUTC)
		require.Len(t, cp.DeliverySequence, 1)
		assert.Equal(t, 1, cp.DeliverySequence[0].Position)
		assert.Equal(t, "ord-1", cp.DeliverySequence[0].OrderID)

		require.Len(t, resp.OrderPlans, 1)
		op := resp.OrderPlans[0]
		assert.Equal(t, "ord-1", op.OrderID)
		require.NotNil(t, op.AssignedCourierID)
		assert.Equal(t, "cour-1", *op.AssignedCourierID)
		assert.False(t, op.IsSkipped)
		assert.False(t, op.IsCertificate)

		assert.Equal(t, 1, resp.Metrics.TotalOrders)
		assert.Equal(t, 1, resp.Metrics.TotalCouriers)
		assert.Equal(t, 1, resp.Metrics.AssignedOrders)
		assert.Equal(t, 1, resp.Metrics.AssignedCouriers)
		require.NotNil(t, resp.Metrics.ObjectiveValue)
		assert.Equal(t, 10, *resp.Metrics.ObjectiveValue)
	})

	t.Run("should keep assigned_orders consistent with delivery sequence lengths", func(t *testing.T) {
		req := buildBasicRequest(t)
		p, meta, err := mapper.Build(req)
		require.NoError(t, err)
		sol := planner.Solve(context.Background(), p)
		resp := Build(req, meta, p, sol)

		total := 0
		for _, cp := range resp.CourierPlans {
			total += len(cp.DeliverySequence)
		}
		assert.Equal(t, resp.Metrics.AssignedOrders, total)
	})

	t.Run("should null out departure, return and delivery for a fully skipped plan", func(t *testing.T) {
		req := buildBasicRequest(t)
		p, meta, err := mapper.Build(req)
		require.NoError(t, err)
		p.C[0] = 0 // no capacity left, so every order is skipped
		sol := planner.Solve(context.Background(), p)
		resp := Build(req, meta, p, sol)

		cp := resp.CourierPlans[0]
		assert.Nil(t, cp.PlannedDepartureUTC)
		assert.Nil(t, cp.PlannedReturnUTC)
		assert.Empty(t, cp.DeliverySequence)

		op := resp.OrderPlans[0]
		assert.True(t, op.IsSkipped)
		assert.Nil(t, op.AssignedCourierID)
		assert.Nil(t, op.PlannedDeliveryUTC)
	})
}
