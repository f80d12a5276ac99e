package mapper

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRawTime(t *testing.T, s string) rawTime {
	t.Helper()
	var rt rawTime
	require.NoError(t, json.Unmarshal([]byte(`"`+s+`"`), &rt))
	return rt
}

func TestParseISOTimestamp(t *testing.T) {
	t.Run("should accept an uppercase Z suffix", func(t *testing.T) {
		rt := mustRawTime(t, "2024-01-01T00:00:00Z")
		assert.True(t, rt.Time.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("should accept a lowercase z suffix", func(t *testing.T) {
		rt := mustRawTime(t, "2024-01-01T00:10:00z")
		assert.True(t, rt.Time.Equal(time.Date(2024, 1, 1, 0, 10, 0, 0, time.UTC)))
	})

	t.Run("should accept an explicit offset and normalize to UTC", func(t *testing.T) {
		rt := mustRawTime(t, "2024-01-01T01:00:00+01:00")
		assert.True(t, rt.Time.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	})
}

func TestRoundHalfToEven(t *testing.T) {
	t.Run("should round half-way values to the nearest even integer", func(t *testing.T) {
		assert.Equal(t, 2, roundHalfToEven(2.5))
		assert.Equal(t, 4, roundHalfToEven(3.5))
		assert.Equal(t, -2, roundHalfToEven(-2.5))
	})

	t.Run("should round non-halfway values normally", func(t *testing.T) {
		assert.Equal(t, 3, roundHalfToEven(3.2))
		assert.Equal(t, 4, roundHalfToEven(3.8))
	})
}

func buildRequest() *Request {
	ref := mustRawTimeNoT("2024-01-01T00:00:00Z")
	return &Request{
		ReferenceTimestampUTC: ref,
		TravelTimeMatrix:      [][]int{{0, 10}, {10, 0}},
		Orders: []Order{
			{
				OrderID:            "ord-1",
				BoxesCount:         2,
				CreatedAtUTC:       mustRawTimeNoT("2024-01-01T00:00:00Z"),
				ExpectedReadyAtUTC: mustRawTimeNoT("2024-01-01T00:05:00Z"),
			},
		},
		Couriers: []Courier{
			{
				CourierID:                  "cour-1",
				BoxCapacity:                5,
				ExpectedCourierReturnAtUTC: mustRawTimeNoT("2024-01-01T01:00:00Z"),
			},
		},
		Weights: Weights{CertificatePenaltyWeight: 100, ClickToEatPenaltyWeight: 1},
	}
}

func mustRawTimeNoT(s string) rawTime {
	var rt rawTime
	_ = json.Unmarshal([]byte(`"`+s+`"`), &rt)
	return rt
}

func TestBuild(t *testing.T) {
	t.Run("should translate a well-formed request", func(t *testing.T) {
		req := buildRequest()
		p, meta, err := Build(req)
		require.NoError(t, err)
		assert.Equal(t, 1, p.K)
		assert.Equal(t, []int{2}, p.Box)
		assert.Equal(t, []int{0}, p.C2E)
		assert.Equal(t, []int{5}, p.R)
		assert.Equal(t, []int{60}, p.A)
		assert.Equal(t, 100, p.WCert) // certificate weight passes through unchanged
		assert.Equal(t, "ord-1", meta.OrderIDs[0])
		assert.Equal(t, 1, meta.OrderIndexByID["ord-1"])
		assert.Equal(t, "cour-1", meta.CourierIDs[0])
	})

	t.Run("should default skip weight to the certificate weight when absent", func(t *testing.T) {
		req := buildRequest()
		p, _, err := Build(req)
		require.NoError(t, err)
		assert.Equal(t, p.WCert, p.WSkip)
	})

	t.Run("should honor an explicit skip weight", func(t *testing.T) {
		req := buildRequest()
		skip := 42.0
		req.Weights.SkipOrderPenaltyWeight = &skip
		p, _, err := Build(req)
		require.NoError(t, err)
		assert.Equal(t, 42, p.WSkip)
	})

	t.Run("should reject a mis-sized travel time matrix", func(t *testing.T) {
		req := buildRequest()
		req.TravelTimeMatrix = [][]int{{0, 10, 5}, {10, 0, 5}}
		_, _, err := Build(req)
		assert.Error(t, err)
	})

	t.Run("should reject a non-zero diagonal", func(t *testing.T) {
		req := buildRequest()
		req.TravelTimeMatrix = [][]int{{1, 10}, {10, 0}}
		_, _, err := Build(req)
		assert.Error(t, err)
	})

	t.Run("should reject a negative travel time", func(t *testing.T) {
		req := buildRequest()
		req.TravelTimeMatrix = [][]int{{0, -1}, {10, 0}}
		_, _, err := Build(req)
		assert.Error(t, err)
	})

	t.Run("should reject zero couriers", func(t *testing.T) {
		req := buildRequest()
		req.Couriers = nil
		_, _, err := Build(req)
		assert.Error(t, err)
	})

	t.Run("should reject a box count below one", func(t *testing.T) {
		req := buildRequest()
		req.Orders[0].BoxesCount = 0
		_, _, err := Build(req)
		assert.Error(t, err)
	})

	t.Run("should reject duplicate order ids", func(t *testing.T) {
		req := buildRequest()
		req.Orders = append(req.Orders, req.Orders[0])
		req.TravelTimeMatrix = [][]int{{0, 10, 10}, {10, 0, 10}, {10, 10, 0}}
		_, _, err := Build(req)
		assert.Error(t, err)
	})

	t.Run("should preserve negative minute offsets", func(t *testing.T) {
		req := buildRequest()
		req.Orders[0].CreatedAtUTC = mustRawTimeNoT("2023-12-31T23:50:00Z")
		p, _, err := Build(req)
		require.NoError(t, err)
		assert.Equal(t, -10, p.C2E[0])
	})

	t.Run("should reject zero orders", func(t *testing.T) {
		req := buildRequest()
		req.Orders = nil
		req.TravelTimeMatrix = [][]int{{0}}
		p, meta, err := Build(req)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
		assert.Nil(t, p)
		assert.Nil(t, meta)
	})
}
