// Package mapper implements the Domain Mapper of spec.md 4.1: validating
// and translating an external Request into the internal, index-based
// Problem the Planner solves, plus the id<->index Metadata needed to
// translate the result back. All validation errors are fatal; no partial
// Problem is ever returned (mirrors the validate-then-build idiom of
// internal/orders/service.go's Submit).
package mapper

import (
	"fmt"

	"github.com/terminal-bench/pizzaplanner/internal/planning"
	pweight "github.com/terminal-bench/pizzaplanner/pkg/decimal"
)

// ValidationError is a fatal, non-retryable input-shape or parse error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Build validates req and translates it into an internal Problem plus the
// id<->index Metadata the Formatter needs to translate the result back.
func Build(req *Request) (*planning.Problem, *Metadata, error) {
	if err := validateShape(req); err != nil {
		return nil, nil, err
	}

	n := len(req.Orders)
	k := len(req.Couriers)
	ref := req.ReferenceTimestampUTC.Time

	meta := &Metadata{
		OrderIndexByID: make(map[string]int, n),
		OrderIDs:       make([]string, n),
		CourierIDs:     make([]string, k),
	}

	box := make([]int, n)
	c2e := make([]int, n)
	r := make([]int, n)
	for i, o := range req.Orders {
		idx := i + 1
		meta.OrderIndexByID[o.OrderID] = idx
		meta.OrderIDs[i] = o.OrderID
		box[i] = o.BoxesCount
		c2e[i] = minutesBetween(ref, o.CreatedAtUTC.Time)
		r[i] = minutesBetween(ref, o.ExpectedReadyAtUTC.Time)
	}

	capacities := make([]int, k)
	a := make([]int, k)
	for j, c := range req.Couriers {
		meta.CourierIDs[j] = c.CourierID
		capacities[j] = c.BoxCapacity
		a[j] = minutesBetween(ref, c.ExpectedCourierReturnAtUTC.Time)
	}

	wSkip := req.Weights.CertificatePenaltyWeight
	if req.Weights.SkipOrderPenaltyWeight != nil {
		wSkip = *req.Weights.SkipOrderPenaltyWeight
	}

	p := &planning.Problem{
		Tau:   req.TravelTimeMatrix,
		K:     k,
		C:     capacities,
		Box:   box,
		C2E:   c2e,
		R:     r,
		A:     a,
		// Route fractional weights through decimal.Weight rather than a bare
		// int() truncation: int(1.5) silently collapses to 1, which would
		// flatten a deliberate certificate/click-to-eat tradeoff a caller
		// chose specifically because it falls between two integers.
		WCert: pweight.NewWeightFromFloat(req.Weights.CertificatePenaltyWeight).IntPart(),
		WC2E:  pweight.NewWeightFromFloat(req.Weights.ClickToEatPenaltyWeight).IntPart(),
		WSkip: pweight.NewWeightFromFloat(wSkip).IntPart(),
	}

	if req.SolverSettings != nil {
		if req.SolverSettings.TimeLimitSeconds != nil {
			p.TimeLimitSeconds = *req.SolverSettings.TimeLimitSeconds
		}
		if req.SolverSettings.MaxParallelWorkers != nil {
			p.Workers = *req.SolverSettings.MaxParallelWorkers
		}
	}

	return p, meta, nil
}

func validateShape(req *Request) error {
	n := len(req.Orders)
	k := len(req.Couriers)

	if k == 0 {
		return invalid("couriers", "at least one courier is required")
	}
	if n == 0 {
		return invalid("orders", "at least one order is required")
	}
	if len(req.TravelTimeMatrix) != n+1 {
		return invalid("travel_time_matrix", "must have %d rows for %d orders, got %d", n+1, n, len(req.TravelTimeMatrix))
	}
	for i, row := range req.TravelTimeMatrix {
		if len(row) != n+1 {
			return invalid("travel_time_matrix", "row %d must have %d columns, got %d", i, n+1, len(row))
		}
		if row[i] != 0 {
			return invalid("travel_time_matrix", "diagonal entry [%d][%d] must be zero, got %d", i, i, row[i])
		}
		for j, v := range row {
			if v < 0 {
				return invalid("travel_time_matrix", "entry [%d][%d] must be non-negative, got %d", i, j, v)
			}
		}
	}

	for i, o := range req.Orders {
		if o.OrderID == "" {
			return invalid("orders", "order %d is missing order_id", i)
		}
		if o.BoxesCount < 1 {
			return invalid("orders", "order %s boxes_count must be >= 1, got %d", o.OrderID, o.BoxesCount)
		}
	}

	seenOrderIDs := make(map[string]bool, n)
	for _, o := range req.Orders {
		if seenOrderIDs[o.OrderID] {
			return invalid("orders", "duplicate order_id %q", o.OrderID)
		}
		seenOrderIDs[o.OrderID] = true
	}

	for i, c := range req.Couriers {
		if c.CourierID == "" {
			return invalid("couriers", "courier %d is missing courier_id", i)
		}
		if c.BoxCapacity < 1 {
			return invalid("couriers", "courier %s box_capacity must be >= 1, got %d", c.CourierID, c.BoxCapacity)
		}
	}

	seenCourierIDs := make(map[string]bool, k)
	for _, c := range req.Couriers {
		if seenCourierIDs[c.CourierID] {
			return invalid("couriers", "duplicate courier_id %q", c.CourierID)
		}
		seenCourierIDs[c.CourierID] = true
	}

	if req.Weights.CertificatePenaltyWeight < 0 {
		return invalid("weights.certificate_penalty_weight", "must be >= 0")
	}
	if req.Weights.ClickToEatPenaltyWeight < 0 {
		return invalid("weights.click_to_eat_penalty_weight", "must be >= 0")
	}
	if req.Weights.SkipOrderPenaltyWeight != nil && *req.Weights.SkipOrderPenaltyWeight < 0 {
		return invalid("weights.skip_order_penalty_weight", "must be >= 0")
	}

	if req.SolverSettings != nil {
		if req.SolverSettings.TimeLimitSeconds != nil && *req.SolverSettings.TimeLimitSeconds <= 0 {
			return invalid("solver_settings.time_limit_seconds", "must be > 0")
		}
		if req.SolverSettings.MaxParallelWorkers != nil && *req.SolverSettings.MaxParallelWorkers < 1 {
			return invalid("solver_settings.max_parallel_workers", "must be >= 1")
		}
		if req.SolverSettings.MaxRouteArcsPerCourier != nil && *req.SolverSettings.MaxRouteArcsPerCourier < 1 {
			return invalid("solver_settings.max_route_arcs_per_courier", "must be >= 1")
		}
	}

	return nil
}
