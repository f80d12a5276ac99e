// Package formatter implements the Response Formatter of spec.md 4.3:
// translating a Solution, in internal index space, back into the external
// id space and ISO-8601 timestamps the caller understands. Grounded on the
// route-walking/cumulative-ETA logic of original_source's solver_result.py,
// adapted from that module's UI-state mutation into a pure function.
package formatter

import (
	"time"

	"github.com/terminal-bench/pizzaplanner/internal/mapper"
	"github.com/terminal-bench/pizzaplanner/internal/planning"
)

// DeliveryStop is one stop in a courier's delivery sequence.
type DeliveryStop struct {
	Position int    `json:"position"`
	OrderID  string `json:"order_id"`
}

// CourierPlan is the per-courier section of the domain response.
type CourierPlan struct {
	CourierID            string         `json:"courier_id"`
	PlannedDepartureUTC  *string        `json:"planned_departure_utc"`
	PlannedReturnUTC     *string        `json:"planned_return_utc"`
	DeliverySequence     []DeliveryStop `json:"delivery_sequence"`
}

// OrderPlan is the per-order section of the domain response.
type OrderPlan struct {
	OrderID            string  `json:"order_id"`
	AssignedCourierID  *string `json:"assigned_courier_id"`
	PlannedDeliveryUTC *string `json:"planned_delivery_utc"`
	IsCertificate      bool    `json:"is_certificate"`
	IsSkipped          bool    `json:"is_skipped"`
}

// Metrics is the summary block of the domain response.
type Metrics struct {
	TotalOrders      int  `json:"total_orders"`
	TotalCouriers    int  `json:"total_couriers"`
	AssignedOrders   int  `json:"assigned_orders"`
	AssignedCouriers int  `json:"assigned_couriers"`
	ObjectiveValue   *int `json:"objective_value"`
}

// Response is the body of Endpoint A (spec.md 6).
type Response struct {
	Status                string        `json:"status"`
	ReferenceTimestampUTC string        `json:"reference_timestamp_utc"`
	CourierPlans          []CourierPlan `json:"courier_plans"`
	OrderPlans            []OrderPlan   `json:"order_plans"`
	Metrics               Metrics       `json:"metrics"`
}

// Build formats sol for req/meta/p, whose orders/couriers order drives the
// output order of both plan arrays (spec.md 8's permutation property). p's
// travel-time matrix is needed to walk the final return-to-depot leg, which
// the Solution's route records but does not pre-compute a duration for.
func Build(req *mapper.Request, meta *mapper.Metadata, p *planning.Problem, sol *planning.Solution) *Response {
	ref := req.ReferenceTimestampUTC.Time

	courierPlans := make([]CourierPlan, len(meta.CourierIDs))
	for k, courierID := range meta.CourierIDs {
		courierPlans[k] = buildCourierPlan(ref, meta, p, courierID, sol, k)
	}

	orderPlans := make([]OrderPlan, len(meta.OrderIDs))
	assignedOrders := 0
	for i, orderID := range meta.OrderIDs {
		idx := i + 1
		plan := buildOrderPlan(ref, meta, orderID, sol, idx)
		orderPlans[i] = plan
		if !plan.IsSkipped {
			assignedOrders++
		}
	}

	assignedCouriers := 0
	for _, cp := range courierPlans {
		if len(cp.DeliverySequence) > 0 {
			assignedCouriers++
		}
	}

	return &Response{
		Status:                string(sol.Status),
		ReferenceTimestampUTC: ref.UTC().Format(time.RFC3339),
		CourierPlans:          courierPlans,
		OrderPlans:            orderPlans,
		Metrics: Metrics{
			TotalOrders:      len(meta.OrderIDs),
			TotalCouriers:    len(meta.CourierIDs),
			AssignedOrders:   assignedOrders,
			AssignedCouriers: assignedCouriers,
			ObjectiveValue:   sol.Objective,
		},
	}
}

// emptyCourierPlan is the shape spec.md 4.3 mandates for an unused courier:
// null departure/return, empty delivery sequence.
func emptyCourierPlan(courierID string) CourierPlan {
	return CourierPlan{CourierID: courierID, DeliverySequence: []DeliveryStop{}}
}

func buildCourierPlan(ref time.Time, meta *mapper.Metadata, p *planning.Problem, courierID string, sol *planning.Solution, k int) CourierPlan {
	route := sol.Routes[k]
	if len(route) <= 2 {
		return emptyCourierPlan(courierID)
	}

	departureOffset := sol.TDeparture[k]
	if departureOffset == nil {
		return emptyCourierPlan(courierID)
	}

	stops := route[1 : len(route)-1]
	sequence := make([]DeliveryStop, len(stops))
	t := *departureOffset
	prev := 0
	for i, orderIdx := range stops {
		t += p.Tau[prev][orderIdx]
		sequence[i] = DeliveryStop{Position: i + 1, OrderID: meta.OrderIDs[orderIdx-1]}
		prev = orderIdx
	}
	t += p.Tau[prev][0] // final leg back to the depot

	departureStr := ref.Add(time.Duration(*departureOffset) * time.Minute).UTC().Format(time.RFC3339)
	returnStr := ref.Add(time.Duration(t) * time.Minute).UTC().Format(time.RFC3339)

	return CourierPlan{
		CourierID:           courierID,
		PlannedDepartureUTC: &departureStr,
		PlannedReturnUTC:    &returnStr,
		DeliverySequence:    sequence,
	}
}

func buildOrderPlan(ref time.Time, meta *mapper.Metadata, orderID string, sol *planning.Solution, idx int) OrderPlan {
	plan := OrderPlan{
		OrderID:       orderID,
		IsSkipped:     sol.Skip[idx] == 1,
		IsCertificate: sol.Cert[idx] == 1,
	}

	if plan.IsSkipped {
		return plan
	}

	courierIdx, ok := sol.Assigned[idx]
	if !ok {
		return plan
	}

	courierID := meta.CourierIDs[courierIdx]
	plan.AssignedCourierID = &courierID

	if deliveryOffset, ok := sol.TDelivery[idx]; ok {
		s := ref.Add(time.Duration(deliveryOffset) * time.Minute).UTC().Format(time.RFC3339)
		plan.PlannedDeliveryUTC = &s
	}

	return plan
}
