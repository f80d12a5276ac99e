package mapper

// Request is the external domain request: spec.md section 3, "Request".
type Request struct {
	ReferenceTimestampUTC rawTime          `json:"reference_timestamp_utc" binding:"required"`
	TravelTimeMatrix      [][]int          `json:"travel_time_matrix" binding:"required"`
	Orders                []Order          `json:"orders" binding:"required"`
	Couriers               []Courier       `json:"couriers" binding:"required"`
	Weights               Weights         `json:"weights" binding:"required"`
	SolverSettings         *SolverSettings `json:"solver_settings,omitempty"`
}

// Order is one delivery order awaiting pickup.
type Order struct {
	OrderID              string    `json:"order_id" binding:"required"`
	BoxesCount           int       `json:"boxes_count" binding:"required"`
	CreatedAtUTC         rawTime   `json:"created_at_utc" binding:"required"`
	ExpectedReadyAtUTC   rawTime   `json:"expected_ready_at_utc" binding:"required"`
}

// Courier is one vehicle available to run deliveries.
type Courier struct {
	CourierID                   string  `json:"courier_id" binding:"required"`
	BoxCapacity                 int     `json:"box_capacity" binding:"required"`
	ExpectedCourierReturnAtUTC  rawTime `json:"expected_courier_return_at_utc" binding:"required"`
}

// Weights are the three objective term coefficients of spec.md 4.2.4.
type Weights struct {
	CertificatePenaltyWeight  float64  `json:"certificate_penalty_weight" binding:"required"`
	ClickToEatPenaltyWeight   float64  `json:"click_to_eat_penalty_weight" binding:"required"`
	SkipOrderPenaltyWeight    *float64 `json:"skip_order_penalty_weight,omitempty"`
}

// SolverSettings are optional tuning hints (spec.md 4.2.5).
// MaxRouteArcsPerCourier is a supplemented field carried over from the
// original Python implementation's SolverSettings (see original_source/
// order_grouping/domain_mapping.py) that spec.md's distillation dropped;
// this implementation accepts it and validates it as >= 1, but does not
// pass it on to the planning.Problem, so it does not constrain the search.
type SolverSettings struct {
	TimeLimitSeconds       *float64 `json:"time_limit_seconds,omitempty"`
	MaxParallelWorkers     *int     `json:"max_parallel_workers,omitempty"`
	MaxRouteArcsPerCourier *int     `json:"max_route_arcs_per_courier,omitempty"`
}

// Metadata records the id<->index mapping built during translation. It
// never reaches the solver; only the Formatter and the caller see it.
type Metadata struct {
	OrderIndexByID map[string]int
	OrderIDs       []string // OrderIDs[i-1] is the external id of order index i
	CourierIDs     []string // CourierIDs[k] is the external id of courier index k
}
