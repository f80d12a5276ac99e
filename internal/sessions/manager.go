// Package sessions tracks planning sessions — one per fleet per planning
// day — caching the latest solve outcome in Redis/memory and keeping a
// snapshot history for trend reporting. Adapted from
// internal/portfolio/manager.go: a user's portfolio stands in for a
// fleet's planning session, position market value stands in for route
// load, and portfolio performance/allocation stand in for objective trend
// and courier assignment breakdown.
package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/terminal-bench/pizzaplanner/pkg/messaging"
)

type Manager struct {
	db      *sql.DB
	nats    *messaging.Client
	redis   *redis.Client
	cache   map[string]*Session
	cacheMu sync.RWMutex
}

// Session is the live state of one fleet's planning session for a day.
type Session struct {
	FleetID       string            `json:"fleet_id"`
	Status        string            `json:"status"` // "open", "solved", "closed"
	ObjectiveValue int              `json:"objective_value"`
	OrderCount    int               `json:"order_count"`
	SkippedCount  int               `json:"skipped_count"`
	Couriers      []CourierSummary  `json:"couriers"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// CourierSummary is one courier's assignment load within a session.
type CourierSummary struct {
	CourierID    string  `json:"courier_id"`
	OrdersLoaded int     `json:"orders_loaded"`
	BoxesLoaded  float64 `json:"boxes_loaded"`
	LoadFactor   float64 `json:"load_factor"`
}

// Trend is an objective-value trend over a lookback period.
type Trend struct {
	FleetID           string  `json:"fleet_id"`
	Period            string  `json:"period"`
	StartObjective    int     `json:"start_objective"`
	EndObjective      int     `json:"end_objective"`
	AbsoluteImprovement int   `json:"absolute_improvement"`
	PercentImprovement  float64 `json:"percent_improvement"`
	WorstRegression     int   `json:"worst_regression"`
}

// Breakdown is the distribution of assigned orders across couriers and
// regions within a session.
type Breakdown struct {
	FleetID   string             `json:"fleet_id"`
	ByCourier map[string]float64 `json:"by_courier"`
	ByRegion  map[string]float64 `json:"by_region"`
}

func NewManager(db *sql.DB, nats *messaging.Client, redisURL string) *Manager {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})

	return &Manager{
		db:    db,
		nats:  nats,
		redis: rdb,
		cache: make(map[string]*Session),
	}
}

// GetSession returns the current session state for a fleet, checking the
// in-memory cache, then Redis, then falling back to the database.
func (m *Manager) GetSession(ctx context.Context, fleetID string) (*Session, error) {
	m.cacheMu.RLock()
	if cached, ok := m.cache[fleetID]; ok {
		m.cacheMu.RUnlock()
		return cached, nil
	}
	m.cacheMu.RUnlock()

	cacheKey := "session:" + fleetID
	cached, err := m.redis.Get(ctx, cacheKey).Result()
	if err == nil {
		var session Session
		if json.Unmarshal([]byte(cached), &session) == nil {
			return &session, nil
		}
	}

	session, err := m.loadSessionFromDB(ctx, fleetID)
	if err != nil {
		return nil, err
	}

	m.cacheMu.Lock()
	m.cache[fleetID] = session
	m.cacheMu.Unlock()

	sessionJSON, _ := json.Marshal(session)
	m.redis.Set(ctx, cacheKey, sessionJSON, 0)

	return session, nil
}

func (m *Manager) loadSessionFromDB(ctx context.Context, fleetID string) (*Session, error) {
	var status string
	var objective, orderCount, skippedCount int
	err := m.db.QueryRowContext(ctx,
		"SELECT status, objective_value, order_count, skipped_count FROM planning_sessions WHERE fleet_id = $1 ORDER BY created_at DESC LIMIT 1",
		fleetID,
	).Scan(&status, &objective, &orderCount, &skippedCount)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx,
		"SELECT courier_id, orders_loaded, boxes_loaded, box_capacity FROM courier_routes WHERE fleet_id = $1",
		fleetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var couriers []CourierSummary
	for rows.Next() {
		var c CourierSummary
		var capacity float64
		if err := rows.Scan(&c.CourierID, &c.OrdersLoaded, &c.BoxesLoaded, &capacity); err != nil {
			return nil, err
		}
		if capacity > 0 {
			c.LoadFactor = c.BoxesLoaded / capacity
		}
		couriers = append(couriers, c)
	}

	return &Session{
		FleetID:        fleetID,
		Status:         status,
		ObjectiveValue: objective,
		OrderCount:     orderCount,
		SkippedCount:   skippedCount,
		Couriers:       couriers,
		UpdatedAt:      time.Now(),
	}, nil
}

// GetTrend reports objective-value movement over a lookback period,
// e.g. "1d" or "1w" of planning-session snapshots.
func (m *Manager) GetTrend(ctx context.Context, fleetID, period string) (*Trend, error) {
	var startObjective int

	switch period {
	case "1d":
		err := m.db.QueryRowContext(ctx,
			"SELECT objective_value FROM session_snapshots WHERE fleet_id = $1 AND snapshot_date = CURRENT_DATE - 1",
			fleetID,
		).Scan(&startObjective)
		if err != nil {
			startObjective = 0
		}
	case "1w":
		err := m.db.QueryRowContext(ctx,
			"SELECT objective_value FROM session_snapshots WHERE fleet_id = $1 AND snapshot_date = CURRENT_DATE - 7",
			fleetID,
		).Scan(&startObjective)
		if err != nil {
			startObjective = 0
		}
	}

	session, err := m.GetSession(ctx, fleetID)
	if err != nil {
		return nil, err
	}
	endObjective := session.ObjectiveValue

	absoluteImprovement := startObjective - endObjective // lower objective is better
	var percentImprovement float64
	if startObjective != 0 {
		percentImprovement = float64(absoluteImprovement) / float64(startObjective) * 100
	}

	worstRegression := m.calculateWorstRegression(ctx, fleetID)

	return &Trend{
		FleetID:             fleetID,
		Period:              period,
		StartObjective:      startObjective,
		EndObjective:        endObjective,
		AbsoluteImprovement: absoluteImprovement,
		PercentImprovement:  percentImprovement,
		WorstRegression:     worstRegression,
	}, nil
}

func (m *Manager) calculateWorstRegression(ctx context.Context, fleetID string) int {
	rows, _ := m.db.QueryContext(ctx,
		"SELECT objective_value FROM session_snapshots WHERE fleet_id = $1 ORDER BY snapshot_date",
		fleetID,
	)
	defer rows.Close()

	var worst, best int
	first := true
	for rows.Next() {
		var value int
		rows.Scan(&value)

		if first || value < best {
			best = value
			first = false
		}

		regression := value - best
		if regression > worst {
			worst = regression
		}
	}

	return worst
}

// GetBreakdown reports the order distribution by courier and region for
// a session's current plan.
func (m *Manager) GetBreakdown(ctx context.Context, fleetID string) (*Breakdown, error) {
	session, err := m.GetSession(ctx, fleetID)
	if err != nil {
		return nil, err
	}

	byCourier := make(map[string]float64)
	byRegion := make(map[string]float64)

	total := 0
	for _, c := range session.Couriers {
		total += c.OrdersLoaded
	}

	for _, c := range session.Couriers {
		var share float64
		if total > 0 {
			share = float64(c.OrdersLoaded) / float64(total) * 100
		}
		byCourier[c.CourierID] = share

		region := m.getRegion(c.CourierID)
		byRegion[region] += share
	}

	return &Breakdown{
		FleetID:   fleetID,
		ByCourier: byCourier,
		ByRegion:  byRegion,
	}, nil
}

// GetHistory returns raw session snapshot history for a fleet.
func (m *Manager) GetHistory(ctx context.Context, fleetID string, limit int) ([]map[string]interface{}, error) {
	rows, err := m.db.QueryContext(ctx,
		"SELECT snapshot_date, objective_value FROM session_snapshots WHERE fleet_id = $1 ORDER BY snapshot_date DESC LIMIT $2",
		fleetID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []map[string]interface{}
	for rows.Next() {
		var date time.Time
		var value int
		rows.Scan(&date, &value)
		history = append(history, map[string]interface{}{
			"date":      date,
			"objective": value,
		})
	}

	return history, nil
}

// InvalidateCache drops a fleet's cached session, forcing the next
// GetSession to reload from the database.
func (m *Manager) InvalidateCache(fleetID string) {
	m.cacheMu.Lock()
	delete(m.cache, fleetID)
	m.cacheMu.Unlock()

	ctx := context.Background()
	m.redis.Del(ctx, "session:"+fleetID)
}

func (m *Manager) getRegion(courierID string) string {
	// Placeholder lookup until courier->region assignment is fed in from
	// the fleet roster service.
	return "unassigned"
}
