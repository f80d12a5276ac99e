// Package alerts watches streamed delivery-delay updates against
// per-order certificate thresholds and fires a notification the moment an
// order crosses into certificate territory (spec.md's cert[i]=1 condition,
// t_delivery[i]-c[i-1] > 60). Adapted from internal/alerts/engine.go's
// price-alert engine: Symbol -> OrderID, Price -> delay minutes.
package alerts

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terminal-bench/pizzaplanner/pkg/messaging"
)

type Engine struct {
	db           *sql.DB
	nats         *messaging.Client
	watches      map[string][]*Watch // order id -> watches
	watchesMu    sync.RWMutex
	delayChannel chan DelayUpdate
	stopCh       chan struct{}
}

// Watch is a standing certificate-risk threshold on one order.
type Watch struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	Condition string    `json:"condition"` // "above", "below", "crosses"
	DelayMin  float64   `json:"delay_min"`
	Triggered bool      `json:"triggered"`
	CreatedAt time.Time `json:"created_at"`
}

// DelayUpdate is a fresh delay-minutes reading for one order.
type DelayUpdate struct {
	OrderID  string
	DelayMin float64
}

func NewEngine(db *sql.DB, nats *messaging.Client) *Engine {
	return &Engine{
		db:           db,
		nats:         nats,
		watches:      make(map[string][]*Watch),
		delayChannel: make(chan DelayUpdate, 10),
		stopCh:       make(chan struct{}),
	}
}

func (e *Engine) Start(ctx context.Context) {
	e.loadWatches(ctx)
	go e.processDelays(ctx)
}

func (e *Engine) loadWatches(ctx context.Context) {
	rows, err := e.db.QueryContext(ctx,
		"SELECT id, order_id, condition, delay_min, triggered, created_at FROM certificate_watches WHERE triggered = false",
	)
	if err != nil {
		return
	}
	defer rows.Close()

	e.watchesMu.Lock()
	defer e.watchesMu.Unlock()

	for rows.Next() {
		var w Watch
		if err := rows.Scan(&w.ID, &w.OrderID, &w.Condition, &w.DelayMin, &w.Triggered, &w.CreatedAt); err != nil {
			continue
		}
		e.watches[w.OrderID] = append(e.watches[w.OrderID], &w)
	}
}

func (e *Engine) processDelays(ctx context.Context) {
	lastDelay := make(map[string]float64)
	var lastDelayMu sync.RWMutex

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case update := <-e.delayChannel:
			e.watchesMu.RLock()
			watches := e.watches[update.OrderID]
			e.watchesMu.RUnlock()

			lastDelayMu.RLock()
			last := lastDelay[update.OrderID]
			lastDelayMu.RUnlock()

			for _, w := range watches {
				if w.Triggered {
					continue
				}

				triggered := false
				switch w.Condition {
				case "above":
					triggered = update.DelayMin > w.DelayMin
				case "below":
					triggered = update.DelayMin < w.DelayMin
				case "crosses":
					if last != 0 {
						triggered = (last < w.DelayMin && update.DelayMin >= w.DelayMin) ||
							(last > w.DelayMin && update.DelayMin <= w.DelayMin)
					}
				}

				if triggered {
					e.triggerWatch(w, update.DelayMin)
				}
			}

			lastDelayMu.Lock()
			lastDelay[update.OrderID] = update.DelayMin
			lastDelayMu.Unlock()
		}
	}
}

func (e *Engine) triggerWatch(w *Watch, currentDelay float64) {
	w.Triggered = true

	ctx := context.Background()
	if e.db != nil {
		e.db.ExecContext(ctx,
			"UPDATE certificate_watches SET triggered = true, triggered_at = $1, triggered_delay = $2 WHERE id = $3",
			time.Now(), currentDelay, w.ID,
		)
	}

	notification := map[string]interface{}{
		"watch_id":      w.ID,
		"order_id":      w.OrderID,
		"condition":     w.Condition,
		"threshold_min": w.DelayMin,
		"current_min":   currentDelay,
		"triggered_at":  time.Now(),
	}

	if err := e.nats.Publish(ctx, "alerts.certificate_risk", notification); err != nil {
		_ = err
	}
}

// OnDelayReading feeds a delay-minutes reading (typically relayed from the
// planner's cert[i] computation) into the watch engine.
func (e *Engine) OnDelayReading(subject string, data []byte) {
	var reading struct {
		OrderID  string  `json:"order_id"`
		DelayMin float64 `json:"delay_min"`
	}
	if err := json.Unmarshal(data, &reading); err != nil {
		return
	}
	e.delayChannel <- DelayUpdate{OrderID: reading.OrderID, DelayMin: reading.DelayMin}
}

func (e *Engine) CreateWatch(ctx context.Context, orderID, condition string, delayMin float64) (*Watch, error) {
	watchID := uuid.New().String()
	now := time.Now()

	w := &Watch{
		ID:        watchID,
		OrderID:   orderID,
		Condition: condition,
		DelayMin:  delayMin,
		Triggered: false,
		CreatedAt: now,
	}

	_, err := e.db.ExecContext(ctx,
		"INSERT INTO certificate_watches (id, order_id, condition, delay_min, triggered, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		w.ID, w.OrderID, w.Condition, w.DelayMin, w.Triggered, w.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.watchesMu.Lock()
	e.watches[orderID] = append(e.watches[orderID], w)
	e.watchesMu.Unlock()

	return w, nil
}

func (e *Engine) GetWatches(ctx context.Context, orderID string) ([]*Watch, error) {
	rows, err := e.db.QueryContext(ctx,
		"SELECT id, order_id, condition, delay_min, triggered, created_at FROM certificate_watches WHERE order_id = $1",
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var watches []*Watch
	for rows.Next() {
		var w Watch
		if err := rows.Scan(&w.ID, &w.OrderID, &w.Condition, &w.DelayMin, &w.Triggered, &w.CreatedAt); err != nil {
			continue
		}
		watches = append(watches, &w)
	}

	return watches, nil
}

func (e *Engine) DeleteWatch(ctx context.Context, watchID, orderID string) error {
	var ownerOrderID string
	err := e.db.QueryRowContext(ctx, "SELECT order_id FROM certificate_watches WHERE id = $1", watchID).Scan(&ownerOrderID)
	if err != nil {
		return err
	}
	if ownerOrderID != orderID {
		return sql.ErrNoRows
	}

	if _, err := e.db.ExecContext(ctx, "DELETE FROM certificate_watches WHERE id = $1", watchID); err != nil {
		return err
	}

	e.watchesMu.Lock()
	watches := e.watches[orderID]
	for i, w := range watches {
		if w.ID == watchID {
			e.watches[orderID] = append(watches[:i], watches[i+1:]...)
			break
		}
	}
	e.watchesMu.Unlock()

	return nil
}

func (e *Engine) Stop() {
	close(e.stopCh)
}
