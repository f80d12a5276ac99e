// Package orders is the delivery-order intake service: it validates and
// persists orders submitted ahead of a planning run, and tracks their
// lifecycle (pending -> planned -> delivered/cancelled) as the planner
// and drivers report progress. Adapted from the teacher's order-submission
// service: Symbol/Side/Quantity -> RegionID/ReadyMin/BoxCount, order fills
// -> delivery confirmations.
package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terminal-bench/pizzaplanner/pkg/messaging"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidOrder        = errors.New("invalid order")
	ErrOrderNotCancellable = errors.New("order cannot be cancelled")
	ErrUnauthorized        = errors.New("unauthorized")
)

type Service struct {
	db       *sql.DB
	nats     *messaging.Client
	ordersMu sync.RWMutex
	orders   map[string]*Order // in-memory cache
}

// Order is a delivery order awaiting or undergoing planning.
type Order struct {
	ID               string    `json:"id"`
	FleetID          string    `json:"fleet_id"`
	RegionID         string    `json:"region_id"`
	BoxCount         int       `json:"box_count"`
	ReadyMin         int       `json:"ready_min"`
	DeadlineMin      int       `json:"deadline_min"`
	RequiresCertificate bool   `json:"requires_certificate"`
	Status           string    `json:"status"` // "pending", "planned", "delivered", "cancelled", "skipped"
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// SubmitRequest is the input to Submit.
type SubmitRequest struct {
	FleetID             string
	RegionID            string
	BoxCount            int
	ReadyMin            int
	DeadlineMin         int
	RequiresCertificate bool
}

func NewService(db *sql.DB, nats *messaging.Client) *Service {
	return &Service{
		db:     db,
		nats:   nats,
		orders: make(map[string]*Order),
	}
}

// Submit validates and persists a new order ahead of the next planning
// run for its fleet.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*Order, error) {
	if req.RegionID == "" || req.BoxCount <= 0 {
		return nil, ErrInvalidOrder
	}

	if req.DeadlineMin > 0 && req.DeadlineMin <= req.ReadyMin {
		return nil, ErrInvalidOrder
	}

	orderID := uuid.New().String()
	now := time.Now()

	order := &Order{
		ID:                  orderID,
		FleetID:             req.FleetID,
		RegionID:            req.RegionID,
		BoxCount:            req.BoxCount,
		ReadyMin:            req.ReadyMin,
		DeadlineMin:         req.DeadlineMin,
		RequiresCertificate: req.RequiresCertificate,
		Status:              "pending",
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (id, fleet_id, region_id, box_count, ready_min, deadline_min, requires_certificate, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		order.ID, order.FleetID, order.RegionID, order.BoxCount, order.ReadyMin,
		order.DeadlineMin, order.RequiresCertificate, order.Status,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.ordersMu.Lock()
	s.orders[orderID] = order
	s.ordersMu.Unlock()

	s.nats.Publish(ctx, "orders.submitted", order)

	return order, nil
}

// Get returns an order by ID, checking the in-memory cache first.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	s.ordersMu.RLock()
	if order, ok := s.orders[orderID]; ok {
		s.ordersMu.RUnlock()
		return order, nil
	}
	s.ordersMu.RUnlock()

	var order Order
	err := s.db.QueryRowContext(ctx,
		`SELECT id, fleet_id, region_id, box_count, ready_min, deadline_min, requires_certificate, status, created_at, updated_at
		 FROM orders WHERE id = $1`,
		orderID,
	).Scan(&order.ID, &order.FleetID, &order.RegionID, &order.BoxCount, &order.ReadyMin,
		&order.DeadlineMin, &order.RequiresCertificate, &order.Status,
		&order.CreatedAt, &order.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	s.ordersMu.Lock()
	s.orders[orderID] = &order
	s.ordersMu.Unlock()

	return &order, nil
}

// List returns orders for a fleet filtered by status, newest first.
func (s *Service) List(ctx context.Context, fleetID, status string, limit int) ([]*Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fleet_id, region_id, box_count, ready_min, deadline_min, requires_certificate, status, created_at, updated_at
		 FROM orders WHERE fleet_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT $3`,
		fleetID, status, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		var order Order
		err := rows.Scan(&order.ID, &order.FleetID, &order.RegionID, &order.BoxCount, &order.ReadyMin,
			&order.DeadlineMin, &order.RequiresCertificate, &order.Status,
			&order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return nil, err
		}
		orders = append(orders, &order)
	}

	return orders, nil
}

// Cancel withdraws a pending or planned order before it is delivered.
func (s *Service) Cancel(ctx context.Context, orderID, fleetID string) error {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return err
	}

	if order.FleetID != fleetID {
		return ErrUnauthorized
	}

	if order.Status != "pending" && order.Status != "planned" {
		return ErrOrderNotCancellable
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE orders SET status = 'cancelled', updated_at = $1 WHERE id = $2",
		time.Now(), orderID,
	)
	if err != nil {
		return err
	}

	s.ordersMu.Lock()
	if cachedOrder, ok := s.orders[orderID]; ok {
		cachedOrder.Status = "cancelled"
		cachedOrder.UpdatedAt = time.Now()
	}
	s.ordersMu.Unlock()

	s.nats.Publish(ctx, "orders.cancelled", map[string]string{
		"order_id": orderID,
		"fleet_id": fleetID,
	})

	return nil
}

// MarkPlanned records that a solve assigned this order to a courier.
func (s *Service) MarkPlanned(ctx context.Context, orderID string) error {
	return s.updateStatus(ctx, orderID, "planned")
}

// MarkDelivered records a driver's delivery confirmation.
func (s *Service) MarkDelivered(ctx context.Context, orderID string) error {
	return s.updateStatus(ctx, orderID, "delivered")
}

// MarkSkipped records that the planner chose to skip this order.
func (s *Service) MarkSkipped(ctx context.Context, orderID string) error {
	return s.updateStatus(ctx, orderID, "skipped")
}

func (s *Service) updateStatus(ctx context.Context, orderID, status string) error {
	s.ordersMu.Lock()
	defer s.ordersMu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}

	order.Status = status
	order.UpdatedAt = time.Now()

	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3",
		status, order.UpdatedAt, orderID,
	)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	return nil
}
