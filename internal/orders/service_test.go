package orders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/terminal-bench/pizzaplanner/pkg/messaging"
)

func newTestService() *Service {
	return NewService(nil, &messaging.Client{})
}

func TestSubmitRejectsMissingRegion(t *testing.T) {
	svc := newTestService()
	_, err := svc.Submit(context.Background(), &SubmitRequest{BoxCount: 2})
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestSubmitRejectsZeroBoxCount(t *testing.T) {
	svc := newTestService()
	_, err := svc.Submit(context.Background(), &SubmitRequest{RegionID: "north", BoxCount: 0})
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestSubmitRejectsDeadlineAtOrBeforeReady(t *testing.T) {
	svc := newTestService()
	_, err := svc.Submit(context.Background(), &SubmitRequest{
		RegionID: "north", BoxCount: 1, ReadyMin: 30, DeadlineMin: 30,
	})
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestGetReturnsCachedOrderWithoutTouchingDB(t *testing.T) {
	svc := newTestService()
	order := &Order{ID: "ord-1", FleetID: "fleet-1", RegionID: "north", Status: "pending", CreatedAt: time.Now(), UpdatedAt: time.Now()}

	svc.ordersMu.Lock()
	svc.orders[order.ID] = order
	svc.ordersMu.Unlock()

	got, err := svc.Get(context.Background(), "ord-1")
	assert.NoError(t, err)
	assert.Equal(t, order, got)
}
