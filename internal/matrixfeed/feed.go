// Package matrixfeed distributes fresh travel-time matrices to the
// gateway and any connected dashboards, and guards the upstream
// duration-service call behind a circuit breaker. Adapted from
// internal/market/feed.go: Symbol -> RegionID, Quote -> MatrixSnapshot,
// trade events -> matrix.fetched events. The OHLCV candlestick Aggregator
// had no logistics analog and was dropped (DESIGN.md).
package matrixfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"

	"github.com/terminal-bench/pizzaplanner/pkg/circuit"
	"github.com/terminal-bench/pizzaplanner/pkg/messaging"
)

// Feed distributes fresh travel-time matrices to subscribers.
type Feed struct {
	subscribers map[string]map[uuid.UUID]*Subscriber // regionID -> subID -> subscriber
	matrices    map[string]*MatrixSnapshot

	updates  chan SnapshotUpdate
	mu       sync.RWMutex
	msgClient *messaging.Client
	breaker  *circuit.Breaker
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// Subscriber receives matrix updates for a set of regions.
type Subscriber struct {
	ID      uuid.UUID
	Regions []string
	Conn    *websocket.Conn
	Updates chan SnapshotUpdate
	Done    chan struct{}
}

// MatrixSnapshot is a travel-time matrix as of a fetch time.
type MatrixSnapshot struct {
	RegionID  string
	Tau       [][]int
	Size      int
	FetchedAt time.Time
}

// SnapshotUpdate is a single change pushed to subscribers.
type SnapshotUpdate struct {
	Type      string // "fetched", "stale"
	RegionID  string
	Data      interface{}
	Timestamp time.Time
}

// FetchFunc retrieves a fresh travel-time matrix for a region from the
// upstream duration service.
type FetchFunc func(ctx context.Context, regionID string) ([][]int, error)

// NewFeed creates a new matrix feed guarded by a circuit breaker against
// the upstream duration service.
func NewFeed(msgClient *messaging.Client) *Feed {
	return &Feed{
		subscribers: make(map[string]map[uuid.UUID]*Subscriber),
		matrices:    make(map[string]*MatrixSnapshot),
		updates:     make(chan SnapshotUpdate),
		msgClient:   msgClient,
		breaker: circuit.NewBreaker(circuit.Config{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			HalfOpenMax: 3,
		}),
		shutdown: make(chan struct{}),
	}
}

// Start subscribes to upstream matrix-fetch events and begins fanning
// updates out to subscribers.
func (f *Feed) Start(ctx context.Context) error {
	if err := f.msgClient.Subscribe(messaging.EventTypeMatrixUpdated, f.handleMatrixEvent); err != nil {
		return fmt.Errorf("failed to subscribe to matrix updates: %w", err)
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for {
			select {
			case update := <-f.updates:
				f.broadcastUpdate(update)
			case <-f.shutdown:
				return
			}
		}
	}()

	return nil
}

// Stop stops the feed.
func (f *Feed) Stop() {
	close(f.shutdown)
	f.wg.Wait()
}

// Fetch retrieves a fresh matrix for regionID via fn, wrapped in the
// upstream circuit breaker, and caches + broadcasts the result.
func (f *Feed) Fetch(ctx context.Context, regionID string, fn FetchFunc) (*MatrixSnapshot, error) {
	var tau [][]int
	err := f.breaker.Execute(ctx, func() error {
		var ferr error
		tau, ferr = fn(ctx, regionID)
		return ferr
	})
	if err != nil {
		return nil, fmt.Errorf("fetching matrix for region %s: %w", regionID, err)
	}

	snapshot := &MatrixSnapshot{
		RegionID:  regionID,
		Tau:       tau,
		Size:      len(tau),
		FetchedAt: time.Now(),
	}
	f.UpdateSnapshot(snapshot)
	return snapshot, nil
}

// Subscribe subscribes to matrix updates for a set of regions.
func (f *Feed) Subscribe(regions []string) (*Subscriber, error) {
	sub := &Subscriber{
		ID:      uuid.New(),
		Regions: regions,
		Updates: make(chan SnapshotUpdate),
		Done:    make(chan struct{}),
	}

	f.mu.Lock()
	for _, region := range regions {
		if f.subscribers[region] == nil {
			f.subscribers[region] = make(map[uuid.UUID]*Subscriber)
		}
		f.subscribers[region][sub.ID] = sub
	}
	f.mu.Unlock()

	return sub, nil
}

// Unsubscribe removes a subscription.
func (f *Feed) Unsubscribe(subID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for region, subs := range f.subscribers {
		if sub, exists := subs[subID]; exists {
			close(sub.Done)
			close(sub.Updates)
			delete(subs, subID)
		}
		if len(subs) == 0 {
			delete(f.subscribers, region)
		}
	}
}

// UpdateSnapshot stores and broadcasts a new matrix snapshot.
func (f *Feed) UpdateSnapshot(snapshot *MatrixSnapshot) {
	f.mu.Lock()
	f.matrices[snapshot.RegionID] = snapshot
	f.mu.Unlock()

	update := SnapshotUpdate{
		Type:      "fetched",
		RegionID:  snapshot.RegionID,
		Data:      snapshot,
		Timestamp: time.Now(),
	}

	select {
	case f.updates <- update:
	default:
	}
}

// GetSnapshot returns the current cached matrix for a region.
func (f *Feed) GetSnapshot(regionID string) (*MatrixSnapshot, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	snapshot, exists := f.matrices[regionID]
	return snapshot, exists
}

func (f *Feed) broadcastUpdate(update SnapshotUpdate) {
	f.mu.RLock()
	subs := f.subscribers[update.RegionID]
	f.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.Updates <- update:
		case <-sub.Done:
		default:
		}
	}
}

func (f *Feed) handleMatrixEvent(msg *nats.Msg) {
	// Cache refresh is driven by explicit Fetch calls; this hook exists so
	// peer gateway instances can react to another instance's fetch.
}

// WebSocketHandler streams matrix updates to a dashboard connection.
type WebSocketHandler struct {
	feed     *Feed
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(feed *Feed) *WebSocketHandler {
	return &WebSocketHandler{
		feed: feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeWS handles a WebSocket connection subscribed to a set of regions.
func (h *WebSocketHandler) ServeWS(ctx context.Context, conn *websocket.Conn, regions []string) {
	sub, err := h.feed.Subscribe(regions)
	if err != nil {
		conn.WriteMessage(websocket.CloseMessage, []byte("failed to subscribe"))
		conn.Close()
		return
	}
	sub.Conn = conn

	defer func() {
		h.feed.Unsubscribe(sub.ID)
		conn.Close()
	}()

	go func() {
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				close(sub.Done)
				return
			}
		}
	}()

	for {
		select {
		case update := <-sub.Updates:
			data, err := json.Marshal(update)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-sub.Done:
			return
		case <-ctx.Done():
			return
		}
	}
}
