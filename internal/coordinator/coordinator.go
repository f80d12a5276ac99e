// Package coordinator keeps multi-replica deployments of the gateway from
// running the CP-SAT-equivalent solve twice for the same request, and
// stores a shared SolverSettings default in etcd (read and written through
// Get/SetSolverDefaults; the gateway's solve path does not consult it).
// Grounded on the teacher's distributed-lock chaos scenario
// (tests/chaos/failure_test.go's "should handle etcd leader failure") and
// on pkg/circuit.Breaker/pkg/messaging.Client's Config-struct, context-
// scoped-operation idiom.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

// Config configures the etcd client backing the Coordinator.
type Config struct {
	Endpoints   []string
	DialTimeout time.Duration
	LeaseTTLSec int
}

// SolverDefaults is the centrally-stored SolverSettings default, kept under
// defaultsKey. It is returned by GetSolverDefaults; nothing in the gateway's
// solve path reads it, so requests use their own settings or the planner's.
type SolverDefaults struct {
	TimeLimitSeconds      int `json:"time_limit_seconds"`
	MaxParallelWorkers    int `json:"max_parallel_workers"`
	MaxRouteArcsPerCourier int `json:"max_route_arcs_per_courier"`
}

const defaultsKey = "/pizzaplanner/solver-settings/defaults"
const lockPrefix = "/pizzaplanner/solve-locks/"

// Coordinator wraps an etcd client and the lease TTL used for the
// concurrency.Session that AcquireSolveLock opens for each solve's mutex.
type Coordinator struct {
	client *clientv3.Client
	leaseTTL int
}

// NewCoordinator dials etcd. The returned Coordinator is safe for
// concurrent use by every goroutine handling solve requests on this
// replica.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.LeaseTTLSec == 0 {
		cfg.LeaseTTLSec = 30
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("dial etcd: %w", err)
	}

	return &Coordinator{client: client, leaseTTL: cfg.LeaseTTLSec}, nil
}

// Close releases the underlying etcd client.
func (c *Coordinator) Close() error {
	return c.client.Close()
}

// SolveLock is a held distributed mutex for one normalized problem key. The
// lease backing it expires on its own if the holding process crashes
// mid-solve, so a dead replica never wedges every other replica out of that
// key forever.
type SolveLock struct {
	session *concurrency.Session
	mutex   *concurrency.Mutex
	key     string
}

// AcquireSolveLock blocks until it holds the distributed lock for
// problemKey (a hash of the normalized Problem, so two replicas solving the
// identical request serialize instead of racing), or ctx is cancelled.
// Mirrors the chaos test's expectation that a lock "should be acquirable"
// once etcd re-elects a leader: the lease-backed session handles that
// transparently.
func (c *Coordinator) AcquireSolveLock(ctx context.Context, problemKey string) (*SolveLock, error) {
	session, err := concurrency.NewSession(c.client, concurrency.WithTTL(c.leaseTTL), concurrency.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("new etcd session: %w", err)
	}

	mutex := concurrency.NewMutex(session, lockPrefix+problemKey)
	if err := mutex.Lock(ctx); err != nil {
		session.Close()
		return nil, fmt.Errorf("acquire solve lock for %s: %w", problemKey, err)
	}

	return &SolveLock{session: session, mutex: mutex, key: problemKey}, nil
}

// Release unlocks and closes the lock's session. Safe to call once whether
// the solve succeeded, timed out, or the caller is unwinding after an
// error; an unreleased lock still expires via its TTL lease.
func (l *SolveLock) Release(ctx context.Context) error {
	defer l.session.Close()
	if err := l.mutex.Unlock(ctx); err != nil {
		return fmt.Errorf("release solve lock for %s: %w", l.key, err)
	}
	return nil
}

// GetSolverDefaults reads the centrally-stored SolverSettings default.
// Returns (nil, nil) if no operator has published one yet, so callers can
// fall back to their own hardcoded defaults.
func (c *Coordinator) GetSolverDefaults(ctx context.Context) (*SolverDefaults, error) {
	resp, err := c.client.Get(ctx, defaultsKey)
	if err != nil {
		return nil, fmt.Errorf("get solver defaults: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, nil
	}

	var defaults SolverDefaults
	if err := json.Unmarshal(resp.Kvs[0].Value, &defaults); err != nil {
		return nil, fmt.Errorf("decode solver defaults: %w", err)
	}
	return &defaults, nil
}

// SetSolverDefaults publishes new SolverSettings defaults for every
// replica to pick up on its next read, with no redeploy required.
func (c *Coordinator) SetSolverDefaults(ctx context.Context, defaults SolverDefaults) error {
	data, err := json.Marshal(defaults)
	if err != nil {
		return fmt.Errorf("encode solver defaults: %w", err)
	}
	if _, err := c.client.Put(ctx, defaultsKey, string(data)); err != nil {
		return fmt.Errorf("put solver defaults: %w", err)
	}
	return nil
}
