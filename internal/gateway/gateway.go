// Package gateway is the HTTP surface of spec.md 4.4 and 6: a thin Gin
// router that wires Endpoint A (domain plan) and Endpoint B (raw solve)
// onto internal/mapper, internal/planner and internal/formatter, behind the
// same auth/rate-limit/tracing middleware chain the teacher's order-entry
// gateway used. Async solves stream progress over a websocket, grounded on
// the teacher's wsReadPump/wsWritePump pair.
package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/terminal-bench/pizzaplanner/internal/auth"
	"github.com/terminal-bench/pizzaplanner/internal/coordinator"
	"github.com/terminal-bench/pizzaplanner/internal/formatter"
	"github.com/terminal-bench/pizzaplanner/internal/mapper"
	"github.com/terminal-bench/pizzaplanner/internal/planner"
	"github.com/terminal-bench/pizzaplanner/internal/planning"
	"github.com/terminal-bench/pizzaplanner/pkg/circuit"
	"github.com/terminal-bench/pizzaplanner/pkg/messaging"
	"github.com/terminal-bench/pizzaplanner/pkg/metrics"
)

// Gateway hosts the HTTP and websocket surface for the planning service.
type Gateway struct {
	router      *gin.Engine
	msgClient   *messaging.Client
	authSvc     *auth.Service
	breakers    *circuit.BreakerGroup
	rateLimiter *RateLimiter
	coord       *coordinator.Coordinator
	metrics     *metrics.Recorder

	jobsMu sync.RWMutex
	jobs   map[uuid.UUID]*solveJob
}

// solveJob tracks one in-flight or completed async solve for the progress
// websocket at GET /ws/solve/:id.
type solveJob struct {
	ID       uuid.UUID
	mu       sync.Mutex
	done     bool
	result   interface{}
	watchers map[uuid.UUID]chan []byte
}

// Config configures the gateway's HTTP server and rate limiter.
type Config struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxHeaderBytes  int
	RateLimitWindow time.Duration
	RateLimitMax    int
}

// NewGateway builds a Gateway with routes already registered.
func NewGateway(cfg Config, msgClient *messaging.Client, authSvc *auth.Service) *Gateway {
	breakers := circuit.NewBreakerGroup(circuit.Config{
		MaxFailures: 5,
		Timeout:     30 * time.Second,
		HalfOpenMax: 3,
	})

	g := &Gateway{
		router:    gin.Default(),
		msgClient: msgClient,
		authSvc:   authSvc,
		breakers:  breakers,
		rateLimiter: &RateLimiter{
			requests: make(map[string][]time.Time),
			limit:    cfg.RateLimitMax,
			window:   cfg.RateLimitWindow,
		},
		jobs: make(map[uuid.UUID]*solveJob),
	}
	g.setupRoutes()
	return g
}

func (g *Gateway) setupRoutes() {
	g.router.Use(g.rateLimitMiddleware())
	g.router.Use(g.tracingMiddleware())

	g.router.GET("/health", g.healthCheck)

	v1 := g.router.Group("/api/v1")
	{
		v1.POST("/plan", g.authMiddleware(), g.planHandler)
		v1.POST("/solve", g.authMiddleware(), g.solveHandler)
	}

	g.router.GET("/ws/solve/:id", g.authMiddleware(), g.handleSolveProgress)
}

// SetCoordinator attaches the distributed solve lock. Optional: a single-
// replica deployment can leave this unset and every solve runs unlocked.
func (g *Gateway) SetCoordinator(coord *coordinator.Coordinator) {
	g.coord = coord
}

// SetMetricsRecorder attaches the per-solve InfluxDB recorder. Optional: a
// deployment without an InfluxDB bucket configured leaves this unset and
// solve() simply skips the write.
func (g *Gateway) SetMetricsRecorder(rec *metrics.Recorder) {
	g.metrics = rec
}

// Start runs the router on addr with gin's own Run and blocks until the
// listener fails.
func (g *Gateway) Start(addr string) error {
	return g.router.Run(addr)
}

func (g *Gateway) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// planHandler is Endpoint A of spec.md 6: domain JSON in, domain JSON out.
func (g *Gateway) planHandler(c *gin.Context) {
	var req mapper.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request", "detail": err.Error()})
		return
	}

	problem, meta, err := mapper.Build(&req)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	if async := c.Query("async"); async == "true" {
		id := g.startAsyncPlan(&req, problem, meta)
		c.JSON(http.StatusAccepted, gin.H{"solve_id": id})
		return
	}

	sol := g.solve(c.Request.Context(), problem)
	resp := formatter.Build(&req, meta, problem, sol)
	g.publishPlanComputed(c.Request.Context(), resp)
	c.JSON(http.StatusOK, resp)
}

// solveHandler is Endpoint B of spec.md 6: the internal planning.Problem
// verbatim in, planning.Solution verbatim out. Used by callers (and tests)
// that already live in index space and want to bypass the domain mapper.
func (g *Gateway) solveHandler(c *gin.Context) {
	var problem planning.Problem
	if err := c.ShouldBindJSON(&problem); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed problem", "detail": err.Error()})
		return
	}
	sol := g.solve(c.Request.Context(), &problem)
	c.JSON(http.StatusOK, sol)
}

// solve wraps planner.Solve in the upstream-dependency circuit breaker the
// teacher used for order submission, since a wedged solve is exactly the
// kind of slow-dependency failure the breaker exists to contain. When a
// Coordinator is attached, it also holds the cross-replica solve lock for
// problemKey(p) so two replicas never run the same request's solve at once.
func (g *Gateway) solve(ctx context.Context, p *planning.Problem) *planning.Solution {
	if g.coord != nil {
		lock, err := g.coord.AcquireSolveLock(ctx, problemKey(p))
		if err != nil {
			log.Printf("gateway: failed to acquire solve lock: %v", err)
			return planning.EmptySolution(planning.StatusUnknown, p.K)
		}
		defer func() {
			if relErr := lock.Release(context.Background()); relErr != nil {
				log.Printf("gateway: failed to release solve lock: %v", relErr)
			}
		}()
	}

	started := time.Now()
	var sol *planning.Solution
	err := g.breakers.Execute(ctx, "planner.solve", func() error {
		sol = planner.Solve(ctx, p)
		return nil
	})
	if err != nil {
		sol = planning.EmptySolution(planning.StatusUnknown, p.K)
	}
	g.recordSolveMetrics(ctx, sol, time.Since(started))
	return sol
}

func (g *Gateway) recordSolveMetrics(ctx context.Context, sol *planning.Solution, duration time.Duration) {
	if g.metrics == nil {
		return
	}
	objective := 0
	if sol.Objective != nil {
		objective = *sol.Objective
	}
	var certCount, skipCount int
	for _, v := range sol.Cert {
		certCount += v
	}
	for _, v := range sol.Skip {
		skipCount += v
	}
	g.metrics.RecordSolve(ctx, metrics.SolveResult{
		Status:           string(sol.Status),
		Objective:        objective,
		CertificateCount: certCount,
		SkipCount:        skipCount,
		Duration:         duration,
	})
}

// problemKey hashes the normalized Problem so two replicas asked to solve
// byte-identical requests serialize on the same etcd lock key.
func problemKey(p *planning.Problem) string {
	data, _ := json.Marshal(p)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (g *Gateway) publishPlanComputed(ctx context.Context, resp *formatter.Response) {
	if g.msgClient == nil {
		return
	}
	if err := g.msgClient.Publish(ctx, "plan.computed", resp); err != nil {
		log.Printf("gateway: failed to publish plan.computed: %v", err)
	}
}

// startAsyncPlan runs the solve in the background and registers and returns
// a job id the caller follows via GET /ws/solve/:id, per SPEC_FULL.md's
// async extension to Endpoint A.
func (g *Gateway) startAsyncPlan(req *mapper.Request, p *planning.Problem, meta *mapper.Metadata) uuid.UUID {
	id := uuid.New()
	job := &solveJob{ID: id, watchers: make(map[uuid.UUID]chan []byte)}

	g.jobsMu.Lock()
	g.jobs[id] = job
	g.jobsMu.Unlock()

	go func() {
		ctx := context.Background()
		sol := g.solve(ctx, p)
		resp := formatter.Build(req, meta, p, sol)
		g.publishPlanComputed(ctx, resp)

		job.mu.Lock()
		job.done = true
		job.result = resp
		watchers := job.watchers
		job.mu.Unlock()

		payload, _ := json.Marshal(gin.H{"status": "done", "result": resp})
		for _, ch := range watchers {
			select {
			case ch <- payload:
			default:
			}
		}
	}()
	return id
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleSolveProgress streams a "running" message followed by a single
// "done" message (or only the "done" snapshot if the solve already
// finished) for the job named by :id.
func (g *Gateway) handleSolveProgress(c *gin.Context) {
	rawID := c.Param("id")
	id, err := uuid.Parse(rawID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid solve id"})
		return
	}

	g.jobsMu.RLock()
	job, ok := g.jobs[id]
	g.jobsMu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown solve id %s", rawID)})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	job.mu.Lock()
	if job.done {
		payload, _ := json.Marshal(gin.H{"status": "done", "result": job.result})
		job.mu.Unlock()
		_ = conn.WriteMessage(websocket.TextMessage, payload)
		return
	}
	watcherID := uuid.New()
	ch := make(chan []byte, 1)
	job.watchers[watcherID] = ch
	job.mu.Unlock()

	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"status":"running"}`))

	select {
	case payload := <-ch:
		_ = conn.WriteMessage(websocket.TextMessage, payload)
	case <-c.Request.Context().Done():
	}

	job.mu.Lock()
	delete(job.watchers, watcherID)
	job.mu.Unlock()
}
