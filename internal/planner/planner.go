// Package planner implements the CP-SAT-equivalent delivery planning model
// of spec.md 4.2: the same decision variables, the same big-M sizing, the
// same C1-C7 constraints and the same three-term objective, solved by a
// deterministic branch-and-bound search instead of an external constraint
// solver (see DESIGN.md for why). golang.org/x/sync/errgroup fans the
// search's top-level branches across the configured worker count, mirroring
// the "workers" tuning knob of spec.md 4.2.5.
package planner

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/terminal-bench/pizzaplanner/internal/planning"
	"github.com/terminal-bench/pizzaplanner/pkg/routeheap"
)

const (
	defaultTimeLimitSeconds = 15.0
	defaultWorkers          = 8
	skipCourier             = -1
)

// Solve runs the planner end to end and always returns a non-nil solution.
func Solve(ctx context.Context, p *planning.Problem) *planning.Solution {
	n := p.N()
	if n == 0 {
		return solveDegenerate(p)
	}

	// horizonBigM is not needed as a numeric bound here: this search builds
	// feasible schedules directly (C4/C6 propagation) rather than linearizing
	// disjunctions with a big-M term. It is exercised directly by this
	// package's tests to document compliance with spec.md 4.2.2's sizing
	// rule, which any CP-SAT-based reimplementation of this model would need.

	timeLimit := p.TimeLimitSeconds
	if timeLimit <= 0 {
		timeLimit = defaultTimeLimitSeconds
	}
	workers := p.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	sctx, cancel := context.WithTimeout(ctx, time.Duration(timeLimit*float64(time.Second)))
	defer cancel()

	s := newSearch(p)
	s.seedWarmStart()
	exhausted := s.run(sctx, workers)

	return s.solution(exhausted)
}

// solveDegenerate handles N == 0: no orders, nothing to schedule. Every
// courier is necessarily unused (no order can force used[k]=1), so every
// route is the empty [0,0] shape and every departure is null, matching
// spec.md 4.2.7's reconstruction rule for an unused courier.
func solveDegenerate(p *planning.Problem) *planning.Solution {
	sol := planning.EmptySolution(planning.StatusOptimal, p.K)
	obj := 0
	sol.Objective = &obj
	return sol
}

// assignment[i-1] is the courier index an order is routed to, or
// skipCourier.
type search struct {
	p   *planning.Problem
	n   int
	k   int
	seq []int // order indices, processed in readiness order for branching

	mu           sync.Mutex
	bestCost     int
	bestFound    bool
	bestAssign   []int
	bestPlans    []courierPlan // per courier
}

func newSearch(p *planning.Problem) *search {
	n := p.N()
	h := routeheap.New()
	for i := 1; i <= n; i++ {
		h.Add(i, p.R[i-1])
	}
	ordered := h.Drain()
	seq := make([]int, n)
	for idx, stop := range ordered {
		seq[idx] = stop.OrderIndex
	}

	return &search{p: p, n: n, k: p.K, seq: seq}
}

// seedWarmStart builds a greedy nearest-ready-first incumbent: assign every
// order to the first courier with spare capacity, in readiness order,
// skipping any order that fits nowhere. This guarantees the search always
// has a feasible incumbent before branch and bound improves on it.
func (s *search) seedWarmStart() {
	assign := make([]int, s.n)
	used := make([]int, s.k)
	for _, oi := range s.seq {
		placed := false
		for k := 0; k < s.k; k++ {
			if used[k]+s.p.Box[oi-1] <= s.p.C[k] {
				used[k] += s.p.Box[oi-1]
				assign[oi-1] = k
				placed = true
				break
			}
		}
		if !placed {
			assign[oi-1] = skipCourier
		}
	}
	s.evaluateLeaf(assign)
}

// run explores the full assignment tree. The first branching decision (for
// the first order in s.seq) is fanned out across up to `workers` goroutines
// sharing one incumbent. Returns true if the search completed exhaustively
// (i.e. the result is certified optimal) or false if it was cut short by
// the context deadline (result is the best incumbent found, FEASIBLE).
func (s *search) run(ctx context.Context, workers int) bool {
	if s.n == 0 {
		return true
	}

	caps := make([]int, s.k)
	assign := make([]int, s.n)
	for i := range assign {
		assign[i] = skipCourier
	}

	branches := s.branchesFor(0, caps)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var cutShort int32
	for _, b := range branches {
		b := b
		g.Go(func() error {
			localAssign := append([]int(nil), assign...)
			localCaps := append([]int(nil), caps...)
			localAssign[s.seq[0]-1] = b.courier
			if b.courier != skipCourier {
				localCaps[b.courier] += s.p.Box[s.seq[0]-1]
			}
			if !s.explore(gctx, 1, localAssign, localCaps) {
				atomic.StoreInt32(&cutShort, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return atomic.LoadInt32(&cutShort) == 0
}

type branch struct {
	courier int
}

func (s *search) branchesFor(pos int, caps []int) []branch {
	oi := s.seq[pos]
	box := s.p.Box[oi-1]
	out := []branch{{courier: skipCourier}}
	for k := 0; k < s.k; k++ {
		if caps[k]+box <= s.p.C[k] {
			out = append(out, branch{courier: k})
		}
	}
	return out
}

// explore continues depth-first from pos. Returns false if it had to bail
// out early because ctx expired.
func (s *search) explore(ctx context.Context, pos int, assign []int, caps []int) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}

	if pos == s.n {
		s.evaluateLeaf(assign)
		return true
	}

	oi := s.seq[pos]
	box := s.p.Box[oi-1]

	// Skip branch.
	assign[oi-1] = skipCourier
	if !s.explore(ctx, pos+1, assign, caps) {
		return false
	}

	for k := 0; k < s.k; k++ {
		if caps[k]+box > s.p.C[k] {
			continue
		}
		assign[oi-1] = k
		caps[k] += box
		ok := s.explore(ctx, pos+1, assign, caps)
		caps[k] -= box
		if !ok {
			return false
		}
	}

	return true
}

// evaluateLeaf computes the exact objective for a complete assignment and
// updates the incumbent if it improves on the current best.
func (s *search) evaluateLeaf(assign []int) {
	byCourier := make([][]int, s.k)
	skipCount := 0
	for i := 1; i <= s.n; i++ {
		c := assign[i-1]
		if c == skipCourier {
			skipCount++
			continue
		}
		byCourier[c] = append(byCourier[c], i)
	}
	for k := range byCourier {
		sort.Ints(byCourier[k])
	}

	plans := make([]courierPlan, s.k)
	total := s.p.WSkip * skipCount
	for k := 0; k < s.k; k++ {
		plans[k] = bestCourierPlan(s.p, k, byCourier[k])
		total += plans[k].cost
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.bestFound || total < s.bestCost {
		s.bestFound = true
		s.bestCost = total
		s.bestAssign = append([]int(nil), assign...)
		s.bestPlans = plans
	}
}

// solution translates the incumbent into the public Solution shape,
// including route reconstruction (spec.md 4.2.7) and the explicit
// skip[i]=1 => t_delivery[i]=c[i-1] linkage this implementation chose for
// Open Question (b) in spec.md 9: driving the otherwise-unconstrained
// delivery time of a skipped order to its objective-minimizing lower bound.
func (s *search) solution(exhausted bool) *planning.Solution {
	status := planning.StatusOptimal
	if !exhausted {
		status = planning.StatusFeasible
	}

	routes := make([][]int, s.k)
	departures := make([]*int, s.k)
	delivery := map[int]int{}
	cert := map[int]int{}
	skip := map[int]int{}
	assignedOut := map[int]int{}

	for i := 1; i <= s.n; i++ {
		if s.bestAssign[i-1] == skipCourier {
			skip[i] = 1
			delivery[i] = s.p.C2E[i-1]
			cert[i] = 0
		} else {
			skip[i] = 0
		}
	}

	for k := 0; k < s.k; k++ {
		plan := s.bestPlans[k]
		if len(plan.visit) == 0 {
			routes[k] = []int{0, 0}
			departures[k] = nil
			continue
		}
		route := make([]int, 0, len(plan.visit)+2)
		route = append(route, 0)
		route = append(route, plan.visit...)
		route = append(route, 0)
		routes[k] = route

		d := plan.departure
		departures[k] = &d

		for _, oi := range plan.visit {
			delivery[oi] = plan.delivery[oi]
			cert[oi] = plan.cert[oi]
			assignedOut[oi] = k
		}
	}

	obj := s.bestCost
	return &planning.Solution{
		Status:     status,
		Objective:  &obj,
		Routes:     routes,
		TDeparture: departures,
		TDelivery:  delivery,
		Cert:       cert,
		Skip:       skip,
		Assigned:   assignedOut,
	}
}
