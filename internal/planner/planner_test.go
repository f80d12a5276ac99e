package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminal-bench/pizzaplanner/internal/planning"
)

func TestSolveLiteralScenarios(t *testing.T) {
	t.Run("should solve basic sanity", func(t *testing.T) {
		p := &planning.Problem{
			Tau: [][]int{{0, 10}, {10, 0}},
			K:   1, C: []int{10}, Box: []int{1},
			C2E: []int{0}, R: []int{0}, A: []int{0},
			WCert: 100, WC2E: 1, WSkip: 1000,
		}
		sol := Solve(context.Background(), p)
		require.True(t, sol.Status.IsSolution())
		assert.Equal(t, [][]int{{0, 1, 0}}, sol.Routes)
		assert.Equal(t, 10, sol.TDelivery[1])
		assert.Equal(t, 0, sol.Cert[1])
		assert.Equal(t, 0, sol.Skip[1])
		require.NotNil(t, sol.Objective)
		assert.Equal(t, 10, *sol.Objective)
	})

	t.Run("should choose the cheaper visit order", func(t *testing.T) {
		p := &planning.Problem{
			Tau: [][]int{{0, 10, 20}, {10, 0, 5}, {20, 5, 0}},
			K:   1, C: []int{10}, Box: []int{1, 1},
			C2E: []int{0, 0}, R: []int{0, 0}, A: []int{0},
			WCert: 100, WC2E: 1, WSkip: 1000,
		}
		sol := Solve(context.Background(), p)
		assert.Equal(t, [][]int{{0, 1, 2, 0}}, sol.Routes)
		assert.Equal(t, map[int]int{1: 10, 2: 15}, sol.TDelivery)
		assert.Equal(t, 25, *sol.Objective)
	})

	t.Run("should reorder to avoid a certificate", func(t *testing.T) {
		p := &planning.Problem{
			Tau: [][]int{{0, 50, 20}, {50, 0, 20}, {20, 50, 0}},
			K:   1, C: []int{10}, Box: []int{1, 1},
			C2E: []int{30, 0}, R: []int{0, 0}, A: []int{0},
			WCert: 100, WC2E: 1, WSkip: 1000,
		}
		sol := Solve(context.Background(), p)
		assert.Equal(t, [][]int{{0, 2, 1, 0}}, sol.Routes)
		assert.Equal(t, map[int]int{2: 20, 1: 70}, sol.TDelivery)
		assert.Equal(t, map[int]int{1: 0, 2: 0}, sol.Cert)
		assert.Equal(t, 60, *sol.Objective)
	})

	t.Run("should skip an order when capacity is insufficient", func(t *testing.T) {
		p := &planning.Problem{
			Tau: [][]int{{0, 5, 5}, {5, 0, 5}, {5, 5, 0}},
			K:   1, C: []int{1}, Box: []int{1, 1},
			C2E: []int{0, 0}, R: []int{0, 0}, A: []int{0},
			WCert: 100, WC2E: 1, WSkip: 10,
		}
		sol := Solve(context.Background(), p)
		skipped := sol.Skip[1] + sol.Skip[2]
		assert.Equal(t, 1, skipped)
		assert.Equal(t, 15, *sol.Objective)
		assert.Len(t, sol.Routes[0], 3)
		assert.Equal(t, 0, sol.Routes[0][0])
		assert.Equal(t, 0, sol.Routes[0][2])
	})

	t.Run("should skip rather than incur a certificate", func(t *testing.T) {
		p := &planning.Problem{
			Tau: [][]int{{0, 70, 5}, {70, 0, 70}, {5, 70, 0}},
			K:   1, C: []int{10}, Box: []int{1, 1},
			C2E: []int{0, 0}, R: []int{0, 0}, A: []int{0},
			WCert: 1000, WC2E: 1, WSkip: 100,
		}
		sol := Solve(context.Background(), p)
		assert.Equal(t, [][]int{{0, 2, 0}}, sol.Routes)
		assert.Equal(t, map[int]int{1: 1, 2: 0}, sol.Skip)
		assert.Equal(t, 105, *sol.Objective)
	})

	t.Run("should handle zero capacity degenerately", func(t *testing.T) {
		p := &planning.Problem{
			Tau: [][]int{{0, 5, 5}, {5, 0, 5}, {5, 5, 0}},
			K:   1, C: []int{0}, Box: []int{1, 1},
			C2E: []int{0, 0}, R: []int{0, 0}, A: []int{0},
			WCert: 100, WC2E: 1, WSkip: 1,
		}
		sol := Solve(context.Background(), p)
		assert.Equal(t, [][]int{{0, 0}}, sol.Routes)
		assert.Equal(t, map[int]int{1: 1, 2: 1}, sol.Skip)
		assert.Equal(t, 2, *sol.Objective)
	})
}

func TestHorizonBigM(t *testing.T) {
	t.Run("should scale with horizon and N for the normal case", func(t *testing.T) {
		p := &planning.Problem{
			Tau: [][]int{{0, 10}, {10, 0}},
			A:   []int{5}, R: []int{20}, Box: []int{1},
		}
		// horizon_start = max(5, 20) = 20; M = 20 + (1+1)*10 + 60 = 100
		assert.Equal(t, 100, horizonBigM(p))
	})

	t.Run("should use the degenerate formula when there are no orders", func(t *testing.T) {
		p := &planning.Problem{
			Tau: [][]int{{0}},
			A:   []int{-30}, R: []int{}, Box: []int{},
		}
		assert.Equal(t, 60, horizonBigM(p))
	})
}

func TestSolveEmptyProblem(t *testing.T) {
	t.Run("should return optimal empty routes for zero orders", func(t *testing.T) {
		p := &planning.Problem{
			Tau: [][]int{{0, 0}, {0, 0}},
			K:   2, C: []int{5, 5}, Box: []int{},
			C2E: []int{}, R: []int{}, A: []int{0, 10},
			WCert: 1, WC2E: 1, WSkip: 1,
		}
		sol := Solve(context.Background(), p)
		assert.Equal(t, planning.StatusOptimal, sol.Status)
		assert.Equal(t, [][]int{{0, 0}, {0, 0}}, sol.Routes)
		assert.Nil(t, sol.TDeparture[0])
		assert.Nil(t, sol.TDeparture[1])
		assert.Equal(t, 0, *sol.Objective)
	})
}

func TestSolveDeterministicUnderPermutation(t *testing.T) {
	t.Run("should yield the same objective regardless of order input order", func(t *testing.T) {
		base := &planning.Problem{
			Tau: [][]int{{0, 10, 20}, {10, 0, 5}, {20, 5, 0}},
			K:   1, C: []int{10}, Box: []int{1, 1},
			C2E: []int{0, 0}, R: []int{0, 0}, A: []int{0},
			WCert: 100, WC2E: 1, WSkip: 1000,
		}
		swapped := &planning.Problem{
			Tau: [][]int{{0, 20, 10}, {20, 0, 5}, {10, 5, 0}},
			K:   1, C: []int{10}, Box: []int{1, 1},
			C2E: []int{0, 0}, R: []int{0, 0}, A: []int{0},
			WCert: 100, WC2E: 1, WSkip: 1000,
		}
		s1 := Solve(context.Background(), base)
		s2 := Solve(context.Background(), swapped)
		assert.Equal(t, *s1.Objective, *s2.Objective)
	})
}
