package planner

import "github.com/terminal-bench/pizzaplanner/internal/planning"

// maxTau returns the largest travel time in the matrix.
func maxTau(tau [][]int) int {
	m := 0
	for i := range tau {
		for j := range tau[i] {
			if tau[i][j] > m {
				m = tau[i][j]
			}
		}
	}
	return m
}

// maxIntSlice returns the maximum of xs. xs must be non-empty.
func maxIntSlice(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

// horizonBigM computes the big-M bound per spec.md 4.2.2: proportional to
// the natural planning horizon, never a global sentinel.
func horizonBigM(p *planning.Problem) int {
	n := p.N()
	mt := maxTau(p.Tau)

	horizonStart := maxIntSlice(p.A)
	if n == 0 {
		if horizonStart < 0 {
			horizonStart = 0
		}
		return horizonStart + 60
	}

	if rMax := maxIntSlice(p.R); rMax > horizonStart {
		horizonStart = rMax
	}
	return horizonStart + (n+1)*mt + 60
}
