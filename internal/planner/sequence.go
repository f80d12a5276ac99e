package planner

import "github.com/terminal-bench/pizzaplanner/internal/planning"

// courierPlan is the result of sequencing one courier's assigned orders.
type courierPlan struct {
	departure int
	visit     []int       // order indices in visit order (no depot)
	delivery  map[int]int // order index -> delivery minute offset
	cert      map[int]int // order index -> 0/1
	cost      int         // WCert*sum(cert) + WC2E*sum(delivery-c2e)
}

// bestCourierPlan finds the minimum-cost visit order for the given set of
// orders assigned to courier k. Departure is fixed by spec.md C4: the
// courier cannot leave before its own availability nor before every order
// assigned to it is ready, regardless of visit order.
func bestCourierPlan(p *planning.Problem, k int, orders []int) courierPlan {
	departure := p.A[k]
	for _, i := range orders {
		if r := p.R[i-1]; r > departure {
			departure = r
		}
	}

	if len(orders) == 0 {
		return courierPlan{departure: departure, delivery: map[int]int{}, cert: map[int]int{}}
	}

	var bestVisit []int
	bestCost := 0
	first := true

	evaluate := func(visit []int) {
		delivery := make(map[int]int, len(visit))
		cost := 0
		t := departure
		prev := 0
		for _, i := range visit {
			t += p.Tau[prev][i]
			delivery[i] = t
			c2e := t - p.C2E[i-1]
			cert := 0
			if c2e > 60 {
				cert = 1
			}
			cost += p.WCert*cert + p.WC2E*c2e
			prev = i
		}
		if first || cost < bestCost {
			first = false
			bestCost = cost
			bestVisit = append([]int(nil), visit...)
		}
	}

	if len(orders) <= 8 {
		permute(orders, evaluate)
	} else {
		evaluate(nearestNeighborOrder(p, departure, orders))
		improve2opt(p, departure, bestVisit, evaluate)
	}

	delivery := make(map[int]int, len(bestVisit))
	cert := make(map[int]int, len(bestVisit))
	t := departure
	prev := 0
	for _, i := range bestVisit {
		t += p.Tau[prev][i]
		delivery[i] = t
		c2e := t - p.C2E[i-1]
		if c2e > 60 {
			cert[i] = 1
		} else {
			cert[i] = 0
		}
		prev = i
	}

	return courierPlan{
		departure: departure,
		visit:     bestVisit,
		delivery:  delivery,
		cert:      cert,
		cost:      bestCost,
	}
}

// permute calls fn for every permutation of xs (Heap's algorithm).
func permute(xs []int, fn func([]int)) {
	n := len(xs)
	buf := append([]int(nil), xs...)
	c := make([]int, n)

	fn(append([]int(nil), buf...))
	i := 0
	for i < n {
		if c[i] < i {
			if i%2 == 0 {
				buf[0], buf[i] = buf[i], buf[0]
			} else {
				buf[c[i]], buf[i] = buf[i], buf[c[i]]
			}
			fn(append([]int(nil), buf...))
			c[i]++
			i = 0
		} else {
			c[i] = 0
			i++
		}
	}
}

func nearestNeighborOrder(p *planning.Problem, departure int, orders []int) []int {
	remaining := append([]int(nil), orders...)
	visit := make([]int, 0, len(orders))
	cur := 0
	for len(remaining) > 0 {
		bestIdx := 0
		bestTau := p.Tau[cur][remaining[0]]
		for idx, o := range remaining[1:] {
			if p.Tau[cur][o] < bestTau {
				bestTau = p.Tau[cur][o]
				bestIdx = idx + 1
			}
		}
		cur = remaining[bestIdx]
		visit = append(visit, cur)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return visit
}

// improve2opt does local-search refinement of a nearest-neighbor route for
// per-courier batches too large to enumerate exhaustively.
func improve2opt(p *planning.Problem, departure int, visit []int, evaluate func([]int)) {
	improved := true
	for improved {
		improved = false
		for i := 0; i < len(visit)-1; i++ {
			for j := i + 1; j < len(visit); j++ {
				cand := append([]int(nil), visit...)
				for l, r := i, j; l < r; l, r = l+1, r-1 {
					cand[l], cand[r] = cand[r], cand[l]
				}
				before := routeCost(p, departure, visit)
				after := routeCost(p, departure, cand)
				if after < before {
					copy(visit, cand)
					improved = true
				}
			}
		}
	}
	evaluate(visit)
}

func routeCost(p *planning.Problem, departure int, visit []int) int {
	cost := 0
	t := departure
	prev := 0
	for _, i := range visit {
		t += p.Tau[prev][i]
		c2e := t - p.C2E[i-1]
		cert := 0
		if c2e > 60 {
			cert = 1
		}
		cost += p.WCert*cert + p.WC2E*c2e
		prev = i
	}
	return cost
}
