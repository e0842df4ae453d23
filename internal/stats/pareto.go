package stats

import (
	"sort"

	"github.com/signalnine/qrscale/internal/result"
)

// ModuleSummary reports median and p90 latency plus success rate per module
// size bin, dropping bins with fewer than nMin attempts.
func ModuleSummary(results []result.DecodeResult, step, nMin int) []result.ModulePoint {
	bins, keys := binResults(results, step)
	var out []result.ModulePoint
	for _, k := range keys {
		acc := bins[k]
		n := len(acc.times)
		if n < nMin {
			continue
		}
		out = append(out, result.ModulePoint{
			ModuleSize:   k,
			N:            n,
			TimeMedianMs: Quantile(acc.times, 0.5),
			TimeP90Ms:    Quantile(acc.times, 0.9),
			SuccessRate:  float64(acc.matched) / float64(n),
		})
	}
	return out
}

// ParetoFront keeps the points no other point beats on both median latency
// (lower is better) and success rate (higher is better). Output is ordered
// by time ascending, then rate descending, then module size.
func ParetoFront(points []result.ModulePoint) []result.ModulePoint {
	sorted := append([]result.ModulePoint(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.TimeMedianMs != b.TimeMedianMs {
			return a.TimeMedianMs < b.TimeMedianMs
		}
		if a.SuccessRate != b.SuccessRate {
			return a.SuccessRate > b.SuccessRate
		}
		return a.ModuleSize < b.ModuleSize
	})

	var front []result.ModulePoint
	for _, p := range sorted {
		dominated := false
		for _, q := range sorted {
			if dominates(q, p) {
				dominated = true
				break
			}
		}
		if !dominated {
			front = append(front, p)
		}
	}
	return front
}

func dominates(q, p result.ModulePoint) bool {
	noWorse := q.TimeMedianMs <= p.TimeMedianMs && q.SuccessRate >= p.SuccessRate
	better := q.TimeMedianMs < p.TimeMedianMs || q.SuccessRate > p.SuccessRate
	return noWorse && better
}
