package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/signalnine/qrscale/internal/result"
)

// QuantizeModuleSize rounds px to the nearest multiple of step, never
// returning less than step. Halves round to even at both steps.
func QuantizeModuleSize(px float64, step int) int {
	if step < 1 {
		step = 1
	}
	v := int(math.RoundToEven(px))
	if step > 1 {
		v = int(math.RoundToEven(float64(v)/float64(step))) * step
	}
	return max(v, step)
}

type binAcc struct {
	times   []float64
	matched int
}

func binResults(results []result.DecodeResult, step int) (map[int]*binAcc, []int) {
	bins := make(map[int]*binAcc)
	for _, r := range results {
		if r.EffectiveModulePx <= 0 {
			continue
		}
		b := QuantizeModuleSize(r.EffectiveModulePx, step)
		acc, ok := bins[b]
		if !ok {
			acc = &binAcc{}
			bins[b] = acc
		}
		acc.times = append(acc.times, r.ElapsedMs)
		if r.Matched {
			acc.matched++
		}
	}
	keys := make([]int, 0, len(bins))
	for k := range bins {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return bins, keys
}

// ModuleBins groups results by quantized effective module size. Results
// without a known module size are left out.
func ModuleBins(results []result.DecodeResult, step int) []result.ModuleBin {
	bins, keys := binResults(results, step)
	out := make([]result.ModuleBin, 0, len(keys))
	for _, k := range keys {
		acc := bins[k]
		n := len(acc.times)
		out = append(out, result.ModuleBin{
			ModuleSize:   k,
			Count:        n,
			CountMatched: acc.matched,
			CountFailed:  n - acc.matched,
			SuccessRate:  float64(acc.matched) / float64(n),
			MeanTimeMs:   stat.Mean(acc.times, nil),
		})
	}
	return out
}
