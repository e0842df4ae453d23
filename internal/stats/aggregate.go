// Package stats reduces decode results into per-scale and per-module-size
// summaries.
package stats

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/signalnine/qrscale/internal/result"
)

// Aggregate groups results by (decoder, scale). Every configured level gets
// a row for every decoder seen, even when no attempt matched. Failed
// attempts count toward both the success rate denominator and the timing.
func Aggregate(results []result.DecodeResult, levels []float64) ([]result.AggregateStat, error) {
	levelSet := make(map[float64]bool, len(levels))
	for _, l := range levels {
		levelSet[l] = true
	}

	type key struct {
		decoder string
		scale   float64
	}
	times := make(map[key][]float64)
	matched := make(map[key]int)
	decoderSet := make(map[string]bool)

	for _, r := range results {
		if !levelSet[r.Scale] {
			return nil, errors.Errorf("result for %s at scale %v is not a configured level", r.SampleID, r.Scale)
		}
		k := key{r.Decoder, r.Scale}
		times[k] = append(times[k], r.ElapsedMs)
		if r.Matched {
			matched[k]++
		}
		decoderSet[r.Decoder] = true
	}

	decoders := make([]string, 0, len(decoderSet))
	for d := range decoderSet {
		decoders = append(decoders, d)
	}
	sort.Strings(decoders)
	sorted := append([]float64(nil), levels...)
	sort.Float64s(sorted)

	var out []result.AggregateStat
	for _, d := range decoders {
		for _, l := range sorted {
			k := key{d, l}
			ts := times[k]
			s := result.AggregateStat{
				Decoder:      d,
				Scale:        l,
				SampleCount:  len(ts),
				MatchedCount: matched[k],
			}
			if len(ts) > 0 {
				s.SuccessRate = float64(matched[k]) / float64(len(ts))
				s.MeanTimeMs = stat.Mean(ts, nil)
				s.MedianTimeMs = Quantile(ts, 0.5)
			}
			out = append(out, s)
		}
	}
	return out, nil
}

// Quantile returns the p-quantile of xs without modifying it, interpolating
// linearly between the order statistics around rank p*(n-1). The median of an
// even-length sample is the mean of its middle pair.
func Quantile(xs []float64, p float64) float64 {
	if len(xs) == 0 || p < 0 || p > 1 {
		return math.NaN()
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	if frac == 0 {
		return sorted[lo]
	}
	return stat.Mean(sorted[lo:lo+2], []float64{1 - frac, frac})
}
