package stats_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/qrscale/internal/result"
	"github.com/signalnine/qrscale/internal/stats"
)

func attempt(decoder string, scale float64, matched bool, ms float64) result.DecodeResult {
	return result.DecodeResult{Decoder: decoder, Scale: scale, Matched: matched, Found: matched, ElapsedMs: ms}
}

func TestAggregate(t *testing.T) {
	results := []result.DecodeResult{
		attempt("zxing", 0.5, false, 4),
		attempt("zxing", 0.5, false, 6),
		attempt("zxing", 1, true, 1),
		attempt("zxing", 1, true, 3),
		attempt("zxing", 2, true, 2),
		attempt("zxing", 2, false, 8),
	}
	got, err := stats.Aggregate(results, []float64{2, 1, 0.5})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, 0.5, got[0].Scale)
	assert.Equal(t, 0.0, got[0].SuccessRate)
	assert.Equal(t, 5.0, got[0].MeanTimeMs, "failed attempts still carry timing")
	assert.Equal(t, 2, got[0].SampleCount)

	assert.Equal(t, 1.0, got[1].SuccessRate)
	assert.Equal(t, 2.0, got[1].MeanTimeMs)
	assert.Equal(t, 2.0, got[1].MedianTimeMs, "even count averages the middle pair")
	assert.Equal(t, 2, got[1].MatchedCount)

	assert.Equal(t, 0.5, got[2].SuccessRate)
	for _, s := range got {
		assert.GreaterOrEqual(t, s.SuccessRate, 0.0)
		assert.LessOrEqual(t, s.SuccessRate, 1.0)
	}
}

func TestAggregateEmitsEveryLevelPerDecoder(t *testing.T) {
	results := []result.DecodeResult{
		attempt("opencv", 1, true, 1),
		attempt("zxing", 0.5, false, 1),
	}
	got, err := stats.Aggregate(results, []float64{0.5, 1})
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "opencv", got[0].Decoder)
	assert.Equal(t, 0, got[0].SampleCount)
	assert.Equal(t, 0.0, got[0].SuccessRate)
	assert.Equal(t, "zxing", got[3].Decoder)
	assert.Equal(t, 1.0, got[3].Scale)
}

func TestAggregateRejectsUnknownScale(t *testing.T) {
	_, err := stats.Aggregate([]result.DecodeResult{attempt("zxing", 0.7, true, 1)}, []float64{0.5, 1})
	assert.Error(t, err)
}

func TestQuantizeModuleSize(t *testing.T) {
	tests := []struct {
		px   float64
		step int
		want int
	}{
		{7.4, 1, 7},
		{0.2, 1, 1},
		{7.4, 2, 8},
		{5, 2, 4},
		{4.9, 2, 4},
		{2.5, 1, 2},
		{3.5, 1, 4},
		{4.5, 1, 4},
		{2.5, 2, 2},
		{6, 4, 8},
		{1.0, 4, 4},
		{13.2, 4, 12},
		{3, 0, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stats.QuantizeModuleSize(tt.px, tt.step), "px=%v step=%d", tt.px, tt.step)
	}
}

func withModule(r result.DecodeResult, px float64) result.DecodeResult {
	r.EffectiveModulePx = px
	return r
}

func TestModuleBins(t *testing.T) {
	results := []result.DecodeResult{
		withModule(attempt("zxing", 1, true, 2), 8.2),
		withModule(attempt("zxing", 1, false, 4), 7.6),
		withModule(attempt("zxing", 0.5, false, 6), 4.1),
		attempt("zxing", 0.5, true, 1),
	}
	bins := stats.ModuleBins(results, 2)
	require.Len(t, bins, 2)
	assert.Equal(t, result.ModuleBin{ModuleSize: 4, Count: 1, CountFailed: 1, MeanTimeMs: 6}, bins[0])
	assert.Equal(t, result.ModuleBin{ModuleSize: 8, Count: 2, CountMatched: 1, CountFailed: 1, SuccessRate: 0.5, MeanTimeMs: 3}, bins[1])
}

func TestModuleSummary(t *testing.T) {
	var results []result.DecodeResult
	for i := 1; i <= 10; i++ {
		results = append(results, withModule(attempt("zxing", 1, i > 2, float64(i)), 6))
	}
	results = append(results, withModule(attempt("zxing", 1, true, 1), 2))

	points := stats.ModuleSummary(results, 1, 5)
	require.Len(t, points, 1)
	p := points[0]
	assert.Equal(t, 6, p.ModuleSize)
	assert.Equal(t, 10, p.N)
	assert.Equal(t, 5.5, p.TimeMedianMs)
	assert.InDelta(t, 9.1, p.TimeP90Ms, 1e-9)
	assert.InDelta(t, 0.8, p.SuccessRate, 1e-9)

	assert.Len(t, stats.ModuleSummary(results, 1, 1), 2)
}

func TestParetoFront(t *testing.T) {
	points := []result.ModulePoint{
		{ModuleSize: 2, TimeMedianMs: 1, SuccessRate: 0.2},
		{ModuleSize: 4, TimeMedianMs: 2, SuccessRate: 0.9},
		{ModuleSize: 6, TimeMedianMs: 3, SuccessRate: 0.9}, // dominated by 4
		{ModuleSize: 8, TimeMedianMs: 4, SuccessRate: 1.0},
		{ModuleSize: 10, TimeMedianMs: 2, SuccessRate: 0.9}, // tie with 4
		{ModuleSize: 12, TimeMedianMs: 5, SuccessRate: 0.5}, // dominated
	}
	front := stats.ParetoFront(points)
	var sizes []int
	for _, p := range front {
		sizes = append(sizes, p.ModuleSize)
	}
	assert.Equal(t, []int{2, 4, 10, 8}, sizes)
	assert.Empty(t, stats.ParetoFront(nil))
}

func TestQuantile(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
		p    float64
		want float64
	}{
		{"odd median", []float64{3, 1, 2}, 0.5, 2},
		{"even median", []float64{4, 1, 3, 2}, 0.5, 2.5},
		{"p90 interpolates", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
		{"min", []float64{5, 3, 9}, 0, 3},
		{"max", []float64{5, 3, 9}, 1, 9},
		{"single", []float64{7}, 0.9, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, stats.Quantile(tt.xs, tt.p), 1e-9)
		})
	}
}

func TestQuantileEmptyIsNaN(t *testing.T) {
	assert.True(t, math.IsNaN(stats.Quantile(nil, 0.5)))
}

func TestQuantileLeavesInputUnsorted(t *testing.T) {
	xs := []float64{3, 1, 2}
	stats.Quantile(xs, 0.5)
	assert.Equal(t, []float64{3, 1, 2}, xs)
}
