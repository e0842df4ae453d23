package chart_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/qrscale/internal/chart"
	"github.com/signalnine/qrscale/internal/result"
)

func pngHeader(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	return data[:8]
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	stats := []result.AggregateStat{
		{Decoder: "zxing", Scale: 0.5, SuccessRate: 0, MeanTimeMs: 2.5, SampleCount: 2},
		{Decoder: "zxing", Scale: 1, SuccessRate: 1, MeanTimeMs: 1.5, SampleCount: 2, MatchedCount: 2},
		{Decoder: "zxing", Scale: 2, SuccessRate: 1, MeanTimeMs: 4, SampleCount: 2, MatchedCount: 2},
	}
	require.NoError(t, chart.Render(dir, "zxing", stats))

	magic := []byte("\x89PNG\r\n\x1a\n")
	assert.Equal(t, magic, pngHeader(t, filepath.Join(dir, result.AccuracyPlot)))
	assert.Equal(t, magic, pngHeader(t, filepath.Join(dir, result.TimePlot)))

	got, err := result.ReadStats(dir)
	require.NoError(t, err)
	assert.Equal(t, stats, got)
}

func TestRenderEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, chart.Render(dir, "zxing", nil))
	assert.FileExists(t, filepath.Join(dir, result.AccuracyPlot))
}
