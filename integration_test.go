//go:build integration

package main

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/signalnine/qrscale/internal/config"
	"github.com/signalnine/qrscale/internal/dataset"
	"github.com/signalnine/qrscale/internal/decoder"
	"github.com/signalnine/qrscale/internal/report"
	"github.com/signalnine/qrscale/internal/result"
	"github.com/signalnine/qrscale/internal/runner"
)

// TestAllDecodersIntegration sweeps a synthetic dataset with every decoder
// backend, skipping those whose native dependency is not installed.
func TestAllDecodersIntegration(t *testing.T) {
	if os.Getenv("QRSCALE_INTEGRATION_TESTS") == "" {
		t.Skip("set QRSCALE_INTEGRATION_TESTS=1 to run integration tests")
	}

	dir := t.TempDir()
	ds, err := dataset.Generate(filepath.Join(dir, "datasets"), "integration", dataset.SynthOptions{
		Payloads: []string{"HELLO", "https://example.com/qr", "0123456789"},
		ModulePx: 6,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	sum, err := runner.Run(ctx, &runner.RunOpts{
		Dataset:          ds,
		Decoders:         decoder.Names(),
		Scales:           []float64{0.1, 0.5, 1.0},
		Iterations:       2,
		Parallel:         2,
		OutputsDir:       filepath.Join(dir, "outputs"),
		BinStepPx:        1,
		ParetoMinSamples: 1,
		OnMissingDecoder: config.OnMissingSkip,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, d := range sum.Meta.Decoders {
		if d.Skipped != "" {
			t.Logf("%s skipped: %s", d.Name, d.Skipped)
			continue
		}
		stats, err := result.ReadStats(result.DecoderDir(sum.RunDir, d.Name))
		if err != nil {
			t.Fatalf("ReadStats %s: %v", d.Name, err)
		}
		last := stats[len(stats)-1]
		if last.Scale != 1.0 || last.SuccessRate != 1.0 {
			t.Errorf("%s at scale %v: success rate %v, want 1", d.Name, last.Scale, last.SuccessRate)
		}
	}

	if _, err := exec.LookPath("zbarimg"); err == nil {
		for _, d := range sum.Meta.Decoders {
			if d.Name == decoder.ZBar && d.Skipped != "" {
				t.Errorf("zbarimg is installed but zbar was skipped: %s", d.Skipped)
			}
		}
	}

	if err := report.Generate(sum.RunDir, "markdown", os.Stdout); err != nil {
		t.Fatalf("report: %v", err)
	}
}
