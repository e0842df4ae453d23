package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/signalnine/qrscale/internal/config"
	"github.com/signalnine/qrscale/internal/dataset"
	"github.com/signalnine/qrscale/internal/report"
	"github.com/signalnine/qrscale/internal/runner"
)

type runFlags struct {
	dataset    string
	decoders   []string
	scales     []float64
	iterations int
	parallel   int
	binStep    int
	onMissing  string
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Decode a dataset at every scale with each decoder",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBenchmark(cmd, &f)
		},
	}
	cmd.Flags().StringVar(&f.dataset, "dataset", "", "dataset name under datasets_dir")
	cmd.Flags().StringSliceVar(&f.decoders, "decoder", nil, "decoders to run (repeatable or comma separated)")
	cmd.Flags().Float64SliceVar(&f.scales, "scales", nil, "scale factors, comma separated")
	cmd.Flags().IntVar(&f.iterations, "iterations", 0, "decode attempts per image and scale")
	cmd.Flags().IntVar(&f.parallel, "parallel", 0, "concurrent decode workers per decoder")
	cmd.Flags().IntVar(&f.binStep, "bin-step", 0, "module size bin width in pixels")
	cmd.Flags().StringVar(&f.onMissing, "on-missing", "", "abort or skip when a decoder dependency is missing")
	return cmd
}

// applyRunFlags overlays non-zero flag values on cfg and revalidates.
func applyRunFlags(cfg *config.Config, f *runFlags) error {
	if f.dataset != "" {
		cfg.Dataset = f.dataset
	}
	if len(f.decoders) > 0 {
		cfg.Decoders = f.decoders
	}
	if len(f.scales) > 0 {
		cfg.Scales = config.Scales{Values: f.scales}
	}
	if f.iterations != 0 {
		cfg.Iterations = f.iterations
	}
	if f.parallel != 0 {
		cfg.Parallel = f.parallel
	}
	if f.binStep != 0 {
		cfg.ModuleBinStepPx = f.binStep
	}
	if f.onMissing != "" {
		cfg.OnMissingDecoder = f.onMissing
	}
	if cfg.Dataset == "" {
		return errors.New("no dataset selected: pass --dataset or set dataset in the config")
	}
	return cfg.Validate()
}

func runBenchmark(cmd *cobra.Command, f *runFlags) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cfg, f); err != nil {
		return err
	}
	levels, err := cfg.Scales.Levels()
	if err != nil {
		return err
	}

	ds, err := dataset.Open(cfg.DatasetsDir, cfg.Dataset)
	if err != nil {
		return err
	}
	log.Info().Str("dataset", ds.Name).Int("samples", ds.Len()).Strs("decoders", cfg.Decoders).
		Floats64("scales", levels).Msg("starting run")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := runner.Run(ctx, &runner.RunOpts{
		Dataset:          ds,
		Decoders:         cfg.Decoders,
		Scales:           levels,
		Iterations:       cfg.Iterations,
		Parallel:         cfg.Parallel,
		OutputsDir:       cfg.OutputsDir,
		BinStepPx:        cfg.ModuleBinStepPx,
		ParetoMinSamples: cfg.ParetoMinSamples,
		OnMissingDecoder: cfg.OnMissingDecoder,
		Progress: func(p runner.Progress) {
			log.Debug().Str("decoder", p.Decoder).Int("seen", p.Seen).Int("total", p.Total).
				Int("processed", p.Processed).Msg("progress")
		},
	})
	if err != nil {
		return err
	}
	fmt.Printf("Run directory: %s\n", sum.RunDir)

	fmt.Println("\n--- Results ---")
	return report.Generate(sum.RunDir, "table", os.Stdout)
}
