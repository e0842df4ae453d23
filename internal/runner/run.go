package runner

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/signalnine/qrscale/internal/chart"
	"github.com/signalnine/qrscale/internal/config"
	"github.com/signalnine/qrscale/internal/dataset"
	"github.com/signalnine/qrscale/internal/decoder"
	"github.com/signalnine/qrscale/internal/result"
	"github.com/signalnine/qrscale/internal/scale"
	"github.com/signalnine/qrscale/internal/stats"
)

type RunOpts struct {
	Dataset          *dataset.Dataset
	Decoders         []string
	Factory          Factory
	Scales           []float64
	Iterations       int
	Parallel         int
	OutputsDir       string
	BinStepPx        int
	ParetoMinSamples int
	OnMissingDecoder string
	Progress         func(Progress)
}

// Summary is what a finished run produced.
type Summary struct {
	RunDir string
	Meta   *result.RunMeta
	Stats  map[string][]result.AggregateStat
}

// Run executes the full pipeline for each decoder in turn and stores the
// artifacts under a new run directory. Decoder availability is checked for
// all decoders before anything is decoded; a missing dependency aborts the
// run unless OnMissingDecoder is "skip".
func Run(ctx context.Context, opts *RunOpts) (*Summary, error) {
	if opts.Dataset == nil {
		return nil, errors.New("no dataset")
	}
	levels, err := scale.Normalize(opts.Scales)
	if err != nil {
		return nil, err
	}
	factory := opts.Factory
	if factory == nil {
		factory = decoder.New
	}
	if len(opts.Decoders) == 0 {
		return nil, errors.New("no decoders selected")
	}

	meta := &result.RunMeta{
		Dataset:     opts.Dataset.Name,
		DatasetRoot: opts.Dataset.Root,
		Samples:     opts.Dataset.Len(),
		Scales:      levels,
		Iterations:  max(opts.Iterations, 1),
		Started:     time.Now().UTC(),
	}

	var ready []string
	for _, name := range opts.Decoders {
		d, err := factory(name)
		if err != nil {
			var missing *decoder.DependencyMissingError
			if errors.As(err, &missing) && opts.OnMissingDecoder == config.OnMissingSkip {
				log.Warn().Err(err).Str("decoder", name).Msg("skipping decoder")
				meta.Decoders = append(meta.Decoders, result.DecoderRun{Name: name, Skipped: err.Error()})
				continue
			}
			return nil, err
		}
		decoder.Close(d)
		ready = append(ready, name)
	}
	if len(ready) == 0 {
		return nil, errors.New("none of the selected decoders is available")
	}

	runDir, err := result.CreateRunDir(opts.OutputsDir)
	if err != nil {
		return nil, err
	}
	summary := &Summary{RunDir: runDir, Meta: meta, Stats: make(map[string][]result.AggregateStat)}

	for _, name := range ready {
		log.Info().Str("decoder", name).Str("dataset", meta.Dataset).
			Int("samples", meta.Samples).Int("scales", len(levels)).Msg("decoder started")
		start := time.Now()

		results, err := RunDecoder(ctx, &ExperimentOpts{
			Dataset:    opts.Dataset,
			Decoder:    name,
			Factory:    factory,
			Scales:     levels,
			Iterations: meta.Iterations,
			Parallel:   opts.Parallel,
			Progress:   opts.Progress,
		})
		if err != nil {
			return summary, err
		}
		aggregated, err := writeDecoderArtifacts(result.DecoderDir(runDir, name), name, results, levels, opts)
		if err != nil {
			return summary, errors.Wrapf(err, "writing %s results", name)
		}
		summary.Stats[name] = aggregated

		dr := result.DecoderRun{Name: name, Attempts: len(results)}
		for _, r := range results {
			if r.Matched {
				dr.Matched++
			}
		}
		meta.Decoders = append(meta.Decoders, dr)
		log.Info().Str("decoder", name).Int("attempts", dr.Attempts).Int("matched", dr.Matched).
			Dur("took", time.Since(start)).Msg("decoder finished")
	}

	meta.Finished = time.Now().UTC()
	if err := result.WriteRunMeta(runDir, meta); err != nil {
		return summary, err
	}
	return summary, nil
}

func writeDecoderArtifacts(dir, name string, results []result.DecodeResult, levels []float64, opts *RunOpts) ([]result.AggregateStat, error) {
	aggregated, err := stats.Aggregate(results, levels)
	if err != nil {
		return nil, err
	}
	// Aggregate only emits rows for decoders it saw results for.
	if len(aggregated) == 0 {
		for _, l := range levels {
			aggregated = append(aggregated, result.AggregateStat{Decoder: name, Scale: l})
		}
	}
	if err := result.WriteResults(dir, results); err != nil {
		return nil, err
	}
	if err := chart.Render(dir, name, aggregated); err != nil {
		return nil, err
	}

	step := max(opts.BinStepPx, 1)
	if err := result.WriteModuleBins(dir, stats.ModuleBins(results, step)); err != nil {
		return nil, err
	}
	points := stats.ModuleSummary(results, step, max(opts.ParetoMinSamples, 1))
	pareto := &result.Pareto{Decoder: name, Points: points, Front: stats.ParetoFront(points)}
	if err := result.WritePareto(dir, pareto); err != nil {
		return nil, err
	}
	return aggregated, nil
}
