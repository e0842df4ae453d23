package runner

import (
	"context"
	"image"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/signalnine/qrscale/internal/dataset"
	"github.com/signalnine/qrscale/internal/decoder"
	"github.com/signalnine/qrscale/internal/evaluate"
	"github.com/signalnine/qrscale/internal/result"
	"github.com/signalnine/qrscale/internal/scale"
)

// Factory constructs a fresh decoder instance by name.
type Factory func(name string) (decoder.Decoder, error)

// Progress is reported after every sample a decoder finishes.
type Progress struct {
	Decoder   string `json:"decoder"`
	Seen      int    `json:"seen"`
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
}

type ExperimentOpts struct {
	Dataset    *dataset.Dataset
	Decoder    string
	Factory    Factory
	Scales     []float64
	Iterations int
	Parallel   int
	Progress   func(Progress)
}

// RunDecoder decodes every sample of the dataset at every scale with one
// decoder. Results are ordered by sample, then by ascending scale, and there
// is exactly one per (sample, scale): an image that cannot be read still
// produces failed attempts rather than being dropped.
//
// With Parallel > 1 samples are spread over that many workers, each holding
// its own decoder instance.
func RunDecoder(ctx context.Context, opts *ExperimentOpts) ([]result.DecodeResult, error) {
	levels, err := scale.Normalize(opts.Scales)
	if err != nil {
		return nil, err
	}
	iterations := max(opts.Iterations, 1)
	factory := opts.Factory
	if factory == nil {
		factory = decoder.New
	}

	var samples []dataset.Sample
	for s := range opts.Dataset.Samples() {
		samples = append(samples, s)
	}
	workers := max(1, min(opts.Parallel, len(samples)))

	// Decoders are checked out of this pool by whichever job runs next.
	pool := make(chan decoder.Decoder, workers)
	for i := 0; i < workers; i++ {
		d, err := factory(opts.Decoder)
		if err != nil {
			close(pool)
			for d := range pool {
				decoder.Close(d)
			}
			return nil, err
		}
		pool <- d
	}
	defer func() {
		close(pool)
		for d := range pool {
			decoder.Close(d)
		}
	}()

	var (
		mu        sync.Mutex
		seen      int
		processed int
	)
	perSample := make([][]result.DecodeResult, len(samples))
	jobs := make([]Job, len(samples))
	for i, s := range samples {
		jobs[i] = func(context.Context) error {
			d := <-pool
			defer func() { pool <- d }()

			perSample[i] = decodeSample(d, s, levels, iterations)

			mu.Lock()
			defer mu.Unlock()
			seen++
			processed += len(levels)
			log.Debug().Str("decoder", opts.Decoder).Str("sample", s.ID).
				Int("seen", seen).Int("total", len(samples)).Msg("sample decoded")
			if opts.Progress != nil {
				opts.Progress(Progress{Decoder: opts.Decoder, Seen: seen, Total: len(samples), Processed: processed})
			}
			return nil
		}
	}
	RunPool(ctx, workers, jobs)
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(err, "decoder %s interrupted", opts.Decoder)
	}

	out := make([]result.DecodeResult, 0, len(samples)*len(levels))
	for _, rs := range perSample {
		out = append(out, rs...)
	}
	return out, nil
}

func decodeSample(d decoder.Decoder, s dataset.Sample, levels []float64, iterations int) []result.DecodeResult {
	img, loadErr := s.LoadImage()
	if loadErr != nil {
		log.Debug().Err(loadErr).Str("sample", s.ID).Msg("image unreadable, recording failed attempts")
	}

	out := make([]result.DecodeResult, 0, len(levels))
	for _, f := range levels {
		r := result.DecodeResult{
			SampleID:   s.ID,
			ImagePath:  s.ImagePath,
			Decoder:    d.Name(),
			Scale:      f,
			Expected:   s.Payload,
			Iterations: iterations,
		}
		if s.ModuleSizePx > 0 {
			r.ModuleSizePx = s.ModuleSizePx
			r.EffectiveModulePx = s.ModuleSizePx * f
		}
		if loadErr != nil {
			r.Error = loadErr.Error()
			out = append(out, r)
			continue
		}

		scaled, err := scale.Image(img, f)
		if err != nil {
			r.Error = err.Error()
			out = append(out, r)
			continue
		}
		r.Width, r.Height = scaled.Bounds().Dx(), scaled.Bounds().Dy()
		attempt(d, scaled, s.Payload, iterations, &r)
		out = append(out, r)
	}
	return out
}

// attempt decodes img iterations times, keeping the fastest time and the
// most common payload.
func attempt(d decoder.Decoder, img image.Image, expected string, iterations int, r *result.DecodeResult) {
	outcomes := make([]decoder.Outcome, 0, iterations)
	fastest := time.Duration(math.MaxInt64)
	for i := 0; i < iterations; i++ {
		o, elapsed := decoder.Measure(d, img)
		outcomes = append(outcomes, o)
		fastest = min(fastest, elapsed)
	}
	best, hits := evaluate.Select(outcomes)
	r.Found = best.Found
	r.Hits = hits
	r.Matched = evaluate.Matches(best, expected)
	r.ElapsedMs = float64(fastest.Nanoseconds()) / 1e6
	if best.Found {
		payload := best.Payload
		r.RawPayload = &payload
	}
}
