package result

import "time"

// DecodeResult is one (sample, scale) attempt by one decoder.
type DecodeResult struct {
	SampleID          string  `json:"sample_id"`
	ImagePath         string  `json:"image_path"`
	Decoder           string  `json:"decoder"`
	Scale             float64 `json:"scale"`
	Matched           bool    `json:"matched"`
	Found             bool    `json:"found"`
	ElapsedMs         float64 `json:"elapsed_ms"`
	RawPayload        *string `json:"raw_payload,omitempty"`
	Expected          string  `json:"expected"`
	Iterations        int     `json:"iterations"`
	Hits              int     `json:"hits"`
	ModuleSizePx      float64 `json:"module_size_px,omitempty"`
	EffectiveModulePx float64 `json:"effective_module_px,omitempty"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	Error             string  `json:"error,omitempty"`
}

// AggregateStat summarizes every attempt sharing a (decoder, scale) key.
type AggregateStat struct {
	Decoder      string  `json:"decoder"`
	Scale        float64 `json:"scale"`
	SuccessRate  float64 `json:"success_rate"`
	MeanTimeMs   float64 `json:"mean_time_ms"`
	MedianTimeMs float64 `json:"median_time_ms"`
	SampleCount  int     `json:"sample_count"`
	MatchedCount int     `json:"matched_count"`
}

// ModuleBin summarizes attempts whose effective module size falls in one bin.
type ModuleBin struct {
	ModuleSize   int     `json:"module_size"`
	Count        int     `json:"count"`
	CountMatched int     `json:"count_matched"`
	CountFailed  int     `json:"count_failed"`
	SuccessRate  float64 `json:"success_rate"`
	MeanTimeMs   float64 `json:"mean_time_ms"`
}

// ModulePoint is a per-bin latency/accuracy summary used for the Pareto front.
type ModulePoint struct {
	ModuleSize   int     `json:"module_size"`
	N            int     `json:"n"`
	TimeMedianMs float64 `json:"time_median_ms"`
	TimeP90Ms    float64 `json:"time_p90_ms"`
	SuccessRate  float64 `json:"success_rate"`
}

// Pareto holds a decoder's module summary and the non-dominated subset.
type Pareto struct {
	Decoder string        `json:"decoder"`
	Points  []ModulePoint `json:"points"`
	Front   []ModulePoint `json:"front"`
}

// RunMeta describes one invocation of the pipeline.
type RunMeta struct {
	Dataset     string       `json:"dataset"`
	DatasetRoot string       `json:"dataset_root"`
	Samples     int          `json:"samples"`
	Scales      []float64    `json:"scales"`
	Iterations  int          `json:"iterations"`
	Started     time.Time    `json:"started"`
	Finished    time.Time    `json:"finished"`
	Decoders    []DecoderRun `json:"decoders"`
}

type DecoderRun struct {
	Name     string `json:"name"`
	Attempts int    `json:"attempts"`
	Matched  int    `json:"matched"`
	Skipped  string `json:"skipped,omitempty"`
}
