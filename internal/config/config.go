package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/signalnine/qrscale/internal/decoder"
	"github.com/signalnine/qrscale/internal/scale"
)

// Missing decoder policies.
const (
	OnMissingAbort = "abort"
	OnMissingSkip  = "skip"
)

type Config struct {
	DatasetsDir      string   `yaml:"datasets_dir"`
	OutputsDir       string   `yaml:"outputs_dir"`
	Dataset          string   `yaml:"dataset"`
	Decoders         []string `yaml:"decoders"`
	Scales           Scales   `yaml:"scales"`
	Iterations       int      `yaml:"iterations"`
	Parallel         int      `yaml:"parallel"`
	ModuleBinStepPx  int      `yaml:"module_bin_step_px"`
	ParetoMinSamples int      `yaml:"pareto_min_samples"`
	OnMissingDecoder string   `yaml:"on_missing_decoder"`
	Server           Server   `yaml:"server"`
}

// Scales is either an explicit list of factors or a linear range.
type Scales struct {
	Values []float64 `yaml:"values"`
	Min    float64   `yaml:"min"`
	Max    float64   `yaml:"max"`
	Count  int       `yaml:"count"`
}

type Server struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

// Levels expands s into the sorted, deduplicated factors to sweep.
func (s Scales) Levels() ([]float64, error) {
	if len(s.Values) > 0 {
		return scale.Normalize(s.Values)
	}
	return scale.Linspace(s.Min, s.Max, s.Count)
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	return &cfg, nil
}

// LoadOrDefault loads path, falling back to Default when path does not
// exist and missingOK is set.
func LoadOrDefault(path string, missingOK bool) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && missingOK {
		return Default(), nil
	}
	return Load(path)
}

func applyDefaults(cfg *Config) {
	if cfg.DatasetsDir == "" {
		cfg.DatasetsDir = "datasets"
	}
	if cfg.OutputsDir == "" {
		cfg.OutputsDir = "outputs"
	}
	if len(cfg.Decoders) == 0 {
		cfg.Decoders = []string{decoder.OpenCV, decoder.ZXing}
	}
	if len(cfg.Scales.Values) == 0 {
		if cfg.Scales.Min == 0 {
			cfg.Scales.Min = 0.05
		}
		if cfg.Scales.Max == 0 {
			cfg.Scales.Max = 1.0
		}
		if cfg.Scales.Count == 0 {
			cfg.Scales.Count = 20
		}
	}
	if cfg.Iterations == 0 {
		cfg.Iterations = 1
	}
	if cfg.Parallel == 0 {
		cfg.Parallel = 1
	}
	if cfg.ModuleBinStepPx == 0 {
		cfg.ModuleBinStepPx = 2
	}
	if cfg.ParetoMinSamples == 0 {
		cfg.ParetoMinSamples = 10
	}
	if cfg.OnMissingDecoder == "" {
		cfg.OnMissingDecoder = OnMissingAbort
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "127.0.0.1:8000"
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 512
	}
}

// Validate checks a config after defaults have been applied. Command line
// overrides call it again.
func (cfg *Config) Validate() error {
	known := make(map[string]bool)
	for _, n := range decoder.Names() {
		known[n] = true
	}
	seen := make(map[string]bool)
	for _, d := range cfg.Decoders {
		if !known[d] {
			return errors.Errorf("unknown decoder %q", d)
		}
		if seen[d] {
			return errors.Errorf("decoder %q listed twice", d)
		}
		seen[d] = true
	}
	if _, err := cfg.Scales.Levels(); err != nil {
		return errors.Wrap(err, "scales")
	}
	if cfg.Iterations < 1 {
		return errors.New("iterations must be at least 1")
	}
	if cfg.Parallel < 1 {
		return errors.New("parallel must be at least 1")
	}
	if cfg.ModuleBinStepPx < 1 {
		return errors.New("module_bin_step_px must be at least 1")
	}
	if cfg.ParetoMinSamples < 1 {
		return errors.New("pareto_min_samples must be at least 1")
	}
	switch cfg.OnMissingDecoder {
	case OnMissingAbort, OnMissingSkip:
	default:
		return errors.Errorf("on_missing_decoder must be %q or %q, got %q", OnMissingAbort, OnMissingSkip, cfg.OnMissingDecoder)
	}
	if cfg.Server.MaxUploadMB < 1 {
		return errors.New("server.max_upload_mb must be at least 1")
	}
	return nil
}
