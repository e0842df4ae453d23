package result

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

const (
	RunMetaFile  = "run.json"
	ResultsFile  = "results.json"
	ResultsCSV   = "results.csv"
	StatsFile    = "stats.json"
	ModulesFile  = "modules.json"
	ParetoFile   = "pareto.json"
	AccuracyPlot = "accuracy.png"
	TimePlot     = "time.png"
)

// CreateRunDir makes a new directory under <baseDir>/runs named by the
// current UTC time and points <baseDir>/latest at it. Concurrent callers get
// distinct directories; a name already taken gets a numeric suffix.
func CreateRunDir(baseDir string) (string, error) {
	runsDir, err := filepath.Abs(filepath.Join(baseDir, "runs"))
	if err != nil {
		return "", errors.Wrap(err, "resolving run dir")
	}
	if err := os.MkdirAll(runsDir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating runs dir")
	}
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05.000")
	runDir := filepath.Join(runsDir, stamp)
	for i := 1; ; i++ {
		err := os.Mkdir(runDir, 0o755)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			return "", errors.Wrap(err, "creating run dir")
		}
		runDir = filepath.Join(runsDir, fmt.Sprintf("%s-%d", stamp, i))
	}
	if err := linkLatest(baseDir, runDir); err != nil {
		return "", err
	}
	return runDir, nil
}

// linkLatest replaces <baseDir>/latest with a symlink to runDir by renaming a
// temporary link over it.
func linkLatest(baseDir, runDir string) error {
	latest := filepath.Join(baseDir, "latest")
	tmp := filepath.Join(baseDir, ".latest-"+filepath.Base(runDir))
	if err := os.Symlink(runDir, tmp); err != nil {
		return errors.Wrap(err, "creating latest symlink")
	}
	if err := os.Rename(tmp, latest); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "replacing latest symlink")
	}
	return nil
}

// DecoderDir is the per-decoder output subtree of a run.
func DecoderDir(runDir, decoder string) string {
	return filepath.Join(runDir, decoder)
}

// WriteResults stores results as both JSON and CSV in dir.
func WriteResults(dir string, results []DecodeResult) error {
	if err := writeJSON(filepath.Join(dir, ResultsFile), results); err != nil {
		return err
	}
	return writeResultsCSV(filepath.Join(dir, ResultsCSV), results)
}

func ReadResults(dir string) ([]DecodeResult, error) {
	var results []DecodeResult
	if err := readJSON(filepath.Join(dir, ResultsFile), &results); err != nil {
		return nil, err
	}
	return results, nil
}

func WriteStats(dir string, stats []AggregateStat) error {
	return writeJSON(filepath.Join(dir, StatsFile), stats)
}

func ReadStats(dir string) ([]AggregateStat, error) {
	var stats []AggregateStat
	if err := readJSON(filepath.Join(dir, StatsFile), &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func WriteModuleBins(dir string, bins []ModuleBin) error {
	return writeJSON(filepath.Join(dir, ModulesFile), bins)
}

func ReadModuleBins(dir string) ([]ModuleBin, error) {
	var bins []ModuleBin
	if err := readJSON(filepath.Join(dir, ModulesFile), &bins); err != nil {
		return nil, err
	}
	return bins, nil
}

func WritePareto(dir string, p *Pareto) error {
	return writeJSON(filepath.Join(dir, ParetoFile), p)
}

func ReadPareto(dir string) (*Pareto, error) {
	var p Pareto
	if err := readJSON(filepath.Join(dir, ParetoFile), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func WriteRunMeta(runDir string, meta *RunMeta) error {
	return writeJSON(filepath.Join(runDir, RunMetaFile), meta)
}

func ReadRunMeta(runDir string) (*RunMeta, error) {
	var meta RunMeta
	if err := readJSON(filepath.Join(runDir, RunMetaFile), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "creating output dir")
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "marshaling %s", filepath.Base(path))
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "writing %s", path)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading %s", filepath.Base(path))
	}
	return errors.Wrapf(json.Unmarshal(data, v), "parsing %s", path)
}

var csvHeader = []string{
	"sample_id", "decoder", "scale", "matched", "found", "elapsed_ms",
	"raw_payload", "expected", "iterations", "hits",
	"module_size_px", "effective_module_px", "width", "height",
}

func writeResultsCSV(path string, results []DecodeResult) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return errors.Wrap(err, "writing csv header")
	}
	for _, r := range results {
		payload := ""
		if r.RawPayload != nil {
			payload = *r.RawPayload
		}
		rec := []string{
			r.SampleID,
			r.Decoder,
			formatFloat(r.Scale),
			strconv.FormatBool(r.Matched),
			strconv.FormatBool(r.Found),
			formatFloat(r.ElapsedMs),
			payload,
			r.Expected,
			strconv.Itoa(r.Iterations),
			strconv.Itoa(r.Hits),
			formatFloat(r.ModuleSizePx),
			formatFloat(r.EffectiveModulePx),
			strconv.Itoa(r.Width),
			strconv.Itoa(r.Height),
		}
		if err := w.Write(rec); err != nil {
			return errors.Wrap(err, "writing csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "flushing csv")
	}
	return errors.Wrap(f.Close(), "closing csv")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
