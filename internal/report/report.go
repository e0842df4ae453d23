package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/signalnine/qrscale/internal/result"
)

// ReliableRate is the success rate a scale must reach to count as reliable.
const ReliableRate = 0.9

type DecoderSummary struct {
	Name        string  `json:"name"`
	Skipped     string  `json:"skipped,omitempty"`
	Attempts    int     `json:"attempts"`
	SuccessRate float64 `json:"success_rate"`
	MeanTimeMs  float64 `json:"mean_time_ms"`
	// MinReliableScale is the smallest scale reaching ReliableRate, 0 if none.
	MinReliableScale float64                `json:"min_reliable_scale"`
	Stats            []result.AggregateStat `json:"stats,omitempty"`
	ParetoFront      []result.ModulePoint   `json:"pareto_front,omitempty"`
}

type Report struct {
	Dataset  string           `json:"dataset"`
	Samples  int              `json:"samples"`
	Scales   []float64        `json:"scales"`
	Decoders []DecoderSummary `json:"decoders"`
}

// Generate reads a stored run and writes a comparison across decoders.
func Generate(runDir, format string, w io.Writer) error {
	rep, err := Load(runDir)
	if err != nil {
		return err
	}
	switch format {
	case "markdown":
		return writeMarkdown(rep, w)
	case "json":
		return writeJSON(rep, w)
	case "table", "":
		return writeTable(rep, w)
	default:
		return errors.Errorf("unknown format %q", format)
	}
}

// Load builds a Report from the artifacts in runDir.
func Load(runDir string) (*Report, error) {
	meta, err := result.ReadRunMeta(runDir)
	if err != nil {
		return nil, err
	}
	rep := &Report{Dataset: meta.Dataset, Samples: meta.Samples, Scales: meta.Scales}
	for _, d := range meta.Decoders {
		if d.Skipped != "" {
			rep.Decoders = append(rep.Decoders, DecoderSummary{Name: d.Name, Skipped: d.Skipped})
			continue
		}
		dir := result.DecoderDir(runDir, d.Name)
		stats, err := result.ReadStats(dir)
		if err != nil {
			return nil, err
		}
		s := summarize(d.Name, stats)
		if p, err := result.ReadPareto(dir); err == nil {
			s.ParetoFront = p.Front
		} else {
			log.Debug().Err(err).Str("decoder", d.Name).Msg("no pareto data")
		}
		rep.Decoders = append(rep.Decoders, s)
	}
	sort.SliceStable(rep.Decoders, func(i, j int) bool {
		return rep.Decoders[i].Name < rep.Decoders[j].Name
	})
	return rep, nil
}

func summarize(name string, stats []result.AggregateStat) DecoderSummary {
	s := DecoderSummary{Name: name, Stats: stats}
	var matched int
	var totalMs float64
	for _, st := range stats {
		s.Attempts += st.SampleCount
		matched += st.MatchedCount
		totalMs += st.MeanTimeMs * float64(st.SampleCount)
		if st.SampleCount > 0 && st.SuccessRate >= ReliableRate && (s.MinReliableScale == 0 || st.Scale < s.MinReliableScale) {
			s.MinReliableScale = st.Scale
		}
	}
	if s.Attempts > 0 {
		s.SuccessRate = float64(matched) / float64(s.Attempts)
		s.MeanTimeMs = totalMs / float64(s.Attempts)
	}
	return s
}

func active(rep *Report) []DecoderSummary {
	var out []DecoderSummary
	for _, d := range rep.Decoders {
		if d.Skipped == "" {
			out = append(out, d)
		}
	}
	return out
}

// statAt finds the row for scale, if the decoder has one.
func statAt(d DecoderSummary, scale float64) (result.AggregateStat, bool) {
	for _, s := range d.Stats {
		if s.Scale == scale {
			return s, true
		}
	}
	return result.AggregateStat{}, false
}

func fmtScale(v float64) string {
	if v == 0 {
		return "-"
	}
	return fmt.Sprintf("%.3g", v)
}

func writeTable(rep *Report, w io.Writer) error {
	fmt.Fprintf(w, "Dataset: %s (%d samples, %d scales)\n\n", rep.Dataset, rep.Samples, len(rep.Scales))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DECODER\tATTEMPTS\tSUCCESS\tMEAN MS\tMIN RELIABLE SCALE")
	fmt.Fprintln(tw, strings.Repeat("-", 70))
	for _, d := range rep.Decoders {
		if d.Skipped != "" {
			fmt.Fprintf(tw, "%s\tskipped\t\t\t%s\n", d.Name, d.Skipped)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%.0f%%\t%.2f\t%s\n",
			d.Name, d.Attempts, d.SuccessRate*100, d.MeanTimeMs, fmtScale(d.MinReliableScale))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	decoders := active(rep)
	if len(decoders) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := []string{"SCALE"}
	for _, d := range decoders {
		header = append(header, strings.ToUpper(d.Name)+" RATE", strings.ToUpper(d.Name)+" MS")
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, scale := range rep.Scales {
		row := []string{fmt.Sprintf("%.3g", scale)}
		for _, d := range decoders {
			if s, ok := statAt(d, scale); ok && s.SampleCount > 0 {
				row = append(row, fmt.Sprintf("%.0f%%", s.SuccessRate*100), fmt.Sprintf("%.2f", s.MeanTimeMs))
			} else {
				row = append(row, "-", "-")
			}
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, d := range decoders {
		if len(d.ParetoFront) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s pareto front (module px: median ms, success):", d.Name)
		for _, p := range d.ParetoFront {
			fmt.Fprintf(w, " %d: %.2f, %.0f%%;", p.ModuleSize, p.TimeMedianMs, p.SuccessRate*100)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func writeMarkdown(rep *Report, w io.Writer) error {
	fmt.Fprintf(w, "## %s\n\n", rep.Dataset)
	fmt.Fprintln(w, "| Decoder | Attempts | Success | Mean ms | Min reliable scale |")
	fmt.Fprintln(w, "|---|---|---|---|---|")
	for _, d := range rep.Decoders {
		if d.Skipped != "" {
			fmt.Fprintf(w, "| %s | skipped | | | %s |\n", d.Name, d.Skipped)
			continue
		}
		fmt.Fprintf(w, "| %s | %d | %.0f%% | %.2f | %s |\n",
			d.Name, d.Attempts, d.SuccessRate*100, d.MeanTimeMs, fmtScale(d.MinReliableScale))
	}

	decoders := active(rep)
	if len(decoders) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	header := "| Scale |"
	sep := "|---|"
	for _, d := range decoders {
		header += fmt.Sprintf(" %s rate | %s ms |", d.Name, d.Name)
		sep += "---|---|"
	}
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, sep)
	for _, scale := range rep.Scales {
		line := fmt.Sprintf("| %.3g |", scale)
		for _, d := range decoders {
			if s, ok := statAt(d, scale); ok && s.SampleCount > 0 {
				line += fmt.Sprintf(" %.0f%% | %.2f |", s.SuccessRate*100, s.MeanTimeMs)
			} else {
				line += " - | - |"
			}
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func writeJSON(rep *Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
