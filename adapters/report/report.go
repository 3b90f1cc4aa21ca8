// Package report renders stored analysis runs and sweeps as markdown
// documents, with HTML conversion for the API's report endpoints.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/montanaflynn/stats"

	"infodyn/domain/run"
)

// RunMarkdown renders a single run record as a markdown report.
func RunMarkdown(rec *run.Record) string {
	var doc strings.Builder

	doc.WriteString(fmt.Sprintf("# Analysis Run %s\n\n", rec.ID))
	doc.WriteString(fmt.Sprintf("- **Channels:** `%s`\n", rec.Channels.Key()))
	doc.WriteString(fmt.Sprintf("- **Measure:** %s\n", rec.Params.Measure))
	doc.WriteString(fmt.Sprintf("- **Status:** %s\n", rec.Status))
	doc.WriteString(fmt.Sprintf("- **Computed:** %s\n", rec.CreatedAt.Time().Format("2006-01-02 15:04:05 MST")))
	doc.WriteString(fmt.Sprintf("- **Runtime:** %d ms\n", rec.RuntimeMs))
	doc.WriteString(fmt.Sprintf("- **Fingerprint:** `%s`\n\n", rec.Fingerprint))

	writeParameters(&doc, rec.Params)

	if rec.Status == run.StatusFailed {
		doc.WriteString("## Error\n\n")
		doc.WriteString(fmt.Sprintf("```\n%s\n```\n", rec.Error))
		return doc.String()
	}

	if rec.Result != nil {
		writeResult(&doc, rec)
	}
	if rec.Significance != nil {
		writeSignificance(&doc, rec)
	}
	return doc.String()
}

func writeParameters(doc *strings.Builder, p run.Parameters) {
	doc.WriteString("## Parameters\n\n")
	doc.WriteString("| Parameter | Value |\n|---|---|\n")
	doc.WriteString(fmt.Sprintf("| Estimator | %s |\n", p.Estimator))
	doc.WriteString(fmt.Sprintf("| History (k) | %d |\n", p.Embedding.EmbeddingDimension))
	doc.WriteString(fmt.Sprintf("| Delay (tau) | %d |\n", p.Embedding.Delay))
	doc.WriteString(fmt.Sprintf("| Source history (l) | %d |\n", p.Embedding.SourceEmbeddingDimension))
	doc.WriteString(fmt.Sprintf("| Source delay | %d |\n", p.Embedding.SourceDelay))
	doc.WriteString(fmt.Sprintf("| Causal delay (u) | %d |\n", p.Embedding.CausalDelay))
	doc.WriteString(fmt.Sprintf("| Normalise | %t |\n", p.Normalise))
	doc.WriteString(fmt.Sprintf("| Log base | %s |\n", logBaseLabel(p.LogBase)))
	if p.Permutations > 0 {
		doc.WriteString(fmt.Sprintf("| Permutations | %d |\n", p.Permutations))
		doc.WriteString(fmt.Sprintf("| Seed | %d |\n", p.Seed))
	}
	doc.WriteString("\n")
}

func writeResult(doc *strings.Builder, rec *run.Record) {
	res := rec.Result
	doc.WriteString("## Result\n\n")
	doc.WriteString(fmt.Sprintf("**%s = %.6f %s** over %d observations.\n\n",
		res.Measure, res.AverageValue, res.Units, res.NumObservations))

	if len(res.LocalValues) == 0 {
		return
	}
	mean, _ := stats.Mean(res.LocalValues)
	sd, _ := stats.StandardDeviation(res.LocalValues)
	lo, _ := stats.Min(res.LocalValues)
	hi, _ := stats.Max(res.LocalValues)
	doc.WriteString("### Local values\n\n")
	doc.WriteString(fmt.Sprintf("- Count: %d\n", len(res.LocalValues)))
	doc.WriteString(fmt.Sprintf("- Mean: %.6f (matches the average estimate)\n", mean))
	doc.WriteString(fmt.Sprintf("- Std dev: %.6f\n", sd))
	doc.WriteString(fmt.Sprintf("- Range: [%.6f, %.6f]\n\n", lo, hi))
}

func writeSignificance(doc *strings.Builder, rec *run.Record) {
	sig := rec.Significance
	doc.WriteString("## Significance\n\n")
	verdict := "not significant at the 0.05 level"
	if sig.PValue <= 0.05 {
		verdict = "significant at the 0.05 level"
	}
	doc.WriteString(fmt.Sprintf("p = %.4f (%s), z = %.2f against %d surrogates (seed %d).\n\n",
		sig.PValue, verdict, sig.ZScore, sig.Permutations, sig.Seed))
	doc.WriteString("| Null | Value |\n|---|---|\n")
	doc.WriteString(fmt.Sprintf("| Mean | %.6f |\n", sig.Null.Mean))
	doc.WriteString(fmt.Sprintf("| Std dev | %.6f |\n", sig.Null.StdDev))
	doc.WriteString(fmt.Sprintf("| Min | %.6f |\n", sig.Null.Min))
	doc.WriteString(fmt.Sprintf("| Max | %.6f |\n", sig.Null.Max))
	doc.WriteString(fmt.Sprintf("| 95th percentile | %.6f |\n", sig.Null.Percentile95))
	doc.WriteString(fmt.Sprintf("| 99th percentile | %.6f |\n\n", sig.Null.Percentile99))
}

// SweepMarkdown renders an all-pairs sweep as a markdown report with the
// estimate matrix laid out source-by-row.
func SweepMarkdown(sw *run.SweepRecord) string {
	var doc strings.Builder

	doc.WriteString(fmt.Sprintf("# Sweep %s\n\n", sw.ID))
	doc.WriteString(fmt.Sprintf("- **Measure:** %s\n", sw.Params.Measure))
	doc.WriteString(fmt.Sprintf("- **Channels:** %d (%s)\n", len(sw.Channels), strings.Join(sw.Channels, ", ")))
	doc.WriteString(fmt.Sprintf("- **Pairs:** %d\n", len(sw.Pairs)))
	doc.WriteString(fmt.Sprintf("- **Computed:** %s\n", sw.CreatedAt.Time().Format("2006-01-02 15:04:05 MST")))
	doc.WriteString(fmt.Sprintf("- **Runtime:** %d ms\n\n", sw.RuntimeMs))

	writeParameters(&doc, sw.Params)

	doc.WriteString("## Estimates (source row, destination column)\n\n")
	doc.WriteString("| |")
	for _, name := range sw.Channels {
		doc.WriteString(fmt.Sprintf(" %s |", name))
	}
	doc.WriteString("\n|---|")
	for range sw.Channels {
		doc.WriteString("---|")
	}
	doc.WriteString("\n")
	matrix := sw.Matrix()
	for i, row := range matrix {
		doc.WriteString(fmt.Sprintf("| **%s** |", sw.Channels[i]))
		for j, v := range row {
			if i == j {
				doc.WriteString(" - |")
			} else {
				doc.WriteString(fmt.Sprintf(" %.4f |", v))
			}
		}
		doc.WriteString("\n")
	}
	doc.WriteString("\n")

	writeFailedPairs(&doc, sw)
	writeTopPairs(&doc, sw)
	return doc.String()
}

func writeFailedPairs(doc *strings.Builder, sw *run.SweepRecord) {
	var failed []run.PairValue
	for _, p := range sw.Pairs {
		if p.Error != "" {
			failed = append(failed, p)
		}
	}
	if len(failed) == 0 {
		return
	}
	doc.WriteString("## Failed pairs\n\n")
	for _, p := range failed {
		doc.WriteString(fmt.Sprintf("- `%s->%s`: %s\n", p.Source, p.Dest, p.Error))
	}
	doc.WriteString("\n")
}

func writeTopPairs(doc *strings.Builder, sw *run.SweepRecord) {
	best := struct {
		pair  *run.PairValue
		value float64
	}{}
	for i := range sw.Pairs {
		p := &sw.Pairs[i]
		if p.Error == "" && (best.pair == nil || p.Value > best.value) {
			best.pair = p
			best.value = p.Value
		}
	}
	if best.pair == nil {
		return
	}
	doc.WriteString("## Strongest link\n\n")
	doc.WriteString(fmt.Sprintf("`%s->%s` = %.6f %s", best.pair.Source, best.pair.Dest, best.value, unitsLabel(sw.Params.LogBase)))
	if sig := best.pair.Significance; sig != nil {
		doc.WriteString(fmt.Sprintf(" (p = %.4f)", sig.PValue))
	}
	doc.WriteString("\n")
}

func logBaseLabel(base float64) string {
	if base == 0 {
		return "e (nats)"
	}
	return fmt.Sprintf("%g", base)
}

func unitsLabel(base float64) string {
	switch base {
	case 2:
		return "bits"
	case 0:
		return "nats"
	default:
		return fmt.Sprintf("log%g", base)
	}
}

// ToHTML converts a markdown report into a standalone HTML page.
func ToHTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := p.Parse([]byte(md))
	renderer := html.NewRenderer(html.RendererOptions{
		Title: "infodyn report",
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.Render(doc, renderer)
}

// Storage persists rendered reports under a base directory.
type Storage struct {
	baseDir string
}

// NewStorage creates report storage rooted at baseDir.
func NewStorage(baseDir string) *Storage {
	return &Storage{baseDir: baseDir}
}

// SaveRun writes a run report to disk and returns the file path.
func (s *Storage) SaveRun(rec *run.Record) (string, error) {
	name := fmt.Sprintf("%s_run_%s.md", rec.CreatedAt.Time().Format("2006-01-02_15-04-05"), rec.ID)
	return s.save(name, RunMarkdown(rec))
}

// SaveSweep writes a sweep report to disk and returns the file path.
func (s *Storage) SaveSweep(sw *run.SweepRecord) (string, error) {
	name := fmt.Sprintf("%s_sweep_%s.md", sw.CreatedAt.Time().Format("2006-01-02_15-04-05"), sw.ID)
	return s.save(name, SweepMarkdown(sw))
}

func (s *Storage) save(name, content string) (string, error) {
	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(s.baseDir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}
