package app

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/output"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/RyanBlaney/kaldi-compliance/pkg/compliance"
	"github.com/RyanBlaney/kaldi-compliance/pkg/kaldi"
)

// Formatter renders a suite report
type Formatter interface {
	Format(report *compliance.Report) ([]byte, error)
}

// NewFormatter picks the formatter for an output format name
func NewFormatter(format string, precision int, showSkipped bool) (Formatter, error) {
	switch format {
	case "json":
		return &JSONFormatter{}, nil
	case "yaml":
		return &YAMLFormatter{}, nil
	case "table", "":
		return &TableFormatter{Precision: precision, ShowSkipped: showSkipped}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// JSONFormatter serialises the flattened report with the shared output
// package
type JSONFormatter struct{}

func (f *JSONFormatter) Format(report *compliance.Report) ([]byte, error) {
	return serialize("json", cleanReport(report), true)
}

type YAMLFormatter struct{}

func (f *YAMLFormatter) Format(report *compliance.Report) ([]byte, error) {
	return serialize("yaml", cleanReport(report), true)
}

// serialize renders plain data as json or yaml. JSON output gets a
// trailing newline so it can be piped line-wise.
func serialize(format string, data any, pretty bool) ([]byte, error) {
	var formatter output.Formatter
	switch format {
	case "json":
		formatter = &output.JSONFormatter{}
	case "yaml":
		formatter = &output.YAMLFormatter{}
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	out, err := formatter.Format(data, pretty)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s output: %w", format, err)
	}
	if format == "json" {
		out = append(out, '\n')
	}
	return out, nil
}

// TableFormatter prints one line per case followed by a per-kind summary
type TableFormatter struct {
	Precision   int
	ShowSkipped bool
}

func (f *TableFormatter) Format(report *compliance.Report) ([]byte, error) {
	var buf bytes.Buffer
	title := cases.Title(language.English)

	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CASE\tSTATUS\tSHAPE\tDETAIL")
	for _, r := range report.Results {
		if r.Status == compliance.StatusSkipped && !f.ShowSkipped {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, strings.ToUpper(string(r.Status)), shapeText(r), f.detail(r))
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}

	buf.WriteString("\n")
	w = tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FEATURE\tPASSED\tFAILED\tSKIPPED\tERRORED")
	for _, kind := range compliance.AllKinds() {
		var s compliance.Summary
		for _, r := range report.Results {
			if r.Case.Kind == kind {
				s.Add(r.Status)
			}
		}
		if s.Total == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", title.String(string(kind)), s.Passed, s.Failed, s.Skipped, s.Errored)
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}

	fmt.Fprintf(&buf, "\n%d cases: %d passed, %d failed, %d skipped, %d errored (%s)\n",
		report.Summary.Total, report.Summary.Passed, report.Summary.Failed,
		report.Summary.Skipped, report.Summary.Errored, report.Duration.Round(time.Millisecond))

	return buf.Bytes(), nil
}

func (f *TableFormatter) detail(r compliance.Result) string {
	if r.Mismatch != nil && !r.Mismatch.ShapeMismatch() {
		m := r.Mismatch
		return fmt.Sprintf("%d/%d off, worst [%d,%d] got %s want %s",
			m.Count, m.Total, m.Row, m.Col, f.number(m.Actual), f.number(m.Expected))
	}
	if r.Err != nil {
		if code := kaldi.Code(r.Err); code != "" {
			return code + ": " + firstLine(r.Message)
		}
	}
	return firstLine(r.Message)
}

func (f *TableFormatter) number(v float64) string {
	return strconv.FormatFloat(v, 'g', f.Precision, 64)
}

func shapeText(r compliance.Result) string {
	if r.Rows == 0 && r.Cols == 0 {
		return "-"
	}
	return fmt.Sprintf("%dx%d", r.Rows, r.Cols)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// cleanReport flattens the report into plain maps for serialisation
func cleanReport(report *compliance.Report) map[string]any {
	results := make([]map[string]any, 0, len(report.Results))
	for _, r := range report.Results {
		entry := map[string]any{
			"name":        r.Name,
			"kind":        string(r.Case.Kind),
			"index":       r.Case.Index,
			"args":        r.Args,
			"status":      string(r.Status),
			"duration_ms": r.Duration.Milliseconds(),
		}
		if r.Rows > 0 || r.Cols > 0 {
			entry["shape"] = []int{r.Rows, r.Cols}
		}
		if r.Message != "" {
			entry["message"] = r.Message
		}
		if code := kaldi.Code(r.Err); code != "" {
			entry["error_code"] = code
		}
		if m := r.Mismatch; m != nil && !m.ShapeMismatch() {
			entry["mismatch"] = map[string]any{
				"count":    m.Count,
				"total":    m.Total,
				"row":      m.Row,
				"col":      m.Col,
				"actual":   sanitizeFloat(m.Actual),
				"expected": sanitizeFloat(m.Expected),
				"allowed":  sanitizeFloat(m.Allowed),
			}
		}
		results = append(results, entry)
	}

	return map[string]any{
		"wave_file":   report.WaveFile,
		"started_at":  report.StartedAt,
		"duration_ms": report.Duration.Milliseconds(),
		"summary":     report.Summary,
		"results":     results,
	}
}

// sanitizeFloat maps values JSON cannot carry onto strings
func sanitizeFloat(v float64) any {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	default:
		return v
	}
}

// sanitizeMatrix prepares a feature matrix for JSON or YAML output
func sanitizeMatrix(m [][]float64) [][]any {
	out := make([][]any, len(m))
	for i, row := range m {
		out[i] = make([]any, len(row))
		for j, v := range row {
			out[i][j] = sanitizeFloat(v)
		}
	}
	return out
}
