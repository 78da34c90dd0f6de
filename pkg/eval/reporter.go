package eval

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Reporter formats and outputs an EvalResult, grounded on the teacher's
// pkg/eval/reporter.go (summary/detailed/compact/JSON renderings of the
// same result struct).
type Reporter struct {
	writer io.Writer
}

// NewReporter creates a Reporter writing to w (os.Stdout if nil).
func NewReporter(w io.Writer) *Reporter {
	if w == nil {
		w = os.Stdout
	}
	return &Reporter{writer: w}
}

// PrintSummary prints pass/fail counts and per-case error/offset values.
func (r *Reporter) PrintSummary(result *EvalResult) {
	w := r.writer
	fmt.Fprintln(w, "Senseye accuracy evaluation")
	fmt.Fprintf(w, "Ran at:  %s\n", result.RanAt.Format(time.RFC3339))
	fmt.Fprintln(w)

	var passRate float64
	if result.TotalTests > 0 {
		passRate = float64(result.PassedTests) / float64(result.TotalTests) * 100
	}
	fmt.Fprintf(w, "Tests: %d/%d passed (%.1f%%)\n", result.PassedTests, result.TotalTests, passRate)
	fmt.Fprintln(w)

	if len(result.Trilateration) > 0 {
		fmt.Fprintln(w, "Trilateration (C5):")
		for _, t := range result.Trilateration {
			status := r.statusMark(t.Passed, t.Err)
			if t.Err != "" {
				fmt.Fprintf(w, "  %s %-20s error: %s\n", status, t.Name, t.Err)
				continue
			}
			fmt.Fprintf(w, "  %s %-20s error=%.3fm inliers=%d iters=%d\n",
				status, t.Name, t.ErrorM, len(t.InlierIdx), t.Iterations)
		}
		fmt.Fprintln(w)
	}

	if len(result.Tomography) > 0 {
		fmt.Fprintln(w, "Tomography (C6):")
		for _, t := range result.Tomography {
			status := r.statusMark(t.Passed, t.Err)
			if t.Err != "" {
				fmt.Fprintf(w, "  %s %-20s error: %s\n", status, t.Name, t.Err)
				continue
			}
			fmt.Fprintf(w, "  %s %-20s peak_cell=%d offset=%d ridge_alpha=%.3f\n",
				status, t.Name, t.PeakCell, t.CellOffset, t.RidgeAlpha)
		}
		fmt.Fprintln(w)
	}
}

func (r *Reporter) statusMark(passed bool, errStr string) string {
	if errStr != "" {
		return "ERR "
	}
	if passed {
		return "PASS"
	}
	return "FAIL"
}

// PrintCompact prints a one-line summary.
func (r *Reporter) PrintCompact(result *EvalResult) {
	status := "PASS"
	if result.FailedTests > 0 {
		status = "FAIL"
	}
	fmt.Fprintf(r.writer, "[%s] %d/%d tests passed\n", status, result.PassedTests, result.TotalTests)
}

// PrintJSON writes result as indented JSON to the reporter's writer.
func (r *Reporter) PrintJSON(result *EvalResult) error {
	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// PrintYAML writes result as YAML, exercising the same library
// pkg/config uses for its schema round trip.
func (r *Reporter) PrintYAML(result *EvalResult) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("eval: marshaling yaml: %w", err)
	}
	_, err = r.writer.Write(data)
	return err
}

// SaveJSON saves result to a JSON file at path.
func (r *Reporter) SaveJSON(result *EvalResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("eval: creating output file: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
