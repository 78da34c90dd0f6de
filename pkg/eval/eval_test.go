package eval

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/closedform/senseye/pkg/tomography"
	"github.com/closedform/senseye/pkg/trilateration"
)

func defaultTriConfig() trilateration.Config {
	return trilateration.Config{
		MaxIterations:     50,
		ConvergenceTol:    1e-4,
		LevenbergLambda:   1e-3,
		MinSigma:          0.35,
		TukeyCutoffFactor: 2.5,
		InlierRhoMax:      2.5,
	}
}

func defaultTomoConfig() tomography.Config {
	return tomography.Config{
		KernelRadiusM: 1.5,
		RidgeConstant: 1.0,
		RidgeMin:      0.05,
		RidgeMax:      5.0,
		RankTolerance: 1e-9,
	}
}

func TestRunTrilaterationBuiltinCasesPass(t *testing.T) {
	results := RunTrilateration(BuiltinTrilaterationCases(), defaultTriConfig())
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.Passed, "case %s failed: err=%.3f %s", r.Name, r.ErrorM, r.Err)
	}
}

func TestRunTomographyBuiltinCasesPass(t *testing.T) {
	results := RunTomography(BuiltinTomographyCases(), defaultTomoConfig())
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed)
}

func TestSummarizeCountsPassFail(t *testing.T) {
	tri := []TrilaterationResult{{Passed: true}, {Passed: false}}
	tomo := []TomographyResult{{Passed: true}}
	r := Summarize(time.Now(), tri, tomo)
	assert.Equal(t, 3, r.TotalTests)
	assert.Equal(t, 2, r.PassedTests)
	assert.Equal(t, 1, r.FailedTests)
}

func TestReporterPrintCompact(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)
	r.PrintCompact(&EvalResult{TotalTests: 2, PassedTests: 2})
	assert.Contains(t, buf.String(), "[PASS] 2/2")
}

func TestReporterPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)
	require.NoError(t, r.PrintJSON(&EvalResult{TotalTests: 1, PassedTests: 1}))
	assert.Contains(t, buf.String(), "\"TotalTests\": 1")
}

func TestCellOffset(t *testing.T) {
	assert.Equal(t, 0, cellOffset(7, 7, 5))
	assert.Equal(t, 2, cellOffset(0, 2, 5))
	assert.Equal(t, 0, cellOffset(1, 2, 0))
}
