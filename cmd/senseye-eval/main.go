// Command senseye-eval runs the numeric accuracy evaluation harness for
// C5 (robust trilateration) and C6 (ridge tomography) against synthetic
// scenarios and reports pass/fail against configured error tolerances.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/closedform/senseye/pkg/config"
	"github.com/closedform/senseye/pkg/eval"
	"github.com/closedform/senseye/pkg/tomography"
	"github.com/closedform/senseye/pkg/trilateration"
)

func trilaterationConfig(cfg config.Config) trilateration.Config {
	return trilateration.Config{
		MaxIterations:     cfg.Trilateration.MaxIterations,
		ConvergenceTol:    cfg.Trilateration.ConvergenceTol,
		LevenbergLambda:   cfg.Trilateration.LevenbergLambda,
		MinSigma:          cfg.Trilateration.MinSigma,
		TukeyCutoffFactor: cfg.Trilateration.TukeyCutoffFactor,
		InlierRhoMax:      cfg.Trilateration.InlierRhoMax,
	}
}

func tomographyConfig(cfg config.Config) tomography.Config {
	return tomography.Config{
		KernelRadiusM: cfg.Tomography.KernelRadiusM,
		RidgeConstant: cfg.Tomography.RidgeConstant,
		RidgeMin:      cfg.Tomography.RidgeMin,
		RidgeMax:      cfg.Tomography.RidgeMax,
		RankTolerance: cfg.Tomography.RankTolerance,
	}
}

func main() {
	var output string
	var savePath string

	rootCmd := &cobra.Command{
		Use:   "senseye-eval",
		Short: "Evaluate Senseye's C5/C6 numeric accuracy against synthetic scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(output, savePath)
		},
	}
	rootCmd.Flags().StringVar(&output, "output", "summary", "Output format: summary, compact, json, yaml")
	rootCmd.Flags().StringVar(&savePath, "save", "", "Save results to a JSON file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runEval(output, savePath string) error {
	cfg := config.DefaultConfig()

	triCfg := trilaterationConfig(cfg)
	tomoCfg := tomographyConfig(cfg)

	triResults := eval.RunTrilateration(eval.BuiltinTrilaterationCases(), triCfg)
	tomoResults := eval.RunTomography(eval.BuiltinTomographyCases(), tomoCfg)

	result := eval.Summarize(evalNow(), triResults, tomoResults)

	reporter := eval.NewReporter(os.Stdout)
	var err error
	switch output {
	case "compact":
		reporter.PrintCompact(result)
	case "json":
		err = reporter.PrintJSON(result)
	case "yaml":
		err = reporter.PrintYAML(result)
	default:
		reporter.PrintSummary(result)
	}
	if err != nil {
		return fmt.Errorf("printing results: %w", err)
	}

	if savePath != "" {
		if err := reporter.SaveJSON(result, savePath); err != nil {
			return fmt.Errorf("saving results: %w", err)
		}
	}

	if result.FailedTests > 0 {
		os.Exit(1)
	}
	return nil
}

// evalNow returns the wall-clock time stamped on the evaluation result.
func evalNow() time.Time { return time.Now() }
