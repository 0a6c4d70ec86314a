package training

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"

	"callquality/internal/features"
	"callquality/internal/ml"
)

// Report file names written by Reporter.
const (
	SummaryFile           = "training_summary.txt"
	ComparisonFile        = "model_comparison.csv"
	ReportFile            = "training_report.json"
	SchemaFile            = "api_schema.json"
	FeatureImportanceFile = "feature_importance.json"
)

// Reporter writes the artifacts of a training run to a directory.
type Reporter struct {
	report     *Report
	outputPath string
}

func NewReporter(report *Report, outputPath string) *Reporter {
	return &Reporter{report: report, outputPath: outputPath}
}

// GenerateReport writes every report format.
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}
	if err := r.generateComparison(); err != nil {
		return err
	}
	if err := r.generateJSONReport(); err != nil {
		return err
	}
	if err := r.generateAPISchema(); err != nil {
		return err
	}
	path := filepath.Join(r.outputPath, FeatureImportanceFile)
	if err := ml.SaveFeatureScores(path, r.report.FeatureImportance); err != nil {
		return err
	}
	return nil
}

func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, SummaryFile)
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	rep := r.report
	fmt.Fprintf(file, "CALL QUALITY MODEL TRAINING SUMMARY\n")
	fmt.Fprintf(file, "===================================\n\n")
	fmt.Fprintf(file, "Run: %s to %s (%s)\n\n",
		rep.StartedAt.Format("2006-01-02 15:04:05"),
		rep.FinishedAt.Format("2006-01-02 15:04:05"),
		rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond))

	fmt.Fprintf(file, "DATA\n")
	fmt.Fprintf(file, "----\n")
	for _, f := range rep.Data.Files {
		fmt.Fprintf(file, "%s: %d raw rows, %d kept\n", f.File, f.RawRows, f.Rows)
	}
	fmt.Fprintf(file, "Duplicates removed: %d\n", rep.Data.Duplicates)
	fmt.Fprintf(file, "Rows without state: %d\n", rep.Data.Filtered)
	fmt.Fprintf(file, "Invalid rows: %d\n", rep.Data.Invalid)
	fmt.Fprintf(file, "Rows used: %d (train %d, test %d)\n", rep.Rows, rep.TrainRows, rep.TestRows)
	fmt.Fprintf(file, "Features: %d\n", len(rep.FeatureColumns))
	for _, rc := range rep.RatingDistribution {
		fmt.Fprintf(file, "Rating %.0f: %d\n", rc.Rating, rc.Count)
	}

	fmt.Fprintf(file, "\nMODEL COMPARISON\n")
	fmt.Fprintf(file, "----------------\n")
	fmt.Fprintf(file, "%-20s %9s %9s %9s %9s %14s\n", "Model", "Train R2", "Test R2", "RMSE", "MAE", "CV R2")
	for _, m := range rep.Models {
		fmt.Fprintf(file, "%-20s %9.4f %9.4f %9.4f %9.4f %7.4f±%.4f\n",
			m.Name, m.TrainR2, m.TestR2, m.TestRMSE, m.TestMAE, m.CVMean, m.CVStd)
	}

	best := rep.Best()
	fmt.Fprintf(file, "\nBEST MODEL: %s\n", rep.BestModel)
	fmt.Fprintf(file, "Average prediction error: ±%.2f rating points\n", best.TestMAE)

	fmt.Fprintf(file, "\nTOP FEATURES (%s importance)\n", rep.ImportanceMethod)
	fmt.Fprintf(file, "-----------------------------------\n")
	for i, fs := range rep.FeatureImportance {
		fmt.Fprintf(file, "%2d. %-25s %.4f\n", i+1, fs.Feature, fs.Importance)
	}

	if len(rep.Samples) > 0 {
		fmt.Fprintf(file, "\nSAMPLE PREDICTIONS\n")
		fmt.Fprintf(file, "------------------\n")
		for _, s := range rep.Samples {
			fmt.Fprintf(file, "Test row %d: actual=%.0f predicted=%.2f error=%.2f\n",
				s.TestIndex, s.Actual, s.Predicted, s.Error)
		}
	}

	log.Info().Str("file", summaryPath).Msg("Summary report generated")
	return nil
}

func (r *Reporter) generateComparison() error {
	csvPath := filepath.Join(r.outputPath, ComparisonFile)
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create model comparison: %w", err)
	}
	defer file.Close()

	rows := r.report.Models
	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return fmt.Errorf("failed to write model comparison: %w", err)
	}

	log.Info().Str("file", csvPath).Msg("Model comparison generated")
	return nil
}

func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, ReportFile)

	payload := struct {
		*Report
		Metrics     ml.PerformanceMetrics `json:"performance_metrics"`
		GeneratedAt time.Time             `json:"generated_at"`
	}{Report: r.report, GeneratedAt: time.Now()}
	if r.report.Bundle != nil {
		payload.Metrics = r.report.Bundle.Metrics
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

// APISchema documents the prediction endpoint contract for clients.
type APISchema struct {
	PredictionEndpoint string         `json:"prediction_endpoint"`
	InputParameters    map[string]any `json:"input_parameters"`
	Output             map[string]any `json:"output"`
}

// BuildAPISchema derives the contract from a finished run.
func BuildAPISchema(rep *Report) APISchema {
	metrics := ml.PerformanceMetrics{R2: rep.Best().TestR2, MAE: rep.Best().TestMAE}
	return APISchema{
		PredictionEndpoint: "/predict",
		InputParameters: map[string]any{
			"operator":          features.OperatorLabels,
			"network_type":      features.NetworkTypeLabels,
			"inout_travelling":  features.LocationContextLabels,
			"calldrop_category": features.CallQualityLabels,
			"latitude":          "float (-90 to 90)",
			"longitude":         "float (-180 to 180)",
			"state_name":        rep.States,
			"month":             features.MonthNames,
		},
		Output: map[string]any{
			"predicted_rating":    "float (1.0 to 5.0)",
			"confidence_interval": metrics.ConfidenceInterval(),
			"model_accuracy":      metrics.Accuracy(),
		},
	}
}

func (r *Reporter) generateAPISchema() error {
	schemaPath := filepath.Join(r.outputPath, SchemaFile)
	data, err := json.MarshalIndent(BuildAPISchema(r.report), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal API schema: %w", err)
	}
	if err := os.WriteFile(schemaPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write API schema: %w", err)
	}

	log.Info().Str("file", schemaPath).Msg("API schema generated")
	return nil
}

// PrintSummary prints the headline numbers to stdout.
func (r *Reporter) PrintSummary() {
	rep := r.report
	best := rep.Best()
	fmt.Println("\n=== TRAINING RESULTS ===")
	fmt.Printf("Rows: %d (train %d, test %d)\n", rep.Rows, rep.TrainRows, rep.TestRows)
	for _, m := range rep.Models {
		fmt.Printf("%-20s test R2 %.4f  RMSE %.4f  CV %.4f (±%.4f)\n", m.Name, m.TestR2, m.TestRMSE, m.CVMean, m.CVStd)
	}
	fmt.Printf("Best model: %s\n", rep.BestModel)
	fmt.Printf("Accuracy: %.1f%%\n", best.TestR2*100)
	fmt.Printf("Average error: ±%.2f rating points\n", best.TestMAE)
	fmt.Println("========================")
}
