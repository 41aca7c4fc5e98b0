// Command configure_bias analyzes tracked coverage, computes global
// baselines, and writes the per-company boost configuration the retrieval
// side reads. Run it after a batch of companies has been processed; rerun it
// whenever coverage changes enough to shift the baselines.
package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"sort"

	"findata_pipeline/pkg/core/bias"
)

func main() {
	coveragePath := flag.String("coverage", "bias_config/coverage_metrics.json", "Path to the coverage metrics snapshot")
	outputDir := flag.String("output-dir", "bias_config", "Output directory for bias configuration")
	method := flag.String("method", "percentile", "Classification method: percentile or ratio")
	flag.Parse()

	classMethod := bias.ClassificationMethod(*method)
	if classMethod != bias.MethodPercentile && classMethod != bias.MethodRatio {
		log.Fatalf("Error: unknown method %q (want percentile or ratio)", *method)
	}

	tracker, err := bias.NewCoverageTracker(*coveragePath)
	if err != nil {
		log.Fatalf("Failed to load coverage metrics: %v", err)
	}

	metrics := tracker.AllMetrics()
	if len(metrics) == 0 {
		log.Fatalf("No companies tracked in %s. Run the pipeline first.", *coveragePath)
	}

	fmt.Println("======================================================================")
	fmt.Println("BIAS ANALYSIS AND CONFIGURATION")
	fmt.Println("======================================================================")
	fmt.Printf("Companies tracked:   %d\n", len(metrics))
	fmt.Printf("Method:              %s\n", classMethod)

	calculator := bias.NewBaselineCalculator(metrics)

	manager, err := bias.NewBoostConfigManager(filepath.Join(*outputDir, "boost_config.json"))
	if err != nil {
		log.Fatalf("Failed to initialize boost config: %v", err)
	}

	// Deterministic ordering for stable logs and configs.
	tickers := make([]string, 0, len(metrics))
	for ticker := range metrics {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	for _, ticker := range tickers {
		m := metrics[ticker]
		classification, ratio := calculator.ClassifyCompany(m, classMethod)

		baseBoost := calculator.BoostFactor(classification, "", true, m.CompletenessScore)
		sourceBoosts := map[string]float64{
			bias.SourceSEC:       calculator.BoostFactor(classification, bias.SourceSEC, true, m.CompletenessScore),
			bias.SourceWikipedia: calculator.BoostFactor(classification, bias.SourceWikipedia, true, m.CompletenessScore),
			bias.SourceNews:      calculator.BoostFactor(classification, bias.SourceNews, true, m.CompletenessScore),
		}

		err := manager.SetCompanyBoost(ticker, classification, ratio, baseBoost, sourceBoosts, map[string]interface{}{
			"total_chunks": m.TotalChunks,
			"completeness": m.CompletenessScore,
			"method":       string(classMethod),
		})
		if err != nil {
			log.Fatalf("Failed to configure %s: %v", ticker, err)
		}
	}

	if err := calculator.SaveBaselineConfig(filepath.Join(*outputDir, "baseline_config.json")); err != nil {
		log.Fatalf("Failed to save baseline config: %v", err)
	}

	report, err := calculator.GenerateReport()
	if err != nil {
		log.Fatalf("Failed to generate baseline report: %v", err)
	}

	if _, err := tracker.ExportReport(filepath.Join(*outputDir, "coverage_report.json")); err != nil {
		log.Fatalf("Failed to export coverage report: %v", err)
	}
	if _, err := manager.ExportSummary(filepath.Join(*outputDir, "boost_summary.json")); err != nil {
		log.Fatalf("Failed to export boost summary: %v", err)
	}

	fmt.Println("\n[1] BASELINES")
	fmt.Printf("Avg chunks:          %.1f\n", report.Baselines.TotalChunks.Mean)
	fmt.Printf("Median chunks:       %.1f\n", report.Baselines.TotalChunks.Median)
	fmt.Printf("Thresholds:          small<%.0f, medium<%.0f\n", report.Thresholds.Small, report.Thresholds.Medium)

	fmt.Println("\n[2] CLASSIFICATIONS")
	for _, class := range []bias.Classification{bias.ClassSmall, bias.ClassMedium, bias.ClassLarge} {
		fmt.Printf("%-8s %d companies\n", string(class)+":", report.ClassificationCounts[class])
		for _, c := range report.Classifications[class] {
			fmt.Printf("  %-8s chunks=%-5d ratio=%.2f\n", c.Ticker, c.Chunks, c.Ratio)
		}
	}

	fmt.Printf("\n[Done] Bias configuration written to %s\n", *outputDir)
}
