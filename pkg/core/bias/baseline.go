package bias

import (
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"findata_pipeline/pkg/core/store"
)

// Base boost factors per classification. Monotonically non-increasing
// small -> medium -> large; combined with the largest source multiplier
// (news, 1.2) the maximum reachable boost is 0.25 * 1.2 = 0.30, which is
// exactly the global max-boost cap. The cap holds by construction of these
// constants, not by a runtime clamp.
var baseBoosts = map[Classification]float64{
	ClassSmall:  0.25,
	ClassMedium: 0.12,
	ClassLarge:  0.0,
}

// Source multipliers reflect how strongly coverage disparity correlates
// with company size per source: news most, SEC least.
var sourceMultipliers = map[string]float64{
	SourceSEC:       0.8,
	SourceWikipedia: 0.6,
	SourceNews:      1.2,
}

// qualityFloor is the completeness score below which boosts are linearly
// penalized (quality_score/qualityFloor); the penalty reaches 1.0 exactly
// at the floor and never amplifies above the base boost.
const qualityFloor = 0.7

// Ratio-method classification cutoffs against the baseline mean.
// ratio < 0.6 -> small; ratio < 1.0 -> medium; else large. Exactly 1.0
// (a company exactly at baseline mean) classifies large.
const (
	ratioSmallCutoff  = 0.6
	ratioMediumCutoff = 1.0
)

// DistributionStats summarizes one metric across all companies.
type DistributionStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// SourceBaseline is the reduced summary kept per data source.
type SourceBaseline struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// Baselines are the global coverage statistics, a pure function of the
// coverage snapshot the calculator was constructed from.
type Baselines struct {
	TotalChunks  DistributionStats         `json:"total_chunks"`
	SourceChunks map[string]SourceBaseline `json:"source_chunks"`
	Tables       SourceBaseline            `json:"tables"`
	Completeness SourceBaseline            `json:"completeness"`
}

// Thresholds are the percentile boundaries for percentile-method
// classification: below Small -> small, below Medium -> medium, else large.
type Thresholds struct {
	Small  float64 `json:"small"`  // 33rd percentile of total chunks
	Medium float64 `json:"medium"` // 67th percentile of total chunks
}

// BaselineCalculator classifies companies against global coverage
// baselines. Baselines and thresholds are computed once at construction;
// recomputation means constructing a new calculator from fresh metrics;
// there is no incremental update path.
type BaselineCalculator struct {
	metrics    map[string]CoverageMetrics
	baselines  *Baselines
	thresholds *Thresholds
}

// NewBaselineCalculator computes baselines from the full coverage snapshot.
// An empty snapshot yields a calculator that classifies everything medium.
func NewBaselineCalculator(metrics map[string]CoverageMetrics) *BaselineCalculator {
	c := &BaselineCalculator{metrics: metrics}
	if len(metrics) > 0 {
		c.calculateBaselines()
		c.calculateThresholds()
	} else {
		log.Printf("[BaselineCalculator] No metrics available for baseline calculation")
	}
	return c
}

func (c *BaselineCalculator) calculateBaselines() {
	totalChunks := make([]float64, 0, len(c.metrics))
	secChunks := make([]float64, 0, len(c.metrics))
	wikiChunks := make([]float64, 0, len(c.metrics))
	newsChunks := make([]float64, 0, len(c.metrics))
	tables := make([]float64, 0, len(c.metrics))
	completeness := make([]float64, 0, len(c.metrics))

	for _, m := range c.metrics {
		totalChunks = append(totalChunks, float64(m.TotalChunks))
		secChunks = append(secChunks, float64(m.SourceDistribution[SourceSEC]))
		wikiChunks = append(wikiChunks, float64(m.SourceDistribution[SourceWikipedia]))
		newsChunks = append(newsChunks, float64(m.SourceDistribution[SourceNews]))
		tables = append(tables, float64(m.NumTables))
		completeness = append(completeness, m.CompletenessScore)
	}

	c.baselines = &Baselines{
		TotalChunks: DistributionStats{
			Mean:   mean(totalChunks),
			Median: median(totalChunks),
			Std:    std(totalChunks),
			Min:    minOf(totalChunks),
			Max:    maxOf(totalChunks),
		},
		SourceChunks: map[string]SourceBaseline{
			SourceSEC:       {Mean: mean(secChunks), Median: median(secChunks)},
			SourceWikipedia: {Mean: mean(wikiChunks), Median: median(wikiChunks)},
			SourceNews:      {Mean: mean(newsChunks), Median: median(newsChunks)},
		},
		Tables:       SourceBaseline{Mean: mean(tables), Median: median(tables)},
		Completeness: SourceBaseline{Mean: mean(completeness), Median: median(completeness)},
	}

	log.Printf("[BaselineCalculator] Calculated baselines: avg_chunks=%.1f, median=%.1f",
		c.baselines.TotalChunks.Mean, c.baselines.TotalChunks.Median)
}

func (c *BaselineCalculator) calculateThresholds() {
	totalChunks := make([]float64, 0, len(c.metrics))
	for _, m := range c.metrics {
		totalChunks = append(totalChunks, float64(m.TotalChunks))
	}

	c.thresholds = &Thresholds{
		Small:  percentile(totalChunks, 33),
		Medium: percentile(totalChunks, 67),
	}

	log.Printf("[BaselineCalculator] Calculated thresholds: small<%.0f, medium<%.0f",
		c.thresholds.Small, c.thresholds.Medium)
}

// ClassifyCompany buckets a company by the requested method and returns the
// bucket together with the company's coverage ratio against the baseline
// mean. With no baselines available (empty snapshot), the company defaults
// to medium / ratio 1.0 rather than failing the run.
func (c *BaselineCalculator) ClassifyCompany(m CoverageMetrics, method ClassificationMethod) (Classification, float64) {
	if c.baselines == nil {
		log.Printf("[BaselineCalculator] Baselines not calculated, defaulting %s to medium", m.Ticker)
		return ClassMedium, 1.0
	}

	totalChunks := float64(m.TotalChunks)
	baselineMean := c.baselines.TotalChunks.Mean

	coverageRatio := 1.0
	if baselineMean > 0 {
		coverageRatio = totalChunks / baselineMean
	}

	var classification Classification
	if method == MethodPercentile {
		switch {
		case totalChunks < c.thresholds.Small:
			classification = ClassSmall
		case totalChunks < c.thresholds.Medium:
			classification = ClassMedium
		default:
			classification = ClassLarge
		}
	} else {
		switch {
		case coverageRatio < ratioSmallCutoff:
			classification = ClassSmall
		case coverageRatio < ratioMediumCutoff:
			classification = ClassMedium
		default:
			classification = ClassLarge
		}
	}

	return classification, coverageRatio
}

// BoostFactor computes the retrieval boost for a classification, optionally
// specialized per source and penalized for low-quality coverage. The result
// never exceeds the 0.3 global cap (held by the constants above).
func (c *BaselineCalculator) BoostFactor(classification Classification, source string, qualityAdjusted bool, qualityScore float64) float64 {
	boost := baseBoosts[classification]

	if source != "" {
		multiplier, ok := sourceMultipliers[source]
		if !ok {
			multiplier = 1.0
		}
		boost *= multiplier
	}

	if qualityAdjusted && qualityScore < qualityFloor {
		boost *= qualityScore / qualityFloor
	}

	return boost
}

// Baselines returns the computed global baselines (nil when the snapshot
// was empty).
func (c *BaselineCalculator) Baselines() *Baselines { return c.baselines }

// Thresholds returns the percentile classification thresholds (nil when
// the snapshot was empty).
func (c *BaselineCalculator) Thresholds() *Thresholds { return c.thresholds }

// ClassifiedCompany is one company's entry in the baseline report.
type ClassifiedCompany struct {
	Ticker string  `json:"ticker"`
	Chunks int     `json:"chunks"`
	Ratio  float64 `json:"ratio"`
}

// BaselineReport groups every company by percentile classification.
type BaselineReport struct {
	Baselines            *Baselines                             `json:"baselines"`
	Thresholds           *Thresholds                            `json:"thresholds"`
	ClassificationCounts map[Classification]int                 `json:"classification_counts"`
	Classifications      map[Classification][]ClassifiedCompany `json:"classifications"`
}

// GenerateReport classifies every tracked company (percentile method) and
// returns the grouped report.
func (c *BaselineCalculator) GenerateReport() (BaselineReport, error) {
	if len(c.metrics) == 0 || c.baselines == nil {
		return BaselineReport{}, fmt.Errorf("no coverage data available")
	}

	classifications := map[Classification][]ClassifiedCompany{
		ClassSmall:  {},
		ClassMedium: {},
		ClassLarge:  {},
	}

	// Deterministic ordering for stable reports.
	tickers := make([]string, 0, len(c.metrics))
	for ticker := range c.metrics {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	for _, ticker := range tickers {
		m := c.metrics[ticker]
		classification, ratio := c.ClassifyCompany(m, MethodPercentile)
		classifications[classification] = append(classifications[classification], ClassifiedCompany{
			Ticker: ticker,
			Chunks: m.TotalChunks,
			Ratio:  ratio,
		})
	}

	counts := make(map[Classification]int, len(classifications))
	for class, companies := range classifications {
		counts[class] = len(companies)
	}

	return BaselineReport{
		Baselines:            c.baselines,
		Thresholds:           c.thresholds,
		ClassificationCounts: counts,
		Classifications:      classifications,
	}, nil
}

// baselineConfigFile is the persisted form of SaveBaselineConfig.
type baselineConfigFile struct {
	Baselines   *Baselines  `json:"baselines"`
	Thresholds  *Thresholds `json:"thresholds"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// SaveBaselineConfig persists the baselines and thresholds for use by the
// retrieval side.
func (c *BaselineCalculator) SaveBaselineConfig(outputPath string) error {
	cfg := baselineConfigFile{
		Baselines:   c.baselines,
		Thresholds:  c.thresholds,
		GeneratedAt: time.Now().UTC(),
	}
	if err := store.NewSnapshotStore(outputPath).Save(cfg); err != nil {
		return fmt.Errorf("failed to save baseline config: %w", err)
	}
	log.Printf("[BaselineCalculator] Saved baseline config to %s", outputPath)
	return nil
}

// =============================================================================
// STATISTICS HELPERS
// =============================================================================

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	return percentile(values, 50)
}

// std is the population standard deviation.
func std(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

func minOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// percentile uses linear interpolation between closest ranks, matching the
// thresholds any previously persisted baseline config was computed with.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
