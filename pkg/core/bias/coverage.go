package bias

import (
	"fmt"
	"log"
	"time"

	"findata_pipeline/pkg/core/store"
)

// CoverageTracker records per-company data-volume and completeness metrics,
// persisted as a JSON snapshot keyed by ticker.
type CoverageTracker struct {
	store   *store.SnapshotStore
	metrics map[string]CoverageMetrics
}

// NewCoverageTracker loads existing metrics from storagePath (or starts
// empty). An existing-but-unreadable store is a construction-time error.
func NewCoverageTracker(storagePath string) (*CoverageTracker, error) {
	t := &CoverageTracker{
		store:   store.NewSnapshotStore(storagePath),
		metrics: make(map[string]CoverageMetrics),
	}

	if _, err := t.store.Load(&t.metrics); err != nil {
		return nil, fmt.Errorf("coverage store unreadable: %w", err)
	}

	log.Printf("[CoverageTracker] Initialized: %d companies tracked", len(t.metrics))
	return t, nil
}

// TrackCompany computes and persists coverage metrics for one company.
// The chunk list must be the company's full current chunk set: any existing
// record for the ticker is overwritten, not merged.
func (t *CoverageTracker) TrackCompany(ticker, companyName string, chunks []ChunkStat, numTables int, metadata map[string]interface{}) (CoverageMetrics, error) {
	sourceDistribution := make(map[string]int)
	totalLength := 0
	for _, c := range chunks {
		source := c.Source
		if source == "" {
			source = "unknown"
		}
		sourceDistribution[source]++
		totalLength += c.Length
	}

	avgChunkLength := 0.0
	if len(chunks) > 0 {
		avgChunkLength = float64(totalLength) / float64(len(chunks))
	}

	hasSEC := sourceDistribution[SourceSEC] > 0
	hasWiki := sourceDistribution[SourceWikipedia] > 0
	hasNews := sourceDistribution[SourceNews] > 0

	completeness := 0.0
	if hasSEC {
		completeness += completenessWeightSEC
	}
	if hasWiki {
		completeness += completenessWeightWikipedia
	}
	if hasNews {
		completeness += completenessWeightNews
	}

	metrics := CoverageMetrics{
		Ticker:             ticker,
		CompanyName:        companyName,
		TotalChunks:        len(chunks),
		SourceDistribution: sourceDistribution,
		NumTables:          numTables,
		AvgChunkLength:     avgChunkLength,
		CompletenessScore:  completeness,
		HasSEC:             hasSEC,
		HasWikipedia:       hasWiki,
		HasNews:            hasNews,
		LastUpdated:        time.Now().UTC(),
		Metadata:           metadata,
	}

	t.metrics[ticker] = metrics
	if err := t.store.Save(t.metrics); err != nil {
		return metrics, fmt.Errorf("failed to persist coverage metrics: %w", err)
	}

	log.Printf("[CoverageTracker] Tracked %s: %d chunks (SEC:%d, Wiki:%d, News:%d), completeness=%.2f",
		ticker, len(chunks), sourceDistribution[SourceSEC], sourceDistribution[SourceWikipedia],
		sourceDistribution[SourceNews], completeness)

	return metrics, nil
}

// CompanyMetrics returns the record for a ticker, if tracked.
func (t *CoverageTracker) CompanyMetrics(ticker string) (CoverageMetrics, bool) {
	m, ok := t.metrics[ticker]
	return m, ok
}

// AllMetrics returns the full ticker -> metrics snapshot.
func (t *CoverageTracker) AllMetrics() map[string]CoverageMetrics {
	return t.metrics
}

// SummaryStats aggregates quick health-check statistics across all tracked
// companies, independent of the heavier baseline calculation.
type SummaryStats struct {
	TotalCompanies    int     `json:"total_companies"`
	AvgTotalChunks    float64 `json:"avg_total_chunks"`
	MinChunks         int     `json:"min_chunks"`
	MaxChunks         int     `json:"max_chunks"`
	AvgCompleteness   float64 `json:"avg_completeness"`
	CompaniesWithSEC  int     `json:"companies_with_sec"`
	CompaniesWithWiki int     `json:"companies_with_wiki"`
	CompaniesWithNews int     `json:"companies_with_news"`
}

// SummaryStats computes aggregate statistics across all tracked companies.
func (t *CoverageTracker) SummaryStats() SummaryStats {
	stats := SummaryStats{TotalCompanies: len(t.metrics)}
	if len(t.metrics) == 0 {
		return stats
	}

	first := true
	totalChunks := 0
	totalCompleteness := 0.0
	for _, m := range t.metrics {
		totalChunks += m.TotalChunks
		totalCompleteness += m.CompletenessScore
		if first || m.TotalChunks < stats.MinChunks {
			stats.MinChunks = m.TotalChunks
		}
		if first || m.TotalChunks > stats.MaxChunks {
			stats.MaxChunks = m.TotalChunks
		}
		first = false
		if m.HasSEC {
			stats.CompaniesWithSEC++
		}
		if m.HasWikipedia {
			stats.CompaniesWithWiki++
		}
		if m.HasNews {
			stats.CompaniesWithNews++
		}
	}

	n := float64(len(t.metrics))
	stats.AvgTotalChunks = float64(totalChunks) / n
	stats.AvgCompleteness = totalCompleteness / n
	return stats
}

// CoverageReport is the exported health-check document.
type CoverageReport struct {
	GeneratedAt time.Time                  `json:"generated_at"`
	Summary     SummaryStats               `json:"summary"`
	Companies   map[string]CoverageMetrics `json:"companies"`
}

// ExportReport writes the full coverage report to outputPath.
func (t *CoverageTracker) ExportReport(outputPath string) (CoverageReport, error) {
	report := CoverageReport{
		GeneratedAt: time.Now().UTC(),
		Summary:     t.SummaryStats(),
		Companies:   t.metrics,
	}

	if err := store.NewSnapshotStore(outputPath).Save(report); err != nil {
		return report, fmt.Errorf("failed to export coverage report: %w", err)
	}

	log.Printf("[CoverageTracker] Exported coverage report to %s", outputPath)
	return report, nil
}
