// Package bias implements the three-stage retrieval bias mitigation
// pipeline: per-company coverage tracking, global baseline calculation with
// small/medium/large classification, and boost configuration applied to
// retrieval scores at query time. Large companies accumulate far more
// filings, wiki content, and news than small ones; boosting counteracts the
// resulting retrieval skew.
package bias

import "time"

// Data source names used throughout coverage tracking and boosting.
const (
	SourceSEC       = "sec"
	SourceWikipedia = "wikipedia"
	SourceNews      = "news"
)

// Completeness weights reflect source importance (SEC > news > Wikipedia).
// These are fixed design constants: changing them breaks score compatibility
// with previously persisted boost configurations.
const (
	completenessWeightSEC       = 0.5
	completenessWeightWikipedia = 0.2
	completenessWeightNews      = 0.3
)

// ChunkStat is the minimal per-chunk view the coverage tracker needs.
type ChunkStat struct {
	Source string // "sec", "wikipedia", "news"
	Length int    // character length of the chunk text
}

// CoverageMetrics is one company's coverage record. Overwritten wholesale on
// every TrackCompany call; no history is kept, latest write wins.
type CoverageMetrics struct {
	Ticker             string                 `json:"ticker"`
	CompanyName        string                 `json:"company_name"`
	TotalChunks        int                    `json:"total_chunks"`
	SourceDistribution map[string]int         `json:"source_distribution"`
	NumTables          int                    `json:"num_tables"`
	AvgChunkLength     float64                `json:"avg_chunk_length"`
	CompletenessScore  float64                `json:"completeness_score"`
	HasSEC             bool                   `json:"has_sec"`
	HasWikipedia       bool                   `json:"has_wikipedia"`
	HasNews            bool                   `json:"has_news"`
	LastUpdated        time.Time              `json:"last_updated"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
}

// Classification buckets a company by coverage relative to the baseline.
type Classification string

const (
	ClassSmall  Classification = "small"
	ClassMedium Classification = "medium"
	ClassLarge  Classification = "large"
)

// ClassificationMethod selects how ClassifyCompany buckets a company.
// Callers pick one method per run, not per company; the two methods may
// disagree for the same company on the same data and that is expected.
type ClassificationMethod string

const (
	MethodPercentile ClassificationMethod = "percentile"
	MethodRatio      ClassificationMethod = "ratio"
)
