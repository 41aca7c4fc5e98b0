package bias

import (
	"fmt"
	"log"
	"sort"
)

// BoostStrategy selects how a boost combines with the original score.
type BoostStrategy string

const (
	StrategyAdditive       BoostStrategy = "additive"
	StrategyMultiplicative BoostStrategy = "multiplicative"
)

// RetrievalResult is one scored retrieval hit. Kept as a generic map to
// match whatever the vector store returns: a similarity score under a
// configurable key, a ticker (directly or nested under "metadata"), and
// optionally a "data_source" for per-source boosting.
type RetrievalResult map[string]interface{}

// RetrievalEnhancer applies persisted per-company boosts to retrieval
// scores at query time.
type RetrievalEnhancer struct {
	manager *BoostConfigManager
}

// NewRetrievalEnhancer loads the boost configuration from configPath.
func NewRetrievalEnhancer(configPath string) (*RetrievalEnhancer, error) {
	manager, err := NewBoostConfigManager(configPath)
	if err != nil {
		return nil, fmt.Errorf("retrieval enhancer init failed: %w", err)
	}
	return &RetrievalEnhancer{manager: manager}, nil
}

// NewRetrievalEnhancerWithManager wraps an existing manager, sharing its
// loaded configuration.
func NewRetrievalEnhancerWithManager(manager *BoostConfigManager) *RetrievalEnhancer {
	return &RetrievalEnhancer{manager: manager}
}

// Manager exposes the underlying boost configuration.
func (e *RetrievalEnhancer) Manager() *BoostConfigManager { return e.manager }

// EnhanceScores applies coverage boosts to a result list and re-sorts it
// descending by the enhanced score (stable sort; ties keep their order).
//
// When the global kill switch is off, the input is returned completely
// unmodified: same maps, same order, same score key. A result missing a
// ticker passes through unmodified with a logged warning; it is never
// dropped and never fails the batch. Enhanced scores cap at 1.0 to stay a
// valid similarity range.
func (e *RetrievalEnhancer) EnhanceScores(results []RetrievalResult, scoreKey string, strategy BoostStrategy) []RetrievalResult {
	if !e.manager.IsBoostEnabled() {
		return results
	}

	enhanced := make([]RetrievalResult, 0, len(results))
	for _, result := range results {
		ticker := resultString(result, "ticker")
		source := resultString(result, "data_source")
		originalScore := resultFloat(result, scoreKey)

		if ticker == "" {
			log.Printf("[RetrievalEnhancer] Result missing ticker, skipping boost: %v", result["chunk_id"])
			enhanced = append(enhanced, result)
			continue
		}

		boost := e.manager.CompanyBoost(ticker, source)

		var enhancedScore float64
		switch strategy {
		case StrategyMultiplicative:
			enhancedScore = originalScore * (1.0 + boost)
		case StrategyAdditive:
			enhancedScore = originalScore + boost
		default:
			log.Printf("[RetrievalEnhancer] Unknown boost strategy %q, using additive", strategy)
			enhancedScore = originalScore + boost
		}
		if enhancedScore > 1.0 {
			enhancedScore = 1.0
		}

		out := make(RetrievalResult, len(result)+3)
		for k, v := range result {
			out[k] = v
		}
		out[scoreKey] = enhancedScore
		out["original_score"] = originalScore
		out["applied_boost"] = boost
		out["boost_strategy"] = string(strategy)

		enhanced = append(enhanced, out)
	}

	sort.SliceStable(enhanced, func(i, j int) bool {
		return resultFloat(enhanced[i], scoreKey) > resultFloat(enhanced[j], scoreKey)
	})

	return enhanced
}

// BoostImpact is the before/after diagnostic for the top-k slice. It lets
// operators verify that boosting actually increases small-company
// representation without inspecting raw scores.
type BoostImpact struct {
	TopK                       int                    `json:"top_k"`
	UnchangedResults           int                    `json:"unchanged_results"`
	NewResults                 int                    `json:"new_results"`
	DroppedResults             int                    `json:"dropped_results"`
	OriginalCompanyCount       int                    `json:"original_company_count"`
	EnhancedCompanyCount       int                    `json:"enhanced_company_count"`
	DiversityImprovement       int                    `json:"diversity_improvement"`
	ClassificationDistribution map[Classification]int `json:"classification_distribution"`
	AvgBoostApplied            float64                `json:"avg_boost_applied"`
}

// AnalyzeBoostImpact compares the top-k slices before and after boosting.
// It is reproducible from the two result lists and the persisted config
// alone; no hidden state.
func (e *RetrievalEnhancer) AnalyzeBoostImpact(original, enhanced []RetrievalResult, topK int) BoostImpact {
	origTop := topKIDs(original, topK)
	enhTop := topKIDs(enhanced, topK)

	unchanged, added, dropped := 0, 0, 0
	for id := range enhTop {
		if origTop[id] {
			unchanged++
		} else {
			added++
		}
	}
	for id := range origTop {
		if !enhTop[id] {
			dropped++
		}
	}

	origCompanies := topKCompanies(original, topK)
	enhCompanies := topKCompanies(enhanced, topK)

	distribution := make(map[Classification]int)
	totalBoost := 0.0
	for i, result := range enhanced {
		if i >= topK {
			break
		}
		if ticker := resultString(result, "ticker"); ticker != "" {
			distribution[e.manager.CompanyClassification(ticker)]++
		}
		totalBoost += resultFloat(result, "applied_boost")
	}

	avgBoost := 0.0
	if topK > 0 {
		avgBoost = totalBoost / float64(topK)
	}

	return BoostImpact{
		TopK:                       topK,
		UnchangedResults:           unchanged,
		NewResults:                 added,
		DroppedResults:             dropped,
		OriginalCompanyCount:       len(origCompanies),
		EnhancedCompanyCount:       len(enhCompanies),
		DiversityImprovement:       len(enhCompanies) - len(origCompanies),
		ClassificationDistribution: distribution,
		AvgBoostApplied:            avgBoost,
	}
}

// BoostForChunk returns the boost a chunk's metadata would receive,
// used to snapshot the write-time boost into chunk records.
func (e *RetrievalEnhancer) BoostForChunk(chunkMetadata map[string]interface{}) float64 {
	ticker, _ := chunkMetadata["ticker"].(string)
	source, _ := chunkMetadata["data_source"].(string)
	if ticker == "" {
		return 0.0
	}
	return e.manager.CompanyBoost(ticker, source)
}

// EnableBoosting turns coverage-based boosting on.
func (e *RetrievalEnhancer) EnableBoosting() error {
	return e.manager.SetBoostEnabled(true)
}

// DisableBoosting turns coverage-based boosting off (production rollback).
func (e *RetrievalEnhancer) DisableBoosting() error {
	return e.manager.SetBoostEnabled(false)
}

// =============================================================================
// RESULT FIELD ACCESS
// =============================================================================

// resultString reads a string field from the result directly, falling back
// to the nested "metadata" map.
func resultString(result RetrievalResult, key string) string {
	if v, ok := result[key].(string); ok && v != "" {
		return v
	}
	if meta, ok := result["metadata"].(map[string]interface{}); ok {
		if v, ok := meta[key].(string); ok {
			return v
		}
	}
	return ""
}

// resultFloat tolerates the numeric types JSON decoding and callers produce.
func resultFloat(result RetrievalResult, key string) float64 {
	switch v := result[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0.0
	}
}

func topKIDs(results []RetrievalResult, topK int) map[string]bool {
	ids := make(map[string]bool)
	for i, r := range results {
		if i >= topK {
			break
		}
		if id := resultString(r, "chunk_id"); id != "" {
			ids[id] = true
		}
	}
	return ids
}

func topKCompanies(results []RetrievalResult, topK int) map[string]bool {
	companies := make(map[string]bool)
	for i, r := range results {
		if i >= topK {
			break
		}
		if ticker := resultString(r, "ticker"); ticker != "" {
			companies[ticker] = true
		}
	}
	return companies
}
