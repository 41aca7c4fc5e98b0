package bias

import (
	"math"
	"testing"
)

func newTestEnhancer(t *testing.T) *RetrievalEnhancer {
	t.Helper()
	m, err := NewBoostConfigManager(tempConfigPath(t))
	if err != nil {
		t.Fatalf("NewBoostConfigManager failed: %v", err)
	}
	m.SetCompanyBoost("SMCO", ClassSmall, 0.4, 0.25, map[string]float64{SourceNews: 0.30}, nil)
	m.SetCompanyBoost("BGCO", ClassLarge, 1.8, 0.0, nil, nil)
	return NewRetrievalEnhancerWithManager(m)
}

func results() []RetrievalResult {
	return []RetrievalResult{
		{"chunk_id": "c1", "ticker": "BGCO", "score": 0.80},
		{"chunk_id": "c2", "ticker": "SMCO", "score": 0.70},
		{"chunk_id": "c3", "ticker": "BGCO", "score": 0.60},
	}
}

func TestEnhanceScoresAdditive(t *testing.T) {
	e := newTestEnhancer(t)

	enhanced := e.EnhanceScores(results(), "score", StrategyAdditive)
	if len(enhanced) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(enhanced))
	}

	// SMCO: 0.70 + 0.25 = 0.95, overtaking BGCO's unboosted 0.80.
	if enhanced[0]["chunk_id"] != "c2" {
		t.Errorf("Expected boosted SMCO chunk first, got %v", enhanced[0]["chunk_id"])
	}
	if s := enhanced[0]["score"].(float64); math.Abs(s-0.95) > 1e-9 {
		t.Errorf("Expected enhanced score 0.95, got %f", s)
	}
	if o := enhanced[0]["original_score"].(float64); o != 0.70 {
		t.Errorf("Expected original score preserved, got %f", o)
	}
	if b := enhanced[0]["applied_boost"].(float64); b != 0.25 {
		t.Errorf("Expected applied boost 0.25, got %f", b)
	}

	// Large company: zero boost, score unchanged.
	if s := enhanced[1]["score"].(float64); s != 0.80 {
		t.Errorf("Expected BGCO score unchanged 0.80, got %f", s)
	}
}

func TestEnhanceScoresMultiplicative(t *testing.T) {
	e := newTestEnhancer(t)

	enhanced := e.EnhanceScores([]RetrievalResult{
		{"chunk_id": "c1", "ticker": "SMCO", "score": 0.60},
	}, "score", StrategyMultiplicative)

	// 0.60 * (1 + 0.25) = 0.75
	if s := enhanced[0]["score"].(float64); math.Abs(s-0.75) > 1e-9 {
		t.Errorf("Expected multiplicative score 0.75, got %f", s)
	}
}

func TestEnhanceScoresSourceSpecific(t *testing.T) {
	e := newTestEnhancer(t)

	enhanced := e.EnhanceScores([]RetrievalResult{
		{"chunk_id": "c1", "ticker": "SMCO", "data_source": SourceNews, "score": 0.50},
	}, "score", StrategyAdditive)

	// News-specific boost 0.30 applies over the 0.25 base.
	if b := enhanced[0]["applied_boost"].(float64); b != 0.30 {
		t.Errorf("Expected source boost 0.30, got %f", b)
	}
}

func TestEnhanceScoresCap(t *testing.T) {
	e := newTestEnhancer(t)

	enhanced := e.EnhanceScores([]RetrievalResult{
		{"chunk_id": "c1", "ticker": "SMCO", "score": 0.95},
	}, "score", StrategyAdditive)

	// 0.95 + 0.25 would be 1.20; capped at the valid similarity ceiling.
	if s := enhanced[0]["score"].(float64); s != 1.0 {
		t.Errorf("Expected score capped at 1.0, got %f", s)
	}
	// The original is still reported uncapped.
	if o := enhanced[0]["original_score"].(float64); o != 0.95 {
		t.Errorf("Expected original 0.95, got %f", o)
	}
}

func TestEnhanceScoresKillSwitch(t *testing.T) {
	e := newTestEnhancer(t)
	if err := e.DisableBoosting(); err != nil {
		t.Fatalf("DisableBoosting failed: %v", err)
	}

	input := results()
	out := e.EnhanceScores(input, "score", StrategyAdditive)

	// Identity: same slice, same maps, nothing annotated.
	if len(out) != len(input) {
		t.Fatalf("Expected identical length, got %d", len(out))
	}
	for i := range out {
		if &out[i] != &input[i] {
			t.Errorf("Result %d: expected the input slice returned as-is", i)
		}
		if _, annotated := out[i]["applied_boost"]; annotated {
			t.Errorf("Result %d: expected no boost annotation with kill switch off", i)
		}
	}
	if out[0]["chunk_id"] != "c1" {
		t.Errorf("Expected original order preserved, got %v first", out[0]["chunk_id"])
	}
}

func TestEnhanceScoresMissingTicker(t *testing.T) {
	e := newTestEnhancer(t)

	enhanced := e.EnhanceScores([]RetrievalResult{
		{"chunk_id": "c1", "score": 0.90},
		{"chunk_id": "c2", "ticker": "SMCO", "score": 0.50},
	}, "score", StrategyAdditive)

	// Missing ticker passes through unmodified, never dropped.
	if len(enhanced) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(enhanced))
	}
	var passthrough RetrievalResult
	for _, r := range enhanced {
		if r["chunk_id"] == "c1" {
			passthrough = r
		}
	}
	if passthrough == nil {
		t.Fatal("Tickerless result dropped")
	}
	if _, annotated := passthrough["applied_boost"]; annotated {
		t.Error("Expected tickerless result left unannotated")
	}
}

func TestEnhanceScoresNestedMetadataTicker(t *testing.T) {
	e := newTestEnhancer(t)

	enhanced := e.EnhanceScores([]RetrievalResult{
		{"chunk_id": "c1", "score": 0.50, "metadata": map[string]interface{}{"ticker": "SMCO"}},
	}, "score", StrategyAdditive)

	if b := enhanced[0]["applied_boost"].(float64); b != 0.25 {
		t.Errorf("Expected nested ticker resolved, boost 0.25, got %f", b)
	}
}

func TestEnhanceScoresDoesNotMutateInput(t *testing.T) {
	e := newTestEnhancer(t)

	input := []RetrievalResult{
		{"chunk_id": "c1", "ticker": "SMCO", "score": 0.50},
	}
	e.EnhanceScores(input, "score", StrategyAdditive)

	if s := input[0]["score"].(float64); s != 0.50 {
		t.Errorf("Input mutated: score now %f", s)
	}
	if _, annotated := input[0]["applied_boost"]; annotated {
		t.Error("Input mutated: boost annotation written to original map")
	}
}

func TestAnalyzeBoostImpact(t *testing.T) {
	e := newTestEnhancer(t)

	original := []RetrievalResult{
		{"chunk_id": "b1", "ticker": "BGCO", "score": 0.90},
		{"chunk_id": "b2", "ticker": "BGCO", "score": 0.85},
		{"chunk_id": "s1", "ticker": "SMCO", "score": 0.80},
	}
	enhanced := e.EnhanceScores(original, "score", StrategyAdditive)

	impact := e.AnalyzeBoostImpact(original, enhanced, 2)

	if impact.TopK != 2 {
		t.Errorf("Expected topK 2, got %d", impact.TopK)
	}
	// s1 boosts to 1.0 and enters the top 2; b2 drops out.
	if impact.NewResults != 1 || impact.DroppedResults != 1 {
		t.Errorf("Expected 1 new / 1 dropped, got %d / %d", impact.NewResults, impact.DroppedResults)
	}
	if impact.UnchangedResults != 1 {
		t.Errorf("Expected 1 unchanged, got %d", impact.UnchangedResults)
	}
	// Top 2 went from one company (BGCO) to two.
	if impact.DiversityImprovement != 1 {
		t.Errorf("Expected diversity improvement 1, got %d", impact.DiversityImprovement)
	}
	if impact.ClassificationDistribution[ClassSmall] != 1 {
		t.Errorf("Expected 1 small company in top-k, got %d", impact.ClassificationDistribution[ClassSmall])
	}
}

func TestBoostForChunk(t *testing.T) {
	e := newTestEnhancer(t)

	if b := e.BoostForChunk(map[string]interface{}{"ticker": "SMCO", "data_source": SourceNews}); b != 0.30 {
		t.Errorf("Expected chunk boost 0.30, got %f", b)
	}
	if b := e.BoostForChunk(map[string]interface{}{"data_source": SourceNews}); b != 0.0 {
		t.Errorf("Expected 0.0 without ticker, got %f", b)
	}
}
