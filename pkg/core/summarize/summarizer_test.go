package summarize

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"findata_pipeline/pkg/core/tables"
)

// mockProvider fails the first failures calls, then returns response.
type mockProvider struct {
	response string
	failures int
	calls    int
}

func (m *mockProvider) GenerateResponse(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
	m.calls++
	if m.calls <= m.failures {
		return "", fmt.Errorf("transient API error")
	}
	return m.response, nil
}

func testTableContext() tables.TableContext {
	return tables.TableContext{
		SectionName: "Financial Statements",
		FilingType:  "10-K",
		Company:     "Apple Inc.",
	}
}

func TestNewLLMSummarizerRequiresProvider(t *testing.T) {
	if _, err := NewLLMSummarizer(nil, 30); err == nil {
		t.Error("Expected error for nil provider")
	}
}

func TestSummarizeTableSuccess(t *testing.T) {
	provider := &mockProvider{response: "Operating cash flow was flat year over year."}
	s, err := NewLLMSummarizer(provider, 600)
	if err != nil {
		t.Fatalf("NewLLMSummarizer failed: %v", err)
	}

	summary, err := s.SummarizeTable(context.Background(), "| a | b |", testTableContext())
	if err != nil {
		t.Fatalf("SummarizeTable failed: %v", err)
	}
	if summary != provider.response {
		t.Errorf("Expected %q, got %q", provider.response, summary)
	}
	if provider.calls != 1 {
		t.Errorf("Expected 1 call, got %d", provider.calls)
	}
}

func TestSummarizeTableStripsCodeFence(t *testing.T) {
	provider := &mockProvider{response: "```markdown\nRevenue grew 12%.\n```"}
	s, _ := NewLLMSummarizer(provider, 600)

	summary, err := s.SummarizeTable(context.Background(), "| a | b |", testTableContext())
	if err != nil {
		t.Fatalf("SummarizeTable failed: %v", err)
	}
	if summary != "Revenue grew 12%." {
		t.Errorf("Expected fence stripped, got %q", summary)
	}
}

func TestSummarizeTableUnwrapsJSON(t *testing.T) {
	provider := &mockProvider{response: `{"summary": "Net income declined slightly."}`}
	s, _ := NewLLMSummarizer(provider, 600)

	summary, err := s.SummarizeTable(context.Background(), "| a | b |", testTableContext())
	if err != nil {
		t.Fatalf("SummarizeTable failed: %v", err)
	}
	if summary != "Net income declined slightly." {
		t.Errorf("Expected JSON unwrapped, got %q", summary)
	}
}

func TestSummarizeTableTruncates(t *testing.T) {
	provider := &mockProvider{response: strings.Repeat("x", 500)}
	s, _ := NewLLMSummarizer(provider, 600, WithMaxSummaryLength(50))

	summary, err := s.SummarizeTable(context.Background(), "| a | b |", testTableContext())
	if err != nil {
		t.Fatalf("SummarizeTable failed: %v", err)
	}
	if len(summary) != 53 {
		t.Errorf("Expected 50 chars + ellipsis, got %d: %q", len(summary), summary)
	}
	if !strings.HasSuffix(summary, "...") {
		t.Errorf("Expected ellipsis suffix, got %q", summary)
	}
}

func TestSummarizeTableTruncatesOnRuneBoundary(t *testing.T) {
	// A cut landing inside the euro sign must back up to the rune start
	// instead of emitting a broken byte sequence.
	provider := &mockProvider{response: "Total: €1,234 million in cash and equivalents."}
	s, _ := NewLLMSummarizer(provider, 600, WithMaxSummaryLength(9))

	summary, err := s.SummarizeTable(context.Background(), "| a | b |", testTableContext())
	if err != nil {
		t.Fatalf("SummarizeTable failed: %v", err)
	}
	if !utf8.ValidString(summary) {
		t.Errorf("Truncation split a rune: %q", summary)
	}
	if !strings.HasSuffix(summary, "...") {
		t.Errorf("Expected ellipsis suffix, got %q", summary)
	}
	if strings.ContainsRune(strings.TrimSuffix(summary, "..."), '€') {
		t.Errorf("Expected partial euro sign dropped entirely, got %q", summary)
	}
}

func TestSummarizeTableRetriesThenSucceeds(t *testing.T) {
	provider := &mockProvider{response: "Recovered summary.", failures: 2}
	s, _ := NewLLMSummarizer(provider, 600)

	summary, err := s.SummarizeTable(context.Background(), "| a | b |", testTableContext())
	if err != nil {
		t.Fatalf("Expected recovery after retries, got %v", err)
	}
	if summary != "Recovered summary." {
		t.Errorf("Expected recovered summary, got %q", summary)
	}
	if provider.calls != 3 {
		t.Errorf("Expected 3 calls (2 failures + 1 success), got %d", provider.calls)
	}
}

func TestSummarizeTableTerminalFailure(t *testing.T) {
	provider := &mockProvider{failures: 100}
	s, _ := NewLLMSummarizer(provider, 600)

	summary, err := s.SummarizeTable(context.Background(), "| a | b |", testTableContext())
	if err == nil {
		t.Fatal("Expected terminal error after exhausting retries")
	}
	// Degraded placeholder names the section so the failure is visible.
	if !strings.Contains(summary, "Summary unavailable") || !strings.Contains(summary, "Financial Statements") {
		t.Errorf("Expected degraded placeholder, got %q", summary)
	}
	if provider.calls != 3 {
		t.Errorf("Expected exactly maxRetries calls, got %d", provider.calls)
	}
}

func TestSummarizeTableContextCancellation(t *testing.T) {
	provider := &mockProvider{failures: 100}
	s, _ := NewLLMSummarizer(provider, 600)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.SummarizeTable(ctx, "| a | b |", testTableContext()); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestBuildPromptIncludesContext(t *testing.T) {
	provider := &mockProvider{response: "ok"}
	s, _ := NewLLMSummarizer(provider, 600)

	prompt := s.buildPrompt("| cash | 100 |", testTableContext())
	for _, want := range []string{"Financial Statements", "10-K", "Apple Inc.", "| cash | 100 |"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Prompt missing %q", want)
		}
	}
}
