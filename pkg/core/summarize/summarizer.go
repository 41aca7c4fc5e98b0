// Package summarize generates short natural-language summaries of financial
// tables through an LLM provider. The summarizer is the one genuinely
// blocking call in the processing core: it rate-limits itself to a
// requests-per-minute ceiling and retries with exponential backoff, so
// callers can treat a returned error as terminal for that table.
package summarize

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"findata_pipeline/pkg/core/llm"
	"findata_pipeline/pkg/core/tables"
	"findata_pipeline/pkg/core/utils"
)

const systemPrompt = "You are a financial analyst expert at summarizing tables from SEC filings concisely and accurately."

// TokenCounter reports the token length of text, used to annotate prompts
// with the table's size. Satisfied by chunker.TokenChunker.
type TokenCounter interface {
	CountTokens(text string) int
}

// LLMSummarizer summarizes tables via an LLM provider.
type LLMSummarizer struct {
	provider         llm.Provider
	tokens           TokenCounter
	limiter          *rate.Limiter
	maxSummaryLength int
	maxRetries       int
}

// Ensure interface compliance
var _ tables.Summarizer = (*LLMSummarizer)(nil)

// Option configures an LLMSummarizer.
type Option func(*LLMSummarizer)

// WithMaxSummaryLength overrides the 200-character summary ceiling.
func WithMaxSummaryLength(n int) Option {
	return func(s *LLMSummarizer) { s.maxSummaryLength = n }
}

// WithTokenCounter attaches a token counter so prompts can state the
// table's token size.
func WithTokenCounter(tc TokenCounter) Option {
	return func(s *LLMSummarizer) { s.tokens = tc }
}

// NewLLMSummarizer creates a summarizer with the given requests-per-minute
// ceiling. A nil provider is a configuration error raised here, not
// deferred to the first table.
func NewLLMSummarizer(provider llm.Provider, rateLimitRPM int, opts ...Option) (*LLMSummarizer, error) {
	if provider == nil {
		return nil, fmt.Errorf("summarizer requires an LLM provider")
	}
	if rateLimitRPM <= 0 {
		rateLimitRPM = 30
	}

	s := &LLMSummarizer{
		provider:         provider,
		limiter:          rate.NewLimiter(rate.Limit(float64(rateLimitRPM)/60.0), 1),
		maxSummaryLength: 200,
		maxRetries:       3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SummarizeTable produces a 2-3 sentence summary of a markdown table.
// Attempts are rate-limited and retried with exponential backoff; after the
// final failure a degraded placeholder summary is returned along with the
// error so the caller can decide whether to keep it.
func (s *LLMSummarizer) SummarizeTable(ctx context.Context, tableMarkdown string, tctx tables.TableContext) (string, error) {
	prompt := s.buildPrompt(tableMarkdown, tctx)

	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter interrupted: %w", err)
		}

		response, err := s.provider.GenerateResponse(ctx, prompt, systemPrompt, map[string]interface{}{
			"max_tokens":  150,
			"temperature": 0.3,
		})
		if err == nil {
			return s.finishSummary(response, tctx), nil
		}

		lastErr = err
		log.Printf("[Summarizer] Attempt %d/%d failed: %v", attempt+1, s.maxRetries, err)
		if attempt < s.maxRetries-1 {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	return fmt.Sprintf("[Table: %s - Summary unavailable]", tctx.SectionName),
		fmt.Errorf("failed to summarize table after %d attempts: %w", s.maxRetries, lastErr)
}

func (s *LLMSummarizer) finishSummary(response string, tctx tables.TableContext) string {
	summary := utils.CleanMarkdown(response)

	// Some models wrap the summary in a JSON object despite instructions.
	var structured struct {
		Summary string `json:"summary"`
	}
	if err := utils.ParseLLMResponse(summary, &structured); err == nil && structured.Summary != "" {
		summary = structured.Summary
	}

	if len(summary) > s.maxSummaryLength {
		// Back up to a rune boundary so the cut never splits a multi-byte
		// character (currency symbols are common in summaries).
		cut := s.maxSummaryLength
		for cut > 0 && !utf8.RuneStart(summary[cut]) {
			cut--
		}
		summary = summary[:cut] + "..."
	}
	return summary
}

func (s *LLMSummarizer) buildPrompt(tableMarkdown string, tctx tables.TableContext) string {
	contextStr := ""
	if tctx.SectionName != "" {
		contextStr += fmt.Sprintf("Section: %s\n", tctx.SectionName)
	}
	if tctx.FilingType != "" {
		contextStr += fmt.Sprintf("Filing: %s\n", tctx.FilingType)
	}
	if tctx.Company != "" {
		contextStr += fmt.Sprintf("Company: %s\n", tctx.Company)
	}

	sizeNote := ""
	if s.tokens != nil {
		sizeNote = fmt.Sprintf(" (%d tokens)", s.tokens.CountTokens(tableMarkdown))
	}

	return fmt.Sprintf(`%s
Summarize this table in 2-3 clear sentences. Focus on:
1. What data the table shows
2. Key trends or notable values
3. Any significant changes or comparisons

Table%s:
%s

Provide a concise summary (max %d characters):`, contextStr, sizeNote, tableMarkdown, s.maxSummaryLength)
}
