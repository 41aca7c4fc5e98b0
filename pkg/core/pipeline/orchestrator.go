// Package pipeline wires the processing stages together: section HTML is
// parsed into blocks, tables are summarized and replaced with placeholders,
// the rewritten text is chunked on exact token counts, and the resulting
// chunk records are stored and fed into coverage tracking.
package pipeline

import (
	"context"
	"fmt"
	"log"

	"findata_pipeline/pkg/core/bias"
	"findata_pipeline/pkg/core/chunker"
	"findata_pipeline/pkg/core/knowledge"
	"findata_pipeline/pkg/core/store"
	"findata_pipeline/pkg/core/tables"
)

// Section is one unit of company content entering the pipeline. SEC filing
// sections carry HTML for structured table extraction; Wikipedia and news
// content arrives as plain text and flows through untouched by the table
// stage.
type Section struct {
	// Source is "sec", "wikipedia", or "news".
	Source string
	// HTML is the raw section HTML, empty for plain-text sources.
	HTML string
	// Text is the plain-text content, used as-is when HTML is empty and as
	// the fallback when HTML parsing fails.
	Text string
	Meta tables.SectionMetadata
}

// CompanyInput bundles everything the pipeline processes for one company run.
type CompanyInput struct {
	Ticker   string
	Company  string
	Sections []Section
	Metadata map[string]interface{}
}

// CompanyResult is what one ProcessCompany run produced.
type CompanyResult struct {
	Ticker   string
	Chunks   []knowledge.ChunkRecord
	Tables   []tables.TableRecord
	Coverage bias.CoverageMetrics
}

// SectionPipeline runs the per-company processing sequence. Sections are
// processed in order; the pipeline itself is not safe for concurrent use on
// the same company.
type SectionPipeline struct {
	chunker    *chunker.TokenChunker
	processor  *tables.TableProcessor
	tracker    *bias.CoverageTracker
	chunkStore knowledge.ChunkStore

	tableStore *store.TableStore
	boosts     *bias.BoostConfigManager
}

// NewSectionPipeline assembles a pipeline from its required stages.
func NewSectionPipeline(ch *chunker.TokenChunker, processor *tables.TableProcessor, tracker *bias.CoverageTracker, chunkStore knowledge.ChunkStore) (*SectionPipeline, error) {
	if ch == nil || processor == nil || tracker == nil || chunkStore == nil {
		return nil, fmt.Errorf("pipeline requires chunker, table processor, coverage tracker, and chunk store")
	}
	return &SectionPipeline{
		chunker:    ch,
		processor:  processor,
		tracker:    tracker,
		chunkStore: chunkStore,
	}, nil
}

// WithTableStore enables persisting extracted table records per run.
func (p *SectionPipeline) WithTableStore(ts *store.TableStore) *SectionPipeline {
	p.tableStore = ts
	return p
}

// WithBoostConfig enables snapshotting the current boost factor onto each
// chunk at write time. The live config remains authoritative at query time.
func (p *SectionPipeline) WithBoostConfig(m *bias.BoostConfigManager) *SectionPipeline {
	p.boosts = m
	return p
}

// ProcessCompany runs every section of one company through table processing
// and chunking, stores the chunk records, and updates coverage metrics.
//
// Section-level failures degrade rather than abort: an HTML parse failure
// falls back to the section's plain text with no table extraction. Store and
// tracking failures do abort, since a half-written company corrupts coverage
// statistics downstream.
func (p *SectionPipeline) ProcessCompany(ctx context.Context, input CompanyInput) (*CompanyResult, error) {
	if input.Ticker == "" {
		return nil, fmt.Errorf("company input requires a ticker")
	}

	log.Printf("[Pipeline] Processing %s (%s): %d sections", input.Ticker, input.Company, len(input.Sections))

	var allChunks []knowledge.ChunkRecord
	var allTables []tables.TableRecord

	for _, section := range input.Sections {
		records, tableRecords := p.processSection(ctx, input, section)
		allChunks = append(allChunks, records...)
		allTables = append(allTables, tableRecords...)
	}

	if err := p.chunkStore.AddChunks(input.Ticker, allChunks); err != nil {
		return nil, fmt.Errorf("failed to store chunks for %s: %w", input.Ticker, err)
	}

	if p.tableStore != nil && len(allTables) > 0 {
		filename := fmt.Sprintf("tables_%s.json", input.Ticker)
		if _, err := p.tableStore.SaveTables(allTables, filename); err != nil {
			return nil, fmt.Errorf("failed to save tables for %s: %w", input.Ticker, err)
		}
	}

	stats := make([]bias.ChunkStat, 0, len(allChunks))
	for _, c := range allChunks {
		stats = append(stats, bias.ChunkStat{Source: c.DataSource, Length: c.ChunkLength})
	}

	coverage, err := p.tracker.TrackCompany(input.Ticker, input.Company, stats, len(allTables), input.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to track coverage for %s: %w", input.Ticker, err)
	}

	log.Printf("[Pipeline] Completed %s: %d chunks, %d tables", input.Ticker, len(allChunks), len(allTables))

	return &CompanyResult{
		Ticker:   input.Ticker,
		Chunks:   allChunks,
		Tables:   allTables,
		Coverage: coverage,
	}, nil
}

// processSection runs one section through table processing and chunking.
func (p *SectionPipeline) processSection(ctx context.Context, input CompanyInput, section Section) ([]knowledge.ChunkRecord, []tables.TableRecord) {
	var blocks []tables.Block
	if section.HTML != "" {
		parsed, err := tables.ParseSectionHTML(section.HTML)
		if err != nil {
			log.Printf("[Pipeline] HTML parse failed for %s/%s: %v (falling back to plain text)",
				input.Ticker, section.Meta.Section, err)
		} else {
			blocks = parsed
		}
	}

	processedText, tableRecords := p.processor.ProcessSection(ctx, blocks, section.Text, section.Meta)

	base := knowledge.ChunkRecord{
		Ticker:     input.Ticker,
		Company:    input.Company,
		DataSource: section.Source,
		Section:    section.Meta.Section,
	}
	if p.boosts != nil {
		base.BoostAtWrite = p.boosts.CompanyBoost(input.Ticker, section.Source)
	}

	return p.chunker.ChunkWithMetadata(processedText, base), tableRecords
}
