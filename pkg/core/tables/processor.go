package tables

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"findata_pipeline/pkg/core/utils"
)

// TableContext is the filing context handed to the summarizer so summaries
// name the section and company they describe.
type TableContext struct {
	SectionName string
	FilingType  string
	Company     string
}

// Summarizer produces a short natural-language summary of a table.
// Implementations are expected to rate-limit and retry themselves; the
// processor treats any error as "no summary available" rather than failing
// the section.
type Summarizer interface {
	SummarizeTable(ctx context.Context, tableMarkdown string, tctx TableContext) (string, error)
}

// SectionMetadata identifies the filing section being processed and feeds
// table ID generation.
type SectionMetadata struct {
	Ticker          string
	Company         string
	FilingType      string
	FilingDate      string
	AccessionNumber string
	Section         string
	SectionName     string
}

// TableRecord is the persisted metadata for one extracted table, keyed by
// TableID and referenced (never duplicated) from chunk table references.
type TableRecord struct {
	TableID         string    `json:"table_id"`
	FilingAccession string    `json:"filing_accession"`
	Ticker          string    `json:"ticker"`
	Company         string    `json:"company"`
	FilingType      string    `json:"filing_type"`
	FilingDate      string    `json:"filing_date"`
	Section         string    `json:"section"`
	SectionName     string    `json:"section_name"`
	TableIndex      int       `json:"table_index"`
	BlockIndex      int       `json:"block_index"`
	Summary         string    `json:"summary"`
	TableMarkdown   string    `json:"table_markdown"`
	TableHTML       string    `json:"table_html"`
	RecordsJSON     string    `json:"records_json,omitempty"`
	NumRows         int       `json:"num_rows"`
	NumCols         int       `json:"num_cols"`
	NumCells        int       `json:"num_cells"`
	TableType       TableType `json:"table_type,omitempty"`
	Confidence      float64   `json:"confidence"`
	ExtractedAt     time.Time `json:"extracted_at"`
}

var tableRefPattern = regexp.MustCompile(`\[TABLE_REF: (TABLE_[^\]]+)\]`)

// TableProcessor walks a section's block stream, summarizes qualifying
// tables, and replaces each with a placeholder at its literal position.
type TableProcessor struct {
	summarizer   Summarizer
	detector     *FinancialTableDetector
	minTableSize int
}

// NewTableProcessor creates a processor. minTableSize is the cell count
// below which a table is left inline as plain text (0 disables the
// threshold). A nil summarizer is a configuration error: the processor
// cannot produce placeholders without summaries.
func NewTableProcessor(summarizer Summarizer, minTableSize int) (*TableProcessor, error) {
	if summarizer == nil {
		return nil, fmt.Errorf("table processor requires a summarizer")
	}
	return &TableProcessor{
		summarizer:   summarizer,
		detector:     NewFinancialTableDetector(),
		minTableSize: minTableSize,
	}, nil
}

// ProcessSection rewrites a section by replacing each qualifying table with
// a [TABLE_REF] placeholder, returning the rewritten text and the table
// records produced along the way.
//
// Placeholders are inserted at the exact block position the table occupied.
// Text search-and-replace against the flattened document would corrupt
// unrelated occurrences: financial tables frequently recur verbatim
// (identical quarter-over-quarter line items).
//
// If blocks is empty or nil, the structured form was unavailable; the
// section text fallback is returned unchanged with no table records rather
// than fabricating structure from plain text.
func (p *TableProcessor) ProcessSection(ctx context.Context, blocks []Block, sectionText string, meta SectionMetadata) (string, []TableRecord) {
	if len(blocks) == 0 {
		log.Printf("[TableProcessor] No structured blocks for section %s, returning original text", meta.Section)
		return sectionText, nil
	}

	var out strings.Builder
	var records []TableRecord
	tableIndex := 0

	for blockIdx, block := range blocks {
		switch b := block.(type) {
		case TableBlock:
			numCells := b.CellCount()

			// Escape hatch for trivial/ornamental tables: leave them
			// inline, unsummarized and without an ID.
			if p.minTableSize > 0 && numCells < p.minTableSize {
				out.WriteString(b.Text())
				tableIndex++
				continue
			}

			tableID := GenerateTableID(meta, tableIndex)

			summary, err := p.summarizer.SummarizeTable(ctx, b.Markdown, TableContext{
				SectionName: meta.SectionName,
				FilingType:  meta.FilingType,
				Company:     meta.Company,
			})
			if err != nil {
				// Degrade, never drop content: emit the raw table text and
				// log it as unprocessed.
				log.Printf("[TableProcessor] Summarization failed for %s: %v (emitting raw table)", tableID, err)
				out.WriteString(b.Text())
				tableIndex++
				continue
			}

			records = append(records, p.buildRecord(tableID, b, meta, tableIndex, blockIdx, summary))
			out.WriteString(placeholder(tableID, summary))
			tableIndex++

		case TextBlock:
			out.WriteString(b.Content)

		default:
			// Unreachable with the current closed variant set; kept so a
			// new block kind cannot silently drop content.
			out.WriteString(block.Text())
		}
	}

	return out.String(), records
}

func (p *TableProcessor) buildRecord(tableID string, b TableBlock, meta SectionMetadata, tableIndex, blockIndex int, summary string) TableRecord {
	record := TableRecord{
		TableID:         tableID,
		FilingAccession: meta.AccessionNumber,
		Ticker:          meta.Ticker,
		Company:         meta.Company,
		FilingType:      meta.FilingType,
		FilingDate:      meta.FilingDate,
		Section:         meta.Section,
		SectionName:     meta.SectionName,
		TableIndex:      tableIndex,
		BlockIndex:      blockIndex,
		Summary:         summary,
		TableMarkdown:   b.Markdown,
		TableHTML:       b.HTML,
		NumRows:         b.Rows,
		NumCols:         b.Cols,
		NumCells:        b.CellCount(),
		ExtractedAt:     time.Now().UTC(),
	}

	// Classify against the markdown with the section name as context.
	detection := p.detector.AnalyzeChunk(b.Markdown + "\n" + meta.SectionName)
	if detection.IsFinancialTable {
		record.TableType = detection.TableType
		record.Confidence = detection.Confidence
	}

	// Structured extraction is best-effort; a table that defies row parsing
	// still keeps its markdown and summary.
	recordsJSON, err := tableRecordsJSON(b.Markdown)
	if err != nil {
		log.Printf("[TableProcessor] Could not convert %s to records JSON: %v", tableID, err)
	} else {
		record.RecordsJSON = recordsJSON
	}

	return record
}

// GenerateTableID builds the deterministic table identifier:
// TABLE_{TICKER}_{ACCESSION_PREFIX}_{SECTION}_{INDEX}.
// The accession prefix (first 10 digits, dashes stripped) keeps IDs unique
// across filings of the same company.
func GenerateTableID(meta SectionMetadata, tableIndex int) string {
	ticker := meta.Ticker
	if ticker == "" {
		ticker = "UNKNOWN"
	}

	section := meta.Section
	if section == "" {
		section = "UNK"
	}
	section = strings.ReplaceAll(section, " ", "_")
	section = strings.ReplaceAll(section, ".", "_")

	accession := strings.ReplaceAll(meta.AccessionNumber, "-", "")
	if len(accession) > 10 {
		accession = accession[:10]
	}

	return fmt.Sprintf("TABLE_%s_%s_%s_%d", ticker, accession, section, tableIndex)
}

func placeholder(tableID, summary string) string {
	return fmt.Sprintf("[TABLE_REF: %s]\nSummary: %s\n\n", tableID, summary)
}

// ExtractTableReferences returns every table ID referenced in text, in
// order of appearance. Used to populate chunk metadata and to drive
// reconstruction.
func ExtractTableReferences(text string) []string {
	matches := tableRefPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, m[1])
	}
	return refs
}

// ReconstructWithTables is the inverse of ProcessSection: each placeholder
// block (ref line plus Summary line) is replaced with the table's full
// content in the requested format ("markdown" or "html"). Reconstruction is
// best-effort: an unknown table ID leaves its placeholder in place with a
// logged warning.
func ReconstructWithTables(text string, tablesByID map[string]TableRecord, format string) string {
	refs := ExtractTableReferences(text)
	if len(refs) == 0 {
		return text
	}

	reconstructed := text
	for _, tableID := range refs {
		record, ok := tablesByID[tableID]
		if !ok {
			log.Printf("[TableStore] Table %s not found during reconstruction, leaving placeholder", tableID)
			continue
		}

		content := record.TableMarkdown
		if format == "html" {
			content = record.TableHTML
		}

		pattern := regexp.MustCompile(`\[TABLE_REF: ` + regexp.QuoteMeta(tableID) + `\]\s*Summary: [^\n]*`)
		replaced := false
		reconstructed = pattern.ReplaceAllStringFunc(reconstructed, func(match string) string {
			if replaced {
				return match
			}
			replaced = true
			return "\n\n" + content + "\n\n"
		})
	}

	// Sanity check before the text reaches LLM context assembly. Goldmark is
	// permissive, so a failure here means the output is badly mangled; it is
	// logged and still returned, since partial content beats none.
	if format != "html" && !utils.ValidateMarkdown(reconstructed) {
		log.Printf("[TableStore] Reconstructed text failed markdown validation (%d tables)", len(refs))
	}

	return reconstructed
}

// tableRecordsJSON converts a markdown table to a JSON array of row objects
// keyed by header. Duplicate headers are deduplicated with _1, _2 suffixes
// before conversion so no column is silently dropped.
func tableRecordsJSON(tableMarkdown string) (string, error) {
	var headerCells []string
	var rows [][]string

	for _, line := range strings.Split(strings.TrimSpace(tableMarkdown), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "|") || isSeparatorLine(line) {
			continue
		}

		cells := splitRow(line)
		if headerCells == nil {
			headerCells = cells
			continue
		}
		rows = append(rows, cells)
	}

	if headerCells == nil {
		return "", fmt.Errorf("no header row found")
	}

	headers := dedupeColumns(headerCells)

	records := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		record := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(row) {
				record[h] = row[i]
			} else {
				record[h] = ""
			}
		}
		records = append(records, record)
	}

	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("failed to marshal table records: %w", err)
	}
	return string(data), nil
}

func splitRow(line string) []string {
	trimmed := strings.Trim(line, "|")
	parts := strings.Split(trimmed, "|")
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		cells = append(cells, strings.TrimSpace(p))
	}
	return cells
}

// dedupeColumns suffixes repeated header names with _1, _2, ... so rows
// keyed by header keep every column.
func dedupeColumns(headers []string) []string {
	seen := make(map[string]int, len(headers))
	out := make([]string, 0, len(headers))
	for _, h := range headers {
		if n, dup := seen[h]; dup {
			seen[h] = n + 1
			out = append(out, fmt.Sprintf("%s_%d", h, n+1))
		} else {
			seen[h] = 0
			out = append(out, h)
		}
	}
	return out
}
