package tables

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"findata_pipeline/pkg/core/utils"
)

// mockSummarizer returns a canned summary, or fails every call.
type mockSummarizer struct {
	summary string
	fail    bool
	calls   int
}

func (m *mockSummarizer) SummarizeTable(ctx context.Context, tableMarkdown string, tctx TableContext) (string, error) {
	m.calls++
	if m.fail {
		return "", fmt.Errorf("summarizer unavailable")
	}
	return m.summary, nil
}

func testMeta() SectionMetadata {
	return SectionMetadata{
		Ticker:          "AAPL",
		Company:         "Apple Inc.",
		FilingType:      "10-K",
		FilingDate:      "2023-11-03",
		AccessionNumber: "0000320193-23-000106",
		Section:         "item_8",
		SectionName:     "Financial Statements",
	}
}

func financialTableBlock() TableBlock {
	return TableBlock{
		Rows: 3,
		Cols: 3,
		Markdown: `| Line Item | 2023 | 2022 |
| --- | --- | --- |
| Cash generated by operating activities | $ 110,543 | $ 122,151 |`,
		HTML: "<table><tr><td>Cash generated by operating activities</td></tr></table>",
	}
}

func TestNewTableProcessorRequiresSummarizer(t *testing.T) {
	if _, err := NewTableProcessor(nil, 3); err == nil {
		t.Error("Expected error for nil summarizer")
	}
}

func TestProcessSectionEmptyBlocks(t *testing.T) {
	p, _ := NewTableProcessor(&mockSummarizer{summary: "s"}, 3)

	fallback := "Raw section text with no structure."
	text, records := p.ProcessSection(context.Background(), nil, fallback, testMeta())

	if text != fallback {
		t.Errorf("Expected fallback text unchanged, got %q", text)
	}
	if records != nil {
		t.Errorf("Expected no records, got %d", len(records))
	}
}

func TestProcessSectionReplacesTable(t *testing.T) {
	mock := &mockSummarizer{summary: "Operating cash flow held steady year over year."}
	p, _ := NewTableProcessor(mock, 3)

	blocks := []Block{
		TextBlock{Content: "Before the table.\n\n"},
		financialTableBlock(),
		TextBlock{Content: "After the table.\n\n"},
	}
	text, records := p.ProcessSection(context.Background(), blocks, "", testMeta())

	if len(records) != 1 {
		t.Fatalf("Expected 1 table record, got %d", len(records))
	}
	record := records[0]

	expectedID := "TABLE_AAPL_0000320193_item_8_0"
	if record.TableID != expectedID {
		t.Errorf("Expected table ID %s, got %s", expectedID, record.TableID)
	}
	if record.Summary != mock.summary {
		t.Errorf("Expected summary stored on record, got %q", record.Summary)
	}
	if record.NumCells != 9 {
		t.Errorf("Expected 9 cells, got %d", record.NumCells)
	}
	if record.TableType != TableOther && record.TableType != TableCashFlow {
		t.Errorf("Unexpected table type %s", record.TableType)
	}

	if !strings.Contains(text, "[TABLE_REF: "+expectedID+"]") {
		t.Errorf("Expected placeholder in output, got %q", text)
	}
	if !strings.Contains(text, "Summary: "+mock.summary) {
		t.Errorf("Expected summary line in placeholder, got %q", text)
	}
	if strings.Contains(text, "110,543") {
		t.Errorf("Expected table content removed from text, got %q", text)
	}
	if !strings.Contains(text, "Before the table.") || !strings.Contains(text, "After the table.") {
		t.Errorf("Surrounding text lost: %q", text)
	}

	// Placeholder sits between the two text runs, at the table's position.
	before := strings.Index(text, "Before the table.")
	ref := strings.Index(text, "[TABLE_REF:")
	after := strings.Index(text, "After the table.")
	if !(before < ref && ref < after) {
		t.Errorf("Placeholder not at table position: before=%d ref=%d after=%d", before, ref, after)
	}
}

func TestProcessSectionSmallTableInline(t *testing.T) {
	mock := &mockSummarizer{summary: "should not be called"}
	p, _ := NewTableProcessor(mock, 10)

	small := TableBlock{Rows: 2, Cols: 2, Markdown: "| a | b |\n| c | d |\n"}
	text, records := p.ProcessSection(context.Background(), []Block{small}, "", testMeta())

	if mock.calls != 0 {
		t.Errorf("Expected summarizer not called for small table, got %d calls", mock.calls)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records for small table, got %d", len(records))
	}
	if !strings.Contains(text, "| a | b |") {
		t.Errorf("Expected small table inline, got %q", text)
	}
}

func TestProcessSectionSummarizerFailure(t *testing.T) {
	p, _ := NewTableProcessor(&mockSummarizer{fail: true}, 3)

	block := financialTableBlock()
	text, records := p.ProcessSection(context.Background(), []Block{block}, "", testMeta())

	if len(records) != 0 {
		t.Errorf("Expected no records on summarizer failure, got %d", len(records))
	}
	if strings.Contains(text, "[TABLE_REF:") {
		t.Errorf("Expected no placeholder on failure, got %q", text)
	}
	// Content degrades to the raw table, never disappears.
	if !strings.Contains(text, "110,543") {
		t.Errorf("Expected raw table emitted on failure, got %q", text)
	}
}

func TestGenerateTableID(t *testing.T) {
	meta := testMeta()

	id := GenerateTableID(meta, 4)
	if id != "TABLE_AAPL_0000320193_item_8_4" {
		t.Errorf("Unexpected table ID %s", id)
	}

	// Missing fields fall back to placeholders rather than empty segments.
	id = GenerateTableID(SectionMetadata{}, 0)
	if id != "TABLE_UNKNOWN__UNK_0" {
		t.Errorf("Unexpected fallback ID %s", id)
	}

	// Spaces and dots in the section are normalized.
	meta.Section = "Item 8. Financials"
	id = GenerateTableID(meta, 1)
	if strings.ContainsAny(id, " .") {
		t.Errorf("Expected normalized section in ID, got %s", id)
	}
}

func TestExtractTableReferences(t *testing.T) {
	text := `Intro text.
[TABLE_REF: TABLE_AAPL_0000320193_item_8_0]
Summary: First table.

Middle text.
[TABLE_REF: TABLE_AAPL_0000320193_item_8_1]
Summary: Second table.
`
	refs := ExtractTableReferences(text)
	if len(refs) != 2 {
		t.Fatalf("Expected 2 references, got %d", len(refs))
	}
	if refs[0] != "TABLE_AAPL_0000320193_item_8_0" || refs[1] != "TABLE_AAPL_0000320193_item_8_1" {
		t.Errorf("References wrong or out of order: %v", refs)
	}

	if refs := ExtractTableReferences("no references here"); refs != nil {
		t.Errorf("Expected nil for text without references, got %v", refs)
	}
}

func TestReconstructWithTables(t *testing.T) {
	tableID := "TABLE_AAPL_0000320193_item_8_0"
	text := fmt.Sprintf("Intro.\n\n[TABLE_REF: %s]\nSummary: Cash flows summary.\n\nOutro.", tableID)

	byID := map[string]TableRecord{
		tableID: {
			TableID:       tableID,
			TableMarkdown: "| Cash | 110,543 |\n| Debt | 98,959 |",
			TableHTML:     "<table><tr><td>Cash</td></tr></table>",
		},
	}

	md := ReconstructWithTables(text, byID, "markdown")
	if strings.Contains(md, "[TABLE_REF:") {
		t.Errorf("Expected placeholder replaced, got %q", md)
	}
	if !strings.Contains(md, "110,543") {
		t.Errorf("Expected table markdown inserted, got %q", md)
	}
	if !strings.Contains(md, "Intro.") || !strings.Contains(md, "Outro.") {
		t.Errorf("Surrounding text lost: %q", md)
	}

	html := ReconstructWithTables(text, byID, "html")
	if !strings.Contains(html, "<table>") {
		t.Errorf("Expected HTML inserted for html format, got %q", html)
	}
}

func TestReconstructProducesRenderableMarkdown(t *testing.T) {
	tableID := "TABLE_AAPL_0000320193_item_8_0"
	text := fmt.Sprintf("Liquidity discussion.\n\n[TABLE_REF: %s]\nSummary: Cash position.\n\n", tableID)
	byID := map[string]TableRecord{
		tableID: {
			TableID:       tableID,
			TableMarkdown: "| Metric | 2023 |\n| --- | --- |\n| Cash | 29,965 |",
		},
	}

	out := ReconstructWithTables(text, byID, "markdown")
	if !utils.ValidateMarkdown(out) {
		t.Errorf("Reconstructed text is not renderable markdown: %q", out)
	}
}

func TestReconstructWithTablesUnknownID(t *testing.T) {
	text := "[TABLE_REF: TABLE_MISSING_0000000000_x_0]\nSummary: gone.\n"
	out := ReconstructWithTables(text, map[string]TableRecord{}, "markdown")
	if !strings.Contains(out, "[TABLE_REF: TABLE_MISSING_0000000000_x_0]") {
		t.Errorf("Expected unknown placeholder left in place, got %q", out)
	}
}

func TestTableRecordsJSON(t *testing.T) {
	markdown := `| Metric | 2023 | 2023 |
| --- | --- | --- |
| Revenue | 383,285 | 394,328 |`

	out, err := tableRecordsJSON(markdown)
	if err != nil {
		t.Fatalf("tableRecordsJSON failed: %v", err)
	}
	// Duplicate year columns are disambiguated, not dropped.
	if !strings.Contains(out, `"2023"`) || !strings.Contains(out, `"2023_1"`) {
		t.Errorf("Expected deduplicated columns, got %s", out)
	}
	if !strings.Contains(out, "383,285") || !strings.Contains(out, "394,328") {
		t.Errorf("Expected both values kept, got %s", out)
	}
}
