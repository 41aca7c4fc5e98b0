package tables

import (
	"strings"
	"testing"
)

func TestParseSectionHTMLOrdering(t *testing.T) {
	html := `<html><body>
<p>Revenue discussion before the table.</p>
<table>
<tr><th>Metric</th><th>2023</th></tr>
<tr><td>Revenue</td><td>$ 383,285</td></tr>
</table>
<p>Narrative after the table.</p>
</body></html>`

	blocks, err := ParseSectionHTML(html)
	if err != nil {
		t.Fatalf("ParseSectionHTML failed: %v", err)
	}
	if len(blocks) != 3 {
		t.Fatalf("Expected 3 blocks (text, table, text), got %d", len(blocks))
	}

	first, ok := blocks[0].(TextBlock)
	if !ok || !strings.Contains(first.Content, "before the table") {
		t.Errorf("Block 0: expected leading text block, got %T %q", blocks[0], blocks[0].Text())
	}

	table, ok := blocks[1].(TableBlock)
	if !ok {
		t.Fatalf("Block 1: expected TableBlock, got %T", blocks[1])
	}
	if table.Rows != 2 || table.Cols != 2 {
		t.Errorf("Expected 2x2 table, got %dx%d", table.Rows, table.Cols)
	}
	if !strings.Contains(table.Markdown, "$ 383,285") {
		t.Errorf("Expected currency preserved in markdown, got %q", table.Markdown)
	}
	if !strings.Contains(table.HTML, "<table>") {
		t.Errorf("Expected raw HTML retained, got %q", table.HTML)
	}

	last, ok := blocks[2].(TextBlock)
	if !ok || !strings.Contains(last.Content, "after the table") {
		t.Errorf("Block 2: expected trailing text block, got %T", blocks[2])
	}
}

func TestParseSectionHTMLNestedTable(t *testing.T) {
	// Table wrapped in a div: the walk must descend so the table keeps its
	// position between the text runs.
	html := `<html><body>
<p>Intro.</p>
<div><table><tr><td>Cash</td><td>100</td></tr><tr><td>Debt</td><td>200</td></tr></table></div>
<p>Outro.</p>
</body></html>`

	blocks, err := ParseSectionHTML(html)
	if err != nil {
		t.Fatalf("ParseSectionHTML failed: %v", err)
	}
	if len(blocks) != 3 {
		t.Fatalf("Expected 3 blocks, got %d", len(blocks))
	}
	if _, ok := blocks[1].(TableBlock); !ok {
		t.Errorf("Expected middle block to be the table, got %T", blocks[1])
	}
}

func TestParseSectionHTMLBareTextAroundTable(t *testing.T) {
	// Bare text nodes interleaved with the table inside one container, with
	// no wrapping <p> elements. Both runs must survive as TextBlocks in
	// document order.
	html := `<html><body>
<div>Intro liquidity discussion.<table><tr><td>Cash</td><td>100</td></tr><tr><td>Debt</td><td>200</td></tr></table>Outro narrative continues.</div>
</body></html>`

	blocks, err := ParseSectionHTML(html)
	if err != nil {
		t.Fatalf("ParseSectionHTML failed: %v", err)
	}
	if len(blocks) != 3 {
		t.Fatalf("Expected 3 blocks (text, table, text), got %d", len(blocks))
	}

	first, ok := blocks[0].(TextBlock)
	if !ok || !strings.Contains(first.Content, "Intro liquidity discussion") {
		t.Errorf("Block 0: intro text dropped, got %T %q", blocks[0], blocks[0].Text())
	}
	if _, ok := blocks[1].(TableBlock); !ok {
		t.Errorf("Block 1: expected TableBlock, got %T", blocks[1])
	}
	last, ok := blocks[2].(TextBlock)
	if !ok || !strings.Contains(last.Content, "Outro narrative continues") {
		t.Errorf("Block 2: outro text dropped, got %T %q", blocks[2], blocks[2].Text())
	}
}

func TestParseSectionHTMLNoTables(t *testing.T) {
	blocks, err := ParseSectionHTML("<html><body><p>Only prose here.</p></body></html>")
	if err != nil {
		t.Fatalf("ParseSectionHTML failed: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("Expected 1 block, got %d", len(blocks))
	}
	if _, ok := blocks[0].(TextBlock); !ok {
		t.Errorf("Expected TextBlock, got %T", blocks[0])
	}
}

func TestConvertTableColspan(t *testing.T) {
	html := `<html><body><table>
<tr><th colspan="2">Combined Header</th><th>2023</th></tr>
<tr><td>Revenue</td><td>Products</td><td>298,085</td></tr>
</table></body></html>`

	blocks, err := ParseSectionHTML(html)
	if err != nil {
		t.Fatalf("ParseSectionHTML failed: %v", err)
	}
	table, ok := blocks[0].(TableBlock)
	if !ok {
		t.Fatalf("Expected TableBlock, got %T", blocks[0])
	}

	// colspan=2 widens the grid to 3 columns.
	if table.Cols != 3 {
		t.Errorf("Expected 3 columns after colspan expansion, got %d", table.Cols)
	}
	lines := strings.Split(strings.TrimSpace(table.Markdown), "\n")
	if len(lines) < 3 {
		t.Fatalf("Expected header + separator + data row, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "---") {
		t.Errorf("Expected separator after header row, got %q", lines[1])
	}
	if strings.Count(lines[0], "|") != strings.Count(lines[2], "|") {
		t.Errorf("Header and data rows not aligned: %q vs %q", lines[0], lines[2])
	}
}

func TestConvertTableRowspan(t *testing.T) {
	html := `<html><body><table>
<tr><td rowspan="2">Assets</td><td>Cash</td><td>29,965</td></tr>
<tr><td>Receivables</td><td>29,508</td></tr>
</table></body></html>`

	blocks, err := ParseSectionHTML(html)
	if err != nil {
		t.Fatalf("ParseSectionHTML failed: %v", err)
	}
	table := blocks[0].(TableBlock)

	if table.Cols != 3 {
		t.Errorf("Expected 3 columns, got %d", table.Cols)
	}
	// The second row's cells land in columns 2 and 3; column 1 is the
	// rowspan padding.
	lines := strings.Split(strings.TrimSpace(table.Markdown), "\n")
	dataRow := lines[len(lines)-1]
	if !strings.Contains(dataRow, "Receivables") || !strings.Contains(dataRow, "29,508") {
		t.Errorf("Rowspan row misaligned: %q", dataRow)
	}
	if strings.Contains(dataRow, "Assets") {
		t.Errorf("Rowspan label duplicated into second row: %q", dataRow)
	}
}

func TestCleanCellText(t *testing.T) {
	if got := cleanCellText("  Net\nincome  "); got != "Net income" {
		t.Errorf("Expected newline collapsed, got %q", got)
	}
	if got := cleanCellText("a|b"); got != "a&#124;b" {
		t.Errorf("Expected pipe escaped, got %q", got)
	}
	if got := cleanCellText("   "); got != " " {
		t.Errorf("Expected blank cell placeholder, got %q", got)
	}
}

func TestCellCount(t *testing.T) {
	b := TableBlock{Rows: 30, Cols: 30}
	if b.CellCount() != 900 {
		t.Errorf("Expected 900 cells, got %d", b.CellCount())
	}
}
