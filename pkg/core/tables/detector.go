package tables

import (
	"regexp"
	"strings"
)

// TableType classifies a detected financial table.
type TableType string

const (
	TableCashFlow            TableType = "cash_flow"
	TableIncome              TableType = "income"
	TableBalanceSheet        TableType = "balance_sheet"
	TableComprehensiveIncome TableType = "comprehensive_income"
	TableEquity              TableType = "equity"
	TableOther               TableType = "other"
)

// maxDetectionScore is the ceiling of the heuristic score; confidence is the
// raw score divided by it, clamped to [0, 1].
const maxDetectionScore = 11

// financialScoreFloor is the raw score at which a table counts as financial.
const financialScoreFloor = 3

var (
	currencyPattern = regexp.MustCompile(`[\$€£¥]\s*[\d,]+`)
	currencySymbol  = regexp.MustCompile(`[\$€£¥]`)
	monetaryPattern = regexp.MustCompile(`\b\d{1,3}(?:,\d{3})+\b`)
	periodPattern   = regexp.MustCompile(`(20\d{2}|Q[1-4]|FY\s*\d{4})`)
	separatorCell   = regexp.MustCompile(`^[\-\s:]+$`)
)

var financialTerms = []string{
	"revenue", "income", "expense", "cash", "flow", "assets", "liabilities",
	"equity", "profit", "loss", "earnings", "depreciation", "amortization",
	"sales", "operating", "investing", "financing", "stockholders",
}

var financialHeaders = []string{
	"consolidated statements of cash flows",
	"consolidated statements of operations",
	"consolidated balance sheets",
	"consolidated statements of comprehensive income",
	"statements of stockholders",
	"(in millions)",
	"(in millions, except per share data)",
}

// DetectionResult is the block-level verdict. When multiple tables appear in
// one block, it reports the single highest-confidence financial table, and
// the block is financial if any contained table qualifies.
type DetectionResult struct {
	IsFinancialTable bool
	Confidence       float64
	TableType        TableType // empty when no table qualified
	TablesFound      int
	Features         Features
}

// Features are coarse indicators extracted alongside detection, kept for
// coverage reporting and debugging of false negatives.
type Features struct {
	TotalTables        int
	HasCurrencySymbols bool
	HasMonetaryValues  bool
	HasFinancialTerms  bool
}

// singleTableAnalysis is the per-candidate verdict inside a block.
type singleTableAnalysis struct {
	isFinancial bool
	confidence  float64
	tableType   TableType
}

// FinancialTableDetector scores pipe-delimited table candidates against
// financial heuristics. It is a pure function over its input: no I/O, no
// errors for malformed-but-well-typed text.
type FinancialTableDetector struct {
	// ConfidenceThreshold gates IsHighConfidenceFinancialTable.
	ConfidenceThreshold float64
}

// NewFinancialTableDetector creates a detector with the default 0.6
// high-confidence threshold.
func NewFinancialTableDetector() *FinancialTableDetector {
	return &FinancialTableDetector{ConfidenceThreshold: 0.6}
}

// AnalyzeChunk determines whether a text block contains financial tables.
// A block with zero valid candidate tables short-circuits to
// confidence 0.0 / not financial.
func (d *FinancialTableDetector) AnalyzeChunk(chunk string) DetectionResult {
	result := DetectionResult{}

	candidates := d.ExtractTables(chunk)
	result.TablesFound = len(candidates)
	if len(candidates) == 0 {
		return result
	}

	bestConfidence := 0.0
	var bestType TableType
	for _, table := range candidates {
		analysis := d.analyzeSingleTable(table, chunk)
		if analysis.isFinancial && analysis.confidence > bestConfidence {
			bestConfidence = analysis.confidence
			bestType = analysis.tableType
			result.IsFinancialTable = true
		}
	}

	result.Confidence = bestConfidence
	result.TableType = bestType
	result.Features = extractFeatures(chunk, candidates)
	return result
}

// IsHighConfidenceFinancialTable reports whether the block contains a
// financial table at or above the detector's confidence threshold.
func (d *FinancialTableDetector) IsHighConfidenceFinancialTable(chunk string) bool {
	analysis := d.AnalyzeChunk(chunk)
	return analysis.IsFinancialTable && analysis.Confidence >= d.ConfidenceThreshold
}

// analyzeSingleTable scores one candidate table out of maxDetectionScore.
func (d *FinancialTableDetector) analyzeSingleTable(tableMarkdown, chunkContext string) singleTableAnalysis {
	score := 0

	// Currency symbols attached to amounts.
	if currencyPattern.MatchString(tableMarkdown) {
		score += 3
	}

	// Grouped-digit monetary values (1,234,567 style).
	monetaryMatches := monetaryPattern.FindAllString(tableMarkdown, -1)
	if len(monetaryMatches) > 2 {
		score += 2
	}

	// Fiscal periods: years, quarters, FY markers.
	periodMatches := periodPattern.FindAllString(tableMarkdown, -1)
	if len(periodMatches) > 1 {
		score += 2
	}

	// Financial terminology, capped so a glossary page cannot dominate.
	tableLower := strings.ToLower(tableMarkdown)
	termCount := 0
	for _, term := range financialTerms {
		if strings.Contains(tableLower, term) {
			termCount++
		}
	}
	if termCount > 1 {
		if termCount > 2 {
			termCount = 2
		}
		score += termCount
	}

	// Financial-statement headers in the surrounding context.
	chunkLower := strings.ToLower(chunkContext)
	for _, header := range financialHeaders {
		if strings.Contains(chunkLower, header) {
			score += 2
			break
		}
	}

	// Pagination-table guard: "page" with few monetary values is usually a
	// table of contents, not a statement.
	if strings.Contains(tableLower, "page") && len(monetaryMatches) < 3 {
		score -= 2
	}

	confidence := float64(score) / float64(maxDetectionScore)
	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < 0.0 {
		confidence = 0.0
	}

	analysis := singleTableAnalysis{confidence: confidence}
	if score >= financialScoreFloor {
		analysis.isFinancial = true
		analysis.tableType = ClassifyTableType(tableMarkdown, chunkContext)
	}
	return analysis
}

// ClassifyTableType assigns a statement type by keyword precedence over the
// combined context and table text. Checked in fixed order, first match wins:
// a table mentioning both "cash flow" and "balance sheet" is cash_flow.
func ClassifyTableType(tableMarkdown, chunkContext string) TableType {
	combined := strings.ToLower(chunkContext + " " + tableMarkdown)

	switch {
	case strings.Contains(combined, "cash flow"):
		return TableCashFlow
	case strings.Contains(combined, "statement of operations") || strings.Contains(combined, "income statement"):
		return TableIncome
	case strings.Contains(combined, "balance sheet"):
		return TableBalanceSheet
	case strings.Contains(combined, "comprehensive income"):
		return TableComprehensiveIncome
	case strings.Contains(combined, "stockholders") || strings.Contains(combined, "equity"):
		return TableEquity
	default:
		return TableOther
	}
}

// ExtractTables pulls every structurally valid pipe-delimited table out of a
// block as contiguous runs of table-looking rows.
func (d *FinancialTableDetector) ExtractTables(chunk string) []string {
	lines := strings.Split(strings.TrimSpace(chunk), "\n")

	var tables []string
	var current []string
	inTable := false

	flush := func() {
		if len(current) > 0 && validateTableStructure(current) {
			tables = append(tables, strings.Join(current, "\n"))
		}
		current = nil
		inTable = false
	}

	for _, line := range lines {
		if looksLikeTableRow(line) {
			inTable = true
			current = append(current, line)
		} else if inTable {
			flush()
		}
	}
	if inTable {
		flush()
	}

	return tables
}

// looksLikeTableRow requires at least two pipes and two non-empty cells.
func looksLikeTableRow(line string) bool {
	if !strings.HasPrefix(line, "|") && !strings.HasSuffix(line, "|") {
		return false
	}
	if strings.Count(line, "|") < 2 {
		return false
	}

	cells := 0
	for _, cell := range strings.Split(line, "|") {
		if strings.TrimSpace(cell) != "" {
			cells++
		}
	}
	return cells >= 2
}

// validateTableStructure checks that a run of rows is a plausible table:
// at least two rows, column counts within a spread of 2 across non-separator
// rows, and at least one row of substantial content.
func validateTableStructure(tableLines []string) bool {
	if len(tableLines) < 2 {
		return false
	}

	minCols, maxCols := -1, -1
	substantial := false
	for _, line := range tableLines {
		if isSeparatorLine(line) {
			continue
		}
		cols := strings.Count(line, "|")
		if minCols == -1 || cols < minCols {
			minCols = cols
		}
		if cols > maxCols {
			maxCols = cols
		}
		if len(strings.TrimSpace(line)) > 20 {
			substantial = true
		}
	}

	// Financial tables are ragged; allow some column inconsistency.
	if minCols != -1 && maxCols-minCols > 2 {
		return false
	}
	return substantial
}

// isSeparatorLine reports whether line is a markdown header separator
// (| --- | --- |), judged by a majority of dash-style cells.
func isSeparatorLine(line string) bool {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "|") {
		return false
	}

	separators, total := 0, 0
	for _, part := range strings.Split(line, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		total++
		if separatorCell.MatchString(part) {
			separators++
		}
	}
	return separators > 0 && float64(separators)/float64(total) > 0.5
}

func extractFeatures(chunk string, tableCandidates []string) Features {
	chunkLower := strings.ToLower(chunk)
	hasTerms := false
	for _, term := range []string{"revenue", "income", "cash", "assets", "liabilities"} {
		if strings.Contains(chunkLower, term) {
			hasTerms = true
			break
		}
	}
	return Features{
		TotalTables:        len(tableCandidates),
		HasCurrencySymbols: currencySymbol.MatchString(chunk),
		HasMonetaryValues:  monetaryPattern.MatchString(chunk),
		HasFinancialTerms:  hasTerms,
	}
}
