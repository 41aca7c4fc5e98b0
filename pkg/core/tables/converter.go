package tables

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// convertTable renders an HTML table as strictly aligned Markdown using a
// virtual grid, so colspan and rowspan cells land in the right columns.
// Returns the markdown plus the grid dimensions (rows x cols), which feed
// the cell-count threshold in the processor.
//
// Currency symbols and digit grouping are preserved deliberately: the
// financial-table detector scores on them.
func convertTable(table *goquery.Selection) (string, int, int) {
	trs := table.Find("tr")
	rowCount := trs.Length()
	if rowCount == 0 {
		return "", 0, 0
	}

	// Pre-scan for the widest row, counting colspans.
	maxCols := 0
	trs.Each(func(_ int, tr *goquery.Selection) {
		cols := 0
		tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			cols += spanAttr(cell, "colspan")
		})
		if cols > maxCols {
			maxCols = cols
		}
	})
	if maxCols == 0 {
		return "", 0, 0
	}

	grid := make([][]string, rowCount)
	for i := range grid {
		grid[i] = make([]string, maxCols)
	}

	rowIdx := 0
	trs.Each(func(_ int, tr *goquery.Selection) {
		colIdx := 0
		// Skip slots already claimed by rowspans from rows above.
		for colIdx < maxCols && grid[rowIdx][colIdx] != "" {
			colIdx++
		}

		tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			colspan := spanAttr(cell, "colspan")
			rowspan := spanAttr(cell, "rowspan")
			text := cleanCellText(cell.Text())

			for r := 0; r < rowspan; r++ {
				for c := 0; c < colspan; c++ {
					tr, tc := rowIdx+r, colIdx+c
					if tr >= rowCount || tc >= maxCols {
						continue
					}
					if r == 0 && c == 0 {
						grid[tr][tc] = text
					} else {
						// Markdown has no cell spans; pad the exploded
						// slots so columns stay aligned.
						grid[tr][tc] = " "
					}
				}
			}

			colIdx += colspan
			for colIdx < maxCols && grid[rowIdx][colIdx] != "" {
				colIdx++
			}
		})
		rowIdx++
	})

	var sb strings.Builder
	sb.WriteString("\n")
	for i, row := range grid {
		sb.WriteString("|")
		for _, cell := range row {
			if cell == "" {
				cell = " "
			}
			sb.WriteString(" " + cell + " |")
		}
		sb.WriteString("\n")
		if i == 0 {
			sb.WriteString("|")
			for range row {
				sb.WriteString(" --- |")
			}
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")

	return sb.String(), rowCount, maxCols
}

func spanAttr(cell *goquery.Selection, name string) int {
	n, err := strconv.Atoi(cell.AttrOr(name, "1"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func cleanCellText(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "|", "&#124;") // escape pipes
	if text == "" {
		return " "
	}
	return text
}
