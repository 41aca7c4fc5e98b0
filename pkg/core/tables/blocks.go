// Package tables handles financial tables embedded in filing sections:
// reconstructing an ordered block stream from section HTML, detecting and
// classifying financial tables, and replacing qualifying tables with stable
// reference placeholders that are resolved again at retrieval time.
package tables

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// =============================================================================
// BLOCK STREAM (closed variant set)
// =============================================================================

// Block is one element of a section's reconstructed document structure.
// The variant set is closed: TextBlock and TableBlock. Dispatch is by type
// switch, so adding a third kind is a compile-visible decision point.
type Block interface {
	isBlock()
	// Text returns the block's plain-text rendering, used when a table is
	// emitted inline instead of being replaced by a placeholder.
	Text() string
}

// TextBlock is a run of prose between tables.
type TextBlock struct {
	Content string
}

func (TextBlock) isBlock() {}

func (b TextBlock) Text() string { return b.Content }

// TableBlock is one table in document order, carrying both representations.
type TableBlock struct {
	Rows     int
	Cols     int
	Markdown string
	HTML     string
}

func (TableBlock) isBlock() {}

func (b TableBlock) Text() string { return b.Markdown }

// CellCount is the size measure used against the min-table-size threshold.
func (b TableBlock) CellCount() int { return b.Rows * b.Cols }

// =============================================================================
// SECTION HTML -> BLOCKS
// =============================================================================

// ParseSectionHTML reconstructs the ordered block stream for a section.
// Tables become TableBlocks (converted to aligned Markdown); everything else
// becomes TextBlocks in original document order. A malformed element degrades
// to its plain text rather than aborting the section.
func ParseSectionHTML(sectionHTML string) ([]Block, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sectionHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse section HTML: %w", err)
	}

	var blocks []Block

	var walk func(sel *goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Each(func(_ int, s *goquery.Selection) {
			if goquery.NodeName(s) == "table" {
				blocks = append(blocks, tableBlockFromSelection(s))
				return
			}
			// Descend through the container's full node list, not just its
			// element children: filing markup interleaves bare text nodes
			// with tables, and those runs must survive as TextBlocks.
			if s.Find("table").Length() > 0 {
				walk(s.Contents())
				return
			}
			if text := strings.TrimSpace(s.Text()); text != "" {
				blocks = append(blocks, TextBlock{Content: text + "\n\n"})
			}
		})
	}

	walk(doc.Find("body").Contents())
	return blocks, nil
}

func tableBlockFromSelection(s *goquery.Selection) TableBlock {
	rawHTML, err := goquery.OuterHtml(s)
	if err != nil {
		rawHTML = ""
	}

	markdown, rows, cols := convertTable(s)
	if markdown == "" {
		// Unconvertible table: fall back to its flattened text so no
		// content is dropped.
		markdown = strings.TrimSpace(s.Text()) + "\n\n"
	}

	return TableBlock{
		Rows:     rows,
		Cols:     cols,
		Markdown: markdown,
		HTML:     rawHTML,
	}
}
