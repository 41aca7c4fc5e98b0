// Package knowledge holds the chunk records produced by the processing
// pipeline (the unit handed to embedding and retrieved by the RAG layer)
// together with an in-memory store used for pipeline assembly and tests.
package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// ChunkRecord is one token-bounded text segment plus its business metadata.
// Immutable once created; the chunker produces the text and counts, the
// pipeline attaches ticker, source, and table references.
type ChunkRecord struct {
	ID      string `json:"chunk_id"`
	Ticker  string `json:"ticker"`
	Company string `json:"company"`

	// DataSource discriminates coverage: "sec", "wikipedia", "news".
	DataSource string `json:"data_source"`
	Section    string `json:"section,omitempty"`

	Text        string `json:"chunk_text"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	ChunkLength int    `json:"chunk_length"`
	ChunkTokens int    `json:"chunk_tokens"`

	// TableReferences lists the table IDs embedded in this chunk's text,
	// in order of appearance.
	TableReferences []string `json:"table_references,omitempty"`

	// BoostAtWrite is the boost factor snapshotted when the chunk was
	// written. The live value in the boost config is authoritative; this
	// snapshot is never reconciled retroactively.
	BoostAtWrite float64 `json:"boost_at_write,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NewChunkRecord creates a record with a fresh ID and timestamp.
func NewChunkRecord(ticker, company, dataSource, section, text string) ChunkRecord {
	return ChunkRecord{
		ID:          uuid.New().String(),
		Ticker:      ticker,
		Company:     company,
		DataSource:  dataSource,
		Section:     section,
		Text:        text,
		ChunkLength: len(text),
		CreatedAt:   time.Now().UTC(),
	}
}
