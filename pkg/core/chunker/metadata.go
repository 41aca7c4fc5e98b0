package chunker

import (
	"findata_pipeline/pkg/core/knowledge"
	"findata_pipeline/pkg/core/tables"
)

// ChunkWithMetadata splits text and wraps every chunk in a ChunkRecord.
// The base record supplies the business identity (ticker, company, source,
// section, boost snapshot, metadata); this function fills the per-chunk
// fields: fresh ID, index, total, char length, token count, and the table
// references found in the chunk's text.
func (c *TokenChunker) ChunkWithMetadata(text string, base knowledge.ChunkRecord) []knowledge.ChunkRecord {
	pieces := c.Chunk(text)
	if len(pieces) == 0 {
		return nil
	}

	records := make([]knowledge.ChunkRecord, 0, len(pieces))
	for i, piece := range pieces {
		record := knowledge.NewChunkRecord(base.Ticker, base.Company, base.DataSource, base.Section, piece)
		record.ChunkIndex = i
		record.TotalChunks = len(pieces)
		record.ChunkTokens = c.CountTokens(piece)
		record.TableReferences = tables.ExtractTableReferences(piece)
		record.BoostAtWrite = base.BoostAtWrite
		record.Metadata = base.Metadata
		records = append(records, record)
	}
	return records
}
