package knowledge

import (
	"fmt"
	"strings"
	"sync"
)

// ChunkStore is the interface the pipeline writes chunk records through.
type ChunkStore interface {
	AddChunks(ticker string, chunks []ChunkRecord) error
	ChunksByTicker(ticker string) ([]ChunkRecord, error)
	ChunkByID(chunkID string) (ChunkRecord, error)
	SearchChunks(query string, limit int) ([]ChunkRecord, error)
}

// =============================================================================
// IN-MEMORY STORE (for development/testing)
// Production pushes chunks to the external vector store after embedding.
// =============================================================================

// MemoryStore implements ChunkStore with in-memory storage keyed by ticker.
type MemoryStore struct {
	mu       sync.RWMutex
	byTicker map[string][]ChunkRecord
	byID     map[string]ChunkRecord
}

// NewMemoryStore creates a new in-memory chunk store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byTicker: make(map[string][]ChunkRecord),
		byID:     make(map[string]ChunkRecord),
	}
}

// AddChunks appends chunks under a ticker.
func (s *MemoryStore) AddChunks(ticker string, chunks []ChunkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range chunks {
		if chunk.ID == "" {
			return fmt.Errorf("chunk without ID for ticker %s", ticker)
		}
		s.byID[chunk.ID] = chunk
	}
	s.byTicker[ticker] = append(s.byTicker[ticker], chunks...)
	return nil
}

// ChunksByTicker returns all chunks stored for a ticker.
func (s *MemoryStore) ChunksByTicker(ticker string) ([]ChunkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks, ok := s.byTicker[ticker]
	if !ok {
		return nil, fmt.Errorf("no chunks for ticker '%s'", ticker)
	}
	return chunks, nil
}

// ChunkByID returns a specific chunk.
func (s *MemoryStore) ChunkByID(chunkID string) (ChunkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunk, ok := s.byID[chunkID]
	if !ok {
		return ChunkRecord{}, fmt.Errorf("chunk '%s' not found", chunkID)
	}
	return chunk, nil
}

// SearchChunks performs simple substring search across chunk text.
func (s *MemoryStore) SearchChunks(query string, limit int) ([]ChunkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	queryLower := strings.ToLower(query)
	var results []ChunkRecord
	for _, chunk := range s.byID {
		if strings.Contains(strings.ToLower(chunk.Text), queryLower) {
			results = append(results, chunk)
			if len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}
