package store

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"findata_pipeline/pkg/core/tables"
)

// TableStore is the JSON-file storage for a processing run's tables,
// indexed by table_id for reconstruction lookups. TableRepo is the
// Postgres-backed equivalent; this one needs no database and is what the
// batch scripts and tests use.
type TableStore struct {
	dir string
}

// tableFile is the on-disk envelope.
type tableFile struct {
	Metadata tableFileMetadata             `json:"metadata"`
	Tables   map[string]tables.TableRecord `json:"tables"`
}

type tableFileMetadata struct {
	TotalTables int       `json:"total_tables"`
	SavedAt     time.Time `json:"saved_at"`
	Version     string    `json:"version"`
}

// NewTableStore creates a store rooted at dir.
func NewTableStore(dir string) *TableStore {
	return &TableStore{dir: dir}
}

// SaveTables writes a run's table records to filename (a timestamped name
// is generated when empty) and returns the path written.
func (s *TableStore) SaveTables(records []tables.TableRecord, filename string) (string, error) {
	if filename == "" {
		filename = fmt.Sprintf("tables_%s.json", time.Now().UTC().Format("20060102_150405"))
	}
	path := filepath.Join(s.dir, filename)

	byID := make(map[string]tables.TableRecord, len(records))
	for _, record := range records {
		byID[record.TableID] = record
	}

	file := tableFile{
		Metadata: tableFileMetadata{
			TotalTables: len(records),
			SavedAt:     time.Now().UTC(),
			Version:     "1.0",
		},
		Tables: byID,
	}

	if err := NewSnapshotStore(path).Save(file); err != nil {
		return "", fmt.Errorf("failed to save tables: %w", err)
	}

	log.Printf("[TableStore] Saved %d tables to %s", len(records), path)
	return path, nil
}

// LoadTables reads a table file back as the table_id -> record map that
// reconstruction consumes. A missing file returns an empty map.
func (s *TableStore) LoadTables(filename string) (map[string]tables.TableRecord, error) {
	path := filepath.Join(s.dir, filename)

	var file tableFile
	found, err := NewSnapshotStore(path).Load(&file)
	if err != nil {
		return nil, fmt.Errorf("failed to load tables: %w", err)
	}
	if !found {
		log.Printf("[TableStore] Table file not found: %s", path)
		return map[string]tables.TableRecord{}, nil
	}

	log.Printf("[TableStore] Loaded %d tables from %s", len(file.Tables), path)
	return file.Tables, nil
}

// TablesForFiling filters a loaded table map down to one filing.
func TablesForFiling(tablesByID map[string]tables.TableRecord, filingAccession string) []tables.TableRecord {
	var filtered []tables.TableRecord
	for _, record := range tablesByID {
		if record.FilingAccession == filingAccession {
			filtered = append(filtered, record)
		}
	}
	return filtered
}

// TableStats summarizes a stored table set.
type TableStats struct {
	TotalTables  int            `json:"total_tables"`
	ByFilingType map[string]int `json:"by_filing_type"`
	BySection    map[string]int `json:"by_section"`
	ByCompany    map[string]int `json:"by_company"`
}

// SummaryStatistics aggregates counts over a loaded table map.
func SummaryStatistics(tablesByID map[string]tables.TableRecord) TableStats {
	stats := TableStats{
		TotalTables:  len(tablesByID),
		ByFilingType: make(map[string]int),
		BySection:    make(map[string]int),
		ByCompany:    make(map[string]int),
	}
	for _, record := range tablesByID {
		stats.ByFilingType[orUnknown(record.FilingType)]++
		stats.BySection[orUnknown(record.Section)]++
		stats.ByCompany[orUnknown(record.Company)]++
	}
	return stats
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
