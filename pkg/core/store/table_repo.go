package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"findata_pipeline/pkg/core/tables"
)

// TableRepo persists extracted table records to Postgres, keyed by
// table_id. The JSONB payload keeps the schema flexible while the indexed
// columns support the common lookups (by filing, by ticker).
//
// Schema assumption (managed by migrations elsewhere):
// CREATE TABLE IF NOT EXISTS filing_tables (
//   table_id TEXT PRIMARY KEY,
//   ticker TEXT,
//   filing_accession TEXT,
//   table_json JSONB,
//   updated_at TIMESTAMPTZ
// );
type TableRepo struct{}

// NewTableRepo creates a new repository instance.
func NewTableRepo() *TableRepo {
	return &TableRepo{}
}

// Save upserts a batch of table records from one processing run.
func (r *TableRepo) Save(ctx context.Context, records []tables.TableRecord) error {
	pool := GetPool()
	if pool == nil {
		return fmt.Errorf("database pool not initialized")
	}

	query := `
		INSERT INTO filing_tables (table_id, ticker, filing_accession, table_json, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (table_id)
		DO UPDATE SET
			ticker = EXCLUDED.ticker,
			filing_accession = EXCLUDED.filing_accession,
			table_json = EXCLUDED.table_json,
			updated_at = EXCLUDED.updated_at;
	`

	for _, record := range records {
		jsonData, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal table %s: %w", record.TableID, err)
		}
		if _, err := pool.Exec(ctx, query, record.TableID, record.Ticker, record.FilingAccession, jsonData, time.Now()); err != nil {
			return fmt.Errorf("failed to save table %s: %w", record.TableID, err)
		}
	}
	return nil
}

// Load retrieves one table record by ID.
func (r *TableRepo) Load(ctx context.Context, tableID string) (*tables.TableRecord, error) {
	pool := GetPool()
	if pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	query := `SELECT table_json FROM filing_tables WHERE table_id = $1`

	var jsonData []byte
	err := pool.QueryRow(ctx, query, tableID).Scan(&jsonData)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("no table found for id %s", tableID)
		}
		return nil, fmt.Errorf("failed to load table: %w", err)
	}

	var record tables.TableRecord
	if err := json.Unmarshal(jsonData, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal table %s: %w", tableID, err)
	}
	return &record, nil
}

// LoadByFiling retrieves every table record for one filing accession,
// as the map keyed by table_id that reconstruction consumes.
func (r *TableRepo) LoadByFiling(ctx context.Context, filingAccession string) (map[string]tables.TableRecord, error) {
	pool := GetPool()
	if pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	query := `SELECT table_json FROM filing_tables WHERE filing_accession = $1`

	rows, err := pool.Query(ctx, query, filingAccession)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables for filing %s: %w", filingAccession, err)
	}
	defer rows.Close()

	result := make(map[string]tables.TableRecord)
	for rows.Next() {
		var jsonData []byte
		if err := rows.Scan(&jsonData); err != nil {
			return nil, fmt.Errorf("failed to scan table row: %w", err)
		}
		var record tables.TableRecord
		if err := json.Unmarshal(jsonData, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal table row: %w", err)
		}
		result[record.TableID] = record
	}
	return result, rows.Err()
}
