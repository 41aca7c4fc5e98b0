package store

import (
	"context"
	"strings"
	"testing"

	"findata_pipeline/pkg/core/tables"
)

func TestTableRepoRequiresPool(t *testing.T) {
	repo := NewTableRepo()
	ctx := context.Background()

	// Without InitDB every operation fails loudly instead of panicking on a
	// nil pool.
	err := repo.Save(ctx, []tables.TableRecord{{TableID: "TABLE_AAPL_0000320193_item_8_0"}})
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("Expected pool-not-initialized error from Save, got %v", err)
	}
	if _, err := repo.Load(ctx, "TABLE_AAPL_0000320193_item_8_0"); err == nil {
		t.Error("Expected error from Load without a pool")
	}
	if _, err := repo.LoadByFiling(ctx, "0000320193-23-000106"); err == nil {
		t.Error("Expected error from LoadByFiling without a pool")
	}
}
