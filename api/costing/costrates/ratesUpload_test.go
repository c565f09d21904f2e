package costrates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CostwiseERP/internal/rates"
)

// Locked products are dropped from the import batch, so the replace's
// delete must leave their stored rows in place or the import would
// erase rates the lock protects.
func TestReplaceDeletePreservesLockedRows(t *testing.T) {
	q := replaceDeleteSQL(AllocationSheet)

	assert.Contains(t, q, "DELETE FROM costallocationrates")
	assert.Contains(t, q, "periode=$1")
	assert.Contains(t, q, "product_id NOT IN (SELECT product_id FROM lockedproducts)")
	// Default rows carry no product and are always replaced.
	assert.Contains(t, q, "product_id IS NULL")
}

func TestReplaceDeleteScopedPerSheetTable(t *testing.T) {
	assert.Contains(t, replaceDeleteSQL(ReagentSheet), "DELETE FROM reagentrates")
	assert.Contains(t, replaceDeleteSQL(TollMarginSheet), "DELETE FROM tollmarginrates")
}

// A locked product's row never reaches the insert phase; together with
// the lock-excluding delete this keeps its stored rates untouched end
// to end.
func TestImportBatchExcludesLockedProduct(t *testing.T) {
	header := []string{"Product ID", "Is Default Rate", "Group ID", "Group Name", "Rate As Group ID",
		"Rate Proses", "Rate Kemas", "Rate Overhead", "Rate Analisa"}
	rows := [][]string{
		{"", "YES", "7", "Toll In", "", "10", "", "", ""},
		{"G5", "", "", "", "", "42", "", "", ""},
	}
	locked := map[string]struct{}{"G5": {}}

	batch, errs := rates.ValidateImport(AllocationSheet.Spec, header, rows, exportProducts(), nil, locked)
	require.Empty(t, errs)
	require.NotNil(t, batch)
	assert.Equal(t, 1, batch.DroppedLocked)
	require.Len(t, batch.Entries, 1)
	assert.True(t, batch.Entries[0].IsDefaultRate, "only the default row may be written for a locked product's group")
}
