package rates

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allocationSheet() SheetSpec {
	return SheetSpec{
		Name: "allocation",
		Fields: []RateField{
			{Key: "process", Header: "Rate Proses", Aliases: []string{"Rate Proses", "RateProses", "Rate_Proses"}, Numeric: true},
			{Key: "packaging", Header: "Rate Kemas", Aliases: []string{"Rate Kemas", "RateKemas", "Rate_Kemas"}, Numeric: true},
			{Key: "overhead", Header: "Rate Overhead", Aliases: []string{"Rate Overhead", "RateOverhead"}, Numeric: true},
			{Key: "analysis", Header: "Rate Analisa", Aliases: []string{"Rate Analisa", "RateAnalisa"}, Numeric: true},
		},
	}
}

func allocationHeader() []string {
	return []string{"Product ID", "Is Default Rate", "Group ID", "Group Name", "Rate As Group ID",
		"Rate Proses", "Rate Kemas", "Rate Overhead", "Rate Analisa"}
}

func noLocks() map[string]struct{} { return map[string]struct{}{} }

func TestValidateImportAcceptsDefaultAndRateAsRows(t *testing.T) {
	rows := [][]string{
		{"", "YES", "7", "Toll In", "", "10", "", "", ""},
		{"G5", "", "", "", "7", "", "", "", ""},
	}
	existing := []RateRecord{{Periode: "2026", GroupID: "7", GroupName: "Toll In"}}

	batch, errs := ValidateImport(allocationSheet(), allocationHeader(), rows, testProducts(), existing, noLocks())
	require.Empty(t, errs)
	require.NotNil(t, batch)
	require.Len(t, batch.Entries, 2)

	def := batch.Entries[0]
	assert.True(t, def.IsDefaultRate)
	assert.Equal(t, "7", def.GroupID)
	assert.Equal(t, "Toll In", def.GroupName)
	assert.True(t, def.Rates["process"].Equal(d("10")))
	assert.True(t, def.Rates["packaging"].IsZero())

	ra := batch.Entries[1]
	assert.Equal(t, "G5", ra.ProductID)
	assert.Equal(t, "7", ra.RateAsGroupID)
	for key, v := range ra.Rates {
		assert.True(t, v.IsZero(), "rate %s should be forced to zero", key)
	}
}

func TestValidateImportRateAsForcesZeroOverCellValues(t *testing.T) {
	rows := [][]string{
		{"", "YES", "7", "Toll In", "", "10", "", "", ""},
		{"G5", "", "", "", "7", "55", "66", "77", "88"},
	}
	existing := []RateRecord{{Periode: "2026", GroupID: "7", GroupName: "Toll In"}}

	batch, errs := ValidateImport(allocationSheet(), allocationHeader(), rows, testProducts(), existing, noLocks())
	require.Empty(t, errs)
	for key, v := range batch.Entries[1].Rates {
		assert.True(t, v.IsZero(), "rate %s should be zero on a Rate-As row", key)
	}
}

func TestValidateImportIsExhaustive(t *testing.T) {
	rows := [][]string{
		{"NOPE1", "", "", "", "", "1", "", "", ""},
		{"G5", "", "", "", "", "abc", "", "", ""},
		{"", "YES", "", "Toll In", "", "", "", "", ""},
		{"NOPE2", "", "", "", "", "", "", "", ""},
	}

	batch, errs := ValidateImport(allocationSheet(), allocationHeader(), rows, testProducts(), nil, noLocks())
	assert.Nil(t, batch)
	require.Len(t, errs, 4)
	assert.Contains(t, errs[0], "Row 2")
	assert.Contains(t, errs[1], "Row 3")
	assert.Contains(t, errs[1], "is not a number")
	assert.Contains(t, errs[2], "Row 4")
	assert.Contains(t, errs[3], "Row 5")
}

func TestValidateImportDuplicateReferencesFirstLine(t *testing.T) {
	rows := [][]string{
		{"G5", "", "", "", "", "1", "", "", ""},
		{"A1", "", "", "", "", "2", "", "", ""},
		{"g5", "", "", "", "", "3", "", "", ""},
	}

	batch, errs := ValidateImport(allocationSheet(), allocationHeader(), rows, testProducts(), nil, noLocks())
	assert.Nil(t, batch)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Row 4")
	assert.Contains(t, errs[0], "already used in row 2")
}

func TestValidateImportMissingDefaultGroupRejected(t *testing.T) {
	rows := [][]string{
		{"G5", "", "", "", "7", "", "", "", ""},
	}
	existing := []RateRecord{
		{Periode: "2026", GroupID: "7", GroupName: "Toll In"},
		{Periode: "2026", GroupID: "3", GroupName: "Beta Lactam"},
	}

	batch, errs := ValidateImport(allocationSheet(), allocationHeader(), rows, testProducts(), existing, noLocks())
	assert.Nil(t, batch)
	require.Len(t, errs, 1)
	assert.Equal(t, "Missing required default rates for groups: Beta Lactam (ID: 3), Toll In (ID: 7)", errs[0])
}

func TestValidateImportLockedProductsDroppedSilently(t *testing.T) {
	rows := [][]string{
		{"", "YES", "7", "Toll In", "", "10", "", "", ""},
		{"G5", "", "", "", "", "1", "", "", ""},
		{"A1", "", "", "", "", "2", "", "", ""},
	}
	existing := []RateRecord{{Periode: "2026", GroupID: "7", GroupName: "Toll In"}}
	locked := map[string]struct{}{"G5": {}}

	batch, errs := ValidateImport(allocationSheet(), allocationHeader(), rows, testProducts(), existing, locked)
	require.Empty(t, errs)
	require.NotNil(t, batch)
	assert.Equal(t, 1, batch.DroppedLocked)
	require.Len(t, batch.Entries, 2)
	for _, e := range batch.Entries {
		assert.NotEqual(t, "G5", e.ProductID)
	}
}

func TestValidateImportDefaultRowsNeverLockFiltered(t *testing.T) {
	rows := [][]string{
		{"", "YES", "7", "Toll In", "", "10", "", "", ""},
	}
	// A lock set cannot name a default row (no product id), but even a
	// pathological empty-key lock must not drop it.
	locked := map[string]struct{}{"": {}}

	batch, errs := ValidateImport(allocationSheet(), allocationHeader(), rows, testProducts(), nil, locked)
	require.Empty(t, errs)
	require.Len(t, batch.Entries, 1)
	assert.Equal(t, 0, batch.DroppedLocked)
}

func TestValidateImportHeaderAliasVariants(t *testing.T) {
	header := []string{"Product_ID", "IsDefaultRate", "GroupID", "GroupName", "RateAsGroupID", "RateProses"}
	rows := [][]string{
		{"", "YES", "7", "Toll In", "", "12.5"},
		{"G5", "", "", "", "", "3.25"},
	}

	batch, errs := ValidateImport(allocationSheet(), header, rows, testProducts(), nil, noLocks())
	require.Empty(t, errs)
	require.Len(t, batch.Entries, 2)
	assert.True(t, batch.Entries[0].Rates["process"].Equal(d("12.5")))
	assert.True(t, batch.Entries[1].Rates["process"].Equal(d("3.25")))
	// Aliases absent from the file parse as empty, defaulting to zero.
	assert.True(t, batch.Entries[1].Rates["overhead"].IsZero())
}

func TestValidateImportTextFieldsNotParsedNumerically(t *testing.T) {
	sheet := SheetSpec{
		Name: "tollmargin",
		Fields: []RateField{
			{Key: "toll_fee", Header: "Toll Fee", Aliases: []string{"Toll Fee", "TollFee"}, Numeric: true},
			{Key: "margin", Header: "Margin", Aliases: []string{"Margin"}, Numeric: false},
		},
	}
	header := []string{"Product ID", "Is Default Rate", "Group ID", "Group Name", "Rate As Group ID", "Toll Fee", "Margin"}
	rows := [][]string{
		{"G5", "", "", "", "", "1500", "12.5%"},
	}

	batch, errs := ValidateImport(sheet, header, rows, testProducts(), nil, noLocks())
	require.Empty(t, errs)
	require.Len(t, batch.Entries, 1)
	assert.Equal(t, "12.5%", batch.Entries[0].TextRates["margin"])
	assert.True(t, batch.Entries[0].Rates["toll_fee"].Equal(d("1500")))
}

func TestValidateImportEmptyTextFieldRejectedUnlessDelegated(t *testing.T) {
	sheet := SheetSpec{
		Name: "tollmargin",
		Fields: []RateField{
			{Key: "toll_fee", Header: "Toll Fee", Aliases: []string{"Toll Fee"}, Numeric: true},
			{Key: "margin", Header: "Margin", Aliases: []string{"Margin"}, Numeric: false},
		},
	}
	header := []string{"Product ID", "Is Default Rate", "Group ID", "Group Name", "Rate As Group ID", "Toll Fee", "Margin"}
	rows := [][]string{
		{"G5", "", "", "", "", "1500", ""},
		{"A1", "", "", "", "7", "", ""},
	}

	batch, errs := ValidateImport(sheet, header, rows, testProducts(), nil, noLocks())
	assert.Nil(t, batch)
	require.Len(t, errs, 1)
	assert.Equal(t, "Row 2: Margin must not be empty", errs[0])
}

func TestValidateImportSkipsBlankRows(t *testing.T) {
	rows := [][]string{
		{"", "", "", "", "", "", "", "", ""},
		{"G5", "", "", "", "", "1", "", "", ""},
	}

	batch, errs := ValidateImport(allocationSheet(), allocationHeader(), rows, testProducts(), nil, noLocks())
	require.Empty(t, errs)
	require.Len(t, batch.Entries, 1)
	// Line numbering still counts the blank row.
	assert.Equal(t, 3, batch.Entries[0].SourceLine)
}

func TestValidateImportThousandsSeparatorsAccepted(t *testing.T) {
	rows := [][]string{
		{"G5", "", "", "", "", "1,250.75", "", "", ""},
	}

	batch, errs := ValidateImport(allocationSheet(), allocationHeader(), rows, testProducts(), nil, noLocks())
	require.Empty(t, errs)
	assert.True(t, batch.Entries[0].Rates["process"].Equal(d("1250.75")))
}

func TestValidateImportErrorMentionsFieldHeader(t *testing.T) {
	rows := [][]string{
		{"G5", "", "", "", "", "", "x2", "", ""},
	}

	_, errs := ValidateImport(allocationSheet(), allocationHeader(), rows, testProducts(), nil, noLocks())
	require.Len(t, errs, 1)
	assert.True(t, strings.Contains(errs[0], "Rate Kemas"), "error should name the offending column: %s", errs[0])
}
