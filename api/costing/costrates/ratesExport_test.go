package costrates

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CostwiseERP/internal/rates"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func exportProducts() []rates.ProductRecord {
	return []rates.ProductRecord{
		{ProductID: "G5", ProductName: "Gentamicin 5ml", GroupID: "7", GroupName: "Toll In"},
		{ProductID: "A1", ProductName: "Amoxicillin 500", GroupID: "3", GroupName: "Beta Lactam"},
	}
}

func TestBuildExportRowsShape(t *testing.T) {
	records := []rates.RateRecord{
		{ID: "r1", Periode: "2025", ProductID: "G5", GroupID: "7", GroupName: "Toll In",
			Rates: map[string]decimal.Decimal{"rate_process": dec("1234.5"), "rate_packaging": dec("0"), "rate_overhead": dec("10"), "rate_analysis": dec("2.125")}},
		{ID: "r2", Periode: "2025", GroupID: "3", GroupName: "Beta Lactam",
			Rates: map[string]decimal.Decimal{"rate_process": dec("100"), "rate_packaging": dec("200"), "rate_overhead": dec("300"), "rate_analysis": dec("400")}},
	}

	header, rows := BuildExportRows(AllocationSheet.Spec, records, exportProducts())

	require.Equal(t, []string{
		"Product ID", "Product Name", "Is Default Rate", "Group ID", "Group Name", "Rate As Group ID",
		"Rate Proses", "Rate Kemas", "Rate Overhead", "Rate Analisa",
	}, header)
	require.Len(t, rows, 2)

	// Default rows come first regardless of input order.
	assert.Equal(t, "YES", rows[0][2])
	assert.Equal(t, rates.DefaultRateProductName, rows[0][1])
	assert.Equal(t, "3", rows[0][3])

	assert.Equal(t, "G5", rows[1][0])
	assert.Equal(t, "Gentamicin 5ml", rows[1][1])
	assert.Equal(t, "NO", rows[1][2])
	assert.Equal(t, "1234.50", rows[1][6])
	assert.Equal(t, "2.13", rows[1][9])
}

func TestBuildExportRowsBlanksDelegatedValues(t *testing.T) {
	records := []rates.RateRecord{
		{ID: "r1", Periode: "2025", ProductID: "G5", GroupID: "7", GroupName: "Toll In",
			RateAsGroupID: "3",
			Rates:         map[string]decimal.Decimal{"rate_reagent": dec("999")}},
	}

	_, rows := BuildExportRows(ReagentSheet.Spec, records, exportProducts())

	require.Len(t, rows, 1)
	assert.Equal(t, "3", rows[0][5])
	assert.Equal(t, "", rows[0][6], "delegated rows export blank values, not their placeholders")
}

// An exported file must re-import without errors and land on the same
// values to two decimals.
func TestExportImportRoundTrip(t *testing.T) {
	records := []rates.RateRecord{
		{ID: "r1", Periode: "2025", GroupID: "7", GroupName: "Toll In",
			Rates: map[string]decimal.Decimal{"rate_process": dec("15750.333"), "rate_packaging": dec("80"), "rate_overhead": dec("0"), "rate_analysis": dec("12.5")}},
		{ID: "r2", Periode: "2025", GroupID: "3", GroupName: "Beta Lactam",
			Rates: map[string]decimal.Decimal{"rate_process": dec("1"), "rate_packaging": dec("2"), "rate_overhead": dec("3"), "rate_analysis": dec("4")}},
		{ID: "r3", Periode: "2025", ProductID: "G5", GroupID: "7", GroupName: "Toll In",
			Rates: map[string]decimal.Decimal{"rate_process": dec("100.456"), "rate_packaging": dec("0"), "rate_overhead": dec("5"), "rate_analysis": dec("6")}},
		{ID: "r4", Periode: "2025", ProductID: "A1", GroupID: "3", GroupName: "Beta Lactam",
			RateAsGroupID: "7",
			Rates:         map[string]decimal.Decimal{"rate_process": dec("0"), "rate_packaging": dec("0"), "rate_overhead": dec("0"), "rate_analysis": dec("0")}},
	}
	existingDefaults := []rates.RateRecord{
		{ID: "r1", Periode: "2025", GroupID: "7", GroupName: "Toll In"},
		{ID: "r2", Periode: "2025", GroupID: "3", GroupName: "Beta Lactam"},
	}

	header, rows := BuildExportRows(AllocationSheet.Spec, records, exportProducts())

	batch, errs := rates.ValidateImport(AllocationSheet.Spec, header, rows, exportProducts(), existingDefaults, map[string]struct{}{})
	require.Empty(t, errs)
	require.Len(t, batch.Entries, 4)

	byProduct := make(map[string]rates.ImportRow)
	for _, e := range batch.Entries {
		if e.IsDefaultRate {
			byProduct["default:"+e.GroupID] = e
		} else {
			byProduct[e.ProductID] = e
		}
	}

	g5 := byProduct["G5"]
	assert.True(t, g5.Rates["rate_process"].Equal(dec("100.46")), "got %s", g5.Rates["rate_process"])
	assert.True(t, byProduct["default:7"].Rates["rate_process"].Equal(dec("15750.33")))

	a1 := byProduct["A1"]
	assert.Equal(t, "7", a1.RateAsGroupID)
	assert.True(t, a1.Rates["rate_process"].IsZero())
}
