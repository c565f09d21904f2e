package rates

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func testProducts() []ProductRecord {
	return []ProductRecord{
		{ProductID: "G5", ProductName: "Gentamicin 5ml", GroupID: "7", GroupName: "Toll In", CategoryCode: "TI"},
		{ProductID: "A1", ProductName: "Amoxicillin Caps", GroupID: "3", GroupName: "Beta Lactam", CategoryCode: "BL"},
		{ProductID: "B2", ProductName: "Betadine Sol", GroupID: "3", GroupName: "Beta Lactam", CategoryCode: "BL"},
	}
}

func TestResolveDelegationCopiesDefaultRates(t *testing.T) {
	records := []RateRecord{
		{ID: "r1", Periode: "2026", GroupID: "7", GroupName: "Toll In",
			Rates: map[string]decimal.Decimal{"process": d("10"), "overhead": d("2.5")}},
		{ID: "r2", Periode: "2026", ProductID: "G5", GroupID: "7", RateAsGroupID: "7",
			Rates: map[string]decimal.Decimal{"process": d("999"), "overhead": d("999")}},
	}

	rows := Resolve(records, testProducts(), "2026")
	require.Len(t, rows, 2)

	delegated := rows[1]
	require.True(t, delegated.IsDelegated)
	assert.False(t, delegated.DelegationBroken)
	assert.Equal(t, "Toll In", delegated.DelegatedGroupName)
	// Effective values come from the group default, never from the
	// delegating record's own stored values.
	assert.True(t, delegated.Rates["process"].Equal(d("10")), "process=%s", delegated.Rates["process"])
	assert.True(t, delegated.Rates["overhead"].Equal(d("2.5")))
	assert.Equal(t, "Gentamicin 5ml", delegated.ProductName)
}

func TestResolveBrokenDelegationFallsBackToOwnRates(t *testing.T) {
	records := []RateRecord{
		{ID: "r1", Periode: "2026", ProductID: "G5", GroupID: "7", RateAsGroupID: "42",
			Rates: map[string]decimal.Decimal{"process": decimal.Zero}},
	}

	rows := Resolve(records, testProducts(), "2026")
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsDelegated)
	assert.True(t, rows[0].DelegationBroken)
	assert.Empty(t, rows[0].DelegatedGroupName)
	assert.True(t, rows[0].Rates["process"].IsZero())
}

func TestResolveDefaultRowsFirstThenGroupName(t *testing.T) {
	records := []RateRecord{
		{ID: "m1", Periode: "2026", ProductID: "A1", GroupID: "3"},
		{ID: "def-z", Periode: "2026", GroupID: "9", GroupName: "Zinc Line"},
		{ID: "m2", Periode: "2026", ProductID: "G5", GroupID: "7"},
		{ID: "def-a", Periode: "2026", GroupID: "3", GroupName: "beta lactam"},
	}

	rows := Resolve(records, testProducts(), "2026")
	require.Len(t, rows, 4)

	// Defaults lead regardless of name, then case-insensitive group
	// name ordering for the rest.
	assert.Equal(t, "def-a", rows[0].RecordID)
	assert.Equal(t, "def-z", rows[1].RecordID)
	assert.Equal(t, "m1", rows[2].RecordID)
	assert.Equal(t, "m2", rows[3].RecordID)
	assert.True(t, rows[0].IsDefaultRate)
	assert.Equal(t, DefaultRateProductName, rows[0].ProductName)
}

func TestResolveSortIsStableOnEqualGroupNames(t *testing.T) {
	records := []RateRecord{
		{ID: "first", Periode: "2026", ProductID: "B2", GroupID: "3"},
		{ID: "second", Periode: "2026", ProductID: "A1", GroupID: "3"},
	}

	rows := Resolve(records, testProducts(), "2026")
	require.Len(t, rows, 2)
	assert.Equal(t, "first", rows[0].RecordID)
	assert.Equal(t, "second", rows[1].RecordID)
}

func TestResolveUnknownProductDoesNotFailCall(t *testing.T) {
	records := []RateRecord{
		{ID: "r1", Periode: "2026", ProductID: "GONE", GroupID: "7", GroupName: "Toll In"},
		{ID: "r2", Periode: "2026", ProductID: "G5", GroupID: "7"},
	}

	rows := Resolve(records, testProducts(), "2026")
	require.Len(t, rows, 2)

	var unknown *ResolvedRow
	for i := range rows {
		if rows[i].RecordID == "r1" {
			unknown = &rows[i]
		}
	}
	require.NotNil(t, unknown)
	assert.Equal(t, UnknownProductName, unknown.ProductName)
	assert.Equal(t, UnknownGroupName, unknown.GroupName)
}

func TestResolveFiltersByPeriode(t *testing.T) {
	records := []RateRecord{
		{ID: "r1", Periode: "2025", ProductID: "G5", GroupID: "7"},
		{ID: "r2", Periode: "2026", ProductID: "A1", GroupID: "3"},
	}

	rows := Resolve(records, testProducts(), "2026")
	require.Len(t, rows, 1)
	assert.Equal(t, "r2", rows[0].RecordID)
}

func TestResolveDoesNotMutateInputs(t *testing.T) {
	own := map[string]decimal.Decimal{"process": d("999")}
	records := []RateRecord{
		{ID: "def", Periode: "2026", GroupID: "7", GroupName: "Toll In",
			Rates: map[string]decimal.Decimal{"process": d("10")}},
		{ID: "r", Periode: "2026", ProductID: "G5", GroupID: "7", RateAsGroupID: "7", Rates: own},
	}

	rows := Resolve(records, testProducts(), "2026")
	rows[1].Rates["process"] = d("-1")

	assert.True(t, own["process"].Equal(d("999")))
	assert.True(t, records[0].Rates["process"].Equal(d("10")))
}
