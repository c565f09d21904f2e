package rates

import (
	"sort"
	"strings"
)

// Resolve denormalizes the rate records of one periode into grid rows:
// product and group names filled in, Rate-As delegation followed to the
// referenced group's default rate, default rows first. Pure function of
// its inputs; record counts are small enough that full recomputation
// per call is fine.
func Resolve(records []RateRecord, products []ProductRecord, periode string) []ResolvedRow {
	productsByID := make(map[string]ProductRecord, len(products))
	for _, p := range products {
		productsByID[strings.ToLower(p.ProductID)] = p
	}

	defaults := make(map[string]RateRecord)
	for _, r := range records {
		if r.Periode != periode || !r.IsDefaultRate() {
			continue
		}
		if _, dup := defaults[r.GroupID]; !dup {
			defaults[r.GroupID] = r
		}
	}

	rows := make([]ResolvedRow, 0, len(records))
	for _, r := range records {
		if r.Periode != periode {
			continue
		}
		row := ResolvedRow{
			RecordID:  r.ID,
			ProductID: r.ProductID,
			GroupID:   r.GroupID,
			GroupName: r.GroupName,
			Rates:     copyRates(r.Rates),
			TextRates: copyText(r.TextRates),
		}
		switch {
		case r.IsDefaultRate():
			row.IsDefaultRate = true
			row.ProductName = DefaultRateProductName
		case r.IsDelegated():
			row.IsDelegated = true
			if ref, ok := defaults[r.RateAsGroupID]; ok {
				row.Rates = copyRates(ref.Rates)
				row.TextRates = copyText(ref.TextRates)
				row.DelegatedGroupName = ref.GroupName
			} else {
				// No default rate to borrow from: keep the record's own
				// (typically zero) values and flag the row instead of
				// failing the whole resolve.
				row.DelegationBroken = true
			}
			fillProductNames(&row, productsByID)
		default:
			fillProductNames(&row, productsByID)
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].IsDefaultRate != rows[j].IsDefaultRate {
			return rows[i].IsDefaultRate
		}
		return strings.ToLower(rows[i].GroupName) < strings.ToLower(rows[j].GroupName)
	})
	return rows
}

// fillProductNames resolves display names from the product master. A
// missing product does not fail the resolve; the row renders with
// placeholder names.
func fillProductNames(row *ResolvedRow, productsByID map[string]ProductRecord) {
	p, ok := productsByID[strings.ToLower(row.ProductID)]
	if !ok {
		row.ProductName = UnknownProductName
		row.GroupName = UnknownGroupName
		return
	}
	row.ProductName = p.ProductName
	row.GroupID = p.GroupID
	row.GroupName = p.GroupName
}
