package rates

import "strings"

// Canonical base headers. The exporter writes exactly these, so a
// round-tripped file always resolves on the first alias.
const (
	HeaderProductID     = "Product ID"
	HeaderIsDefaultRate = "Is Default Rate"
	HeaderGroupID       = "Group ID"
	HeaderGroupName     = "Group Name"
	HeaderRateAsGroupID = "Rate As Group ID"
)

// Internal keys for the base (non-rate) columns shared by every sheet.
const (
	colProductID     = "product_id"
	colIsDefaultRate = "is_default_rate"
	colGroupID       = "group_id"
	colGroupName     = "group_name"
	colRateAs        = "rate_as_group_id"
)

// baseAliases lists the accepted spellings per logical column, in
// priority order. Legacy exports used the underscore and compact
// variants, so both stay accepted.
var baseAliases = map[string][]string{
	colProductID:     {HeaderProductID, "ProductID", "Product_ID"},
	colIsDefaultRate: {HeaderIsDefaultRate, "IsDefaultRate", "Is_Default_Rate"},
	colGroupID:       {HeaderGroupID, "GroupID", "Group_ID"},
	colGroupName:     {HeaderGroupName, "GroupName", "Group_Name"},
	colRateAs:        {HeaderRateAsGroupID, "RateAsGroupID", "Rate_As_Group_ID"},
}

// headerIndex maps internal column keys to spreadsheet column
// positions. It is resolved once per import from the header row, not
// re-derived per data row.
type headerIndex map[string]int

func buildHeaderIndex(sheet SheetSpec, header []string) headerIndex {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		name := normalizeHeader(h)
		if name == "" {
			continue
		}
		if _, seen := byName[name]; !seen {
			byName[name] = i
		}
	}

	resolve := func(aliases []string) (int, bool) {
		for _, a := range aliases {
			if i, ok := byName[normalizeHeader(a)]; ok {
				return i, true
			}
		}
		return 0, false
	}

	ix := make(headerIndex, len(baseAliases)+len(sheet.Fields))
	for key, aliases := range baseAliases {
		if i, ok := resolve(aliases); ok {
			ix[key] = i
		}
	}
	for _, f := range sheet.Fields {
		if i, ok := resolve(f.Aliases); ok {
			ix[f.Key] = i
		}
	}
	return ix
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// cell returns the trimmed cell under the given column key, or "" when
// the column is absent from the file or the row is short.
func (ix headerIndex) cell(row []string, key string) string {
	i, ok := ix[key]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
