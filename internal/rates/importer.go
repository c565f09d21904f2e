package rates

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// IsDefaultRateYes is the exact cell text marking an explicit
// default-rate row. The match is case sensitive; the exporter writes
// YES/NO and hand-edited files are expected to follow it.
const IsDefaultRateYes = "YES"

// headerRowOffset converts a 0-based data-row index into the 1-based
// spreadsheet line the user sees (one header row precedes the data).
const headerRowOffset = 2

// ValidateImport checks a parsed spreadsheet against the current
// reference data and either returns a batch ready for a
// delete-by-periode + insert replace, or the full list of problems.
// Validation is exhaustive: every row is checked so the user sees all
// errors at once, and any error means no batch at all.
func ValidateImport(sheet SheetSpec, header []string, dataRows [][]string, products []ProductRecord, existingDefaults []RateRecord, lockedProductIDs map[string]struct{}) (*ImportBatch, []string) {
	ix := buildHeaderIndex(sheet, header)

	productsByID := make(map[string]ProductRecord, len(products))
	for _, p := range products {
		productsByID[strings.ToLower(p.ProductID)] = p
	}

	var (
		errs         []string
		entries      []ImportRow
		seenDefaults = make(map[string]bool)
	)

	for i, row := range dataRows {
		line := i + headerRowOffset
		if isBlankRow(row) {
			continue
		}

		productID := ix.cell(row, colProductID)
		isDefault := ix.cell(row, colIsDefaultRate) == IsDefaultRateYes || productID == ""

		entry := ImportRow{
			SourceLine:    line,
			IsDefaultRate: isDefault,
			Rates:         make(map[string]decimal.Decimal, len(sheet.Fields)),
			TextRates:     make(map[string]string),
		}

		if isDefault {
			entry.GroupID = ix.cell(row, colGroupID)
			entry.GroupName = ix.cell(row, colGroupName)
			if entry.GroupID == "" || entry.GroupName == "" {
				errs = append(errs, fmt.Sprintf("Row %d: default rate rows require both Group ID and Group Name", line))
				continue
			}
			seenDefaults[entry.GroupID] = true
		} else {
			p, ok := productsByID[strings.ToLower(productID)]
			if !ok {
				errs = append(errs, fmt.Sprintf("Row %d: Product ID %q not found in product master", line, productID))
				continue
			}
			entry.ProductID = p.ProductID
			entry.GroupID = p.GroupID
			entry.GroupName = p.GroupName
		}

		entry.RateAsGroupID = ix.cell(row, colRateAs)

		rowOK := true
		for _, f := range sheet.Fields {
			if entry.RateAsGroupID != "" {
				// Rate-As rows never carry their own values.
				if f.Numeric {
					entry.Rates[f.Key] = decimal.Zero
				} else {
					entry.TextRates[f.Key] = ""
				}
				continue
			}
			cell := ix.cell(row, f.Key)
			if !f.Numeric {
				// Text fields (margin as "12.5%") are not parsed, but a
				// non-delegated row must still carry a value.
				if cell == "" {
					errs = append(errs, fmt.Sprintf("Row %d: %s must not be empty", line, f.Header))
					rowOK = false
					continue
				}
				entry.TextRates[f.Key] = cell
				continue
			}
			if cell == "" {
				entry.Rates[f.Key] = decimal.Zero
				continue
			}
			d, err := decimal.NewFromString(strings.ReplaceAll(cell, ",", ""))
			if err != nil {
				errs = append(errs, fmt.Sprintf("Row %d: %s value %q is not a number", line, f.Header, cell))
				rowOK = false
				continue
			}
			entry.Rates[f.Key] = d
		}
		if !rowOK {
			continue
		}

		entries = append(entries, entry)
	}

	// Duplicate detection runs after the full parse, not per row: the
	// "first used in row N" reference needs every accepted row
	// collected first.
	firstLineByID := make(map[string]int)
	kept := entries[:0]
	for _, e := range entries {
		if e.ProductID == "" {
			kept = append(kept, e)
			continue
		}
		key := strings.ToLower(e.ProductID)
		if first, dup := firstLineByID[key]; dup {
			errs = append(errs, fmt.Sprintf("Row %d: duplicate Product ID %q, already used in row %d", e.SourceLine, e.ProductID, first))
			continue
		}
		firstLineByID[key] = e.SourceLine
		kept = append(kept, e)
	}
	entries = kept

	// Every group that currently has a default rate must reappear in
	// the file, or the replace would silently drop a rate that
	// downstream costing depends on.
	if missing := missingDefaultGroups(existingDefaults, seenDefaults); len(missing) > 0 {
		errs = append(errs, "Missing required default rates for groups: "+strings.Join(missing, ", "))
	}

	if len(errs) > 0 {
		return nil, errs
	}

	// Locked products drop out of the batch only after validation has
	// passed; they are a notice to the user, not an error. Default
	// rows are never lock-filtered.
	batch := &ImportBatch{Entries: make([]ImportRow, 0, len(entries))}
	for _, e := range entries {
		if !e.IsDefaultRate {
			if _, isLocked := lockedProductIDs[e.ProductID]; isLocked {
				batch.DroppedLocked++
				continue
			}
		}
		batch.Entries = append(batch.Entries, e)
	}
	return batch, nil
}

func missingDefaultGroups(existingDefaults []RateRecord, seenDefaults map[string]bool) []string {
	type group struct{ id, name string }
	checked := make(map[string]bool)
	var missing []group
	for _, r := range existingDefaults {
		if !r.IsDefaultRate() || checked[r.GroupID] {
			continue
		}
		checked[r.GroupID] = true
		if !seenDefaults[r.GroupID] {
			missing = append(missing, group{id: r.GroupID, name: r.GroupName})
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].id < missing[j].id })

	out := make([]string, len(missing))
	for i, g := range missing {
		out[i] = fmt.Sprintf("%s (ID: %s)", g.name, g.id)
	}
	return out
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
