package rates

import "github.com/shopspring/decimal"

// DefaultRateProductName is rendered in place of a product name on a
// group's default-rate row.
const DefaultRateProductName = "DEFAULT RATE"

// Fallback display names for rate rows whose product no longer exists
// in the product master.
const (
	UnknownProductName = "Unknown Product"
	UnknownGroupName   = "Unknown Group"
)

// RateRecord is a persisted rate row scoped to one periode. A record
// with an empty ProductID is the group's default rate; at most one such
// record exists per (GroupID, Periode). A record with RateAsGroupID set
// stores placeholder values and is rendered with the referenced group's
// default-rate values instead.
type RateRecord struct {
	ID            string
	Periode       string
	ProductID     string
	GroupID       string
	GroupName     string
	RateAsGroupID string
	Rates         map[string]decimal.Decimal
	TextRates     map[string]string
}

func (r RateRecord) IsDefaultRate() bool { return r.ProductID == "" }

func (r RateRecord) IsDelegated() bool { return r.RateAsGroupID != "" }

// ProductRecord is externally owned reference data, read-only here.
type ProductRecord struct {
	ProductID    string
	ProductName  string
	GroupID      string
	GroupName    string
	CategoryCode string
}

// ResolvedRow is a derived view row. It is recomputed on every resolve
// call and is never written back to the store.
type ResolvedRow struct {
	RecordID           string
	ProductID          string
	ProductName        string
	GroupID            string
	GroupName          string
	Rates              map[string]decimal.Decimal
	TextRates          map[string]string
	IsDefaultRate      bool
	IsDelegated        bool
	DelegatedGroupName string
	// DelegationBroken marks a Rate-As row whose referenced group has
	// no default rate in the same periode. The row falls back to its
	// own stored values; callers decide whether to surface a notice.
	DelegationBroken bool
}

// ImportRow is one accepted spreadsheet row. It only exists while an
// import session is being validated.
type ImportRow struct {
	ProductID     string
	IsDefaultRate bool
	GroupID       string
	GroupName     string
	RateAsGroupID string
	Rates         map[string]decimal.Decimal
	TextRates     map[string]string
	SourceLine    int
}

// ImportBatch is the validated, lock-filtered output of ValidateImport,
// ready for a delete-by-periode + insert replace.
type ImportBatch struct {
	Entries       []ImportRow
	DroppedLocked int
}

// RateField describes one value column of a rate sheet. Non-numeric
// fields (margin stored as "12%" text) are carried as trimmed text and
// never parsed.
type RateField struct {
	Key     string
	Header  string
	Aliases []string
	Numeric bool
}

// SheetSpec binds a rate sheet to its value columns.
type SheetSpec struct {
	Name   string
	Fields []RateField
}

func copyRates(src map[string]decimal.Decimal) map[string]decimal.Decimal {
	dst := make(map[string]decimal.Decimal, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copyText(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
