package costrates

import "CostwiseERP/internal/rates"

// SheetDef binds a rate sheet spec to its table. Field keys double as
// column names, so the specs below are the single source of truth for
// both the spreadsheet contract and the storage layout.
type SheetDef struct {
	Spec  rates.SheetSpec
	Table string
}

// AllocationSheet holds the cost-allocation rates grid.
var AllocationSheet = SheetDef{
	Table: "costallocationrates",
	Spec: rates.SheetSpec{
		Name: "allocation",
		Fields: []rates.RateField{
			{Key: "rate_process", Header: "Rate Proses", Aliases: []string{"Rate Proses", "RateProses", "Rate_Proses"}, Numeric: true},
			{Key: "rate_packaging", Header: "Rate Kemas", Aliases: []string{"Rate Kemas", "RateKemas", "Rate_Kemas"}, Numeric: true},
			{Key: "rate_overhead", Header: "Rate Overhead", Aliases: []string{"Rate Overhead", "RateOverhead", "Rate_Overhead"}, Numeric: true},
			{Key: "rate_analysis", Header: "Rate Analisa", Aliases: []string{"Rate Analisa", "RateAnalisa", "Rate_Analisa"}, Numeric: true},
		},
	},
}

// ReagentSheet holds the reagent rates grid.
var ReagentSheet = SheetDef{
	Table: "reagentrates",
	Spec: rates.SheetSpec{
		Name: "reagent",
		Fields: []rates.RateField{
			{Key: "rate_reagent", Header: "Rate Reagen", Aliases: []string{"Rate Reagen", "RateReagen", "Rate_Reagen", "Reagent Rate"}, Numeric: true},
		},
	},
}

// TollMarginSheet holds the toll fee / margin grid. Margin may arrive
// as a percentage string ("12.5%"), so it is carried as text.
var TollMarginSheet = SheetDef{
	Table: "tollmarginrates",
	Spec: rates.SheetSpec{
		Name: "tollmargin",
		Fields: []rates.RateField{
			{Key: "toll_fee", Header: "Toll Fee", Aliases: []string{"Toll Fee", "TollFee", "Toll_Fee"}, Numeric: true},
			{Key: "margin", Header: "Margin", Aliases: []string{"Margin"}, Numeric: false},
		},
	},
}

// Sheets indexes the rate sheets by their URL segment.
var Sheets = map[string]SheetDef{
	AllocationSheet.Spec.Name: AllocationSheet,
	ReagentSheet.Spec.Name:    ReagentSheet,
	TollMarginSheet.Spec.Name: TollMarginSheet,
}
