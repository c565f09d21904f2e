package costrates

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xuri/excelize/v2"

	"CostwiseERP/api"
	"CostwiseERP/api/auth"
	"CostwiseERP/api/constants"
	"CostwiseERP/internal/rates"
)

// BuildExportRows renders rate records into the canonical spreadsheet
// shape: one header row and one data row per record, default rows
// first. The output re-imports cleanly, headers match the first alias
// of every column and Is Default Rate is written YES/NO.
func BuildExportRows(spec rates.SheetSpec, records []rates.RateRecord, products []rates.ProductRecord) ([]string, [][]string) {
	header := []string{
		rates.HeaderProductID,
		"Product Name",
		rates.HeaderIsDefaultRate,
		rates.HeaderGroupID,
		rates.HeaderGroupName,
		rates.HeaderRateAsGroupID,
	}
	for _, f := range spec.Fields {
		header = append(header, f.Header)
	}

	nameByID := make(map[string]string, len(products))
	for _, p := range products {
		nameByID[strings.ToLower(p.ProductID)] = p.ProductName
	}

	ordered := make([]rates.RateRecord, 0, len(records))
	for _, r := range records {
		if r.IsDefaultRate() {
			ordered = append(ordered, r)
		}
	}
	for _, r := range records {
		if !r.IsDefaultRate() {
			ordered = append(ordered, r)
		}
	}

	rows := make([][]string, 0, len(ordered))
	for _, r := range ordered {
		isDefault := "NO"
		productName := nameByID[strings.ToLower(r.ProductID)]
		if r.IsDefaultRate() {
			isDefault = rates.IsDefaultRateYes
			productName = rates.DefaultRateProductName
		} else if productName == "" {
			productName = rates.UnknownProductName
		}
		row := []string{r.ProductID, productName, isDefault, r.GroupID, r.GroupName, r.RateAsGroupID}
		for _, f := range spec.Fields {
			if !f.Numeric {
				row = append(row, r.TextRates[f.Key])
				continue
			}
			if r.IsDelegated() {
				row = append(row, "")
				continue
			}
			row = append(row, r.Rates[f.Key].StringFixed(2))
		}
		rows = append(rows, row)
	}
	return header, rows
}

// ExportRates streams one sheet's rates for one periode as an .xlsx
// attachment shaped to round-trip through the importer.
func ExportRates(pool *pgxpool.Pool, def SheetDef) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID  string `json:"user_id"`
			Periode string `json:"periode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSONShort)
			return
		}
		if auth.SessionEmail(req.UserID) == "" {
			api.RespondWithError(w, http.StatusUnauthorized, constants.ErrInvalidSession)
			return
		}
		if strings.TrimSpace(req.Periode) == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrPeriodeRequired)
			return
		}

		ctx := r.Context()
		records, err := fetchRateRecords(ctx, pool, def, req.Periode)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		products, err := fetchProducts(ctx, pool)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}

		header, rows := BuildExportRows(def.Spec, records, products)

		f := excelize.NewFile()
		defer f.Close()
		sheetName := "Sheet1"
		if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for i, row := range rows {
			cell, _ := excelize.CoordinatesToCellName(1, i+2)
			if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}

		filename := fmt.Sprintf("%s_rates_%s.xlsx", def.Spec.Name, req.Periode)
		w.Header().Set("Content-Type", constants.ContentTypeXLSX)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		if err := f.Write(w); err != nil {
			api.LogError("export write failed: %v", err)
		}
	}
}
