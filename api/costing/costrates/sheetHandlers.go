package costrates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"CostwiseERP/api"
	"CostwiseERP/api/auth"
	"CostwiseERP/api/constants"
	"CostwiseERP/api/utils"
	"CostwiseERP/internal/rates"
)

// RateRowRequest is the add-one shape shared by every rate sheet.
type RateRowRequest struct {
	Periode       string            `json:"periode"`
	ProductID     string            `json:"product_id"`
	IsDefaultRate bool              `json:"is_default_rate"`
	GroupID       string            `json:"group_id"`
	GroupName     string            `json:"group_name"`
	RateAsGroupID string            `json:"rate_as_group_id"`
	Rates         map[string]string `json:"rates"`
	TextRates     map[string]string `json:"text_rates"`
}

// GetResolvedRates returns the denormalized grid rows for one periode:
// product names filled in, Rate-As delegation followed, default rows
// first, paged in memory.
func GetResolvedRates(pool *pgxpool.Pool, def SheetDef) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID  string `json:"user_id"`
			Periode string `json:"periode"`
			Search  string `json:"search"`
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
		pagination, err := utils.ExtractPagination(r)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
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

		resolved := rates.Resolve(records, products, req.Periode)
		if search := strings.ToLower(strings.TrimSpace(req.Search)); search != "" {
			filtered := resolved[:0]
			for _, row := range resolved {
				if strings.Contains(strings.ToLower(row.ProductName), search) ||
					strings.Contains(strings.ToLower(row.ProductID), search) ||
					strings.Contains(strings.ToLower(row.GroupName), search) {
					filtered = append(filtered, row)
				}
			}
			resolved = filtered
		}

		pagination.SetPaginationStats(len(resolved))
		start, end := pagination.Slice(len(resolved))

		rows := make([]map[string]interface{}, 0, end-start)
		for _, row := range resolved[start:end] {
			rows = append(rows, resolvedRowJSON(def, row))
		}

		w.Header().Set("Content-Type", constants.ContentTypeJSON)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":    true,
			"rows":       rows,
			"pagination": pagination,
		})
	}
}

func resolvedRowJSON(def SheetDef, row rates.ResolvedRow) map[string]interface{} {
	rateVals := make(map[string]string, len(row.Rates))
	for _, f := range def.Spec.Fields {
		if f.Numeric {
			rateVals[f.Key] = row.Rates[f.Key].StringFixed(2)
		}
	}
	return map[string]interface{}{
		"rate_id":              row.RecordID,
		"product_id":           row.ProductID,
		"product_name":         row.ProductName,
		"group_id":             row.GroupID,
		"group_name":           row.GroupName,
		"is_default_rate":      row.IsDefaultRate,
		"is_delegated":         row.IsDelegated,
		"delegated_group_name": row.DelegatedGroupName,
		"delegation_broken":    row.DelegationBroken,
		"rates":                rateVals,
		"text_rates":           row.TextRates,
	}
}

// AddRate inserts one rate row after the same checks the importer
// applies to a single spreadsheet row.
func AddRate(pool *pgxpool.Pool, def SheetDef) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string          `json:"user_id"`
			Row    RateRowRequest  `json:"row"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSONShort)
			return
		}
		createdBy := auth.SessionEmail(req.UserID)
		if createdBy == "" {
			api.RespondWithError(w, http.StatusUnauthorized, constants.ErrInvalidSession)
			return
		}
		row := req.Row
		if strings.TrimSpace(row.Periode) == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrPeriodeRequired)
			return
		}

		ctx := r.Context()
		isDefault := row.IsDefaultRate || strings.TrimSpace(row.ProductID) == ""
		if isDefault {
			if strings.TrimSpace(row.GroupID) == "" || strings.TrimSpace(row.GroupName) == "" {
				api.RespondWithError(w, http.StatusBadRequest, "default rate rows require both group_id and group_name")
				return
			}
			var exists bool
			q := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE periode=$1 AND group_id=$2 AND product_id IS NULL)`, def.Table)
			if err := pool.QueryRow(ctx, q, row.Periode, row.GroupID).Scan(&exists); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
				return
			}
			if exists {
				api.RespondWithError(w, http.StatusConflict, fmt.Sprintf("group %s already has a default rate for periode %s", row.GroupID, row.Periode))
				return
			}
		} else {
			products, err := fetchProducts(ctx, pool)
			if err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
				return
			}
			found := false
			for _, p := range products {
				if strings.EqualFold(p.ProductID, row.ProductID) {
					row.ProductID = p.ProductID
					row.GroupID = p.GroupID
					row.GroupName = p.GroupName
					found = true
					break
				}
			}
			if !found {
				api.RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("Product ID %q not found in product master", row.ProductID))
				return
			}
			locked, err := isProductLocked(ctx, pool, row.ProductID)
			if err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
				return
			}
			if locked {
				api.RespondWithError(w, http.StatusConflict, constants.ErrProductLocked)
				return
			}
		}

		values, err := parseRateValues(def, row)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		rateID := "RT-" + uuid.NewString()
		cols := []string{"rate_id", "periode", "product_id", "group_id", "group_name", "rate_as_group_id", "created_by"}
		args := []interface{}{rateID, row.Periode, nullIfEmpty(row.ProductID), row.GroupID, row.GroupName, nullIfEmpty(row.RateAsGroupID), createdBy}
		for _, f := range def.Spec.Fields {
			cols = append(cols, f.Key)
			args = append(args, values[f.Key])
		}
		placeholders := make([]string, len(args))
		for i := range args {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		}
		ins := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, def.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
		if _, err := pool.Exec(ctx, ins, args...); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		api.LogInfo("%s rate %s added by %s (periode %s)", def.Spec.Name, rateID, createdBy, row.Periode)
		api.RespondWithPayload(w, true, "", map[string]interface{}{"rate_id": rateID})
	}
}

// parseRateValues converts the request's string values into insertable
// args, under the same rules the importer applies: Rate-As rows are
// forced to zero/blank, text fields are carried unparsed but must not
// be empty on non-delegated rows.
func parseRateValues(def SheetDef, row RateRowRequest) (map[string]interface{}, error) {
	values := make(map[string]interface{}, len(def.Spec.Fields))
	delegated := strings.TrimSpace(row.RateAsGroupID) != ""
	for _, f := range def.Spec.Fields {
		if !f.Numeric {
			if delegated {
				values[f.Key] = ""
				continue
			}
			text := strings.TrimSpace(row.TextRates[f.Key])
			if text == "" {
				return nil, fmt.Errorf("%s must not be empty", f.Header)
			}
			values[f.Key] = text
			continue
		}
		if delegated {
			values[f.Key] = decimal.Zero
			continue
		}
		cell := strings.TrimSpace(row.Rates[f.Key])
		if cell == "" {
			values[f.Key] = decimal.Zero
			continue
		}
		d, err := decimal.NewFromString(strings.ReplaceAll(cell, ",", ""))
		if err != nil {
			return nil, fmt.Errorf("%s value %q is not a number", f.Header, cell)
		}
		values[f.Key] = d
	}
	return values, nil
}

// UpdateRate applies a partial field update to one rate row.
func UpdateRate(pool *pgxpool.Pool, def SheetDef) http.HandlerFunc {
	allowed := map[string]bool{"group_id": true, "group_name": true, "rate_as_group_id": true}
	numeric := map[string]bool{}
	for _, f := range def.Spec.Fields {
		allowed[f.Key] = true
		numeric[f.Key] = f.Numeric
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string                 `json:"user_id"`
			RateID string                 `json:"rate_id"`
			Fields map[string]interface{} `json:"fields"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSONShort)
			return
		}
		updatedBy := auth.SessionEmail(req.UserID)
		if updatedBy == "" {
			api.RespondWithError(w, http.StatusUnauthorized, constants.ErrInvalidSession)
			return
		}
		if strings.TrimSpace(req.RateID) == "" || len(req.Fields) == 0 {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}

		ctx := r.Context()
		if err := guardRecordNotLocked(ctx, pool, def, req.RateID); err != nil {
			respondGuardError(w, err)
			return
		}

		var sets []string
		var args []interface{}
		pos := 1
		for k, v := range req.Fields {
			if !allowed[k] {
				api.RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("field %q cannot be updated", k))
				return
			}
			var val interface{}
			if numeric[k] {
				d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(fmt.Sprint(v)), ",", ""))
				if err != nil {
					api.RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("field %q value %v is not a number", k, v))
					return
				}
				val = d
			} else if k == "rate_as_group_id" {
				val = nullIfEmpty(strings.TrimSpace(fmt.Sprint(v)))
			} else {
				val = fmt.Sprint(v)
			}
			sets = append(sets, fmt.Sprintf("%s=$%d", k, pos))
			args = append(args, val)
			pos++
		}
		sets = append(sets, fmt.Sprintf("updated_by=$%d, updated_at=now()", pos))
		args = append(args, updatedBy)
		pos++
		args = append(args, req.RateID)

		q := fmt.Sprintf(`UPDATE %s SET %s WHERE rate_id=$%d`, def.Table, strings.Join(sets, ", "), pos)
		tag, err := pool.Exec(ctx, q, args...)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if tag.RowsAffected() == 0 {
			api.RespondWithError(w, http.StatusNotFound, "rate record not found")
			return
		}
		api.RespondWithResult(w, true, "")
	}
}

// DeleteRate removes one rate row (locked products excluded).
func DeleteRate(pool *pgxpool.Pool, def SheetDef) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string `json:"user_id"`
			RateID string `json:"rate_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSONShort)
			return
		}
		deletedBy := auth.SessionEmail(req.UserID)
		if deletedBy == "" {
			api.RespondWithError(w, http.StatusUnauthorized, constants.ErrInvalidSession)
			return
		}

		ctx := r.Context()
		if err := guardRecordNotLocked(ctx, pool, def, req.RateID); err != nil {
			respondGuardError(w, err)
			return
		}

		tag, err := pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE rate_id=$1`, def.Table), req.RateID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if tag.RowsAffected() == 0 {
			api.RespondWithError(w, http.StatusNotFound, "rate record not found")
			return
		}
		api.LogInfo("%s rate %s deleted by %s", def.Spec.Name, req.RateID, deletedBy)
		api.RespondWithResult(w, true, "")
	}
}

// errRecordLocked marks a guard rejection, as opposed to a lookup
// failure that must surface as a server error.
var errRecordLocked = errors.New(constants.ErrProductLocked)

// guardRecordNotLocked rejects mutation of rows whose product sits in
// the lock set. Default rows (NULL product) always pass; a missing row
// falls through to the mutation's own not-found path. Lookup failures
// are returned, never treated as "not locked".
func guardRecordNotLocked(ctx context.Context, q rowQuerier, def SheetDef, rateID string) error {
	var productID *string
	sel := fmt.Sprintf(`SELECT product_id FROM %s WHERE rate_id=$1`, def.Table)
	err := q.QueryRow(ctx, sel, rateID).Scan(&productID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil
	case err != nil:
		return err
	}
	if productID == nil {
		return nil
	}
	locked, err := isProductLocked(ctx, q, *productID)
	if err != nil {
		return err
	}
	if locked {
		return errRecordLocked
	}
	return nil
}

func respondGuardError(w http.ResponseWriter, err error) {
	if errors.Is(err, errRecordLocked) {
		api.RespondWithError(w, http.StatusConflict, constants.ErrProductLocked)
		return
	}
	api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
}

func nullIfEmpty(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
