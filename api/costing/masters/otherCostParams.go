package masters

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"CostwiseERP/api"
	"CostwiseERP/api/auth"
	"CostwiseERP/api/constants"
)

// OtherCostParam is a periode-scoped costing parameter that is not tied
// to a product or group (storage cost percentage, distribution fee and
// the like). Values are stored as decimals keyed by a stable param key.
type OtherCostParam struct {
	Periode     string          `json:"periode"`
	ParamKey    string          `json:"param_key"`
	ParamValue  decimal.Decimal `json:"param_value"`
	Description string          `json:"description"`
}

// GetOtherCostParams handles POST /params/other-costs/all.
func GetOtherCostParams(pool *pgxpool.Pool) http.HandlerFunc {
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

		rows, err := pool.Query(r.Context(), `
			SELECT periode, param_key, COALESCE(param_value,0)::text, COALESCE(description,'')
			FROM othercostparams WHERE periode=$1 ORDER BY param_key`, req.Periode)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		defer rows.Close()

		out := []OtherCostParam{}
		for rows.Next() {
			var p OtherCostParam
			var val string
			if err := rows.Scan(&p.Periode, &p.ParamKey, &val, &p.Description); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			p.ParamValue, _ = decimal.NewFromString(val)
			out = append(out, p)
		}
		if err := rows.Err(); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", out)
	}
}

// UpsertOtherCostParam handles POST /params/other-costs/save. One param
// per (periode, key); saving an existing key overwrites its value.
func UpsertOtherCostParam(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID      string `json:"user_id"`
			Periode     string `json:"periode"`
			ParamKey    string `json:"param_key"`
			ParamValue  string `json:"param_value"`
			Description string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSONShort)
			return
		}
		savedBy := auth.SessionEmail(req.UserID)
		if savedBy == "" {
			api.RespondWithError(w, http.StatusUnauthorized, constants.ErrInvalidSession)
			return
		}
		if strings.TrimSpace(req.Periode) == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrPeriodeRequired)
			return
		}
		if strings.TrimSpace(req.ParamKey) == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}
		val, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(req.ParamValue), ",", ""))
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, "param_value is not a number")
			return
		}

		_, err = pool.Exec(r.Context(), `
			INSERT INTO othercostparams (periode, param_key, param_value, description, updated_by, updated_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (periode, param_key)
			DO UPDATE SET param_value=EXCLUDED.param_value,
			              description=EXCLUDED.description,
			              updated_by=EXCLUDED.updated_by,
			              updated_at=now()`,
			req.Periode, strings.TrimSpace(req.ParamKey), val, req.Description, savedBy)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		api.LogInfo("other-cost param %s saved for periode %s by %s", req.ParamKey, req.Periode, savedBy)
		api.RespondWithResult(w, true, "")
	}
}

// DeleteOtherCostParam handles POST /params/other-costs/delete.
func DeleteOtherCostParam(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID   string `json:"user_id"`
			Periode  string `json:"periode"`
			ParamKey string `json:"param_key"`
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

		tag, err := pool.Exec(r.Context(),
			`DELETE FROM othercostparams WHERE periode=$1 AND param_key=$2`,
			req.Periode, req.ParamKey)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if tag.RowsAffected() == 0 {
			api.RespondWithError(w, http.StatusNotFound, "param not found")
			return
		}
		api.LogInfo("other-cost param %s deleted for periode %s by %s", req.ParamKey, req.Periode, deletedBy)
		api.RespondWithResult(w, true, "")
	}
}
