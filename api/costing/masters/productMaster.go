package masters

import (
	"encoding/json"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"CostwiseERP/api"
	"CostwiseERP/api/auth"
	"CostwiseERP/api/constants"
)

// Product is one row of the product master. The master is owned by the
// upstream ERP sync; this service only reads it.
type Product struct {
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	GroupID      string `json:"group_id"`
	GroupName    string `json:"group_name"`
	CategoryCode string `json:"category_code"`
	Locked       bool   `json:"locked"`
}

// GetProducts handles POST /masters/products/all. Lock state is joined
// in so the grid can grey out rows that cannot take rate edits.
func GetProducts(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID  string `json:"user_id"`
			GroupID string `json:"group_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSONShort)
			return
		}
		if auth.SessionEmail(req.UserID) == "" {
			api.RespondWithError(w, http.StatusUnauthorized, constants.ErrInvalidSession)
			return
		}

		q := `
			SELECT p.product_id, p.product_name, p.group_id, p.group_name,
			       COALESCE(p.category_code,''),
			       EXISTS(SELECT 1 FROM lockedproducts l WHERE l.product_id = p.product_id)
			FROM masterproduct p
			WHERE COALESCE(p.is_deleted,false) = false`
		args := []interface{}{}
		if req.GroupID != "" {
			q += ` AND p.group_id = $1`
			args = append(args, req.GroupID)
		}
		q += ` ORDER BY p.product_name`

		rows, err := pool.Query(r.Context(), q, args...)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		defer rows.Close()

		out := []Product{}
		for rows.Next() {
			var p Product
			if err := rows.Scan(&p.ProductID, &p.ProductName, &p.GroupID, &p.GroupName, &p.CategoryCode, &p.Locked); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			out = append(out, p)
		}
		if err := rows.Err(); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", out)
	}
}

// GetLockedProducts handles POST /masters/products/locked.
func GetLockedProducts(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSONShort)
			return
		}
		if auth.SessionEmail(req.UserID) == "" {
			api.RespondWithError(w, http.StatusUnauthorized, constants.ErrInvalidSession)
			return
		}

		rows, err := pool.Query(r.Context(), `
			SELECT l.product_id, COALESCE(p.product_name,''), COALESCE(l.locked_by_run,''),
			       COALESCE(to_char(l.locked_at, 'YYYY-MM-DD HH24:MI:SS'),'')
			FROM lockedproducts l
			LEFT JOIN masterproduct p ON p.product_id = l.product_id
			ORDER BY l.product_id`)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		defer rows.Close()

		out := []map[string]interface{}{}
		for rows.Next() {
			var id, name, run, lockedAt string
			if err := rows.Scan(&id, &name, &run, &lockedAt); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			out = append(out, map[string]interface{}{
				"product_id":    id,
				"product_name":  name,
				"locked_by_run": run,
				"locked_at":     lockedAt,
			})
		}
		if err := rows.Err(); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", out)
	}
}
