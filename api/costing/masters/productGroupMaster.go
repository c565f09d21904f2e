package masters

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"CostwiseERP/api"
	"CostwiseERP/api/auth"
	"CostwiseERP/api/constants"
)

// ProductGroup is one row of the product-group master. The old_* fields
// keep the previous value of each editable column so the UI can show
// what an edit changed.
type ProductGroup struct {
	GroupID        string `json:"group_id"`
	GroupName      string `json:"group_name"`
	Description    string `json:"description"`
	OldGroupName   string `json:"old_group_name"`
	OldDescription string `json:"old_description"`
	IsDeleted      bool   `json:"is_deleted"`
}

// GetProductGroups handles POST /masters/product-groups/all.
func GetProductGroups(pool *pgxpool.Pool) http.HandlerFunc {
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
			SELECT group_id, group_name, COALESCE(description,''),
			       COALESCE(old_group_name,''), COALESCE(old_description,'')
			FROM productgroups
			WHERE COALESCE(is_deleted,false) = false
			ORDER BY group_name`)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		defer rows.Close()

		out := []ProductGroup{}
		for rows.Next() {
			var g ProductGroup
			if err := rows.Scan(&g.GroupID, &g.GroupName, &g.Description, &g.OldGroupName, &g.OldDescription); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			out = append(out, g)
		}
		if err := rows.Err(); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", out)
	}
}

// AddProductGroup handles POST /masters/product-groups/add.
func AddProductGroup(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID      string `json:"user_id"`
			GroupID     string `json:"group_id"`
			GroupName   string `json:"group_name"`
			Description string `json:"description"`
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
		if strings.TrimSpace(req.GroupID) == "" || strings.TrimSpace(req.GroupName) == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}

		_, err := pool.Exec(r.Context(), `
			INSERT INTO productgroups (group_id, group_name, description, created_by)
			VALUES ($1, $2, $3, $4)`,
			strings.TrimSpace(req.GroupID), strings.TrimSpace(req.GroupName), req.Description, createdBy)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		api.LogInfo("product group %s added by %s", req.GroupID, createdBy)
		api.RespondWithResult(w, true, "")
	}
}

// UpdateProductGroup handles POST /masters/product-groups/update. Each
// updated column snapshots its previous value into old_<column>.
func UpdateProductGroup(pool *pgxpool.Pool) http.HandlerFunc {
	editable := map[string]bool{"group_name": true, "description": true}

	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID  string            `json:"user_id"`
			GroupID string            `json:"group_id"`
			Fields  map[string]string `json:"fields"`
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
		if strings.TrimSpace(req.GroupID) == "" || len(req.Fields) == 0 {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}

		var sets []string
		var args []interface{}
		pos := 1
		for col, val := range req.Fields {
			if !editable[col] {
				api.RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("field %q cannot be updated", col))
				return
			}
			sets = append(sets, fmt.Sprintf("old_%s=%s, %s=$%d", col, col, col, pos))
			args = append(args, val)
			pos++
		}
		sets = append(sets, fmt.Sprintf("updated_by=$%d, updated_at=now()", pos))
		args = append(args, updatedBy)
		pos++
		args = append(args, req.GroupID)

		q := fmt.Sprintf(`UPDATE productgroups SET %s WHERE group_id=$%d AND COALESCE(is_deleted,false)=false`,
			strings.Join(sets, ", "), pos)
		tag, err := pool.Exec(r.Context(), q, args...)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if tag.RowsAffected() == 0 {
			api.RespondWithError(w, http.StatusNotFound, constants.ErrGroupNotFound)
			return
		}
		api.RespondWithResult(w, true, "")
	}
}

// DeleteProductGroup handles POST /masters/product-groups/delete. The
// row is soft deleted; rate history referencing the group stays intact.
// Groups still carrying products cannot be deleted.
func DeleteProductGroup(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID  string `json:"user_id"`
			GroupID string `json:"group_id"`
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
		var inUse bool
		err := pool.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM masterproduct
			  WHERE group_id=$1 AND COALESCE(is_deleted,false)=false)`, req.GroupID).Scan(&inUse)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		if inUse {
			api.RespondWithError(w, http.StatusConflict, "Group still has active products and cannot be deleted")
			return
		}

		tag, err := pool.Exec(ctx, `
			UPDATE productgroups SET is_deleted=true, updated_by=$1, updated_at=now()
			WHERE group_id=$2 AND COALESCE(is_deleted,false)=false`, deletedBy, req.GroupID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if tag.RowsAffected() == 0 {
			api.RespondWithError(w, http.StatusNotFound, constants.ErrGroupNotFound)
			return
		}
		api.LogInfo("product group %s deleted by %s", req.GroupID, deletedBy)
		api.RespondWithResult(w, true, "")
	}
}
