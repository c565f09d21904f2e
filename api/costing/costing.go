package costing

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"CostwiseERP/api"
	"CostwiseERP/api/auth"
	"CostwiseERP/api/constants"
	"CostwiseERP/api/costing/costrates"
	"CostwiseERP/api/costing/masters"
	"CostwiseERP/internal/notification"
)

// StartCostingService runs the costing HTTP server: rate grids, rate
// import/export, masters and periode params. Reached through the
// gateway under the /costing/ prefix.
func StartCostingService(port string, pool *pgxpool.Pool, notifier *notification.Service) {
	router := mux.NewRouter()

	for name, def := range costrates.Sheets {
		base := "/costing/rates/" + name
		router.HandleFunc(base+"/resolved", costrates.GetResolvedRates(pool, def)).Methods("POST")
		router.HandleFunc(base+"/add", costrates.AddRate(pool, def)).Methods("POST")
		router.HandleFunc(base+"/update", costrates.UpdateRate(pool, def)).Methods("POST")
		router.HandleFunc(base+"/delete", costrates.DeleteRate(pool, def)).Methods("POST")
		router.HandleFunc(base+"/upload", costrates.ImportRates(pool, def, notifier)).Methods("POST")
		router.HandleFunc(base+"/export", costrates.ExportRates(pool, def)).Methods("POST")
	}

	router.HandleFunc("/costing/masters/product-groups/all", masters.GetProductGroups(pool)).Methods("POST")
	router.HandleFunc("/costing/masters/product-groups/add", masters.AddProductGroup(pool)).Methods("POST")
	router.HandleFunc("/costing/masters/product-groups/update", masters.UpdateProductGroup(pool)).Methods("POST")
	router.HandleFunc("/costing/masters/product-groups/delete", masters.DeleteProductGroup(pool)).Methods("POST")

	router.HandleFunc("/costing/masters/products/all", masters.GetProducts(pool)).Methods("POST")
	router.HandleFunc("/costing/masters/products/locked", masters.GetLockedProducts(pool)).Methods("POST")

	router.HandleFunc("/costing/params/other-costs/all", masters.GetOtherCostParams(pool)).Methods("POST")
	router.HandleFunc("/costing/params/other-costs/save", masters.UpsertOtherCostParam(pool)).Methods("POST")
	router.HandleFunc("/costing/params/other-costs/delete", masters.DeleteOtherCostParam(pool)).Methods("POST")

	router.HandleFunc("/costing/notifications/drain", drainNotifications(notifier)).Methods("POST")

	router.HandleFunc("/costing/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Costing service is active"))
	}).Methods("GET")

	log.Println("Costing service started on :" + port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Costing service failed: %v", err)
	}
}

// drainNotifications hands pending notices (import drop counts and the
// like) to the frontend and clears them.
func drainNotifications(notifier *notification.Service) http.HandlerFunc {
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
		api.RespondWithPayload(w, true, "", notifier.Drain())
	}
}

func portFromConfig(cfg map[string]interface{}) string {
	if cfg != nil {
		if v, ok := cfg["port"]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	return "7143"
}
