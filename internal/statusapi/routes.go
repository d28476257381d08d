package statusapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tradebotengine/internal/engine"
	"tradebotengine/internal/models"
)

// NewRouter builds the read-only status/log/metrics surface (spec §6):
// GET /status, GET /logs/{kind}, GET /metrics. No bot CRUD, no auth —
// both are named non-goals.
func NewRouter(eng *engine.Engine, log *zap.SugaredLogger) *mux.Router {
	router := mux.NewRouter()
	router.Use(Recovery(log))
	router.Use(Logging(log))

	router.HandleFunc("/status", statusHandler(eng)).Methods(http.MethodGet)
	router.HandleFunc("/logs/{kind}", logsHandler(eng)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return router
}

func statusHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, eng.Status())
	}
}

func logsHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := models.BotKind(mux.Vars(r)["kind"])

		limit := 100
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}

		entries := eng.Logs(kind, limit)
		if entries == nil {
			http.Error(w, "unknown bot kind", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
