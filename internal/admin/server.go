package admin

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/gamestatushq/statusbot/internal/health"
	"github.com/gamestatushq/statusbot/internal/metrics"
	"github.com/gamestatushq/statusbot/internal/store"
)

// Config controls HTTP server settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	BearerToken  string
}

// Dependencies holds external collaborators required by the server.
type Dependencies struct {
	Logger  *log.Logger
	Store   store.Store
	Metrics *metrics.Store
	Health  *health.Checker
}

// Server exposes monitor CRUD over the store plus the usual operational
// endpoints. It never touches CurrentMessageID beyond carrying over what is
// already stored; the reconciliation loop owns that field.
type Server struct {
	*http.Server
	cfg  Config
	deps Dependencies
}

// New constructs the admin HTTP server.
func New(cfg Config, deps Dependencies) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:9410"
	}
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard, "", 0)
	}
	if deps.Store == nil {
		deps.Store = store.NewMemoryStore()
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/monitors", listAllHandler(cfg, deps)).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/groups/{group_id}/monitors", listGroupHandler(cfg, deps)).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/groups/{group_id}/monitors", upsertHandler(cfg, deps)).Methods(http.MethodPut)
	r.HandleFunc("/api/v1/groups/{group_id}/monitors/{id}", removeHandler(cfg, deps)).Methods(http.MethodDelete)
	if deps.Metrics != nil {
		r.Handle("/metrics", metrics.NewHTTPHandler(deps.Metrics)).Methods(http.MethodGet, http.MethodHead)
	}
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.HandleFunc("/readyz", readyHandler(deps))

	s := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return &Server{Server: s, cfg: cfg, deps: deps}
}

type monitorRequest struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	HostName  string `json:"host_name"`
	QueryPort int    `json:"query_port"`
}

func upsertHandler(cfg Config, deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authorize(r, cfg.BearerToken) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		groupID := mux.Vars(r)["group_id"]

		var req monitorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.ChannelID) == "" {
			http.Error(w, "channel_id required", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.HostName) == "" {
			http.Error(w, "host_name required", http.StatusBadRequest)
			return
		}
		if req.QueryPort <= 0 || req.QueryPort > 65535 {
			http.Error(w, "query_port out of range", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.ID) == "" {
			req.ID = uuid.NewString()
		}

		monitor := store.Monitor{
			ID:            req.ID,
			OwningGroupID: groupID,
			ChannelID:     req.ChannelID,
			HostName:      req.HostName,
			QueryPort:     req.QueryPort,
		}

		// Keep the loop-owned message id when reconfiguring an existing
		// monitor, so the status message is edited instead of recreated.
		existing, err := deps.Store.List(r.Context(), groupID)
		if err != nil {
			deps.Logger.Printf("admin: list monitors for %s: %v", groupID, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		for _, m := range existing {
			if m.ID == monitor.ID {
				monitor.CurrentMessageID = m.CurrentMessageID
				break
			}
		}

		if err := deps.Store.Upsert(r.Context(), monitor); err != nil {
			deps.Logger.Printf("admin: upsert monitor %s/%s: %v", groupID, monitor.ID, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(monitor)
	}
}

func removeHandler(cfg Config, deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authorize(r, cfg.BearerToken) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		vars := mux.Vars(r)

		removed, err := deps.Store.Remove(r.Context(), vars["id"], vars["group_id"])
		if err != nil {
			deps.Logger.Printf("admin: remove monitor %s/%s: %v", vars["group_id"], vars["id"], err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if !removed {
			http.Error(w, "monitor not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listAllHandler(cfg Config, deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authorize(r, cfg.BearerToken) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		writeMonitors(w, r, deps, "")
	}
}

func listGroupHandler(cfg Config, deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authorize(r, cfg.BearerToken) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		writeMonitors(w, r, deps, mux.Vars(r)["group_id"])
	}
}

func writeMonitors(w http.ResponseWriter, r *http.Request, deps Dependencies, groupID string) {
	monitors, err := deps.Store.List(r.Context(), groupID)
	if err != nil {
		deps.Logger.Printf("admin: list monitors: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if monitors == nil {
		monitors = []store.Monitor{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Items []store.Monitor `json:"items"`
	}{Items: monitors})
}

func readyHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Health == nil {
			w.WriteHeader(http.StatusOK)
			return
		}
		ready, reasons := deps.Health.Ready(time.Now().UTC())
		if !ready {
			http.Error(w, strings.Join(reasons, "; "), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func authorize(r *http.Request, token string) bool {
	if strings.TrimSpace(token) == "" {
		return false
	}
	const prefix = "Bearer "
	value := r.Header.Get("Authorization")
	if !strings.HasPrefix(value, prefix) {
		return false
	}
	return strings.TrimSpace(strings.TrimPrefix(value, prefix)) == token
}
