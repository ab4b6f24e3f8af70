package server

import (
	"encoding/json"
	"net/http"
)

// HandleAdminRooms lists room sizes, or one room's occupants.
// GET /admin/rooms               -> {"rooms": {"<space>": n}}
// GET /admin/rooms?space=<space> -> {"space": ..., "users": [...]}
func (g *Gateway) HandleAdminRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if space := r.URL.Query().Get("space"); space != "" {
		users := g.deps.Registry.Occupants(space)
		if users == nil {
			users = []UserState{}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"space": space, "users": users})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"rooms": g.deps.Registry.Sizes()})
}

// HandleAdminConfig reads or updates the movement rules at runtime.
// GET  /admin/config            -> {"maxStep": 1}
// POST /admin/config {"maxStep": 2}
func (g *Gateway) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	type cfg struct {
		MaxStep *int `json:"maxStep,omitempty"`
	}

	switch r.Method {
	case http.MethodGet:
		step := g.deps.Rules.MaxStep()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cfg{MaxStep: &step})
	case http.MethodPost:
		var body cfg
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.MaxStep != nil {
			if *body.MaxStep < 1 {
				http.Error(w, "maxStep must be >= 1", http.StatusBadRequest)
				return
			}
			g.deps.Rules.SetMaxStep(*body.MaxStep)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
		Log.Infof("config updated: maxStep=%d", g.deps.Rules.MaxStep())
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics reports gateway counters and current room occupancy.
func (g *Gateway) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	sizes := g.deps.Registry.Sizes()
	occupants := 0
	for _, n := range sizes {
		occupants += n
	}
	payload := map[string]any{
		"rooms":     len(sizes),
		"occupants": occupants,
		"live":      g.LiveConnections(),
		"metrics":   g.deps.Metrics.Snapshot(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// Routes mounts the websocket endpoint and the operational endpoints on one mux.
func (g *Gateway) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/", g)
	mux.Handle("/ws", g)
	mux.HandleFunc("/admin/rooms", g.HandleAdminRooms)
	mux.HandleFunc("/admin/config", g.HandleAdminConfig)
	mux.HandleFunc("/metrics", g.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
