package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAdminRooms(t *testing.T) {
	deps := testDeps(Point{X: 4, Y: 5})
	gw := NewGateway(DefaultConfig(), *deps)
	s, _ := newTestSession(gw.deps)
	join(s, "tok-a")

	rec := httptest.NewRecorder()
	gw.HandleAdminRooms(rec, httptest.NewRequest(http.MethodGet, "/admin/rooms", nil))
	var list struct {
		Rooms map[string]int `json:"rooms"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Rooms["S"] != 1 {
		t.Errorf("rooms = %v", list.Rooms)
	}

	rec = httptest.NewRecorder()
	gw.HandleAdminRooms(rec, httptest.NewRequest(http.MethodGet, "/admin/rooms?space=S", nil))
	var one struct {
		Space string      `json:"space"`
		Users []UserState `json:"users"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &one); err != nil {
		t.Fatal(err)
	}
	if one.Space != "S" || len(one.Users) != 1 || one.Users[0] != (UserState{UserID: "A", X: 4, Y: 5, DisplayName: "n-tok-a"}) {
		t.Errorf("room view = %+v", one)
	}

	rec = httptest.NewRecorder()
	gw.HandleAdminRooms(rec, httptest.NewRequest(http.MethodGet, "/admin/rooms?space=empty", nil))
	if !strings.Contains(rec.Body.String(), `"users":[]`) {
		t.Errorf("empty room body = %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	gw.HandleAdminRooms(rec, httptest.NewRequest(http.MethodDelete, "/admin/rooms", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE status = %d", rec.Code)
	}
}

func TestAdminConfig(t *testing.T) {
	deps := testDeps(Point{})
	deps.Rules = nil
	cfg := DefaultConfig()
	cfg.MaxStep = 2
	gw := NewGateway(cfg, *deps)

	rec := httptest.NewRecorder()
	gw.HandleAdminConfig(rec, httptest.NewRequest(http.MethodGet, "/admin/config", nil))
	if strings.TrimSpace(rec.Body.String()) != `{"maxStep":2}` {
		t.Errorf("GET body = %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	gw.HandleAdminConfig(rec, httptest.NewRequest(http.MethodPost, "/admin/config", strings.NewReader(`{"maxStep":5}`)))
	if rec.Code != http.StatusOK || gw.Rules().MaxStep() != 5 {
		t.Errorf("POST status=%d maxStep=%d", rec.Code, gw.Rules().MaxStep())
	}

	tests := []struct {
		name string
		body string
		code int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"zero step", `{"maxStep":0}`, http.StatusBadRequest},
		{"no fields", `{}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			gw.HandleAdminConfig(rec, httptest.NewRequest(http.MethodPost, "/admin/config", strings.NewReader(tt.body)))
			if rec.Code != tt.code {
				t.Errorf("status = %d, want %d", rec.Code, tt.code)
			}
			if gw.Rules().MaxStep() != 5 {
				t.Errorf("maxStep changed to %d", gw.Rules().MaxStep())
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	deps := testDeps(Point{X: 1, Y: 1})
	gw := NewGateway(DefaultConfig(), *deps)
	a, _ := newTestSession(gw.deps)
	b, _ := newTestSession(gw.deps)
	join(a, "tok-a")
	join(b, "tok-b")
	move(a, 2, 1)
	move(a, 9, 9)

	rec := httptest.NewRecorder()
	gw.HandleMetrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	var body struct {
		Rooms     int              `json:"rooms"`
		Occupants int              `json:"occupants"`
		Metrics   map[string]int64 `json:"metrics"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Rooms != 1 || body.Occupants != 2 {
		t.Errorf("rooms=%d occupants=%d", body.Rooms, body.Occupants)
	}
	if body.Metrics["joins_accepted"] != 2 || body.Metrics["moves_accepted"] != 1 || body.Metrics["moves_rejected"] != 1 {
		t.Errorf("metrics = %v", body.Metrics)
	}
}

func TestHealthz(t *testing.T) {
	gw := NewGateway(DefaultConfig(), *testDeps(Point{}))
	rec := httptest.NewRecorder()
	gw.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q", rec.Body.String())
	}
}
