package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// API serves the map-management and lobby REST endpoints
type API struct {
	store Store
	auth  *Auth
	rooms *RoomRegistry
}

// NewAPI creates the REST handler set
func NewAPI(store Store, auth *Auth, rooms *RoomRegistry) *API {
	return &API{store: store, auth: auth, rooms: rooms}
}

// Register mounts the API routes on mux
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/admin/login", a.handleLogin)
	mux.HandleFunc("/api/maps", a.handleMaps)
	mux.HandleFunc("/api/maps/", a.handleMapByID)
	mux.HandleFunc("/api/maps/visibility/", a.handleVisibility)
	mux.HandleFunc("/api/matches", a.handleMatches)
	mux.HandleFunc("/api/rooms/", a.handleRoomQR)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// isAdmin checks the bearer token on a request
func (a *API) isAdmin(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return false
	}
	return a.auth.ValidateToken(token) == nil
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	token, err := a.auth.Login(body.Password, extractIP(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// handleMaps lists maps (GET) or saves one (PUT, admin)
func (a *API) handleMaps(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		maps, err := a.store.Maps(a.isAdmin(r))
		if err != nil {
			log.Printf("api: list maps: %v", err)
			writeError(w, http.StatusInternalServerError, "server error")
			return
		}
		if maps == nil {
			maps = []*GameMap{}
		}
		writeJSON(w, http.StatusOK, maps)
	case http.MethodPut:
		a.handleSaveMap(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *API) handleSaveMap(w http.ResponseWriter, r *http.Request) {
	if !a.isAdmin(r) {
		writeError(w, http.StatusUnauthorized, "admin token required")
		return
	}
	var m GameMap
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if errs := ValidateMap(&m); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": errs})
		return
	}
	if err := a.store.SaveMap(&m); err != nil {
		log.Printf("api: save map: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, &m)
}

// handleMapByID gets (GET) or deletes (DELETE, admin) a single map
func (a *API) handleMapByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/maps/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		m, err := a.store.MapByID(id)
		if err != nil {
			log.Printf("api: get map: %v", err)
			writeError(w, http.StatusInternalServerError, "server error")
			return
		}
		if m == nil || (!m.Visible && !a.isAdmin(r)) {
			writeError(w, http.StatusNotFound, "map not found")
			return
		}
		writeJSON(w, http.StatusOK, m)
	case http.MethodDelete:
		if !a.isAdmin(r) {
			writeError(w, http.StatusUnauthorized, "admin token required")
			return
		}
		if err := a.store.DeleteMap(id); err != nil {
			log.Printf("api: delete map: %v", err)
			writeError(w, http.StatusInternalServerError, "server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleVisibility toggles whether a map is offered for new games (PATCH, admin)
func (a *API) handleVisibility(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !a.isAdmin(r) {
		writeError(w, http.StatusUnauthorized, "admin token required")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/maps/visibility/")
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	var body struct {
		Visible bool `json:"visible"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := a.store.SetMapVisibility(id, body.Visible); err != nil {
		log.Printf("api: set visibility: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "visible": body.Visible})
}

// handleMatches returns recent match history
func (a *API) handleMatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	matches, err := a.store.RecentMatches(20)
	if err != nil {
		log.Printf("api: recent matches: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if matches == nil {
		matches = []MatchRecord{}
	}
	writeJSON(w, http.StatusOK, matches)
}

// handleRoomQR renders a join QR code for a live room:
// GET /api/rooms/{code}/qr
func (a *API) handleRoomQR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/rooms/")
	code, suffix, found := strings.Cut(rest, "/")
	if !found || suffix != "qr" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	room := a.rooms.Get(code)
	if room == nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	joinURL := fmt.Sprintf("http://%s/join/%s", r.Host, code)
	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		log.Printf("api: qr encode: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
