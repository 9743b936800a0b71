package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testAPI(t *testing.T) (*API, *http.ServeMux, string) {
	t.Helper()
	store := openTestStore(t)
	auth, err := NewAuth(store, "mammoth")
	if err != nil {
		t.Fatalf("NewAuth: %v", err)
	}
	token, err := auth.Login("mammoth", "127.0.0.1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	api := NewAPI(store, auth, testRegistry())
	mux := http.NewServeMux()
	api.Register(mux)
	return api, mux, token
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestAPISaveMapRequiresAdmin(t *testing.T) {
	_, mux, token := testAPI(t)
	m := basicMap(10, "classical")

	if w := doJSON(t, mux, http.MethodPut, "/api/maps", "", m); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous save: expected 401, got %d", w.Code)
	}
	w := doJSON(t, mux, http.MethodPut, "/api/maps", token, m)
	if w.Code != http.StatusOK {
		t.Fatalf("admin save: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var saved GameMap
	if err := json.NewDecoder(w.Body).Decode(&saved); err != nil {
		t.Fatalf("decode saved map: %v", err)
	}
	if saved.ID == "" {
		t.Error("saved map should carry an assigned ID")
	}
}

func TestAPISaveMapValidates(t *testing.T) {
	_, mux, token := testAPI(t)
	m := basicMap(10, "classical")
	m.Name = ""
	m.Tiles[3][3].Object = "unicorn"

	w := doJSON(t, mux, http.MethodPut, "/api/maps", token, m)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var resp struct {
		Errors []string `json:"errors"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode errors: %v", err)
	}
	if len(resp.Errors) < 2 {
		t.Errorf("expected itemized errors, got %v", resp.Errors)
	}
}

func TestAPIListHidesInvisibleMaps(t *testing.T) {
	api, mux, token := testAPI(t)
	hidden := basicMap(10, "classical")
	hidden.Name = "secret"
	hidden.Visible = false
	if err := api.store.SaveMap(hidden); err != nil {
		t.Fatalf("SaveMap: %v", err)
	}

	var public []GameMap
	w := doJSON(t, mux, http.MethodGet, "/api/maps", "", nil)
	if err := json.NewDecoder(w.Body).Decode(&public); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(public) != 0 {
		t.Errorf("anonymous list should hide the map, got %d", len(public))
	}

	var all []GameMap
	w = doJSON(t, mux, http.MethodGet, "/api/maps", token, nil)
	if err := json.NewDecoder(w.Body).Decode(&all); err != nil {
		t.Fatalf("decode admin list: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("admin list should include hidden maps, got %d", len(all))
	}
}

func TestAPIVisibilityToggle(t *testing.T) {
	api, mux, token := testAPI(t)
	m := basicMap(10, "classical")
	if err := api.store.SaveMap(m); err != nil {
		t.Fatalf("SaveMap: %v", err)
	}

	body := map[string]bool{"visible": false}
	if w := doJSON(t, mux, http.MethodPatch, "/api/maps/visibility/"+m.ID, "", body); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous toggle: expected 401, got %d", w.Code)
	}
	if w := doJSON(t, mux, http.MethodPatch, "/api/maps/visibility/"+m.ID, token, body); w.Code != http.StatusOK {
		t.Errorf("admin toggle: expected 200, got %d", w.Code)
	}
	got, _ := api.store.MapByID(m.ID)
	if got == nil || got.Visible {
		t.Error("map should be hidden after toggle")
	}
}

func TestAPIDeleteMap(t *testing.T) {
	api, mux, token := testAPI(t)
	m := basicMap(10, "classical")
	if err := api.store.SaveMap(m); err != nil {
		t.Fatalf("SaveMap: %v", err)
	}
	if w := doJSON(t, mux, http.MethodDelete, "/api/maps/"+m.ID, token, nil); w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", w.Code)
	}
	if got, _ := api.store.MapByID(m.ID); got != nil {
		t.Error("map should be gone after delete")
	}
}

func TestAPIHiddenMapNotFoundForAnonymous(t *testing.T) {
	api, mux, token := testAPI(t)
	m := basicMap(10, "classical")
	m.Visible = false
	if err := api.store.SaveMap(m); err != nil {
		t.Fatalf("SaveMap: %v", err)
	}
	if w := doJSON(t, mux, http.MethodGet, "/api/maps/"+m.ID, "", nil); w.Code != http.StatusNotFound {
		t.Errorf("anonymous get of hidden map: expected 404, got %d", w.Code)
	}
	if w := doJSON(t, mux, http.MethodGet, "/api/maps/"+m.ID, token, nil); w.Code != http.StatusOK {
		t.Errorf("admin get of hidden map: expected 200, got %d", w.Code)
	}
}

func TestAPILogin(t *testing.T) {
	_, mux, _ := testAPI(t)
	w := doJSON(t, mux, http.MethodPost, "/api/admin/login", "", map[string]string{"password": "mammoth"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", w.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil || resp["token"] == "" {
		t.Errorf("expected a token, got %v err %v", resp, err)
	}
	if w := doJSON(t, mux, http.MethodPost, "/api/admin/login", "", map[string]string{"password": "nope"}); w.Code != http.StatusUnauthorized {
		t.Errorf("bad login: expected 401, got %d", w.Code)
	}
}

func TestAPIMatches(t *testing.T) {
	api, mux, _ := testAPI(t)
	if err := api.store.RecordMatch(MatchRecord{Code: "1111", Mode: "classical", Winners: "p1"}); err != nil {
		t.Fatalf("RecordMatch: %v", err)
	}
	w := doJSON(t, mux, http.MethodGet, "/api/matches", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("matches: expected 200, got %d", w.Code)
	}
	var matches []MatchRecord
	if err := json.NewDecoder(w.Body).Decode(&matches); err != nil {
		t.Fatalf("decode matches: %v", err)
	}
	if len(matches) != 1 || matches[0].Code != "1111" {
		t.Errorf("unexpected match list: %v", matches)
	}
}

func TestAPIRoomQR(t *testing.T) {
	api, mux, _ := testAPI(t)
	if w := doJSON(t, mux, http.MethodGet, "/api/rooms/0000/qr", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown room: expected 404, got %d", w.Code)
	}
	room := api.rooms.CreateRoom(basicMap(10, "classical"))
	w := doJSON(t, mux, http.MethodGet, "/api/rooms/"+room.Code+"/qr", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("qr: expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %q", ct)
	}
	if w.Body.Len() == 0 {
		t.Error("expected PNG bytes")
	}
}
