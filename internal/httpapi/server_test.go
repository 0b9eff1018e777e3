package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/pagenotes/notehub/internal/bridge"
	"github.com/pagenotes/notehub/internal/notestore"
)

func newAPIServer(t *testing.T) (*notestore.Store, *httptest.Server) {
	t.Helper()
	store := notestore.NewStore(notestore.NewInMemoryStateBackend())
	t.Cleanup(store.Close)
	hub := bridge.NewHub(store)
	t.Cleanup(hub.Close)
	srv := httptest.NewServer(NewServer(store, hub))
	t.Cleanup(srv.Close)
	return store, srv
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, srv := newAPIServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, srv := newAPIServer(t)
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestNoteLifecycleOverHTTP(t *testing.T) {
	_, srv := newAPIServer(t)
	pageKey := "https://example.com"

	resp, err := http.Post(srv.URL+"/v1/notes", "application/json",
		strings.NewReader(`{"pageKey":"`+pageKey+`","text":"remember this"}`))
	if err != nil {
		t.Fatalf("add request failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected add status: %d", resp.StatusCode)
	}
	var created notestore.Note
	decodeBody(t, resp, &created)
	if created.ID == "" || created.Text != "remember this" {
		t.Fatalf("unexpected created note: %+v", created)
	}

	resp, err = http.Get(srv.URL + "/v1/notes?pageKey=" + url.QueryEscape(pageKey))
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}
	var listed struct {
		PageKey string           `json:"pageKey"`
		Notes   []notestore.Note `json:"notes"`
	}
	decodeBody(t, resp, &listed)
	if len(listed.Notes) != 1 || listed.Notes[0].ID != created.ID {
		t.Fatalf("unexpected listing: %+v", listed)
	}

	resp, err = http.Get(srv.URL + "/v1/pages")
	if err != nil {
		t.Fatalf("pages request failed: %v", err)
	}
	var pages struct {
		Pages []string `json:"pages"`
	}
	decodeBody(t, resp, &pages)
	if len(pages.Pages) != 1 || pages.Pages[0] != pageKey {
		t.Fatalf("unexpected pages: %+v", pages)
	}

	req, err := http.NewRequest(http.MethodDelete,
		srv.URL+"/v1/notes/"+created.ID+"?pageKey="+url.QueryEscape(pageKey), nil)
	if err != nil {
		t.Fatalf("build delete request: %v", err)
	}
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete request failed: %v", err)
	}
	var deleted map[string]bool
	decodeBody(t, resp, &deleted)
	if !deleted["removed"] {
		t.Fatalf("delete did not report removal: %v", deleted)
	}

	resp, err = http.DefaultClient.Do(req.Clone(context.Background()))
	if err != nil {
		t.Fatalf("repeat delete request failed: %v", err)
	}
	decodeBody(t, resp, &deleted)
	if deleted["removed"] {
		t.Fatalf("repeat delete reported removal")
	}
}

func TestAddNoteValidationStatus(t *testing.T) {
	_, srv := newAPIServer(t)
	resp, err := http.Post(srv.URL+"/v1/notes", "application/json",
		strings.NewReader(`{"pageKey":"https://example.com","text":"   "}`))
	if err != nil {
		t.Fatalf("add request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank text, got %d", resp.StatusCode)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, resp, &body)
	if body.Error.Code != "validation" {
		t.Fatalf("unexpected error code: %q", body.Error.Code)
	}
}

func TestListNotesRequiresPageKey(t *testing.T) {
	_, srv := newAPIServer(t)
	resp, err := http.Get(srv.URL + "/v1/notes")
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without pageKey, got %d", resp.StatusCode)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	_, srv := newAPIServer(t)
	resp, err := http.Get(srv.URL + "/v1/bookmarks")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestBridgeRouteWithoutHub(t *testing.T) {
	store := notestore.NewStore(notestore.NewInMemoryStateBackend())
	t.Cleanup(store.Close)
	srv := httptest.NewServer(NewServer(store, nil))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/v1/bridge")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 without a hub, got %d", resp.StatusCode)
	}
}

func TestBridgeRouteUpgradesToWebsocket(t *testing.T) {
	_, srv := newAPIServer(t)
	client, err := bridge.Dial(context.Background(),
		"ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/bridge")
	if err != nil {
		t.Fatalf("dial over the api server failed: %v", err)
	}
	t.Cleanup(client.Close)

	note, err := client.Add(context.Background(), "https://example.com", "via ws route")
	if err != nil {
		t.Fatalf("add over ws route failed: %v", err)
	}
	notes, err := client.List(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("list over ws route failed: %v", err)
	}
	if len(notes) != 1 || notes[0].ID != note.ID {
		t.Fatalf("unexpected notes: %+v", notes)
	}
}
