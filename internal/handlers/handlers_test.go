package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"

	"photo-library/internal/database"
	"photo-library/internal/photos"
	"photo-library/internal/startup"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	root := t.TempDir()
	photosDir := filepath.Join(root, "photos")
	if err := os.MkdirAll(photosDir, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := &startup.Config{
		PhotosDir:          photosDir,
		DatabasePath:       filepath.Join(root, "test.db"),
		LibraryName:        "photos",
		Extensions:         []string{".jpg"},
		FaceMatchThreshold: 0.5,
	}

	db, err := database.New(context.Background(), cfg.DatabasePath, cfg.LibraryName)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	router := mux.NewRouter()
	New(photos.New(cfg, db, nil)).Register(router)
	router.Use(Instrument)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, photosDir
}

func writeJPEG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	if err := jpeg.Encode(f, image.NewRGBA(image.Rect(0, 0, 4, 4)), nil); err != nil {
		t.Fatal(err)
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz returned %d", resp.StatusCode)
	}
}

func TestIngestAndBrowseEndpoints(t *testing.T) {
	t.Parallel()
	server, photosDir := newTestServer(t)

	writeJPEG(t, filepath.Join(photosDir, "a.jpg"))
	writeJPEG(t, filepath.Join(photosDir, "b.jpg"))

	resp := postJSON(t, server.URL+"/api/ingest", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ingest returned %d", resp.StatusCode)
	}
	var stats photos.IngestStats
	decode(t, resp, &stats)
	if stats.Processed != 2 {
		t.Fatalf("ingested %d, want 2", stats.Processed)
	}

	resp = postJSON(t, server.URL+"/api/browse", map[string]any{
		"sort": map[string]int{"filename": 1},
		"step": 0,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("browse returned %d", resp.StatusCode)
	}
	var result struct {
		Record database.PhotoRecord `json:"record"`
		Index  int                  `json:"index"`
		Count  int                  `json:"count"`
	}
	decode(t, resp, &result)
	if result.Count != 2 || result.Record.Filename != "a.jpg" {
		t.Errorf("browse = %s of %d, want a.jpg of 2", result.Record.Filename, result.Count)
	}
}

func TestBrowseEmptyLibrary(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/browse", map[string]any{"step": 0})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("browse of empty library returned %d, want 200", resp.StatusCode)
	}
	var result struct {
		Record *database.PhotoRecord `json:"record"`
		Count  int                   `json:"count"`
	}
	decode(t, resp, &result)
	if result.Record != nil || result.Count != 0 {
		t.Errorf("empty library browse = %+v, want no record and count 0", result)
	}
}

func TestUpdatePhotoEndpoint(t *testing.T) {
	t.Parallel()
	server, photosDir := newTestServer(t)

	writeJPEG(t, filepath.Join(photosDir, "a.jpg"))
	resp := postJSON(t, server.URL+"/api/ingest", nil)
	_ = resp.Body.Close()

	resp = postJSON(t, server.URL+"/api/browse", map[string]any{"step": 0})
	var browsed struct {
		Record database.PhotoRecord `json:"record"`
	}
	decode(t, resp, &browsed)

	body, _ := json.Marshal(map[string]any{
		"rating":      4,
		"tags":        []string{"beach"},
		"collections": []string{"favorites"},
	})
	req, err := http.NewRequest(http.MethodPut, server.URL+"/api/photos/"+browsed.Record.ID, bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update returned %d", resp.StatusCode)
	}
	var updated database.PhotoRecord
	decode(t, resp, &updated)
	if updated.Rating != 4 {
		t.Errorf("rating = %d, want 4", updated.Rating)
	}
	if len(updated.Collections) != 2 || updated.Collections[0] != "general" {
		t.Errorf("collections = %v, want [general favorites]", updated.Collections)
	}
}

func TestPhotoNotFoundReturns404(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/photos/no-such-id")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("got %d, want 404", resp.StatusCode)
	}
}

func TestLibraryInfoEndpoint(t *testing.T) {
	t.Parallel()
	server, photosDir := newTestServer(t)

	writeJPEG(t, filepath.Join(photosDir, "a.jpg"))
	resp := postJSON(t, server.URL+"/api/ingest", nil)
	_ = resp.Body.Close()

	resp, err := http.Get(server.URL + "/api/library")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("library info returned %d", resp.StatusCode)
	}
	var info photos.LibraryInfo
	decode(t, resp, &info)
	if info.TotalPhotos != 1 {
		t.Errorf("total = %d, want 1", info.TotalPhotos)
	}
}
