// Package handlers exposes the library over a JSON HTTP API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"photo-library/internal/database"
	"photo-library/internal/logging"
	"photo-library/internal/photos"
)

// Handlers holds the HTTP handlers for the photo library API.
type Handlers struct {
	library *photos.Library
}

// New creates the handler set.
func New(library *photos.Library) *Handlers {
	return &Handlers{library: library}
}

// Register attaches all API routes to the router.
func (h *Handlers) Register(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/library", h.libraryInfo).Methods(http.MethodGet)
	api.HandleFunc("/ingest", h.ingest).Methods(http.MethodPost)
	api.HandleFunc("/browse", h.browse).Methods(http.MethodPost)

	api.HandleFunc("/photos/at", h.photoAtIndex).Methods(http.MethodPost)
	api.HandleFunc("/photos/random", h.randomPhoto).Methods(http.MethodGet)
	api.HandleFunc("/photos/selection", h.applySelection).Methods(http.MethodPost)
	api.HandleFunc("/photos/purge", h.purgeMissing).Methods(http.MethodPost)
	api.HandleFunc("/photos/{id}", h.photoByID).Methods(http.MethodGet)
	api.HandleFunc("/photos/{id}", h.updatePhoto).Methods(http.MethodPut)

	api.HandleFunc("/faces/{id}/recognize", h.recognizeFaces).Methods(http.MethodPost)
	api.HandleFunc("/faces/{id}/reference", h.storeReference).Methods(http.MethodPost)

	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
}

func (h *Handlers) libraryInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.library.Info(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handlers) ingest(w http.ResponseWriter, r *http.Request) {
	stats, err := h.library.IngestDirectory(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type browseRequest struct {
	Filter json.RawMessage `json:"filter"`
	Sort   json.RawMessage `json:"sort"`
	Step   int             `json:"step"`
	Index  int             `json:"index"`
}

func (h *Handlers) browse(w http.ResponseWriter, r *http.Request) {
	var req browseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.library.Browse(r.Context(), req.Filter, req.Sort, req.Step)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) photoAtIndex(w http.ResponseWriter, r *http.Request) {
	var req browseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	record, err := h.library.RecordAtIndex(r.Context(), req.Filter, req.Sort, req.Index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handlers) randomPhoto(w http.ResponseWriter, r *http.Request) {
	record, err := h.library.RandomRecord(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handlers) photoByID(w http.ResponseWriter, r *http.Request) {
	record, err := h.library.DataForFile(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handlers) updatePhoto(w http.ResponseWriter, r *http.Request) {
	var record database.PhotoRecord
	if !decodeBody(w, r, &record) {
		return
	}
	record.ID = mux.Vars(r)["id"]

	updated, err := h.library.UpdateRecord(r.Context(), &record)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type selectionRequest struct {
	IDs []string `json:"ids"`
	photos.SelectionEdit
}

func (h *Handlers) applySelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	applied, err := h.library.ApplyToSelection(r.Context(), req.IDs, req.SelectionEdit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"applied": applied})
}

func (h *Handlers) purgeMissing(w http.ResponseWriter, r *http.Request) {
	purged, err := h.library.PurgeMissingRecords(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"purged": purged})
}

func (h *Handlers) recognizeFaces(w http.ResponseWriter, r *http.Request) {
	assigned, err := h.library.Faces().Recognize(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"assigned": assigned})
}

type referenceRequest struct {
	Index     int    `json:"index"`
	FullName  string `json:"fullName"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Manual    bool   `json:"manual"`
}

func (h *Handlers) storeReference(w http.ResponseWriter, r *http.Request) {
	var req referenceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.FullName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "fullName is required"})
		return
	}
	person, err := h.library.Faces().StoreReference(r.Context(),
		mux.Vars(r)["id"], req.Index, req.FullName, req.FirstName, req.LastName, req.Manual)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, person)
}

func (h *Handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, database.ErrNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode response: %v", err)
	}
}
