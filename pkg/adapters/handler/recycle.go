package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

type RecycleBinHandler struct {
	service ports.RecycleBinService
}

func NewRecycleBinHandler(service ports.RecycleBinService) *RecycleBinHandler {
	return &RecycleBinHandler{service: service}
}

type recycleRequest struct {
	Gid      string `json:"gid"`
	ShortURI string `json:"short_uri"`
}

func (h *RecycleBinHandler) Save(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Save)
}

func (h *RecycleBinHandler) Recover(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Recover)
}

func (h *RecycleBinHandler) Remove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Remove)
}

func (h *RecycleBinHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, userID int64, gid, code string) error) {
	var req recycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}

	if err := fn(r.Context(), UserIDFrom(r.Context()), req.Gid, req.ShortURI); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List the recycle bin of the given groups, ?gid=a&gid=b
func (h *RecycleBinHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.Page(r.Context(), UserIDFrom(r.Context()),
		r.URL.Query()["gid"], queryInt(r, "page", 1), queryInt(r, "size", 10))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
