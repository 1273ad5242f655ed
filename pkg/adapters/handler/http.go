package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

const (
	uvCookie       = "uv"
	uvCookieMaxAge = 30 * 24 * 60 * 60
	notFoundPath   = "/notfound"
)

type HTTPHandler struct {
	service ports.LinkService
	stats   ports.StatsService
}

func NewHTTPHandler(service ports.LinkService, stats ports.StatsService) *HTTPHandler {
	return &HTTPHandler{service: service, stats: stats}
}

// CreateLinkRequest payload
type CreateLinkRequest struct {
	OriginURL     string     `json:"origin_url"`
	Gid           string     `json:"gid"`
	ValidDateType int        `json:"valid_date_type"`
	ValidDate     *time.Time `json:"valid_date,omitempty"`
	Describe      string     `json:"describe"`
}

// UpdateLinkRequest payload
type UpdateLinkRequest struct {
	OriginGid     string     `json:"origin_gid"`
	Gid           string     `json:"gid,omitempty"`
	OriginURL     string     `json:"origin_url"`
	ValidDateType int        `json:"valid_date_type"`
	ValidDate     *time.Time `json:"valid_date,omitempty"`
	Describe      string     `json:"describe"`
}

// Create Link
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}

	res, err := h.service.CreateLink(r.Context(), UserIDFrom(r.Context()), domain.CreateLinkParams{
		OriginURL:     req.OriginURL,
		Gid:           req.Gid,
		ValidDateType: req.ValidDateType,
		ValidDate:     req.ValidDate,
		Describe:      req.Describe,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

// Update Link
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}

	err := h.service.UpdateLink(r.Context(), UserIDFrom(r.Context()), domain.UpdateLinkParams{
		ShortURI:      r.PathValue("short_uri"),
		OriginGid:     req.OriginGid,
		Gid:           req.Gid,
		OriginURL:     req.OriginURL,
		ValidDateType: req.ValidDateType,
		ValidDate:     req.ValidDate,
		Describe:      req.Describe,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List Links of one group
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.PageLinks(r.Context(), UserIDFrom(r.Context()),
		r.URL.Query().Get("gid"), queryInt(r, "page", 1), queryInt(r, "size", 10))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Count active links per group, ?gid=a&gid=b
func (h *HTTPHandler) Count(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.GroupLinkCount(r.Context(), UserIDFrom(r.Context()), r.URL.Query()["gid"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// Redirect to original URL
func (h *HTTPHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("short_uri")

	originURL, err := h.service.Resolve(r.Context(), code)
	if err != nil {
		if !errors.Is(err, domain.ErrLinkNotFound) {
			log.Error().Err(err).Str("short_uri", code).Str("request_id", RequestIDFrom(r.Context())).Msg("resolve failed")
		}
		http.Redirect(w, r, notFoundPath, http.StatusFound)
		return
	}

	// Async track visit (only if query param "no_stat" is not set)
	if r.URL.Query().Get("no_stat") == "" {
		visit := domain.Visit{
			ShortURI:  code,
			Visitor:   h.visitor(w, r, code),
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
			Referer:   r.Referer(),
			CreatedAt: time.Now(),
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.stats.RecordVisit(ctx, visit); err != nil {
				log.Warn().Err(err).Str("short_uri", visit.ShortURI).Msg("record visit")
			}
		}()
	}

	http.Redirect(w, r, originURL, http.StatusFound)
}

// visitor returns the uv cookie, issuing one on the first visit.
func (h *HTTPHandler) visitor(w http.ResponseWriter, r *http.Request, code string) string {
	if c, err := r.Cookie(uvCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     uvCookie,
		Value:    id,
		Path:     "/" + code,
		MaxAge:   uvCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// NotFound is where unresolvable short links are sent.
func NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(notFoundPage))
}

const notFoundPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Link not found</title></head>
<body>
<h1>404</h1>
<p>This short link does not exist or is no longer valid.</p>
</body>
</html>
`
