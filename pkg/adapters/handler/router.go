package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wadjakorntonsri/go-shortlink/pkg/config"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

// Services are the core services the HTTP layer dispatches to.
type Services struct {
	Links   ports.LinkService
	Recycle ports.RecycleBinService
	Groups  ports.GroupService
	Users   ports.UserService
	Stats   ports.StatsService
}

// NewRouter creates and configures the main application router
func NewRouter(cfg *config.Config, svc Services) http.Handler {
	// Initialize Handlers
	h := NewHTTPHandler(svc.Links, svc.Stats)
	rh := NewRecycleBinHandler(svc.Recycle)
	gh := NewGroupHandler(svc.Groups)
	uh := NewUserHandler(svc.Users)

	// Initialize Middleware
	mw := NewMiddleware(cfg)
	limiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.RateLimitTrustProxy)

	mux := http.NewServeMux()

	// Public Routes
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /notfound", NotFound)
	mux.HandleFunc("GET /{short_uri}", h.Redirect)
	mux.HandleFunc("POST /api/v1/users", uh.Register)
	mux.HandleFunc("GET /api/v1/users/has-username", uh.HasUsername)

	// Protected Routes, wrapped one by one so the metrics middleware sees the
	// matched pattern.
	protect := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, mw.AuthMiddleware(fn))
	}

	protect("POST /api/v1/links", h.Create)
	protect("GET /api/v1/links", h.List)
	protect("GET /api/v1/links/count", h.Count)
	protect("PUT /api/v1/links/{short_uri}", h.Update)

	protect("POST /api/v1/recycle-bin", rh.Save)
	protect("POST /api/v1/recycle-bin/recover", rh.Recover)
	protect("POST /api/v1/recycle-bin/remove", rh.Remove)
	protect("GET /api/v1/recycle-bin", rh.List)

	protect("POST /api/v1/groups", gh.CreateGroup)
	protect("GET /api/v1/groups", gh.ListGroups)
	protect("PUT /api/v1/groups/{gid}", gh.UpdateGroup)
	protect("DELETE /api/v1/groups/{gid}", gh.DeleteGroup)
	protect("POST /api/v1/groups/sort", gh.SortGroups)

	protect("GET /api/v1/users/{username}", uh.GetUser)

	return RequestID(AccessLog(Recovery(Metrics(limiter.Limit(mux)))))
}
