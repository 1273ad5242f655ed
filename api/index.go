package handler

import (
	"context"
	"net/http"

	"github.com/wadjakorntonsri/go-shortlink/pkg/bootstrap"
	"github.com/wadjakorntonsri/go-shortlink/pkg/config"
	"github.com/wadjakorntonsri/go-shortlink/pkg/logger"
)

var mux http.Handler

func init() {
	cfg := config.Load()
	logger.Initialize(cfg.LogLevel, cfg.LogFormat, cfg.AppEnv)

	// Note: On Vercel, db.sqlite is ephemeral unless using a remote SQL/Turso URL in DATABASE_URL.
	// Without REDIS_ADDR set to a reachable instance, use STORE_MODE=memory.
	app, err := bootstrap.New(context.Background(), cfg)
	if err != nil {
		panic(err)
	}
	mux = app.Handler()
}

// Handler is the entrypoint for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	mux.ServeHTTP(w, r)
}
