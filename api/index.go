package handler

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/wadjakorntonsri/shortlink/pkg/app"
	"github.com/wadjakorntonsri/shortlink/pkg/config"
	"github.com/wadjakorntonsri/shortlink/pkg/logger"
)

var mux http.Handler

func init() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Note: On Vercel, a local sqlite file is ephemeral; use a Turso, Postgres or Redis URL.
	// The function may be frozen once the response is sent, so clicks are recorded inline.
	cfg.SyncClickRecording = true

	application, err := app.New(cfg, logger.New(cfg.LogLevel, "json", os.Stdout))
	if err != nil {
		panic(err)
	}
	slog.Info("serverless handler ready", "storage", cfg.StorageDriver)

	mux = application.Router
}

// Handler is the entrypoint for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	mux.ServeHTTP(w, r)
}
