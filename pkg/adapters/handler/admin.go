package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

const adminPasswordHeader = "X-Admin-Password"

type AdminHandler struct {
	stats    ports.StatsReader
	password string
	logger   *slog.Logger
}

// NewAdminHandler guards stats with a shared password. An empty password disables the route.
func NewAdminHandler(stats ports.StatsReader, password string, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{stats: stats, password: password, logger: logger}
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.password == "" {
		writeError(w, h.logger, domain.NewError(domain.KindForbidden, "admin access disabled"))
		return
	}
	given := r.Header.Get(adminPasswordHeader)
	if subtle.ConstantTimeCompare([]byte(given), []byte(h.password)) != 1 {
		writeError(w, h.logger, domain.NewError(domain.KindUnauthorized, "invalid admin password"))
		return
	}

	stats, err := h.stats.Snapshot(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
