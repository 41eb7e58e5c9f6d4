package handler

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

const qrSize = 256

type HTTPHandler struct {
	registry ports.LinkRegistry
	ledger   ports.ClickLedger
	resolver ports.Resolver
	baseURL  string
	logger   *slog.Logger
}

func NewHTTPHandler(registry ports.LinkRegistry, ledger ports.ClickLedger, resolver ports.Resolver, baseURL string, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{
		registry: registry,
		ledger:   ledger,
		resolver: resolver,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
	}
}

// CreateLinkRequest payload
type CreateLinkRequest struct {
	DestinationURL string `json:"destinationUrl"`
}

type CreateLinkResponse struct {
	Code           string `json:"code"`
	DestinationURL string `json:"destinationUrl"`
	ShortURL       string `json:"shortUrl"`
}

type LinkResponse struct {
	Code           string    `json:"code"`
	DestinationURL string    `json:"destinationUrl"`
	ShortURL       string    `json:"shortUrl"`
	ClickCount     int64     `json:"clickCount"`
	CreatedAt      time.Time `json:"createdAt"`
}

type ClickResponse struct {
	Origin    string    `json:"origin"`
	Country   string    `json:"country,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type AnalyticsResponse struct {
	Link   LinkResponse    `json:"link"`
	Clicks []ClickResponse `json:"clicks"`
}

func (h *HTTPHandler) shortURL(code string) string {
	return h.baseURL + "/" + code
}

func (h *HTTPHandler) toResponse(link domain.Link) LinkResponse {
	return LinkResponse{
		Code:           link.ShortCode,
		DestinationURL: link.DestinationURL,
		ShortURL:       h.shortURL(link.ShortCode),
		ClickCount:     link.Clicks,
		CreatedAt:      link.CreatedAt,
	}
}

// Create Link
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, h.logger, domain.ErrUnauthorized)
		return
	}

	var req CreateLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	link, err := h.registry.CreateLink(r.Context(), identity.UserID, req.DestinationURL)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateLinkResponse{
		Code:           link.ShortCode,
		DestinationURL: link.DestinationURL,
		ShortURL:       h.shortURL(link.ShortCode),
	})
}

// List the caller's links, most recent first
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, h.logger, domain.ErrUnauthorized)
		return
	}

	links, err := h.registry.ListOwned(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	resp := make([]LinkResponse, 0, len(links))
	for _, l := range links {
		resp = append(resp, h.toResponse(l))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ownedLink loads {code} and checks the caller owns it
func (h *HTTPHandler) ownedLink(r *http.Request) (*domain.Link, error) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	link, err := h.registry.GetByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		return nil, err
	}
	if err := h.registry.AssertOwnership(link, identity.UserID); err != nil {
		return nil, err
	}
	return link, nil
}

// Analytics returns the link with its click history
func (h *HTTPHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	link, err := h.ownedLink(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	clicks, err := h.ledger.History(r.Context(), link)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	total, err := h.ledger.TotalClicks(r.Context(), link)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	resp := AnalyticsResponse{
		Link:   h.toResponse(*link),
		Clicks: make([]ClickResponse, 0, len(clicks)),
	}
	resp.Link.ClickCount = total
	for _, c := range clicks {
		resp.Clicks = append(resp.Clicks, ClickResponse{
			Origin:    c.Origin,
			Country:   c.Country,
			Timestamp: c.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// QRCode renders the short URL as a PNG
func (h *HTTPHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	link, err := h.ownedLink(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	png, err := qrcode.Encode(h.shortURL(link.ShortCode), qrcode.Medium, qrSize)
	if err != nil {
		writeError(w, h.logger, domain.Wrap(err, domain.KindInternal, "render qr code"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// Redirect sends the stored destination as Location without resolving or escaping it
func (h *HTTPHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	destination, err := h.resolver.Resolve(r.Context(), code, clientOrigin(r))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			h.logger.Warn("redirect failed", "code", code, "error", err)
		}
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Location", destination)
	w.WriteHeader(http.StatusFound)
}

// clientOrigin is the first X-Forwarded-For hop, else the peer address without port
func clientOrigin(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
