package handler

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	oauthStateCookie  = "oauthstate"
)

// GoogleOptions configures the optional Google sign-in flow
type GoogleOptions struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	FrontendURL  string
}

type AuthHandler struct {
	accounts     ports.AccountService
	logger       *slog.Logger
	tokenTTL     time.Duration
	isProduction bool

	oauthConfig *oauth2.Config
	userInfoURL string
	frontendURL string
}

type GoogleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
	ID    string `json:"id"`
}

func NewAuthHandler(accounts ports.AccountService, logger *slog.Logger, tokenTTL time.Duration, isProduction bool) *AuthHandler {
	return &AuthHandler{
		accounts:     accounts,
		logger:       logger,
		tokenTTL:     tokenTTL,
		isProduction: isProduction,
		userInfoURL:  googleUserInfoURL,
	}
}

// WithGoogle enables the Google sign-in routes
func (h *AuthHandler) WithGoogle(opts GoogleOptions) *AuthHandler {
	h.oauthConfig = &oauth2.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		RedirectURL:  opts.RedirectURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
	h.frontendURL = opts.FrontendURL
	return h
}

func (h *AuthHandler) GoogleEnabled() bool {
	return h.oauthConfig != nil
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	token, user, err := h.accounts.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("user signed up", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, Email: user.Email, ID: user.ID})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	token, user, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, Email: user.Email, ID: user.ID})
}

// Profile echoes the identity carried by the token
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, h.logger, domain.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := h.generateStateOauthCookie(w)
	if err != nil {
		writeError(w, h.logger, domain.Wrap(err, domain.KindInternal, "generate oauth state"))
		return
	}
	http.Redirect(w, r, h.oauthConfig.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	oauthState, err := r.Cookie(oauthStateCookie)
	if err != nil {
		h.logger.Warn("oauth callback without state cookie", "error", err)
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	if r.FormValue("state") != oauthState.Value {
		h.logger.Warn("oauth callback with mismatched state")
		writeError(w, h.logger, domain.NewError(domain.KindUnauthorized, "invalid oauth state"))
		return
	}

	googleUser, err := h.fetchGoogleUser(r)
	if err != nil {
		h.logger.Warn("oauth callback failed", "error", err)
		writeError(w, h.logger, domain.Wrap(err, domain.KindUnauthorized, "google sign-in failed"))
		return
	}
	if !googleUser.VerifiedEmail {
		writeError(w, h.logger, domain.NewError(domain.KindForbidden, "google email not verified"))
		return
	}

	token, user, err := h.accounts.LoginExternal(r.Context(), googleUser.Email, googleUser.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Expires:  time.Now().Add(h.tokenTTL),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.Info("google sign-in", "user_id", user.ID)
	http.Redirect(w, r, h.frontendURL, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) fetchGoogleUser(r *http.Request) (*GoogleUser, error) {
	token, err := h.oauthConfig.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		return nil, fmt.Errorf("code exchange: %w", err)
	}

	resp, err := h.oauthConfig.Client(r.Context(), token).Get(h.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("get user info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get user info: status %d", resp.StatusCode)
	}

	var user GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return &user, nil
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Expires:  time.Now().Add(-1 * time.Hour),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.frontendURL+"/login", http.StatusTemporaryRedirect)
}

func (h *AuthHandler) generateStateOauthCookie(w http.ResponseWriter) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Expires:  time.Now().Add(20 * time.Minute),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}
