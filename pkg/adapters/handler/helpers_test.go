package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/shortlink/pkg/adapters/repository/sqlstore"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/token"
	"github.com/wadjakorntonsri/shortlink/pkg/core/services"
)

const testBaseURL = "http://sho.rt"

type testApp struct {
	router   http.Handler
	resolver *services.Resolver
	ledger   *services.Ledger
	tokens   *token.HMACService
	auth     *AuthHandler
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestApp(t *testing.T, adminPassword string) *testApp {
	t.Helper()
	logger := discardLogger()

	store, err := sqlstore.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	tokens, err := token.NewHMACService("handler-test-secret")
	require.NoError(t, err)
	codes, err := services.NewRandomCodeGenerator(services.DefaultCodeLength)
	require.NoError(t, err)

	registry := services.NewRegistry(store, codes, logger)
	ledger := services.NewLedger(store, logger)
	resolver := services.NewResolver(registry, ledger, time.Second)
	accounts := services.NewAccountService(store, tokens)
	auth := NewAuthHandler(accounts, logger, time.Hour, false)

	router := NewRouter(Handlers{
		Links:      NewHTTPHandler(registry, ledger, resolver, testBaseURL, logger),
		Auth:       auth,
		Admin:      NewAdminHandler(services.NewStatsService(store, ledger), adminPassword, logger),
		Middleware: NewMiddleware(tokens, logger),
		Logger:     logger,
	})

	t.Cleanup(resolver.Wait)
	return &testApp{router: router, resolver: resolver, ledger: ledger, tokens: tokens, auth: auth}
}

func (a *testApp) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, buf).WithContext(context.Background())
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func (a *testApp) signup(t *testing.T, email string) AuthResponse {
	t.Helper()
	rr := a.do(t, http.MethodPost, "/api/v1/auth/signup", "", CredentialsRequest{Email: email, Password: "pw-" + email})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func (a *testApp) createLink(t *testing.T, bearer, destination string) CreateLinkResponse {
	t.Helper()
	rr := a.do(t, http.MethodPost, "/api/v1/links", bearer, CreateLinkRequest{DestinationURL: destination})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var resp CreateLinkResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorDetail {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body.Error
}

func newBufferLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, nil))
}
