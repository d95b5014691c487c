package appbootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"complaintdesk/config"
	"complaintdesk/core/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	dir := t.TempDir()
	return &config.AppConfig{
		DBDriver:   "sqlite",
		DBURL:      filepath.Join(dir, "complaints.db"),
		ListenAddr: "127.0.0.1:0",
		Directory:  config.DirectoryConfig{BcryptCost: bcrypt.MinCost},
		Auth:       config.AuthConfig{JWTSecret: "test-secret", Issuer: "complaintdesk", TokenTTL: time.Hour},
		Complaints: config.ComplaintsConfig{IDFormat: "c{seq}", SeedDemo: true},
		Notifications: config.NotificationsConfig{
			Sink: "none", Schedule: "@every 1h", BatchSize: 10, MaxAttempts: 3, RetryBackoff: time.Second,
		},
		Backups: config.BackupsConfig{Schedule: "@daily", Dir: filepath.Join(dir, "backups"), Retain: 2},
	}
}

func compose(t *testing.T, cfg *config.AppConfig) *Runtime {
	t.Helper()
	rt, err := Compose(context.Background(), cfg, utils.NewLoggerWithOptions(nil, "error", "text"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestComposeSeedsOnce(t *testing.T) {
	cfg := testConfig(t)
	rt := compose(t, cfg)
	n, err := rt.Repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.NoError(t, rt.Close())

	again := compose(t, cfg)
	n, err = again.Repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	recs, err := again.Audits.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "complaints.seed", recs[0].Action)
}

func TestComposeRejectsMissingDirectoryFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Directory.Path = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := Compose(context.Background(), cfg, nil)
	require.Error(t, err)
}

type apiClient struct {
	t      *testing.T
	router http.Handler
}

func (c apiClient) call(method, path, token, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	c.router.ServeHTTP(rr, req)
	return rr
}

func (c apiClient) login(email string) string {
	c.t.Helper()
	rr := c.call(http.MethodPost, "/api/auth/login", "", `{"email":"`+email+`","password":"123"}`)
	require.Equal(c.t, http.StatusOK, rr.Code, rr.Body.String())
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(c.t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.NotEmpty(c.t, out.Token)
	return out.Token
}

func TestHTTPWalkthrough(t *testing.T) {
	rt := compose(t, testConfig(t))
	c := apiClient{t: t, router: rt.Server().Router()}

	rr := c.call(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = c.call(http.MethodPost, "/api/auth/login", "", `{"email":"alice@college.edu","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = c.call(http.MethodGet, "/api/complaints", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	alice := c.login("alice@college.edu")
	smith := c.login("smith@college.edu")

	rr = c.call(http.MethodGet, "/api/me", alice, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"complaints.create"`)

	rr = c.call(http.MethodPost, "/api/complaints", alice, `{"title":"Broken bench","description":"Row 3 in CS-A"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"id":"c6"`)

	rr = c.call(http.MethodPost, "/api/complaints", smith, `{"title":"x","description":"y"}`)
	assert.Equal(t, http.StatusForbidden, rr.Code, "teachers cannot file complaints")

	rr = c.call(http.MethodPost, "/api/complaints/c6/resolve", smith, `{"note":"replaced"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"status":"resolved"`)

	rr = c.call(http.MethodGet, "/api/people/u1/chain", alice, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"complete":true`)

	rr = c.call(http.MethodGet, "/api/audit", alice, "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = c.call(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `complaintdesk_transitions_total{action="resolved",outcome="ok"} 1`)
	assert.Contains(t, rr.Body.String(), `complaintdesk_complaints{status="resolved"} 2`)

	n, err := rt.Dispatcher.RunOnce(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rr = c.call(http.MethodGet, "/api/notifications", alice, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "has been resolved")
}
