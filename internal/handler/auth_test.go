package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jaudi-finance-backend/internal/common/middleware"
	"jaudi-finance-backend/internal/models"
	"jaudi-finance-backend/internal/security"
	"jaudi-finance-backend/internal/state"
	"jaudi-finance-backend/internal/store/memory"
)

type authTestEnv struct {
	router      *gin.Engine
	container   *state.Container
	records     *memory.Store
	credentials *security.PlainFileStore
	pins        *security.PINGuard
	signer      *security.Signer
}

func newAuthTestEnv(t *testing.T) *authTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	creds, err := security.NewPlainFileStore(t.TempDir())
	require.NoError(t, err)

	e := &authTestEnv{
		container:   state.NewContainer(state.NoopSnapshotStore{}, zerolog.Nop()),
		records:     memory.New(),
		credentials: creds,
		pins:        security.NewPINGuard(),
		signer:      security.NewSigner("test-key", time.Hour),
	}

	h := NewAuthHandler(e.container, e.records, idleClient{}, e.credentials, e.pins, e.signer, time.Second, zerolog.Nop())
	e.router = gin.New()
	v1 := e.router.Group("/api/v1")
	h.RegisterRoutes(v1)
	authed := v1.Group("")
	authed.Use(middleware.RequireSession(e.signer))
	h.RegisterProtectedRoutes(authed)
	return e
}

func (e *authTestEnv) login(t *testing.T, payload map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *authTestEnv) seedUser(t *testing.T) models.User {
	t.Helper()
	user := models.User{ID: "user-1", Email: "amara@example.com", FirstName: "Amara"}
	require.NoError(t, e.records.CreateUser(context.Background(), user))
	return user
}

func (e *authTestEnv) seedCredentials(t *testing.T, password string) {
	t.Helper()
	hash, err := security.HashPassword(password)
	require.NoError(t, err)
	require.NoError(t, e.credentials.Save(context.Background(), security.Credentials{
		Email:        "amara@example.com",
		PasswordHash: hash,
		UserID:       "user-1",
	}))
}

func TestOfflineLoginWithStoredCredentials(t *testing.T) {
	e := newAuthTestEnv(t)
	e.seedUser(t)
	e.seedCredentials(t, "s3cret")

	rec := e.login(t, map[string]interface{}{"email": "amara@example.com", "password": "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Token   string `json:"token"`
			Offline bool   `json:"offline"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.True(t, body.Data.Offline)

	claims, err := e.signer.ValidateSessionToken(body.Data.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.True(t, e.container.Authenticated())
}

func TestOfflineLoginWrongPasswordDenied(t *testing.T) {
	e := newAuthTestEnv(t)
	e.seedUser(t)
	e.seedCredentials(t, "s3cret")

	rec := e.login(t, map[string]interface{}{"email": "amara@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, e.container.Authenticated())
}

func TestOfflineLoginFallsBackToPIN(t *testing.T) {
	e := newAuthTestEnv(t)
	user := e.seedUser(t)
	e.container.SetUser(user)
	require.NoError(t, e.pins.SetPIN("4321"))

	// no stored credentials: the chain falls through to the pin strategy
	rec := e.login(t, map[string]interface{}{"email": "amara@example.com", "pin": "4321"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, e.container.Authenticated())
}

func TestOfflineLoginAcceptsBiometricApproval(t *testing.T) {
	e := newAuthTestEnv(t)
	user := e.seedUser(t)
	e.container.SetUser(user)

	rec := e.login(t, map[string]interface{}{"email": "amara@example.com", "biometric": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, e.container.Authenticated())
}

func TestOfflineLoginRejectedBiometricStopsChain(t *testing.T) {
	e := newAuthTestEnv(t)
	user := e.seedUser(t)
	e.container.SetUser(user)
	e.seedCredentials(t, "s3cret")

	// a failed device prompt is a denial, not a fall-through
	rec := e.login(t, map[string]interface{}{"email": "amara@example.com", "password": "s3cret", "biometric": false})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, e.container.Authenticated())
}

func TestSetPINRequiresSessionAndConfiguresGuard(t *testing.T) {
	e := newAuthTestEnv(t)

	body := bytes.NewReader([]byte(`{"pin":"4321"}`))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/pin", body)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, e.pins.Configured())

	token, err := e.signer.IssueSessionToken("user-1", "amara@example.com")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/pin", bytes.NewReader([]byte(`{"pin":"4321"}`)))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, e.pins.Configured())
	require.NoError(t, e.pins.Verify("4321"))
}
