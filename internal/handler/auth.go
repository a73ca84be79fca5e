package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"jaudi-finance-backend/internal/api"
	apperrors "jaudi-finance-backend/internal/common/errors"
	"jaudi-finance-backend/internal/common/middleware"
	"jaudi-finance-backend/internal/models"
	"jaudi-finance-backend/internal/security"
	"jaudi-finance-backend/internal/state"
	"jaudi-finance-backend/internal/store"
)

type AuthHandler struct {
	container   *state.Container
	records     store.RecordStore
	client      api.Client
	credentials security.CredentialStore
	pins        *security.PINGuard
	signer      *security.Signer
	authTimeout time.Duration
	log         zerolog.Logger
}

func NewAuthHandler(container *state.Container, records store.RecordStore, client api.Client, credentials security.CredentialStore, pins *security.PINGuard, signer *security.Signer, authTimeout time.Duration, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		container:   container,
		records:     records,
		client:      client,
		credentials: credentials,
		pins:        pins,
		signer:      signer,
		authTimeout: authTimeout,
		log:         log,
	}
}

func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	{
		auth.POST("/login", h.login)
		auth.POST("/register", h.register)
		auth.POST("/logout", h.logout)
	}
}

// RegisterProtectedRoutes mounts the auth routes that need a live session.
func (h *AuthHandler) RegisterProtectedRoutes(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	{
		auth.POST("/pin", h.setPIN)
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password"`
	PIN      string `json:"pin,omitempty"`
	// Biometric carries the outcome of the device-side prompt, set only
	// when the app actually prompted.
	Biometric *bool `json:"biometric,omitempty"`
}

// deviceBiometric adapts the prompt outcome reported by the device into the
// provider interface the authenticator consumes.
type deviceBiometric struct {
	approved *bool
}

func (d deviceBiometric) Available(context.Context) bool { return d.approved != nil }
func (d deviceBiometric) BiometryType() string           { return "device" }
func (d deviceBiometric) Prompt(context.Context, string) (bool, error) {
	return *d.approved, nil
}

type sessionResponse struct {
	User    interface{} `json:"user"`
	Token   string      `json:"token"`
	Offline bool        `json:"offline,omitempty"`
}

// login authenticates against the remote authority when reachable and
// falls back to locally stored credentials otherwise.
func (h *AuthHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid login payload"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.authTimeout)
	defer cancel()

	if h.container.Online() {
		result, err := h.client.Login(ctx, req.Email, req.Password)
		if err == nil {
			h.completeLogin(ctx, result, req.Password)
			token, signErr := h.signer.IssueSessionToken(result.User.ID, result.User.Email)
			if signErr != nil {
				middleware.AbortWithError(c, apperrors.Wrap(signErr, apperrors.ErrCodeInternal, "failed to issue session"))
				return
			}
			respond(c, http.StatusOK, sessionResponse{User: result.User, Token: token})
			return
		}
		if !apperrors.IsTransientErr(err) {
			middleware.AbortWithError(c, err)
			return
		}
		h.log.Warn().Err(err).Msg("remote login unreachable, trying offline credentials")
	}

	h.offlineLogin(c, ctx, req)
}

// offlineLogin runs the local fallback chain: the device biometric outcome
// first, then stored credentials, then the transaction PIN.
func (h *AuthHandler) offlineLogin(c *gin.Context, ctx context.Context, req loginRequest) {
	authenticator := security.NewAuthenticator(h.authTimeout, h.log,
		security.NewBiometricStrategy(deviceBiometric{approved: req.Biometric}),
		security.NewStoredCredentialStrategy(h.credentials, req.Email, req.Password),
		security.NewPINStrategy(h.pins, req.PIN),
	)
	if _, err := authenticator.Authenticate(ctx); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	creds, _, err := h.credentials.Load(ctx)
	if err != nil {
		middleware.AbortWithError(c, apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to load credentials"))
		return
	}

	user, ok := h.container.User()
	if !ok {
		stored, err := h.records.UserByID(ctx, creds.UserID)
		if err != nil {
			middleware.AbortWithError(c, apperrors.New(apperrors.ErrCodeAuthUnavailable, "no local account data"))
			return
		}
		user = stored
		h.container.SetUser(user)
	}
	h.container.SetAuthenticated(true)

	token, err := h.signer.IssueSessionToken(user.ID, user.Email)
	if err != nil {
		middleware.AbortWithError(c, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to issue session"))
		return
	}
	h.log.Info().Str("user_id", user.ID).Msg("offline login succeeded")
	respond(c, http.StatusOK, sessionResponse{User: user, Token: token, Offline: true})
}

// completeLogin records the authenticated session locally so the next
// offline start can still sign in.
func (h *AuthHandler) completeLogin(ctx context.Context, result api.LoginResult, password string) {
	h.client.SetAuthToken(result.Token)
	h.container.SetUser(result.User)
	h.container.SetAuthenticated(true)

	if err := h.records.CreateUser(ctx, result.User); err == store.ErrDuplicate {
		if _, err := h.records.UpdateUser(ctx, result.User.ID, userUpdateFrom(result)); err != nil {
			h.log.Error().Err(err).Msg("failed to refresh stored user")
		}
	} else if err != nil {
		h.log.Error().Err(err).Msg("failed to store user")
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to hash credentials")
		return
	}
	creds := security.Credentials{Email: result.User.Email, PasswordHash: hash, UserID: result.User.ID}
	if err := h.credentials.Save(ctx, creds); err != nil {
		h.log.Error().Err(err).Msg("failed to save offline credentials")
	}
}

func (h *AuthHandler) register(c *gin.Context) {
	var req api.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid registration payload"))
		return
	}
	if !h.container.Online() {
		middleware.AbortWithError(c, apperrors.New(apperrors.ErrCodeOffline, "registration requires connectivity"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.authTimeout)
	defer cancel()

	result, err := h.client.Register(ctx, req)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	h.completeLogin(ctx, result, req.Password)

	token, err := h.signer.IssueSessionToken(result.User.ID, result.User.Email)
	if err != nil {
		middleware.AbortWithError(c, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to issue session"))
		return
	}
	respond(c, http.StatusCreated, sessionResponse{User: result.User, Token: token})
}

// logout drops the session and local secrets. The rate cache stays.
func (h *AuthHandler) logout(c *gin.Context) {
	h.container.Logout()
	h.client.SetAuthToken("")
	if err := h.credentials.Clear(c.Request.Context()); err != nil {
		h.log.Error().Err(err).Msg("failed to clear stored credentials")
	}
	respond(c, http.StatusOK, gin.H{"loggedOut": true})
}

type pinRequest struct {
	PIN string `json:"pin" binding:"required"`
}

// setPIN stores the transaction PIN used as the last offline login fallback.
func (h *AuthHandler) setPIN(c *gin.Context) {
	var req pinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.Wrap(err, apperrors.ErrCodeValidation, "pin is required"))
		return
	}
	if err := h.pins.SetPIN(req.PIN); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	h.log.Info().Str("user_id", c.GetString(middleware.ContextUserID)).Msg("transaction pin updated")
	respond(c, http.StatusOK, gin.H{"pinSet": true})
}

func userUpdateFrom(result api.LoginResult) models.UserUpdate {
	user := result.User
	return models.UserUpdate{
		Email:       &user.Email,
		FirstName:   &user.FirstName,
		LastName:    &user.LastName,
		PhoneNumber: &user.PhoneNumber,
		KYCStatus:   &user.KYCStatus,
	}
}
