// Package api talks to the remote remittance authority. Every endpoint
// answers with the envelope {success, data?, error?}; transport failures,
// timeouts and non-2xx statuses all surface as unsuccessful results so the
// sync core sees a single failure shape.
package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "jaudi-finance-backend/internal/common/errors"
	"jaudi-finance-backend/internal/models"
)

// Envelope is the uniform response wrapper of the remote API.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// LoginResult carries the authenticated user and the bearer token issued
// for subsequent calls.
type LoginResult struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

// RegisterRequest creates a remote account.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
}

// BatchRequest uploads accumulated offline mutations in one call.
type BatchRequest struct {
	Transactions []models.Transaction `json:"transactions,omitempty"`
	KYCDocuments []models.KYCDocument `json:"kycDocuments,omitempty"`
	UserUpdates  []models.User        `json:"userUpdates,omitempty"`
}

// PayloadSigner attests outbound mutations. The security signer satisfies it.
type PayloadSigner interface {
	SignPayload(payload map[string]interface{}) (string, error)
}

// Client is the remote API surface the rest of the app depends on.
type Client interface {
	Login(ctx context.Context, email, password string) (LoginResult, error)
	Register(ctx context.Context, req RegisterRequest) (LoginResult, error)
	CreateTransaction(ctx context.Context, tx models.Transaction) (models.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, update models.TransactionUpdate) (models.Transaction, error)
	GetTransactions(ctx context.Context) ([]models.Transaction, error)
	GetExchangeRates(ctx context.Context) ([]models.ExchangeRate, error)
	RegisterFCMToken(ctx context.Context, token string) error
	BatchSync(ctx context.Context, batch BatchRequest) error
	HealthCheck(ctx context.Context) bool
	SetAuthToken(token string)
}

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	signer     PayloadSigner
	log        zerolog.Logger

	mu    sync.RWMutex
	token string
}

func NewHTTPClient(baseURL string, timeout time.Duration, log zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// SetPayloadSigner enables request attestation: every request carrying a
// body gets an X-Signature header over its digest.
func (c *HTTPClient) SetPayloadSigner(signer PayloadSigner) {
	c.signer = signer
}

// SetAuthToken stores the bearer token attached to subsequent requests.
// An empty token clears it.
func (c *HTTPClient) SetAuthToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *HTTPClient) authToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (LoginResult, error) {
	body := map[string]string{"email": email, "password": password}
	var result LoginResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &result); err != nil {
		return LoginResult{}, err
	}
	return result, nil
}

func (c *HTTPClient) Register(ctx context.Context, req RegisterRequest) (LoginResult, error) {
	var result LoginResult
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &result); err != nil {
		return LoginResult{}, err
	}
	return result, nil
}

func (c *HTTPClient) CreateTransaction(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	var result models.Transaction
	if err := c.do(ctx, http.MethodPost, "/transactions", tx, &result); err != nil {
		return models.Transaction{}, err
	}
	return result, nil
}

func (c *HTTPClient) UpdateTransaction(ctx context.Context, id string, update models.TransactionUpdate) (models.Transaction, error) {
	var result models.Transaction
	if err := c.do(ctx, http.MethodPatch, "/transactions/"+id, update, &result); err != nil {
		return models.Transaction{}, err
	}
	return result, nil
}

func (c *HTTPClient) GetTransactions(ctx context.Context) ([]models.Transaction, error) {
	var result []models.Transaction
	if err := c.do(ctx, http.MethodGet, "/transactions", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *HTTPClient) GetExchangeRates(ctx context.Context) ([]models.ExchangeRate, error) {
	var result []models.ExchangeRate
	if err := c.do(ctx, http.MethodGet, "/exchange-rates", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *HTTPClient) RegisterFCMToken(ctx context.Context, token string) error {
	body := map[string]string{"token": token}
	return c.do(ctx, http.MethodPost, "/notifications/token", body, nil)
}

func (c *HTTPClient) BatchSync(ctx context.Context, batch BatchRequest) error {
	return c.do(ctx, http.MethodPost, "/sync/batch", batch, nil)
}

// HealthCheck reports reachability. Any well-formed response counts; the
// caller only wants to know whether the authority answers at all.
func (c *HTTPClient) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to encode request body")
		}
		payload = data
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.authToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.signer != nil && payload != nil {
		digest := sha256.Sum256(payload)
		signature, err := c.signer.SignPayload(map[string]interface{}{"digest": hex.EncodeToString(digest[:])})
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to sign request")
		}
		req.Header.Set("X-Signature", signature)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return apperrors.Wrap(err, apperrors.ErrCodeTimeout, "request timed out")
		}
		return apperrors.Wrap(err, apperrors.ErrCodeNetwork, "request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeNetwork, "failed to read response")
	}

	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeRemoteAPI, "malformed response (status %d)", resp.StatusCode)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices || !envelope.Success {
		msg := envelope.Error
		if msg == "" {
			msg = fmt.Sprintf("remote API returned status %d", resp.StatusCode)
		}
		c.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("remote call failed")
		return apperrors.New(apperrors.ErrCodeRemoteAPI, msg)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeRemoteAPI, "failed to decode response data")
		}
	}
	return nil
}
