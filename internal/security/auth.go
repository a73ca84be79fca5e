package security

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	apperrors "jaudi-finance-backend/internal/common/errors"
	"jaudi-finance-backend/internal/models"
)

// Strategy is one way of proving the user's identity. Strategies report
// availability separately from outcome so the authenticator can skip an
// absent factor without burning the attempt.
type Strategy interface {
	Name() string
	Available(ctx context.Context) bool
	Authenticate(ctx context.Context) (models.AuthResult, error)
}

// Authenticator runs the configured strategies in order until one succeeds.
// Each attempt gets a hard deadline; an unavailable or timed-out strategy
// falls through to the next, a denial stops the chain.
type Authenticator struct {
	strategies []Strategy
	timeout    time.Duration
	log        zerolog.Logger
}

func NewAuthenticator(timeout time.Duration, log zerolog.Logger, strategies ...Strategy) *Authenticator {
	return &Authenticator{strategies: strategies, timeout: timeout, log: log}
}

func (a *Authenticator) Authenticate(ctx context.Context) (models.AuthResult, error) {
	for _, strategy := range a.strategies {
		if !strategy.Available(ctx) {
			a.log.Debug().Str("strategy", strategy.Name()).Msg("auth strategy unavailable, falling through")
			continue
		}

		attemptCtx, cancel := context.WithTimeout(ctx, a.timeout)
		result, err := strategy.Authenticate(attemptCtx)
		cancel()

		if err == nil && result.Success {
			result.Strategy = strategy.Name()
			a.log.Info().Str("strategy", strategy.Name()).Msg("authentication succeeded")
			return result, nil
		}

		switch {
		case errors.Is(err, context.DeadlineExceeded):
			a.log.Warn().Str("strategy", strategy.Name()).Msg("auth strategy timed out, falling through")
			continue
		case apperrors.CodeOf(err) == apperrors.ErrCodeAuthUnavailable:
			continue
		case apperrors.CodeOf(err) == apperrors.ErrCodeAuthLocked:
			return models.AuthResult{}, err
		case apperrors.CodeOf(err) == apperrors.ErrCodeAuthDenied:
			return models.AuthResult{}, err
		default:
			a.log.Warn().Err(err).Str("strategy", strategy.Name()).Msg("auth strategy failed, falling through")
		}
	}
	return models.AuthResult{}, apperrors.New(apperrors.ErrCodeAuthUnavailable, "no authentication strategy succeeded")
}

// BiometricProvider is the injected platform hook for biometric prompts.
type BiometricProvider interface {
	Available(ctx context.Context) bool
	BiometryType() string
	Prompt(ctx context.Context, reason string) (bool, error)
}

// BiometricStrategy wraps the platform biometric prompt.
type BiometricStrategy struct {
	provider BiometricProvider
}

func NewBiometricStrategy(provider BiometricProvider) *BiometricStrategy {
	return &BiometricStrategy{provider: provider}
}

func (s *BiometricStrategy) Name() string { return "biometric" }

func (s *BiometricStrategy) Available(ctx context.Context) bool {
	return s.provider != nil && s.provider.Available(ctx)
}

func (s *BiometricStrategy) Authenticate(ctx context.Context) (models.AuthResult, error) {
	ok, err := s.provider.Prompt(ctx, "Confirm your identity")
	if err != nil {
		return models.AuthResult{}, err
	}
	if !ok {
		return models.AuthResult{}, apperrors.New(apperrors.ErrCodeAuthDenied, "biometric prompt rejected")
	}
	return models.AuthResult{Success: true, BiometryType: s.provider.BiometryType()}, nil
}

// StoredCredentialStrategy validates a supplied password against the local
// credential store. It backs offline login.
type StoredCredentialStrategy struct {
	store    CredentialStore
	email    string
	password string
}

func NewStoredCredentialStrategy(store CredentialStore, email, password string) *StoredCredentialStrategy {
	return &StoredCredentialStrategy{store: store, email: email, password: password}
}

func (s *StoredCredentialStrategy) Name() string { return "stored_credentials" }

func (s *StoredCredentialStrategy) Available(ctx context.Context) bool {
	if s.password == "" {
		return false
	}
	_, ok, err := s.store.Load(ctx)
	return err == nil && ok
}

func (s *StoredCredentialStrategy) Authenticate(ctx context.Context) (models.AuthResult, error) {
	creds, ok, err := s.store.Load(ctx)
	if err != nil || !ok {
		return models.AuthResult{}, apperrors.New(apperrors.ErrCodeAuthUnavailable, "no stored credentials")
	}
	if creds.Email != s.email || !VerifyPassword(s.password, creds.PasswordHash) {
		return models.AuthResult{}, apperrors.New(apperrors.ErrCodeAuthDenied, "invalid credentials")
	}
	return models.AuthResult{Success: true}, nil
}

// PINStrategy falls back to the transaction PIN.
type PINStrategy struct {
	guard *PINGuard
	pin   string
}

func NewPINStrategy(guard *PINGuard, pin string) *PINStrategy {
	return &PINStrategy{guard: guard, pin: pin}
}

func (s *PINStrategy) Name() string { return "pin" }

func (s *PINStrategy) Available(context.Context) bool {
	return s.guard.Configured() && s.pin != ""
}

func (s *PINStrategy) Authenticate(context.Context) (models.AuthResult, error) {
	if err := s.guard.Verify(s.pin); err != nil {
		return models.AuthResult{}, err
	}
	return models.AuthResult{Success: true}, nil
}
