package security

import (
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	apperrors "jaudi-finance-backend/internal/common/errors"
)

const (
	bcryptCost      = 12
	maxPINAttempts  = 3
	lockoutDuration = 5 * time.Minute
)

// PINGuard verifies transaction PINs with a failed-attempt lockout. Three
// wrong attempts lock verification for five minutes.
type PINGuard struct {
	mu          sync.Mutex
	hash        string
	attempts    int
	lockedUntil time.Time
}

func NewPINGuard() *PINGuard {
	return &PINGuard{}
}

// SetPIN stores a new PIN hash and resets the lockout state.
func (g *PINGuard) SetPIN(pin string) error {
	if len(pin) < 4 {
		return apperrors.New(apperrors.ErrCodeValidation, "pin must be at least 4 digits")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcryptCost)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.hash = string(hash)
	g.attempts = 0
	g.lockedUntil = time.Time{}
	g.mu.Unlock()
	return nil
}

// Verify checks the PIN. Wrong attempts count toward the lockout; a correct
// attempt resets the counter.
func (g *PINGuard) Verify(pin string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.hash == "" {
		return apperrors.New(apperrors.ErrCodeAuthUnavailable, "no pin configured")
	}
	if now := time.Now(); now.Before(g.lockedUntil) {
		return apperrors.Newf(apperrors.ErrCodeAuthLocked, "pin locked until %s", g.lockedUntil.Format(time.RFC3339))
	}

	if bcrypt.CompareHashAndPassword([]byte(g.hash), []byte(pin)) != nil {
		g.attempts++
		if g.attempts >= maxPINAttempts {
			g.lockedUntil = time.Now().Add(lockoutDuration)
			g.attempts = 0
			return apperrors.New(apperrors.ErrCodeAuthLocked, "too many failed attempts")
		}
		return apperrors.New(apperrors.ErrCodeAuthDenied, "incorrect pin")
	}

	g.attempts = 0
	return nil
}

// Configured reports whether a PIN has been set.
func (g *PINGuard) Configured() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hash != ""
}

// HashPassword hashes a login password for local credential storage.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// VerifyPassword compares a password with its stored hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
