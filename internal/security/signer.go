package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "jaudi-finance-backend/internal/common/errors"
)

// SessionClaims is the JWT payload of a delivery-layer session token.
type SessionClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Signer issues session tokens and signs outbound payloads with HS256.
type Signer struct {
	key []byte
	ttl time.Duration
}

func NewSigner(key string, ttl time.Duration) *Signer {
	return &Signer{key: []byte(key), ttl: ttl}
}

func (s *Signer) IssueSessionToken(userID, email string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "jaudi-finance",
			Subject:   userID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

func (s *Signer) ValidateSessionToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "unexpected signing method")
		}
		return s.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "session expired")
		}
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "invalid session token")
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "invalid session token")
	}
	return claims, nil
}

// SignPayload wraps arbitrary payload fields in a short-lived signed token,
// used to attest sensitive requests.
func (s *Signer) SignPayload(payload map[string]interface{}) (string, error) {
	claims := jwt.MapClaims{
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(5 * time.Minute).Unix(),
	}
	for k, v := range payload {
		claims[k] = v
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}
