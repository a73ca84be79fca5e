package security

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	apperrors "jaudi-finance-backend/internal/common/errors"
)

// Credentials are the locally stored login secrets used for offline auth.
type Credentials struct {
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	UserID       string `json:"userId"`
}

// CredentialStore persists login credentials across restarts.
type CredentialStore interface {
	Save(ctx context.Context, creds Credentials) error
	Load(ctx context.Context) (Credentials, bool, error)
	Clear(ctx context.Context) error
}

// CredentialChain tries each store in order. A stage that fails is skipped
// with a warning; the chain only errors when every stage does. This mirrors
// a keychain-first, plain-file-second storage ladder.
type CredentialChain struct {
	stores []CredentialStore
	log    zerolog.Logger
}

func NewCredentialChain(log zerolog.Logger, stores ...CredentialStore) *CredentialChain {
	return &CredentialChain{stores: stores, log: log}
}

func (c *CredentialChain) Save(ctx context.Context, creds Credentials) error {
	var lastErr error
	for _, s := range c.stores {
		if err := s.Save(ctx, creds); err != nil {
			c.log.Warn().Err(err).Msg("credential store stage failed, trying next")
			lastErr = err
			continue
		}
		return nil
	}
	return apperrors.Wrap(lastErr, apperrors.ErrCodeStorage, "all credential stores failed")
}

func (c *CredentialChain) Load(ctx context.Context) (Credentials, bool, error) {
	var lastErr error
	for _, s := range c.stores {
		creds, ok, err := s.Load(ctx)
		if err != nil {
			c.log.Warn().Err(err).Msg("credential store stage unreadable, trying next")
			lastErr = err
			continue
		}
		if ok {
			return creds, true, nil
		}
	}
	if lastErr != nil {
		return Credentials{}, false, apperrors.Wrap(lastErr, apperrors.ErrCodeStorage, "all credential stores failed")
	}
	return Credentials{}, false, nil
}

func (c *CredentialChain) Clear(ctx context.Context) error {
	var lastErr error
	for _, s := range c.stores {
		if err := s.Clear(ctx); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// EncryptedFileStore keeps credentials in an AES-GCM sealed file. The key
// is derived from the app signing key.
type EncryptedFileStore struct {
	path string
	key  [32]byte
}

func NewEncryptedFileStore(dir, signingKey string) (*EncryptedFileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &EncryptedFileStore{
		path: filepath.Join(dir, "credentials.enc"),
		key:  sha256.Sum256([]byte(signingKey)),
	}, nil
}

func (s *EncryptedFileStore) Save(_ context.Context, creds Credentials) error {
	plain, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	block, err := aes.NewCipher(s.key[:])
	if err != nil {
		return err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return err
	}
	sealed := gcm.Seal(nonce, nonce, plain, nil)
	return os.WriteFile(s.path, sealed, 0o600)
}

func (s *EncryptedFileStore) Load(_ context.Context) (Credentials, bool, error) {
	sealed, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Credentials{}, false, nil
	}
	if err != nil {
		return Credentials{}, false, err
	}
	block, err := aes.NewCipher(s.key[:])
	if err != nil {
		return Credentials{}, false, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Credentials{}, false, err
	}
	if len(sealed) < gcm.NonceSize() {
		return Credentials{}, false, apperrors.New(apperrors.ErrCodeStorage, "credential file truncated")
	}
	plain, err := gcm.Open(nil, sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():], nil)
	if err != nil {
		return Credentials{}, false, apperrors.Wrap(err, apperrors.ErrCodeStorage, "credential file unreadable")
	}
	var creds Credentials
	if err := json.Unmarshal(plain, &creds); err != nil {
		return Credentials{}, false, err
	}
	return creds, true, nil
}

func (s *EncryptedFileStore) Clear(_ context.Context) error {
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// PlainFileStore is the last-resort stage: unencrypted JSON with tight file
// permissions. Only reached when the sealed store cannot be used.
type PlainFileStore struct {
	path string
}

func NewPlainFileStore(dir string) (*PlainFileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &PlainFileStore{path: filepath.Join(dir, "credentials.json")}, nil
}

func (s *PlainFileStore) Save(_ context.Context, creds Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *PlainFileStore) Load(_ context.Context) (Credentials, bool, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Credentials{}, false, nil
	}
	if err != nil {
		return Credentials{}, false, err
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, false, err
	}
	return creds, true, nil
}

func (s *PlainFileStore) Clear(_ context.Context) error {
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
