package repositories

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/AskChad/ClickUp-Monday-sync/internal/shared"
)

// Vault stores access tokens encrypted at rest with AES-GCM.
//
// Keyed by (user id, service name). The cipher key comes from the
// vault_key config entry, 32 bytes hex-encoded.
type Vault struct {
	db   *sql.DB
	aead cipher.AEAD
}

// NewVault creates a vault over the given database using the hex-encoded 32-byte key.
func NewVault(db *sql.DB, hexKey string) (*Vault, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: vault key is not valid hex", shared.ErrInvalidConfig)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: vault key must be 32 bytes, got %d", shared.ErrInvalidConfig, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Vault{db: db, aead: aead}, nil
}

// Get returns the decrypted token for the given user and service.
// Returns [shared.ErrMissingCredentials] when no token is stored.
func (v *Vault) Get(userID, service string) (string, error) {
	var ciphertext string
	err := v.db.QueryRow(
		"SELECT token_ciphertext FROM credentials WHERE user_id = ? AND service = ?",
		userID, service,
	).Scan(&ciphertext)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: no %s token for user %s", shared.ErrMissingCredentials, service, userID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read credential: %w", err)
	}

	return v.decrypt(ciphertext)
}

// Set stores the token for the given user and service, replacing any existing one.
func (v *Vault) Set(userID, service, token string) error {
	ciphertext, err := v.encrypt(token)
	if err != nil {
		return err
	}

	now := time.Now()
	_, err = v.db.Exec(`
		INSERT INTO credentials (user_id, service, token_ciphertext, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, service) DO UPDATE SET token_ciphertext = excluded.token_ciphertext, updated_at = excluded.updated_at
	`, userID, service, ciphertext, now, now)
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	return nil
}

func (v *Vault) encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (v *Vault) decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: credential is not valid base64", shared.ErrInvalidCredentials)
	}
	if len(sealed) < v.aead.NonceSize() {
		return "", fmt.Errorf("%w: credential ciphertext too short", shared.ErrInvalidCredentials)
	}
	nonce, ciphertext := sealed[:v.aead.NonceSize()], sealed[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to decrypt credential", shared.ErrInvalidCredentials)
	}
	return string(plaintext), nil
}
