// Package secrets encrypts provider API keys at rest and serves them as
// translation/transcription credentials.
package secrets

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/polyscribe/polyscribe/internal/database"
)

// LoadOrCreateKey reads a hex-encoded 256-bit key from path, generating and
// persisting one on first run. The file is created owner-readable only.
func LoadOrCreateKey(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		key, decodeErr := hex.DecodeString(strings.TrimSpace(string(raw)))
		if decodeErr != nil || len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("invalid encryption key in %s", path)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read encryption key: %w", err)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate encryption key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("write encryption key: %w", err)
	}
	return key, nil
}

// Cipher seals and opens short secrets with XChaCha20-Poly1305.
type Cipher struct {
	key []byte
}

func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &Cipher{key: append([]byte(nil), key...)}, nil
}

// Encrypt returns base64(nonce || ciphertext).
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Cipher) Decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	if len(sealed) < aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

// KeyRows is the persistence surface for encrypted keys.
type KeyRows interface {
	UpsertAPIKey(ctx context.Context, provider, encryptedKey string) error
	GetAPIKey(ctx context.Context, provider string) (string, bool, error)
	DeleteAPIKey(ctx context.Context, provider string) error
	ListAPIKeys(ctx context.Context) ([]database.APIKeyInfo, error)
}

// KeyStore stores provider API keys encrypted and hands out plaintext to the
// pipeline. It satisfies translate.Credentials.
type KeyStore struct {
	rows   KeyRows
	cipher *Cipher
}

func NewKeyStore(rows KeyRows, cipher *Cipher) *KeyStore {
	return &KeyStore{rows: rows, cipher: cipher}
}

func (k *KeyStore) Set(ctx context.Context, provider, apiKey string) error {
	encrypted, err := k.cipher.Encrypt(apiKey)
	if err != nil {
		return fmt.Errorf("encrypt api key: %w", err)
	}
	return k.rows.UpsertAPIKey(ctx, provider, encrypted)
}

// Get resolves a provider's key. A missing key is reported with found=false,
// never as an error.
func (k *KeyStore) Get(ctx context.Context, provider string) (string, bool, error) {
	encrypted, found, err := k.rows.GetAPIKey(ctx, provider)
	if err != nil || !found {
		return "", false, err
	}
	plaintext, err := k.cipher.Decrypt(encrypted)
	if err != nil {
		return "", false, fmt.Errorf("decrypt api key for %s: %w", provider, err)
	}
	return plaintext, true, nil
}

func (k *KeyStore) Delete(ctx context.Context, provider string) error {
	return k.rows.DeleteAPIKey(ctx, provider)
}

func (k *KeyStore) List(ctx context.Context) ([]database.APIKeyInfo, error) {
	return k.rows.ListAPIKeys(ctx)
}
