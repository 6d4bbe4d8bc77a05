package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/polyscribe/polyscribe/internal/database"
)

func testCipher(t *testing.T) *Cipher {
	t.Helper()
	key, err := LoadOrCreateKey(filepath.Join(t.TempDir(), "secret.key"))
	if err != nil {
		t.Fatal(err)
	}
	cipher, err := NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	return cipher
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	cipher := testCipher(t)

	encrypted, err := cipher.Encrypt("sk-secret-value")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if encrypted == "sk-secret-value" {
		t.Fatal("ciphertext equals plaintext")
	}

	plaintext, err := cipher.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plaintext != "sk-secret-value" {
		t.Errorf("plaintext = %q", plaintext)
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	cipher := testCipher(t)
	encrypted, err := cipher.Encrypt("value")
	if err != nil {
		t.Fatal(err)
	}

	tampered := []byte(encrypted)
	tampered[len(tampered)-5] ^= 0x01
	if _, err := cipher.Decrypt(string(tampered)); err == nil {
		t.Error("tampered ciphertext decrypted without error")
	}
}

func TestLoadOrCreateKeyIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "secret.key")

	first, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatal(err)
	}
	second, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Error("key changed between loads")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("key file mode = %o, want 600", info.Mode().Perm())
	}
}

type memRows map[string]string

func (m memRows) UpsertAPIKey(_ context.Context, provider, encryptedKey string) error {
	m[provider] = encryptedKey
	return nil
}

func (m memRows) GetAPIKey(_ context.Context, provider string) (string, bool, error) {
	v, ok := m[provider]
	return v, ok, nil
}

func (m memRows) DeleteAPIKey(_ context.Context, provider string) error {
	delete(m, provider)
	return nil
}

func (m memRows) ListAPIKeys(context.Context) ([]database.APIKeyInfo, error) {
	var out []database.APIKeyInfo
	for provider := range m {
		out = append(out, database.APIKeyInfo{Provider: provider})
	}
	return out, nil
}

func TestKeyStoreStoresEncrypted(t *testing.T) {
	ctx := context.Background()
	rows := memRows{}
	store := NewKeyStore(rows, testCipher(t))

	if err := store.Set(ctx, "openai", "sk-live-123"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if rows["openai"] == "sk-live-123" {
		t.Error("key stored in plaintext")
	}

	plaintext, found, err := store.Get(ctx, "openai")
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if plaintext != "sk-live-123" {
		t.Errorf("plaintext = %q", plaintext)
	}

	if _, found, err := store.Get(ctx, "deepgram"); err != nil || found {
		t.Errorf("missing key: found=%v err=%v, want found=false err=nil", found, err)
	}

	if err := store.Delete(ctx, "openai"); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := store.Get(ctx, "openai"); found {
		t.Error("key survived delete")
	}
}
