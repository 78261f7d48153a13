// Package credentials implements the AEAD-at-rest credential vault: a
// key/value store of named secrets, encrypted with AES-256-GCM and written
// with owner-only permissions.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/openclaw/gateway/internal/apperr"
	"github.com/openclaw/gateway/internal/secret"
)

const nonceSize = 12

// Vault stores AEAD-encrypted credentials on disk under dir, one file per name.
type Vault struct {
	key [32]byte
	dir string
}

// NewVault builds a Vault parameterized by a 32-byte AES-256 key and a directory.
func NewVault(key [32]byte, dir string) *Vault {
	return &Vault{key: key, dir: dir}
}

func (v *Vault) path(name string) string {
	return filepath.Join(v.dir, name+".enc")
}

// Store encrypts secretValue and writes it to {dir}/{name}.enc, creating the
// directory on demand and restricting file permissions to owner-only on Unix.
func (v *Vault) Store(name string, secretValue secret.Secret) error {
	if err := os.MkdirAll(v.dir, 0o700); err != nil {
		return apperr.Wrap(apperr.Storage, err)
	}

	ciphertext, err := v.encrypt(secretValue.Expose())
	if err != nil {
		return apperr.Wrap(apperr.Crypto, err)
	}

	path := v.path(name)
	if err := os.WriteFile(path, ciphertext, 0o600); err != nil {
		return apperr.Wrap(apperr.Storage, err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(path, 0o600); err != nil {
			return apperr.Wrap(apperr.Storage, err)
		}
	}
	return nil
}

// Load reads and decrypts a credential, returning a fresh Secret container.
// A decrypted-but-tampered file (or a wrong key) surfaces as a Crypto error,
// indistinguishable from the caller's perspective whether the file existed.
func (v *Vault) Load(name string) (secret.Secret, error) {
	ciphertext, err := os.ReadFile(v.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return secret.Secret{}, apperr.New(apperr.NotFound, "credential not found: "+name)
		}
		return secret.Secret{}, apperr.Wrap(apperr.Storage, err)
	}

	plaintext, err := v.decrypt(ciphertext)
	if err != nil {
		return secret.Secret{}, apperr.Wrap(apperr.Crypto, err)
	}
	return secret.New(plaintext), nil
}

// Delete removes the credential file if present; absence is not an error.
func (v *Vault) Delete(name string) error {
	err := os.Remove(v.path(name))
	if err != nil && !os.IsNotExist(err) {
		return apperr.Wrap(apperr.Storage, err)
	}
	return nil
}

// List enumerates stored credential names (the ".enc" suffix stripped).
func (v *Vault) List() ([]string, error) {
	entries, err := os.ReadDir(v.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.Storage, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := strings.CutSuffix(e.Name(), ".enc"); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

func (v *Vault) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(v.key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	return append(nonce, ciphertext...), nil
}

func (v *Vault) decrypt(data []byte) ([]byte, error) {
	if len(data) < nonceSize {
		return nil, apperr.New(apperr.Crypto, "ciphertext too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]

	block, err := aes.NewCipher(v.key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, nonce, ciphertext, nil)
}
