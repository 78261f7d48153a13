package users

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/openclaw/gateway/internal/apperr"
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// HashPassword returns a self-describing Argon2id hash string carrying its
// own parameters and salt, e.g. "argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>".
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", apperr.Wrap(apperr.Crypto, err)
	}
	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf(
		"argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword recomputes the hash from the encoded parameters and
// compares it to the stored digest in constant time.
func VerifyPassword(encoded, password string) (bool, error) {
	var version, memory, time, threads int
	var saltB64, hashB64 string

	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != "argon2id" {
		return false, apperr.New(apperr.Crypto, "unrecognized password hash format")
	}
	if _, err := fmt.Sscanf(parts[1], "v=%d", &version); err != nil {
		return false, apperr.Wrap(apperr.Crypto, err)
	}
	if _, err := fmt.Sscanf(parts[2], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, apperr.Wrap(apperr.Crypto, err)
	}
	saltB64, hashB64 = parts[3], parts[4]

	salt, err := base64.RawStdEncoding.DecodeString(saltB64)
	if err != nil {
		return false, apperr.Wrap(apperr.Crypto, err)
	}
	want, err := base64.RawStdEncoding.DecodeString(hashB64)
	if err != nil {
		return false, apperr.Wrap(apperr.Crypto, err)
	}

	got := argon2.IDKey([]byte(password), salt, uint32(time), uint32(memory), uint8(threads), uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
