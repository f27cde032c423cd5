// Package encryption implements Argon2id password hashing for the
// login pipeline: derive, encode, and constant-time verify.
package encryption

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/onecho/banchod/pkg/config"
)

// Encryptor derives and verifies Argon2id password hashes using a
// fixed parameter set read from configuration at startup.
type Encryptor struct {
	cfg *config.EncryptionConfig
}

// New creates a new encryptor.
func New(cfg *config.EncryptionConfig) (*Encryptor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("encryption configuration is required")
	}
	return &Encryptor{cfg: cfg}, nil
}

const saltLen = 16

// Hash derives an Argon2id hash for password and encodes it alongside
// its salt and parameters in the standard
// "$argon2id$v=19$m=...,t=...,p=...$salt$hash" form, so a parameter
// change doesn't break verification of rows hashed under the old one.
func (e *Encryptor) Hash(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("encryption: read salt: %w", err)
	}

	sum := argon2.IDKey([]byte(password), salt, e.cfg.Time, e.cfg.MemoryKB, e.cfg.Threads, e.cfg.KeyLen)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, e.cfg.MemoryKB, e.cfg.Time, e.cfg.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum))
	return encoded, nil
}

// Verify reports whether password matches encoded, re-deriving with
// the parameters embedded in encoded rather than the encryptor's
// current configuration.
func (e *Encryptor) Verify(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, fmt.Errorf("encryption: malformed hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("encryption: malformed version: %w", err)
	}

	var memoryKB, timeCost uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memoryKB, &timeCost, &threads); err != nil {
		return false, fmt.Errorf("encryption: malformed params: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("encryption: decode salt: %w", err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("encryption: decode hash: %w", err)
	}

	got := argon2.IDKey([]byte(password), salt, timeCost, memoryKB, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
