package utils

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/iliyamo/pasal-api/internal/apperr"
)

// Argon2Params tunes the Argon2id cost.  Memory is in KiB.
type Argon2Params struct {
	Memory  uint32
	Time    uint32
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

// DefaultArgon2 follows the OWASP Argon2id recommendation (64 MiB, t=3, p=1).
var DefaultArgon2 = Argon2Params{Memory: 64 * 1024, Time: 3, Threads: 1, KeyLen: 32, SaltLen: 16}

// ErrEmptySecret is returned when asked to hash an empty string.
var ErrEmptySecret = errors.New("empty secret")

// ErrMalformedHash is returned when a stored hash is not an Argon2id PHC string.
var ErrMalformedHash = errors.New("malformed argon2id hash")

// Hasher hashes passwords and refresh tokens with the same salted Argon2id
// primitive.  The output embeds its salt and parameters, so two calls on the
// same input never produce the same string and Verify needs no extra state.
type Hasher struct {
	Params Argon2Params
}

// NewHasher returns a Hasher using p, filling zero fields from DefaultArgon2.
func NewHasher(p Argon2Params) *Hasher {
	if p.Memory == 0 {
		p.Memory = DefaultArgon2.Memory
	}
	if p.Time == 0 {
		p.Time = DefaultArgon2.Time
	}
	if p.Threads == 0 {
		p.Threads = DefaultArgon2.Threads
	}
	if p.KeyLen == 0 {
		p.KeyLen = DefaultArgon2.KeyLen
	}
	if p.SaltLen == 0 {
		p.SaltLen = DefaultArgon2.SaltLen
	}
	return &Hasher{Params: p}
}

// Hash returns a PHC string: $argon2id$v=19$m=65536,t=3,p=1$<salt>$<key>.
// If ctx ends before the key is derived the result is a Transient error.
func (h *Hasher) Hash(ctx context.Context, secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	salt := make([]byte, h.Params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	p := h.Params
	key, err := derive(ctx, func() []byte {
		return argon2.IDKey([]byte(secret), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether candidate matches encoded.  The key comparison is
// constant-time.  A malformed encoded value is an error, not a mismatch.
func (h *Hasher) Verify(ctx context.Context, encoded, candidate string) (bool, error) {
	salt, want, p, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}
	got, err := derive(ctx, func() []byte {
		return argon2.IDKey([]byte(candidate), salt, p.Time, p.Memory, p.Threads, uint32(len(want))) //nolint:gosec // key length fits uint32
	})
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

// derive runs the CPU-bound key derivation off the calling goroutine so the
// caller can give up when ctx ends.  The derivation itself always finishes.
func derive(ctx context.Context, fn func() []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Transient(err)
	}
	done := make(chan []byte, 1)
	go func() { done <- fn() }()
	select {
	case key := <-done:
		return key, nil
	case <-ctx.Done():
		return nil, apperr.Transient(ctx.Err())
	}
}

func decodePHC(encoded string) (salt, key []byte, p Argon2Params, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, nil, p, ErrMalformedHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, nil, p, ErrMalformedHash
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return nil, nil, p, ErrMalformedHash
	}
	if p.Memory == 0 || p.Time == 0 || p.Threads == 0 {
		return nil, nil, p, ErrMalformedHash
	}
	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, nil, p, ErrMalformedHash
	}
	if key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(key) == 0 {
		return nil, nil, p, ErrMalformedHash
	}
	return salt, key, p, nil
}
