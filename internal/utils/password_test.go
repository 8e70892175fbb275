package utils

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pasal-api/internal/apperr"
)

// cheap parameters keep the suite fast; the format is identical.
func testHasher() *Hasher {
	return NewHasher(Argon2Params{Memory: 1024, Time: 1, Threads: 1})
}

func TestHash_RoundTrip(t *testing.T) {
	h := testHasher()
	ctx := context.Background()

	encoded, err := h.Hash(ctx, "correct-horse-battery-staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$"))

	ok, err := h.Verify(ctx, encoded, "correct-horse-battery-staple")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify(ctx, encoded, "wrong-password")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHash_DistinctSaltsSameInput(t *testing.T) {
	h := testHasher()
	ctx := context.Background()

	for _, secret := range []string{"a", "secret", "eyJhbGciOiJIUzI1NiJ9.payload.sig"} {
		first, err := h.Hash(ctx, secret)
		require.NoError(t, err)
		second, err := h.Hash(ctx, secret)
		require.NoError(t, err)

		assert.NotEqual(t, first, second, "salt must differ for %q", secret)
		for _, enc := range []string{first, second} {
			ok, err := h.Verify(ctx, enc, secret)
			require.NoError(t, err)
			assert.True(t, ok)
		}
	}
}

func TestHash_EmptySecret(t *testing.T) {
	_, err := testHasher().Hash(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestVerify_MalformedHash(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"plaintext", "password"},
		{"wrong algorithm", "$bcrypt$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA"},
		{"too few parts", "$argon2id$v=19$m=65536,t=3,p=1"},
		{"bad version", "$argon2id$v=16$m=65536,t=3,p=1$c2FsdA$aGFzaA"},
		{"bad salt", "$argon2id$v=19$m=65536,t=3,p=1$!!!$aGFzaA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testHasher().Verify(context.Background(), tt.hash, "password")
			assert.ErrorIs(t, err, ErrMalformedHash)
		})
	}
}

func TestHash_CancelledContextIsTransient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testHasher().Hash(ctx, "secret")
	require.Error(t, err)
	assert.Equal(t, apperr.KindTransient, apperr.KindOf(err))

	encoded, err := testHasher().Hash(context.Background(), "secret")
	require.NoError(t, err)
	_, err = testHasher().Verify(ctx, encoded, "secret")
	assert.Equal(t, apperr.KindTransient, apperr.KindOf(err))
}

func TestNewHasher_FillsDefaults(t *testing.T) {
	h := NewHasher(Argon2Params{})
	assert.Equal(t, DefaultArgon2, h.Params)
}
