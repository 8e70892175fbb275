package tenant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	r := NewResolver("pasal.com", ".local", nil)

	tests := []struct {
		host string
		want string
		ok   bool
	}{
		{"shop.pasal.com", "shop", true},
		{"pasal.com", "", false},
		{"www.pasal.com", "", false},
		{"localhost:3000", "", false},
		{"shop.pasal.local", "shop", true},

		{"SHOP.Pasal.com", "shop", true},
		{"shop.pasal.com:8443", "shop", true},
		{"shop.pasal.com.", "shop", true},
		{"deep.shop.pasal.com", "deep", true},
		{"api.pasal.com", "", false},
		{"cdn.pasal.com", "", false},
		{"pasal.local", "", false},
		{"localhost", "", false},
		{"127.0.0.1:7000", "", false},
		{"10.0.0.12", "", false},
		{"[::1]:3000", "", false},
		{"::1", "", false},
		{".pasal.com", "", false},
		{"", "", false},
		{"   ", "", false},
		{":::", "", false},
		{"com", "", false},

		{"shop.elsewhere.io", "", false},
		{"shop.notpasal.com", "", false},
		{"shop.pasal.com.evil.io", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			got, ok := r.Resolve(tt.host)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_CustomDevSuffixAndReserved(t *testing.T) {
	r := NewResolver("", "test", []string{"shop"})

	got, ok := r.Resolve("acme.pasal.test")
	assert.True(t, ok)
	assert.Equal(t, "acme", got)

	_, ok = r.Resolve("shop.pasal.com")
	assert.False(t, ok)

	got, ok = r.Resolve("www.pasal.com")
	assert.True(t, ok, "www is only reserved by the default set")
	assert.Equal(t, "www", got)
}

func TestResolve_NeverPanics(t *testing.T) {
	r := NewResolver("pasal.com", "", nil)
	inputs := []string{
		strings.Repeat(".", 300),
		strings.Repeat("a.", 200),
		"[", "]", "[::1", "a:b:c", "\x00.\x00.\x00", "ä.ö.ü",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { r.Resolve(in) })
	}
}

func TestResolve_BaseDomain(t *testing.T) {
	r := NewResolver(" .Example.TEST. ", "", nil)

	got, ok := r.Resolve("acme.example.test")
	assert.True(t, ok)
	assert.Equal(t, "acme", got)

	_, ok = r.Resolve("acme.pasal.com")
	assert.False(t, ok, "hosts outside the base domain carry no tenant")
	_, ok = r.Resolve("example.test")
	assert.False(t, ok)

	got, ok = r.Resolve("acme.anything.local")
	assert.True(t, ok, "the dev suffix is honoured regardless of base domain")
	assert.Equal(t, "acme", got)

	got, ok = NewResolver("", "", nil).Resolve("acme.elsewhere.io")
	assert.True(t, ok, "an empty base domain accepts any domain")
	assert.Equal(t, "acme", got)
}
