// internal/utils/domain_test.go
package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare host", "shop.example.com", "shop.example.com"},
		{"upper case", "Shop.Example.COM", "shop.example.com"},
		{"https url with path", "https://shop.example.com/checkout?x=1", "shop.example.com"},
		{"port dropped", "shop.example.com:8443", "shop.example.com"},
		{"url with port", "http://shop.example.com:8080/", "shop.example.com"},
		{"trailing dot", "shop.example.com.", "shop.example.com"},
		{"path without scheme", "shop.example.com/wp-admin", "shop.example.com"},
		{"whitespace", "  shop.example.com  ", "shop.example.com"},
		{"userinfo dropped", "https://admin:pw@shop.example.com/", "shop.example.com"},
		{"bracketed ipv6 with port", "[::1]:8080", "::1"},
		{"ipv6 url", "https://[2001:db8::1]:443/x", "2001:db8::1"},
		{"space in url host", "http://bad host.com", ""},
		{"bad escape in url host", "https://shop.example.com%zz", ""},
		{"space in bare host", "bad host.com", ""},
		{"scheme only", "https://", ""},
		{"path only url", "file:///etc/passwd", ""},
		{"empty", "", ""},
		{"only spaces", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDomain(tt.raw))
		})
	}
}
