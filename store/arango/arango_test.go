package arango_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vulnwatch/kevsync/store/arango"
)

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{
			name: "cve identifier passes through",
			key:  "CVE-2024-40711",
			want: "CVE-2024-40711",
		},
		{
			name: "spaces and slashes are encoded",
			key:  "VENDOR ADV/2024",
			want: "VENDOR%20ADV%2F2024",
		},
		{
			name: "brackets are encoded, parens are key-safe",
			key:  "ADV[2024](1)",
			want: "ADV%5B2024%5D(1)",
		},
		{
			name: "percent is always encoded",
			key:  "A%20B",
			want: "A%2520B",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, arango.SanitizeKey(tt.key))
		})
	}
}

func TestSanitizeKeyCollisionFree(t *testing.T) {
	// identifiers differing only in encoded characters keep distinct keys
	pairs := [][2]string{
		{"A B", "A/B"},
		{"A B", "A-B"},
		{"ADV[1]", "ADV 1"},
		{"X%2FY", "X/Y"},
	}
	for _, p := range pairs {
		assert.NotEqual(t, arango.SanitizeKey(p[0]), arango.SanitizeKey(p[1]),
			"%q and %q must not share a key", p[0], p[1])
	}
}
