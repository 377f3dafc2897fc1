package proxy

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowListAllowed(t *testing.T) {
	t.Parallel()

	allow := AllowList{
		Primary:  []string{"animeworld.ac"},
		Suffixes: []string{".sweetpixel.org", "CDN.Example.com"},
	}

	tests := []struct {
		raw  string
		want bool
	}{
		{"https://animeworld.ac/play/x", true},
		{"https://www.animeworld.ac/play/x", true},
		{"https://srv18.sweetpixel.org/dl/x.mp4", true},
		{"https://cdn.example.com/v.m3u8", true},
		{"https://evilanimeworld.ac/x", false},
		{"https://animeworld.ac.evil.com/x", false},
		{"ftp://animeworld.ac/x", false},
		{"https://example.org/x", false},
		{"/relative/path", false},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.raw)
		if assert.NoError(t, err) {
			assert.Equal(t, tt.want, allow.Allowed(u), tt.raw)
		}
	}
	assert.False(t, allow.Allowed(nil))
}
