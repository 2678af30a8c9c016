package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{"recorta espacios", "  hello world ", "hello world", nil},
		{"vacía", "", "", ErrEmptyQuery},
		{"sólo espacios", " \t ", "", ErrEmptyQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeQuery(tt.in)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTermsAndCacheKey(t *testing.T) {
	assert.Equal(t, []string{"hello", "world"}, Terms("Hello   WORLD"))
	assert.Equal(t, []string{"hello", "world"}, Terms("hello! world,"))
	assert.Equal(t, "search:hello world", SearchCacheKey("hello world"))
}
