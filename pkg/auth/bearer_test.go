package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		header    string
		wantToken string
		wantErr   error
	}{
		{"valid", "Bearer abc123", "abc123", nil},
		{"missing_header", "", "", ErrAuthHeaderMissing},
		{"wrong_scheme", "Basic abc123", "", ErrInvalidAuthHeaderFormat},
		{"empty_token", "Bearer ", "", ErrEmptyBearerToken},
		{"whitespace_only_token", "Bearer   ", "", ErrEmptyBearerToken},
		{"case_sensitive_scheme", "bearer abc123", "", ErrInvalidAuthHeaderFormat},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			token, err := ExtractBearerToken(r)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}
