package fetch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulnwatch/kevsync/fetch"
)

func TestBytes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed.json":
			_, _ = w.Write([]byte(`{"count": 0, "vulnerabilities": []}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	tests := []struct {
		name    string
		url     string
		wantErr string
	}{
		{
			name: "happy path",
			url:  ts.URL + "/feed.json",
		},
		{
			name:    "sad path, not found",
			url:     ts.URL + "/missing.json",
			wantErr: "status code: 404",
		},
		{
			name:    "sad path, relative URL",
			url:     "/feed.json",
			wantErr: "URL must be absolute",
		},
		{
			name:    "sad path, disallowed scheme",
			url:     "ftp://example.com/feed.json",
			wantErr: "invalid URL scheme: ftp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := fetch.Bytes(context.Background(), tt.url, 0)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)

				var fetchErr *fetch.Error
				assert.True(t, errors.As(err, &fetchErr))
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, `{"count": 0, "vulnerabilities": []}`, string(body))
		})
	}
}

func TestBytesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetch.Bytes(ctx, "https://example.com/feed.json", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
