package httpclient_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sotags/sotags-api/internal/httpclient"
)

func TestHTTPError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		statusCode    int
		url           string
		message       string
		expectedError string
		retryable     bool
	}{
		{
			name:          "not found",
			statusCode:    404,
			url:           "http://example.com",
			message:       "Not Found",
			expectedError: "HTTP 404 for URL http://example.com: Not Found",
		},
		{
			name:          "throttled",
			statusCode:    429,
			url:           "https://api.stackexchange.com/2.3/tags",
			message:       "Too Many Requests",
			expectedError: "HTTP 429 for URL https://api.stackexchange.com/2.3/tags: Too Many Requests",
			retryable:     true,
		},
		{
			name:          "server error with empty message",
			statusCode:    503,
			url:           "http://example.com",
			message:       "",
			expectedError: "HTTP 503 for URL http://example.com: ",
			retryable:     true,
		},
		{
			name:          "bad request",
			statusCode:    400,
			url:           "http://example.com",
			message:       "Bad Request",
			expectedError: "HTTP 400 for URL http://example.com: Bad Request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := httpclient.NewHTTPError(tt.statusCode, tt.url, tt.message)
			require.Error(t, err)
			assert.Equal(t, tt.expectedError, err.Error())

			var httpErr *httpclient.HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tt.statusCode, httpErr.StatusCode)
			assert.Equal(t, tt.retryable, httpErr.IsRetryable())
		})
	}
}
