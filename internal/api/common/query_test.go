package common

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		target   string
		expected string
	}{
		{name: "absent uses fallback", target: "/tags", expected: "name"},
		{name: "present", target: "/tags?sortBy=count", expected: "count"},
		{name: "present but empty", target: "/tags?sortBy=", expected: ""},
		{name: "encoded spaces kept", target: "/tags?sortBy=%20name%20", expected: " name "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest("GET", tt.target, nil)
			assert.Equal(t, tt.expected, QueryString(req, "sortBy", "name"))
		})
	}
}

func TestQueryInt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		target   string
		expected int
		wantErr  bool
	}{
		{name: "absent uses fallback", target: "/tags", expected: 100},
		{name: "positive", target: "/tags?pageSize=25", expected: 25},
		{name: "negative is parsed", target: "/tags?pageSize=-1", expected: -1},
		{name: "not a number", target: "/tags?pageSize=ten", wantErr: true},
		{name: "empty", target: "/tags?pageSize=", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest("GET", tt.target, nil)
			got, err := QueryInt(req, "pageSize", 100)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "pageSize")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestWriteErrorResponse(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	WriteErrorResponse(rr, "boom", 418)

	assert.Equal(t, 418, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"boom"}`, rr.Body.String())
}
