package helpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
)

// UpstreamTag is one tag served by the fake upstream
type UpstreamTag struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// MockUpstream is a fake StackExchange /tags endpoint
type MockUpstream struct {
	*httptest.Server

	mu       sync.Mutex
	tags     []UpstreamTag
	failWith int
	requests atomic.Int32
}

// NewMockUpstream serves tags in the order given, paged by the page and pagesize parameters
func NewMockUpstream(tags []UpstreamTag) *MockUpstream {
	m := &MockUpstream{tags: tags}
	mux := http.NewServeMux()
	mux.HandleFunc("/2.3/tags", m.serveTags)
	m.Server = httptest.NewServer(mux)
	return m
}

// BaseURL returns the API root the tag source should be configured with
func (m *MockUpstream) BaseURL() string {
	return m.URL + "/2.3/"
}

// Requests returns how many pages have been requested so far
func (m *MockUpstream) Requests() int {
	return int(m.requests.Load())
}

// SetTags replaces the served tags
func (m *MockUpstream) SetTags(tags []UpstreamTag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags = tags
}

// FailWith makes every following request answer with status. Zero restores normal service.
func (m *MockUpstream) FailWith(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = status
}

func (m *MockUpstream) serveTags(w http.ResponseWriter, r *http.Request) {
	m.requests.Add(1)

	m.mu.Lock()
	failWith := m.failWith
	all := m.tags
	m.mu.Unlock()

	if failWith != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(failWith)
		_, _ = fmt.Fprintf(w, `{"error_id":%d,"error_name":"throttle_violation","error_message":"too many requests"}`, failWith)
		return
	}

	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		http.Error(w, "bad page", http.StatusBadRequest)
		return
	}
	size, err := strconv.Atoi(r.URL.Query().Get("pagesize"))
	if err != nil || size < 1 {
		http.Error(w, "bad pagesize", http.StatusBadRequest)
		return
	}

	start := min((page-1)*size, len(all))
	end := min(start+size, len(all))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"items":           all[start:end],
		"has_more":        end < len(all),
		"quota_remaining": 10000 - int(m.requests.Load()),
	})
}

// GenerateTags returns n tags named tag-000.. with strictly decreasing counts
func GenerateTags(n int) []UpstreamTag {
	out := make([]UpstreamTag, 0, n)
	for i := range n {
		out = append(out, UpstreamTag{
			Name:  fmt.Sprintf("tag-%03d", i),
			Count: int64((n - i) * 10),
		})
	}
	return out
}
