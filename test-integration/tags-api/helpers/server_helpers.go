package helpers

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/onsi/gomega"

	tagapp "github.com/sotags/sotags-api/internal/app"
	"github.com/sotags/sotags-api/internal/config"
)

// Tag mirrors the listing payload
type Tag struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Count        int64   `json:"count"`
	SharePercent float64 `json:"sharePercent"`
}

// ServerTestHelper manages the tag API server lifecycle for testing
type ServerTestHelper struct {
	ctx        context.Context
	configPath string
	baseURL    string
	address    string
	httpClient *http.Client
	app        *tagapp.TagApp
}

// NewServerTestHelper creates a helper listening on a free local port
func NewServerTestHelper(ctx context.Context, configPath string) (*ServerTestHelper, error) {
	port, err := freePort()
	if err != nil {
		return nil, err
	}
	return &ServerTestHelper{
		ctx:        ctx,
		configPath: configPath,
		address:    fmt.Sprintf("127.0.0.1:%d", port),
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", port),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to find a free port: %w", err)
	}
	defer func() {
		_ = l.Close()
	}()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// StartServer starts the tag API server programmatically
func (s *ServerTestHelper) StartServer() error {
	cfg, err := config.LoadConfig(config.WithConfigPath(s.configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app, err := tagapp.NewTagApp(s.ctx,
		tagapp.WithConfig(cfg),
		tagapp.WithAddress(s.address),
	)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}
	s.app = app

	go func() {
		if err := app.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Server start failed: %v\n", err)
		}
	}()

	return nil
}

// StopServer gracefully stops the tag API server
func (s *ServerTestHelper) StopServer() error {
	if s.app != nil {
		return s.app.Stop(5 * time.Second)
	}
	return nil
}

// WaitForServerReady waits for the server to be ready to accept requests
func (s *ServerTestHelper) WaitForServerReady(timeout time.Duration) {
	gomega.Eventually(func() error {
		resp, err := s.httpClient.Get(s.baseURL + "/readiness")
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		return nil
	}, timeout, 100*time.Millisecond).Should(gomega.Succeed(), "Server should be ready")
}

// GetTags makes a GET request to /tags with the given raw query
func (s *ServerTestHelper) GetTags(query string) (*http.Response, error) {
	target := s.baseURL + "/tags"
	if query != "" {
		target += "?" + query
	}
	return s.httpClient.Get(target)
}

// ListTags fetches and decodes one page of tags, expecting success
func (s *ServerTestHelper) ListTags(query string) ([]Tag, string) {
	resp, err := s.GetTags(query)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()
	gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusOK))

	var out []Tag
	gomega.Expect(json.NewDecoder(resp.Body).Decode(&out)).To(gomega.Succeed())
	return out, resp.Header.Get("X-Total-Count")
}

// RefreshTags makes a POST request to /tags/refresh
func (s *ServerTestHelper) RefreshTags() (*http.Response, error) {
	return s.httpClient.Post(s.baseURL+"/tags/refresh", "application/json", nil)
}

// GetStatus makes a GET request to /tags/status and decodes the body
func (s *ServerTestHelper) GetStatus() map[string]any {
	resp, err := s.httpClient.Get(s.baseURL + "/tags/status")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()
	gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusOK))

	var out map[string]any
	gomega.Expect(json.NewDecoder(resp.Body).Decode(&out)).To(gomega.Succeed())
	return out
}

// GetBaseURL returns the base URL of the server
func (s *ServerTestHelper) GetBaseURL() string {
	return s.baseURL
}

// ConfigOptions holds the knobs the integration configs vary
type ConfigOptions struct {
	StorageType      string
	MaxTags          int
	PageSize         int
	RefreshOnStartup bool
	RefreshInterval  string
}

// WriteConfigYAML writes a YAML configuration file for testing
func WriteConfigYAML(dir, upstreamURL string, opts ConfigOptions) string {
	if opts.StorageType == "" {
		opts.StorageType = "memory"
	}
	if opts.PageSize == 0 {
		opts.PageSize = 100
	}

	content := fmt.Sprintf(`dataDir: %s

upstream:
  baseURL: %s
  pageSize: %d
`, dir, upstreamURL, opts.PageSize)
	if opts.MaxTags > 0 {
		content += fmt.Sprintf("  maxTags: %d\n", opts.MaxTags)
	}

	content += fmt.Sprintf(`
sync:
  refreshOnStartup: %t
  persistStatus: true
`, opts.RefreshOnStartup)
	if opts.RefreshInterval != "" {
		content += fmt.Sprintf("  refreshInterval: %s\n", opts.RefreshInterval)
	}

	content += fmt.Sprintf(`
storage:
  type: %s
`, opts.StorageType)

	path := filepath.Join(dir, "config.yaml")
	gomega.Expect(os.WriteFile(path, []byte(content), 0600)).To(gomega.Succeed())
	return path
}
