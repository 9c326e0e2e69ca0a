// Package config provides configuration loading and management for the tag cache server.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sotags/sotags-api/internal/telemetry"
)

// EnvPrefix is the prefix for environment variables read by the server
const EnvPrefix = "SOTAGS"

const (
	// StorageTypeMemory keeps tags in process memory only
	StorageTypeMemory = "memory"

	// StorageTypeFile keeps tags in a JSON file under the data directory
	StorageTypeFile = "file"

	// StorageTypeSQLite keeps tags in an embedded SQLite database
	StorageTypeSQLite = "sqlite"

	// StorageTypeDatabase keeps tags in PostgreSQL
	StorageTypeDatabase = "database"
)

// Upstream and sync defaults.
const (
	DefaultDataDir          = "./data"
	DefaultUpstreamBaseURL  = "https://api.stackexchange.com/2.3/"
	DefaultUpstreamSite     = "stackoverflow"
	DefaultUpstreamPageSize = 100
	DefaultMaxTags          = 1001
	DefaultMaxPages         = 50
	DefaultUpstreamTimeout  = 10 * time.Second
	DefaultSyncTimeout      = 2 * time.Minute
	DefaultCacheTTL         = time.Minute
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML or TOML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure.
// TOML files use the same keys; BurntSushi/toml matches them to field names
// case-insensitively.
type Config struct {
	// DataDir is where file and SQLite storage and the sync status live.
	// Defaults to "./data"
	DataDir string `yaml:"dataDir,omitempty"`

	Upstream  UpstreamConfig    `yaml:"upstream"`
	Sync      SyncConfig        `yaml:"sync"`
	Storage   StorageConfig     `yaml:"storage"`
	Database  *DatabaseConfig   `yaml:"database,omitempty"`
	Cache     *CacheConfig      `yaml:"cache,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// UpstreamConfig defines how the StackExchange API is queried
type UpstreamConfig struct {
	// BaseURL is the API root, e.g. https://api.stackexchange.com/2.3/
	BaseURL string `yaml:"baseURL,omitempty" validate:"omitempty,url"`

	// Site is the StackExchange site to read tags from
	Site string `yaml:"site,omitempty"`

	// PageSize is the number of tags requested per page (max 100)
	PageSize int `yaml:"pageSize,omitempty" validate:"gte=0,lte=100"`

	// MaxTags is both the cache adequacy threshold and the fetch cap
	MaxTags int `yaml:"maxTags,omitempty" validate:"gte=0"`

	// MaxPages bounds the number of pages requested in one cycle
	MaxPages int `yaml:"maxPages,omitempty" validate:"gte=0"`

	// Timeout is the per-request HTTP timeout (e.g., "10s")
	Timeout string `yaml:"timeout,omitempty" validate:"omitempty,duration"`

	// APIKeyFile is the path to a file holding a StackExchange app key.
	// The SOTAGS_UPSTREAM_API_KEY environment variable is used when unset.
	APIKeyFile string `yaml:"apiKeyFile,omitempty"`
}

// SyncConfig defines fetch cycle behavior
type SyncConfig struct {
	// Timeout bounds a whole fetch-merge-persist cycle (e.g., "2m")
	Timeout string `yaml:"timeout,omitempty" validate:"omitempty,duration"`

	// RefreshOnStartup fills an under-populated cache before serving
	RefreshOnStartup bool `yaml:"refreshOnStartup,omitempty"`

	// PersistStatus writes the sync status to <dataDir>/status.json
	PersistStatus bool `yaml:"persistStatus,omitempty"`

	// RefreshInterval schedules a full refresh in the background (e.g., "24h").
	// Empty disables scheduled refreshes.
	RefreshInterval string `yaml:"refreshInterval,omitempty" validate:"omitempty,duration"`
}

// StorageConfig selects the tag store backend
type StorageConfig struct {
	// Type is one of memory, file, sqlite or database. Defaults to sqlite
	Type string `yaml:"type,omitempty" validate:"omitempty,oneof=memory file sqlite database"`

	File   *FileStorageConfig `yaml:"file,omitempty"`
	SQLite *SQLiteConfig      `yaml:"sqlite,omitempty"`
}

// FileStorageConfig defines file storage settings
type FileStorageConfig struct {
	// Path of the JSON file. Defaults to <dataDir>/tags.json
	Path string `yaml:"path,omitempty"`
}

// SQLiteConfig defines SQLite storage settings
type SQLiteConfig struct {
	// Path of the database file. Defaults to <dataDir>/tags.db
	Path string `yaml:"path,omitempty"`
}

// CacheConfig defines the optional read-through cache in front of the store
type CacheConfig struct {
	Redis *RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	// Address is host:port of the Redis server
	Address string `yaml:"address" validate:"required,hostname_port"`

	// PasswordFile is the path to a file containing the Redis password.
	// The SOTAGS_REDIS_PASSWORD environment variable is used when unset.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// DB is the Redis logical database
	DB int `yaml:"db,omitempty" validate:"gte=0"`

	// PoolSize is the maximum number of socket connections
	PoolSize int `yaml:"poolSize,omitempty" validate:"gte=0"`

	// TTL is how long the cached collection lives (e.g., "30s"). Defaults to 1m.
	// Replicas sharing a Redis must also share the backing store (storage.type
	// database) and the KeyPrefix. Writes refresh the shared key, but a read
	// racing a refresh elsewhere can serve the old collection until the TTL ends.
	TTL string `yaml:"ttl,omitempty" validate:"omitempty,duration"`

	// KeyPrefix namespaces the cache keys
	KeyPrefix string `yaml:"keyPrefix,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host" validate:"required"`

	// Port is the database server port
	Port int `yaml:"port" validate:"required,gt=0,lte=65535"`

	// User is the database username
	User string `yaml:"user" validate:"required"`

	// MigrationUser is the user that owns the schema. Defaults to User
	MigrationUser string `yaml:"migrationUser,omitempty"`

	// PasswordFile is the path to a file containing the database password
	// This is the recommended approach for production deployments
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database" validate:"required"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty" validate:"gte=0"`

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty" validate:"gte=0"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty" validate:"omitempty,duration"`

	// DynamicAuth replaces the static password with a generated token
	DynamicAuth *DynamicAuthConfig `yaml:"dynamicAuth,omitempty"`
}

// DynamicAuthConfig defines dynamic database authentication
type DynamicAuthConfig struct {
	AWSRDSIAM *AWSRDSIAMConfig `yaml:"awsRdsIam,omitempty"`
}

// AWSRDSIAMConfig defines AWS RDS IAM authentication
type AWSRDSIAMConfig struct {
	// Region is the AWS region, or "detect" to read it from IMDS
	Region string `yaml:"region" validate:"required"`
}

// LoadConfig loads and parses configuration from a YAML or TOML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(loaderCfg.path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := newValidator().Struct(c); err != nil {
		return formatValidationError(err)
	}

	var errs []error

	if c.GetStorageType() == StorageTypeDatabase && c.Database == nil {
		errs = append(errs, fmt.Errorf("database configuration is required for storage type %q", StorageTypeDatabase))
	}

	if c.Upstream.BaseURL != "" && !strings.HasSuffix(c.Upstream.BaseURL, "/") {
		errs = append(errs, fmt.Errorf("upstream.baseURL must end with '/'"))
	}

	if c.Upstream.MaxTags > 0 && c.Upstream.PageSize > 0 && c.Upstream.MaxTags < c.Upstream.PageSize {
		errs = append(errs, fmt.Errorf("upstream.maxTags (%d) must not be smaller than upstream.pageSize (%d)",
			c.Upstream.MaxTags, c.Upstream.PageSize))
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

// newValidator returns a struct validator that understands Go duration strings
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})
	return v
}

// formatValidationError turns validator field errors into one readable error
func formatValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed '%s=%s' (value: %v)", field, fe.Tag(), fe.Param(), fe.Value()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed '%s' (value: %v)", field, fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// GetDataDir returns the data directory, using the default if not specified
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return DefaultDataDir
	}
	return c.DataDir
}

// GetStorageType returns the storage type, defaulting to sqlite
func (c *Config) GetStorageType() string {
	if c.Storage.Type == "" {
		return StorageTypeSQLite
	}
	return c.Storage.Type
}

// GetFileStoragePath returns the JSON file used by file storage
func (c *Config) GetFileStoragePath() string {
	if c.Storage.File != nil && c.Storage.File.Path != "" {
		return c.Storage.File.Path
	}
	return filepath.Join(c.GetDataDir(), "tags.json")
}

// GetSQLitePath returns the database file used by SQLite storage
func (c *Config) GetSQLitePath() string {
	if c.Storage.SQLite != nil && c.Storage.SQLite.Path != "" {
		return c.Storage.SQLite.Path
	}
	return filepath.Join(c.GetDataDir(), "tags.db")
}

// GetStatusFilePath returns where the sync status is persisted
func (c *Config) GetStatusFilePath() string {
	return filepath.Join(c.GetDataDir(), "status.json")
}

// GetSyncTimeout returns the cycle timeout, using the default if unset or invalid
func (c *Config) GetSyncTimeout() time.Duration {
	return parseDurationOr(c.Sync.Timeout, DefaultSyncTimeout)
}

// GetRefreshInterval returns the scheduled refresh interval, 0 when disabled
func (c *Config) GetRefreshInterval() time.Duration {
	return parseDurationOr(c.Sync.RefreshInterval, 0)
}

// GetBaseURL returns the upstream base URL
func (u *UpstreamConfig) GetBaseURL() string {
	if u.BaseURL == "" {
		return DefaultUpstreamBaseURL
	}
	return u.BaseURL
}

// GetSite returns the upstream site
func (u *UpstreamConfig) GetSite() string {
	if u.Site == "" {
		return DefaultUpstreamSite
	}
	return u.Site
}

// GetPageSize returns the upstream page size
func (u *UpstreamConfig) GetPageSize() int {
	if u.PageSize <= 0 {
		return DefaultUpstreamPageSize
	}
	return u.PageSize
}

// GetMaxTags returns the adequacy threshold and fetch cap
func (u *UpstreamConfig) GetMaxTags() int {
	if u.MaxTags <= 0 {
		return DefaultMaxTags
	}
	return u.MaxTags
}

// GetMaxPages returns the page bound of one cycle
func (u *UpstreamConfig) GetMaxPages() int {
	if u.MaxPages <= 0 {
		return DefaultMaxPages
	}
	return u.MaxPages
}

// GetTimeout returns the per-request timeout
func (u *UpstreamConfig) GetTimeout() time.Duration {
	return parseDurationOr(u.Timeout, DefaultUpstreamTimeout)
}

// GetAPIKey returns the StackExchange app key, or "" when none is configured
func (u *UpstreamConfig) GetAPIKey() (string, error) {
	if u.APIKeyFile != "" {
		data, err := os.ReadFile(filepath.Clean(u.APIKeyFile))
		if err != nil {
			return "", fmt.Errorf("failed to read API key from file %s: %w", u.APIKeyFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return os.Getenv(EnvPrefix + "_UPSTREAM_API_KEY"), nil
}

// GetPassword returns the Redis password from PasswordFile or SOTAGS_REDIS_PASSWORD
func (r *RedisConfig) GetPassword() (string, error) {
	if r.PasswordFile != "" {
		data, err := os.ReadFile(filepath.Clean(r.PasswordFile))
		if err != nil {
			return "", fmt.Errorf("failed to read redis password from file %s: %w", r.PasswordFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return os.Getenv(EnvPrefix + "_REDIS_PASSWORD"), nil
}

// GetTTL returns the cache TTL
func (r *RedisConfig) GetTTL() time.Duration {
	return parseDurationOr(r.TTL, DefaultCacheTTL)
}

// GetKeyPrefix returns the cache key prefix
func (r *RedisConfig) GetKeyPrefix() string {
	if r.KeyPrefix == "" {
		return "sotags:"
	}
	return r.KeyPrefix
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from SOTAGS_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(EnvPrefix + "_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s_DATABASE_PASSWORD environment variable",
		EnvPrefix,
	)
}

// GetMigrationUser returns the user that runs schema migrations
func (d *DatabaseConfig) GetMigrationUser() string {
	if d.MigrationUser == "" {
		return d.User
	}
	return d.MigrationUser
}

// GetConnMaxLifetime returns the parsed connection lifetime, or zero when unset
func (d *DatabaseConfig) GetConnMaxLifetime() time.Duration {
	return parseDurationOr(d.ConnMaxLifetime, 0)
}

// GetConnectionString builds a PostgreSQL connection string for the application user.
// With dynamic auth configured the password is left out; it is supplied per connection.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	if d.DynamicAuth != nil {
		return d.BuildConnectionStringWithAuth(d.User, ""), nil
	}

	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	return d.BuildConnectionStringWithAuth(d.User, password), nil
}

// BuildConnectionStringWithAuth builds a PostgreSQL URL for user. An empty
// password is omitted so libpq fallbacks (pgpass) still apply.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) BuildConnectionStringWithAuth(user, password string) string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	userInfo := url.User(user)
	if password != "" {
		userInfo = url.UserPassword(user, password)
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     userInfo,
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Database,
		RawQuery: "sslmode=" + sslMode,
	}
	return u.String()
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
