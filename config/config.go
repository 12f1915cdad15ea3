package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/plantdesk/core"
	"gopkg.in/yaml.v3"
)

// Environment variable names for secrets.
const (
	EnvWorkflowKey = "PREPROCESS_API_KEY"
	EnvDatasetKey  = "KNOWLEDGE_API_KEY"
	EnvChatKey     = "API_KEY"
)

// Defaults.
const (
	DefaultBaseURL    = "https://mir-api.52g.ai/v1"
	DefaultUser       = "user-123"
	DefaultAddr       = ":8080"
	DefaultStorage    = "plantdesk-data"
	DefaultMaxSizeMB  = 200
	DefaultPreCheckMB = 50
	DefaultAttempts   = 3
	DefaultDelay      = 5 * time.Second
	DefaultPoolSize   = 1
	DefaultRecent     = 5
	DefaultCacheTTL   = 30 * time.Second
	DefaultLogLevel   = "info"
)

// DefaultSites is the site table used when the file lists none.
var DefaultSites = []SiteConfig{
	{Name: "GS반월열병합발전", DatasetEnv: "DATASET_ID_BANWOL"},
	{Name: "GS구미열병합발전", DatasetEnv: "DATASET_ID_GUMI"},
	{Name: "GS동해전력", DatasetEnv: "DATASET_ID_DONGHAE"},
	{Name: "GS포천그린에너지", DatasetEnv: "DATASET_ID_POCHEON"},
}

// Config is the process configuration.
type Config struct {
	API         APIConfig     `yaml:"api"`
	SiteConfigs []SiteConfig  `yaml:"sites"`
	Server      ServerConfig  `yaml:"server"`
	Storage     StorageConfig `yaml:"storage"`
	Ingest      IngestConfig  `yaml:"ingest"`
	Log         LogConfig     `yaml:"log"`

	// Secrets are read from the environment only.
	Secrets Secrets `yaml:"-"`

	datasets map[string]string
}

// APIConfig locates the upstream API.
type APIConfig struct {
	BaseURL    string `yaml:"base_url"`
	WorkflowID string `yaml:"workflow_id"`
	User       string `yaml:"user"`
}

// SiteConfig names a site and the environment variable holding its dataset id.
type SiteConfig struct {
	Name       string `yaml:"name"`
	DatasetEnv string `yaml:"dataset_env"`
}

// ServerConfig configures the HTTP front-end API.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	RecentLimit  int           `yaml:"recent_limit"`
	DocumentsTTL time.Duration `yaml:"documents_ttl"`
}

// StorageConfig configures the session store.
type StorageConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	MaxSizeMB  int64       `yaml:"max_size_mb"`
	PreCheckMB int64       `yaml:"precheck_mb"`
	PoolSize   int         `yaml:"pool_size"`
	Retry      RetryConfig `yaml:"retry"`
}

// RetryConfig configures the transform retry policy.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Secrets holds the upstream API keys.
type Secrets struct {
	WorkflowKey string
	DatasetKey  string
	ChatKey     string
}

// MaxSize returns the pipeline size ceiling in bytes.
func (c IngestConfig) MaxSize() int64 {
	return c.MaxSizeMB << 20
}

// PreCheckSize returns the upload form's size limit in bytes.
func (c IngestConfig) PreCheckSize() int64 {
	return c.PreCheckMB << 20
}

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

type loadOptions struct {
	envFiles []string
	lookup   LookupFunc
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

// WithEnvFiles sets the .env files to read. Missing files are ignored.
// Default is ".env".
func WithEnvFiles(files ...string) LoadOption {
	return func(o *loadOptions) {
		o.envFiles = files
	}
}

// WithLookup replaces os.LookupEnv. The .env files are still loaded into
// the process environment, but values are read through lookup.
func WithLookup(lookup LookupFunc) LoadOption {
	return func(o *loadOptions) {
		o.lookup = lookup
	}
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// Load reads the YAML file at path, loads .env, and resolves secrets and
// site datasets from the environment. An empty path uses the defaults.
func Load(path string, opts ...LoadOption) (*Config, error) {
	o := loadOptions{
		envFiles: []string{".env"},
		lookup:   os.LookupEnv,
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	cfg.Normalize()

	for _, file := range o.envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", file, err)
		}
	}
	cfg.resolve(o.lookup)
	return cfg, nil
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.User == "" {
		c.API.User = DefaultUser
	}
	if len(c.SiteConfigs) == 0 {
		c.SiteConfigs = append([]SiteConfig(nil), DefaultSites...)
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.RecentLimit <= 0 {
		c.Server.RecentLimit = DefaultRecent
	}
	if c.Server.DocumentsTTL <= 0 {
		c.Server.DocumentsTTL = DefaultCacheTTL
	}
	if c.Storage.Path == "" {
		c.Storage.Path = DefaultStorage
	}
	if c.Ingest.MaxSizeMB <= 0 {
		c.Ingest.MaxSizeMB = DefaultMaxSizeMB
	}
	if c.Ingest.PreCheckMB <= 0 {
		c.Ingest.PreCheckMB = DefaultPreCheckMB
	}
	if c.Ingest.PoolSize <= 0 {
		c.Ingest.PoolSize = DefaultPoolSize
	}
	if c.Ingest.Retry.Attempts <= 0 {
		c.Ingest.Retry.Attempts = DefaultAttempts
	}
	if c.Ingest.Retry.Delay <= 0 {
		c.Ingest.Retry.Delay = DefaultDelay
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

func (c *Config) resolve(lookup LookupFunc) {
	get := func(key string) string {
		value, _ := lookup(key)
		return strings.TrimSpace(value)
	}
	c.Secrets = Secrets{
		WorkflowKey: get(EnvWorkflowKey),
		DatasetKey:  get(EnvDatasetKey),
		ChatKey:     get(EnvChatKey),
	}
	c.datasets = make(map[string]string, len(c.SiteConfigs))
	for _, site := range c.SiteConfigs {
		if site.DatasetEnv == "" {
			continue
		}
		c.datasets[site.Name] = get(site.DatasetEnv)
	}
}

// Validate reports every missing secret and malformed site entry.
func (c *Config) Validate() error {
	var errs []error
	for _, secret := range []struct {
		env   string
		value string
	}{
		{EnvWorkflowKey, c.Secrets.WorkflowKey},
		{EnvDatasetKey, c.Secrets.DatasetKey},
		{EnvChatKey, c.Secrets.ChatKey},
	} {
		if secret.value == "" {
			errs = append(errs, fmt.Errorf("%w: %s", core.ErrMissingSecret, secret.env))
		}
	}

	seen := make(map[string]bool, len(c.SiteConfigs))
	for i, site := range c.SiteConfigs {
		switch {
		case strings.TrimSpace(site.Name) == "":
			errs = append(errs, fmt.Errorf("sites[%d]: name is required", i))
		case site.DatasetEnv == "":
			errs = append(errs, fmt.Errorf("sites[%d] %s: dataset_env is required", i, site.Name))
		case seen[site.Name]:
			errs = append(errs, fmt.Errorf("sites[%d]: duplicate site %s", i, site.Name))
		}
		seen[site.Name] = true
	}
	return errors.Join(errs...)
}

// Sites returns every configured site in file order. Sites whose dataset id
// is missing from the environment have an empty DatasetID.
func (c *Config) Sites() []core.Site {
	sites := make([]core.Site, len(c.SiteConfigs))
	for i, site := range c.SiteConfigs {
		sites[i] = core.Site{Name: site.Name, DatasetID: c.datasets[site.Name]}
	}
	return sites
}

// Site resolves a selectable site by name.
func (c *Config) Site(name string) (core.Site, error) {
	for _, site := range c.Sites() {
		if site.Name == name {
			if err := core.ValidateSite(site); err != nil {
				return core.Site{}, err
			}
			return site, nil
		}
	}
	return core.Site{}, fmt.Errorf("%w: %s", core.ErrUnknownSite, name)
}

// Unconfigured returns the names of sites without a dataset id.
func (c *Config) Unconfigured() []string {
	var names []string
	for _, site := range c.Sites() {
		if site.DatasetID == "" {
			names = append(names, site.Name)
		}
	}
	return names
}
