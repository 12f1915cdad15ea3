package upstream

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the managed API root used by the plants.
	DefaultBaseURL = "https://mir-api.52g.ai/v1"

	// DefaultUser identifies plantdesk requests to the upstream API.
	DefaultUser = "user-123"

	// DefaultWorkflowTimeout bounds one blocking workflow run.
	DefaultWorkflowTimeout = 600 * time.Second

	// DefaultUploadTimeout bounds one direct file upload.
	DefaultUploadTimeout = 30 * time.Second

	// maxErrorBody caps response bodies copied into errors.
	maxErrorBody = 64 << 10
)

// Config holds connection settings for the upstream API.
type Config struct {
	// BaseURL is the API root, e.g. "https://mir-api.52g.ai/v1".
	BaseURL string

	// WorkflowToken authorizes /workflows/run.
	WorkflowToken string

	// DatasetToken authorizes /datasets/... document endpoints.
	DatasetToken string

	// ChatToken authorizes /chat-messages.
	ChatToken string

	// WorkflowID selects the preprocessing workflow.
	WorkflowID string

	// User is sent as the "user" field of every request.
	User string

	WorkflowTimeout time.Duration
	UploadTimeout   time.Duration

	// HTTPClient defaults to a client without an overall timeout, so that
	// chat streams are bounded only by their context.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithBaseURL sets the API root.
func WithBaseURL(url string) ConfigOption {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithTokens sets the workflow, dataset and chat tokens.
func WithTokens(workflow, dataset, chat string) ConfigOption {
	return func(c *Config) {
		c.WorkflowToken = workflow
		c.DatasetToken = dataset
		c.ChatToken = chat
	}
}

// WithWorkflowID sets the preprocessing workflow identifier.
func WithWorkflowID(id string) ConfigOption {
	return func(c *Config) {
		c.WorkflowID = id
	}
}

// WithUser sets the user identifier sent upstream.
func WithUser(user string) ConfigOption {
	return func(c *Config) {
		c.User = user
	}
}

// WithTimeouts overrides the workflow and upload timeouts.
func WithTimeouts(workflow, upload time.Duration) ConfigOption {
	return func(c *Config) {
		c.WorkflowTimeout = workflow
		c.UploadTimeout = upload
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(client *http.Client) ConfigOption {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) ConfigOption {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns a Config pointing at the production API without tokens.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         DefaultBaseURL,
		User:            DefaultUser,
		WorkflowTimeout: DefaultWorkflowTimeout,
		UploadTimeout:   DefaultUploadTimeout,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize trims the trailing slash of BaseURL and fills zero values.
func (c *Config) Normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.User == "" {
		c.User = DefaultUser
	}
	if c.WorkflowTimeout <= 0 {
		c.WorkflowTimeout = DefaultWorkflowTimeout
	}
	if c.UploadTimeout <= 0 {
		c.UploadTimeout = DefaultUploadTimeout
	}
}

// Validate checks that the configuration is complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.BaseURL == "" {
		return errors.New("upstream config: BaseURL is required")
	}
	if c.WorkflowToken == "" {
		return errors.New("upstream config: WorkflowToken is required")
	}
	if c.DatasetToken == "" {
		return errors.New("upstream config: DatasetToken is required")
	}
	if c.ChatToken == "" {
		return errors.New("upstream config: ChatToken is required")
	}
	return nil
}
