package bedrock

import (
	"log/slog"
	"maps"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
)

const DefaultRegion = "us-east-1"

type ClientConfig struct {
	region  string
	baseURL string

	credentials aws.CredentialsProvider

	client *http.Client

	logger *slog.Logger
}

type Option func(*ClientConfig)

// WithRegion overrides DefaultRegion. Empty values are ignored.
func WithRegion(region string) Option {
	return func(c *ClientConfig) {
		if region != "" {
			c.region = region
		}
	}
}

func WithBaseURL(url string) Option {
	return func(c *ClientConfig) {
		c.baseURL = url
	}
}

// WithCredentials pins the credentials provider. Without it the default AWS
// credential chain is used.
func WithCredentials(provider aws.CredentialsProvider) Option {
	return func(c *ClientConfig) {
		c.credentials = provider
	}
}

func WithClient(client *http.Client) Option {
	return func(c *ClientConfig) {
		c.client = client
	}
}

// WithLogger sets the logger handed to every model of the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ClientConfig) {
		c.logger = logger
	}
}

type Config struct {
	model string

	fields map[string]any

	logger *slog.Logger
}

type ModelOption func(*Config)

// WithAdditionalModelRequestFields attaches provider specific fields to every
// request made with the model.
func WithAdditionalModelRequestFields(fields map[string]any) ModelOption {
	return func(c *Config) {
		c.fields = maps.Clone(fields)
	}
}

func WithModelLogger(logger *slog.Logger) ModelOption {
	return func(c *Config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func isClaudeModel(model string) bool {
	model = strings.ToLower(model)

	return strings.Contains(model, "anthropic") || strings.Contains(model, "claude")
}
