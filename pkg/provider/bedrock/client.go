package bedrock

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// Runtime is the subset of the Bedrock runtime API used by the completer.
type Runtime interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

var _ Runtime = (*bedrockruntime.Client)(nil)

type Client struct {
	*ClientConfig

	client *bedrockruntime.Client
}

// NewClient builds a Bedrock runtime client. Credentials are not resolved and
// no request is sent until a model is used.
func NewClient(ctx context.Context, options ...Option) (*Client, error) {
	cfg := &ClientConfig{
		region: DefaultRegion,
	}

	for _, option := range options {
		option(cfg)
	}

	loadOptions := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.region),
	}

	if cfg.credentials != nil {
		loadOptions = append(loadOptions, config.WithCredentialsProvider(cfg.credentials))
	}

	if cfg.client != nil {
		loadOptions = append(loadOptions, config.WithHTTPClient(cfg.client))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOptions...)

	if err != nil {
		return nil, err
	}

	client := bedrockruntime.NewFromConfig(awsConfig, func(o *bedrockruntime.Options) {
		if cfg.baseURL != "" {
			o.BaseEndpoint = aws.String(cfg.baseURL)
		}
	})

	return &Client{
		ClientConfig: cfg,

		client: client,
	}, nil
}

func (c *Client) Region() string {
	return c.region
}

func (c *Client) Options() bedrockruntime.Options {
	return c.client.Options()
}

// Model returns a handle bound to a single Bedrock model id.
func (c *Client) Model(model string, options ...ModelOption) *Completer {
	if c.logger != nil {
		options = append([]ModelOption{WithModelLogger(c.logger)}, options...)
	}

	return NewCompleter(c.client, model, options...)
}
