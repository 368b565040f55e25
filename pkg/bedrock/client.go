package bedrock

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/adrianliechti/wingman-bedrock/pkg/provider"
	"github.com/adrianliechti/wingman-bedrock/pkg/provider/bedrock"

	"github.com/aws/aws-sdk-go-v2/credentials"
)

const DefaultRegion = bedrock.DefaultRegion

type ClientOptions struct {
	Region string

	Credentials Credentials

	// BaseURL overrides the Bedrock runtime endpoint when set.
	BaseURL string

	Logger *slog.Logger
}

// ModelSettings are attached to a model handle. A handle created without
// settings sends no additional fields.
type ModelSettings struct {
	AdditionalModelRequestFields map[string]any
}

// Client produces model handles for one region and credential strategy.
type Client interface {
	Model(id string, settings ...ModelSettings) provider.Completer
}

// ClientFactory constructs a client. It must not send any request.
type ClientFactory func(ctx context.Context, options ClientOptions) (Client, error)

var _ ClientFactory = NewClient

// NewClient is the default ClientFactory backed by the AWS SDK.
func NewClient(ctx context.Context, options ClientOptions) (Client, error) {
	clientOptions := []bedrock.Option{
		bedrock.WithRegion(options.Region),
	}

	if options.BaseURL != "" {
		clientOptions = append(clientOptions, bedrock.WithBaseURL(options.BaseURL))
	}

	if options.Logger != nil {
		clientOptions = append(clientOptions, bedrock.WithLogger(options.Logger))
	}

	ambient := false

	switch c := options.Credentials.(type) {
	case ProviderCredentials:
		clientOptions = append(clientOptions, bedrock.WithCredentials(c.Provider))

	case StaticCredentials:
		clientOptions = append(clientOptions, bedrock.WithCredentials(credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, c.SessionToken)))

	case AmbientCredentials, nil:
		ambient = true

	default:
		return nil, fmt.Errorf("bedrock: unsupported credentials %T", c)
	}

	client, err := bedrock.NewClient(ctx, clientOptions...)

	if err != nil {
		if ambient {
			return nil, &ConfigError{Err: err}
		}

		return nil, err
	}

	return &runtimeClient{
		client: client,
	}, nil
}

type runtimeClient struct {
	client *bedrock.Client
}

func (c *runtimeClient) Model(id string, settings ...ModelSettings) provider.Completer {
	var options []bedrock.ModelOption

	for _, s := range settings {
		if s.AdditionalModelRequestFields != nil {
			options = append(options, bedrock.WithAdditionalModelRequestFields(s.AdditionalModelRequestFields))
		}
	}

	return c.client.Model(id, options...)
}
