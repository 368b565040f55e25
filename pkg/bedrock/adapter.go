// Package bedrock generates text and objects with models hosted on AWS
// Bedrock.
//
// Every call builds its own client from the credentials carried by the
// request, forwards the request to the generation primitives of package
// generate and reports token usage as input and output tokens.
package bedrock

import (
	"context"
	"log/slog"

	"github.com/adrianliechti/wingman-bedrock/pkg/generate"
	"github.com/adrianliechti/wingman-bedrock/pkg/limiter"
	"github.com/adrianliechti/wingman-bedrock/pkg/otel"
	"github.com/adrianliechti/wingman-bedrock/pkg/provider"

	"golang.org/x/time/rate"
)

// Generator runs the generation primitives against a model handle.
type Generator interface {
	GenerateText(ctx context.Context, options generate.TextOptions) (*generate.TextResult, error)
	StreamText(ctx context.Context, options generate.TextOptions) (*generate.TextStream, error)
	GenerateObject(ctx context.Context, options generate.ObjectOptions) (*generate.ObjectResult, error)
}

type defaultGenerator struct{}

func (defaultGenerator) GenerateText(ctx context.Context, options generate.TextOptions) (*generate.TextResult, error) {
	return generate.GenerateText(ctx, options)
}

func (defaultGenerator) StreamText(ctx context.Context, options generate.TextOptions) (*generate.TextStream, error) {
	return generate.StreamText(ctx, options)
}

func (defaultGenerator) GenerateObject(ctx context.Context, options generate.ObjectOptions) (*generate.ObjectResult, error) {
	return generate.GenerateObject(ctx, options)
}

type Adapter struct {
	logger *slog.Logger

	factory   ClientFactory
	generator Generator

	limiter   *rate.Limiter
	telemetry bool
}

type Option func(*Adapter)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

func WithClientFactory(factory ClientFactory) Option {
	return func(a *Adapter) {
		a.factory = factory
	}
}

func WithGenerator(generator Generator) Option {
	return func(a *Adapter) {
		a.generator = generator
	}
}

// WithLimiter shares l between all calls of the adapter.
func WithLimiter(l *rate.Limiter) Option {
	return func(a *Adapter) {
		a.limiter = l
	}
}

// WithTelemetry records traces and GenAI metrics for every call.
func WithTelemetry(enabled bool) Option {
	return func(a *Adapter) {
		a.telemetry = enabled
	}
}

func New(options ...Option) *Adapter {
	a := &Adapter{
		factory:   NewClient,
		generator: defaultGenerator{},

		telemetry: otel.EnableTelemetry,
	}

	for _, option := range options {
		option(a)
	}

	if a.logger == nil {
		a.logger = slog.Default()
	}

	return a
}

// TextRequest describes a text generation. Credentials are taken from
// CredentialProvider, then AccessKeyID with SecretAccessKey, then the
// environment.
type TextRequest struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	CredentialProvider CredentialsProvider

	// Region defaults to DefaultRegion, also when empty.
	Region  string
	BaseURL string

	ModelID string

	Messages []provider.Message

	MaxTokens   *int
	Temperature *float32

	AdditionalModelRequestFields map[string]any
}

func (r *TextRequest) resolveCredentials() Credentials {
	return ResolveCredentials(r.AccessKeyID, r.SecretAccessKey, r.SessionToken, r.CredentialProvider)
}

func (r *TextRequest) region() string {
	if r.Region == "" {
		return DefaultRegion
	}

	return r.Region
}

func (r *TextRequest) textOptions(model provider.Completer) generate.TextOptions {
	return generate.TextOptions{
		Model: model,

		Messages: r.Messages,

		MaxTokens:   r.MaxTokens,
		Temperature: r.Temperature,
	}
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}

func toUsage(val generate.Usage) Usage {
	return Usage{
		InputTokens:  val.PromptTokens,
		OutputTokens: val.CompletionTokens,
	}
}

// model builds a fresh client for r and binds it to r.ModelID.
func (a *Adapter) model(ctx context.Context, r *TextRequest) (provider.Completer, error) {
	client, err := a.factory(ctx, ClientOptions{
		Region:      r.region(),
		Credentials: r.resolveCredentials(),
		BaseURL:     r.BaseURL,

		Logger: a.logger,
	})

	if err != nil {
		return nil, err
	}

	var model provider.Completer

	if r.AdditionalModelRequestFields != nil {
		model = client.Model(r.ModelID, ModelSettings{
			AdditionalModelRequestFields: r.AdditionalModelRequestFields,
		})
	} else {
		model = client.Model(r.ModelID)
	}

	if a.limiter != nil {
		model = limiter.NewCompleter(a.limiter, model)
	}

	if a.telemetry {
		model = otel.NewCompleter("aws.bedrock", r.ModelID, model)
	}

	return model, nil
}

func (a *Adapter) logFailure(ctx context.Context, operation string, err error, args ...any) {
	args = append(args, errorAttrs(err)...)
	a.logger.ErrorContext(ctx, "bedrock "+operation+" failed: "+err.Error(), args...)
}

func value[T any](v *T) any {
	if v == nil {
		return nil
	}

	return *v
}
