package bedrock

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/adrianliechti/wingman-bedrock/pkg/generate"
	"github.com/adrianliechti/wingman-bedrock/pkg/provider"

	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/require"
)

// recordHandler keeps every log record for inspection
type recordHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, r.Clone())
	return nil
}

func (h *recordHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordHandler) messages(level slog.Level) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var result []string

	for _, r := range h.records {
		if r.Level == level {
			result = append(result, r.Message)
		}
	}

	return result
}

type modelCall struct {
	id       string
	settings []ModelSettings
}

// mockClient records model handle construction
type mockClient struct {
	model provider.Completer
	calls []modelCall
}

func (c *mockClient) Model(id string, settings ...ModelSettings) provider.Completer {
	c.calls = append(c.calls, modelCall{id: id, settings: settings})
	return c.model
}

// mockFactory records client construction
type mockFactory struct {
	client *mockClient
	err    error
	calls  []ClientOptions
}

func (f *mockFactory) New(ctx context.Context, options ClientOptions) (Client, error) {
	f.calls = append(f.calls, options)

	if f.err != nil {
		return nil, f.err
	}

	return f.client, nil
}

// mockGenerator returns canned results and captures its input
type mockGenerator struct {
	text   *generate.TextResult
	stream *generate.TextStream
	object *generate.ObjectResult
	err    error

	textOptions   []generate.TextOptions
	objectOptions []generate.ObjectOptions
}

func (g *mockGenerator) GenerateText(ctx context.Context, options generate.TextOptions) (*generate.TextResult, error) {
	g.textOptions = append(g.textOptions, options)
	return g.text, g.err
}

func (g *mockGenerator) StreamText(ctx context.Context, options generate.TextOptions) (*generate.TextStream, error) {
	g.textOptions = append(g.textOptions, options)
	return g.stream, g.err
}

func (g *mockGenerator) GenerateObject(ctx context.Context, options generate.ObjectOptions) (*generate.ObjectResult, error) {
	g.objectOptions = append(g.objectOptions, options)
	return g.object, g.err
}

// mockCompleter stands in for a model handle
type mockCompleter struct {
	completions []provider.Completion
}

func (m *mockCompleter) Complete(ctx context.Context, messages []provider.Message, options *provider.CompleteOptions) iter.Seq2[*provider.Completion, error] {
	return func(yield func(*provider.Completion, error) bool) {
		for i := range m.completions {
			if !yield(&m.completions[i], nil) {
				return
			}
		}
	}
}

type testAdapter struct {
	*Adapter

	factory   *mockFactory
	generator *mockGenerator
	logs      *recordHandler
	model     *mockCompleter
}

func newTestAdapter() *testAdapter {
	model := &mockCompleter{}

	factory := &mockFactory{client: &mockClient{model: model}}
	generator := &mockGenerator{}
	logs := &recordHandler{}

	a := New(
		WithLogger(slog.New(logs)),
		WithClientFactory(factory.New),
		WithGenerator(generator),
		WithTelemetry(false),
	)

	return &testAdapter{
		Adapter: a,

		factory:   factory,
		generator: generator,
		logs:      logs,
		model:     model,
	}
}

func TestGenerateText(t *testing.T) {
	a := newTestAdapter()

	a.generator.text = &generate.TextResult{
		Text:  "ok",
		Usage: generate.Usage{PromptTokens: 1, CompletionTokens: 2},
	}

	messages := []provider.Message{provider.UserMessage("hi")}

	result, err := a.GenerateText(context.Background(), &TextRequest{
		AccessKeyID:     "k",
		SecretAccessKey: "s",
		Region:          "us-west-2",
		ModelID:         "m",
		Messages:        messages,
	})

	require.NoError(t, err)
	require.Equal(t, &TextResult{Text: "ok", Usage: Usage{InputTokens: 1, OutputTokens: 2}}, result)

	require.Equal(t, []ClientOptions{{
		Region: "us-west-2",
		Credentials: StaticCredentials{
			AccessKeyID:     "k",
			SecretAccessKey: "s",
		},
		Logger: a.logger,
	}}, a.factory.calls)

	require.Len(t, a.factory.client.calls, 1)
	require.Equal(t, "m", a.factory.client.calls[0].id)
	require.Empty(t, a.factory.client.calls[0].settings)

	require.Len(t, a.generator.textOptions, 1)
	require.Equal(t, messages, a.generator.textOptions[0].Messages)
	require.Same(t, a.model, a.generator.textOptions[0].Model)

	require.Empty(t, a.logs.messages(slog.LevelError))
}

func TestGenerateTextParameters(t *testing.T) {
	a := newTestAdapter()
	a.generator.text = &generate.TextResult{}

	maxTokens := 1000
	temperature := float32(0.7)

	_, err := a.GenerateText(context.Background(), &TextRequest{
		ModelID:     "m",
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	require.NoError(t, err)

	options := a.generator.textOptions[0]

	require.Equal(t, &maxTokens, options.MaxTokens)
	require.Equal(t, &temperature, options.Temperature)
}

func TestCredentialSelection(t *testing.T) {
	credentialProvider := credentials.NewStaticCredentialsProvider("pk", "ps", "")

	tests := []struct {
		name    string
		request TextRequest
		want    Credentials
	}{
		{
			name: "provider wins over explicit keys",
			request: TextRequest{
				AccessKeyID:        "k",
				SecretAccessKey:    "s",
				SessionToken:       "t",
				CredentialProvider: credentialProvider,
			},
			want: ProviderCredentials{Provider: credentialProvider},
		},
		{
			name: "explicit keys",
			request: TextRequest{
				AccessKeyID:     "k",
				SecretAccessKey: "s",
			},
			want: StaticCredentials{AccessKeyID: "k", SecretAccessKey: "s"},
		},
		{
			name: "explicit keys with session token",
			request: TextRequest{
				AccessKeyID:     "k",
				SecretAccessKey: "s",
				SessionToken:    "t",
			},
			want: StaticCredentials{AccessKeyID: "k", SecretAccessKey: "s", SessionToken: "t"},
		},
		{
			name: "key without secret falls back to ambient",
			request: TextRequest{
				AccessKeyID:  "k",
				SessionToken: "t",
			},
			want: AmbientCredentials{},
		},
		{
			name:    "nothing given",
			request: TextRequest{},
			want:    AmbientCredentials{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdapter()
			a.generator.text = &generate.TextResult{}

			request := tt.request
			request.ModelID = "m"

			_, err := a.GenerateText(context.Background(), &request)
			require.NoError(t, err)

			require.Len(t, a.factory.calls, 1)
			require.Equal(t, tt.want, a.factory.calls[0].Credentials)
		})
	}
}

func TestRegionDefault(t *testing.T) {
	a := newTestAdapter()
	a.generator.text = &generate.TextResult{}

	_, err := a.GenerateText(context.Background(), &TextRequest{ModelID: "m", Region: ""})
	require.NoError(t, err)

	require.Equal(t, DefaultRegion, a.factory.calls[0].Region)
	require.Equal(t, "us-east-1", DefaultRegion)
}

func TestBaseURL(t *testing.T) {
	a := newTestAdapter()
	a.generator.text = &generate.TextResult{}

	_, err := a.GenerateText(context.Background(), &TextRequest{ModelID: "m", BaseURL: "https://bedrock.example.com"})
	require.NoError(t, err)

	require.Equal(t, "https://bedrock.example.com", a.factory.calls[0].BaseURL)
}

func TestUsageRemapping(t *testing.T) {
	for _, usage := range []generate.Usage{
		{PromptTokens: 0, CompletionTokens: 0},
		{PromptTokens: 10, CompletionTokens: 20},
		{PromptTokens: 123456, CompletionTokens: 7},
	} {
		a := newTestAdapter()

		a.generator.text = &generate.TextResult{Usage: usage}
		a.generator.object = &generate.ObjectResult{Usage: usage}

		want := Usage{InputTokens: usage.PromptTokens, OutputTokens: usage.CompletionTokens}

		text, err := a.GenerateText(context.Background(), &TextRequest{ModelID: "m"})
		require.NoError(t, err)
		require.Equal(t, want, text.Usage)

		object, err := a.GenerateObject(context.Background(), &ObjectRequest{TextRequest: TextRequest{ModelID: "m"}})
		require.NoError(t, err)
		require.Equal(t, want, object.Usage)
	}
}

func TestAdditionalModelRequestFields(t *testing.T) {
	fields := map[string]any{"top_k": 50}

	a := newTestAdapter()
	a.generator.text = &generate.TextResult{}

	_, err := a.GenerateText(context.Background(), &TextRequest{
		ModelID:                      "m",
		AdditionalModelRequestFields: fields,
	})
	require.NoError(t, err)

	require.Equal(t, []ModelSettings{{AdditionalModelRequestFields: fields}}, a.factory.client.calls[0].settings)
}

func TestStreamText(t *testing.T) {
	a := newTestAdapter()

	model := &mockCompleter{
		completions: []provider.Completion{
			{Message: &provider.Message{Content: []provider.Content{provider.TextContent("chunk")}}},
		},
	}

	stream, err := generate.StreamText(context.Background(), generate.TextOptions{Model: model})
	require.NoError(t, err)
	defer stream.Close()

	a.generator.stream = stream

	result, err := a.StreamText(context.Background(), &TextRequest{
		AccessKeyID:                  "k",
		SecretAccessKey:              "s",
		ModelID:                      "m",
		AdditionalModelRequestFields: map[string]any{"a": 1},
	})

	require.NoError(t, err)
	require.Same(t, stream, result)

	require.Equal(t, StaticCredentials{AccessKeyID: "k", SecretAccessKey: "s"}, a.factory.calls[0].Credentials)
	require.Len(t, a.factory.client.calls[0].settings, 1)
}

func TestGenerateObject(t *testing.T) {
	schema := &jsonschema.Schema{Type: "object"}

	t.Run("defaults", func(t *testing.T) {
		a := newTestAdapter()
		a.generator.object = &generate.ObjectResult{Object: map[string]any{"a": "b"}}

		result, err := a.GenerateObject(context.Background(), &ObjectRequest{
			TextRequest: TextRequest{ModelID: "m"},
			Schema:      schema,
		})

		require.NoError(t, err)
		require.Equal(t, map[string]any{"a": "b"}, result.Object)

		options := a.generator.objectOptions[0]

		require.Equal(t, generate.ModeTool, options.Mode)
		require.Same(t, schema, options.Schema)
		require.Equal(t, generate.Tool{Name: "generated_object", Description: "Generate a generated_object based on the prompt."}, options.Tool)
		require.Equal(t, 3, options.MaxRetries)
	})

	t.Run("custom name and retries", func(t *testing.T) {
		a := newTestAdapter()
		a.generator.object = &generate.ObjectResult{}

		retries := 1

		_, err := a.GenerateObject(context.Background(), &ObjectRequest{
			TextRequest: TextRequest{ModelID: "m"},
			Schema:      schema,
			ObjectName:  "task",
			MaxRetries:  &retries,
		})
		require.NoError(t, err)

		options := a.generator.objectOptions[0]

		require.Equal(t, "task", options.Tool.Name)
		require.Equal(t, "Generate a task based on the prompt.", options.Tool.Description)
		require.Equal(t, 1, options.MaxRetries)
	})
}

func TestObjectResultDecode(t *testing.T) {
	result := &ObjectResult{Object: map[string]any{"name": "Ada", "age": float64(36)}}

	var person struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}

	require.NoError(t, result.Decode(&person))
	require.Equal(t, "Ada", person.Name)
	require.Equal(t, 36, person.Age)
}

func TestErrorPropagation(t *testing.T) {
	failure := errors.New("ThrottlingException: rate exceeded")

	calls := map[string]func(a *testAdapter) error{
		"generateText": func(a *testAdapter) error {
			_, err := a.GenerateText(context.Background(), &TextRequest{ModelID: "m"})
			return err
		},
		"streamText": func(a *testAdapter) error {
			_, err := a.StreamText(context.Background(), &TextRequest{ModelID: "m"})
			return err
		},
		"generateObject": func(a *testAdapter) error {
			_, err := a.GenerateObject(context.Background(), &ObjectRequest{TextRequest: TextRequest{ModelID: "m"}})
			return err
		},
	}

	for name, call := range calls {
		t.Run(name+" generator failure", func(t *testing.T) {
			a := newTestAdapter()
			a.generator.err = failure

			err := call(a)
			require.Same(t, failure, err)

			logs := a.logs.messages(slog.LevelError)
			require.Len(t, logs, 1)
			require.True(t, strings.Contains(logs[0], failure.Error()))
		})

		t.Run(name+" client failure", func(t *testing.T) {
			a := newTestAdapter()
			a.factory.err = &ConfigError{Err: errors.New("no EC2 IMDS role found")}

			err := call(a)
			require.ErrorIs(t, err, ErrMissingCredentials)

			logs := a.logs.messages(slog.LevelError)
			require.Len(t, logs, 1)
			require.True(t, strings.Contains(logs[0], "no EC2 IMDS role found"))

			require.Empty(t, a.generator.textOptions)
			require.Empty(t, a.generator.objectOptions)
		})
	}
}

func TestConfigError(t *testing.T) {
	cause := errors.New("failed to load shared config")
	err := &ConfigError{Err: cause}

	require.ErrorIs(t, err, ErrMissingCredentials)
	require.ErrorIs(t, err, cause)

	require.Contains(t, err.Error(), "credential provider")
	require.Contains(t, err.Error(), "access key id and secret access key")
	require.Contains(t, err.Error(), "environment")
	require.Contains(t, err.Error(), cause.Error())
}

func TestResolveCredentials(t *testing.T) {
	require.Equal(t, AmbientCredentials{}, ResolveCredentials("", "", "", nil))
	require.Equal(t, AmbientCredentials{}, ResolveCredentials("", "s", "", nil))
	require.Equal(t, StaticCredentials{AccessKeyID: "k", SecretAccessKey: "s"}, ResolveCredentials("k", "s", "", nil))
}
