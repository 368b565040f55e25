package bedrock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/adrianliechti/wingman-bedrock/pkg/generate"

	"github.com/google/jsonschema-go/jsonschema"
)

const (
	DefaultObjectName = "generated_object"
	DefaultMaxRetries = 3
)

type ObjectRequest struct {
	TextRequest

	Schema *jsonschema.Schema

	// ObjectName names the tool the model calls. Defaults to DefaultObjectName.
	ObjectName string

	// MaxRetries bounds the attempts made for schema valid output. Defaults
	// to DefaultMaxRetries.
	MaxRetries *int
}

func (r *ObjectRequest) objectName() string {
	if r.ObjectName == "" {
		return DefaultObjectName
	}

	return r.ObjectName
}

func (r *ObjectRequest) maxRetries() int {
	if r.MaxRetries == nil {
		return DefaultMaxRetries
	}

	return *r.MaxRetries
}

type ObjectResult struct {
	Object any

	Usage Usage

	raw json.RawMessage
}

// Decode unmarshals the generated object into v.
func (r *ObjectResult) Decode(v any) error {
	data := []byte(r.raw)

	if len(data) == 0 {
		var err error

		if data, err = json.Marshal(r.Object); err != nil {
			return err
		}
	}

	return json.Unmarshal(data, v)
}

func objectDescription(name string) string {
	return fmt.Sprintf("Generate a %s based on the prompt.", name)
}

// GenerateObject generates a value matching r.Schema by forcing the model to
// call a single tool. Errors are logged and returned unchanged.
func (a *Adapter) GenerateObject(ctx context.Context, r *ObjectRequest) (*ObjectResult, error) {
	name := r.objectName()

	a.logger.DebugContext(ctx, "generating bedrock object", "object", name, "model", r.ModelID)

	model, err := a.model(ctx, &r.TextRequest)

	if err != nil {
		a.logFailure(ctx, "generateObject ('"+name+"')", err, "model", r.ModelID)
		return nil, err
	}

	a.logger.DebugContext(ctx, "bedrock generateObject parameters",
		"model", r.ModelID,
		"max_tokens", value(r.MaxTokens),
		"temperature", value(r.Temperature),
	)

	result, err := a.generator.GenerateObject(ctx, generate.ObjectOptions{
		Model: model,

		Mode:   generate.ModeTool,
		Schema: r.Schema,

		Messages: r.Messages,

		Tool: generate.Tool{
			Name:        name,
			Description: objectDescription(name),
		},

		MaxTokens:   r.MaxTokens,
		Temperature: r.Temperature,

		MaxRetries: r.maxRetries(),
	})

	if err != nil {
		a.logFailure(ctx, "generateObject ('"+name+"')", err, "model", r.ModelID)
		return nil, err
	}

	a.logger.DebugContext(ctx, "bedrock generateObject result received",
		"model", r.ModelID,
		"prompt_tokens", result.Usage.PromptTokens,
		"completion_tokens", result.Usage.CompletionTokens,
	)

	return &ObjectResult{
		Object: result.Object,
		Usage:  toUsage(result.Usage),

		raw: result.Raw,
	}, nil
}
