package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/adrianliechti/wingman-bedrock/pkg/provider"

	"github.com/google/jsonschema-go/jsonschema"
)

type Mode string

const (
	// ModeTool exposes the schema as the input of a single tool the model is
	// required to call.
	ModeTool Mode = "tool"
)

type Tool struct {
	Name        string
	Description string
}

type ObjectOptions struct {
	Model provider.Completer

	Mode   Mode
	Schema *jsonschema.Schema

	Messages []provider.Message

	Tool Tool

	MaxTokens   *int
	Temperature *float32

	// MaxRetries is the maximum number of attempts made to obtain a schema
	// valid object. Values below one mean a single attempt.
	MaxRetries int
}

type ObjectResult struct {
	Object any

	// Raw holds the JSON arguments the object was decoded from.
	Raw json.RawMessage

	Usage Usage
}

// NoObjectError reports that no attempt produced a schema valid object.
type NoObjectError struct {
	Attempts int

	Text string
	Err  error
}

func (e *NoObjectError) Error() string {
	return fmt.Sprintf("no object generated after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *NoObjectError) Unwrap() error {
	return e.Err
}

var errNoToolCall = errors.New("model did not call the tool")

// GenerateObject asks the model for a value matching options.Schema.
// Failures of the model call are returned as is; only schema invalid output
// is retried.
func GenerateObject(ctx context.Context, options ObjectOptions) (*ObjectResult, error) {
	if options.Model == nil {
		return nil, ErrMissingModel
	}

	if options.Mode == "" {
		options.Mode = ModeTool
	}

	if options.Mode != ModeTool {
		return nil, fmt.Errorf("generate: unsupported object mode %q", options.Mode)
	}

	if options.Schema == nil {
		return nil, errors.New("generate: schema is required")
	}

	if options.Tool.Name == "" {
		return nil, errors.New("generate: tool name is required")
	}

	resolved, err := options.Schema.Resolve(nil)

	if err != nil {
		return nil, fmt.Errorf("generate: invalid schema: %w", err)
	}

	parameters, err := schemaParameters(options.Schema)

	if err != nil {
		return nil, err
	}

	completeOptions := &provider.CompleteOptions{
		Tools: []provider.Tool{
			{
				Name:        options.Tool.Name,
				Description: options.Tool.Description,

				Parameters: parameters,
			},
		},

		ToolChoice: &provider.ToolChoice{
			Name: options.Tool.Name,
		},

		MaxTokens:   options.MaxTokens,
		Temperature: options.Temperature,
	}

	attempts := max(options.MaxRetries, 1)

	var usage Usage
	var lastErr *NoObjectError

	for attempt := 1; attempt <= attempts; attempt++ {
		completion, err := complete(ctx, options.Model, options.Messages, completeOptions)

		if err != nil {
			return nil, err
		}

		usage.add(completion.Usage)

		raw, object, err := parseObject(completion, options.Tool.Name, resolved)

		if err == nil {
			return &ObjectResult{
				Object: object,
				Raw:    raw,

				Usage: usage,
			}, nil
		}

		lastErr = &NoObjectError{
			Attempts: attempt,
			Err:      err,
		}

		if completion.Message != nil {
			lastErr.Text = completion.Message.Text()
		}
	}

	return nil, lastErr
}

func schemaParameters(schema *jsonschema.Schema) (map[string]any, error) {
	data, err := json.Marshal(schema)

	if err != nil {
		return nil, err
	}

	var result map[string]any

	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	return result, nil
}

func parseObject(completion *provider.Completion, name string, schema *jsonschema.Resolved) (json.RawMessage, any, error) {
	if completion.Message == nil {
		return nil, nil, errNoToolCall
	}

	var data string

	for _, call := range completion.Message.ToolCalls() {
		if call.Name == name || data == "" {
			data = call.Arguments
		}
	}

	// some models answer with plain json instead of a tool call
	if data == "" {
		data = strings.TrimSpace(completion.Message.Text())
	}

	if data == "" {
		return nil, nil, errNoToolCall
	}

	var object any

	if err := json.Unmarshal([]byte(data), &object); err != nil {
		return nil, nil, fmt.Errorf("invalid json: %w", err)
	}

	if err := schema.Validate(object); err != nil {
		return nil, nil, err
	}

	return json.RawMessage(data), object, nil
}
