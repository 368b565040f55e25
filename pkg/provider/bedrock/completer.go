package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"log/slog"

	"github.com/adrianliechti/wingman-bedrock/pkg/provider"

	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

var _ provider.Completer = (*Completer)(nil)

type Completer struct {
	*Config

	client Runtime
}

func NewCompleter(client Runtime, model string, options ...ModelOption) *Completer {
	cfg := &Config{
		model: model,

		logger: slog.Default(),
	}

	for _, option := range options {
		option(cfg)
	}

	return &Completer{
		Config: cfg,

		client: client,
	}
}

func (c *Completer) Model() string {
	return c.model
}

func (c *Completer) Fields() map[string]any {
	return c.fields
}

func (c *Completer) Complete(ctx context.Context, messages []provider.Message, options *provider.CompleteOptions) iter.Seq2[*provider.Completion, error] {
	return func(yield func(*provider.Completion, error) bool) {
		if options == nil {
			options = new(provider.CompleteOptions)
		}

		req, err := c.convertConverseInput(messages, options)

		if err != nil {
			yield(nil, err)
			return
		}

		if options.Stream {
			c.completeStream(ctx, toConverseStreamInput(req), yield)
			return
		}

		yield(c.complete(ctx, req))
	}
}

func (c *Completer) complete(ctx context.Context, req *bedrockruntime.ConverseInput) (*provider.Completion, error) {
	resp, err := c.client.Converse(ctx, req)

	if err != nil {
		return nil, err
	}

	return &provider.Completion{
		ID:    uuid.NewString(),
		Model: c.model,

		Reason: toCompletionReason(resp.StopReason),

		Message: &provider.Message{
			Role: provider.MessageRoleAssistant,

			Content: toContent(resp.Output),
		},

		Usage: toUsage(resp.Usage),
	}, nil
}

func (c *Completer) completeStream(ctx context.Context, req *bedrockruntime.ConverseStreamInput, yield func(*provider.Completion, error) bool) {
	resp, err := c.client.ConverseStream(ctx, req)

	if err != nil {
		yield(nil, err)
		return
	}

	stream := resp.GetStream()
	defer stream.Close()

	if !c.streamEvents(stream.Events(), yield) {
		return
	}

	if err := stream.Err(); err != nil {
		yield(nil, err)
	}
}

func (c *Completer) streamEvents(events <-chan types.ConverseStreamOutput, yield func(*provider.Completion, error) bool) bool {
	id := uuid.NewString()

	for event := range events {
		var delta *provider.Completion

		switch v := event.(type) {
		case *types.ConverseStreamOutputMemberMessageStart:
			delta = &provider.Completion{
				ID:    id,
				Model: c.model,

				Message: &provider.Message{
					Role: toRole(v.Value.Role),
				},
			}

		case *types.ConverseStreamOutputMemberContentBlockStart:
			switch b := v.Value.Start.(type) {
			case *types.ContentBlockStartMemberToolUse:
				delta = &provider.Completion{
					ID:    id,
					Model: c.model,

					Message: &provider.Message{
						Role: provider.MessageRoleAssistant,

						Content: []provider.Content{
							provider.ToolCallContent(provider.ToolCall{
								ID:   aws.ToString(b.Value.ToolUseId),
								Name: aws.ToString(b.Value.Name),
							}),
						},
					},
				}

			default:
				c.logger.Debug("unknown bedrock block start", "type", b)
			}

		case *types.ConverseStreamOutputMemberContentBlockDelta:
			switch b := v.Value.Delta.(type) {
			case *types.ContentBlockDeltaMemberText:
				delta = &provider.Completion{
					ID:    id,
					Model: c.model,

					Message: &provider.Message{
						Role: provider.MessageRoleAssistant,

						Content: []provider.Content{
							provider.TextContent(b.Value),
						},
					},
				}

			case *types.ContentBlockDeltaMemberToolUse:
				delta = &provider.Completion{
					ID:    id,
					Model: c.model,

					Message: &provider.Message{
						Role: provider.MessageRoleAssistant,

						Content: []provider.Content{
							provider.ToolCallContent(provider.ToolCall{
								Arguments: aws.ToString(b.Value.Input),
							}),
						},
					},
				}

			default:
				c.logger.Debug("unknown bedrock block delta", "type", b)
			}

		case *types.ConverseStreamOutputMemberContentBlockStop:

		case *types.ConverseStreamOutputMemberMessageStop:
			delta = &provider.Completion{
				ID:    id,
				Model: c.model,

				Reason: toCompletionReason(v.Value.StopReason),
			}

		case *types.ConverseStreamOutputMemberMetadata:
			delta = &provider.Completion{
				ID:    id,
				Model: c.model,

				Usage: toUsage(v.Value.Usage),
			}

		case *types.UnknownUnionMember:
			c.logger.Debug("unknown bedrock event tag", "tag", v.Tag)

		default:
			c.logger.Debug("unknown bedrock event", "type", v)
		}

		if delta == nil {
			continue
		}

		if !yield(delta, nil) {
			return false
		}
	}

	return true
}

func (c *Completer) convertConverseInput(input []provider.Message, options *provider.CompleteOptions) (*bedrockruntime.ConverseInput, error) {
	messages, err := convertMessages(input)

	if err != nil {
		return nil, err
	}

	req := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.model),

		Messages: messages,

		System:          convertSystem(input),
		ToolConfig:      convertToolConfig(c.model, options.Tools, options.ToolChoice),
		InferenceConfig: convertInferenceConfig(options),
	}

	if len(c.fields) > 0 {
		req.AdditionalModelRequestFields = document.NewLazyDocument(c.fields)
	}

	return req, nil
}

func toConverseStreamInput(req *bedrockruntime.ConverseInput) *bedrockruntime.ConverseStreamInput {
	return &bedrockruntime.ConverseStreamInput{
		ModelId: req.ModelId,

		Messages: req.Messages,

		System:          req.System,
		ToolConfig:      req.ToolConfig,
		InferenceConfig: req.InferenceConfig,

		AdditionalModelRequestFields: req.AdditionalModelRequestFields,
	}
}

func convertSystem(messages []provider.Message) []types.SystemContentBlock {
	var result []types.SystemContentBlock

	for _, m := range messages {
		if m.Role != provider.MessageRoleSystem {
			continue
		}

		for _, c := range m.Content {
			if c.Text == "" {
				continue
			}

			system := &types.SystemContentBlockMemberText{
				Value: c.Text,
			}

			result = append(result, system)
		}
	}

	if len(result) == 0 {
		return nil
	}

	return result
}

func convertMessages(messages []provider.Message) ([]types.Message, error) {
	var result []types.Message

	for _, m := range messages {
		switch m.Role {

		case provider.MessageRoleSystem:
			continue

		case provider.MessageRoleUser:
			message := types.Message{
				Role: types.ConversationRoleUser,
			}

			for _, c := range m.Content {
				if c.Text != "" {
					block := &types.ContentBlockMemberText{
						Value: c.Text,
					}

					message.Content = append(message.Content, block)
				}

				if c.ToolResult != nil {
					block := &types.ContentBlockMemberToolResult{
						Value: types.ToolResultBlock{
							ToolUseId: aws.String(c.ToolResult.ID),

							Content: []types.ToolResultContentBlock{
								convertToolResult(c.ToolResult.Data),
							},
						},
					}

					message.Content = append(message.Content, block)
				}
			}

			result = append(result, message)

		case provider.MessageRoleAssistant:
			message := types.Message{
				Role: types.ConversationRoleAssistant,
			}

			for _, c := range m.Content {
				if c.Text != "" {
					content := &types.ContentBlockMemberText{
						Value: c.Text,
					}

					message.Content = append(message.Content, content)
				}

				if c.ToolCall != nil {
					var data any
					json.Unmarshal([]byte(c.ToolCall.Arguments), &data)

					if data == nil {
						data = map[string]any{}
					}

					content := &types.ContentBlockMemberToolUse{
						Value: types.ToolUseBlock{
							ToolUseId: aws.String(c.ToolCall.ID),
							Name:      aws.String(c.ToolCall.Name),

							Input: document.NewLazyDocument(data),
						},
					}

					message.Content = append(message.Content, content)
				}
			}

			result = append(result, message)

		default:
			return nil, errors.New("unsupported message role")
		}
	}

	return result, nil
}

func convertToolResult(data string) types.ToolResultContentBlock {
	var value any

	if err := json.Unmarshal([]byte(data), &value); err != nil {
		return &types.ToolResultContentBlockMemberText{
			Value: data,
		}
	}

	if _, ok := value.(map[string]any); !ok {
		value = map[string]any{
			"result": value,
		}
	}

	return &types.ToolResultContentBlockMemberJson{
		Value: document.NewLazyDocument(value),
	}
}

func convertInferenceConfig(options *provider.CompleteOptions) *types.InferenceConfiguration {
	if options.MaxTokens == nil && options.Temperature == nil && len(options.Stop) == 0 {
		return nil
	}

	result := &types.InferenceConfiguration{
		StopSequences: options.Stop,
	}

	if options.MaxTokens != nil {
		result.MaxTokens = aws.Int32(int32(*options.MaxTokens))
	}

	if options.Temperature != nil {
		result.Temperature = aws.Float32(*options.Temperature)
	}

	return result
}

func convertToolConfig(model string, tools []provider.Tool, choice *provider.ToolChoice) *types.ToolConfiguration {
	if len(tools) == 0 {
		return nil
	}

	result := &types.ToolConfiguration{}

	for _, t := range tools {
		tool := types.ToolSpecification{
			Name: aws.String(t.Name),
		}

		if t.Description != "" {
			tool.Description = aws.String(t.Description)
		}

		parameters := t.Parameters

		if len(parameters) == 0 {
			parameters = map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			}
		}

		tool.InputSchema = &types.ToolInputSchemaMemberJson{
			Value: document.NewLazyDocument(parameters),
		}

		result.Tools = append(result.Tools, &types.ToolMemberToolSpec{Value: tool})
	}

	if choice != nil {
		// naming a specific tool is only accepted by claude models
		if choice.Name != "" && isClaudeModel(model) {
			result.ToolChoice = &types.ToolChoiceMemberTool{
				Value: types.SpecificToolChoice{
					Name: aws.String(choice.Name),
				},
			}
		} else {
			result.ToolChoice = &types.ToolChoiceMemberAny{
				Value: types.AnyToolChoice{},
			}
		}
	}

	return result
}

func toCompletionReason(val types.StopReason) provider.CompletionReason {
	switch val {
	case types.StopReasonEndTurn:
		return provider.CompletionReasonStop

	case types.StopReasonToolUse:
		return provider.CompletionReasonTool

	case types.StopReasonMaxTokens:
		return provider.CompletionReasonLength

	case types.StopReasonStopSequence:
		return provider.CompletionReasonStop

	case types.StopReasonGuardrailIntervened:
		return provider.CompletionReasonFilter

	case types.StopReasonContentFiltered:
		return provider.CompletionReasonFilter

	default:
		return ""
	}
}

func toRole(val types.ConversationRole) provider.MessageRole {
	switch val {
	case types.ConversationRoleUser:
		return provider.MessageRoleUser

	case types.ConversationRoleAssistant:
		return provider.MessageRoleAssistant

	default:
		return ""
	}
}

func toContent(val types.ConverseOutput) []provider.Content {
	message, ok := val.(*types.ConverseOutputMemberMessage)

	if !ok {
		return nil
	}

	var parts []provider.Content

	for _, b := range message.Value.Content {
		switch block := b.(type) {
		case *types.ContentBlockMemberText:
			parts = append(parts, provider.TextContent(block.Value))

		case *types.ContentBlockMemberToolUse:
			var arguments string

			if block.Value.Input != nil {
				data, _ := block.Value.Input.MarshalSmithyDocument()
				arguments = string(data)
			}

			parts = append(parts, provider.ToolCallContent(provider.ToolCall{
				ID:   aws.ToString(block.Value.ToolUseId),
				Name: aws.ToString(block.Value.Name),

				Arguments: arguments,
			}))
		}
	}

	return parts
}

func toUsage(val *types.TokenUsage) *provider.Usage {
	if val == nil {
		return nil
	}

	return &provider.Usage{
		InputTokens:  int(aws.ToInt32(val.InputTokens)),
		OutputTokens: int(aws.ToInt32(val.OutputTokens)),
	}
}
