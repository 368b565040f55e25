// Package provider defines the model handle abstraction shared by the
// generation primitives and the Bedrock runtime.
package provider

type Tool struct {
	Name        string
	Description string

	Parameters map[string]any
}

// ToolChoice forces the model to call a tool. Name selects a specific tool
// where the model supports it.
type ToolChoice struct {
	Name string
}

type ToolResult struct {
	ID string

	Data string
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}
