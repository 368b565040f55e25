package config

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/adrianliechti/wingman-bedrock/pkg/bedrock"
	"github.com/adrianliechti/wingman-bedrock/pkg/provider"

	"github.com/google/jsonschema-go/jsonschema"
)

type providerConfig struct {
	Type string `yaml:"type"`

	Region string `yaml:"region"`
	URL    string `yaml:"url"`

	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`

	Limit *int `yaml:"limit"`

	Models map[string]modelConfig `yaml:"models"`
}

type modelConfig struct {
	ID string `yaml:"id"`

	MaxTokens   *int     `yaml:"max_tokens"`
	Temperature *float32 `yaml:"temperature"`

	Fields map[string]any `yaml:"fields"`
}

// Model is a configured Bedrock model with its credentials and defaults.
type Model struct {
	ID string

	adapter *bedrock.Adapter
	request bedrock.TextRequest
}

func (m *Model) Adapter() *bedrock.Adapter {
	return m.adapter
}

// TextRequest returns a request for m carrying messages.
func (m *Model) TextRequest(messages []provider.Message) *bedrock.TextRequest {
	r := m.request
	r.Messages = messages

	return &r
}

func (m *Model) ObjectRequest(messages []provider.Message, schema *jsonschema.Schema, name string) *bedrock.ObjectRequest {
	return &bedrock.ObjectRequest{
		TextRequest: *m.TextRequest(messages),

		Schema:     schema,
		ObjectName: name,
	}
}

func (cfg *Config) registerProviders(f *configFile) error {
	for _, p := range f.Providers {
		switch strings.ToLower(p.Type) {
		case "bedrock", "aws":
		default:
			return errors.New("invalid provider type: " + p.Type)
		}

		if p.Limit != nil && *p.Limit <= 0 {
			return fmt.Errorf("invalid provider limit: %d", *p.Limit)
		}

		var options []bedrock.Option

		if l := createLimiter(p.Limit); l != nil {
			options = append(options, bedrock.WithLimiter(l))
		}

		adapter := bedrock.New(options...)

		ids := make([]string, 0, len(p.Models))

		for id := range p.Models {
			ids = append(ids, id)
		}

		sort.Strings(ids)

		for _, id := range ids {
			m := p.Models[id]

			if m.ID == "" {
				m.ID = id
			}

			model := &Model{
				ID: id,

				adapter: adapter,

				request: bedrock.TextRequest{
					AccessKeyID:     p.AccessKeyID,
					SecretAccessKey: p.SecretAccessKey,
					SessionToken:    p.SessionToken,

					Region:  p.Region,
					BaseURL: p.URL,

					ModelID: m.ID,

					MaxTokens:   m.MaxTokens,
					Temperature: m.Temperature,

					AdditionalModelRequestFields: m.Fields,
				},
			}

			slog.Debug("registered bedrock model", "id", id, "model", m.ID, "region", p.Region)

			cfg.RegisterModel(id, model)
		}
	}

	return nil
}
