package bedrock

import (
	"errors"
	"log/slog"

	"github.com/aws/smithy-go"
)

var ErrMissingCredentials = errors.New("bedrock: missing aws credentials")

// ConfigError reports that no credential strategy produced a client.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	msg := "AWS Bedrock requires a credential provider, or an access key id and secret access key, or valid AWS credentials in the environment"

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *ConfigError) Unwrap() []error {
	return []error{ErrMissingCredentials, e.Err}
}

func errorAttrs(err error) []any {
	attrs := []any{
		slog.String("error", err.Error()),
	}

	var apiErr smithy.APIError

	if errors.As(err, &apiErr) {
		attrs = append(attrs,
			slog.String("code", apiErr.ErrorCode()),
			slog.String("fault", apiErr.ErrorFault().String()),
		)
	}

	return attrs
}
