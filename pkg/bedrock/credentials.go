package bedrock

import (
	"github.com/aws/aws-sdk-go-v2/aws"
)

// CredentialsProvider resolves credentials when a request is signed.
type CredentialsProvider = aws.CredentialsProvider

// Credentials selects how the Bedrock client authenticates. It is one of
// ProviderCredentials, StaticCredentials or AmbientCredentials.
type Credentials interface {
	credentials()
}

// ProviderCredentials resolves credentials at call time.
type ProviderCredentials struct {
	Provider CredentialsProvider
}

// StaticCredentials is an explicit key pair with an optional session token.
type StaticCredentials struct {
	AccessKeyID     string
	SecretAccessKey string

	SessionToken string
}

// AmbientCredentials defers to the default AWS credential chain
// (environment, shared config files, container and instance roles).
type AmbientCredentials struct{}

func (ProviderCredentials) credentials() {}
func (StaticCredentials) credentials()   {}
func (AmbientCredentials) credentials()  {}

// ResolveCredentials picks the first usable strategy: a provider, then an
// access key id with secret access key, then the ambient chain.
func ResolveCredentials(accessKeyID, secretAccessKey, sessionToken string, provider CredentialsProvider) Credentials {
	if provider != nil {
		return ProviderCredentials{
			Provider: provider,
		}
	}

	if accessKeyID != "" && secretAccessKey != "" {
		return StaticCredentials{
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,

			SessionToken: sessionToken,
		}
	}

	return AmbientCredentials{}
}
