package bedrock

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Model IDs commonly used through the Converse API
const (
	ModelAnthropicClaudeSonnet4 = "anthropic.claude-sonnet-4-20250514-v1:0"
	ModelAnthropicClaude3Haiku  = "anthropic.claude-3-haiku-20240307-v1:0"
	ModelAmazonNovaLite         = "amazon.nova-lite-v1:0"
	ModelAmazonNovaPro          = "amazon.nova-pro-v1:0"
	ModelMetaLlama3_70B         = "meta.llama3-70b-instruct-v1:0"
)

const defaultModel = ModelAmazonNovaLite

type options struct {
	modelID     string
	region      string
	credentials aws.CredentialsProvider
	client      ConverseAPI
}

// Option is an option for the Bedrock LLM.
type Option func(*options)

// WithModel sets the model ID to use.
func WithModel(modelID string) Option {
	return func(o *options) {
		if modelID != "" {
			o.modelID = modelID
		}
	}
}

// WithRegion sets the AWS region, otherwise the default AWS config is used.
func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

// WithStaticCredentials sets the static AWS access keys.
func WithStaticCredentials(accessKeyID, secretAccessKey, sessionToken string) Option {
	return func(o *options) {
		if accessKeyID != "" {
			o.credentials = credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, sessionToken)
		}
	}
}

// WithClient sets the client to use, for example bedrockruntime.Client.
func WithClient(client ConverseAPI) Option {
	return func(o *options) {
		o.client = client
	}
}
