// Package ai constructs language model and embedding clients.
//
// Construction never fails on missing credentials. When connection secrets
// are absent the factory logs a warning and hands out clients with blank
// credentials; the failure surfaces on the first API call instead. This
// keeps offline commands working without any account setup.
package ai

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"github.com/wildvoice/wildrag/internal/log"
	"github.com/wildvoice/wildrag/internal/secrets"
)

const (
	// DefaultChatModel is used when no chat model is configured.
	DefaultChatModel = "gpt-4o"

	// DefaultEmbeddingModel is used when no embedding model is configured.
	DefaultEmbeddingModel = "text-embedding-3-large"

	// EmbeddingDimensions is the vector width produced by the embedding
	// model. Storage backends validate against this.
	EmbeddingDimensions = 3072
)

// Secret names resolved through the secret provider.
const (
	SecretEndpoint   = "OPENAI_ENDPOINT"
	SecretAPIKey     = "OPENAI_API_KEY"
	SecretAPIVersion = "OPENAI_API_VERSION"
)

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder converts texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// SecretSource resolves named secrets. Satisfied by *secrets.Provider.
type SecretSource interface {
	Get(name string) (string, error)
}

// Config carries the model selection and optional connection overrides.
type Config struct {
	ChatModel      string
	EmbeddingModel string

	// Endpoint and APIVersion override the secret-resolved values when
	// non-empty. An endpoint with an API version selects the Azure client.
	Endpoint   string
	APIVersion string
}

// Factory builds Generator and Embedder instances from resolved secrets.
type Factory struct {
	secrets SecretSource
	cfg     Config
	logger  log.Logger
}

// NewFactory creates a factory. Missing fields in cfg fall back to the
// package defaults.
func NewFactory(source SecretSource, cfg Config, logger log.Logger) *Factory {
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Factory{secrets: source, cfg: cfg, logger: logger}
}

// NewGenerator returns a chat completion client for the configured model.
func (f *Factory) NewGenerator() Generator {
	return &generator{client: f.newClient(), model: f.cfg.ChatModel}
}

// NewEmbedder returns an embedding client for the configured model.
func (f *Factory) NewEmbedder() Embedder {
	return &embedder{client: f.newClient(), model: f.cfg.EmbeddingModel}
}

// newClient resolves connection secrets and builds the underlying OpenAI
// client. Unresolvable secrets degrade to blank values with a warning.
func (f *Factory) newClient() openai.Client {
	endpoint := f.cfg.Endpoint
	if endpoint == "" {
		endpoint = f.resolve(SecretEndpoint)
	}
	apiVersion := f.cfg.APIVersion
	if apiVersion == "" {
		apiVersion = f.resolve(SecretAPIVersion)
	}
	apiKey := f.resolve(SecretAPIKey)

	var opts []option.RequestOption
	switch {
	case endpoint != "" && apiVersion != "":
		opts = append(opts,
			azure.WithEndpoint(endpoint, apiVersion),
			azure.WithAPIKey(apiKey),
		)
	case endpoint != "":
		opts = append(opts,
			option.WithBaseURL(endpoint),
			option.WithAPIKey(apiKey),
		)
	default:
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return openai.NewClient(opts...)
}

func (f *Factory) resolve(name string) string {
	if f.secrets == nil {
		return ""
	}
	value, err := f.secrets.Get(name)
	if err != nil {
		var notConfigured *secrets.SecretNotConfiguredError
		if errors.As(err, &notConfigured) {
			f.logger.Warn("connection secret not configured, client will use blank credentials",
				"secret", name)
		} else {
			f.logger.Warn("resolving connection secret failed, client will use blank credentials",
				"secret", name, "error", err)
		}
		return ""
	}
	return value
}
