// Package provider builds the `@model` alias -> llmadapter.LLMClient
// registry the LLM Gateway resolves against (spec §6: "models: alias ->
// provider/model-string" in settings.yaml).
package provider

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/llmadapter"
)

// Name identifies a supported backend, mirroring the teacher's
// core.ProviderName enumeration.
type Name string

const (
	OpenAI    Name = "openai"
	Anthropic Name = "anthropic"
	Groq      Name = "groq"
	Google    Name = "google"
	Ollama    Name = "ollama"
	DeepSeek  Name = "deepseek"
	XAI       Name = "xai"
)

// Config is one `models:` entry in settings.yaml, keyed by alias.
type Config struct {
	Provider Name
	Model    string
	APIKey   string
	APIURL   string
}

// NewClient constructs the langchaingo model for cfg and wraps it as an
// llmadapter.LLMClient. Mirrors engine/core/provider.go's CreateLLM
// provider switch, minus response-format/organization knobs AssistantMD
// has no settings surface for.
func NewClient(cfg Config) (llmadapter.LLMClient, error) {
	switch cfg.Provider {
	case OpenAI:
		opts := []openai.Option{openai.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.APIURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.APIURL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("provider: openai: %w", err)
		}
		return llmadapter.NewLangChainAdapter(model), nil
	case Anthropic:
		opts := []anthropic.Option{anthropic.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, anthropic.WithToken(cfg.APIKey))
		}
		model, err := anthropic.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("provider: anthropic: %w", err)
		}
		return llmadapter.NewLangChainAdapter(model), nil
	case Groq:
		baseURL := "https://api.groq.com/openai/v1"
		if cfg.APIURL != "" {
			baseURL = cfg.APIURL
		}
		opts := []openai.Option{openai.WithModel(cfg.Model), openai.WithBaseURL(baseURL)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("provider: groq: %w", err)
		}
		return llmadapter.NewLangChainAdapter(model), nil
	case DeepSeek:
		baseURL := "https://api.deepseek.com/v1"
		if cfg.APIURL != "" {
			baseURL = cfg.APIURL
		}
		opts := []openai.Option{openai.WithModel(cfg.Model), openai.WithBaseURL(baseURL)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("provider: deepseek: %w", err)
		}
		return llmadapter.NewLangChainAdapter(model), nil
	case XAI:
		baseURL := "https://api.x.ai/v1"
		if cfg.APIURL != "" {
			baseURL = cfg.APIURL
		}
		opts := []openai.Option{openai.WithModel(cfg.Model), openai.WithBaseURL(baseURL)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("provider: xai: %w", err)
		}
		return llmadapter.NewLangChainAdapter(model), nil
	case Ollama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.APIURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.APIURL))
		}
		model, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("provider: ollama: %w", err)
		}
		return llmadapter.NewLangChainAdapter(model), nil
	case Google:
		opts := []googleai.Option{googleai.WithDefaultModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, googleai.WithAPIKey(cfg.APIKey))
		}
		model, err := googleai.New(context.Background(), opts...)
		if err != nil {
			return nil, fmt.Errorf("provider: google: %w", err)
		}
		return llmadapter.NewLangChainAdapter(model), nil
	default:
		return nil, fmt.Errorf("provider: unsupported provider %q", cfg.Provider)
	}
}

// Registry resolves a step's `@model` alias to a constructed client,
// built once at bootstrap/reload from settings.yaml's `models:` map.
type Registry struct {
	clients map[string]llmadapter.LLMClient
	aliases map[string]string // alias -> configured model id
}

// NewRegistry constructs every configured alias's client eagerly, so a
// misconfigured provider surfaces at bootstrap rather than mid-run.
func NewRegistry(configs map[string]Config) (*Registry, error) {
	reg := &Registry{clients: make(map[string]llmadapter.LLMClient, len(configs)), aliases: make(map[string]string, len(configs))}
	for alias, cfg := range configs {
		client, err := NewClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("provider: alias %q: %w", alias, err)
		}
		reg.clients[alias] = client
		reg.aliases[alias] = cfg.Model
	}
	return reg, nil
}

// Client resolves alias to its configured LLMClient.
func (r *Registry) Client(alias string) (llmadapter.LLMClient, bool) {
	c, ok := r.clients[alias]
	return c, ok
}

// Clients returns every configured alias's client, for handing the whole
// registry to a fresh llm.Gateway (spec §4.L rebuilds a Gateway per vault
// on reload).
func (r *Registry) Clients() map[string]llmadapter.LLMClient {
	out := make(map[string]llmadapter.LLMClient, len(r.clients))
	for alias, c := range r.clients {
		out[alias] = c
	}
	return out
}
