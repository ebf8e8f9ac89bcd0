// Package config implements the Settings/Secrets loader (spec §6): a
// koanf-based Manager/Provider composition that layers a typed Settings
// struct's defaults under a YAML file and an environment-variable
// overlay, mirroring the teacher's pkg/config Manager/Service/Provider
// shape (NewManager(NewService()), m.Load(ctx, providers...), m.Get()).
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/core"
)

// ModelConfig is one `models:` entry in settings.yaml (spec §6): an alias
// resolved against a provider plus the provider's own model string.
type ModelConfig struct {
	Provider string `yaml:"provider" koanf:"provider"`
	Model    string `yaml:"model" koanf:"model"`
	APIURL   string `yaml:"api_url,omitempty" koanf:"api_url"`
}

// ProviderConfig is one `providers:` entry: which secret key in
// secrets.yaml carries its credential.
type ProviderConfig struct {
	SecretKey string `yaml:"secret_key" koanf:"secret_key"`
}

// ToolConfig is one `tools:` registry entry: whether a concrete tool
// implementation (out of scope per §1) is enabled for use in `@tools`.
type ToolConfig struct {
	Enabled bool           `yaml:"enabled" koanf:"enabled"`
	Options map[string]any `yaml:"options,omitempty" koanf:"options"`
}

// GeneralSettings is the `settings:` section: process-wide knobs outside
// the models/providers/tools registries.
type GeneralSettings struct {
	Timezone             string        `yaml:"timezone" koanf:"timezone"`
	DefaultModelAlias     string        `yaml:"default_model_alias" koanf:"default_model_alias"`
	SchedulerWorkerLimit  int           `yaml:"scheduler_worker_limit" koanf:"scheduler_worker_limit"`
	SchedulerTickInterval time.Duration `yaml:"scheduler_tick_interval" koanf:"scheduler_tick_interval"`
	CallDeadline          time.Duration `yaml:"call_deadline" koanf:"call_deadline"`
	LogLevel              string        `yaml:"log_level" koanf:"log_level"`
}

// Settings is the root of settings.yaml (spec §6's "Recognized sections:
// settings, models, providers, tools").
type Settings struct {
	Settings  GeneralSettings           `yaml:"settings" koanf:"settings"`
	Models    map[string]ModelConfig    `yaml:"models" koanf:"models"`
	Providers map[string]ProviderConfig `yaml:"providers" koanf:"providers"`
	Tools     map[string]ToolConfig     `yaml:"tools" koanf:"tools"`
}

// Default returns the seed configuration written to a fresh settings.yaml
// when none exists (spec §6 "seeded from a template if missing").
func Default() *Settings {
	return &Settings{
		Settings: GeneralSettings{
			Timezone:              "UTC",
			DefaultModelAlias:     "default",
			SchedulerWorkerLimit:  4,
			SchedulerTickInterval: 30 * time.Second,
			CallDeadline:          90 * time.Second,
			LogLevel:              "info",
		},
		Models:    map[string]ModelConfig{},
		Providers: map[string]ProviderConfig{},
		Tools:     map[string]ToolConfig{},
	}
}

// Secrets is the root of secrets.yaml: a flat key->value bag, pointed to
// by ProviderConfig.SecretKey.
type Secrets struct {
	Values map[string]string `yaml:"values" koanf:"values"`
}

// Service validates a loaded Settings, mirroring the teacher's
// config.Service.Validate.
type Service struct{}

// NewService builds a validating Service.
func NewService() *Service { return &Service{} }

// Validate checks the loaded Settings for the invariants §6/§4.K/§4.G
// depend on: a resolvable timezone, a positive worker limit, and that
// every model alias names a provider and a model string. Whether that
// provider has a `providers:` entry is not checked.
func (s *Service) Validate(cfg *Settings) error {
	if cfg == nil {
		return fmt.Errorf("config: validation failed: settings is nil")
	}
	if _, err := time.LoadLocation(cfg.Settings.Timezone); err != nil {
		return fmt.Errorf("config: validation failed: settings.timezone %q: %w", cfg.Settings.Timezone, err)
	}
	if cfg.Settings.SchedulerWorkerLimit <= 0 {
		return fmt.Errorf("config: validation failed: settings.scheduler_worker_limit must be positive")
	}
	for alias, m := range cfg.Models {
		if m.Provider == "" {
			return fmt.Errorf("config: validation failed: models.%s has no provider", alias)
		}
		if m.Model == "" {
			return fmt.Errorf("config: validation failed: models.%s has no model string", alias)
		}
	}
	return nil
}

// Provider is one koanf-compatible configuration source, matching the
// teacher's NewDefaultProvider/NewEnvProvider/NewYAMLProvider seam.
type Provider interface {
	// Apply layers this provider's values onto k.
	Apply(k *koanf.Koanf) error
	// Name identifies this provider for SourceType bookkeeping.
	Name() SourceType
}

// SourceType names where one configuration value came from, for the
// "config show --sources" style diagnostics the teacher's CLI surfaces.
type SourceType string

const (
	SourceDefault SourceType = "default"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
)

type defaultProvider struct{}

// NewDefaultProvider seeds k with Default()'s values.
func NewDefaultProvider() Provider { return defaultProvider{} }

func (defaultProvider) Name() SourceType { return SourceDefault }

func (defaultProvider) Apply(k *koanf.Koanf) error {
	return k.Load(structs.Provider(Default(), "koanf"), nil)
}

type yamlFileProvider struct {
	path string
}

// NewYAMLProvider loads path (settings.yaml) as a YAML overlay. If the
// file does not exist, it is seeded from Default() first (spec §6
// "Missing settings/secrets files are seeded from an embedded template").
func NewYAMLProvider(path string) Provider { return yamlFileProvider{path: path} }

func (yamlFileProvider) Name() SourceType { return SourceYAML }

func (p yamlFileProvider) Apply(k *koanf.Koanf) error {
	if err := ensureSeeded(p.path); err != nil {
		return err
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return core.NewError(err, core.CodeConfigRepairNeeded, map[string]any{"path": p.path})
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return core.NewError(err, core.CodeConfigRepairNeeded, map[string]any{"path": p.path})
	}
	return k.Load(mapProvider(raw), nil)
}

// mapProvider is a minimal koanf.Provider over an already-decoded map,
// used to feed the YAML file's contents into koanf without adding a
// separate confmap module dependency the teacher's go.mod doesn't carry.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("config: mapProvider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	return map[string]any(m), nil
}

type envProvider struct{ prefix string }

// NewEnvProvider overlays environment variables prefixed with prefix
// (e.g. "ASSISTANTMD_") onto k, `_`-delimited into nested keys
// ("ASSISTANTMD_SETTINGS_LOG_LEVEL" -> settings.log_level).
func NewEnvProvider(prefix string) Provider { return envProvider{prefix: prefix} }

func (envProvider) Name() SourceType { return SourceEnv }

func (p envProvider) Apply(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: p.prefix,
		TransformFunc: func(key, value string) (string, any) {
			return envKeyToPath(key, p.prefix), value
		},
	}), nil)
}

// Manager composes Providers over koanf and exposes the resolved,
// validated Settings (spec §6; teacher: pkg/config.Manager).
type Manager struct {
	mu      sync.RWMutex
	service *Service
	k       *koanf.Koanf
	cfg     *Settings
}

// NewManager builds a Manager backed by svc for validation.
func NewManager(svc *Service) *Manager {
	return &Manager{service: svc, k: koanf.New(".")}
}

// Load applies every provider in order (later providers win), unmarshals
// into a Settings, validates it, and caches the result for Get.
func (m *Manager) Load(_ context.Context, providers ...Provider) (*Settings, error) {
	k := koanf.New(".")
	for _, p := range providers {
		if err := p.Apply(k); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", p.Name(), err)
		}
	}
	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := m.service.Validate(cfg); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.k = k
	m.cfg = cfg
	m.mu.Unlock()
	return cfg, nil
}

// Get returns the last successfully Load-ed Settings, or nil if Load has
// never succeeded.
func (m *Manager) Get() *Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Close releases any resources the Manager holds. Koanf itself needs
// none; this exists to mirror the teacher's Manager.Close(ctx) lifecycle
// hook so callers can defer it uniformly.
func (m *Manager) Close(_ context.Context) error { return nil }

// LoadSecrets reads secrets.yaml (seeding it from an empty template if
// missing, same as settings.yaml).
func LoadSecrets(path string) (*Secrets, error) {
	if err := ensureSeededSecrets(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.NewError(err, core.CodeConfigRepairNeeded, map[string]any{"path": path})
	}
	var s Secrets
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, core.NewError(err, core.CodeConfigRepairNeeded, map[string]any{"path": path})
	}
	if s.Values == nil {
		s.Values = map[string]string{}
	}
	return &s, nil
}

// envKeyToPath lowercases a prefixed, underscore-delimited env var name
// into a koanf dotted path ("ASSISTANTMD_SETTINGS_LOG_LEVEL" with prefix
// "ASSISTANTMD_" -> "settings.log_level"). Only the first underscore
// after the prefix splits a section from its (possibly multi-word) key,
// matching the two-level settings/models/providers/tools.* shape above.
func envKeyToPath(key, prefix string) string {
	trimmed := strings.TrimPrefix(key, prefix)
	trimmed = strings.ToLower(trimmed)
	return strings.Replace(trimmed, "_", ".", 1)
}

func ensureSeeded(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return core.NewError(err, core.CodeConfigRepairNeeded, map[string]any{"path": path})
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return core.NewError(err, core.CodeConfigRepairNeeded, map[string]any{"path": path})
	}
	out, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

func ensureSeededSecrets(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return core.NewError(err, core.CodeConfigRepairNeeded, map[string]any{"path": path})
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return core.NewError(err, core.CodeConfigRepairNeeded, map[string]any{"path": path})
	}
	out, err := yaml.Marshal(&Secrets{Values: map[string]string{}})
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}
