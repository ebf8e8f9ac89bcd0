package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DodgyBadger/AssistantMD-sub001/pkg/config"
)

func TestDefault(t *testing.T) {
	t.Run("Should seed sane process-wide defaults", func(t *testing.T) {
		cfg := config.Default()
		assert.Equal(t, "UTC", cfg.Settings.Timezone)
		assert.Equal(t, "default", cfg.Settings.DefaultModelAlias)
		assert.Greater(t, cfg.Settings.SchedulerWorkerLimit, 0)
		assert.Empty(t, cfg.Models)
	})
}

func TestService_Validate(t *testing.T) {
	svc := config.NewService()

	t.Run("Should accept the default config", func(t *testing.T) {
		require.NoError(t, svc.Validate(config.Default()))
	})

	t.Run("Should reject an unresolvable timezone", func(t *testing.T) {
		cfg := config.Default()
		cfg.Settings.Timezone = "Not/AZone"
		err := svc.Validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
	})

	t.Run("Should reject a non-positive scheduler worker limit", func(t *testing.T) {
		cfg := config.Default()
		cfg.Settings.SchedulerWorkerLimit = 0
		err := svc.Validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scheduler_worker_limit")
	})

	t.Run("Should reject a model alias with no provider", func(t *testing.T) {
		cfg := config.Default()
		cfg.Models = map[string]config.ModelConfig{"default": {Model: "gpt-4o"}}
		err := svc.Validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "models.default")
	})
}

func TestManager_Load(t *testing.T) {
	t.Run("Should seed settings.yaml when missing and load it back", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "settings.yaml")

		mgr := config.NewManager(config.NewService())
		cfg, err := mgr.Load(context.Background(),
			config.NewDefaultProvider(),
			config.NewYAMLProvider(path),
		)
		require.NoError(t, err)
		assert.Equal(t, "UTC", cfg.Settings.Timezone)
		assert.FileExists(t, path)
		assert.Same(t, cfg, mgr.Get())
	})

	t.Run("Should layer a YAML override on top of defaults", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "settings.yaml")
		require.NoError(t, os.WriteFile(path, []byte("settings:\n  timezone: America/New_York\n"), 0o644))

		mgr := config.NewManager(config.NewService())
		cfg, err := mgr.Load(context.Background(),
			config.NewDefaultProvider(),
			config.NewYAMLProvider(path),
		)
		require.NoError(t, err)
		assert.Equal(t, "America/New_York", cfg.Settings.Timezone)
		assert.Equal(t, "default", cfg.Settings.DefaultModelAlias)
	})

	t.Run("Should let an env override win over the YAML file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "settings.yaml")
		require.NoError(t, os.WriteFile(path, []byte("settings:\n  log_level: info\n"), 0o644))
		t.Setenv("ASSISTANTMD_SETTINGS_LOG_LEVEL", "debug")

		mgr := config.NewManager(config.NewService())
		cfg, err := mgr.Load(context.Background(),
			config.NewDefaultProvider(),
			config.NewYAMLProvider(path),
			config.NewEnvProvider("ASSISTANTMD_"),
		)
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Settings.LogLevel)
	})

	t.Run("Should fail validation when the YAML file sets a bad timezone", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "settings.yaml")
		require.NoError(t, os.WriteFile(path, []byte("settings:\n  timezone: Nowhere/Place\n"), 0o644))

		mgr := config.NewManager(config.NewService())
		_, err := mgr.Load(context.Background(),
			config.NewDefaultProvider(),
			config.NewYAMLProvider(path),
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
	})
}

func TestLoadSecrets(t *testing.T) {
	t.Run("Should seed an empty secrets.yaml when missing", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "secrets.yaml")

		secrets, err := config.LoadSecrets(path)
		require.NoError(t, err)
		assert.Empty(t, secrets.Values)
		assert.FileExists(t, path)
	})

	t.Run("Should read back values already on disk", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "secrets.yaml")
		require.NoError(t, os.WriteFile(path, []byte("values:\n  openai: sk-test\n"), 0o600))

		secrets, err := config.LoadSecrets(path)
		require.NoError(t, err)
		assert.Equal(t, "sk-test", secrets.Values["openai"])
	})
}
