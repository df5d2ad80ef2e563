package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadYAMLConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	content := `
server:
  address: 127.0.0.1
  port: 9090
storage:
  db_path: /tmp/lv-db
  data_dir: /tmp/lv-data
llm:
  provider: openai
  model: gpt-4o-mini
retention:
  enabled: true
  cron: "0 3 * * *"
`
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.Address != "127.0.0.1" {
		t.Fatalf("server section not parsed: %+v", cfg.Server)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("unexpected addr %s", cfg.Addr())
	}
	if cfg.Storage.DBPath != "/tmp/lv-db" {
		t.Fatalf("storage section not parsed: %+v", cfg.Storage)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-4o-mini" {
		t.Fatalf("llm section not parsed: %+v", cfg.LLM)
	}
	if !cfg.Retention.Enabled || cfg.Retention.Cron != "0 3 * * *" {
		t.Fatalf("retention section not parsed: %+v", cfg.Retention)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LABVERSE_ADDR", "0.0.0.0:7070")
	t.Setenv("LABVERSE_DB_PATH", "/env/db")
	t.Setenv("LABVERSE_LLM_PROVIDER", "anthropic")
	t.Setenv("LABVERSE_API_BACKEND_KEYS", "k1, k2")
	t.Setenv("LABVERSE_API_ALLOW_UNAUTH", "true")

	cfg := &Config{}
	backendKeys, envUsed := LoadEnvOverrides(cfg)
	if !envUsed {
		t.Fatalf("expected envUsed")
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("addr override failed: %+v", cfg.Server)
	}
	if cfg.Storage.DBPath != "/env/db" {
		t.Fatalf("db path override failed: %+v", cfg.Storage)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Fatalf("llm provider override failed: %+v", cfg.LLM)
	}
	if len(backendKeys) != 2 {
		t.Fatalf("expected 2 backend keys, got %v", backendKeys)
	}
	if !cfg.Security.APIKeys.AllowUnauth {
		t.Fatalf("allow_unauth override failed")
	}
}

func TestAnthropicKeyFallback(t *testing.T) {
	t.Setenv("LABVERSE_LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("OPENAI_API_KEY", "sk-oa-test")

	cfg := &Config{}
	_, _ = LoadEnvOverrides(cfg)
	if cfg.LLM.APIKey != "sk-ant-test" {
		t.Fatalf("expected anthropic key picked, got %q", cfg.LLM.APIKey)
	}
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("unexpected default addr %s", cfg.Addr())
	}
	if cfg.LLMTimeout() != 60*time.Second {
		t.Fatalf("unexpected default llm timeout %s", cfg.LLMTimeout())
	}
	if cfg.SandboxTimeout() != 30*time.Second {
		t.Fatalf("unexpected default sandbox timeout %s", cfg.SandboxTimeout())
	}
	if cfg.RetentionMaxIdle() != 30*24*time.Hour {
		t.Fatalf("unexpected default retention idle %s", cfg.RetentionMaxIdle())
	}
}

func TestResolveConfigPath(t *testing.T) {
	if got := ResolveConfigPath("/flag/path.yaml", true); got != "/flag/path.yaml" {
		t.Fatalf("flag should win, got %s", got)
	}
	t.Setenv("LABVERSE_CONFIG", "/env/path.yaml")
	if got := ResolveConfigPath("./config.yaml", false); got != "/env/path.yaml" {
		t.Fatalf("env should win over default, got %s", got)
	}
}

func TestRuntimeKeys(t *testing.T) {
	SetRuntime(&RuntimeConfig{BackendKeys: map[string]struct{}{"bk": {}}})
	t.Cleanup(func() { SetRuntime(nil) })

	keys := GetBackendKeys()
	if _, ok := keys["bk"]; !ok {
		t.Fatalf("backend key missing: %v", keys)
	}
	if GetRuntime() == nil {
		t.Fatalf("expected runtime config set")
	}
}
