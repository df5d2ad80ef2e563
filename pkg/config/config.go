package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig holds derived runtime values that other packages may query
// at runtime (populated during startup after merging env+file).
type RuntimeConfig struct {
	BackendKeys  map[string]struct{}
	FrontendKeys map[string]struct{}
	AdminKeys    map[string]struct{}
}

var (
	runtimeMu  sync.RWMutex
	runtimeCfg *RuntimeConfig
)

// SetRuntime sets the canonical runtime config used by the running server.
func SetRuntime(rc *RuntimeConfig) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	runtimeCfg = rc
}

// GetRuntime returns the active runtime config, or nil before SetRuntime.
func GetRuntime() *RuntimeConfig {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	return runtimeCfg
}

// GetBackendKeys returns a copy of configured backend keys.
func GetBackendKeys() map[string]struct{} {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	out := map[string]struct{}{}
	if runtimeCfg == nil || runtimeCfg.BackendKeys == nil {
		return out
	}
	for k := range runtimeCfg.BackendKeys {
		out[k] = struct{}{}
	}
	return out
}

// FieldRule describes a typed validation constraint for a JSON path.
type FieldRule struct {
	Path string `yaml:"path"`
	Type string `yaml:"type"` // string|number|boolean|object|array
}

type Config struct {
	Server struct {
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`
		TLS     struct {
			CertFile string `yaml:"cert_file"`
			KeyFile  string `yaml:"key_file"`
		} `yaml:"tls"`
	} `yaml:"server"`
	Storage struct {
		DBPath   string `yaml:"db_path"`
		DataDir  string `yaml:"data_dir"`
		PlotsDir string `yaml:"plots_dir"`
	} `yaml:"storage"`
	LLM struct {
		Provider       string `yaml:"provider"` // openai|openai_compatible|anthropic
		APIKey         string `yaml:"api_key"`
		BaseURL        string `yaml:"base_url"`
		Model          string `yaml:"model"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"llm"`
	Embedding struct {
		Provider string `yaml:"provider"` // openai|ollama
		APIKey   string `yaml:"api_key"`
		BaseURL  string `yaml:"base_url"`
		Endpoint string `yaml:"endpoint"` // ollama HTTP endpoint
		Model    string `yaml:"model"`
	} `yaml:"embedding"`
	Sandbox struct {
		Enabled        bool   `yaml:"enabled"`
		Interpreter    string `yaml:"interpreter"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"sandbox"`
	Ingest struct {
		QueueCapacity int    `yaml:"queue_capacity"`
		Workers       int    `yaml:"workers"`
		DriveMirror   string `yaml:"drive_mirror"`
		BoxMirror     string `yaml:"box_mirror"`
	} `yaml:"ingest"`
	Retention struct {
		Enabled bool   `yaml:"enabled"`
		Cron    string `yaml:"cron"`
		MaxIdle string `yaml:"max_idle"` // Go duration, e.g. "720h"
		Reindex bool   `yaml:"reindex"`
	} `yaml:"retention"`
	Security struct {
		CORS struct {
			AllowedOrigins []string `yaml:"allowed_origins"`
		} `yaml:"cors"`
		RateLimit struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
		IPWhitelist []string `yaml:"ip_whitelist"`
		APIKeys     struct {
			Backend     []string `yaml:"backend"`
			Frontend    []string `yaml:"frontend"`
			Admin       []string `yaml:"admin"`
			AllowUnauth bool     `yaml:"allow_unauth"`
		} `yaml:"api_keys"`
	} `yaml:"security"`
	Logging struct {
		Level           string  `yaml:"level"`
		Format          string  `yaml:"format"` // text|json
		TraceSampleRate float64 `yaml:"trace_sample_rate"`
		SlowRequestMS   int     `yaml:"slow_request_ms"`
	} `yaml:"logging"`
	Validation struct {
		Required []string    `yaml:"required"`
		Types    []FieldRule `yaml:"types"`
		MaxLen   []struct {
			Path string `yaml:"path"`
			Max  int    `yaml:"max"`
		} `yaml:"max_len"`
		Enums []struct {
			Path   string   `yaml:"path"`
			Values []string `yaml:"values"`
		} `yaml:"enums"`
	} `yaml:"validation"`
}

// EffectiveConfigResult bundles the merged config with the resolved listen
// address, DB path and a short description of where values came from.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string
}

/// Addr returns host:port for HTTP server.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// LLMTimeout returns the configured LLM call deadline.
func (c *Config) LLMTimeout() time.Duration {
	if c.LLM.TimeoutSeconds > 0 {
		return time.Duration(c.LLM.TimeoutSeconds) * time.Second
	}
	return 60 * time.Second
}

// SandboxTimeout returns the configured interpreter deadline.
func (c *Config) SandboxTimeout() time.Duration {
	if c.Sandbox.TimeoutSeconds > 0 {
		return time.Duration(c.Sandbox.TimeoutSeconds) * time.Second
	}
	return 30 * time.Second
}

// RetentionMaxIdle parses the configured idle cutoff, defaulting to 30 days.
func (c *Config) RetentionMaxIdle() time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(c.Retention.MaxIdle)); err == nil && d > 0 {
		return d
	}
	return 30 * 24 * time.Hour
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseCommandFlags defines and parses command-line flags and returns their
// values along with a map indicating which flags were explicitly set.
func ParseCommandFlags() (addr string, dbPath string, dataDir string, cfgPath string, setFlags map[string]bool) {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.database", "Pebble DB path")
	dataPtr := flag.String("data", "./data", "Data directory to index")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *addrPtr, *dbPtr, *dataPtr, *cfgPtr, setFlags
}

// LoadEnvOverrides applies environment overrides onto the provided cfg and
// returns the derived backend key map plus whether env vars were used.
func LoadEnvOverrides(cfg *Config) (map[string]struct{}, bool) {
	envUsed := false
	parseList := func(v string) []string {
		if v == "" {
			return nil
		}
		parts := []string{}
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				parts = append(parts, s)
			}
		}
		return parts
	}

	if v := os.Getenv("LABVERSE_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	} else {
		if host := os.Getenv("LABVERSE_ADDRESS"); host != "" {
			envUsed = true
			cfg.Server.Address = host
		}
		if port := os.Getenv("LABVERSE_PORT"); port != "" {
			envUsed = true
			if pi, err := strconv.Atoi(port); err == nil {
				cfg.Server.Port = pi
			}
		}
	}

	if v := os.Getenv("LABVERSE_DB_PATH"); v != "" {
		envUsed = true
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("LABVERSE_DATA_DIR"); v != "" {
		envUsed = true
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("LABVERSE_PLOTS_DIR"); v != "" {
		envUsed = true
		cfg.Storage.PlotsDir = v
	}

	// LLM settings. The bare OPENAI_API_KEY / ANTHROPIC_API_KEY names are
	// honored as fallbacks since every SDK and deployment guide uses them.
	if v := os.Getenv("LABVERSE_LLM_PROVIDER"); v != "" {
		envUsed = true
		cfg.LLM.Provider = strings.TrimSpace(v)
	}
	if v := os.Getenv("LABVERSE_LLM_API_KEY"); v != "" {
		envUsed = true
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LABVERSE_LLM_BASE_URL"); v != "" {
		envUsed = true
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LABVERSE_LLM_MODEL"); v != "" {
		envUsed = true
		cfg.LLM.Model = v
	}
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "anthropic":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		default:
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	if v := os.Getenv("LABVERSE_EMBEDDING_PROVIDER"); v != "" {
		envUsed = true
		cfg.Embedding.Provider = strings.TrimSpace(v)
	}
	if v := os.Getenv("LABVERSE_EMBEDDING_ENDPOINT"); v != "" {
		envUsed = true
		cfg.Embedding.Endpoint = v
	}
	if v := os.Getenv("LABVERSE_EMBEDDING_MODEL"); v != "" {
		envUsed = true
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("LABVERSE_EMBEDDING_API_KEY"); v != "" {
		envUsed = true
		cfg.Embedding.APIKey = v
	}

	if v := os.Getenv("LABVERSE_INGEST_DRIVE_MIRROR"); v != "" {
		envUsed = true
		cfg.Ingest.DriveMirror = v
	}
	if v := os.Getenv("LABVERSE_INGEST_BOX_MIRROR"); v != "" {
		envUsed = true
		cfg.Ingest.BoxMirror = v
	}

	if v := os.Getenv("LABVERSE_CORS_ORIGINS"); v != "" {
		envUsed = true
		cfg.Security.CORS.AllowedOrigins = parseList(v)
	}
	if v := os.Getenv("LABVERSE_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			cfg.Security.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("LABVERSE_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Security.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("LABVERSE_IP_WHITELIST"); v != "" {
		envUsed = true
		cfg.Security.IPWhitelist = parseList(v)
	}
	if v := os.Getenv("LABVERSE_API_BACKEND_KEYS"); v != "" {
		envUsed = true
		cfg.Security.APIKeys.Backend = parseList(v)
	}
	if v := os.Getenv("LABVERSE_API_FRONTEND_KEYS"); v != "" {
		envUsed = true
		cfg.Security.APIKeys.Frontend = parseList(v)
	}
	if v := os.Getenv("LABVERSE_API_ADMIN_KEYS"); v != "" {
		envUsed = true
		cfg.Security.APIKeys.Admin = parseList(v)
	}
	if v := os.Getenv("LABVERSE_API_ALLOW_UNAUTH"); v != "" {
		envUsed = true
		vl := strings.ToLower(strings.TrimSpace(v))
		cfg.Security.APIKeys.AllowUnauth = vl == "1" || vl == "true" || vl == "yes"
	}

	if c := os.Getenv("LABVERSE_TLS_CERT"); c != "" {
		envUsed = true
		cfg.Server.TLS.CertFile = c
	}
	if k := os.Getenv("LABVERSE_TLS_KEY"); k != "" {
		envUsed = true
		cfg.Server.TLS.KeyFile = k
	}

	backendKeys := map[string]struct{}{}
	for _, k := range cfg.Security.APIKeys.Backend {
		backendKeys[k] = struct{}{}
	}
	return backendKeys, envUsed
}

// LoadEffective loads config from the given path (file) and applies environment
// overrides. It returns the effective config, the backend key map and a boolean
// indicating whether env vars were used.
func LoadEffective(path string) (*Config, map[string]struct{}, bool, error) {
	cfg, err := Load(path)
	if err != nil {
		cfg = &Config{}
	}
	backendKeys, envUsed := LoadEnvOverrides(cfg)
	return cfg, backendKeys, envUsed, nil
}

// ResolveConfigPath decides the config file path using the flag-provided value
// and the environment variable `LABVERSE_CONFIG` when the flag was not set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("LABVERSE_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
