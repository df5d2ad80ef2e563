package app

import (
	"fmt"
	"os"

	"github.com/sidharthgd/LabVerse/pkg/config"
)

// validateConfig fails fast on configurations the server cannot run with.
func validateConfig(eff config.EffectiveConfigResult) error {
	if eff.DBPath == "" {
		return fmt.Errorf("database path is required (flag -db, env LABVERSE_DB_PATH or storage.db_path)")
	}

	tls := eff.Config.Server.TLS
	if (tls.CertFile == "") != (tls.KeyFile == "") {
		return fmt.Errorf("TLS requires both cert_file and key_file")
	}
	if tls.CertFile != "" {
		if _, err := os.Stat(tls.CertFile); err != nil {
			return fmt.Errorf("TLS cert file %s: %w", tls.CertFile, err)
		}
		if _, err := os.Stat(tls.KeyFile); err != nil {
			return fmt.Errorf("TLS key file %s: %w", tls.KeyFile, err)
		}
	}

	switch eff.Config.LLM.Provider {
	case "", "openai", "openai_compatible", "anthropic":
	default:
		return fmt.Errorf("unknown llm provider %q", eff.Config.LLM.Provider)
	}
	switch eff.Config.Embedding.Provider {
	case "", "ollama", "openai", "openai_compatible":
	default:
		return fmt.Errorf("unknown embedding provider %q", eff.Config.Embedding.Provider)
	}

	if eff.Config.Ingest.Workers < 0 {
		return fmt.Errorf("ingest.workers must be >= 0")
	}
	return nil
}
