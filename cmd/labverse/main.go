package main

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/joho/godotenv"

	"github.com/sidharthgd/LabVerse/internal/app"
	"github.com/sidharthgd/LabVerse/pkg/config"
	"github.com/sidharthgd/LabVerse/pkg/logger"
	"github.com/sidharthgd/LabVerse/pkg/shutdown"
)

// set via -ldflags "-X main.version=... -X main.commit=... -X main.buildDate=..."
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")

	addrFlag, dbFlag, dataFlag, cfgFlag, setFlags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(cfgFlag, setFlags["config"])
	cfg, _, envUsed, err := config.LoadEffective(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.InitWithOptions(cfg.Logging.Level, cfg.Logging.Format)

	// flags win over config file and env
	if setFlags["addr"] {
		if host, port, err := net.SplitHostPort(addrFlag); err == nil {
			cfg.Server.Address = host
			cfg.Server.Port = atoiOr(port, 8080)
		}
	}
	if setFlags["db"] || cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = dbFlag
	}
	if setFlags["data"] || cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = dataFlag
	}

	source := "defaults"
	switch {
	case cfgPath != "" && fileExists(cfgPath) && envUsed:
		source = "config+env"
	case cfgPath != "" && fileExists(cfgPath):
		source = "config"
	case envUsed:
		source = "env"
	}

	eff := config.EffectiveConfigResult{
		Config: cfg,
		Addr:   cfg.Addr(),
		DBPath: cfg.Storage.DBPath,
		Source: source,
	}

	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		shutdown.Abort("startup failed", err, eff.DBPath, 0)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	logger.Info("starting", "version", version, "commit", commit, "build_date", buildDate)
	if err := a.Run(ctx); err != nil {
		shutdown.Abort("server terminated", err, eff.DBPath, 0)
	}
	logger.Sync()
}

func atoiOr(s string, def int) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return def
		}
		n = n*10 + int(c-'0')
	}
	if n == 0 {
		return def
	}
	return n
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}
