package banner

import (
	"fmt"

	"github.com/sidharthgd/LabVerse/pkg/config"
)

const banner = `
██╗      █████╗ ██████╗ ██╗   ██╗███████╗██████╗ ███████╗███████╗
██║     ██╔══██╗██╔══██╗██║   ██║██╔════╝██╔══██╗██╔════╝██╔════╝
██║     ███████║██████╔╝██║   ██║█████╗  ██████╔╝███████╗█████╗
██║     ██╔══██║██╔══██╗╚██╗ ██╔╝██╔══╝  ██╔══██╗╚════██║██╔══╝
███████╗██║  ██║██████╔╝ ╚████╔╝ ███████╗██║  ██║███████║███████╗
╚══════╝╚═╝  ╚═╝╚═════╝   ╚═══╝  ╚══════╝╚═╝  ╚═╝╚══════╝╚══════╝
`

// PrintWithEff prints the banner using an EffectiveConfigResult which
// provides richer context (config, addr, dbpath, source).
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	dbPath := eff.DBPath
	if dbPath == "" && eff.Config != nil {
		dbPath = eff.Config.Storage.DBPath
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config: %s\n", src)

	fmt.Println("\n== Examples ===================================================")
	fmt.Println(`curl -X POST 'http://<host>:<port>/api/v1/query' -d '{"query": "plot temperature vs time from results.csv"}'`)
	fmt.Println("curl 'http://<host>:<port>/api/v1/files'")
	fmt.Println("\n== Production? =================================================")
	be := 0
	fe := 0
	ak := 0
	if eff.Config != nil {
		be = len(eff.Config.Security.APIKeys.Backend)
		fe = len(eff.Config.Security.APIKeys.Frontend)
		ak = len(eff.Config.Security.APIKeys.Admin)
	}
	if be > 0 {
		fmt.Printf("- Backend API keys: OK (%d)\n", be)
	} else {
		fmt.Println("- Backend API keys: MISSING (required for backend services)")
	}
	if fe > 0 {
		fmt.Printf("- Frontend API keys: OK (%d)\n", fe)
	} else {
		fmt.Println("- Frontend API keys: MISSING (required for client access)")
	}
	if ak > 0 {
		fmt.Printf("- Admin API keys: OK (%d)\n", ak)
	} else {
		fmt.Println("- Admin API keys: MISSING (required for admin tooling)")
	}
	if eff.Config != nil && eff.Config.Security.APIKeys.AllowUnauth {
		fmt.Println("- Auth: DISABLED (allow_unauth is set; do not expose this instance)")
	}

	tlsOK := eff.Config != nil && eff.Config.Server.TLS.CertFile != "" && eff.Config.Server.TLS.KeyFile != ""
	if tlsOK {
		fmt.Println("- TLS: configured")
	} else {
		fmt.Println("- TLS: unconfigured")
	}

	if dbPath != "" {
		fmt.Printf("- DB Path: %s\n", dbPath)
	} else {
		fmt.Println("- DB Path: not set (use --db or LABVERSE_DB_PATH)")
	}

	if eff.Config != nil && eff.Config.LLM.Provider != "" {
		model := eff.Config.LLM.Model
		if model == "" {
			model = "default"
		}
		fmt.Printf("- LLM: %s (%s)\n", eff.Config.LLM.Provider, model)
	} else {
		fmt.Println("- LLM: unconfigured (catalog lookups only; set llm.provider)")
	}

	if eff.Config != nil && eff.Config.Embedding.Provider != "" {
		fmt.Printf("- Embeddings: %s\n", eff.Config.Embedding.Provider)
	} else {
		fmt.Println("- Embeddings: ollama (default; ensure the daemon is running)")
	}

	retEnabled := false
	retInfo := ""
	if eff.Config != nil {
		retEnabled = eff.Config.Retention.Enabled
		if retEnabled && eff.Config.Retention.Cron != "" {
			retInfo = "cron=" + eff.Config.Retention.Cron
		}
	}
	if retEnabled {
		if retInfo != "" {
			fmt.Printf("- Retention: enabled (%s)\n", retInfo)
		} else {
			fmt.Println("- Retention: enabled")
		}
	} else {
		fmt.Println("- Retention: disabled")
	}

	fmt.Println("\n== Logs: =================================================")
}
