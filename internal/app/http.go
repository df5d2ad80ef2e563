package app

import (
	"context"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/sidharthgd/LabVerse/pkg/api/handlers"
	"github.com/sidharthgd/LabVerse/pkg/banner"
	"github.com/sidharthgd/LabVerse/pkg/config"
	"github.com/sidharthgd/LabVerse/pkg/logger"
	"github.com/sidharthgd/LabVerse/pkg/security"
	"github.com/sidharthgd/LabVerse/pkg/telemetry"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupHTTPHandlers builds the full route tree: the versioned API, the
// legacy chat surface, liveness and metrics endpoints and the docs UI.
func (a *App) setupHTTPHandlers() http.Handler {
	handlers.Configure(handlers.Deps{
		Assistant: a.assistant,
		Sessions:  a.sessions,
		Index:     a.index,
		Queue:     a.queue,
		Sources:   a.sources,
		DataDir:   a.eff.Config.Storage.DataDir,
		Version:   a.version,
	})

	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	handlers.RegisterAPI(api)
	handlers.RegisterLegacy(r)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.PathPrefix("/static/plots/").Handler(
		http.StripPrefix("/static/plots/", http.FileServer(http.Dir(a.eff.Config.Storage.PlotsDir))))

	r.PathPrefix("/docs/").Handler(httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	r.PathPrefix("/openapi.yaml").Handler(http.FileServer(http.Dir("./docs")))
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

// startHTTP wires middleware, starts the listener in a goroutine and returns
// a channel that receives the terminal server error (if any).
func (a *App) startHTTP(ctx context.Context) <-chan error {
	rt := config.GetRuntime()
	sec := security.SecConfig{
		AllowedOrigins: a.eff.Config.Security.CORS.AllowedOrigins,
		RPS:            a.eff.Config.Security.RateLimit.RPS,
		Burst:          a.eff.Config.Security.RateLimit.Burst,
		IPWhitelist:    a.eff.Config.Security.IPWhitelist,
		AllowUnauth:    a.eff.Config.Security.APIKeys.AllowUnauth,
	}
	if rt != nil {
		sec.BackendKeys = rt.BackendKeys
		sec.FrontendKeys = rt.FrontendKeys
		sec.AdminKeys = rt.AdminKeys
	}

	handler := security.AuthenticateRequestMiddleware(sec)(a.setupHTTPHandlers())
	handler = telemetry.Middleware(handler)

	a.srv = &http.Server{Addr: a.eff.Addr, Handler: handler}
	errCh := make(chan error, 1)

	go func() {
		tls := a.eff.Config.Server.TLS
		var err error
		if tls.CertFile != "" && tls.KeyFile != "" {
			logger.Info("https_listen", "addr", a.eff.Addr)
			err = a.srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			logger.Info("http_listen", "addr", a.eff.Addr)
			err = a.srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.eff.Config.LLMTimeout())
		defer cancel()
		_ = a.srv.Shutdown(shutdownCtx)
	}()

	return errCh
}

func (a *App) printBanner() {
	banner.PrintWithEff(a.eff, a.version)
}
