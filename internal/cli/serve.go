package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/spf13/cobra"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a small session HTTP API",
		Long: `Routes:
  POST   /sessions/{user}  create or reuse a session
  GET    /me               resolve the bearer and refresh the session
  DELETE /me               delete the caller's session
  GET    /metrics          Prometheus text metrics (when metrics.enabled)

The bearer is the raw session token, or a signed token when bearer.secret
is set.`,
		Args: cobra.NoArgs,
		RunE: withEnv(opts, func(ctx context.Context, cmd *cobra.Command, e *env, _ []string) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, e, listen)
		}),
	}

	cmd.Flags().StringVar(&listen, "listen", ":8080", "HTTP listen address")

	return cmd
}

func serve(ctx context.Context, e *env, listen string) error {
	handler, err := newAPI(e)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              listen,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("http server listening", "addr", listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	e.logger.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func newAPI(e *env) (http.Handler, error) {
	var signer *jwt.Manager
	if e.cfg.Bearer.Secret != "" {
		var err error
		if signer, err = newSigner(e.cfg.Bearer); err != nil {
			return nil, err
		}
	}

	m := e.manager
	guard := middleware.RequireActiveSession(m)
	if signer != nil {
		guard = middleware.Guard(m, middleware.ModeStrict, middleware.WithVerifier(signer), middleware.WithActivityRefresh())
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /sessions/{user}", func(w http.ResponseWriter, r *http.Request) {
		info, err := m.CreateSession(r.Context(), r.PathValue("user"))
		if err != nil {
			writeError(w, err)
			return
		}
		body := map[string]any{
			"user_id":       info.UserID,
			"session_token": info.Token,
			"created":       info.Created,
		}
		if signer != nil {
			bearer, err := signer.Issue(info.UserID, info.Token)
			if err != nil {
				writeError(w, err)
				return
			}
			body["bearer"] = bearer
		}
		status := http.StatusOK
		if info.Created {
			status = http.StatusCreated
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = printJSON(w, body)
	})

	mux.Handle("GET /me", guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := middleware.UserIDFromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")
		_ = printJSON(w, map[string]string{"user_id": uid})
	})))

	mux.Handle("DELETE /me", guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := middleware.UserIDFromContext(r.Context())
		if _, err := m.DeleteSession(r.Context(), uid); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})))

	if e.cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", prometheus.NewPrometheusExporter(m).Handler())
	}

	return mux, nil
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, goSession.ErrInvalidUserID), errors.Is(err, goSession.ErrInvalidToken):
		status = http.StatusBadRequest
	case errors.Is(err, goSession.ErrBackendUnavailable):
		status = http.StatusServiceUnavailable
	}
	http.Error(w, http.StatusText(status), status)
}
