package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gatewarden/gatewarden/pkg/audit"
	"github.com/gatewarden/gatewarden/pkg/guard"
	"github.com/gatewarden/gatewarden/pkg/realm"
	"github.com/gatewarden/gatewarden/pkg/token"
)

// Server is an HTTP service protected by the security interceptor.
// Requests carry a sealed credential in the Security-Token header; the
// interceptor admits or denies them before any handler runs.
type Server struct {
	cfg    *Config
	logger *slog.Logger
	realm  *realm.SQLiteRealm
	http   *http.Server
}

// New builds a server from the configuration: SQLite realm, policy, and
// interceptor-wrapped handlers.
func New(cfg *Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	rlm, err := realm.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open realm: %w", err)
	}

	opts := []guard.PolicyOption{guard.WithBase64Transport()}
	if cfg.AlwaysReauthenticate {
		opts = append(opts, guard.WithAlwaysReauthenticate())
	}
	if len(cfg.RequiredPermissions) > 0 {
		opts = append(opts, guard.WithRequiredPermissions(cfg.RequiredPermissions...))
	}
	policy, err := guard.NewPolicy(token.NewAESGCM(), []byte(cfg.Passphrase), opts...)
	if err != nil {
		rlm.Close()
		return nil, fmt.Errorf("failed to build policy: %w", err)
	}

	emitter := audit.NewGuardEmitter(logger, audit.NewSlogEmitter(logger))
	interceptor, err := guard.NewInterceptor(nil, policy, rlm,
		guard.WithLogger(logger),
		guard.WithAuditEmitter(emitter),
	)
	if err != nil {
		rlm.Close()
		return nil, fmt.Errorf("failed to build interceptor: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealth)
	mux.Handle("/whoami", interceptor.Wrap(http.HandlerFunc(handleWhoami)))

	s := &Server{
		cfg:    cfg,
		logger: logger,
		realm:  rlm,
		http: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	return s, nil
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", "addr", s.cfg.ListenAddr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return s.realm.Close()
	case err := <-errCh:
		s.realm.Close()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func handleWhoami(w http.ResponseWriter, r *http.Request) {
	subject := guard.SubjectFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if subject == nil {
		// Forced-reauthentication policies log the session out before the
		// handler runs; the request was still admitted.
		json.NewEncoder(w).Encode(map[string]any{"authenticated": false})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"authenticated": true,
		"principal":     subject.Principal,
		"session_id":    subject.ID,
	})
}
