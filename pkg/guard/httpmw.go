package guard

import (
	"encoding/json"
	"net/http"

	"github.com/gatewarden/gatewarden/pkg/pipeline"
	"github.com/gatewarden/gatewarden/pkg/realm"
)

// HTTPSecurityTokenHeader is the HTTP request header carrying the sealed
// credential. HTTP headers are text, so policies used behind this adapter
// declare base64 transport.
const HTTPSecurityTokenHeader = "Security-Token"

// Wrap wraps an HTTP handler with policy enforcement. Each request is
// mapped onto an internal exchange, the policy applied, and the handler
// invoked with the authenticated subject in the request context. Denied
// requests receive the SecurityError's status with a JSON body of
// {"error": code, "message": message}.
func (i *Interceptor) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ex := pipeline.NewExchange()
		if v := r.Header.Get(HTTPSecurityTokenHeader); v != "" {
			ex.SetHeader(SecurityTokenHeader, v)
		}

		if err := i.Apply(r.Context(), ex); err != nil {
			serr, ok := err.(*SecurityError)
			if !ok {
				// Apply only returns SecurityErrors; keep the fail-secure
				// path anyway.
				i.logger.Error("unexpected interceptor error", "error", err)
				writeJSONError(w, http.StatusInternalServerError, ErrCodeAuthenticationFailed, "authentication failed")
				return
			}
			i.logger.Info("request denied",
				"method", r.Method,
				"path", r.URL.Path,
				"error_code", serr.Code,
			)
			writeJSONError(w, serr.HTTPStatus(), serr.Code, serr.Message)
			return
		}

		ctx := r.Context()
		if v, ok := ex.Property(SubjectProperty); ok {
			if s, ok := v.(*realm.Session); ok {
				ctx = ContextWithSubject(ctx, s)
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
