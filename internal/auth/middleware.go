package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/af-corp/appgen-gateway/internal/httputil"
	"github.com/af-corp/appgen-gateway/internal/identity"
	"github.com/af-corp/appgen-gateway/internal/telemetry"
)

// CredentialFromRequest extracts the credential headers used by mode. A
// non-Bearer Authorization scheme yields an empty Bearer.
func CredentialFromRequest(r *http.Request, mode Mode) Credential {
	if mode == ModeHeaders {
		return Credential{
			UserID:    strings.TrimSpace(r.Header.Get("X-User-Id")),
			UserEmail: strings.TrimSpace(r.Header.Get("X-User-Email")),
		}
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return Credential{}
	}
	return Credential{Bearer: strings.TrimSpace(token)}
}

// Middleware returns a chi middleware that resolves the caller's identity.
// Every failure is answered with the same 401; the kind only reaches logs
// and metrics.
func Middleware(resolver *Resolver, metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := w.Header().Get("X-Request-ID")
			cred := CredentialFromRequest(r, resolver.Mode())

			id, err := resolver.Resolve(r.Context(), cred)
			if err != nil {
				kind := KindOf(err)
				slog.Warn("auth failed",
					"request_id", reqID,
					"kind", kind.String(),
					"credential", credentialPrefix(cred),
					"error", err,
				)
				metrics.RecordAuth("", kind.String())
				httputil.WriteAuthError(w, reqID)
				return
			}

			slog.Debug("auth ok", "request_id", reqID, "strategy", id.Strategy)
			metrics.RecordAuth(id.Strategy, "ok")

			ctx := ContextWithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func credentialPrefix(cred Credential) string {
	if cred.Bearer != "" {
		return identity.DisplayPrefix(cred.Bearer)
	}
	return identity.DisplayPrefix(cred.UserID)
}
