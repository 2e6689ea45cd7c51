// AngelaMos | 2026
// apikey.go

package middleware

import (
	"net/http"

	"github.com/carterperez-dev/billing-service/internal/core"
)

const apiKeyHeader = "X-API-Key"

// APIKeyAuth guards administrative routes with the shared secret issued to
// the internal gateway. Identity of end users is handled upstream; the only
// caller credential this service checks is this header.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(apiKeyHeader)

			if provided == "" || !core.SecureCompare(provided, apiKey) {
				core.JSONError(
					w,
					core.UnauthorizedError("invalid API key"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
