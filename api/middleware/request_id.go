package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/calderapay/connector/pkg/logger"
)

// HeaderRequestID is echoed on every response so callers can quote it when
// querying what happened to a payment.
const HeaderRequestID = "X-Request-Id"

// RequestID tags the request context and the response with a correlation id,
// minting one when the caller did not supply its own.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, id)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
