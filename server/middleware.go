package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/soyart/explorer-web/loader"
	"github.com/soyart/explorer-web/nodefetch"
)

// RelayNodeAddress passes an inbound X-Node-Address through unchanged and
// makes it the node address for loads done on behalf of this request.
func RelayNodeAddress(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		nodeAddress := r.Header.Get(nodefetch.HeaderNodeAddress)
		if nodeAddress != "" {
			r.Header.Set(nodefetch.HeaderNodeAddress, nodeAddress)
			r = r.WithContext(nodefetch.WithAddress(r.Context(), nodeAddress))
		}

		next.ServeHTTP(w, r)
	}

	return http.HandlerFunc(fn)
}

// RequestOrigin records scheme://host of the request for same-origin loads.
func RequestOrigin(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
			scheme = proto
		}

		if r.Host != "" {
			r = r.WithContext(loader.WithOrigin(r.Context(), scheme+"://"+r.Host))
		}

		next.ServeHTTP(w, r)
	}

	return http.HandlerFunc(fn)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			logger.Info(
				"request received",
				zap.String("method", r.Method),
				zap.String("url", r.URL.String()),
				zap.String("remote_addr", r.RemoteAddr),
			)

			next.ServeHTTP(w, r)
		}

		return http.HandlerFunc(fn)
	}
}
