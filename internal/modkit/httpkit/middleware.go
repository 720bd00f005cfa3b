package httpkit

import (
	"compress/flate"
	"net/http"
	"time"

	phttp "laneledger/internal/platform/net/http"
	"laneledger/internal/platform/net/middleware"
)

// CommonStack returns the baseline middleware for the versioned API
func CommonStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID(),
		middleware.RealIP(),
		middleware.RecoverJSON,
		middleware.NoCache(),
		middleware.AccessLog(middleware.AccessLogOptions{Slow: 500 * time.Millisecond}),
		middleware.CORS(middleware.CORSOptions{}),
		middleware.Compress(flate.BestSpeed),
		middleware.Heartbeat("/health"),
		middleware.RedirectSlashes(),
		middleware.StripSlashes(),
		// direct snapshots reconcile inline, so the ceiling is generous
		middleware.Timeout(2 * time.Minute),
	}
}

// Auth wires the auth middleware to the platform JSON writer
func Auth(p middleware.AuthPort) func(http.Handler) http.Handler {
	return middleware.Auth(p, phttp.JSON)
}
