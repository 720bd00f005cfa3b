package middleware

import (
	"net/http"

	perr "laneledger/internal/platform/errors"
	pnet "laneledger/internal/platform/net"
)

// AuthPort resolves the caller of a request
type AuthPort interface {
	Parse(r *http.Request) (userID string, err error)
}

// Auth puts the resolved user on the request context and refuses everything when p is nil
func Auth(p AuthPort, write func(w http.ResponseWriter, status int, body any)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, err := "", perr.Unauthorizedf("authentication is not configured")
			if p != nil {
				uid, err = p.Parse(r)
			}
			if err != nil {
				status, body := pnet.Error(err, pnet.RequestID(r.Context()))
				write(w, status, body)
				return
			}
			next.ServeHTTP(w, r.WithContext(pnet.WithUser(r.Context(), uid)))
		})
	}
}
