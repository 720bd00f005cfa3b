package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	perr "laneledger/internal/platform/errors"
	"laneledger/internal/platform/net"
	"laneledger/internal/platform/net/middleware"
)

type fakeAuthPort struct {
	user string
	err  error
}

func (f fakeAuthPort) Parse(*http.Request) (string, error) { return f.user, f.err }

func TestAuth(t *testing.T) {
	cases := []struct {
		name   string
		port   middleware.AuthPort
		status int
		user   string
	}{
		{"nil port refuses", nil, http.StatusUnauthorized, ""},
		{"port error", fakeAuthPort{err: perr.Unauthorizedf("invalid bearer token")}, http.StatusUnauthorized, ""},
		{"foreign error", fakeAuthPort{err: errors.New("boom")}, http.StatusInternalServerError, ""},
		{"resolved", fakeAuthPort{user: "u1"}, http.StatusOK, "u1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var user string
			written := 0
			write := func(w http.ResponseWriter, status int, _ any) {
				written++
				w.WriteHeader(status)
			}
			h := middleware.Auth(tc.port, write)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				user = net.UserID(r.Context())
				w.WriteHeader(http.StatusOK)
			}))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

			if rr.Code != tc.status || user != tc.user {
				t.Fatalf("status=%d user=%q", rr.Code, user)
			}
			if (tc.status != http.StatusOK) != (written == 1) {
				t.Fatalf("write calls = %d", written)
			}
		})
	}
}
