package modkit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"laneledger/internal/modkit/httpkit"
	phttp "laneledger/internal/platform/net/http"
	"laneledger/internal/platform/testkit"

	"github.com/go-chi/chi/v5"
)

func TestBuild_LaterOptionsWinAndPrefixNormalizes(t *testing.T) {
	b := Build(WithName("imports"), WithPrefix("imports/"), WithPrefix(" /batches/ "))
	if b.Name != "imports" || b.Prefix != "/batches" {
		t.Fatalf("built = %+v", b)
	}
	testkit.MustPanic(t, func() { Build(WithPrefix("/x")) })
	testkit.MustPanic(t, func() { Build(WithName("meta")) })
}

func TestBuild_CopiesMiddleware(t *testing.T) {
	mw := []func(http.Handler) http.Handler{func(h http.Handler) http.Handler { return h }}
	b := Build(WithName("m"), WithPrefix("/m"), WithMiddlewares(mw...))
	mw[0] = nil
	if len(b.Mw) != 1 || b.Mw[0] == nil {
		t.Fatalf("middleware slice aliased: %+v", b.Mw)
	}
}

func TestBuilt_MountAppliesMiddlewareUnderPrefix(t *testing.T) {
	var order []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	b := Build(WithName("imports"), WithPrefix("/imports"), WithMiddlewares(tag("a"), tag("b")))

	m := chi.NewRouter()
	b.Mount(phttp.AdaptChi(m), func(r httpkit.Router) {
		httpkit.Get(r, "/ping", func(*http.Request) (any, error) { return "pong", nil })
	})

	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/imports/ping", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("middleware order = %v", order)
	}

	rr = httptest.NewRecorder()
	m.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unprefixed status = %d", rr.Code)
	}
}
