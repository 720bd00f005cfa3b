package swaggerkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	phttp "laneledger/internal/platform/net/http"
	"laneledger/internal/platform/testkit"

	"github.com/go-chi/chi/v5"
)

func TestDocJSON_Decorates(t *testing.T) {
	t.Setenv("CORE_API_DOCS_TITLE_SUFFIX", "(dev)")

	rec := httptest.NewRecorder()
	serveDocJSON()(rec, httptest.NewRequest(http.MethodGet, "/api/docs/doc.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	var spec map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &spec); err != nil {
		t.Fatal(err)
	}
	if spec["openapi"] != "3.0.3" {
		t.Fatalf("openapi: %v", spec["openapi"])
	}
	if title := spec["info"].(map[string]any)["title"]; title != "Lane Ledger API (dev)" {
		t.Fatalf("title: %v", title)
	}
	op := spec["paths"].(map[string]any)["/imports"].(map[string]any)["post"].(map[string]any)
	resps := op["responses"].(map[string]any)
	for _, code := range []string{"200", "400", "401", "500"} {
		if _, ok := resps[code]; !ok {
			t.Fatalf("missing %s response", code)
		}
	}
	schemas := spec["components"].(map[string]any)["schemas"].(map[string]any)
	if _, ok := schemas["ErrorResponse"]; !ok {
		t.Fatal("ErrorResponse schema missing")
	}
}

func TestDecorate_LiftsSwagger2(t *testing.T) {
	spec := map[string]any{"swagger": "2.0", "paths": map[string]any{"/x": "junk"}}
	decorate(spec, "")
	if spec["openapi"] != "3.0.3" || spec["swagger"] != nil {
		t.Fatalf("not lifted: %v", spec)
	}
	if spec["servers"] == nil {
		t.Fatal("servers missing")
	}
}

func TestDocJSON_ParseError(t *testing.T) {
	testkit.Swap(t, &docReader, func() string { return "{" })
	rec := httptest.NewRecorder()
	serveDocJSON()(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestMount(t *testing.T) {
	r := phttp.AdaptChi(chi.NewRouter())
	Mount(r, true)

	rec := httptest.NewRecorder()
	r.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/docs", nil))
	if rec.Code != http.StatusPermanentRedirect {
		t.Fatalf("redirect status %d", rec.Code)
	}

	off := phttp.AdaptChi(chi.NewRouter())
	Mount(off, false)
	rec = httptest.NewRecorder()
	off.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/docs/doc.json", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("disabled status %d", rec.Code)
	}
}
