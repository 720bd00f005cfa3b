package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"laneledger/internal/platform/testkit"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters_Increment(t *testing.T) {
	before := testutil.ToFloat64(DispatchesTotal.WithLabelValues("ok"))
	DispatchesTotal.WithLabelValues("ok").Inc()
	if got := testutil.ToFloat64(DispatchesTotal.WithLabelValues("ok")); got != before+1 {
		t.Fatalf("dispatch counter = %v, want %v", got, before+1)
	}
}

func TestHandler_ExposesImportMetrics(t *testing.T) {
	ImportsStartedTotal.Inc()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	testkit.MustContain(t, rec.Body.String(), ImportsStartedTotalKey)
}

func TestRegistry_Singleton(t *testing.T) {
	if Registry() != Registry() {
		t.Fatalf("Registry should be a singleton")
	}
}

func TestInstrument_ObservesByModule(t *testing.T) {
	h := Instrument("imports")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/imports", nil))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	testkit.MustContain(t, rec.Body.String(), `module="imports"`)
	testkit.MustContain(t, rec.Body.String(), `code="202"`)
}
