package middleware_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"laneledger/internal/platform/net/middleware"

	"github.com/rs/zerolog"
)

func TestAccessLog_RecordsRequest(t *testing.T) {
	cases := []struct {
		name  string
		slow  time.Duration
		level string
	}{
		{"fast", 0, "info"},
		{"slow", time.Nanosecond, "warn"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := zerolog.New(&buf)
			mw := middleware.AccessLog(middleware.AccessLogOptions{Slow: tc.slow, Log: &log})

			h := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				time.Sleep(10 * time.Microsecond)
				w.WriteHeader(http.StatusAccepted)
				_, _ = io.WriteString(w, "queued")
				_, _ = w.Write([]byte("!"))
			}))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/imports", nil))

			if rr.Code != http.StatusAccepted || rr.Body.String() != "queued!" {
				t.Fatalf("response altered: %d %q", rr.Code, rr.Body.String())
			}
			var line struct {
				Level  string `json:"level"`
				Status int    `json:"status"`
				Method string `json:"method"`
				Path   string `json:"path"`
				Bytes  int    `json:"bytes"`
			}
			if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
				t.Fatalf("log line %q: %v", buf.String(), err)
			}
			if line.Level != tc.level || line.Status != 202 || line.Bytes != 7 ||
				line.Method != http.MethodPost || line.Path != "/api/v1/imports" {
				t.Fatalf("log = %+v", line)
			}
		})
	}
}
