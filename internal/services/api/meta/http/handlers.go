// Package http provides meta endpoints
package http

import (
	stdctx "context"
	"net/http"
	"time"

	"laneledger/internal/core/chunk"
	"laneledger/internal/core/version"
	"laneledger/internal/modkit/httpkit"
	"laneledger/internal/modkit/module"
	"laneledger/internal/services/imports/callbackauth"
	"laneledger/internal/services/imports/domain"
)

// Pinger is satisfied by adapters that expose Ping
type Pinger interface {
	Ping(stdctx.Context) error
}

// Deps are the handler dependencies
type Deps struct {
	ServiceName string
	StartedAt   time.Time
	PG          any
}

type handlers struct {
	deps Deps
}

// Register mounts the meta routes
func Register(r httpkit.Router, d Deps) {
	h := &handlers{deps: d}

	httpkit.Get(r, "/health", h.health)
	httpkit.Get(r, "/ready", h.ready)
	httpkit.Get(r, "/version", h.version)
	httpkit.Get(r, "/service", h.service)
	httpkit.Get(r, "/limits", h.limits)
}

// readyTimeout bounds all dependency pings of one readiness check
const readyTimeout = 2 * time.Second

// HealthResponse is the liveness payload
type HealthResponse struct {
	OK      bool   `json:"ok"      example:"true"`
	Service string `json:"service" example:"laneledger-api"`
	Started string `json:"started" example:"2025-09-03T13:00:00Z"`
	Now     string `json:"now"     example:"2025-09-03T13:05:00Z"`
}

// ReadyCheck is the outcome of one dependency ping: ok, fail, skipped or unknown
type ReadyCheck struct {
	Name   string `json:"name"            example:"pg"`
	Status string `json:"status"          example:"ok"`
	Error  string `json:"error,omitempty" example:"dial tcp 127.0.0.1:5432: connect: connection refused"`
}

// ReadyResponse is ok when every check is ok, fail when any failed, degraded otherwise
type ReadyResponse struct {
	Status string       `json:"status" example:"ok"`
	Checks []ReadyCheck `json:"checks"`
	Now    string       `json:"now"    example:"2025-09-03T13:05:00Z"`
}

// ServiceResponse names the service and the modules mounted in it
type ServiceResponse struct {
	Name    string   `json:"name"    example:"laneledger-api"`
	Started string   `json:"started" example:"2025-09-03T13:00:00Z"`
	Uptime  int64    `json:"uptime"  example:"300"`
	Modules []string `json:"modules" example:"imports,meta"`
}

// LimitsResponse reports the bounds a worker must respect
type LimitsResponse struct {
	domain.Limits
	Build version.BuildInfo `json:"build"`
}

// LimitsPort is implemented by the imports module port set
type LimitsPort interface {
	Limits() domain.Limits
}

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

// @Summary Liveness
// @Tags Meta
// @Router /meta/health [get]
func (h *handlers) health(_ *http.Request) (any, error) {
	return HealthResponse{
		OK:      true,
		Service: h.deps.ServiceName,
		Started: stamp(h.deps.StartedAt),
		Now:     stamp(time.Now()),
	}, nil
}

// @Summary Readiness of dependencies
// @Tags Meta
// @Router /meta/ready [get]
func (h *handlers) ready(r *http.Request) (any, error) {
	ctx, cancel := stdctx.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	out := ReadyResponse{Status: "ok", Now: stamp(time.Now())}
	for name, dep := range map[string]any{"pg": h.deps.PG} {
		c := pingDep(ctx, name, dep)
		out.Checks = append(out.Checks, c)
		switch {
		case c.Status == "fail":
			out.Status = "fail"
		case c.Status != "ok" && out.Status == "ok":
			out.Status = "degraded"
		}
	}
	return out, nil
}

func pingDep(ctx stdctx.Context, name string, dep any) ReadyCheck {
	if dep == nil {
		return ReadyCheck{Name: name, Status: "skipped"}
	}
	p, ok := dep.(Pinger)
	if !ok {
		return ReadyCheck{Name: name, Status: "unknown"}
	}
	if err := p.Ping(ctx); err != nil {
		return ReadyCheck{Name: name, Status: "fail", Error: err.Error()}
	}
	return ReadyCheck{Name: name, Status: "ok"}
}

// @Summary Build information
// @Tags Meta
// @Router /meta/version [get]
func (h *handlers) version(_ *http.Request) (any, error) {
	return version.Info(), nil
}

// @Summary Service name, uptime and mounted modules
// @Tags Meta
// @Router /meta/service [get]
func (h *handlers) service(_ *http.Request) (any, error) {
	return ServiceResponse{
		Name:    h.deps.ServiceName,
		Started: stamp(h.deps.StartedAt),
		Uptime:  int64(time.Since(h.deps.StartedAt) / time.Second),
		Modules: module.Names(),
	}, nil
}

// @Summary Import protocol limits
// @Tags Meta
// @Router /meta/limits [get]
func (h *handlers) limits(_ *http.Request) (any, error) {
	out := LimitsResponse{Build: version.Info()}
	if p, ok := module.PortsAs[LimitsPort]("imports"); ok {
		out.Limits = p.Limits()
		return out, nil
	}
	out.Limits = domain.Limits{
		RowsPerCallback: chunk.DefaultRows,
		NonceMinLength:  callbackauth.MinNonceLen,
		NonceMaxLength:  callbackauth.MaxNonceLen,
		ClockSkewSecs:   int64(callbackauth.DefaultSkew / time.Second),
		MaxBodyBytes:    callbackauth.DefaultMaxBody,
		ErrorMessageMax: domain.ErrorMessageMax,
	}
	return out, nil
}
