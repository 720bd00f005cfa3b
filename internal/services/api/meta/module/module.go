// Package module wires meta endpoints into the API using a tiny module
package module

import (
	"time"

	modkit "laneledger/internal/modkit"
	"laneledger/internal/modkit/httpkit"

	metahttp "laneledger/internal/services/api/meta/http"
)

// Module implements the modkit.Module interface
type Module struct {
	built    modkit.Built
	register func(httpkit.Router)
}

// New constructs a meta module with the provided dependencies and options
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("meta"),
		modkit.WithPrefix("/meta"),
	}, opts...)...)

	d := metahttp.Deps{
		ServiceName: deps.Cfg.MayString("SERVICE_NAME", "laneledger-api"),
		StartedAt:   time.Now(),
		PG:          deps.PG,
	}
	return &Module{
		built:    b,
		register: func(r httpkit.Router) { metahttp.Register(r, d) },
	}
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) { m.built.Mount(r, m.register) }

// Name implements the modkit.Module interface
func (m *Module) Name() string { return m.built.Name }

// Ports implements the modkit.Module interface
func (m *Module) Ports() any { return nil }
