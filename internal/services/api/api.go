// Package api provides the HTTP API for the application
package api

import (
	"laneledger/internal/platform/config"
	"laneledger/internal/platform/logger"
	"laneledger/internal/platform/metrics"
	phttp "laneledger/internal/platform/net/http"
	"laneledger/internal/platform/store"

	"laneledger/internal/modkit"
	"laneledger/internal/modkit/httpkit"
	"laneledger/internal/modkit/module"
	"laneledger/internal/modkit/swaggerkit"

	metamod "laneledger/internal/services/api/meta/module"
	importsmod "laneledger/internal/services/imports/module"
)

// Options are the API options
type Options struct {
	// Config is the root config; modules read their own prefixes from it
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	EnableSwagger  bool
	EnableProfiler bool
	EnableMetrics  bool
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) {
	// shared deps for modules
	deps := modkit.Deps{
		Cfg: opt.Config,
		PG:  opt.Store.PG,
	}

	instrument := func(name string) []modkit.Option {
		if !opt.EnableMetrics {
			return nil
		}
		return []modkit.Option{modkit.WithMiddlewares(metrics.Instrument(name))}
	}

	mods := []module.Module{
		metamod.New(deps, instrument("meta")...),
		importsmod.New(deps, instrument("imports")...),
	}

	if opt.EnableMetrics {
		r.Handle("/metrics", metrics.Handler())
	}

	// versioned API with a common middleware stack
	httpkit.MountAPIV1(r, httpkit.CommonStack(), func(api httpkit.Router) {
		// Swagger + profiler
		swaggerkit.Mount(r, opt.EnableSwagger)
		phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

		for _, m := range mods {
			// register each module's ports under its own name (for cross-module lookups)
			module.Register(m.Name(), m.Ports())

			// mount module routes under its Prefix()
			m.MountRoutes(api)
			if opt.Logger != nil {
				opt.Logger.Info().Str("module", m.Name()).Msg("module mounted")
			}
		}
	})
}
