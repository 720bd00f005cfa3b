// @title         Lane Ledger API
// @version       0.1.0
// @description   Bowling backup imports: start, direct snapshot, batch status and signed worker callbacks
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"laneledger/internal/modkit/repokit"
	"laneledger/internal/platform/config"
	"laneledger/internal/platform/logger"
	phttp "laneledger/internal/platform/net/http"
	"laneledger/internal/platform/store"

	"laneledger/internal/services/api"
	importsmod "laneledger/internal/services/imports/module"
)

func main() {
	// service-scoped config for HTTP etc (CORE_API_*)
	root := config.New()
	apiCfg := root.Prefix("CORE_API_")
	pgCfg := root.Prefix("SERVICE_PGSQL_")

	// bring up logging early
	l := logger.Get()

	st, err := store.Open(
		context.Background(),
		store.Config{
			AppName: "laneledger-api",
			PG: store.PGConfig{
				Enabled:     true,
				URL:         pgCfg.MustString("DBURL"),
				MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 8)),
				SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
				LogSQL:      pgCfg.MayBool("LOG_SQL", false),
			},
		},
		store.WithLogger(*logger.Get()),
	)
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	repokit.MustGuard(context.Background(), st)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := importsmod.ApplySchema(ctx, st.PG, importsmod.FromConfig(root)); err != nil {
		cancel()
		l.Panic().Err(err).Msg("imports schema apply failed")
	}
	cancel()

	// http server (reads CORE_API_PORT, CORE_API_READ_TIMEOUT, CORE_API_SHUTDOWN_GRACE)
	srv := phttp.NewServer(apiCfg)

	api.Mount(
		srv.Router(),
		api.Options{
			Config:         root,
			Store:          st,
			Logger:         l,
			EnableSwagger:  apiCfg.MayBool("SWAGGER", true),
			EnableProfiler: apiCfg.MayBool("PROFILER", false),
			EnableMetrics:  apiCfg.MayBool("METRICS", true),
		},
	)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.Run(runCtx); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
