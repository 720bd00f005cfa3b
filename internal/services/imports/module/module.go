// Package module wires the import pipeline into the API using modkit
package module

import (
	"context"
	"fmt"
	"time"

	modkit "laneledger/internal/modkit"
	"laneledger/internal/modkit/httpkit"
	"laneledger/internal/modkit/repokit"
	"laneledger/internal/platform/auth"
	perr "laneledger/internal/platform/errors"
	"laneledger/internal/platform/logger"
	"laneledger/internal/services/imports/callbackauth"
	"laneledger/internal/services/imports/dispatch"
	"laneledger/internal/services/imports/domain"
	ihttp "laneledger/internal/services/imports/http"
	"laneledger/internal/services/imports/repo"
	isvc "laneledger/internal/services/imports/service"
)

// Module implements the imports API module
type Module struct {
	built    modkit.Built
	register func(httpkit.Router)
	svc      isvc.Service
	limits   domain.Limits
}

// Ports exposes the import service and its limits to other modules and tools
type Ports struct {
	Service domain.ServicePort
	limits  domain.Limits
}

// Limits reports the configured protocol bounds
func (p Ports) Limits() domain.Limits { return p.limits }

// New constructs the imports module from IMPORT_* and AUTH_* config
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("imports"),
		modkit.WithPrefix("/imports"),
	}, opts...)...)
	if deps.PG == nil {
		panic("imports module requires a PG TxRunner")
	}

	cfg := FromConfig(deps.Cfg)
	log := logger.Named("imports")

	binder := repo.NewPG()
	if cfg.RawChunk > 0 {
		binder = repo.PG{RawChunk: cfg.RawChunk}
	}
	stores := binder.Bind(deps.PG)

	if cfg.CallbackSecret == "" {
		log.Warn().Msg("imports: IMPORT_CALLBACK_SECRET is not set, callbacks will be refused")
	}
	if cfg.WorkerURL == "" {
		log.Warn().Msg("imports: IMPORT_WORKER_URL is not set, queued batches will fail on dispatch")
	}

	svc := NewService(deps.PG, binder, cfg)
	cb := callbackauth.New(stores, callbackauth.Options{
		Secret:  cfg.CallbackSecret,
		Path:    cfg.CallbackPath,
		Skew:    cfg.CallbackSkew,
		MaxBody: cfg.CallbackMaxBody,
	})
	authPort := bearerPort(cfg.Auth)

	m := &Module{built: b, svc: svc, limits: cfg.Limits()}
	m.register = func(r httpkit.Router) {
		ihttp.Register(r, m.svc, authPort, cb, ihttp.Options{SnapshotMaxBody: cfg.CallbackMaxBody})
	}
	return m
}

// NewService builds the import service with its dispatcher from cfg
func NewService(db repokit.TxRunner, binder repokit.Binder[repo.Repo], cfg Options) *isvc.Svc {
	if cfg.StatementTimeout > 0 {
		db = repokit.WithBeginHooks(db, statementTimeout(cfg.StatementTimeout))
	}
	d := dispatch.New(binder.Bind(db), dispatch.Options{
		URL:     cfg.WorkerURL,
		Path:    cfg.WorkerPath,
		Secret:  cfg.WorkerSecret,
		Timeout: cfg.WorkerTimeout,
		Retries: cfg.WorkerRetries,
	})
	return isvc.New(db, binder, isvc.Options{
		Dispatcher:       d,
		CleanupChunk:     cfg.CleanupChunk,
		CleanupMaxChunks: cfg.CleanupMaxChunks,
		TxRetries:        cfg.TxRetries,
	})
}

// ApplySchema creates the import tables when IMPORT_SCHEMA_APPLY is set
func ApplySchema(ctx context.Context, db repokit.TxRunner, cfg Options) error {
	if !cfg.SchemaApply {
		return nil
	}
	if err := repokit.WithTx(ctx, db, func(q repokit.Queryer) error { return repo.ApplySchema(ctx, q) }); err != nil {
		return err
	}
	logger.C(ctx).Info().Msg("imports: schema applied")
	return nil
}

// statementTimeout scopes a statement_timeout to the enclosing transaction
func statementTimeout(d time.Duration) repokit.BeginHook {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	sql := fmt.Sprintf("SET LOCAL statement_timeout = %d", ms)
	return func(ctx context.Context, q repokit.Queryer) error {
		if _, err := q.Exec(ctx, sql); err != nil {
			return perr.FromPostgres(err, "set statement timeout")
		}
		return nil
	}
}

// bearerPort verifies user tokens; without a secret every request is refused
func bearerPort(o auth.Options) *httpkit.Port {
	v, err := auth.NewVerifier(o)
	if err != nil {
		logger.Named("imports").Warn().Err(err).Msg("imports: bearer auth disabled")
		return httpkit.NewPortFunc(nil)
	}
	return httpkit.NewPortFunc(v.UserID)
}

// MountRoutes mounts the module routes on the given router
func (m *Module) MountRoutes(r httpkit.Router) { m.built.Mount(r, m.register) }

// Name returns the module name
func (m *Module) Name() string { return m.built.Name }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return m.built.Prefix }

// Ports returns the module ports
func (m *Module) Ports() any { return Ports{Service: m.svc, limits: m.limits} }
