// Command laneledger-snapshot imports a local legacy backup file straight into
// Postgres, running the same reconcile and refine pipeline as the API
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"laneledger/internal/adapters/legacysqlite"
	"laneledger/internal/core/version"
	"laneledger/internal/modkit/repokit"
	"laneledger/internal/platform/config"
	"laneledger/internal/platform/logger"
	"laneledger/internal/platform/store"

	"laneledger/internal/services/imports/domain"
	importsmod "laneledger/internal/services/imports/module"
	"laneledger/internal/services/imports/repo"

	"github.com/google/uuid"
)

type dryRun struct {
	File   string         `json:"file"`
	Tables map[string]int `json:"tables"`
}

func main() {
	var (
		fFile    = flag.String("file", "", "path to the legacy SQLite backup")
		fUser    = flag.String("user", "", "owner user id for imported rows")
		fReplace = flag.Bool("replace-all", false, "delete the user's prior imported data first")
		fTZ      = flag.Int("tz", 0, "client timezone offset in minutes (UTC minus local)")
		fDryRun  = flag.Bool("dry-run", false, "read the backup and print table counts without importing")
		fTimeout = flag.Duration("timeout", 10*time.Minute, "overall import timeout")
		fVersion = flag.Bool("version", false, "print build info and exit")
	)
	flag.Parse()

	build := version.For("laneledger-snapshot")
	if *fVersion {
		_, _ = os.Stdout.WriteString(build.String() + "\n")
		return
	}

	l := logger.Get()
	l.Debug().Str("version", build.Version).Str("commit", build.Commit).Msg("laneledger-snapshot starting")
	if *fFile == "" {
		l.Fatal().Msg("-file is required")
	}
	if !*fDryRun && *fUser == "" {
		l.Fatal().Msg("-user is required unless -dry-run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *fTimeout)
	defer cancel()
	ctx = logger.WithRequest(ctx, uuid.NewString(), *fUser)

	rd, err := legacysqlite.Open(ctx, *fFile)
	if err != nil {
		l.Fatal().Err(err).Msg("open backup failed")
	}
	snap, err := rd.Snapshot(ctx)
	_ = rd.Close()
	if err != nil {
		l.Fatal().Err(err).Msg("read backup failed")
	}

	if *fDryRun {
		out := dryRun{File: *fFile, Tables: map[string]int{}}
		for _, t := range []domain.SnapshotTable{
			domain.TableHouses, domain.TablePatterns, domain.TableBalls,
			domain.TableLeagues, domain.TableWeeks, domain.TableGames, domain.TableFrames,
		} {
			out.Tables[string(t)] = len(snap.Rows(t))
		}
		emit(out)
		return
	}

	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	st, err := store.Open(ctx, store.Config{
		AppName: "laneledger-snapshot",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 2)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Fatal().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	repokit.MustGuard(ctx, st)

	cfg := importsmod.FromConfig(root)
	if err := importsmod.ApplySchema(ctx, st.PG, cfg); err != nil {
		l.Fatal().Err(err).Msg("imports schema apply failed")
	}

	var binder repo.PG
	if cfg.RawChunk > 0 {
		binder.RawChunk = cfg.RawChunk
	}
	svc := importsmod.NewService(st.PG, binder, cfg)

	var size int64
	if fi, err := os.Stat(*fFile); err == nil {
		size = fi.Size()
	}
	name := *fFile
	res, err := svc.SubmitSnapshot(ctx, *fUser, domain.SnapshotInput{
		FileName:              &name,
		FileSize:              size,
		ReplaceAll:            *fReplace,
		TimezoneOffsetMinutes: *fTZ,
		Snapshot:              snap,
	})
	if err != nil {
		l.Fatal().Err(err).Msg("import failed")
	}
	l.Info().
		Str("batch_id", res.BatchID.String()).
		Int("warnings", len(res.Warnings)).
		Msg("import completed")
	emit(res)
}

func emit(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
