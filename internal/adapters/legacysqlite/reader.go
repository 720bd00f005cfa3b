// Package legacysqlite reads a legacy bowling backup file into a snapshot
// so it can be imported without the external worker
package legacysqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"laneledger/internal/core/legacy"
	perr "laneledger/internal/platform/errors"
	"laneledger/internal/platform/logger"
	"laneledger/internal/services/imports/domain"

	"github.com/mattn/go-sqlite3"
)

// snapshotTables are read in dependency order
var snapshotTables = []domain.SnapshotTable{
	domain.TableHouses,
	domain.TablePatterns,
	domain.TableBalls,
	domain.TableLeagues,
	domain.TableWeeks,
	domain.TableGames,
	domain.TableFrames,
}

// Reader is a read-only handle on one backup file
type Reader struct {
	db   *sql.DB
	path string
}

// Open opens path read-only and checks that it is a SQLite database
func Open(ctx context.Context, path string) (*Reader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, perr.InvalidArgf("backup path is empty")
	}
	dsn := "file:" + (&url.URL{Path: path}).EscapedPath() + "?mode=ro"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeDB, "open %s", path)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, mapErr(err, path)
	}
	// a non-database file only fails on the first real read
	var n int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master`).Scan(&n); err != nil {
		_ = db.Close()
		return nil, mapErr(err, path)
	}
	return &Reader{db: db, path: path}, nil
}

// Close releases the file
func (r *Reader) Close() error { return r.db.Close() }

// Snapshot reads every known table. Missing tables read as empty
func (r *Reader) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	var snap domain.Snapshot
	log := logger.C(ctx).With().Str("file", r.path).Logger()
	for _, t := range snapshotTables {
		ok, err := r.tableExists(ctx, string(t))
		if err != nil {
			return snap, err
		}
		if !ok {
			log.Debug().Str("table", string(t)).Msg("legacysqlite: table missing")
			continue
		}
		rows, err := r.rows(ctx, string(t))
		if err != nil {
			return snap, err
		}
		snap.Set(t, rows)
		log.Debug().Str("table", string(t)).Int("rows", len(rows)).Msg("legacysqlite: table read")
	}
	return snap, nil
}

func (r *Reader) tableExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE`, name).Scan(&n)
	if err != nil {
		return false, mapErr(err, r.path)
	}
	return n > 0, nil
}

func (r *Reader) rows(ctx context.Context, table string) ([]domain.SourceRow, error) {
	// table comes from the closed snapshotTables list
	q := fmt.Sprintf(`SELECT * FROM "%s" ORDER BY rowid`, table)
	rs, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, mapErr(err, r.path)
	}
	defer rs.Close()

	cols, err := rs.Columns()
	if err != nil {
		return nil, mapErr(err, r.path)
	}
	keys := make([]string, len(cols))
	for i, c := range cols {
		keys[i] = ColumnKey(c)
	}

	var out []domain.SourceRow
	for rs.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, mapErr(err, r.path)
		}
		row := make(domain.SourceRow, len(cols))
		for i, k := range keys {
			v := vals[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[k] = v
		}
		out = append(out, row)
	}
	if err := rs.Err(); err != nil {
		return nil, mapErr(err, r.path)
	}
	return out, nil
}

// ColumnKey maps a backup column name to the row key reconciliation reads:
// id becomes sqliteId, snake_case becomes camelCase and a trailing _id
// foreign key becomes Fk
func ColumnKey(col string) string {
	c := strings.TrimSpace(col)
	lc := strings.ToLower(c)
	if lc == "id" || lc == "_id" || lc == "rowid" {
		return legacy.KeyID
	}
	if strings.HasSuffix(lc, "_id") && len(lc) > 3 {
		c = c[:len(c)-3] + "_fk"
	}
	parts := strings.Split(c, "_")
	if len(parts) == 1 {
		return c
	}
	var sb strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 {
			sb.WriteString(strings.ToLower(p))
			continue
		}
		sb.WriteString(strings.ToUpper(p[:1]) + strings.ToLower(p[1:]))
	}
	return sb.String()
}

func mapErr(err error, path string) error {
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrNotADB, sqlite3.ErrCorrupt:
			return perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "%s is not a readable SQLite backup", path)
		case sqlite3.ErrCantOpen, sqlite3.ErrPerm:
			return perr.Wrapf(err, perr.ErrorCodeNotFound, "cannot open %s", path)
		}
	}
	return perr.Wrapf(err, perr.ErrorCodeDB, "read %s", path)
}
