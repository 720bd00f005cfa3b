package pg

import (
	"context"
	"strings"
	"time"

	"laneledger/internal/platform/logger"

	"github.com/rs/zerolog"
)

// maxLoggedArgs bounds argument logging; bulk row inserts carry thousands
const maxLoggedArgs = 16

// QueryEvent describes one finished statement
type QueryEvent struct {
	SQL     string
	Args    []any
	Elapsed time.Duration
	Err     error
	Slow    bool
}

// QueryTracer receives every statement the sql adapter runs
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// Tracer logs statements regardless of the process level; slow ones at warn
func Tracer(root logger.Logger) QueryTracer {
	return &zlTracer{log: root.Level(zerolog.DebugLevel).With().Str("component", "pg").Logger()}
}

type zlTracer struct{ log logger.Logger }

func (z *zlTracer) OnQuery(_ context.Context, ev QueryEvent) {
	evt := z.log.Info()
	if ev.Slow {
		evt = z.log.Warn()
	}
	evt = evt.Dur("elapsed", ev.Elapsed).Bool("slow", ev.Slow).Str("sql", compact(ev.SQL))
	if len(ev.Args) > maxLoggedArgs {
		evt = evt.Int("arg_count", len(ev.Args))
	} else {
		evt = evt.Interface("args", ev.Args)
	}
	evt.Err(ev.Err).Msg("pg query")
}

// compact folds every whitespace run to a single space
func compact(s string) string { return strings.Join(strings.Fields(s), " ") }
