// Package modkit provides module wiring and core deps
package modkit

import (
	"laneledger/internal/modkit/repokit"
	"laneledger/internal/platform/config"
)

// Deps holds core dependencies passed to modules
// Cfg is the root view; modules read their own prefixes from it
type Deps struct {
	Cfg config.Conf
	PG  repokit.TxRunner
}
