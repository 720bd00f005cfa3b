package module

import (
	"time"

	"laneledger/internal/core/chunk"
	"laneledger/internal/platform/auth"
	"laneledger/internal/platform/config"
	"laneledger/internal/services/imports/callbackauth"
	"laneledger/internal/services/imports/dispatch"
	"laneledger/internal/services/imports/domain"
	"laneledger/internal/services/imports/service"
)

// Options controls the import pipeline
type Options struct {
	// Signed callbacks
	CallbackSecret  string
	CallbackPath    string
	CallbackSkew    time.Duration
	CallbackMaxBody int64

	// Outbound worker
	WorkerURL     string
	WorkerPath    string
	WorkerSecret  string // defaults to CallbackSecret
	WorkerTimeout time.Duration
	WorkerRetries int

	// Store batching
	RawChunk         int
	CleanupChunk     int
	CleanupMaxChunks int

	// TxRetries is how often a transiently failed transaction is rerun
	TxRetries int
	// StatementTimeout bounds each statement inside import transactions, zero leaves the server default
	StatementTimeout time.Duration

	SchemaApply bool

	Auth auth.Options
}

// FromConfig reads IMPORT_* and AUTH_* values from process config/env
func FromConfig(cfg config.Conf) Options {
	ic := cfg.Prefix("IMPORT_")
	secret := ic.MayString("CALLBACK_SECRET", "")
	return Options{
		CallbackSecret:   secret,
		CallbackPath:     ic.MayString("CALLBACK_PATH", callbackauth.DefaultPath),
		CallbackSkew:     ic.MayDuration("CALLBACK_SKEW", callbackauth.DefaultSkew),
		CallbackMaxBody:  int64(ic.MayInt("CALLBACK_MAX_BODY", callbackauth.DefaultMaxBody)),
		WorkerURL:        ic.MayString("WORKER_URL", ""),
		WorkerPath:       ic.MayString("WORKER_PATH", dispatch.PathQueue),
		WorkerSecret:     ic.MayString("WORKER_SECRET", secret),
		WorkerTimeout:    ic.MayDuration("WORKER_TIMEOUT", 10*time.Second),
		WorkerRetries:    ic.MayInt("WORKER_RETRIES", 2),
		RawChunk:         ic.MayInt("RAW_CHUNK", 0),
		CleanupChunk:     ic.MayInt("CLEANUP_CHUNK", service.DefaultCleanupChunk),
		CleanupMaxChunks: ic.MayInt("CLEANUP_MAX_CHUNKS", service.DefaultCleanupMaxChunks),
		TxRetries:        ic.MayInt("TX_RETRIES", service.DefaultTxRetries),
		StatementTimeout: ic.MayDuration("STATEMENT_TIMEOUT", 0),
		SchemaApply:      ic.MayBool("SCHEMA_APPLY", false),
		Auth:             auth.FromConfig(cfg),
	}
}

// Limits reports the bounds workers are held to under these options
func (o Options) Limits() domain.Limits {
	return domain.Limits{
		RowsPerCallback: chunk.DefaultRows,
		NonceMinLength:  callbackauth.MinNonceLen,
		NonceMaxLength:  callbackauth.MaxNonceLen,
		ClockSkewSecs:   int64(o.CallbackSkew / time.Second),
		MaxBodyBytes:    o.CallbackMaxBody,
		ErrorMessageMax: domain.ErrorMessageMax,
	}
}
