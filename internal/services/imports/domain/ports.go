package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ServicePort is the interface implemented by the imports service
type ServicePort interface {
	StartImport(ctx context.Context, userID string, in StartInput) (StartOutput, error)
	SubmitSnapshot(ctx context.Context, userID string, in SnapshotInput) (ImportResult, error)
	HandleCallback(ctx context.Context, in CallbackInput) (CallbackOutput, error)
	GetBatch(ctx context.Context, userID string, id uuid.UUID) (Batch, error)
}

// DispatchPort hands a queued batch to the external worker.
// Failures are recorded on the batch, never returned
type DispatchPort interface {
	Dispatch(ctx context.Context, in DispatchInput)
}

// CanonicalStore is the persistence surface reconciliation and refinement write through
type CanonicalStore interface {
	FindHouseByKey(ctx context.Context, key string) (uuid.UUID, bool, error)
	InsertHouse(ctx context.Context, h House) (uuid.UUID, error)
	FindPatternByKey(ctx context.Context, key string) (uuid.UUID, bool, error)
	InsertPattern(ctx context.Context, p Pattern) (uuid.UUID, error)
	FindBallByKey(ctx context.Context, userID, key string) (uuid.UUID, bool, error)
	InsertBall(ctx context.Context, b Ball) (uuid.UUID, error)
	InsertLeague(ctx context.Context, l League) (uuid.UUID, error)
	InsertSession(ctx context.Context, s Session) (uuid.UUID, error)
	InsertGame(ctx context.Context, g Game) (uuid.UUID, error)
	InsertFrames(ctx context.Context, frames []Frame) error

	PatchSession(ctx context.Context, id uuid.UUID, p SessionPatch) error
	PatchGame(ctx context.Context, id uuid.UUID, p GamePatch) error
}

// BatchStore is the batch lifecycle persistence surface
type BatchStore interface {
	CreateBatch(ctx context.Context, nb NewBatch) (Batch, error)
	// GetBatch fails with a NotFound error when id is unknown
	GetBatch(ctx context.Context, id uuid.UUID) (Batch, error)
	GetBatchByIdempotencyKey(ctx context.Context, userID, key string) (Batch, bool, error)
	// UpdateStatus moves the batch to `to` only from a legal predecessor and
	// reports whether a row changed
	UpdateStatus(ctx context.Context, id uuid.UUID, to Status, completedAt *time.Time, errorMessage *string) (bool, error)
	SetReplaceAll(ctx context.Context, id uuid.UUID, replaceAll bool) error
	// CompleteBatch finalizes counts and warnings while moving importing -> completed
	CompleteBatch(ctx context.Context, id uuid.UUID, counts Counts, warnings []Warning, completedAt time.Time) (bool, error)
}

// NonceStore is the replay ledger
type NonceStore interface {
	NonceExists(ctx context.Context, nonce string) (bool, error)
	// InsertNonce fails with a DuplicateKey error when the nonce was already used
	InsertNonce(ctx context.Context, nonce string, createdAt, expiresAt time.Time) error
}

// RawInsert is one verbatim source row bound for a mirror table
type RawInsert struct {
	UserID  string
	BatchID uuid.UUID
	Row     SourceRow
}

// RawStore is the raw mirror and frame staging surface. A row is stored at
// most once per (user, batch, sqliteId); inserts report how many rows were new
type RawStore interface {
	InsertRawRow(ctx context.Context, t RawTable, in RawInsert, at time.Time) (bool, error)
	InsertRawRows(ctx context.Context, t RawTable, userID string, batchID uuid.UUID, rows []SourceRow, at time.Time) (int64, error)
	LoadRawRows(ctx context.Context, t RawTable, userID string, batchID uuid.UUID) ([]SourceRow, error)

	StageFrames(ctx context.Context, userID string, batchID uuid.UUID, rows []SourceRow, at time.Time) (int64, error)
	LoadStagedFrames(ctx context.Context, userID string, batchID uuid.UUID) ([]SourceRow, error)
	DropStagedFrames(ctx context.Context, batchID uuid.UUID) error
}

// CleanupStore deletes prior imported data in bounded chunks
type CleanupStore interface {
	// DeleteChunk removes up to limit rows of userID from t, sparing raw rows
	// of keepBatchID, and returns how many were removed
	DeleteChunk(ctx context.Context, t CleanupTable, userID string, keepBatchID uuid.UUID, limit int) (int64, error)
	// PriorExists reports whether DeleteChunk would still find a row
	PriorExists(ctx context.Context, t CleanupTable, userID string, keepBatchID uuid.UUID) (bool, error)
}
