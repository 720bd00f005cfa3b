package domain

import "github.com/google/uuid"

// StartInput asks for a queued import of an uploaded backup
type StartInput struct {
	R2Key                 string  `json:"r2Key"                 validate:"required,max=1024" example:"imports/user-1/backup.sqlite"`
	FileName              *string `json:"fileName,omitempty"    validate:"omitempty,max=255" example:"backup.sqlite"`
	FileSize              int64   `json:"fileSize"              validate:"gt=0" example:"524288"`
	Checksum              *string `json:"checksum,omitempty"    validate:"omitempty,max=128"`
	IdempotencyKey        string  `json:"idempotencyKey"        validate:"required,min=8,max=128" example:"2f1c7c1e-upload"`
	TimezoneOffsetMinutes int     `json:"timezoneOffsetMinutes" validate:"min=-840,max=840" example:"300"`
}

// StartOutput identifies the batch serving a Start Import call
type StartOutput struct {
	BatchID      uuid.UUID `json:"batchId"`
	Deduplicated bool      `json:"deduplicated"`
	Status       Status    `json:"status"`
}

// SnapshotInput is a direct snapshot submission that skips the queue
type SnapshotInput struct {
	FileName              *string  `json:"fileName,omitempty" validate:"omitempty,max=255"`
	FileSize              int64    `json:"fileSize"           validate:"min=0"`
	Checksum              *string  `json:"checksum,omitempty" validate:"omitempty,max=128"`
	ReplaceAll            bool     `json:"replaceAll"`
	TimezoneOffsetMinutes int      `json:"timezoneOffsetMinutes" validate:"min=-840,max=840"`
	Snapshot              Snapshot `json:"snapshot"`
}

// ImportResult is the outcome of a reconcile and refine run
type ImportResult struct {
	BatchID  uuid.UUID `json:"batchId"`
	Status   Status    `json:"status"`
	Noop     bool      `json:"noop,omitempty"`
	Counts   Counts    `json:"counts"`
	Warnings []Warning `json:"warnings"`
}

// CallbackKind selects the callback action
type CallbackKind string

// Callback kinds
const (
	KindAck      CallbackKind = "ack"
	KindBegin    CallbackKind = "begin"
	KindCleanup  CallbackKind = "cleanup"
	KindRows     CallbackKind = "rows"
	KindFinalize CallbackKind = "finalize"
	KindSnapshot CallbackKind = "snapshot"
	KindFail     CallbackKind = "fail"
)

// CallbackInput is the verified JSON body of a worker callback
type CallbackInput struct {
	Kind       CallbackKind  `json:"kind"               validate:"required,oneof=ack begin cleanup rows finalize snapshot fail"`
	BatchID    string        `json:"batchId"            validate:"required,uuid"`
	ReplaceAll *bool         `json:"replaceAll,omitempty"`
	Table      SnapshotTable `json:"table,omitempty"    validate:"omitempty,oneof=houses patterns balls leagues weeks games frames"`
	Rows       []SourceRow   `json:"rows,omitempty"     validate:"max=500"`
	Snapshot   *Snapshot     `json:"snapshot,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// CallbackOutput answers a worker callback
type CallbackOutput struct {
	BatchID  uuid.UUID      `json:"batchId"`
	Kind     CallbackKind   `json:"kind"`
	Status   Status         `json:"status"`
	Noop     bool           `json:"noop,omitempty"`
	Accepted int            `json:"accepted,omitempty"`
	Cleanup  *CleanupResult `json:"cleanup,omitempty"`
	Result   *ImportResult  `json:"result,omitempty"`
}

// CleanupResult reports one bounded unit of replace-all cleanup
type CleanupResult struct {
	Done    bool             `json:"done"`
	Deleted map[string]int64 `json:"deleted"`
	Table   string           `json:"table,omitempty"`
}

// DispatchInput asks the dispatcher to hand a queued batch to the worker
type DispatchInput struct {
	BatchID               uuid.UUID
	UserID                string
	R2Key                 string
	TimezoneOffsetMinutes int
}

// DispatchBody is the signed JSON body sent to the worker
type DispatchBody struct {
	BatchID               string `json:"batchId"`
	UserID                string `json:"userId"`
	R2Key                 string `json:"r2Key"`
	TimezoneOffsetMinutes int    `json:"timezoneOffsetMinutes"`
}
