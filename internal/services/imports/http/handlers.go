// Package http provides http transport for imports
package http

import (
	"context"
	stdhttp "net/http"

	"laneledger/internal/modkit/httpkit"
	perr "laneledger/internal/platform/errors"
	"laneledger/internal/platform/net/middleware"
	"laneledger/internal/services/imports/callbackauth"
	"laneledger/internal/services/imports/domain"
	svc "laneledger/internal/services/imports/service"

	"github.com/google/uuid"
)

// CallbackVerifier authenticates a raw worker callback
type CallbackVerifier interface {
	Verify(ctx context.Context, r *stdhttp.Request) (callbackauth.Verified, error)
}

// Options bound request bodies
type Options struct {
	// SnapshotMaxBody caps direct snapshot and callback bodies
	SnapshotMaxBody int64
}

// Register mounts the routes. Callbacks authenticate by signature, every
// other route requires a bearer token
func Register(r httpkit.Router, s svc.Service, auth middleware.AuthPort, cb CallbackVerifier, opt Options) {
	if opt.SnapshotMaxBody <= 0 {
		opt.SnapshotMaxBody = callbackauth.DefaultMaxBody
	}
	h := &handlers{svc: s, cb: cb, opt: opt}

	r.Post("/callback", httpkit.Call(h.callback))

	httpkit.Protected(r, auth, func(pr httpkit.Router) {
		httpkit.PostBound[domain.StartInput](pr, "/", httpkit.DefaultJSONOptions(), h.start)
		httpkit.PostBound[domain.SnapshotInput](pr, "/snapshot", h.bodyOptions(), h.snapshot)
		httpkit.Get(pr, "/{batchId}", h.batch)
	})
}

type handlers struct {
	svc svc.Service
	cb  CallbackVerifier
	opt Options
}

func (h *handlers) bodyOptions() httpkit.JSONOptions {
	o := httpkit.DefaultJSONOptions()
	o.MaxBytes = h.opt.SnapshotMaxBody
	o.UseNumber = true
	return o
}

// swagger:route POST /imports Imports start
// @Summary Start an import of an uploaded SQLite backup
// @Tags imports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body domain.StartInput true "Upload"
// @Success 200 {object} domain.StartOutput "ok"
// @Failure 422 {object} httpkit.Envelope "invalid input"
// @Router /imports [post]
func (h *handlers) start(r *stdhttp.Request, in domain.StartInput) (any, error) {
	uid, err := httpkit.User(r)
	if err != nil {
		return nil, err
	}
	return h.svc.StartImport(r.Context(), uid, in)
}

// swagger:route POST /imports/snapshot Imports snapshot
// @Summary Import a parsed snapshot directly
// @Tags imports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body domain.SnapshotInput true "Snapshot"
// @Success 200 {object} domain.ImportResult "ok"
// @Router /imports/snapshot [post]
func (h *handlers) snapshot(r *stdhttp.Request, in domain.SnapshotInput) (any, error) {
	uid, err := httpkit.User(r)
	if err != nil {
		return nil, err
	}
	return h.svc.SubmitSnapshot(r.Context(), uid, in)
}

// swagger:route GET /imports/{batchId} Imports batch
// @Summary Read an import batch
// @Tags imports
// @Produce json
// @Security BearerAuth
// @Param batchId path string true "Batch id"
// @Success 200 {object} domain.Batch "ok"
// @Failure 404 {object} httpkit.Envelope "not found"
// @Router /imports/{batchId} [get]
func (h *handlers) batch(r *stdhttp.Request) (any, error) {
	uid, err := httpkit.User(r)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(httpkit.Param(r, "batchId"))
	if err != nil {
		return nil, perr.WithField(perr.InvalidArgf("batchId must be a uuid"), "batchId")
	}
	return h.svc.GetBatch(r.Context(), uid, id)
}

// swagger:route POST /imports/callback Imports callback
// @Summary Signed worker callback
// @Tags imports
// @Accept json
// @Produce json
// @Param x-import-ts header string true "Unix seconds"
// @Param x-import-nonce header string true "Single use nonce"
// @Param x-import-signature header string true "HMAC-SHA256 hex"
// @Param payload body domain.CallbackInput true "Callback"
// @Success 200 {object} domain.CallbackOutput "ok"
// @Failure 401 {object} httpkit.Envelope "rejected"
// @Router /imports/callback [post]
func (h *handlers) callback(r *stdhttp.Request) (any, error) {
	v, err := h.cb.Verify(r.Context(), r)
	if err != nil {
		return nil, err
	}
	in, err := httpkit.ParseBytes[domain.CallbackInput](v.Body, h.bodyOptions())
	if err != nil {
		return nil, err
	}
	return h.svc.HandleCallback(r.Context(), in)
}
