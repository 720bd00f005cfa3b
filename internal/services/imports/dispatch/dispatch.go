// Package dispatch hands queued import batches to the external worker over a
// signed HTTP request. Every failure is recorded on the batch, never returned
package dispatch

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"laneledger/internal/core/signing"
	perr "laneledger/internal/platform/errors"
	"laneledger/internal/platform/logger"
	"laneledger/internal/platform/metrics"
	ptime "laneledger/internal/platform/time"
	"laneledger/internal/services/imports/domain"

	"github.com/cenkalti/backoff/v4"
)

// Worker paths the dispatcher may post to
const (
	PathQueue   = "/imports/queue"
	PathProcess = "/imports/process"
)

// Dispatch outcomes, used as metric labels
const (
	OutcomeDelivered = "delivered"
	OutcomeRejected  = "rejected"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Options configure the dispatcher
type Options struct {
	URL     string
	Path    string
	Secret  string
	Timeout time.Duration

	// Retries bounds transport retries; HTTP responses are never retried
	Retries   int
	RetryBase time.Duration

	// Client overrides the http client, Timeout is ignored when set
	Client *http.Client
}

// Dispatcher implements domain.DispatchPort
type Dispatcher struct {
	batches domain.BatchStore
	opts    Options
	client  *http.Client
	now     func() time.Time
	nonce   func() (string, error)
}

var _ domain.DispatchPort = (*Dispatcher)(nil)

// New returns a dispatcher that records failures through batches
func New(batches domain.BatchStore, opts Options) *Dispatcher {
	if batches == nil {
		panic("dispatch requires a non nil BatchStore")
	}
	if opts.Path == "" {
		opts.Path = PathQueue
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 250 * time.Millisecond
	}
	c := opts.Client
	if c == nil {
		c = &http.Client{Timeout: opts.Timeout}
	}
	return &Dispatcher{batches: batches, opts: opts, client: c, now: time.Now, nonce: randomNonce}
}

// randomNonce returns 32 hex chars
func randomNonce() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

// Dispatch posts the batch to the worker. A 2xx answer leaves the batch queued
func (d *Dispatcher) Dispatch(ctx context.Context, in domain.DispatchInput) {
	ctx = logger.WithBatch(ctx, in.BatchID.String(), in.UserID)
	log := logger.C(ctx)

	b, err := d.batches.GetBatch(ctx, in.BatchID)
	if err != nil {
		metrics.DispatchesTotal.WithLabelValues(OutcomeSkipped).Inc()
		log.Error().Err(err).Msg("dispatch: batch lookup failed")
		if !perr.IsCode(err, perr.ErrorCodeNotFound) {
			d.fail(ctx, in, "dispatch failed: batch lookup error")
		}
		return
	}
	if reason := d.precheck(b, in); reason != "" {
		log.Warn().Str("status", string(b.Status)).Str("reason", reason).Msg("dispatch: precheck failed")
		d.fail(ctx, in, reason)
		return
	}

	body, err := json.Marshal(domain.DispatchBody{
		BatchID:               in.BatchID.String(),
		UserID:                in.UserID,
		R2Key:                 in.R2Key,
		TimezoneOffsetMinutes: in.TimezoneOffsetMinutes,
	})
	if err != nil {
		d.fail(ctx, in, "dispatch failed: encode body: "+err.Error())
		return
	}

	status, err := d.post(ctx, body)
	switch {
	case err != nil:
		d.fail(ctx, in, "dispatch failed: "+err.Error())
	case status < 200 || status > 299:
		metrics.DispatchesTotal.WithLabelValues(OutcomeRejected).Inc()
		d.fail(ctx, in, fmt.Sprintf("dispatch failed: worker answered %d", status))
	default:
		metrics.DispatchesTotal.WithLabelValues(OutcomeDelivered).Inc()
		log.Info().Int("status", status).Msg("dispatch: delivered")
	}
}

// precheck returns a failure message when the batch may not be dispatched
func (d *Dispatcher) precheck(b domain.Batch, in domain.DispatchInput) string {
	switch {
	case b.UserID != in.UserID:
		return "dispatch failed: batch owner mismatch"
	case b.Status != domain.StatusQueued:
		return "dispatch failed: batch is " + string(b.Status)
	case b.R2Key == nil || *b.R2Key != in.R2Key:
		return "dispatch failed: r2 key mismatch"
	case strings.TrimSpace(d.opts.URL) == "":
		return "dispatch failed: worker url is not configured"
	case d.opts.Secret == "":
		return "dispatch failed: worker secret is not configured"
	case d.opts.Path != PathQueue && d.opts.Path != PathProcess:
		return "dispatch failed: worker path " + strconv.Quote(d.opts.Path) + " is not allowed"
	}
	return ""
}

// post signs and sends body, retrying transport errors only
func (d *Dispatcher) post(ctx context.Context, body []byte) (int, error) {
	url := strings.TrimRight(d.opts.URL, "/") + d.opts.Path

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.opts.RetryBase
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(d.opts.Retries)), ctx)

	var status int
	err := backoff.Retry(func() error {
		nonce, err := d.nonce()
		if err != nil {
			return backoff.Permanent(err)
		}
		ts := d.now().Unix()
		sig, _ := signing.Sign(d.opts.Secret, d.opts.Path, ts, nonce, body)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(signing.HeaderTimestamp, strconv.FormatInt(ts, 10))
		req.Header.Set(signing.HeaderNonce, nonce)
		req.Header.Set(signing.HeaderSignature, sig)

		resp, err := d.client.Do(req)
		if err != nil {
			logger.C(ctx).Warn().Err(err).Msg("dispatch: transport error")
			return err
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
		status = resp.StatusCode
		return nil
	}, policy)
	return status, err
}

// fail moves the batch to failed; a lost race with another transition is fine
func (d *Dispatcher) fail(ctx context.Context, in domain.DispatchInput, reason string) {
	metrics.DispatchesTotal.WithLabelValues(OutcomeFailed).Inc()
	msg := domain.ClipErrorMessage(reason)
	ctx = logger.WithBatch(ctx, in.BatchID.String(), in.UserID)
	log := logger.C(ctx)
	ok, err := d.batches.UpdateStatus(ctx, in.BatchID, domain.StatusFailed, ptime.UTCPtr(d.now()), &msg)
	if err != nil {
		log.Error().Err(err).Msg("dispatch: mark failed")
		return
	}
	if ok {
		metrics.BatchesFinishedTotal.WithLabelValues(string(domain.StatusFailed)).Inc()
	}
	log.Warn().Bool("marked", ok).Str("reason", msg).Msg("dispatch: batch failed")
}
