// Package callbackauth verifies signed import worker callbacks before any
// state-changing work runs
package callbackauth

import (
	"context"
	"errors"
	"io"
	"math"
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
)

// Defaults
const (
	DefaultPath     = "/api/v1/imports/callback"
	DefaultSkew     = 5 * time.Minute
	DefaultNonceTTL = 15 * time.Minute
	DefaultMaxBody  = 32 << 20

	MinNonceLen = 16
	MaxNonceLen = 128
)

// Rejection reasons, used as log fields and metric labels
const (
	ReasonMissingHeader = "missing_header"
	ReasonBadTimestamp  = "bad_timestamp"
	ReasonSkew          = "skew"
	ReasonNonceLength   = "nonce_length"
	ReasonReplay        = "replay"
	ReasonSignature     = "signature"
	ReasonBody          = "body"
)

// Options configure an Authenticator
type Options struct {
	Secret   string
	Path     string
	Skew     time.Duration
	NonceTTL time.Duration
	MaxBody  int64
}

// Verified is a callback that passed every check; its nonce is now consumed
type Verified struct {
	Body      []byte
	Now       time.Time
	Nonce     string
	Timestamp int64
}

// Authenticator checks headers, freshness, replay and signature of callbacks
type Authenticator struct {
	opts   Options
	nonces domain.NonceStore
	now    func() time.Time
}

// New returns an Authenticator writing consumed nonces to nonces
func New(nonces domain.NonceStore, opts Options) *Authenticator {
	if nonces == nil {
		panic("callbackauth requires a non nil NonceStore")
	}
	if opts.Path == "" {
		opts.Path = DefaultPath
	}
	if opts.Skew <= 0 {
		opts.Skew = DefaultSkew
	}
	if opts.NonceTTL <= 0 {
		opts.NonceTTL = DefaultNonceTTL
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = DefaultMaxBody
	}
	return &Authenticator{opts: opts, nonces: nonces, now: time.Now}
}

// Path is the path covered by the signature
func (a *Authenticator) Path() string { return a.opts.Path }

func (a *Authenticator) reject(ctx context.Context, reason, format string, args ...any) error {
	metrics.CallbackRejectionsTotal.WithLabelValues(reason).Inc()
	logger.C(ctx).Warn().Str("reason", reason).Msg("callbackauth: rejected")
	return perr.WithOp(perr.Unauthorizedf(format, args...), reason)
}

// Verify authenticates r and consumes its nonce. Every failure is an
// Unauthorized error except a missing secret, which is a Configuration error
func (a *Authenticator) Verify(ctx context.Context, r *http.Request) (Verified, error) {
	if a.opts.Secret == "" {
		logger.C(ctx).Error().Msg("callbackauth: callback secret is not configured")
		return Verified{}, perr.Configurationf("import callback secret is not configured")
	}

	tsRaw := strings.TrimSpace(r.Header.Get(signing.HeaderTimestamp))
	nonce := strings.TrimSpace(r.Header.Get(signing.HeaderNonce))
	sig := strings.TrimSpace(r.Header.Get(signing.HeaderSignature))
	if tsRaw == "" || nonce == "" || sig == "" {
		return Verified{}, a.reject(ctx, ReasonMissingHeader, "missing callback signature headers")
	}

	tsf, err := strconv.ParseFloat(tsRaw, 64)
	if err != nil || math.IsNaN(tsf) || math.IsInf(tsf, 0) {
		return Verified{}, a.reject(ctx, ReasonBadTimestamp, "callback timestamp is not a number")
	}
	now := a.now()
	if ptime.Drift(now, tsf) > a.opts.Skew {
		return Verified{}, a.reject(ctx, ReasonSkew, "callback timestamp outside allowed skew")
	}
	ts := int64(tsf)

	if n := len(nonce); n < MinNonceLen || n > MaxNonceLen {
		return Verified{}, a.reject(ctx, ReasonNonceLength, "callback nonce must be %d-%d characters", MinNonceLen, MaxNonceLen)
	}

	seen, err := a.nonces.NonceExists(ctx, nonce)
	if err != nil {
		return Verified{}, err
	}
	if seen {
		return Verified{}, a.reject(ctx, ReasonReplay, "callback nonce already used")
	}

	body, err := readBody(r, a.opts.MaxBody)
	if err != nil {
		metrics.CallbackRejectionsTotal.WithLabelValues(ReasonBody).Inc()
		return Verified{}, err
	}

	if !signing.Verify(a.opts.Secret, a.opts.Path, ts, nonce, body, sig) {
		return Verified{}, a.reject(ctx, ReasonSignature, "callback signature mismatch")
	}

	if err := a.nonces.InsertNonce(ctx, nonce, now, now.Add(a.opts.NonceTTL)); err != nil {
		if perr.IsCode(err, perr.ErrorCodeDuplicateKey) || perr.IsDuplicateKey(err) {
			return Verified{}, a.reject(ctx, ReasonReplay, "callback nonce already used")
		}
		return Verified{}, err
	}
	return Verified{Body: body, Now: now, Nonce: nonce, Timestamp: ts}, nil
}

func readBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil {
		return []byte{}, nil
	}
	defer func() { _ = r.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, perr.Validationf("callback body exceeds %d bytes", limit)
		}
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "read callback body")
	}
	if int64(len(b)) > limit {
		return nil, perr.Validationf("callback body exceeds %d bytes", limit)
	}
	return b, nil
}
