package httpkit

import (
	"net/http"

	phttp "laneledger/internal/platform/net/http"
	"laneledger/internal/platform/net/http/bind"

	"github.com/go-chi/chi/v5"
)

// Get registers a no-body handler and uses the envelope adapter
func Get(r Router, path string, h func(*http.Request) (any, error)) {
	r.Get(path, Call(h))
}

// JSONOptions controls body parsing for bound handlers
type JSONOptions = bind.JSONOptions

// DefaultJSONOptions caps bodies at 1MiB and rejects unknown fields
func DefaultJSONOptions() JSONOptions {
	return JSONOptions{MaxBytes: 1 << 20, DisallowUnknown: true}
}

// Bound parses and validates T with opts before calling fn
func Bound[T any](opts JSONOptions, fn func(*http.Request, T) (any, error)) Handler {
	return phttp.Handle(func(r *http.Request) Response {
		in, err := bind.ParseJSON[T](r, opts)
		if err != nil {
			return phttp.Error(err)
		}
		return reply(fn(r, in))
	})
}

// PostBound mounts a validated JSON handler under POST
func PostBound[T any](r Router, path string, opts JSONOptions, h func(*http.Request, T) (any, error)) {
	r.Post(path, Bound(opts, h))
}

// Param returns a named path parameter of the matched route
func Param(r *http.Request, name string) string { return chi.URLParam(r, name) }

// ParseBytes decodes and validates a body that was already read
func ParseBytes[T any](body []byte, opts JSONOptions) (T, error) {
	return bind.ParseBytes[T](body, opts)
}
