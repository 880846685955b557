// Package common provides helpers shared by the HTTP features.
package common

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/bridgeport/internal/metrics"
	"github.com/leapstack-labs/bridgeport/pkg/query"
)

// QueryParam is the route parameter holding the encoded envelope.
const QueryParam = "query"

// Param returns the route parameter name with percent-escapes decoded, so
// base64 padding sent as %3D survives.
func Param(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// Outcome returns the metrics status label for a request error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.StatusOK
	case errors.Is(err, query.ErrDecode), errors.Is(err, query.ErrSchema):
		return metrics.StatusInvalid
	default:
		return metrics.StatusError
	}
}
