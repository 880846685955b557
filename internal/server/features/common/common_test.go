package common

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/bridgeport/internal/metrics"
	"github.com/leapstack-labs/bridgeport/pkg/query"
)

func TestParam(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain", raw: "eyJ2IjozfQ", want: "eyJ2IjozfQ"},
		{name: "escaped padding", raw: "eyJ2IjozfQ%3D%3D", want: "eyJ2IjozfQ=="},
		{name: "invalid escape kept", raw: "abc%zz", want: "abc%zz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add(QueryParam, tt.raw)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			assert.Equal(t, tt.want, Param(req, QueryParam))
		})
	}
}

func TestOutcome(t *testing.T) {
	_, decodeErr := query.Decode("!!!")
	schemaErr := query.Validate(nil, query.ModeBatch)

	assert.Equal(t, metrics.StatusOK, Outcome(nil))
	assert.Equal(t, metrics.StatusInvalid, Outcome(decodeErr))
	assert.Equal(t, metrics.StatusInvalid, Outcome(schemaErr))
	assert.Equal(t, metrics.StatusError, Outcome(errors.New("connection refused")))
}
