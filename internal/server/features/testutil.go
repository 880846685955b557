// Package features provides shared test utilities for HTTP feature tests.
package features

import (
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/bridgeport/internal/bridge"
	"github.com/leapstack-labs/bridgeport/internal/store/storetest"
	"github.com/leapstack-labs/bridgeport/internal/testutil"
	"github.com/leapstack-labs/bridgeport/pkg/query"
)

// TestFixture holds all dependencies needed for feature handler tests.
type TestFixture struct {
	Store  *storetest.Store
	Bridge *bridge.Bridge
	Logger *slog.Logger
}

// SetupTestFixture creates a fixture backed by an in-memory store.
func SetupTestFixture(t *testing.T) *TestFixture {
	t.Helper()

	logger := testutil.NewTestLogger(t)
	fake := storetest.New()

	return &TestFixture{
		Store:  fake,
		Bridge: bridge.New(bridge.Config{Store: fake, Logger: logger}),
		Logger: logger,
	}
}

// Router returns a chi router with routes registered by setup.
func (f *TestFixture) Router(t *testing.T, setup func(chi.Router) error) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	require.NoError(t, setup(r))
	return r
}

// Encode returns envelope as a URL path segment.
func Encode(t *testing.T, envelope string) string {
	t.Helper()
	encoded, err := query.Encode([]byte(envelope))
	require.NoError(t, err)
	return encoded
}
