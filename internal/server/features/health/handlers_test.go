package health

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/bridgeport/internal/store/storetest"
)

func TestHealthz(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "store reachable",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ok"}`,
		},
		{
			name:       "store down",
			pingErr:    errors.New("server selection timeout"),
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"status":"unavailable","error":"server selection timeout"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := storetest.New()
			fake.PingErr = tt.pingErr
			h := NewHandlers(fake)

			rec := httptest.NewRecorder()
			h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}
