package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citizenportal/pkg/testutil"
)

func TestHealthHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("dial tcp: connection refused") }

	t.Run("all dependencies up", func(t *testing.T) {
		rr := httptest.NewRecorder()
		HealthHandler(map[string]Check{"database": ok, "redis": ok}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[healthResponse](t, rr)
		assert.Equal(t, "ok", resp.Status)
		assert.Len(t, resp.Checks, 2)
	})

	t.Run("one dependency down", func(t *testing.T) {
		rr := httptest.NewRecorder()
		HealthHandler(map[string]Check{"database": ok, "redis": down}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.NotContains(t, rr.Body.String(), "connection refused")
		resp := testutil.UnmarshalResponse[healthResponse](t, rr)
		assert.Equal(t, "unavailable", resp.Checks["redis"])
	})

	t.Run("no checks in memory mode", func(t *testing.T) {
		rr := httptest.NewRecorder()
		HealthHandler(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}
