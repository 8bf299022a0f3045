package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	t.Run("count operations by outcome", func(t *testing.T) {
		r := NewRecorder()

		r.AuthOperation("login", OutcomeSuccess, 10*time.Millisecond)
		r.AuthOperation("login", OutcomeSuccess, 10*time.Millisecond)
		r.AuthOperation("login", OutcomeFailure, 10*time.Millisecond)

		assert.Equal(t, 2.0, testutil.ToFloat64(r.operations.WithLabelValues("login", OutcomeSuccess)))
		assert.Equal(t, 1.0, testutil.ToFloat64(r.operations.WithLabelValues("login", OutcomeFailure)))
	})

	t.Run("nil recorder is noop", func(t *testing.T) {
		var r *Recorder

		assert.NotPanics(t, func() { r.AuthOperation("login", OutcomeSuccess, time.Second) })
	})

	t.Run("handler exposes metrics", func(t *testing.T) {
		r := NewRecorder()
		r.AuthOperation("refresh", OutcomeFailure, time.Millisecond)

		rec := httptest.NewRecorder()
		r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		body, err := io.ReadAll(rec.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `vidtube_auth_operations_total{operation="refresh",outcome="failure"} 1`)
		assert.Contains(t, string(body), "vidtube_auth_operation_duration_seconds")
	})
}
