package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-engine/internal/metrics"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *metrics.Metrics
	m.Login("t1", "password", true)
	m.Lockout("t1")
	m.CleanupDeleted("sessions", 3)
	require.Nil(t, m.Registry())
}

func TestCountersAreExposed(t *testing.T) {
	m := metrics.New()
	m.Login("t1", "password", false)
	m.Login("t1", "password", false)
	m.CodeIssued("t1", "otp")
	m.ObserveHTTP("GET", "/authorize", 302, 10*time.Millisecond)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	require.Contains(t, string(body), `auth_logins_total{method="password",result="failure",tenant="t1"} 2`)
	require.Contains(t, string(body), `auth_codes_issued_total{tenant="t1",type="otp"} 1`)
}
