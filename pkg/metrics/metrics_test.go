package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionGauge(t *testing.T) {
	m := New()

	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionsTotal))
}

func TestLabeledCounters(t *testing.T) {
	m := New()

	m.FrameReceived(2)
	m.FrameReceived(2)
	m.FrameDropped(DropDecrypt)
	m.AuthAttempt("login", "ok")
	m.MessageStored()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.framesReceived.WithLabelValues("2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.framesDropped.WithLabelValues(DropDecrypt)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authAttempts.WithLabelValues("login", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messagesStored))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.SessionOpened()
		m.SessionClosed()
		m.FrameReceived(1)
		m.FrameDropped(DropProtocol)
		m.AuthAttempt("register", "taken")
		m.MessageStored()
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.SessionOpened()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "zentalk_sessions_active 1")
}

func TestSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
