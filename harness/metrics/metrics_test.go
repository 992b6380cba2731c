package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserver_CountsPerPhase(t *testing.T) {
	m := New()

	send := m.Observer("send")
	mint := m.Observer("mint")

	send.TransactionSubmitted()
	send.TransactionSubmitted()
	send.SubmissionFailed()
	send.TransactionConfirmed()
	send.BlockhashRefreshed()
	mint.ValidationFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.submitted.WithLabelValues("send")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissionFailed.WithLabelValues("send")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.confirmed.WithLabelValues("send")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.blockhashRefreshes.WithLabelValues("send")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.validationFailed.WithLabelValues("send")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validationFailed.WithLabelValues("mint")))
}

func TestObservePhase(t *testing.T) {
	m := New()
	m.ObservePhase("deploy", 2*time.Second, nil)
	m.ObservePhase("deploy", time.Second, assert.AnError)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.phaseFailures.WithLabelValues("deploy")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.phaseDuration))
}

func TestRouter(t *testing.T) {
	m := New()
	m.Observer("send").TransactionSubmitted()
	router := NewRouter(m)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `neonbench_batch_transactions_submitted_total{phase="send"} 1`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_StartAndShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := New()
	m.ObservePhase("send", time.Second, nil)
	srv, err := Start(ctx, "127.0.0.1:0", m, zerolog.Nop())
	require.NoError(t, err)

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "neonbench_phase_duration_seconds"))

	require.NoError(t, srv.Shutdown())
}

func TestServer_BadAddress(t *testing.T) {
	_, err := Start(context.Background(), "not-an-address", New(), zerolog.Nop())
	require.Error(t, err)
}
