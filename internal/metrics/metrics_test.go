package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordJob(t *testing.T) {
	m := New()

	m.RecordJob("ANALYSE", true)
	m.RecordJob("ANALYSE", true)
	m.RecordJob("REDACT", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.jobsTotal.WithLabelValues("ANALYSE", "SUCCESS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsTotal.WithLabelValues("REDACT", "FAIL")))
}

func TestActiveJobsGauge(t *testing.T) {
	m := New()

	m.JobStarted()
	m.JobStarted()
	m.JobFinished()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeJobs))
}

func TestRecordTokensAndSpend(t *testing.T) {
	m := New()

	m.RecordTokens(100, 25)
	m.RecordTokens(50, 10)
	m.RecordSpend(0.003)
	m.RecordSpend(-1) // ignored

	assert.Equal(t, 150.0, testutil.ToFloat64(m.tokensTotal.WithLabelValues("prompt")))
	assert.Equal(t, 35.0, testutil.ToFloat64(m.tokensTotal.WithLabelValues("completion")))
	assert.InDelta(t, 0.003, testutil.ToFloat64(m.spendTotal), 1e-9)

	m.RecordRetry()
	m.RecordRetry()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.retriesTotal))
}

func TestRecordCandidates(t *testing.T) {
	m := New()

	m.RecordCandidates(10, 7)
	m.RecordCandidates(3, 3)

	assert.Equal(t, 13.0, testutil.ToFloat64(m.candidatesFound))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.candidatesAccepted))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.candidatesRejected))
}

func TestHandlerServesTextFormat(t *testing.T) {
	m := New()
	m.RecordJob("ANALYSE", true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "redactor_jobs_total")
}
