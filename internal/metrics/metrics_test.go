package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordChannelSend(t *testing.T) {
	before := testutil.ToFloat64(channelSendsTotal.WithLabelValues("sms", "failure", "NETWORK_ERROR"))

	RecordChannelSend("sms", false, "NETWORK_ERROR", 20*time.Millisecond)

	after := testutil.ToFloat64(channelSendsTotal.WithLabelValues("sms", "failure", "NETWORK_ERROR"))
	assert.Equal(t, before+1, after)
}

func TestRecordSubmission(t *testing.T) {
	before := testutil.ToFloat64(formSubmissionsTotal.WithLabelValues("booking", "accepted"))
	RecordSubmission("booking", "accepted")
	assert.Equal(t, before+1, testutil.ToFloat64(formSubmissionsTotal.WithLabelValues("booking", "accepted")))
}

func TestPrometheusMiddlewareCountsRequests(t *testing.T) {
	handler := PrometheusMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	counter := httpRequestsTotal.WithLabelValues(http.MethodPost, "/api/test", "418")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/test", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
