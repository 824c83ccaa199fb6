package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAskMetrics(t *testing.T) {
	before := testutil.ToFloat64(askTotal.WithLabelValues("validation_rejected", "validating"))
	ObserveAsk("validation_rejected", "validating")
	if got := testutil.ToFloat64(askTotal.WithLabelValues("validation_rejected", "validating")); got-before != 1 {
		t.Fatalf("askdb_ask_total delta = %v", got-before)
	}

	beforeRejections := testutil.ToFloat64(sqlRejectionsTotal.WithLabelValues("unsafe_keyword"))
	IncrementSQLRejection("unsafe_keyword")
	if got := testutil.ToFloat64(sqlRejectionsTotal.WithLabelValues("unsafe_keyword")); got-beforeRejections != 1 {
		t.Fatalf("askdb_sql_rejections_total delta = %v", got-beforeRejections)
	}

	ObserveAskStage("executing", 25*time.Millisecond)
	ObserveResultRows(-3)
	ObserveResultRows(12)
}

func TestMetricsMiddlewareTracksInFlight(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsInFlight)
	var during float64
	h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = testutil.ToFloat64(httpRequestsInFlight)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ask", nil))

	if during-before != 1 {
		t.Fatalf("in-flight during request = %v, want %v", during, before+1)
	}
	if got := testutil.ToFloat64(httpRequestsInFlight); got != before {
		t.Fatalf("in-flight after request = %v, want %v", got, before)
	}
}
