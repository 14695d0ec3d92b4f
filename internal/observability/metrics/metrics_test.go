package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
)

func TestWorkflowMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWorkflowMetrics("api", reg)

	m.RecordBatchDecision(domain.StateAnalisar, 3, 1)
	m.RecordBatchDecision(domain.StateAnalisar, 0, 2)
	m.RecordTransition(domain.StateParticipar, false)
	m.RecordStatsDegraded()
	m.RecordEventPublish(domain.EventAnalysisSaved, errors.New("down"))

	if got := testutil.ToFloat64(m.decisionsTotal.WithLabelValues("api", "ANALISAR")); got != 3 {
		t.Fatalf("decisions = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.skippedTotal.WithLabelValues("api", "ANALISAR")); got != 3 {
		t.Fatalf("skipped = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.transitionsTotal.WithLabelValues("api", "PARTICIPAR", "false")); got != 1 {
		t.Fatalf("transitions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.statsDegraded); got != 1 {
		t.Fatalf("stats degraded = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.eventPublishTotal.WithLabelValues("api", "analysis.saved", "error")); got != 1 {
		t.Fatalf("publish errors = %v, want 1", got)
	}
}

func TestBreakerStateGauge(t *testing.T) {
	m := NewWorkflowMetrics("api", prometheus.NewRegistry())

	m.RecordBreakerState("ledger.count_by_state", "closed", "open")
	if got := testutil.ToFloat64(m.breakerState.WithLabelValues("api", "ledger.count_by_state", "open")); got != 1 {
		t.Fatalf("open gauge = %v, want 1", got)
	}
	m.RecordBreakerState("ledger.count_by_state", "open", "closed")
	if got := testutil.ToFloat64(m.breakerState.WithLabelValues("api", "ledger.count_by_state", "open")); got != 0 {
		t.Fatalf("open gauge after close = %v, want 0", got)
	}
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/analysis/{site}/{listing_id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := m.Middleware("api", mux)

	for _, path := range []string{"/v1/analysis/A/1", "/v1/analysis/B/2"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodGet, "/v1/analysis/{site}/{listing_id}", "418"))
	if got != 2 {
		t.Fatalf("requests = %v, want 2", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "garimpo_http_requests_total") {
		t.Fatalf("expected exposition to contain request counter")
	}
}
