package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrumentHandlerUsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(InstrumentHandler)
	router.HandleFunc("/missions/{id}/claim", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}).Methods(http.MethodPost)

	before := testutil.ToFloat64(httpRequests.WithLabelValues("POST", "/missions/{id}/claim", "201"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/missions/abc/claim", nil))

	after := testutil.ToFloat64(httpRequests.WithLabelValues("POST", "/missions/{id}/claim", "201"))
	if after-before != 1 {
		t.Fatalf("expected one request recorded, got %v", after-before)
	}
}

func TestRecordPointEntry(t *testing.T) {
	before := testutil.ToFloat64(pointAmount.WithLabelValues("earn"))
	RecordPointEntry("earn", "mission", 40)
	if got := testutil.ToFloat64(pointAmount.WithLabelValues("earn")) - before; got != 40 {
		t.Fatalf("amount delta = %v", got)
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	RecordMaintenanceRun("voucher_expiry", 2, 0, true)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "revibes_maintenance_job_runs_total") {
		t.Fatalf("maintenance metric missing from exposition")
	}
}
