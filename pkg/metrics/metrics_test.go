package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eosc4cancer/cbiobridge/pkg/metrics"
	"github.com/eosc4cancer/cbiobridge/pkg/tabular"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	t.Run("observations are exposed", func(t *testing.T) {
		testee := metrics.New()
		testee.ObserveImport("incremental", true, 3*time.Second)
		testee.ObserveImport("incremental", false, time.Second)
		testee.ObserveCacheClear(true)
		testee.ObserveMerge(tabular.VariantTimeline, tabular.Report{Existing: 2, Replaced: 1, Incoming: 2})
		testee.ObserveConnect("galaxy", "retrying")

		if n, err := testutil.GatherAndCount(testee.Registry(), "cbiobridge_imports_total"); err != nil || n != 2 {
			t.Errorf("imports_total series = %d (%v)", n, err)
		}

		rec := httptest.NewRecorder()
		testee.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		body, err := io.ReadAll(rec.Result().Body)
		if err != nil {
			t.Fatal(err)
		}
		for _, want := range []string{
			`cbiobridge_cache_clears_total{succeeded="true"} 1`,
			`cbiobridge_merged_rows_total{kind="replaced",variant="timeline"} 1`,
			`cbiobridge_connect_transitions_total{platform="galaxy",state="retrying"} 1`,
		} {
			if !strings.Contains(string(body), want) {
				t.Errorf("%s is not exposed", want)
			}
		}
	})

	t.Run("nil metrics discards observations", func(t *testing.T) {
		var testee *metrics.Metrics
		testee.ObserveImport("full", true, time.Second)
		testee.ObserveCacheClear(false)
		testee.ObserveMerge(tabular.VariantResourcePatient, tabular.Report{})
		testee.ObserveConnect("galaxy", "connected")

		rec := httptest.NewRecorder()
		testee.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		if rec.Code != 404 {
			t.Errorf("status = %d", rec.Code)
		}
	})
}
