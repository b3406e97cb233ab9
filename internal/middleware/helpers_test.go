package middleware

import (
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// serve runs one request through r.
func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// seriesFor returns the collected series of c whose labels include all of labels.
func seriesFor(c prometheus.Collector, labels prometheus.Labels) *dto.Metric {
	ch := make(chan prometheus.Metric, 64)
	c.Collect(ch)
	close(ch)
	for m := range ch {
		var dm dto.Metric
		if err := m.Write(&dm); err != nil {
			continue
		}
		if hasLabels(dm.GetLabel(), labels) {
			return &dm
		}
	}
	return nil
}

func hasLabels(got []*dto.LabelPair, want prometheus.Labels) bool {
	for k, v := range want {
		found := false
		for _, lp := range got {
			if lp.GetName() == k && lp.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func counterOf(cv *prometheus.CounterVec, labels prometheus.Labels) float64 {
	if m := seriesFor(cv, labels); m != nil {
		return m.GetCounter().GetValue()
	}
	return 0
}

func histogramCountOf(hv *prometheus.HistogramVec, labels prometheus.Labels) uint64 {
	if m := seriesFor(hv, labels); m != nil {
		return m.GetHistogram().GetSampleCount()
	}
	return 0
}
