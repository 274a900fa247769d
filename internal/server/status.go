package server

import (
	"fmt"
	"net/http"

	"github.com/bantay-ai/bantay/internal/classifier"
	"github.com/bantay-ai/bantay/internal/events"
	"github.com/bantay-ai/bantay/internal/modelmetrics"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

type categoriesResponse struct {
	Count      int      `json:"count"`
	Categories []string `json:"categories"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats := classifier.Categories()
	writeJSON(w, http.StatusOK, categoriesResponse{Count: len(cats), Categories: cats})
}

type realTimeStats struct {
	TotalProcessedReports uint64 `json:"total_processed_reports"`
	FailedPredictions     uint64 `json:"failed_predictions"`
	EventsEnqueued        uint64 `json:"events_enqueued"`
	EventsDropped         uint64 `json:"events_dropped"`
}

type modelMetricsResponse struct {
	ModelAccuracy      *float64            `json:"model_accuracy"`
	LastUpdated        string              `json:"last_updated"`
	HealthStatus       modelmetrics.Health `json:"health_status"`
	MetricsSource      modelmetrics.Source `json:"metrics_source"`
	PerformanceMetrics map[string]any      `json:"performance_metrics"`
	RealTimeStats      realTimeStats       `json:"real_time_stats"`
	ModelStatus        classifier.Status   `json:"model_status"`
}

func (s *Server) handleModelMetrics(w http.ResponseWriter, r *http.Request) {
	st := s.engine.Status()
	var evStats events.Stats
	if s.emitter != nil {
		evStats = s.emitter.Stats()
	}
	writeJSON(w, http.StatusOK, modelMetricsResponse{
		ModelAccuracy:      s.metrics.ModelAccuracy,
		LastUpdated:        s.metrics.LastUpdated,
		HealthStatus:       modelmetrics.HealthStatus(s.metrics, st.ModelReady),
		MetricsSource:      s.metrics.Source,
		PerformanceMetrics: s.metrics.PerformanceMetrics,
		RealTimeStats: realTimeStats{
			TotalProcessedReports: s.engine.Predictions(),
			FailedPredictions:     s.engine.Failures(),
			EventsEnqueued:        evStats.Enqueued,
			EventsDropped:         evStats.Dropped,
		},
		ModelStatus: st,
	})
}
