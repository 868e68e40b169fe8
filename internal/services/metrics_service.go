package services

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	documentsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "legaldoc_documents_ingested_total",
		Help: "Documents ingested, by final status",
	}, []string{"status"})

	answersGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "legaldoc_answers_generated_total",
		Help: "Answers generated, by mode",
	}, []string{"mode"})

	feedbackRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "legaldoc_feedback_events_total",
		Help: "Feedback events recorded, by confidentiality",
	}, []string{"confidential"})

	retrainJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "legaldoc_retrain_jobs_total",
		Help: "Retrain jobs dispatched, by outcome",
	}, []string{"outcome"})

	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "legaldoc_generation_duration_seconds",
		Help:    "Answer generation latency, by mode",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})
)

// MetricsService 指标服务
type MetricsService struct{}

// NewMetricsService 创建指标服务
func NewMetricsService() *MetricsService {
	return &MetricsService{}
}

// Handler 返回Prometheus指标的HTTP处理器
func (ms *MetricsService) Handler() http.Handler {
	return promhttp.Handler()
}

// ServeHTTP 实现http.Handler接口
func (ms *MetricsService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ms.Handler().ServeHTTP(w, r)
}
