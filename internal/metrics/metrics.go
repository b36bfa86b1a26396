package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// 搜索指标
var (
	// SearchesTotal 搜索请求总数，path: keyword, semantic, list
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_searches_total",
			Help: "搜索请求总数",
		},
		[]string{"path", "status"},
	)

	// SearchDuration 搜索耗时（秒）
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_search_duration_seconds",
			Help:    "搜索耗时分布",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1, 2, 5},
		},
		[]string{"path"},
	)

	// SearchResults 搜索返回结果数量
	SearchResults = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_search_results",
			Help:    "搜索返回结果数量分布",
			Buckets: []float64{0, 1, 3, 5, 10, 20, 50},
		},
		[]string{"path"},
	)
)

// 外部服务调用指标
var (
	// ExternalCallsTotal 外部服务调用总数，service: embedding, vector_index
	ExternalCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_external_calls_total",
			Help: "外部服务调用总数",
		},
		[]string{"service", "status"},
	)

	// ExternalCallDuration 外部服务调用耗时（秒）
	ExternalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_external_call_duration_seconds",
			Help:    "外部服务调用耗时分布",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"service"},
	)
)

// 向量镜像指标
var (
	// VectorMirrorTasksTotal 向量镜像任务总数
	VectorMirrorTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_vector_mirror_tasks_total",
			Help: "向量镜像任务总数",
		},
		[]string{"type", "status"}, // type: upsert, delete
	)
)
