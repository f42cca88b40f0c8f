package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 规划阶段耗时（秒）
	PlanningStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "planning_stage_duration_seconds",
			Help:    "Duration of planning engine stages in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"stage", "status"}, // stage: decompose, schedule, allocate
	)

	// WBS 节点生成计数
	WbsNodesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wbs_nodes_generated_total",
			Help: "Total number of WBS nodes generated",
		},
		[]string{"source"}, // source: template, default, suggestion, rule
	)

	// 计划建议服务调用延迟（毫秒）
	SuggestionCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plan_suggestion_call_latency_ms",
			Help:    "Plan suggestion service call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(50, 2, 10), // 50ms to ~25s
		},
		[]string{"status"},
	)

	// 调度冲突计数
	ScheduleConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedule_conflicts_total",
			Help: "Total number of schedule conflicts detected",
		},
		[]string{"type"},
	)

	// 资源分配计数
	AllocationsProduced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resource_allocations_total",
			Help: "Total number of resource allocations produced",
		},
		[]string{"allocation_type"},
	)

	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
		[]string{"routing_key", "result"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of slow database queries",
		},
		[]string{"operation"},
	)
)

// ObserveStage 记录规划阶段耗时
func ObserveStage(stage string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	PlanningStageDuration.WithLabelValues(stage, status).Observe(duration.Seconds())
}

// AddWbsNodes 增加节点生成计数
func AddWbsNodes(source string, n int) {
	if n <= 0 {
		return
	}
	WbsNodesGenerated.WithLabelValues(source).Add(float64(n))
}

// RecordSuggestionLatency 记录建议服务调用延迟
func RecordSuggestionLatency(status string, duration time.Duration) {
	SuggestionCallLatency.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

// IncrementConflict 增加冲突计数
func IncrementConflict(conflictType string) {
	ScheduleConflicts.WithLabelValues(conflictType).Inc()
}

// IncrementAllocation 增加分配计数
func IncrementAllocation(allocationType string) {
	AllocationsProduced.WithLabelValues(allocationType).Inc()
}

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, result string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, result).Observe(float64(duration.Milliseconds()))
}

// IncrementSlowQuery 增加慢查询计数
func IncrementSlowQuery(operation string) {
	SlowQueryCount.WithLabelValues(operation).Inc()
}
