package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvix",
			Subsystem: "generation",
			Name:      "requests_total",
			Help:      "简历生成请求总数，按模板与结果分类。",
		},
		[]string{"template", "outcome"},
	)

	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cvix",
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "端到端生成耗时分布（秒）。",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 4, 6, 8, 10},
		},
		[]string{"outcome"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cvix",
			Subsystem: "generation",
			Name:      "stage_duration_seconds",
			Help:      "各生成阶段耗时分布（秒）。",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// CompilerSlotsInUse 记录被占用的沙箱槽位。
	CompilerSlotsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cvix",
			Subsystem: "compiler",
			Name:      "slots_in_use",
			Help:      "当前被占用的编译沙箱槽位数。",
		},
	)

	rateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cvix",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "因超出调用频率被拒绝的请求数。",
		},
	)
)

// ObserveGeneration 记录一次生成尝试的结果与耗时。
func ObserveGeneration(template, outcome string, d time.Duration) {
	generationTotal.WithLabelValues(template, outcome).Inc()
	generationDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveStage 记录单个生成阶段的耗时。
func ObserveStage(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RateLimited 记一次被限流的请求。
func RateLimited() {
	rateLimitedTotal.Inc()
}
