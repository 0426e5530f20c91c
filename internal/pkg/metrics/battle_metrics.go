// File: internal/pkg/metrics/battle_metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BattleMetrics 战斗业务指标收集器
type BattleMetrics struct {
	// 当前活跃战斗数（Gauge 类型，可增可减）
	ActiveBattles prometheus.Gauge

	// 战斗次数（按结果分组：victory/defeat/abandoned）
	BattlesTotal *prometheus.CounterVec

	// 战斗耗时直方图
	BattleDuration prometheus.Histogram

	// 单次 tick 处理耗时直方图
	TickDuration prometheus.Histogram

	// 事件总线发布计数（按事件类型分组）
	EventsPublished *prometheus.CounterVec

	// 事件处理器 panic 计数
	EventHandlerPanics prometheus.Counter

	// 发放的经验/金币总量（按结果分组）
	ExperienceGranted *prometheus.CounterVec
	GoldGranted       *prometheus.CounterVec
}

var (
	// DefaultBattleMetrics 默认的战斗指标实例
	DefaultBattleMetrics *BattleMetrics
)

// BattleBuckets 是针对挂机战斗耗时优化的 buckets
// 战斗预期时长: 数秒到数分钟
// 单位：秒
var BattleBuckets = []float64{
	1,   // 1s
	5,   // 5s
	15,  // 15s
	30,  // 30s
	60,  // 1分钟
	300, // 5分钟
	600, // 10分钟
}

// TickBuckets 是针对单次 tick 处理耗时的 buckets
// 单位：秒
var TickBuckets = []float64{
	0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1,
}

// init 初始化默认指标
func init() {
	DefaultBattleMetrics = NewBattleMetrics("idlerpg")
}

// NewBattleMetrics 创建新的战斗指标收集器
func NewBattleMetrics(namespace string) *BattleMetrics {
	return NewBattleMetricsWithRegistry(namespace, GetRegisterer())
}

// NewBattleMetricsWithRegistry 创建新的战斗指标收集器（使用自定义注册表）
func NewBattleMetricsWithRegistry(namespace string, registerer prometheus.Registerer) *BattleMetrics {
	factory := promauto.With(registerer)

	return &BattleMetrics{
		ActiveBattles: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "battle",
				Name:      "active_battles",
				Help:      "Current number of in-progress battles",
			},
		),

		BattlesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "battle",
				Name:      "battles_total",
				Help:      "Total number of battles by result (victory/defeat/abandoned)",
			},
			[]string{"result"},
		),

		BattleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "battle",
				Name:      "battle_duration_seconds",
				Help:      "Battle duration in seconds",
				Buckets:   BattleBuckets,
			},
		),

		TickDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "battle",
				Name:      "tick_duration_seconds",
				Help:      "Time spent advancing a single battle tick",
				Buckets:   TickBuckets,
			},
		),

		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "event",
				Name:      "published_total",
				Help:      "Total number of domain events published by kind",
			},
			[]string{"kind"},
		),

		EventHandlerPanics: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "event",
				Name:      "handler_panics_total",
				Help:      "Total number of recovered event handler panics",
			},
		),

		ExperienceGranted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reward",
				Name:      "experience_granted_total",
				Help:      "Total experience granted by battle result",
			},
			[]string{"result"},
		),

		GoldGranted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reward",
				Name:      "gold_granted_total",
				Help:      "Total gold granted by battle result",
			},
			[]string{"result"},
		),
	}
}

// RecordBattleEnd 记录一场战斗的结束
func (m *BattleMetrics) RecordBattleEnd(result string, duration time.Duration) {
	m.BattlesTotal.WithLabelValues(result).Inc()
	m.BattleDuration.Observe(duration.Seconds())
}

// RecordTick 记录一次 tick 的处理耗时
func (m *BattleMetrics) RecordTick(duration time.Duration) {
	m.TickDuration.Observe(duration.Seconds())
}

// RecordEventPublished 记录一次事件发布
func (m *BattleMetrics) RecordEventPublished(kind string) {
	m.EventsPublished.WithLabelValues(kind).Inc()
}

// RecordHandlerPanic 记录一次事件处理器 panic
func (m *BattleMetrics) RecordHandlerPanic() {
	m.EventHandlerPanics.Inc()
}

// RecordReward 记录发放的奖励
func (m *BattleMetrics) RecordReward(result string, experience, gold int64) {
	m.ExperienceGranted.WithLabelValues(result).Add(float64(experience))
	m.GoldGranted.WithLabelValues(result).Add(float64(gold))
}
