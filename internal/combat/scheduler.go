package combat

import (
	"sync"
	"sync/atomic"
	"time"

	"idle-rpg-server/internal/pkg/log"
	"idle-rpg-server/internal/pkg/metrics"
)

// BattleSource 调度器取活跃战斗的来源（由注册中心实现）
type BattleSource interface {
	ActiveBattles() []*Battle
}

// Scheduler 唯一的后台 tick 循环：按固定间隔推进所有活跃战斗。
// 显式的调度器让 tick 节奏与关停排空可测试，
// 替代来源实现里隐藏在框架定时器中的轮询。
type Scheduler struct {
	interval   time.Duration
	engine     *Engine
	source     BattleSource
	onTerminal func(*Battle)

	clock   func() time.Time
	logger  log.Logger
	metrics *metrics.BattleMetrics

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stop      chan struct{}
	done      chan struct{}
}

// NewScheduler 构造函数。onTerminal 在战斗进入终态的那次 tick 内
// 被同步调用一次（来源应当在其中先摘除战斗再异步结算）。
func NewScheduler(interval time.Duration, engine *Engine, source BattleSource, onTerminal func(*Battle), logger log.Logger, m *metrics.BattleMetrics) *Scheduler {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = log.GetLogger()
	}
	if m == nil {
		m = metrics.DefaultBattleMetrics
	}
	return &Scheduler{
		interval:   interval,
		engine:     engine,
		source:     source,
		onTerminal: onTerminal,
		clock:      time.Now,
		logger:     logger.With("component", "battle_scheduler"),
		metrics:    m,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start 启动调度循环（幂等）
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.started.Store(true)
		go s.run()
		s.logger.Info("战斗调度器已启动", "tick_interval", s.interval.String())
	})
}

// Stop 停止调度循环并等待当前一轮 tick 完成（幂等）。
// 从未启动过的调度器直接返回，不等待循环退出。
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.started.Load() {
			<-s.done
		}
		s.logger.Info("战斗调度器已停止")
	})
}

func (s *Scheduler) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.tickAll()
		}
	}
}

// tickAll 推进一轮所有活跃战斗。
// 同一战斗在同一轮内只被一个 goroutine 推进（顺序遍历），
// 各战斗实例之间互不共享可变状态。
func (s *Scheduler) tickAll() {
	now := s.clock()
	for _, b := range s.source.ActiveBattles() {
		start := time.Now()
		terminal := s.engine.Tick(b, now)
		s.metrics.RecordTick(time.Since(start))

		if terminal && s.onTerminal != nil {
			s.onTerminal(b)
		}
	}
}
