// Package tasks 提供战斗模块的定时任务。
package tasks

import (
	"time"

	"github.com/robfig/cron/v3"

	"idle-rpg-server/internal/pkg/log"
)

// staleAbandoner 僵死战斗清理的依赖面
type staleAbandoner interface {
	ForceAbandonStale(threshold time.Duration) int
}

// StaleBattleTask 定时清理僵死战斗：
// 超过阈值无任何动作的战斗被强制放弃，走正常结算流程。
type StaleBattleTask struct {
	sessions  staleAbandoner
	threshold time.Duration
	spec      string
	logger    log.Logger
	cron      *cron.Cron
}

// NewStaleBattleTask 创建僵死战斗清理任务实例
func NewStaleBattleTask(sessions staleAbandoner, threshold time.Duration, spec string, logger log.Logger) *StaleBattleTask {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &StaleBattleTask{
		sessions:  sessions,
		threshold: threshold,
		spec:      spec,
		logger:    logger,
	}
}

// Start 启动定时任务
func (t *StaleBattleTask) Start() error {
	t.cron = cron.New(cron.WithSeconds()) // 支持秒级调度

	_, err := t.cron.AddFunc(t.spec, func() {
		marked := t.sessions.ForceAbandonStale(t.threshold)
		if marked > 0 {
			t.logger.Warn("【定时任务】僵死战斗已标记放弃", "count", marked)
		}
	})
	if err != nil {
		t.logger.Error("【定时任务】添加僵死战斗清理任务失败", err)
		return err
	}

	t.cron.Start()
	t.logger.Info("【定时任务】僵死战斗清理已启动",
		"spec", t.spec, "threshold", t.threshold.String())
	return nil
}

// Stop 停止定时任务（优雅关闭）
func (t *StaleBattleTask) Stop() {
	if t.cron != nil {
		ctx := t.cron.Stop()
		<-ctx.Done()
		t.logger.Info("【定时任务】僵死战斗清理已停止")
	}
}
