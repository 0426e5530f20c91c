// Package interfaces 定义仓储接口；具体存储实现位于 impl。
package interfaces

import (
	"context"

	"idle-rpg-server/internal/repository/entity"
)

// EnemyTemplateRepository 敌人模板配置仓储
type EnemyTemplateRepository interface {
	GetByID(ctx context.Context, id string) (*entity.EnemyTemplate, error)
	ListByIDs(ctx context.Context, ids []string) ([]*entity.EnemyTemplate, error)
}

// PlayerStateRepository 角色状态仓储（持久化边界）
type PlayerStateRepository interface {
	GetSnapshot(ctx context.Context, heroID string) (*entity.PlayerState, error)
	// SavePlayerState 应用战斗结算增量并更新等级
	SavePlayerState(ctx context.Context, heroID string, goldDelta, experienceDelta int64, newLevel int) error
}

// BattleRecordRepository 战斗记录仓储（追加写）
type BattleRecordRepository interface {
	AppendBattleRecord(ctx context.Context, record *entity.BattleRecord) error
}

// StreakRepository 跨战斗状态：连胜计数与首杀标记
type StreakRepository interface {
	// WinStreak 返回当前连胜数（本场结果计入前）
	WinStreak(ctx context.Context, heroID string) (int, error)
	// RecordResult 记录本场结果，胜利递增连胜、失败清零；返回新的连胜数
	RecordResult(ctx context.Context, heroID string, victory bool) (int, error)
	// IsFirstKill 判断角色是否从未击杀过该模板的敌人
	IsFirstKill(ctx context.Context, heroID, templateID string) (bool, error)
	// MarkKilled 标记角色已击杀过该模板
	MarkKilled(ctx context.Context, heroID, templateID string) error
}
