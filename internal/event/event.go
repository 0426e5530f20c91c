// Package event 定义战斗领域事件与异步事件总线。
// 事件是不可变事实：战斗引擎发布，任务/推送/持久化各自订阅，互不阻塞。
package event

import (
	"time"

	"github.com/google/uuid"
)

// Kind 事件类型标签（枚举分发，不做运行时反射）
type Kind int

const (
	// KindAny 通配订阅：接收所有事件
	KindAny Kind = iota
	KindBattleStarted
	KindDamageDealt
	KindHealApplied
	KindEnemyKilled
	KindWaveCleared
	KindBattleEnded
	KindHeroLevelUp
)

func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindBattleStarted:
		return "battle_started"
	case KindDamageDealt:
		return "damage_dealt"
	case KindHealApplied:
		return "heal_applied"
	case KindEnemyKilled:
		return "enemy_killed"
	case KindWaveCleared:
		return "wave_cleared"
	case KindBattleEnded:
		return "battle_ended"
	case KindHeroLevelUp:
		return "hero_level_up"
	default:
		return "unknown"
	}
}

// Event 领域事件。创建后不可变。
type Event struct {
	ID         string
	Kind       Kind
	OccurredAt time.Time // UTC
	Payload    any       // 与 Kind 对应的 payload 结构体
}

// New 创建一个带唯一标识与 UTC 时间戳的事件
func New(kind Kind, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// BattleStartedPayload 战斗开始
type BattleStartedPayload struct {
	BattleID   string   `json:"battle_id"`
	BattleType string   `json:"battle_type"`
	HeroIDs    []string `json:"hero_ids"`
	EnemyIDs   []string `json:"enemy_ids"`
	TotalWaves int      `json:"total_waves"`
}

// DamageDealtPayload 伤害结算
type DamageDealtPayload struct {
	BattleID   string `json:"battle_id"`
	AttackerID string `json:"attacker_id"`
	TargetID   string `json:"target_id"`
	SkillID    string `json:"skill_id,omitempty"` // 空表示普通攻击
	Amount     int    `json:"amount"`
	Critical   bool   `json:"critical"`
	TargetDied bool   `json:"target_died"`
}

// HealAppliedPayload 治疗结算
type HealAppliedPayload struct {
	BattleID string `json:"battle_id"`
	CasterID string `json:"caster_id"`
	TargetID string `json:"target_id"`
	SkillID  string `json:"skill_id"`
	Amount   int    `json:"amount"`
}

// EnemyKilledPayload 敌人被击杀
type EnemyKilledPayload struct {
	BattleID   string `json:"battle_id"`
	EnemyID    string `json:"enemy_id"`
	TemplateID string `json:"template_id"`
	KillerID   string `json:"killer_id"`
	Wave       int    `json:"wave"`
}

// WaveClearedPayload 波次推进（未到最终波）
type WaveClearedPayload struct {
	BattleID    string `json:"battle_id"`
	ClearedWave int    `json:"cleared_wave"`
	NextWave    int    `json:"next_wave"`
	TotalWaves  int    `json:"total_waves"`
}

// BattleEndedPayload 战斗结束（携带奖励结算）
type BattleEndedPayload struct {
	BattleID        string           `json:"battle_id"`
	Result          string           `json:"result"` // victory / defeat / abandoned
	Rounds          int              `json:"rounds"`
	DurationSeconds float64          `json:"duration_seconds"`
	Experience      int64            `json:"experience"`
	Gold            int64            `json:"gold"`
	Items           []string         `json:"items,omitempty"`
	MemberShares    map[string]int64 `json:"member_shares,omitempty"`
}

// HeroLevelUpPayload 角色升级
type HeroLevelUpPayload struct {
	HeroID   string `json:"hero_id"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
	BattleID string `json:"battle_id,omitempty"`
}
