// Package entity 定义仓储层实体，与存储列一一对应。
package entity

import (
	"time"

	"github.com/aarondl/null/v8"
	"github.com/aarondl/sqlboiler/v4/types"
)

// EnemyTemplate 敌人模板配置（game_config.enemy_templates）
type EnemyTemplate struct {
	ID             string `boil:"id" json:"id"`
	Name           string `boil:"name" json:"name"`
	Level          int    `boil:"level" json:"level"`
	MaxHealth      int    `boil:"max_health" json:"max_health"`
	AttackPower    int    `boil:"attack_power" json:"attack_power"`
	Defense        int    `boil:"defense" json:"defense"`
	AttackInterval int    `boil:"attack_interval_ms" json:"attack_interval_ms"`

	// 奖励配置
	ExperienceValue int64 `boil:"experience_value" json:"experience_value"`
	GoldMin         int64 `boil:"gold_min" json:"gold_min"`
	GoldMax         int64 `boil:"gold_max" json:"gold_max"`

	// LootTable 掉落表 JSON：{item_id: base_drop_chance}
	LootTable null.JSON `boil:"loot_table" json:"loot_table,omitempty"`

	// 稀有掉落：为空时不掉稀有物品；概率列为空时按等级公式计算
	RareItemID   null.String       `boil:"rare_item_id" json:"rare_item_id,omitempty"`
	RareDropRate types.NullDecimal `boil:"rare_drop_rate" json:"rare_drop_rate,omitempty"`

	CreatedAt time.Time `boil:"created_at" json:"created_at"`
	UpdatedAt time.Time `boil:"updated_at" json:"updated_at"`
}

// SkillSpec 角色技能配置（hero state 的 skills JSON 列）
type SkillSpec struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Kind              string `json:"kind"` // damage / heal
	Priority          int    `json:"priority"`
	EffectValue       int    `json:"effect_value"`
	CooldownMS        int    `json:"cooldown_ms"`
	InitialCooldownMS int    `json:"initial_cooldown_ms"`
}

// PlayerState 角色战斗快照与成长状态（game_runtime.hero_states）
type PlayerState struct {
	HeroID     string `boil:"hero_id" json:"hero_id"`
	Name       string `boil:"name" json:"name"`
	Level      int    `boil:"level" json:"level"`
	Experience int64  `boil:"experience" json:"experience"`
	Gold       int64  `boil:"gold" json:"gold"`

	MaxHealth      int `boil:"max_health" json:"max_health"`
	AttackPower    int `boil:"attack_power" json:"attack_power"`
	Defense        int `boil:"defense" json:"defense"`
	AttackInterval int `boil:"attack_interval_ms" json:"attack_interval_ms"`

	Skills []SkillSpec `json:"skills,omitempty"`
}

// BattleRecord 战斗记录（game_runtime.battle_records，追加写）
type BattleRecord struct {
	BattleID   string `boil:"battle_id" json:"battle_id"`
	BattleType string `boil:"battle_type" json:"battle_type"`
	Result     string `boil:"result" json:"result"`
	Rounds     int    `boil:"rounds" json:"rounds"`
	WaveCount  int    `boil:"wave_count" json:"wave_count"`

	Experience int64 `boil:"experience" json:"experience"`
	Gold       int64 `boil:"gold" json:"gold"`

	LootItems    []byte `boil:"loot_items" json:"loot_items,omitempty"`
	Participants []byte `boil:"participants" json:"participants,omitempty"`
	BattleLog    []byte `boil:"battle_log" json:"battle_log,omitempty"`

	StartedAt time.Time `boil:"started_at" json:"started_at"`
	EndedAt   time.Time `boil:"ended_at" json:"ended_at"`
}
