package impl

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/aarondl/sqlboiler/v4/types"
	"github.com/ericlagergren/decimal"

	"idle-rpg-server/internal/repository/entity"
	"idle-rpg-server/internal/repository/interfaces"
)

// 内存实现：本地开发（未配置 DATABASE_URL / Redis）与测试用。
// 语义与持久化实现保持一致：未命中返回 sql.ErrNoRows。

// MemoryEnemyTemplateRepository 内存敌人模板仓储
type MemoryEnemyTemplateRepository struct {
	mu        sync.RWMutex
	templates map[string]*entity.EnemyTemplate
}

// NewMemoryEnemyTemplateRepository 创建内存敌人模板仓储
func NewMemoryEnemyTemplateRepository() *MemoryEnemyTemplateRepository {
	return &MemoryEnemyTemplateRepository{templates: make(map[string]*entity.EnemyTemplate)}
}

// Put 写入模板（测试与本地种子数据用）
func (r *MemoryEnemyTemplateRepository) Put(tpl *entity.EnemyTemplate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[tpl.ID] = tpl
}

func (r *MemoryEnemyTemplateRepository) GetByID(ctx context.Context, id string) (*entity.EnemyTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl, ok := r.templates[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return tpl, nil
}

func (r *MemoryEnemyTemplateRepository) ListByIDs(ctx context.Context, ids []string) ([]*entity.EnemyTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*entity.EnemyTemplate, 0, len(ids))
	for _, id := range ids {
		if tpl, ok := r.templates[id]; ok {
			result = append(result, tpl)
		}
	}
	return result, nil
}

// MemoryPlayerStateRepository 内存角色状态仓储
type MemoryPlayerStateRepository struct {
	mu     sync.RWMutex
	states map[string]*entity.PlayerState
}

// NewMemoryPlayerStateRepository 创建内存角色状态仓储
func NewMemoryPlayerStateRepository() *MemoryPlayerStateRepository {
	return &MemoryPlayerStateRepository{states: make(map[string]*entity.PlayerState)}
}

// Put 写入角色状态（测试与本地种子数据用）
func (r *MemoryPlayerStateRepository) Put(state *entity.PlayerState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.HeroID] = state
}

func (r *MemoryPlayerStateRepository) GetSnapshot(ctx context.Context, heroID string) (*entity.PlayerState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.states[heroID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *state
	return &copied, nil
}

func (r *MemoryPlayerStateRepository) SavePlayerState(ctx context.Context, heroID string, goldDelta, experienceDelta int64, newLevel int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[heroID]
	if !ok {
		return sql.ErrNoRows
	}
	state.Gold += goldDelta
	state.Experience += experienceDelta
	state.Level = newLevel
	return nil
}

// MemoryBattleRecordRepository 内存战斗记录仓储
type MemoryBattleRecordRepository struct {
	mu      sync.Mutex
	records []*entity.BattleRecord
}

// NewMemoryBattleRecordRepository 创建内存战斗记录仓储
func NewMemoryBattleRecordRepository() *MemoryBattleRecordRepository {
	return &MemoryBattleRecordRepository{}
}

func (r *MemoryBattleRecordRepository) AppendBattleRecord(ctx context.Context, record *entity.BattleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

// Records 返回已写入的记录（测试用）
func (r *MemoryBattleRecordRepository) Records() []*entity.BattleRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entity.BattleRecord{}, r.records...)
}

// MemoryStreakRepository 内存连胜/首杀仓储
type MemoryStreakRepository struct {
	mu      sync.Mutex
	streaks map[string]int
	kills   map[string]bool
}

// NewMemoryStreakRepository 创建内存连胜/首杀仓储
func NewMemoryStreakRepository() *MemoryStreakRepository {
	return &MemoryStreakRepository{
		streaks: make(map[string]int),
		kills:   make(map[string]bool),
	}
}

func (r *MemoryStreakRepository) WinStreak(ctx context.Context, heroID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streaks[heroID], nil
}

func (r *MemoryStreakRepository) RecordResult(ctx context.Context, heroID string, victory bool) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !victory {
		delete(r.streaks, heroID)
		return 0, nil
	}
	r.streaks[heroID]++
	return r.streaks[heroID], nil
}

func (r *MemoryStreakRepository) IsFirstKill(ctx context.Context, heroID, templateID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.kills[heroID+":"+templateID], nil
}

func (r *MemoryStreakRepository) MarkKilled(ctx context.Context, heroID, templateID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kills[heroID+":"+templateID] = true
	return nil
}

// 编译期接口断言
var (
	_ interfaces.EnemyTemplateRepository = (*MemoryEnemyTemplateRepository)(nil)
	_ interfaces.PlayerStateRepository   = (*MemoryPlayerStateRepository)(nil)
	_ interfaces.BattleRecordRepository  = (*MemoryBattleRecordRepository)(nil)
	_ interfaces.StreakRepository        = (*MemoryStreakRepository)(nil)
)

// SeedDevData 写入本地开发用的示例配置
func SeedDevData(templates *MemoryEnemyTemplateRepository, players *MemoryPlayerStateRepository) {
	now := time.Now()

	templates.Put(&entity.EnemyTemplate{
		ID:              "goblin",
		Name:            "哥布林",
		Level:           5,
		MaxHealth:       40,
		AttackPower:     8,
		Defense:         3,
		AttackInterval:  1500,
		ExperienceValue: 12,
		GoldMin:         2,
		GoldMax:         6,
		LootTable:       null.JSONFrom([]byte(`{"item_rusty_dagger":0.15,"item_leather_scrap":0.35}`)),
		CreatedAt:       now,
		UpdatedAt:       now,
	})

	templates.Put(&entity.EnemyTemplate{
		ID:              "orc_warlord",
		Name:            "兽人督军",
		Level:           12,
		MaxHealth:       160,
		AttackPower:     18,
		Defense:         8,
		AttackInterval:  2000,
		ExperienceValue: 45,
		GoldMin:         10,
		GoldMax:         25,
		LootTable:       null.JSONFrom([]byte(`{"item_war_axe":0.1}`)),
		RareItemID:      null.StringFrom("item_warlord_sigil"),
		RareDropRate:    types.NewNullDecimal(decimal.New(5, 2)), // 0.05
		CreatedAt:       now,
		UpdatedAt:       now,
	})

	players.Put(&entity.PlayerState{
		HeroID:         "hero-dev",
		Name:           "测试英雄",
		Level:          10,
		Experience:     900,
		Gold:           50,
		MaxHealth:      100,
		AttackPower:    20,
		Defense:        5,
		AttackInterval: 1200,
		Skills: []entity.SkillSpec{
			{ID: "power_strike", Name: "强力一击", Kind: "damage", Priority: 1, EffectValue: 10, CooldownMS: 6000},
			{ID: "first_aid", Name: "急救", Kind: "heal", Priority: 0, EffectValue: 25, CooldownMS: 10000, InitialCooldownMS: 4000},
		},
	})
}
