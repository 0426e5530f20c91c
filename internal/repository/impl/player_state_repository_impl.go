package impl

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"idle-rpg-server/internal/repository/entity"
	"idle-rpg-server/internal/repository/interfaces"
)

type playerStateRepositoryImpl struct {
	db *sql.DB
}

// NewPlayerStateRepository 创建 PlayerState 仓储实例。
func NewPlayerStateRepository(db *sql.DB) interfaces.PlayerStateRepository {
	return &playerStateRepositoryImpl{db: db}
}

func (r *playerStateRepositoryImpl) GetSnapshot(ctx context.Context, heroID string) (*entity.PlayerState, error) {
	query := `
		SELECT hero_id, name, level, experience, gold,
		       max_health, attack_power, defense, attack_interval_ms, skills
		FROM game_runtime.hero_states
		WHERE hero_id = $1
	`

	var state entity.PlayerState
	var skillsJSON []byte
	err := r.db.QueryRowContext(ctx, query, heroID).Scan(
		&state.HeroID,
		&state.Name,
		&state.Level,
		&state.Experience,
		&state.Gold,
		&state.MaxHealth,
		&state.AttackPower,
		&state.Defense,
		&state.AttackInterval,
		&skillsJSON,
	)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("查询角色状态失败: %w", err)
	}

	if len(skillsJSON) > 0 {
		if err := json.Unmarshal(skillsJSON, &state.Skills); err != nil {
			return nil, fmt.Errorf("解析角色技能配置失败: %w", err)
		}
	}
	return &state, nil
}

func (r *playerStateRepositoryImpl) SavePlayerState(ctx context.Context, heroID string, goldDelta, experienceDelta int64, newLevel int) error {
	query := `
		UPDATE game_runtime.hero_states
		SET gold       = gold + $2,
		    experience = experience + $3,
		    level      = $4,
		    updated_at = NOW()
		WHERE hero_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, heroID, goldDelta, experienceDelta, newLevel)
	if err != nil {
		return fmt.Errorf("更新角色状态失败: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("读取更新行数失败: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
