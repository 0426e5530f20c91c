package impl

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"idle-rpg-server/internal/repository/entity"
	"idle-rpg-server/internal/repository/interfaces"
)

type enemyTemplateRepositoryImpl struct {
	db *sql.DB
}

// NewEnemyTemplateRepository 创建 EnemyTemplate 仓储实例。
func NewEnemyTemplateRepository(db *sql.DB) interfaces.EnemyTemplateRepository {
	return &enemyTemplateRepositoryImpl{db: db}
}

const enemyTemplateColumns = `
	id, name, level, max_health, attack_power, defense, attack_interval_ms,
	experience_value, gold_min, gold_max, loot_table, rare_item_id, rare_drop_rate,
	created_at, updated_at
`

func (r *enemyTemplateRepositoryImpl) GetByID(ctx context.Context, id string) (*entity.EnemyTemplate, error) {
	query := `SELECT` + enemyTemplateColumns + `FROM game_config.enemy_templates WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)
	tpl, err := scanEnemyTemplate(row)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("查询敌人模板失败: %w", err)
	}
	return tpl, nil
}

func (r *enemyTemplateRepositoryImpl) ListByIDs(ctx context.Context, ids []string) ([]*entity.EnemyTemplate, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT` + enemyTemplateColumns + `FROM game_config.enemy_templates WHERE id = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("批量查询敌人模板失败: %w", err)
	}
	defer func() { _ = rows.Close() }()

	templates := make([]*entity.EnemyTemplate, 0, len(ids))
	for rows.Next() {
		tpl, err := scanEnemyTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("扫描敌人模板失败: %w", err)
		}
		templates = append(templates, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历敌人模板失败: %w", err)
	}
	return templates, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEnemyTemplate(row rowScanner) (*entity.EnemyTemplate, error) {
	var tpl entity.EnemyTemplate
	err := row.Scan(
		&tpl.ID,
		&tpl.Name,
		&tpl.Level,
		&tpl.MaxHealth,
		&tpl.AttackPower,
		&tpl.Defense,
		&tpl.AttackInterval,
		&tpl.ExperienceValue,
		&tpl.GoldMin,
		&tpl.GoldMax,
		&tpl.LootTable,
		&tpl.RareItemID,
		&tpl.RareDropRate,
		&tpl.CreatedAt,
		&tpl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}
