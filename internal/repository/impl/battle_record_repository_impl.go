package impl

import (
	"context"
	"database/sql"
	"fmt"

	"idle-rpg-server/internal/repository/entity"
	"idle-rpg-server/internal/repository/interfaces"
)

type battleRecordRepositoryImpl struct {
	db *sql.DB
}

// NewBattleRecordRepository 创建 BattleRecord 仓储实例。
func NewBattleRecordRepository(db *sql.DB) interfaces.BattleRecordRepository {
	return &battleRecordRepositoryImpl{db: db}
}

func (r *battleRecordRepositoryImpl) AppendBattleRecord(ctx context.Context, record *entity.BattleRecord) error {
	if record == nil {
		return fmt.Errorf("battle record is nil")
	}

	query := `
		INSERT INTO game_runtime.battle_records (
			battle_id, battle_type, result, rounds, wave_count,
			experience, gold, loot_items, participants, battle_log,
			started_at, ended_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (battle_id) DO NOTHING
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		record.BattleID,
		record.BattleType,
		record.Result,
		record.Rounds,
		record.WaveCount,
		record.Experience,
		record.Gold,
		nullJSON(record.LootItems),
		nullJSON(record.Participants),
		nullJSON(record.BattleLog),
		record.StartedAt,
		record.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("插入战斗记录失败: %w", err)
	}
	return nil
}

func nullJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return raw
}
