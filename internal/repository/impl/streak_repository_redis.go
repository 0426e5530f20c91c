package impl

import (
	"context"
	"fmt"
	"strconv"

	"idle-rpg-server/internal/pkg/redis"
	"idle-rpg-server/internal/repository/interfaces"
)

// 连胜与首杀是跨战斗状态，放在 Redis 而不是战斗实例里。
type streakRepositoryRedis struct {
	client *redis.Client
}

// NewStreakRepository 创建基于 Redis 的连胜/首杀仓储。
func NewStreakRepository(client *redis.Client) interfaces.StreakRepository {
	return &streakRepositoryRedis{client: client}
}

func streakKey(heroID string) string {
	return fmt.Sprintf("battle:streak:%s", heroID)
}

func firstKillKey(heroID, templateID string) string {
	return fmt.Sprintf("battle:firstkill:%s:%s", heroID, templateID)
}

func (r *streakRepositoryRedis) WinStreak(ctx context.Context, heroID string) (int, error) {
	val, err := r.client.GetString(ctx, streakKey(heroID))
	if err != nil {
		return 0, fmt.Errorf("读取连胜计数失败: %w", err)
	}
	if val == "" {
		return 0, nil
	}
	streak, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("连胜计数格式错误: %w", err)
	}
	return streak, nil
}

func (r *streakRepositoryRedis) RecordResult(ctx context.Context, heroID string, victory bool) (int, error) {
	key := streakKey(heroID)
	if !victory {
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return 0, fmt.Errorf("清零连胜计数失败: %w", err)
		}
		return 0, nil
	}
	streak, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("递增连胜计数失败: %w", err)
	}
	return int(streak), nil
}

func (r *streakRepositoryRedis) IsFirstKill(ctx context.Context, heroID, templateID string) (bool, error) {
	exists, err := r.client.Exists(ctx, firstKillKey(heroID, templateID)).Result()
	if err != nil {
		return false, fmt.Errorf("读取首杀标记失败: %w", err)
	}
	return exists == 0, nil
}

func (r *streakRepositoryRedis) MarkKilled(ctx context.Context, heroID, templateID string) error {
	if err := r.client.Set(ctx, firstKillKey(heroID, templateID), "1", 0).Err(); err != nil {
		return fmt.Errorf("写入首杀标记失败: %w", err)
	}
	return nil
}
