package service

import (
	"database/sql"

	"idle-rpg-server/internal/combat"
	"idle-rpg-server/internal/event"
	"idle-rpg-server/internal/pkg/config"
	"idle-rpg-server/internal/pkg/log"
	"idle-rpg-server/internal/pkg/metrics"
	"idle-rpg-server/internal/pkg/notify"
	"idle-rpg-server/internal/pkg/redis"
	"idle-rpg-server/internal/repository/impl"
	"idle-rpg-server/internal/repository/interfaces"
)

// ServiceContainer 战斗模块服务容器 - 统一管理 Repository 和 Service
// 目的：避免重复创建 Repository，简化依赖注入
type ServiceContainer struct {
	templateRepo interfaces.EnemyTemplateRepository
	playerRepo   interfaces.PlayerStateRepository
	recordRepo   interfaces.BattleRecordRepository
	streakRepo   interfaces.StreakRepository

	RewardService  *RewardService
	SessionService *BattleSessionService
}

// NewServiceContainer 创建服务容器。
// db 与 redisClient 都是可选依赖：为 nil 时退化为内存仓储（本地开发与测试），
// 内存模式下自动写入示例配置数据。
func NewServiceContainer(
	db *sql.DB,
	redisClient *redis.Client,
	engine *combat.Engine,
	bus *event.Bus,
	broadcaster notify.Broadcaster,
	tuning config.RewardTuning,
	battleMetrics *metrics.BattleMetrics,
	logger log.Logger,
) *ServiceContainer {
	c := &ServiceContainer{}

	if db != nil {
		c.templateRepo = impl.NewEnemyTemplateRepository(db)
		c.playerRepo = impl.NewPlayerStateRepository(db)
		c.recordRepo = impl.NewBattleRecordRepository(db)
	} else {
		templates := impl.NewMemoryEnemyTemplateRepository()
		players := impl.NewMemoryPlayerStateRepository()
		impl.SeedDevData(templates, players)
		c.templateRepo = templates
		c.playerRepo = players
		c.recordRepo = impl.NewMemoryBattleRecordRepository()
	}

	if redisClient != nil {
		c.streakRepo = impl.NewStreakRepository(redisClient)
	} else {
		c.streakRepo = impl.NewMemoryStreakRepository()
	}

	c.RewardService = NewRewardService(tuning, c.streakRepo, logger)
	c.SessionService = NewBattleSessionService(
		engine,
		c.RewardService,
		bus,
		broadcaster,
		c.templateRepo,
		c.playerRepo,
		c.recordRepo,
		c.streakRepo,
		battleMetrics,
		logger,
	)
	return c
}
