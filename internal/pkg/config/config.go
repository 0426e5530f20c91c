// Package config 提供战斗服的环境变量配置加载。
package config

import "time"

// ServerConfig 战斗服进程级配置
type ServerConfig struct {
	Environment string // development / production
	HTTPAddr    string
	NatsAddr    string
	DatabaseURL string // 为空时使用内存仓储（本地开发）

	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int
}

// BattleConfig 战斗引擎与调度配置
type BattleConfig struct {
	TickInterval   time.Duration // 调度器推进间隔
	CritChance     float64       // 暴击概率
	CritMultiplier float64       // 暴击倍率
	BusQueueSize   int           // 事件总线队列长度
	StaleThreshold time.Duration // 无动作超过该时长的战斗会被强制放弃
	SweepSpec      string        // 清理任务的 cron 表达式
}

// RewardTuning 奖励数值配置。
// 常量形状来自数值策划，全部可调，不属于业务不变量。
type RewardTuning struct {
	FastBattleSeconds  float64 // 短于该时长的战斗享受经验加成
	FastExpMultiplier  float64
	SlowBattleSeconds  float64 // 长于该时长的战斗经验打折
	SlowExpMultiplier  float64
	LevelDiffExpBonus  float64 // Δ>0 时每级的经验加成
	LevelDiffExpMalus  float64 // Δ<-5 时每级的经验衰减
	LevelDiffExpFloor  float64 // 衰减后的经验下限（相对 base）
	LevelDiffLootBonus float64 // Δ>0 时每级的掉落概率加成
	PartyLootPenalty   float64 // 组队时的掉落概率折扣
	RareBaseChance     float64 // 稀有掉落基础概率
	RarePerLevel       float64 // 稀有掉落每敌方等级加成
	FirstKillExpBonus  float64
	FirstKillGoldBonus float64
	StreakBonusPerWin  float64
	StreakBonusCap     float64
	PerfectExpBonus    float64 // 全员血量高于阈值的完胜加成
	PerfectHealthFloor float64
	PerfectCosmeticID  string
	ContributionBase   float64 // 组队分成的保底系数
	ContributionScale  float64 // 组队分成的血量系数
	ConsolationRate    float64 // 失败安慰奖相对满额基准的比例
	ConsolationGoldCap int64   // 失败安慰金币上限
}

// DefaultRewardTuning 默认奖励数值
func DefaultRewardTuning() RewardTuning {
	return RewardTuning{
		FastBattleSeconds:  60,
		FastExpMultiplier:  1.2,
		SlowBattleSeconds:  300,
		SlowExpMultiplier:  0.8,
		LevelDiffExpBonus:  0.1,
		LevelDiffExpMalus:  0.05,
		LevelDiffExpFloor:  0.1,
		LevelDiffLootBonus: 0.1,
		PartyLootPenalty:   0.9,
		RareBaseChance:     0.01,
		RarePerLevel:       0.002,
		FirstKillExpBonus:  1.5,
		FirstKillGoldBonus: 1.3,
		StreakBonusPerWin:  0.05,
		StreakBonusCap:     0.5,
		PerfectExpBonus:    1.2,
		PerfectHealthFloor: 0.5,
		PerfectCosmeticID:  "item_flawless_banner",
		ContributionBase:   0.7,
		ContributionScale:  0.6,
		ConsolationRate:    0.1,
		ConsolationGoldCap: 5,
	}
}

// LoadRewardTuning 从环境变量加载奖励数值（只开放最常调的几项）
func LoadRewardTuning() RewardTuning {
	t := DefaultRewardTuning()
	t.FastExpMultiplier = GetFloatEnv("REWARD_FAST_EXP_MULTIPLIER", t.FastExpMultiplier)
	t.SlowExpMultiplier = GetFloatEnv("REWARD_SLOW_EXP_MULTIPLIER", t.SlowExpMultiplier)
	t.LevelDiffExpBonus = GetFloatEnv("REWARD_LEVEL_DIFF_EXP_BONUS", t.LevelDiffExpBonus)
	t.PartyLootPenalty = GetFloatEnv("REWARD_PARTY_LOOT_PENALTY", t.PartyLootPenalty)
	t.StreakBonusCap = GetFloatEnv("REWARD_STREAK_BONUS_CAP", t.StreakBonusCap)
	t.ConsolationRate = GetFloatEnv("REWARD_CONSOLATION_RATE", t.ConsolationRate)
	return t
}

// LoadServerConfig 从环境变量加载进程配置
func LoadServerConfig() ServerConfig {
	return ServerConfig{
		Environment: GetEnvOrDefault("APP_ENV", "development"),
		HTTPAddr:    GetEnvOrDefault("HTTP_ADDR", ":8090"),
		NatsAddr:    GetEnvOrDefault("NATS_ADDRESS", "localhost:4222"),
		DatabaseURL: GetDatabaseURL("DATABASE_URL", ""),

		RedisHost:     GetEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     GetIntEnv("REDIS_PORT", 6379),
		RedisPassword: GetEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       GetIntEnv("REDIS_DB", 0),
	}
}

// LoadBattleConfig 从环境变量加载战斗配置
func LoadBattleConfig() BattleConfig {
	return BattleConfig{
		TickInterval:   GetDurationEnv("BATTLE_TICK_INTERVAL", 500*time.Millisecond),
		CritChance:     GetFloatEnv("BATTLE_CRIT_CHANCE", 0.1),
		CritMultiplier: GetFloatEnv("BATTLE_CRIT_MULTIPLIER", 1.5),
		BusQueueSize:   GetIntEnv("EVENT_BUS_QUEUE_SIZE", 1024),
		StaleThreshold: GetDurationEnv("BATTLE_STALE_THRESHOLD", 10*time.Minute),
		SweepSpec:      GetEnvOrDefault("BATTLE_SWEEP_CRON", "*/30 * * * * *"),
	}
}
