// File: internal/modules/battle/service/reward_service.go
package service

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"idle-rpg-server/internal/combat"
	"idle-rpg-server/internal/pkg/config"
	"idle-rpg-server/internal/pkg/log"
	"idle-rpg-server/internal/repository/interfaces"
)

// RewardResult 一场已结束战斗的奖励结算结果
type RewardResult struct {
	BattleID string `json:"battle_id"`
	Result   string `json:"result"` // victory / defeat / abandoned

	Experience int64    `json:"experience"`
	Gold       int64    `json:"gold"`
	Items      []string `json:"items,omitempty"`

	// MemberShares 组队经验分成（按贡献度），key 为 heroID。
	// 单人战斗时只有一项，等于 Experience。
	MemberShares map[string]int64 `json:"member_shares,omitempty"`

	FirstKill      bool `json:"first_kill"`
	Streak         int  `json:"streak"`
	PerfectVictory bool `json:"perfect_victory"`
}

// RewardService 奖励计算器。
// 纯计算：除连胜/首杀的只读查询外不做任何写入，
// 持久化副作用由会话服务在结算阶段统一执行。
type RewardService struct {
	tuning  config.RewardTuning
	streaks interfaces.StreakRepository
	logger  log.Logger
}

// NewRewardService 创建奖励计算器
func NewRewardService(tuning config.RewardTuning, streaks interfaces.StreakRepository, logger log.Logger) *RewardService {
	if logger == nil {
		logger = log.GetLogger()
	}
	if tuning.ContributionBase <= 0 {
		tuning = config.DefaultRewardTuning()
	}
	return &RewardService{
		tuning:  tuning,
		streaks: streaks,
		logger:  logger.With("component", "reward_service"),
	}
}

// Compute 按固定步骤计算奖励。
// 随机流从战斗种子派生，同一场战斗重算结果一致。
func (s *RewardService) Compute(ctx context.Context, b *combat.Battle, now time.Time) (*RewardResult, error) {
	result := &RewardResult{
		BattleID:     b.ID,
		Result:       b.Status.String(),
		MemberShares: make(map[string]int64),
	}

	switch b.Status {
	case combat.StatusVictory:
	case combat.StatusDefeat:
		return s.computeDefeat(b, now, result), nil
	default:
		// 放弃的战斗没有奖励
		return result, nil
	}

	rng := rand.New(rand.NewSource(b.Seed() + 1))
	leaderID := leaderID(b)

	// 步骤 1：基础经验与金币
	exp, gold := baseReward(b.DefeatedEnemies, rng)

	// 步骤 2：时长修正（只作用于经验）
	exp *= s.durationModifier(b.Duration(now))

	// 步骤 3：等级差修正
	delta := avgLevel(b.DefeatedEnemies) - avgLevel(b.Players)
	exp = s.applyLevelDiff(exp, delta)

	// 步骤 4：掉落 roll
	result.Items = s.rollLoot(b, delta, rng)

	// 步骤 5：加成乘区，各自独立开关
	if s.streaks != nil {
		firstKill, err := s.anyFirstKill(ctx, leaderID, b.DefeatedEnemies)
		if err != nil {
			// 跨战斗状态读取失败不阻塞结算，按无加成处理
			s.logger.Warn("首杀查询失败，跳过首杀加成", "battle_id", b.ID, "error", err.Error())
		} else if firstKill {
			result.FirstKill = true
			exp *= s.tuning.FirstKillExpBonus
			gold *= s.tuning.FirstKillGoldBonus
		}

		streak, err := s.streaks.WinStreak(ctx, leaderID)
		if err != nil {
			s.logger.Warn("连胜查询失败，跳过连胜加成", "battle_id", b.ID, "error", err.Error())
		} else if streak > 0 {
			result.Streak = streak
			bonus := 1 + math.Min(s.tuning.StreakBonusPerWin*float64(streak), s.tuning.StreakBonusCap)
			exp *= bonus
			gold *= bonus
		}
	}

	if s.isPerfectVictory(b) {
		result.PerfectVictory = true
		exp *= s.tuning.PerfectExpBonus
		if s.tuning.PerfectCosmeticID != "" {
			result.Items = append(result.Items, s.tuning.PerfectCosmeticID)
		}
	}

	result.Experience = int64(math.Round(exp))
	result.Gold = int64(math.Round(gold))

	// 步骤 6：组队分成
	s.splitShares(b, result)
	return result, nil
}

// computeDefeat 失败结算：无掉落，安慰经验按满额基准折算，金币给个零头
func (s *RewardService) computeDefeat(b *combat.Battle, now time.Time, result *RewardResult) *RewardResult {
	rng := rand.New(rand.NewSource(b.Seed() + 1))

	exp, gold := baseReward(b.AllEnemies, rng)
	exp *= s.durationModifier(b.Duration(now))
	exp = s.applyLevelDiff(exp, avgLevel(b.AllEnemies)-avgLevel(b.Players))

	result.Experience = int64(math.Round(exp * s.tuning.ConsolationRate))
	result.Gold = int64(math.Round(gold * s.tuning.ConsolationRate))
	if result.Gold > s.tuning.ConsolationGoldCap {
		result.Gold = s.tuning.ConsolationGoldCap
	}
	s.splitShares(b, result)
	return result
}

// baseReward 步骤 1：逐个被击败敌人累加经验值与金币 roll
func baseReward(enemies []*combat.Participant, rng *rand.Rand) (exp, gold float64) {
	for _, enemy := range enemies {
		exp += float64(enemy.ExperienceValue)
		gold += float64(rollGold(enemy, rng))
	}
	return exp, gold
}

func rollGold(enemy *combat.Participant, rng *rand.Rand) int64 {
	if enemy.GoldMax <= enemy.GoldMin {
		return enemy.GoldMin
	}
	return enemy.GoldMin + rng.Int63n(enemy.GoldMax-enemy.GoldMin+1)
}

// durationModifier 步骤 2：速战加成与持久战惩罚
func (s *RewardService) durationModifier(d time.Duration) float64 {
	seconds := d.Seconds()
	switch {
	case seconds < s.tuning.FastBattleSeconds:
		return s.tuning.FastExpMultiplier
	case seconds > s.tuning.SlowBattleSeconds:
		return s.tuning.SlowExpMultiplier
	default:
		return 1
	}
}

// applyLevelDiff 步骤 3：越级挑战加成 / 碾压局衰减（下限 10% base）
func (s *RewardService) applyLevelDiff(exp, delta float64) float64 {
	switch {
	case delta > 0:
		return exp * (1 + s.tuning.LevelDiffExpBonus*delta)
	case delta < -5:
		factor := math.Max(s.tuning.LevelDiffExpFloor, 1+s.tuning.LevelDiffExpMalus*delta)
		return exp * factor
	default:
		return exp
	}
}

// rollLoot 步骤 4：逐敌人逐条目独立 roll，外加稀有掉落 roll
func (s *RewardService) rollLoot(b *combat.Battle, delta float64, rng *rand.Rand) []string {
	levelBonus := 1 + s.tuning.LevelDiffLootBonus*math.Max(0, delta)
	partyFactor := 1.0
	if len(b.Players) > 1 {
		partyFactor = s.tuning.PartyLootPenalty
	}

	var items []string
	for _, enemy := range b.DefeatedEnemies {
		for _, entry := range enemy.LootTable {
			chance := entry.Chance * levelBonus * partyFactor
			if chance > 1 {
				chance = 1
			}
			if chance > 0 && rng.Float64() < chance {
				items = append(items, entry.ItemID)
			}
		}

		if enemy.RareItemID == "" {
			continue
		}
		rareChance := enemy.RareDropRate
		if rareChance <= 0 {
			rareChance = s.tuning.RareBaseChance + s.tuning.RarePerLevel*float64(enemy.Level)
		}
		if rng.Float64() < rareChance {
			items = append(items, enemy.RareItemID)
		}
	}
	return items
}

// anyFirstKill 被击败敌人中是否存在该角色的首杀模板
func (s *RewardService) anyFirstKill(ctx context.Context, heroID string, enemies []*combat.Participant) (bool, error) {
	seen := make(map[string]bool)
	for _, enemy := range enemies {
		if enemy.TemplateID == "" || seen[enemy.TemplateID] {
			continue
		}
		seen[enemy.TemplateID] = true
		first, err := s.streaks.IsFirstKill(ctx, heroID, enemy.TemplateID)
		if err != nil {
			return false, err
		}
		if first {
			return true, nil
		}
	}
	return false, nil
}

// isPerfectVictory 全员血量比例高于阈值即完胜
func (s *RewardService) isPerfectVictory(b *combat.Battle) bool {
	for _, p := range b.Players {
		if p.HealthFraction() <= s.tuning.PerfectHealthFloor {
			return false
		}
	}
	return len(b.Players) > 0
}

// splitShares 步骤 6：按贡献度分成，整数份额精确加总到总经验。
// 贡献度 = ContributionBase + ContributionScale·血量比例；
// 阵亡成员保底 ContributionBase，存活成员份额严格为正。
func (s *RewardService) splitShares(b *combat.Battle, result *RewardResult) {
	if len(b.Players) == 0 || result.Experience <= 0 {
		for _, p := range b.Players {
			result.MemberShares[p.ID] = 0
		}
		return
	}
	if len(b.Players) == 1 {
		result.MemberShares[b.Players[0].ID] = result.Experience
		return
	}

	type memberWeight struct {
		id       string
		weight   float64
		share    int64
		fraction float64
	}

	members := make([]*memberWeight, 0, len(b.Players))
	total := 0.0
	for _, p := range b.Players {
		w := s.tuning.ContributionBase + s.tuning.ContributionScale*p.HealthFraction()
		members = append(members, &memberWeight{id: p.ID, weight: w})
		total += w
	}

	// 向下取整分配，余数按小数部分大小补齐，保证份额之和精确等于总额
	var assigned int64
	for _, m := range members {
		exact := float64(result.Experience) * m.weight / total
		m.share = int64(math.Floor(exact))
		m.fraction = exact - float64(m.share)
		assigned += m.share
	}
	remainder := result.Experience - assigned
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].fraction > members[j].fraction
	})
	for i := int64(0); i < remainder; i++ {
		members[i%int64(len(members))].share++
	}

	// 存活成员不允许零份额：从当前最大份额处挪 1
	for _, m := range members {
		if m.share > 0 {
			continue
		}
		richest := members[0]
		for _, other := range members {
			if other.share > richest.share {
				richest = other
			}
		}
		if richest.share > 1 {
			richest.share--
			m.share++
		}
	}

	for _, m := range members {
		result.MemberShares[m.id] = m.share
	}
}

// leaderID 队长（首个玩家），连胜与首杀以队长计
func leaderID(b *combat.Battle) string {
	if len(b.Players) == 0 {
		return ""
	}
	return b.Players[0].ID
}

// avgLevel 平均等级；空切片返回 0
func avgLevel(side []*combat.Participant) float64 {
	if len(side) == 0 {
		return 0
	}
	sum := 0
	for _, p := range side {
		sum += p.Level
	}
	return float64(sum) / float64(len(side))
}
