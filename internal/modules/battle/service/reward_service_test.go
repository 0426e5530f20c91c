package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"idle-rpg-server/internal/combat"
	"idle-rpg-server/internal/pkg/config"
	"idle-rpg-server/internal/repository/impl"
)

var battleStart = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func rewardPlayer(id string, level, health, maxHealth int) *combat.Participant {
	return &combat.Participant{
		ID: id, Name: id, Side: combat.SidePlayer, Level: level,
		MaxHealth: maxHealth, Health: health,
	}
}

func rewardEnemy(id string, level int, exp, goldMin, goldMax int64) *combat.Participant {
	return &combat.Participant{
		ID: id, TemplateID: "tpl_" + id, Name: id, Side: combat.SideEnemy, Level: level,
		MaxHealth: 1, Health: 0,
		ExperienceValue: exp, GoldMin: goldMin, GoldMax: goldMax,
	}
}

// finishedBattle 构造一场已结束的战斗，时长默认 90 秒（不触发时长修正）
func finishedBattle(status combat.Status, players, enemies []*combat.Participant, seed int64, duration time.Duration) *combat.Battle {
	battleType := combat.BattleTypeSolo
	if len(players) > 1 {
		battleType = combat.BattleTypeParty
	}
	b := combat.NewBattle(battleType, players, [][]*combat.Participant{enemies}, seed)
	b.Status = status
	b.StartedAt = battleStart
	b.EndedAt = battleStart.Add(duration)
	if status == combat.StatusVictory {
		b.DefeatedEnemies = enemies
	}
	return b
}

func newRewardService() *RewardService {
	return NewRewardService(config.DefaultRewardTuning(), nil, nil)
}

func TestRewardBaseExperienceAndGold(t *testing.T) {
	players := []*combat.Participant{rewardPlayer("hero-1", 10, 40, 100)}
	enemies := []*combat.Participant{
		rewardEnemy("goblin", 10, 20, 5, 5),
		rewardEnemy("wolf", 10, 30, 7, 7),
	}
	b := finishedBattle(combat.StatusVictory, players, enemies, 42, 90*time.Second)

	reward, err := newRewardService().Compute(context.Background(), b, time.Now())
	require.NoError(t, err)

	require.Equal(t, "victory", reward.Result)
	require.EqualValues(t, 50, reward.Experience, "等级差为 0、时长中性时经验等于基础和")
	require.EqualValues(t, 12, reward.Gold, "金币区间上下界相等时无随机性")
	require.Equal(t, reward.Experience, reward.MemberShares["hero-1"], "单人独得全部经验")
}

func TestRewardFastBattleBonus(t *testing.T) {
	players := []*combat.Participant{rewardPlayer("hero-1", 10, 40, 100)}
	enemies := []*combat.Participant{rewardEnemy("goblin", 10, 100, 0, 0)}
	b := finishedBattle(combat.StatusVictory, players, enemies, 1, 30*time.Second)

	reward, err := newRewardService().Compute(context.Background(), b, time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 120, reward.Experience, "1 分钟内结束 ×1.2")
}

func TestRewardSlowBattlePenalty(t *testing.T) {
	players := []*combat.Participant{rewardPlayer("hero-1", 10, 40, 100)}
	enemies := []*combat.Participant{rewardEnemy("goblin", 10, 100, 0, 0)}
	b := finishedBattle(combat.StatusVictory, players, enemies, 1, 6*time.Minute)

	reward, err := newRewardService().Compute(context.Background(), b, time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 80, reward.Experience, "超过 5 分钟 ×0.8")
}

func TestRewardLevelDiffBonusAndMonotonicity(t *testing.T) {
	svc := newRewardService()
	expFor := func(enemyLevel int) int64 {
		players := []*combat.Participant{rewardPlayer("hero-1", 10, 40, 100)}
		enemies := []*combat.Participant{rewardEnemy("boss", enemyLevel, 100, 0, 0)}
		b := finishedBattle(combat.StatusVictory, players, enemies, 1, 90*time.Second)
		reward, err := svc.Compute(context.Background(), b, time.Now())
		require.NoError(t, err)
		return reward.Experience
	}

	require.EqualValues(t, 120, expFor(12), "Δ=2 时 ×1.2")
	require.EqualValues(t, 150, expFor(15), "Δ=5 时 ×1.5")
	require.Greater(t, expFor(15), expFor(12), "Δ 更大经验更多")
	require.EqualValues(t, 100, expFor(8), "Δ ∈ [-5, 0] 无修正")
}

func TestRewardTrivialFightFlooredAtTenPercent(t *testing.T) {
	players := []*combat.Participant{rewardPlayer("hero-1", 30, 40, 100)}
	enemies := []*combat.Participant{rewardEnemy("rat", 1, 100, 0, 0)}
	b := finishedBattle(combat.StatusVictory, players, enemies, 1, 90*time.Second)

	reward, err := newRewardService().Compute(context.Background(), b, time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 10, reward.Experience, "碾压局衰减下限为 base 的 10%")
}

func TestRewardPartySplitSumsExactlyAndAllPositive(t *testing.T) {
	players := []*combat.Participant{
		rewardPlayer("tank", 10, 100, 100), // 满血
		rewardPlayer("dps", 10, 50, 100),   // 半血
		rewardPlayer("down", 10, 0, 100),   // 阵亡
	}
	enemies := []*combat.Participant{rewardEnemy("boss", 10, 997, 0, 0)}
	b := finishedBattle(combat.StatusVictory, players, enemies, 1, 90*time.Second)

	reward, err := newRewardService().Compute(context.Background(), b, time.Now())
	require.NoError(t, err)

	var sum int64
	for _, share := range reward.MemberShares {
		require.Positive(t, share, "每名成员分成严格为正")
		sum += share
	}
	require.Equal(t, reward.Experience, sum, "分成之和精确等于总经验")
	require.Greater(t, reward.MemberShares["tank"], reward.MemberShares["dps"], "血量比例高者分成更多")
	require.Greater(t, reward.MemberShares["dps"], reward.MemberShares["down"])
}

func TestRewardDefeatConsolation(t *testing.T) {
	players := []*combat.Participant{rewardPlayer("hero-1", 10, 0, 100)}
	enemies := []*combat.Participant{rewardEnemy("boss", 10, 200, 100, 100)}
	b := finishedBattle(combat.StatusDefeat, players, enemies, 1, 90*time.Second)

	reward, err := newRewardService().Compute(context.Background(), b, time.Now())
	require.NoError(t, err)

	require.Equal(t, "defeat", reward.Result)
	require.EqualValues(t, 20, reward.Experience, "安慰奖 = 满额基准的 10%")
	require.LessOrEqual(t, reward.Gold, config.DefaultRewardTuning().ConsolationGoldCap)
	require.Empty(t, reward.Items, "失败无掉落")
}

func TestRewardAbandonedGivesNothing(t *testing.T) {
	players := []*combat.Participant{rewardPlayer("hero-1", 10, 80, 100)}
	enemies := []*combat.Participant{rewardEnemy("goblin", 10, 100, 5, 5)}
	b := finishedBattle(combat.StatusAbandoned, players, enemies, 1, 90*time.Second)

	reward, err := newRewardService().Compute(context.Background(), b, time.Now())
	require.NoError(t, err)

	require.Zero(t, reward.Experience)
	require.Zero(t, reward.Gold)
	require.Empty(t, reward.Items)
}

func TestRewardPerfectVictoryBonusAndCosmetic(t *testing.T) {
	players := []*combat.Participant{rewardPlayer("hero-1", 10, 100, 100)}
	enemies := []*combat.Participant{rewardEnemy("goblin", 10, 100, 0, 0)}
	b := finishedBattle(combat.StatusVictory, players, enemies, 1, 90*time.Second)

	reward, err := newRewardService().Compute(context.Background(), b, time.Now())
	require.NoError(t, err)

	require.True(t, reward.PerfectVictory)
	require.EqualValues(t, 120, reward.Experience, "完胜 ×1.2")
	require.Contains(t, reward.Items, config.DefaultRewardTuning().PerfectCosmeticID)
}

func TestRewardFirstKillAndStreakBonuses(t *testing.T) {
	ctx := context.Background()
	streaks := impl.NewMemoryStreakRepository()
	// 三连胜在身
	for i := 0; i < 3; i++ {
		_, err := streaks.RecordResult(ctx, "hero-1", true)
		require.NoError(t, err)
	}

	svc := NewRewardService(config.DefaultRewardTuning(), streaks, nil)

	players := []*combat.Participant{rewardPlayer("hero-1", 10, 40, 100)}
	enemies := []*combat.Participant{rewardEnemy("boss", 10, 200, 200, 200)}
	b := finishedBattle(combat.StatusVictory, players, enemies, 1, 90*time.Second)

	reward, err := svc.Compute(ctx, b, time.Now())
	require.NoError(t, err)

	require.True(t, reward.FirstKill)
	require.Equal(t, 3, reward.Streak)
	// 首杀 ×1.5，连胜 ×(1+0.15)
	require.EqualValues(t, 345, reward.Experience) // round(200·1.5·1.15)
	require.EqualValues(t, 299, reward.Gold)       // round(200·1.3·1.15)

	// 已击杀过该模板后不再触发首杀
	require.NoError(t, streaks.MarkKilled(ctx, "hero-1", "tpl_boss"))
	reward2, err := svc.Compute(ctx, b, time.Now())
	require.NoError(t, err)
	require.False(t, reward2.FirstKill)
}

func TestRewardStreakBonusIsCapped(t *testing.T) {
	ctx := context.Background()
	streaks := impl.NewMemoryStreakRepository()
	for i := 0; i < 30; i++ {
		_, err := streaks.RecordResult(ctx, "hero-1", true)
		require.NoError(t, err)
	}
	require.NoError(t, streaks.MarkKilled(ctx, "hero-1", "tpl_boss"))

	svc := NewRewardService(config.DefaultRewardTuning(), streaks, nil)
	players := []*combat.Participant{rewardPlayer("hero-1", 10, 40, 100)}
	enemies := []*combat.Participant{rewardEnemy("boss", 10, 100, 0, 0)}
	b := finishedBattle(combat.StatusVictory, players, enemies, 1, 90*time.Second)

	reward, err := svc.Compute(ctx, b, time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 150, reward.Experience, "连胜加成封顶 +50%")
}

func TestRewardLootRollsAndRareDrop(t *testing.T) {
	players := []*combat.Participant{rewardPlayer("hero-1", 10, 40, 100)}
	enemy := rewardEnemy("goblin", 10, 20, 0, 0)
	enemy.LootTable = []combat.LootEntry{
		{ItemID: "item_always", Chance: 1.0},
		{ItemID: "item_never", Chance: 0.0},
	}
	enemy.RareItemID = "item_rare"
	enemy.RareDropRate = 1.0
	b := finishedBattle(combat.StatusVictory, players, []*combat.Participant{enemy}, 1, 90*time.Second)

	reward, err := newRewardService().Compute(context.Background(), b, time.Now())
	require.NoError(t, err)

	require.Contains(t, reward.Items, "item_always", "概率 1 必掉")
	require.NotContains(t, reward.Items, "item_never", "概率 0 必不掉")
	require.Contains(t, reward.Items, "item_rare", "稀有概率 1 必掉")
}

func TestRewardSameSeedSameResult(t *testing.T) {
	build := func() *combat.Battle {
		players := []*combat.Participant{rewardPlayer("hero-1", 10, 40, 100)}
		enemy := rewardEnemy("goblin", 10, 20, 3, 17)
		enemy.LootTable = []combat.LootEntry{{ItemID: "item_coin", Chance: 0.5}}
		return finishedBattle(combat.StatusVictory, players, []*combat.Participant{enemy}, 777, 90*time.Second)
	}

	svc := newRewardService()
	r1, err := svc.Compute(context.Background(), build(), time.Now())
	require.NoError(t, err)
	r2, err := svc.Compute(context.Background(), build(), time.Now())
	require.NoError(t, err)

	require.Equal(t, r1.Gold, r2.Gold, "金币 roll 由战斗种子派生")
	require.Equal(t, r1.Items, r2.Items, "掉落 roll 由战斗种子派生")
	require.Equal(t, r1.Experience, r2.Experience)
}
