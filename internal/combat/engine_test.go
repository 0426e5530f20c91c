package combat

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"idle-rpg-server/internal/event"
)

// eventCollector 通配订阅收集全部事件，断言用
type eventCollector struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *eventCollector) attach(bus *event.Bus) {
	bus.Subscribe(event.KindAny, func(e event.Event) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.events = append(c.events, e)
	})
}

func (c *eventCollector) countKind(kind event.Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// simClock 可控时钟：引擎 tick 与冷却追踪器共用同一时间源
type simClock struct {
	now time.Time
}

func (c *simClock) Now() time.Time { return c.now }

// testEnv 引擎测试环境
type testEnv struct {
	engine    *Engine
	bus       *event.Bus
	collector *eventCollector
	clock     *simClock
}

func newTestEnv(t *testing.T, cfg EngineConfig) *testEnv {
	t.Helper()
	bus := event.NewBus(256, nil, nil)
	t.Cleanup(bus.Close)

	collector := &eventCollector{}
	collector.attach(bus)

	clock := &simClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	engine := NewEngine(cfg, NewCooldownTrackerWithClock(clock.Now), bus, nil)
	return &testEnv{engine: engine, bus: bus, collector: collector, clock: clock}
}

// tick 在当前模拟时刻推进一次，然后把时钟走一个步长
func (env *testEnv) tick(b *Battle) bool {
	done := env.engine.Tick(b, env.clock.now)
	env.clock.now = env.clock.now.Add(100 * time.Millisecond)
	return done
}

func (env *testEnv) advance(d time.Duration) {
	env.clock.now = env.clock.now.Add(d)
}

// runToTerminal 推进战斗直到终态，返回用掉的 tick 数
func (env *testEnv) runToTerminal(t *testing.T, b *Battle, maxTicks int) int {
	t.Helper()
	for i := 1; i <= maxTicks; i++ {
		if env.tick(b) {
			return i
		}
	}
	t.Fatalf("战斗在 %d tick 内未结束，状态 %s", maxTicks, b.Status)
	return 0
}

func testPlayer(id string, level, hp, atk, def int) *Participant {
	return &Participant{
		ID: id, Name: id, Side: SidePlayer, Level: level,
		MaxHealth: hp, Health: hp, AttackPower: atk, Defense: def,
		AttackInterval: 100 * time.Millisecond,
	}
}

func testEnemy(id string, level, hp, atk, def int) *Participant {
	return &Participant{
		ID: id, TemplateID: "tpl_" + id, Name: id, Side: SideEnemy, Level: level,
		MaxHealth: hp, Health: hp, AttackPower: atk, Defense: def,
		AttackInterval:  100 * time.Millisecond,
		ExperienceValue: 20, GoldMin: 5, GoldMax: 10,
	}
}

func TestSoloBattlePlayerWinsWithinBound(t *testing.T) {
	env := newTestEnv(t, EngineConfig{CritChance: 0, CritMultiplier: 1.5})

	player := testPlayer("hero-1", 10, 100, 20, 5)
	enemy := testEnemy("goblin", 10, 50, 10, 5)
	b := NewBattle(BattleTypeSolo, []*Participant{player}, [][]*Participant{{enemy}}, 42)

	ticks := env.runToTerminal(t, b, 50)
	env.bus.Flush()

	require.Equal(t, StatusVictory, b.Status)
	require.LessOrEqual(t, ticks, 10, "20 攻 5 防对 50 血应在数个 tick 内结束")
	require.True(t, player.Alive(), "敌方 5 点伤害打不穿 100 血")
	require.Len(t, b.DefeatedEnemies, 1)
	require.False(t, b.EndedAt.IsZero())

	require.Equal(t, 1, env.collector.countKind(event.KindBattleStarted))
	require.Equal(t, 1, env.collector.countKind(event.KindEnemyKilled))
	require.NotZero(t, env.collector.countKind(event.KindDamageDealt))
}

func TestDeadParticipantNeverActsNorIsTargeted(t *testing.T) {
	env := newTestEnv(t, EngineConfig{CritChance: 0, CritMultiplier: 1.5})

	alive := testPlayer("hero-alive", 10, 100, 20, 5)
	dead := testPlayer("hero-dead", 10, 100, 20, 5)
	dead.Health = 0
	enemy := testEnemy("goblin", 10, 60, 10, 5)
	b := NewBattle(BattleTypeParty, []*Participant{dead, alive}, [][]*Participant{{enemy}}, 7)

	env.runToTerminal(t, b, 50)

	require.Equal(t, StatusVictory, b.Status)
	for _, entry := range b.Log {
		require.NotEqual(t, "hero-dead", entry.ActorID, "零血参战者不得行动")
		require.NotEqual(t, "hero-dead", entry.TargetID, "零血参战者不得被选中")
	}
}

func TestStatusTransitionsAreMonotonic(t *testing.T) {
	env := newTestEnv(t, EngineConfig{CritChance: 0, CritMultiplier: 1.5})

	player := testPlayer("hero-1", 10, 100, 20, 5)
	enemy := testEnemy("goblin", 10, 50, 10, 5)
	b := NewBattle(BattleTypeSolo, []*Participant{player}, [][]*Participant{{enemy}}, 42)

	rank := func(s Status) int {
		switch s {
		case StatusPreparing:
			return 0
		case StatusInProgress:
			return 1
		default:
			return 2
		}
	}

	prev := b.Status
	for i := 0; i < 50; i++ {
		done := env.tick(b)
		require.GreaterOrEqual(t, rank(b.Status), rank(prev), "状态只能前进")
		prev = b.Status
		if done {
			break
		}
	}
	require.True(t, b.Status.Terminal())

	// 终态后再 tick：状态保持不变
	final := b.Status
	require.True(t, env.tick(b))
	require.Equal(t, final, b.Status)
}

func TestIdenticalSeedProducesIdenticalLog(t *testing.T) {
	run := func() (*Battle, []LogEntry) {
		env := newTestEnv(t, EngineConfig{CritChance: 0.5, CritMultiplier: 2.0})
		player := testPlayer("hero-1", 10, 200, 18, 4)
		enemy := testEnemy("orc", 12, 120, 14, 6)
		b := NewBattle(BattleTypeSolo, []*Participant{player}, [][]*Participant{{enemy}}, 12345)
		env.runToTerminal(t, b, 200)
		return b, b.Log
	}

	b1, log1 := run()
	b2, log2 := run()

	require.Equal(t, b1.Status, b2.Status)
	require.Equal(t, b1.Rounds, b2.Rounds)
	require.Equal(t, len(log1), len(log2))
	for i := range log1 {
		require.Equal(t, log1[i].ActorID, log2[i].ActorID)
		require.Equal(t, log1[i].TargetID, log2[i].TargetID)
		require.Equal(t, log1[i].Amount, log2[i].Amount, "相同种子的暴击序列必须一致")
		require.Equal(t, log1[i].Critical, log2[i].Critical)
	}
}

func TestThreeWaveDungeonEndsOnlyAfterFinalWave(t *testing.T) {
	env := newTestEnv(t, EngineConfig{CritChance: 0, CritMultiplier: 1.5})

	player := testPlayer("hero-1", 10, 500, 30, 5)
	waves := [][]*Participant{
		{testEnemy("w1-goblin", 8, 40, 8, 3)},
		{testEnemy("w2-wolf", 9, 40, 9, 3)},
		{testEnemy("w3-orc", 10, 40, 10, 3)},
	}
	b := NewBattle(BattleTypeRaid, []*Participant{player}, waves, 99)

	sawMidWaves := false
	for i := 0; i < 100; i++ {
		done := env.tick(b)
		if !done && len(b.DefeatedEnemies) > 0 {
			sawMidWaves = true // 前两波清掉后战斗仍在进行
		}
		if done {
			break
		}
	}
	env.bus.Flush()

	require.True(t, sawMidWaves, "清掉中间波次不应结束战斗")
	require.Equal(t, StatusVictory, b.Status)
	require.Equal(t, 3, b.WaveIndex)
	require.Len(t, b.DefeatedEnemies, 3, "奖励基准累计全部波次")
	require.Equal(t, 2, env.collector.countKind(event.KindWaveCleared))
	require.Equal(t, 3, env.collector.countKind(event.KindEnemyKilled))
}

func TestWaveAdvanceKeepsPlayerHealth(t *testing.T) {
	env := newTestEnv(t, EngineConfig{CritChance: 0, CritMultiplier: 1.5})

	player := testPlayer("hero-1", 10, 100, 30, 0)
	waves := [][]*Participant{
		{testEnemy("w1", 8, 30, 10, 0)},
		{testEnemy("w2", 8, 30, 10, 0)},
	}
	b := NewBattle(BattleTypeRaid, []*Participant{player}, waves, 5)

	var healthAtWaveSwitch int
	for i := 0; i < 100; i++ {
		done := env.tick(b)
		if b.WaveIndex == 2 && healthAtWaveSwitch == 0 {
			healthAtWaveSwitch = player.Health
		}
		if done {
			break
		}
	}

	require.Equal(t, StatusVictory, b.Status)
	require.Less(t, healthAtWaveSwitch, 100, "第一波的伤害跨波保留")
}

func TestAbandonTakesEffectAtNextTick(t *testing.T) {
	env := newTestEnv(t, EngineConfig{CritChance: 0, CritMultiplier: 1.5})

	player := testPlayer("hero-1", 10, 1000, 1, 100)
	enemy := testEnemy("wall", 10, 1000, 1, 100)
	b := NewBattle(BattleTypeSolo, []*Participant{player}, [][]*Participant{{enemy}}, 1)

	require.False(t, env.tick(b))
	require.Equal(t, StatusInProgress, b.Status)

	b.RequestAbandon()
	require.Equal(t, StatusInProgress, b.Status, "放弃是协作式的，申请时不立即生效")

	require.True(t, env.tick(b))
	require.Equal(t, StatusAbandoned, b.Status)
}

func TestSkillPriorityAndCooldown(t *testing.T) {
	env := newTestEnv(t, EngineConfig{CritChance: 0, CritMultiplier: 1.5})

	player := testPlayer("hero-1", 10, 500, 10, 0)
	player.Skills = []Skill{
		{ID: "power_strike", Kind: SkillDamage, Priority: 1, EffectValue: 15, Cooldown: time.Second},
	}
	enemy := testEnemy("dummy", 10, 500, 1, 0)
	b := NewBattle(BattleTypeSolo, []*Participant{player}, [][]*Participant{{enemy}}, 3)

	env.tick(b)

	require.Len(t, b.Log, 2) // 双方各一次动作
	require.Equal(t, ActionSkill, b.Log[0].Action, "就绪技能优先于普通攻击")
	require.Equal(t, 25, b.Log[0].Amount)

	// 冷却中：回退普通攻击
	env.tick(b)
	require.Equal(t, ActionAttack, b.Log[2].Action)
	require.Equal(t, 10, b.Log[2].Amount)

	// 冷却结束：技能再次优先
	env.advance(time.Second)
	env.tick(b)
	require.Equal(t, ActionSkill, b.Log[4].Action)
}

func TestHealTargetsMostInjuredAlly(t *testing.T) {
	env := newTestEnv(t, EngineConfig{CritChance: 0, CritMultiplier: 1.5})

	healer := testPlayer("healer", 10, 100, 5, 50)
	healer.Skills = []Skill{
		{ID: "first_aid", Kind: SkillHeal, Priority: 0, EffectValue: 30, Cooldown: time.Minute},
	}
	wounded := testPlayer("wounded", 10, 100, 5, 50)
	wounded.Health = 20
	scratched := testPlayer("scratched", 10, 100, 5, 50)
	scratched.Health = 80
	enemy := testEnemy("wall", 10, 1000, 1, 100)

	b := NewBattle(BattleTypeParty,
		[]*Participant{healer, wounded, scratched}, [][]*Participant{{enemy}}, 8)

	env.tick(b)
	env.bus.Flush()

	require.Equal(t, 50, wounded.Health, "治疗选中血量比例最低的队友")
	require.Equal(t, 80, scratched.Health)
	require.Equal(t, 1, env.collector.countKind(event.KindHealApplied))
}

func TestInitialCooldownDelaysFirstUse(t *testing.T) {
	env := newTestEnv(t, EngineConfig{CritChance: 0, CritMultiplier: 1.5})

	player := testPlayer("hero-1", 10, 500, 10, 0)
	player.Skills = []Skill{
		{ID: "ultimate", Kind: SkillDamage, Priority: 0, EffectValue: 90,
			Cooldown: time.Minute, InitialCooldown: 250 * time.Millisecond},
	}
	enemy := testEnemy("dummy", 10, 1000, 1, 0)
	b := NewBattle(BattleTypeSolo, []*Participant{player}, [][]*Participant{{enemy}}, 3)

	env.tick(b) // 首个 tick 预热初始冷却
	require.Equal(t, ActionAttack, b.Log[0].Action, "预热期内技能不可用")

	env.advance(200 * time.Millisecond) // 模拟时钟越过预热期
	env.tick(b)
	require.Equal(t, ActionSkill, b.Log[2].Action, "预热结束后技能立即可用")
}

func TestPartyDefeatWhenAllPlayersDown(t *testing.T) {
	env := newTestEnv(t, EngineConfig{CritChance: 0, CritMultiplier: 1.5})

	weak := testPlayer("weak", 1, 10, 1, 0)
	enemy := testEnemy("dragon", 30, 1000, 50, 20)
	b := NewBattle(BattleTypeSolo, []*Participant{weak}, [][]*Participant{{enemy}}, 11)

	env.runToTerminal(t, b, 20)

	require.Equal(t, StatusDefeat, b.Status)
	require.False(t, weak.Alive())
	require.Empty(t, b.DefeatedEnemies)
}
