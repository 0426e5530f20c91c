package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"idle-rpg-server/internal/combat"
	"idle-rpg-server/internal/event"
	"idle-rpg-server/internal/pkg/config"
	"idle-rpg-server/internal/pkg/xerrors"
	"idle-rpg-server/internal/repository/entity"
	"idle-rpg-server/internal/repository/impl"
)

// fakeBroadcaster 记录全部推送调用
type fakeBroadcaster struct {
	mu       sync.Mutex
	updates  []string
	ended    []string
	levelUps []string
}

func (f *fakeBroadcaster) PushBattleUpdate(ctx context.Context, battleID string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, battleID)
	return nil
}

func (f *fakeBroadcaster) PushBattleEnded(ctx context.Context, battleID string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, battleID)
	return nil
}

func (f *fakeBroadcaster) PushHeroLevelUp(ctx context.Context, heroID string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levelUps = append(f.levelUps, heroID)
	return nil
}

func (f *fakeBroadcaster) endedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ended)
}

func (f *fakeBroadcaster) levelUpCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.levelUps)
}

type sessionEnv struct {
	bus         *event.Bus
	engine      *combat.Engine
	sessions    *BattleSessionService
	templates   *impl.MemoryEnemyTemplateRepository
	players     *impl.MemoryPlayerStateRepository
	records     *impl.MemoryBattleRecordRepository
	streaks     *impl.MemoryStreakRepository
	broadcaster *fakeBroadcaster
}

func newSessionEnv(t *testing.T) *sessionEnv {
	t.Helper()
	bus := event.NewBus(1024, nil, nil)
	t.Cleanup(bus.Close)

	engine := combat.NewEngine(combat.EngineConfig{CritChance: 0, CritMultiplier: 1.5},
		combat.NewCooldownTracker(), bus, nil)

	templates := impl.NewMemoryEnemyTemplateRepository()
	players := impl.NewMemoryPlayerStateRepository()
	records := impl.NewMemoryBattleRecordRepository()
	streaks := impl.NewMemoryStreakRepository()
	broadcaster := &fakeBroadcaster{}

	rewards := NewRewardService(config.DefaultRewardTuning(), streaks, nil)
	sessions := NewBattleSessionService(engine, rewards, bus, broadcaster,
		templates, players, records, streaks, nil, nil)

	templates.Put(&entity.EnemyTemplate{
		ID: "goblin", Name: "哥布林", Level: 10,
		MaxHealth: 50, AttackPower: 10, Defense: 5, AttackInterval: 100,
		ExperienceValue: 20, GoldMin: 5, GoldMax: 5,
	})
	players.Put(&entity.PlayerState{
		HeroID: "hero-1", Name: "英雄一号", Level: 10, Experience: 5000, Gold: 0,
		MaxHealth: 100, AttackPower: 20, Defense: 5, AttackInterval: 100,
	})
	players.Put(&entity.PlayerState{
		HeroID: "hero-2", Name: "英雄二号", Level: 10, Experience: 5000, Gold: 0,
		MaxHealth: 100, AttackPower: 20, Defense: 5, AttackInterval: 100,
	})

	return &sessionEnv{
		bus: bus, engine: engine, sessions: sessions,
		templates: templates, players: players, records: records,
		streaks: streaks, broadcaster: broadcaster,
	}
}

func soloInput(heroID string) StartBattleInput {
	return StartBattleInput{
		BattleType: "solo",
		HeroIDs:    []string{heroID},
		Waves:      [][]string{{"goblin"}},
		Seed:       42,
	}
}

func requireCode(t *testing.T, err error, code xerrors.ErrorCode) {
	t.Helper()
	var appErr *xerrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code)
}

func TestStartBattleRegistersAndSnapshots(t *testing.T) {
	env := newSessionEnv(t)

	snap, err := env.sessions.StartBattle(context.Background(), soloInput("hero-1"))
	require.NoError(t, err)
	require.Equal(t, "solo", snap.BattleType)
	require.Equal(t, combat.StatusPreparing.String(), snap.Status)
	require.Len(t, snap.Participants, 2)

	got, err := env.sessions.GetBattleSnapshot(context.Background(), snap.BattleID)
	require.NoError(t, err)
	require.Equal(t, snap.BattleID, got.BattleID)
	require.Len(t, env.sessions.ActiveBattles(), 1)
}

func TestStartBattleRejectsBusyHero(t *testing.T) {
	env := newSessionEnv(t)

	_, err := env.sessions.StartBattle(context.Background(), soloInput("hero-1"))
	require.NoError(t, err)

	// 同一角色的第二场被整体拒绝，包括组队场
	_, err = env.sessions.StartBattle(context.Background(), soloInput("hero-1"))
	requireCode(t, err, xerrors.CodeAlreadyInBattle)

	_, err = env.sessions.StartBattle(context.Background(), StartBattleInput{
		BattleType: "party",
		HeroIDs:    []string{"hero-2", "hero-1"},
		Waves:      [][]string{{"goblin"}},
	})
	requireCode(t, err, xerrors.CodeAlreadyInBattle)

	require.Len(t, env.sessions.ActiveBattles(), 1, "拒绝时不得产生第二场战斗")

	// 未被占用的角色不受影响
	_, err = env.sessions.StartBattle(context.Background(), soloInput("hero-2"))
	require.NoError(t, err)
}

func TestStartBattleValidation(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()

	_, err := env.sessions.StartBattle(ctx, StartBattleInput{
		BattleType: "duel", HeroIDs: []string{"hero-1"}, Waves: [][]string{{"goblin"}},
	})
	requireCode(t, err, xerrors.CodeBattleTypeInvalid)

	_, err = env.sessions.StartBattle(ctx, StartBattleInput{
		BattleType: "solo", Waves: [][]string{{"goblin"}},
	})
	requireCode(t, err, xerrors.CodeEmptyRoster)

	_, err = env.sessions.StartBattle(ctx, StartBattleInput{
		BattleType: "solo", HeroIDs: []string{"hero-1"},
	})
	requireCode(t, err, xerrors.CodeEmptyRoster)

	_, err = env.sessions.StartBattle(ctx, StartBattleInput{
		BattleType: "solo", HeroIDs: []string{"hero-1"}, Waves: [][]string{{}},
	})
	requireCode(t, err, xerrors.CodeEmptyRoster)

	_, err = env.sessions.StartBattle(ctx, StartBattleInput{
		BattleType: "solo", HeroIDs: []string{"hero-unknown"}, Waves: [][]string{{"goblin"}},
	})
	requireCode(t, err, xerrors.CodeHeroNotFound)

	_, err = env.sessions.StartBattle(ctx, StartBattleInput{
		BattleType: "party", HeroIDs: []string{"hero-1", "hero-1"}, Waves: [][]string{{"goblin"}},
	})
	requireCode(t, err, xerrors.CodeInvalidParams)

	_, err = env.sessions.StartBattle(ctx, StartBattleInput{
		BattleType: "solo", HeroIDs: []string{"hero-1"}, Waves: [][]string{{"dragon-unknown"}},
	})
	requireCode(t, err, xerrors.CodeEnemyTemplateNotFound)

	require.Empty(t, env.sessions.ActiveBattles(), "校验失败的战斗不得注册")
}

func TestStartBattleRejectsDuplicateHeroIDs(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()

	// 同一角色出现两次会让按成员分成的 map 份额互相覆盖，必须整体拒绝
	_, err := env.sessions.StartBattle(ctx, StartBattleInput{
		BattleType: "party",
		HeroIDs:    []string{"hero-1", "hero-2", "hero-1"},
		Waves:      [][]string{{"goblin"}},
		Seed:       42,
	})
	requireCode(t, err, xerrors.CodeInvalidParams)
	require.Empty(t, env.sessions.ActiveBattles())

	// 拒绝后角色未被占用，可正常开战
	_, err = env.sessions.StartBattle(ctx, soloInput("hero-1"))
	require.NoError(t, err)
}

func TestGetBattleSnapshotUnknownID(t *testing.T) {
	env := newSessionEnv(t)
	_, err := env.sessions.GetBattleSnapshot(context.Background(), "no-such-battle")
	requireCode(t, err, xerrors.CodeBattleNotFound)
}

func TestCancelBattleChecks(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()

	err := env.sessions.CancelBattle(ctx, "no-such-battle", "hero-1")
	requireCode(t, err, xerrors.CodeBattleNotFound)

	snap, err := env.sessions.StartBattle(ctx, soloInput("hero-1"))
	require.NoError(t, err)

	err = env.sessions.CancelBattle(ctx, snap.BattleID, "hero-2")
	requireCode(t, err, xerrors.CodeNotInBattle)

	require.NoError(t, env.sessions.CancelBattle(ctx, snap.BattleID, "hero-1"))

	// 协作式取消：下一 tick 进入 Abandoned
	battles := env.sessions.ActiveBattles()
	require.Len(t, battles, 1)
	require.True(t, env.engine.Tick(battles[0], time.Now()))
	require.Equal(t, combat.StatusAbandoned.String(), battles[0].Snapshot(0).Status)
}

func TestTerminalSettlementFlow(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()

	var mu sync.Mutex
	var endedPayloads []event.BattleEndedPayload
	env.bus.Subscribe(event.KindBattleEnded, func(e event.Event) {
		if p, ok := e.Payload.(event.BattleEndedPayload); ok {
			mu.Lock()
			endedPayloads = append(endedPayloads, p)
			mu.Unlock()
		}
	})

	snap, err := env.sessions.StartBattle(ctx, soloInput("hero-1"))
	require.NoError(t, err)

	// 推进到终态后走注册中心的终态回调
	battles := env.sessions.ActiveBattles()
	require.Len(t, battles, 1)
	b := battles[0]
	now := time.Now()
	for i := 0; i < 100; i++ {
		if env.engine.Tick(b, now) {
			break
		}
		now = now.Add(100 * time.Millisecond)
	}
	env.sessions.HandleTerminal(b)

	// 终态同步摘除：角色立即可再开战
	require.Empty(t, env.sessions.ActiveBattles())
	_, err = env.sessions.StartBattle(ctx, soloInput("hero-1"))
	require.NoError(t, err)

	// 结算是异步的：等待记录、推送与事件全部落地
	require.Eventually(t, func() bool {
		return len(env.records.Records()) == 1 && env.broadcaster.endedCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
	env.bus.Flush()

	record := env.records.Records()[0]
	require.Equal(t, snap.BattleID, record.BattleID)
	require.Equal(t, "victory", record.Result)
	require.Positive(t, record.Experience)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, endedPayloads, 1, "结束事件恰好发布一次且携带奖励")
	require.Equal(t, snap.BattleID, endedPayloads[0].BattleID)
	require.Equal(t, record.Experience, endedPayloads[0].Experience)

	// 角色增量已入账，连胜计入
	state, err := env.players.GetSnapshot(ctx, "hero-1")
	require.NoError(t, err)
	require.EqualValues(t, 5000+record.Experience, state.Experience)
	streak, err := env.streaks.WinStreak(ctx, "hero-1")
	require.NoError(t, err)
	require.Equal(t, 1, streak)
}

func TestSettlementPublishesLevelUp(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()

	// 差 10 经验升到 2 级
	env.players.Put(&entity.PlayerState{
		HeroID: "hero-low", Name: "新手", Level: 1, Experience: 90,
		MaxHealth: 100, AttackPower: 50, Defense: 5, AttackInterval: 100,
	})

	var mu sync.Mutex
	var levelUps []event.HeroLevelUpPayload
	env.bus.Subscribe(event.KindHeroLevelUp, func(e event.Event) {
		if p, ok := e.Payload.(event.HeroLevelUpPayload); ok {
			mu.Lock()
			levelUps = append(levelUps, p)
			mu.Unlock()
		}
	})

	_, err := env.sessions.StartBattle(ctx, soloInput("hero-low"))
	require.NoError(t, err)

	b := env.sessions.ActiveBattles()[0]
	now := time.Now()
	for i := 0; i < 100; i++ {
		if env.engine.Tick(b, now) {
			break
		}
		now = now.Add(100 * time.Millisecond)
	}
	env.sessions.HandleTerminal(b)

	require.Eventually(t, func() bool {
		return env.broadcaster.levelUpCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
	env.bus.Flush()

	state, err := env.players.GetSnapshot(ctx, "hero-low")
	require.NoError(t, err)
	require.Equal(t, 2, state.Level)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, levelUps, 1)
	require.Equal(t, "hero-low", levelUps[0].HeroID)
	require.Equal(t, 1, levelUps[0].OldLevel)
	require.Equal(t, 2, levelUps[0].NewLevel)
}

func TestForceAbandonStaleMarksIdleBattles(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()

	_, err := env.sessions.StartBattle(ctx, soloInput("hero-1"))
	require.NoError(t, err)

	// 阈值很大：不标记
	require.Zero(t, env.sessions.ForceAbandonStale(time.Hour))

	// 阈值为零：刚创建的战斗也视为僵死
	require.Equal(t, 1, env.sessions.ForceAbandonStale(0))

	b := env.sessions.ActiveBattles()[0]
	require.True(t, env.engine.Tick(b, time.Now()))
	require.Equal(t, combat.StatusAbandoned.String(), b.Snapshot(0).Status)
}

func TestLevelForExperience(t *testing.T) {
	require.Equal(t, 1, levelForExperience(0))
	require.Equal(t, 1, levelForExperience(99))
	require.Equal(t, 2, levelForExperience(100))
	require.Equal(t, 2, levelForExperience(299))
	require.Equal(t, 3, levelForExperience(300))
	require.Equal(t, 4, levelForExperience(600))
}

func TestSessionServiceRejectsUnknownHeroInParty(t *testing.T) {
	env := newSessionEnv(t)

	_, err := env.sessions.StartBattle(context.Background(), StartBattleInput{
		BattleType: "party",
		HeroIDs:    []string{"hero-1", "hero-ghost"},
		Waves:      [][]string{{"goblin"}},
	})
	var appErr *xerrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, xerrors.CodeHeroNotFound, appErr.Code)
	require.Empty(t, env.sessions.ActiveBattles())
}
