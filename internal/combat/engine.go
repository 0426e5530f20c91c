package combat

import (
	"context"
	"time"

	"idle-rpg-server/internal/event"
	"idle-rpg-server/internal/pkg/log"
)

// EngineConfig 引擎数值配置（平衡参数可调）
type EngineConfig struct {
	CritChance     float64
	CritMultiplier float64
}

// DefaultEngineConfig 默认配置
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		CritChance:     0.1,
		CritMultiplier: 1.5,
	}
}

// Engine 战斗引擎：推进战斗状态机。
// 引擎本身无状态（冷却在 tracker、战斗在 Battle），
// 同一个 Battle 不会被两个线程同时推进——由调度器保证。
type Engine struct {
	cfg       EngineConfig
	cooldowns *CooldownTracker
	bus       *event.Bus
	logger    log.Logger
}

// NewEngine 构造函数。依赖显式注入。
func NewEngine(cfg EngineConfig, cooldowns *CooldownTracker, bus *event.Bus, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.GetLogger()
	}
	if cfg.CritMultiplier <= 0 {
		cfg = DefaultEngineConfig()
	}
	return &Engine{
		cfg:       cfg,
		cooldowns: cooldowns,
		bus:       bus,
		logger:    logger.With("component", "combat_engine"),
	}
}

// Tick 推进一场战斗一个 tick，返回是否已进入终态。
// tick 内绝不做任何外部 I/O：奖励结算与持久化在引擎外异步进行。
func (e *Engine) Tick(b *Battle, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Status.Terminal() {
		return true
	}

	// 放弃请求在 tick 开始时协作式生效
	if b.abandonRequested {
		e.transition(b, StatusAbandoned, now)
		return true
	}

	if b.Status == StatusPreparing {
		e.begin(b, now)
	}

	b.Rounds++

	acted := false
	for _, actor := range b.Players {
		if e.act(b, actor, b.Enemies, b.Players, now) {
			acted = true
		}
		if b.Status.Terminal() {
			return true
		}
	}
	for _, actor := range b.Enemies {
		if e.act(b, actor, b.Players, b.Enemies, now) {
			acted = true
		}
		if b.Status.Terminal() {
			return true
		}
	}

	if acted {
		b.LastActionAt = now
	}
	return false
}

// begin 首次 tick：进入 InProgress，预热初始冷却，发布战斗开始事件
func (e *Engine) begin(b *Battle, now time.Time) {
	e.transition(b, StatusInProgress, now)
	b.StartedAt = now
	b.LastActionAt = now

	for _, p := range append(append([]*Participant{}, b.Players...), b.Enemies...) {
		e.seedInitialCooldowns(p)
	}

	started := event.BattleStartedPayload{
		BattleID:   b.ID,
		BattleType: string(b.Type),
		TotalWaves: b.TotalWaves,
	}
	for _, p := range b.Players {
		started.HeroIDs = append(started.HeroIDs, p.ID)
	}
	for _, p := range b.Enemies {
		started.EnemyIDs = append(started.EnemyIDs, p.ID)
	}
	e.publish(event.New(event.KindBattleStarted, started))
}

// seedInitialCooldowns 部分技能首次使用前有预热冷却
func (e *Engine) seedInitialCooldowns(p *Participant) {
	for _, s := range p.Skills {
		if s.InitialCooldown > 0 {
			e.cooldowns.Set(p.ID, s.ID, s.InitialCooldown)
		}
	}
}

// act 让一个参战者行动。死亡或未到行动时间时不动作。
// 返回是否产生了动作。
func (e *Engine) act(b *Battle, actor *Participant, opponents, allies []*Participant, now time.Time) bool {
	if !actor.Alive() || now.Before(actor.nextActionAt) {
		return false
	}

	skill, target := e.selectAction(actor, opponents, allies)
	if target == nil {
		// 没有合法目标：静默跳过该 tick，战斗继续
		e.logger.Debug("无合法目标，跳过行动", "battle_id", b.ID, "actor_id", actor.ID)
		return false
	}

	actor.nextActionAt = now.Add(actor.AttackInterval)

	if skill != nil && skill.Kind == SkillHeal {
		e.resolveHeal(b, actor, target, skill, now)
		return true
	}
	e.resolveDamage(b, actor, target, skill, now)
	return true
}

// selectAction 按优先级选择一个就绪技能，否则回退普通攻击。
// 伤害目标：对方首个存活者；治疗目标：己方血量比例最低的受伤存活者。
// 目标选择不含随机性，只有伤害的暴击 roll 使用随机流。
func (e *Engine) selectAction(actor *Participant, opponents, allies []*Participant) (*Skill, *Participant) {
	var chosen *Skill
	for i := range actor.Skills {
		s := &actor.Skills[i]
		if e.cooldowns.IsOnCooldown(actor.ID, s.ID) {
			continue
		}
		if s.Kind == SkillHeal && mostInjured(allies) == nil {
			continue // 无人受伤，治疗技能不可用
		}
		if chosen == nil || s.Priority < chosen.Priority {
			chosen = s
		}
	}

	if chosen != nil && chosen.Kind == SkillHeal {
		return chosen, mostInjured(allies)
	}
	return chosen, firstLiving(opponents)
}

// mostInjured 返回血量比例最低的受伤存活者（相同时取先出现者）
func mostInjured(side []*Participant) *Participant {
	var target *Participant
	for _, p := range side {
		if !p.Alive() || p.Health >= p.MaxHealth {
			continue
		}
		if target == nil || p.HealthFraction() < target.HealthFraction() {
			target = p
		}
	}
	return target
}

// resolveDamage 伤害结算：atk(+技能加成) − def，下限 1；暴击独立 roll
func (e *Engine) resolveDamage(b *Battle, actor, target *Participant, skill *Skill, now time.Time) {
	attack := actor.AttackPower
	action := ActionAttack
	skillID := ""
	if skill != nil {
		attack += skill.EffectValue
		action = ActionSkill
		skillID = skill.ID
		e.cooldowns.Set(actor.ID, skill.ID, skill.Cooldown)
	}

	amount := attack - target.Defense
	if amount < 1 {
		amount = 1
	}

	critical := b.rng.Float64() < e.cfg.CritChance
	if critical {
		amount = int(float64(amount) * e.cfg.CritMultiplier)
	}

	target.ApplyDamage(amount)

	b.Log = append(b.Log, LogEntry{
		At:       now,
		ActorID:  actor.ID,
		TargetID: target.ID,
		Action:   action,
		SkillID:  skillID,
		Amount:   amount,
		Critical: critical,
	})

	died := !target.Alive()
	e.publish(event.New(event.KindDamageDealt, event.DamageDealtPayload{
		BattleID:   b.ID,
		AttackerID: actor.ID,
		TargetID:   target.ID,
		SkillID:    skillID,
		Amount:     amount,
		Critical:   critical,
		TargetDied: died,
	}))

	if died && target.Side == SideEnemy {
		e.publish(event.New(event.KindEnemyKilled, event.EnemyKilledPayload{
			BattleID:   b.ID,
			EnemyID:    target.ID,
			TemplateID: target.TemplateID,
			KillerID:   actor.ID,
			Wave:       b.WaveIndex,
		}))
	}

	if died {
		e.checkOutcome(b, now)
	}
}

// resolveHeal 治疗结算：固定治疗量，不参与暴击
func (e *Engine) resolveHeal(b *Battle, actor, target *Participant, skill *Skill, now time.Time) {
	e.cooldowns.Set(actor.ID, skill.ID, skill.Cooldown)

	amount := skill.EffectValue
	target.ApplyHeal(amount)

	b.Log = append(b.Log, LogEntry{
		At:       now,
		ActorID:  actor.ID,
		TargetID: target.ID,
		Action:   ActionHeal,
		SkillID:  skill.ID,
		Amount:   amount,
	})

	e.publish(event.New(event.KindHealApplied, event.HealAppliedPayload{
		BattleID: b.ID,
		CasterID: actor.ID,
		TargetID: target.ID,
		SkillID:  skill.ID,
		Amount:   amount,
	}))
}

// checkOutcome 死亡结算后检查胜负与波次推进
func (e *Engine) checkOutcome(b *Battle, now time.Time) {
	if livingCount(b.Players) == 0 {
		e.transition(b, StatusDefeat, now)
		return
	}
	if livingCount(b.Enemies) > 0 {
		return
	}

	// 当前波全灭：有后续波则推进，玩家血量与冷却保留
	b.DefeatedEnemies = append(b.DefeatedEnemies, b.Enemies...)
	if len(b.waves) > 0 {
		cleared := b.WaveIndex
		b.Enemies = b.waves[0]
		b.waves = b.waves[1:]
		b.WaveIndex++
		for _, p := range b.Enemies {
			e.seedInitialCooldowns(p)
		}
		e.publish(event.New(event.KindWaveCleared, event.WaveClearedPayload{
			BattleID:    b.ID,
			ClearedWave: cleared,
			NextWave:    b.WaveIndex,
			TotalWaves:  b.TotalWaves,
		}))
		return
	}

	e.transition(b, StatusVictory, now)
}

// transition 执行一次前向状态迁移。非法迁移直接忽略并告警——
// 状态机不会后退，也不会重复进入终态。
func (e *Engine) transition(b *Battle, to Status, now time.Time) {
	if !canTransition(b.Status, to) {
		e.logger.Warn("非法状态迁移被忽略",
			"battle_id", b.ID, "from", b.Status.String(), "to", to.String())
		return
	}
	b.Status = to
	if to.Terminal() {
		b.EndedAt = now
	}
}

// Abandon 外部取消入口（注册中心调用）
func (e *Engine) Abandon(b *Battle) {
	b.RequestAbandon()
}

func (e *Engine) publish(ev event.Event) {
	if err := e.bus.Publish(ev); err != nil {
		e.logger.Debug("事件发布失败", "kind", ev.Kind.String(), "error", err.Error())
	}
}

// CleanupCooldowns 战斗结束后清理参战者冷却记录
func (e *Engine) CleanupCooldowns(ctx context.Context, b *Battle) {
	for _, p := range b.Players {
		e.cooldowns.ClearActor(p.ID)
	}
	for _, p := range b.AllEnemies {
		e.cooldowns.ClearActor(p.ID)
	}
}
