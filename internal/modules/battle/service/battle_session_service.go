// File: internal/modules/battle/service/battle_session_service.go
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"idle-rpg-server/internal/combat"
	"idle-rpg-server/internal/event"
	"idle-rpg-server/internal/pkg/log"
	"idle-rpg-server/internal/pkg/metrics"
	"idle-rpg-server/internal/pkg/notify"
	"idle-rpg-server/internal/pkg/xerrors"
	"idle-rpg-server/internal/repository/entity"
	"idle-rpg-server/internal/repository/interfaces"
)

// StartBattleInput 开战请求参数
type StartBattleInput struct {
	BattleType string
	HeroIDs    []string
	// Waves 每一波的敌人模板 ID 列表，至少一波
	Waves [][]string
	// Seed 随机种子；0 表示由服务生成
	Seed int64
}

// settleTimeout 结算阶段的外部 I/O 超时
const settleTimeout = 10 * time.Second

// BattleSessionService 战斗会话注册中心。
// 持有活跃战斗索引：battleID → Battle 与 heroID → battleID。
// 同一角色同一时刻至多出现在一场活跃战斗中。
type BattleSessionService struct {
	mu           sync.RWMutex
	battles      map[string]*combat.Battle
	activeByHero map[string]string

	engine      *combat.Engine
	rewards     *RewardService
	bus         *event.Bus
	broadcaster notify.Broadcaster

	templateRepo interfaces.EnemyTemplateRepository
	playerRepo   interfaces.PlayerStateRepository
	recordRepo   interfaces.BattleRecordRepository
	streakRepo   interfaces.StreakRepository

	metrics *metrics.BattleMetrics
	logger  log.Logger

	seedFn func() int64 // 测试注入
}

// NewBattleSessionService 创建战斗会话服务
func NewBattleSessionService(
	engine *combat.Engine,
	rewards *RewardService,
	bus *event.Bus,
	broadcaster notify.Broadcaster,
	templateRepo interfaces.EnemyTemplateRepository,
	playerRepo interfaces.PlayerStateRepository,
	recordRepo interfaces.BattleRecordRepository,
	streakRepo interfaces.StreakRepository,
	battleMetrics *metrics.BattleMetrics,
	logger log.Logger,
) *BattleSessionService {
	if logger == nil {
		logger = log.GetLogger()
	}
	if battleMetrics == nil {
		battleMetrics = metrics.DefaultBattleMetrics
	}
	return &BattleSessionService{
		battles:      make(map[string]*combat.Battle),
		activeByHero: make(map[string]string),
		engine:       engine,
		rewards:      rewards,
		bus:          bus,
		broadcaster:  broadcaster,
		templateRepo: templateRepo,
		playerRepo:   playerRepo,
		recordRepo:   recordRepo,
		streakRepo:   streakRepo,
		metrics:      battleMetrics,
		logger:       logger.With("component", "battle_session"),
		seedFn:       func() int64 { return time.Now().UnixNano() },
	}
}

// StartBattle 校验并注册一场新战斗。
// 任一角色已有活跃战斗时整体拒绝，不产生部分注册。
func (s *BattleSessionService) StartBattle(ctx context.Context, input StartBattleInput) (*combat.BattleSnapshot, error) {
	if !combat.ValidBattleType(input.BattleType) {
		return nil, xerrors.New(xerrors.CodeBattleTypeInvalid,
			fmt.Sprintf("未知战斗类型: %s", input.BattleType))
	}
	if len(input.HeroIDs) == 0 {
		return nil, xerrors.New(xerrors.CodeEmptyRoster, "参战角色列表为空")
	}
	// 角色 ID 在一场战斗内必须唯一，重复 ID 会让按成员分成的份额互相覆盖
	seen := make(map[string]bool, len(input.HeroIDs))
	for _, heroID := range input.HeroIDs {
		if seen[heroID] {
			return nil, xerrors.New(xerrors.CodeInvalidParams,
				fmt.Sprintf("重复的参战角色: %s", heroID))
		}
		seen[heroID] = true
	}
	if len(input.Waves) == 0 {
		return nil, xerrors.New(xerrors.CodeEmptyRoster, "敌人波次列表为空")
	}
	for i, wave := range input.Waves {
		if len(wave) == 0 {
			return nil, xerrors.New(xerrors.CodeEmptyRoster,
				fmt.Sprintf("第 %d 波敌人列表为空", i+1))
		}
	}

	players, err := s.buildPlayers(ctx, input.HeroIDs)
	if err != nil {
		return nil, err
	}
	waves, err := s.buildWaves(ctx, input.Waves)
	if err != nil {
		return nil, err
	}

	seed := input.Seed
	if seed == 0 {
		seed = s.seedFn()
	}
	battle := combat.NewBattle(combat.BattleType(input.BattleType), players, waves, seed)

	// 注册必须原子：检查占用与写入索引在同一临界区内
	s.mu.Lock()
	for _, heroID := range input.HeroIDs {
		if busyID, ok := s.activeByHero[heroID]; ok {
			s.mu.Unlock()
			return nil, xerrors.NewAlreadyInBattleError(heroID, busyID)
		}
	}
	s.battles[battle.ID] = battle
	for _, heroID := range input.HeroIDs {
		s.activeByHero[heroID] = battle.ID
	}
	s.mu.Unlock()

	s.metrics.ActiveBattles.Inc()
	s.logger.Info("战斗已注册",
		"battle_id", battle.ID,
		"battle_type", input.BattleType,
		"heroes", len(players),
		"waves", len(waves))
	return battle.Snapshot(0), nil
}

// CancelBattle 协作式取消：标记放弃，下一个 tick 进入终态并走正常结算
func (s *BattleSessionService) CancelBattle(ctx context.Context, battleID, requesterID string) error {
	s.mu.RLock()
	battle, ok := s.battles[battleID]
	s.mu.RUnlock()
	if !ok {
		return xerrors.NewBattleNotFoundError(battleID)
	}

	if requesterID != "" && !s.isParticipant(battle, requesterID) {
		return xerrors.New(xerrors.CodeNotInBattle,
			fmt.Sprintf("角色 %s 不在该战斗中", requesterID)).WithBattle(battleID).WithHero(requesterID)
	}

	s.engine.Abandon(battle)
	s.logger.Info("收到取消请求", "battle_id", battleID, "requester_id", requesterID)
	return nil
}

// GetBattleSnapshot 查询活跃战斗快照（含最近战斗日志）
func (s *BattleSessionService) GetBattleSnapshot(ctx context.Context, battleID string) (*combat.BattleSnapshot, error) {
	s.mu.RLock()
	battle, ok := s.battles[battleID]
	s.mu.RUnlock()
	if !ok {
		return nil, xerrors.NewBattleNotFoundError(battleID)
	}
	return battle.Snapshot(20), nil
}

// ActiveBattles 返回当前活跃战斗列表（调度器数据源）
func (s *BattleSessionService) ActiveBattles() []*combat.Battle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]*combat.Battle, 0, len(s.battles))
	for _, b := range s.battles {
		list = append(list, b)
	}
	return list
}

// HandleTerminal 调度器回调：战斗进入终态。
// 同步摘除索引（保证角色立即可再开战），结算异步执行。
func (s *BattleSessionService) HandleTerminal(battle *combat.Battle) {
	s.mu.Lock()
	delete(s.battles, battle.ID)
	for _, p := range battle.Players {
		if s.activeByHero[p.ID] == battle.ID {
			delete(s.activeByHero, p.ID)
		}
	}
	s.mu.Unlock()

	s.metrics.ActiveBattles.Dec()
	go s.settle(battle)
}

// ForceAbandonStale 强制放弃超过阈值无动作的战斗（清理任务调用），
// 返回被标记的战斗数
func (s *BattleSessionService) ForceAbandonStale(threshold time.Duration) int {
	now := time.Now()
	marked := 0
	for _, battle := range s.ActiveBattles() {
		if now.Sub(battle.LastAction()) < threshold {
			continue
		}
		battle.RequestAbandon()
		marked++
		s.logger.Warn("战斗空转超时，强制放弃",
			"battle_id", battle.ID, "last_action", battle.LastAction().Format(time.RFC3339))
	}
	return marked
}

// settle 终态结算：计算奖励 → 发布结束事件 → 应用角色增量与升级 →
// 落战斗记录 → 更新连胜/首杀 → 实时推送 → 清理冷却。
// 整个流程在引擎外异步执行，单步失败不阻断其余步骤。
func (s *BattleSessionService) settle(battle *combat.Battle) {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	now := time.Now()
	reward, err := s.rewards.Compute(ctx, battle, now)
	if err != nil {
		// Compute 对外部查询失败已自行降级，这里只会是编程错误
		s.logger.Error("奖励计算失败", err, "battle_id", battle.ID)
		reward = &RewardResult{BattleID: battle.ID, Result: battle.Status.String()}
	}

	ended := event.BattleEndedPayload{
		BattleID:        battle.ID,
		Result:          reward.Result,
		Rounds:          battle.Rounds,
		DurationSeconds: battle.Duration(now).Seconds(),
		Experience:      reward.Experience,
		Gold:            reward.Gold,
		Items:           reward.Items,
		MemberShares:    reward.MemberShares,
	}
	if err := s.bus.Publish(event.New(event.KindBattleEnded, ended)); err != nil {
		s.logger.Warn("结束事件发布失败", "battle_id", battle.ID, "error", err.Error())
	}

	s.applyPlayerDeltas(ctx, battle, reward)
	s.appendRecord(ctx, battle, reward, now)
	s.updateStreaks(ctx, battle)

	if s.broadcaster != nil {
		if err := s.broadcaster.PushBattleEnded(ctx, battle.ID, ended); err != nil {
			s.logger.Warn("结算推送失败", "battle_id", battle.ID, "error", err.Error())
		}
	}

	s.engine.CleanupCooldowns(ctx, battle)
	s.metrics.RecordBattleEnd(reward.Result, battle.Duration(now))
	s.metrics.RecordReward(reward.Result, reward.Experience, reward.Gold)

	log.LogBattleEvent(ctx, "battle_settled", battle.ID, map[string]interface{}{
		"result":     reward.Result,
		"rounds":     battle.Rounds,
		"experience": reward.Experience,
		"gold":       reward.Gold,
		"items":      len(reward.Items),
	})
}

// applyPlayerDeltas 按份额入账经验与金币，检测并发布升级事件。
// 金币按人头均分，余数归队长。
func (s *BattleSessionService) applyPlayerDeltas(ctx context.Context, battle *combat.Battle, reward *RewardResult) {
	if s.playerRepo == nil || len(battle.Players) == 0 {
		return
	}

	goldEach := reward.Gold / int64(len(battle.Players))
	goldRemainder := reward.Gold % int64(len(battle.Players))

	for i, p := range battle.Players {
		expShare := reward.MemberShares[p.ID]
		goldShare := goldEach
		if i == 0 {
			goldShare += goldRemainder
		}
		if expShare == 0 && goldShare == 0 {
			continue
		}

		state, err := s.playerRepo.GetSnapshot(ctx, p.ID)
		if err != nil {
			s.logger.Error("结算读取角色状态失败", err,
				"battle_id", battle.ID, "hero_id", p.ID)
			continue
		}

		newLevel := levelForExperience(state.Experience + expShare)
		if err := s.playerRepo.SavePlayerState(ctx, p.ID, goldShare, expShare, newLevel); err != nil {
			s.logger.Error("结算写入角色状态失败", err,
				"battle_id", battle.ID, "hero_id", p.ID)
			continue
		}

		if newLevel > state.Level {
			levelUp := event.HeroLevelUpPayload{
				HeroID:   p.ID,
				OldLevel: state.Level,
				NewLevel: newLevel,
				BattleID: battle.ID,
			}
			if err := s.bus.Publish(event.New(event.KindHeroLevelUp, levelUp)); err != nil {
				s.logger.Warn("升级事件发布失败", "hero_id", p.ID, "error", err.Error())
			}
			if s.broadcaster != nil {
				if err := s.broadcaster.PushHeroLevelUp(ctx, p.ID, levelUp); err != nil {
					s.logger.Warn("升级推送失败", "hero_id", p.ID, "error", err.Error())
				}
			}
		}
	}
}

// appendRecord 追加战斗记录，幂等（battle_id 冲突时忽略）
func (s *BattleSessionService) appendRecord(ctx context.Context, battle *combat.Battle, reward *RewardResult, now time.Time) {
	if s.recordRepo == nil {
		return
	}

	snap := battle.Snapshot(0)
	lootJSON, _ := json.Marshal(reward.Items)
	participantsJSON, _ := json.Marshal(snap.Participants)
	logJSON, _ := json.Marshal(battle.Log)

	record := &entity.BattleRecord{
		BattleID:     battle.ID,
		BattleType:   string(battle.Type),
		Result:       reward.Result,
		Rounds:       battle.Rounds,
		WaveCount:    battle.TotalWaves,
		Experience:   reward.Experience,
		Gold:         reward.Gold,
		LootItems:    lootJSON,
		Participants: participantsJSON,
		BattleLog:    logJSON,
		StartedAt:    battle.StartedAt,
		EndedAt:      battle.EndedAt,
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = battle.CreatedAt
	}
	if record.EndedAt.IsZero() {
		record.EndedAt = now
	}

	if err := s.recordRepo.AppendBattleRecord(ctx, record); err != nil {
		s.logger.Error("战斗记录写入失败", err, "battle_id", battle.ID)
	}
}

// updateStreaks 胜负计入每名参战角色的连胜；胜利时逐模板标记首杀
func (s *BattleSessionService) updateStreaks(ctx context.Context, battle *combat.Battle) {
	if s.streakRepo == nil {
		return
	}
	victory := battle.Status == combat.StatusVictory

	for _, p := range battle.Players {
		if _, err := s.streakRepo.RecordResult(ctx, p.ID, victory); err != nil {
			s.logger.Warn("连胜更新失败", "hero_id", p.ID, "error", err.Error())
		}
		if !victory {
			continue
		}
		seen := make(map[string]bool)
		for _, enemy := range battle.DefeatedEnemies {
			if enemy.TemplateID == "" || seen[enemy.TemplateID] {
				continue
			}
			seen[enemy.TemplateID] = true
			if err := s.streakRepo.MarkKilled(ctx, p.ID, enemy.TemplateID); err != nil {
				s.logger.Warn("首杀标记失败",
					"hero_id", p.ID, "template_id", enemy.TemplateID, "error", err.Error())
			}
		}
	}
}

// buildPlayers 从角色快照构建玩家参战者
func (s *BattleSessionService) buildPlayers(ctx context.Context, heroIDs []string) ([]*combat.Participant, error) {
	players := make([]*combat.Participant, 0, len(heroIDs))
	for _, heroID := range heroIDs {
		state, err := s.playerRepo.GetSnapshot(ctx, heroID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, xerrors.NewHeroNotFoundError(heroID)
			}
			return nil, xerrors.NewDatabaseError("GetSnapshot", "hero_states", err)
		}
		players = append(players, playerParticipant(state))
	}
	return players, nil
}

// buildWaves 从敌人模板构建各波次敌人，实例 ID 全战斗唯一
func (s *BattleSessionService) buildWaves(ctx context.Context, waveIDs [][]string) ([][]*combat.Participant, error) {
	waves := make([][]*combat.Participant, 0, len(waveIDs))
	instance := 0
	for _, ids := range waveIDs {
		wave := make([]*combat.Participant, 0, len(ids))
		for _, templateID := range ids {
			tpl, err := s.templateRepo.GetByID(ctx, templateID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, xerrors.NewEnemyTemplateNotFoundError(templateID)
				}
				return nil, xerrors.NewDatabaseError("GetByID", "enemy_templates", err)
			}
			instance++
			wave = append(wave, enemyParticipant(tpl, instance))
		}
		waves = append(waves, wave)
	}
	return waves, nil
}

func (s *BattleSessionService) isParticipant(battle *combat.Battle, heroID string) bool {
	for _, p := range battle.Players {
		if p.ID == heroID {
			return true
		}
	}
	return false
}

// playerParticipant 角色快照 → 参战者
func playerParticipant(state *entity.PlayerState) *combat.Participant {
	p := &combat.Participant{
		ID:             state.HeroID,
		Name:           state.Name,
		Side:           combat.SidePlayer,
		Level:          state.Level,
		MaxHealth:      state.MaxHealth,
		Health:         state.MaxHealth,
		AttackPower:    state.AttackPower,
		Defense:        state.Defense,
		AttackInterval: time.Duration(state.AttackInterval) * time.Millisecond,
	}
	for _, spec := range state.Skills {
		kind := combat.SkillDamage
		if spec.Kind == "heal" {
			kind = combat.SkillHeal
		}
		p.Skills = append(p.Skills, combat.Skill{
			ID:              spec.ID,
			Name:            spec.Name,
			Kind:            kind,
			Priority:        spec.Priority,
			EffectValue:     spec.EffectValue,
			Cooldown:        time.Duration(spec.CooldownMS) * time.Millisecond,
			InitialCooldown: time.Duration(spec.InitialCooldownMS) * time.Millisecond,
		})
	}
	return p
}

// enemyParticipant 敌人模板 → 参战者实例
func enemyParticipant(tpl *entity.EnemyTemplate, instance int) *combat.Participant {
	p := &combat.Participant{
		ID:              fmt.Sprintf("%s#%d", tpl.ID, instance),
		TemplateID:      tpl.ID,
		Name:            tpl.Name,
		Side:            combat.SideEnemy,
		Level:           tpl.Level,
		MaxHealth:       tpl.MaxHealth,
		Health:          tpl.MaxHealth,
		AttackPower:     tpl.AttackPower,
		Defense:         tpl.Defense,
		AttackInterval:  time.Duration(tpl.AttackInterval) * time.Millisecond,
		ExperienceValue: tpl.ExperienceValue,
		GoldMin:         tpl.GoldMin,
		GoldMax:         tpl.GoldMax,
	}

	if tpl.LootTable.Valid {
		var table map[string]float64
		if err := json.Unmarshal(tpl.LootTable.JSON, &table); err == nil {
			// map 遍历无序，掉落表按 itemID 排序保证确定性
			ids := make([]string, 0, len(table))
			for id := range table {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				p.LootTable = append(p.LootTable, combat.LootEntry{ItemID: id, Chance: table[id]})
			}
		}
	}

	if tpl.RareItemID.Valid {
		p.RareItemID = tpl.RareItemID.String
	}
	if !tpl.RareDropRate.IsZero() {
		rate, _ := tpl.RareDropRate.Float64()
		p.RareDropRate = rate
	}
	return p
}

// levelForExperience 由累计经验推导等级：从 L 升到 L+1 需要再积累 100·L 经验
func levelForExperience(total int64) int {
	level := 1
	need := int64(100)
	for total >= need {
		total -= need
		level++
		need = int64(100 * level)
	}
	return level
}
