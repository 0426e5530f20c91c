package combat

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// BattleType 战斗类型
type BattleType string

const (
	BattleTypeSolo  BattleType = "solo"
	BattleTypeParty BattleType = "party"
	BattleTypeRaid  BattleType = "raid"
	BattleTypePvP   BattleType = "pvp"
)

// ValidBattleType 校验战斗类型
func ValidBattleType(t string) bool {
	switch BattleType(t) {
	case BattleTypeSolo, BattleTypeParty, BattleTypeRaid, BattleTypePvP:
		return true
	}
	return false
}

// Status 战斗状态。只允许前进：
// Preparing → InProgress → {Victory, Defeat, Abandoned}
type Status int

const (
	StatusPreparing Status = iota
	StatusInProgress
	StatusVictory
	StatusDefeat
	StatusAbandoned
)

func (s Status) String() string {
	switch s {
	case StatusPreparing:
		return "preparing"
	case StatusInProgress:
		return "in_progress"
	case StatusVictory:
		return "victory"
	case StatusDefeat:
		return "defeat"
	case StatusAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Terminal 是否终态
func (s Status) Terminal() bool {
	return s == StatusVictory || s == StatusDefeat || s == StatusAbandoned
}

// canTransition 状态机合法迁移表
func canTransition(from, to Status) bool {
	switch from {
	case StatusPreparing:
		return to == StatusInProgress || to == StatusAbandoned
	case StatusInProgress:
		return to == StatusVictory || to == StatusDefeat || to == StatusAbandoned
	default:
		return false // 终态不可离开
	}
}

// ActionKind 战斗日志条目的动作类型
type ActionKind string

const (
	ActionAttack ActionKind = "attack"
	ActionSkill  ActionKind = "skill"
	ActionHeal   ActionKind = "heal"
)

// LogEntry 追加式战斗日志条目
type LogEntry struct {
	At       time.Time  `json:"at"`
	ActorID  string     `json:"actor_id"`
	TargetID string     `json:"target_id"`
	Action   ActionKind `json:"action"`
	SkillID  string     `json:"skill_id,omitempty"`
	Amount   int        `json:"amount"`
	Critical bool       `json:"critical"`
}

// Battle 一场战斗的聚合根。
// 只由持有它的引擎在调度线程上修改；快照读取与放弃请求
// 通过内部锁与协作标记进入，外部不会直接改动字段。
type Battle struct {
	mu sync.Mutex

	ID     string
	Type   BattleType
	Status Status
	Rounds int

	Players []*Participant
	Enemies []*Participant

	// 多波次内容：waves 保存尚未进入战场的敌人波次
	waves      [][]*Participant
	WaveIndex  int // 当前波（从 1 开始）
	TotalWaves int

	// 跨波次累计的已击败敌人，奖励结算依据
	DefeatedEnemies []*Participant

	// 全部波次的敌人合集（失败时的安慰奖按满额基准折算）
	AllEnemies []*Participant

	Log []LogEntry

	CreatedAt    time.Time
	StartedAt    time.Time
	EndedAt      time.Time
	LastActionAt time.Time

	seed int64
	rng  *rand.Rand

	abandonRequested bool
}

// NewBattle 创建战斗实例。
// waves 至少包含一波敌人；seed 固定时战斗过程完全可复现。
func NewBattle(battleType BattleType, players []*Participant, waves [][]*Participant, seed int64) *Battle {
	b := &Battle{
		ID:         uuid.NewString(),
		Type:       battleType,
		Status:     StatusPreparing,
		Players:    players,
		WaveIndex:  1,
		CreatedAt:  time.Now(),
		TotalWaves: len(waves),
		seed:       seed,
		rng:        rand.New(rand.NewSource(seed)),
	}
	if len(waves) > 0 {
		b.Enemies = waves[0]
		b.waves = waves[1:]
	}
	for _, wave := range waves {
		b.AllEnemies = append(b.AllEnemies, wave...)
	}
	return b
}

// Seed 返回战斗随机种子（奖励结算派生随机流用）
func (b *Battle) Seed() int64 {
	return b.seed
}

// RequestAbandon 协作式放弃：在下一次 tick 开始时生效。
// 终态下为 no-op。
func (b *Battle) RequestAbandon() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Status.Terminal() {
		return
	}
	b.abandonRequested = true
}

// LastAction 最近一次动作时间。尚未开打的战斗返回创建时间，
// 僵死清理任务据此判定空转。
func (b *Battle) LastAction() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.LastActionAt.IsZero() {
		return b.LastActionAt
	}
	return b.CreatedAt
}

// Duration 战斗持续时长。未结束时返回到当前时刻的时长。
func (b *Battle) Duration(now time.Time) time.Duration {
	if b.StartedAt.IsZero() {
		return 0
	}
	end := b.EndedAt
	if end.IsZero() {
		end = now
	}
	return end.Sub(b.StartedAt)
}

// livingCount 存活人数
func livingCount(side []*Participant) int {
	n := 0
	for _, p := range side {
		if p.Alive() {
			n++
		}
	}
	return n
}

// firstLiving 返回第一个存活者，默认目标选择策略（确定性）
func firstLiving(side []*Participant) *Participant {
	for _, p := range side {
		if p.Alive() {
			return p
		}
	}
	return nil
}

// ParticipantSnapshot 参战者状态快照
type ParticipantSnapshot struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Side      string `json:"side"`
	Level     int    `json:"level"`
	Health    int    `json:"health"`
	MaxHealth int    `json:"max_health"`
}

// BattleSnapshot 对外暴露的战斗状态快照（API 层与推送层消费）
type BattleSnapshot struct {
	BattleID     string                `json:"battle_id"`
	BattleType   string                `json:"battle_type"`
	Status       string                `json:"status"`
	Rounds       int                   `json:"rounds"`
	Wave         int                   `json:"wave"`
	TotalWaves   int                   `json:"total_waves"`
	Participants []ParticipantSnapshot `json:"participants"`
	RecentLog    []LogEntry            `json:"recent_log,omitempty"`
	StartedAt    time.Time             `json:"started_at,omitempty"`
	EndedAt      time.Time             `json:"ended_at,omitempty"`
}

// Snapshot 生成当前状态快照。logTail 限制返回的日志条数（<=0 表示不返回日志）。
func (b *Battle) Snapshot(logTail int) *BattleSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := &BattleSnapshot{
		BattleID:   b.ID,
		BattleType: string(b.Type),
		Status:     b.Status.String(),
		Rounds:     b.Rounds,
		Wave:       b.WaveIndex,
		TotalWaves: b.TotalWaves,
		StartedAt:  b.StartedAt,
		EndedAt:    b.EndedAt,
	}
	for _, p := range b.Players {
		snap.Participants = append(snap.Participants, participantSnapshot(p))
	}
	for _, p := range b.Enemies {
		snap.Participants = append(snap.Participants, participantSnapshot(p))
	}
	if logTail > 0 && len(b.Log) > 0 {
		start := len(b.Log) - logTail
		if start < 0 {
			start = 0
		}
		snap.RecentLog = append(snap.RecentLog, b.Log[start:]...)
	}
	return snap
}

func participantSnapshot(p *Participant) ParticipantSnapshot {
	return ParticipantSnapshot{
		ID:        p.ID,
		Name:      p.Name,
		Side:      p.Side.String(),
		Level:     p.Level,
		Health:    p.Health,
		MaxHealth: p.MaxHealth,
	}
}
