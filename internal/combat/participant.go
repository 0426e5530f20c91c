package combat

import "time"

// Side 参战方
type Side int

const (
	SidePlayer Side = iota
	SideEnemy
)

func (s Side) String() string {
	if s == SideEnemy {
		return "enemy"
	}
	return "player"
}

// SkillKind 技能效果类型
type SkillKind int

const (
	SkillDamage SkillKind = iota
	SkillHeal
)

// Skill 技能定义。Priority 越小越优先选择。
type Skill struct {
	ID              string
	Name            string
	Kind            SkillKind
	Priority        int
	EffectValue     int // 伤害技能为附加攻击力，治疗技能为治疗量
	Cooldown        time.Duration
	InitialCooldown time.Duration // 首次可用前的预热冷却，可为 0
}

// LootEntry 掉落表条目：物品 → 基础掉落概率
type LootEntry struct {
	ItemID string
	Chance float64
}

// Participant 参战者（玩家角色或敌人）
type Participant struct {
	ID         string
	TemplateID string // 敌人来源模板；玩家为空
	Name       string
	Side       Side
	Level      int

	MaxHealth   int
	Health      int
	AttackPower int
	Defense     int

	// AttackInterval 由攻速换算而来，决定两次行动的最小间隔
	AttackInterval time.Duration
	Skills         []Skill

	// 敌方奖励数据（玩家侧为零值）
	ExperienceValue int64
	GoldMin         int64
	GoldMax         int64
	LootTable       []LootEntry
	RareItemID      string
	RareDropRate    float64 // <=0 时按等级公式计算

	nextActionAt time.Time
}

// Alive 存活判定：血量大于 0
func (p *Participant) Alive() bool {
	return p.Health > 0
}

// HealthFraction 剩余血量比例 [0,1]
func (p *Participant) HealthFraction() float64 {
	if p.MaxHealth <= 0 {
		return 0
	}
	f := float64(p.Health) / float64(p.MaxHealth)
	if f < 0 {
		return 0
	}
	return f
}

// ApplyDamage 扣血，下限 0
func (p *Participant) ApplyDamage(amount int) {
	p.Health -= amount
	if p.Health < 0 {
		p.Health = 0
	}
}

// ApplyHeal 回血，上限 MaxHealth
func (p *Participant) ApplyHeal(amount int) {
	p.Health += amount
	if p.Health > p.MaxHealth {
		p.Health = p.MaxHealth
	}
}
