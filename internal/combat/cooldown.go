// Package combat 实现战斗核心：参战者模型、战斗状态机、tick 推进与调度。
package combat

import (
	"sync"
	"time"
)

// CooldownKey 冷却键：按 (角色, 技能/增益) 维度记录
type CooldownKey struct {
	ActorID string
	SkillID string
}

// CooldownTracker 冷却追踪器。
// 纯时间戳比较，没有后台定时器；clock 可注入便于测试。
type CooldownTracker struct {
	mu      sync.RWMutex
	clock   func() time.Time
	entries map[CooldownKey]time.Time // key → 到期时间
}

// NewCooldownTracker 创建冷却追踪器
func NewCooldownTracker() *CooldownTracker {
	return NewCooldownTrackerWithClock(time.Now)
}

// NewCooldownTrackerWithClock 创建冷却追踪器（注入时钟）
func NewCooldownTrackerWithClock(clock func() time.Time) *CooldownTracker {
	if clock == nil {
		clock = time.Now
	}
	return &CooldownTracker{
		clock:   clock,
		entries: make(map[CooldownKey]time.Time),
	}
}

// IsOnCooldown 判断是否处于冷却中。
// 无记录或已到期均视为可用。
func (t *CooldownTracker) IsOnCooldown(actorID, skillID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	expiry, ok := t.entries[CooldownKey{ActorID: actorID, SkillID: skillID}]
	if !ok {
		return false
	}
	return t.clock().Before(expiry)
}

// Remaining 返回剩余冷却时长，未冷却时返回 0
func (t *CooldownTracker) Remaining(actorID, skillID string) time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	expiry, ok := t.entries[CooldownKey{ActorID: actorID, SkillID: skillID}]
	if !ok {
		return 0
	}
	remaining := expiry.Sub(t.clock())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Set 设置冷却。d <= 0 时等价于 Clear。
func (t *CooldownTracker) Set(actorID, skillID string, d time.Duration) {
	key := CooldownKey{ActorID: actorID, SkillID: skillID}

	t.mu.Lock()
	defer t.mu.Unlock()

	if d <= 0 {
		delete(t.entries, key)
		return
	}
	t.entries[key] = t.clock().Add(d)
}

// Clear 清除单个冷却
func (t *CooldownTracker) Clear(actorID, skillID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, CooldownKey{ActorID: actorID, SkillID: skillID})
}

// ClearActor 清除某角色的全部冷却（战斗结束时的清理）
func (t *CooldownTracker) ClearActor(actorID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.entries {
		if key.ActorID == actorID {
			delete(t.entries, key)
		}
	}
}
