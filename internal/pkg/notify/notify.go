// Package notify 通过 NATS 向实时推送层广播战斗进度与结算消息。
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
)

var (
	ncMu sync.RWMutex
	nc   *nats.Conn
)

// SetNatsConn 设置全局 NATS 连接（由 main 提供）
func SetNatsConn(conn *nats.Conn) {
	ncMu.Lock()
	defer ncMu.Unlock()
	nc = conn
}

// Default subjects
const (
	SubjectBattleUpdate = "battle.update" // battle.update.<battle_id>
	SubjectBattleEnded  = "battle.ended"  // battle.ended.<battle_id>
	SubjectHeroLevelUp  = "hero.levelup"  // hero.levelup.<hero_id>
)

// publish 序列化 payload 并发布到指定 subject
func publish(subject string, payload interface{}) error {
	ncMu.RLock()
	conn := nc
	ncMu.RUnlock()
	if conn == nil {
		return nil // 没有连接时静默降级
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notify payload failed: %w", err)
	}
	return conn.Publish(subject, data)
}

// PublishBattleUpdate 发布战斗进度快照
func PublishBattleUpdate(ctx context.Context, battleID string, payload interface{}) error {
	return publish(fmt.Sprintf("%s.%s", SubjectBattleUpdate, battleID), payload)
}

// PublishBattleEnded 发布战斗结算消息
func PublishBattleEnded(ctx context.Context, battleID string, payload interface{}) error {
	return publish(fmt.Sprintf("%s.%s", SubjectBattleEnded, battleID), payload)
}

// PublishHeroLevelUp 发布升级消息
func PublishHeroLevelUp(ctx context.Context, heroID string, payload interface{}) error {
	return publish(fmt.Sprintf("%s.%s", SubjectHeroLevelUp, heroID), payload)
}

// Broadcaster 实时推送边界（在消费端以接口使用，便于测试替换）
type Broadcaster interface {
	PushBattleUpdate(ctx context.Context, battleID string, payload interface{}) error
	PushBattleEnded(ctx context.Context, battleID string, payload interface{}) error
	PushHeroLevelUp(ctx context.Context, heroID string, payload interface{}) error
}

// NatsBroadcaster 基于包级 NATS 连接的 Broadcaster 实现
type NatsBroadcaster struct{}

// NewNatsBroadcaster 构造函数
func NewNatsBroadcaster() *NatsBroadcaster {
	return &NatsBroadcaster{}
}

func (b *NatsBroadcaster) PushBattleUpdate(ctx context.Context, battleID string, payload interface{}) error {
	return PublishBattleUpdate(ctx, battleID, payload)
}

func (b *NatsBroadcaster) PushBattleEnded(ctx context.Context, battleID string, payload interface{}) error {
	return PublishBattleEnded(ctx, battleID, payload)
}

func (b *NatsBroadcaster) PushHeroLevelUp(ctx context.Context, heroID string, payload interface{}) error {
	return PublishHeroLevelUp(ctx, heroID, payload)
}
