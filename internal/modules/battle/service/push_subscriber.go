package service

import (
	"context"

	"idle-rpg-server/internal/event"
	"idle-rpg-server/internal/pkg/log"
	"idle-rpg-server/internal/pkg/notify"
)

// BattleUpdateMessage 实时推送的战斗进度消息
type BattleUpdateMessage struct {
	Kind    string      `json:"kind"`
	Payload interface{} `json:"payload"`
}

// RegisterPushSubscribers 把战斗进度事件接到实时推送边界。
// 结束与升级消息由会话服务在结算时直接推送，这里只接过程事件。
func RegisterPushSubscribers(bus *event.Bus, broadcaster notify.Broadcaster, logger log.Logger) {
	if broadcaster == nil {
		return
	}
	if logger == nil {
		logger = log.GetLogger()
	}
	logger = logger.With("component", "push_subscriber")

	push := func(battleID string, ev event.Event) {
		msg := BattleUpdateMessage{Kind: ev.Kind.String(), Payload: ev.Payload}
		if err := broadcaster.PushBattleUpdate(context.Background(), battleID, msg); err != nil {
			logger.Debug("进度推送失败", "battle_id", battleID, "kind", msg.Kind, "error", err.Error())
		}
	}

	bus.Subscribe(event.KindBattleStarted, func(ev event.Event) {
		if p, ok := ev.Payload.(event.BattleStartedPayload); ok {
			push(p.BattleID, ev)
		}
	})
	bus.Subscribe(event.KindDamageDealt, func(ev event.Event) {
		if p, ok := ev.Payload.(event.DamageDealtPayload); ok {
			push(p.BattleID, ev)
		}
	})
	bus.Subscribe(event.KindHealApplied, func(ev event.Event) {
		if p, ok := ev.Payload.(event.HealAppliedPayload); ok {
			push(p.BattleID, ev)
		}
	})
	bus.Subscribe(event.KindEnemyKilled, func(ev event.Event) {
		if p, ok := ev.Payload.(event.EnemyKilledPayload); ok {
			push(p.BattleID, ev)
		}
	})
	bus.Subscribe(event.KindWaveCleared, func(ev event.Event) {
		if p, ok := ev.Payload.(event.WaveClearedPayload); ok {
			push(p.BattleID, ev)
		}
	})
}
