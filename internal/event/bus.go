package event

import (
	"sync"

	"idle-rpg-server/internal/pkg/log"
	"idle-rpg-server/internal/pkg/metrics"
	"idle-rpg-server/internal/pkg/xerrors"
)

// Handler 事件处理器。panic 会被总线捕获并隔离。
type Handler func(Event)

// SubscriptionID 订阅标识，用于退订
type SubscriptionID int64

type subscription struct {
	id SubscriptionID
	fn Handler
}

// Bus 异步事件总线。
// 单个后台消费者按 FIFO 顺序派发事件：同一生产者发布的事件
// 对每个处理器保持发布顺序；处理器按订阅顺序依次调用。
// handlers 的 slice 一经发布即只读，变更时整体替换（copy-on-write），
// 派发期间不持锁，订阅/退订可与派发并发进行。
type Bus struct {
	mu       sync.RWMutex // 保护 handlers 与 closed
	handlers map[Kind][]subscription
	nextID   SubscriptionID
	closed   bool

	queue   chan Event
	pending sync.WaitGroup // 入队未派发完的事件
	done    chan struct{}

	logger  log.Logger
	metrics *metrics.BattleMetrics
}

// NewBus 创建并启动事件总线
func NewBus(queueSize int, logger log.Logger, m *metrics.BattleMetrics) *Bus {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if logger == nil {
		logger = log.GetLogger()
	}
	if m == nil {
		m = metrics.DefaultBattleMetrics
	}
	b := &Bus{
		handlers: make(map[Kind][]subscription),
		queue:    make(chan Event, queueSize),
		done:     make(chan struct{}),
		logger:   logger.With("component", "event_bus"),
		metrics:  m,
	}
	go b.consume()
	return b
}

// Subscribe 注册处理器，返回订阅标识
func (b *Bus) Subscribe(kind Kind, fn Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID

	// copy-on-write：替换整个 slice，派发端持有的旧快照不受影响
	existing := b.handlers[kind]
	next := make([]subscription, len(existing), len(existing)+1)
	copy(next, existing)
	b.handlers[kind] = append(next, subscription{id: id, fn: fn})
	return id
}

// Unsubscribe 移除订阅。不存在时为 no-op。
func (b *Bus) Unsubscribe(id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for kind, subs := range b.handlers {
		for i, s := range subs {
			if s.id != id {
				continue
			}
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			b.handlers[kind] = next
			return
		}
	}
}

// Publish 入队事件。入队即返回，派发由后台消费者完成。
// 总线关闭后返回错误。
func (b *Bus) Publish(e Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return xerrors.New(xerrors.CodeMessageQueueError, "事件总线已关闭")
	}
	b.pending.Add(1)
	b.mu.RUnlock()

	b.queue <- e
	b.metrics.RecordEventPublished(e.Kind.String())
	return nil
}

// Flush 阻塞直到当前已入队的事件全部派发完成（测试与优雅关闭用）
func (b *Bus) Flush() {
	b.pending.Wait()
}

// Close 停止接收新事件，排空队列后关闭消费者
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.pending.Wait()
	close(b.queue)
	<-b.done
}

func (b *Bus) consume() {
	defer close(b.done)
	for e := range b.queue {
		b.dispatch(e)
		b.pending.Done()
	}
}

func (b *Bus) dispatch(e Event) {
	b.mu.RLock()
	typed := b.handlers[e.Kind]
	wildcard := b.handlers[KindAny]
	b.mu.RUnlock()

	for _, s := range typed {
		b.invoke(s, e)
	}
	for _, s := range wildcard {
		b.invoke(s, e)
	}
}

// invoke 调用单个处理器。处理器抛出的 panic 是局部可恢复错误：
// 记录日志后继续调用兄弟处理器，绝不影响总线本身。
func (b *Bus) invoke(s subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.metrics.RecordHandlerPanic()
			b.logger.Error("事件处理器 panic，已隔离", nil,
				"event_kind", e.Kind.String(),
				"event_id", e.ID,
				"subscription_id", int64(s.id),
				"panic", r,
			)
		}
	}()
	s.fn(e)
}
