// Package pubsub 多订阅者广播总线
// 每个订阅者拥有独立的缓冲通道，发布方永不阻塞；缓冲满时丢弃新消息并计数。
package pubsub

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrBusClosed          = errors.New("bus closed")
	ErrSubscriberExists   = errors.New("subscriber already exists")
	ErrSubscriberNotFound = errors.New("subscriber not found")
)

// DefaultBuffer 订阅通道默认缓冲
const DefaultBuffer = 256

// Subscription 单个订阅
type Subscription[T any] struct {
	name      string
	ch        chan T
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// Name 订阅名称
func (s *Subscription[T]) Name() string { return s.name }

// C 接收通道，总线关闭或退订后关闭
func (s *Subscription[T]) C() <-chan T { return s.ch }

// SubscriberStats 订阅者投递统计
type SubscriberStats struct {
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Pending   int    `json:"pending"`
}

// Bus 广播总线
type Bus[T any] struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription[T]
	closed bool

	// OnDrop 缓冲满丢弃时回调（用于指标）
	OnDrop func(subscriber string)
}

// New 创建总线
func New[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[string]*Subscription[T])}
}

// Subscribe 注册订阅者，之后发布的消息都会投递给它
func (b *Bus[T]) Subscribe(name string, buffer int) (*Subscription[T], error) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	if _, ok := b.subs[name]; ok {
		return nil, ErrSubscriberExists
	}
	s := &Subscription[T]{name: name, ch: make(chan T, buffer)}
	b.subs[name] = s
	return s, nil
}

// Unsubscribe 退订并关闭通道
func (b *Bus[T]) Unsubscribe(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.subs[name]
	if !ok {
		return ErrSubscriberNotFound
	}
	delete(b.subs, name)
	close(s.ch)
	return nil
}

// Publish 投递给所有订阅者（非阻塞），返回成功投递数
func (b *Bus[T]) Publish(v T) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0
	}
	n := 0
	for name, s := range b.subs {
		select {
		case s.ch <- v:
			s.delivered.Add(1)
			n++
		default:
			s.dropped.Add(1)
			if b.OnDrop != nil {
				b.OnDrop(name)
			}
		}
	}
	return n
}

// Stats 各订阅者统计
func (b *Bus[T]) Stats() map[string]SubscriberStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]SubscriberStats, len(b.subs))
	for name, s := range b.subs {
		out[name] = SubscriberStats{
			Delivered: s.delivered.Load(),
			Dropped:   s.dropped.Load(),
			Pending:   len(s.ch),
		}
	}
	return out
}

// Len 当前订阅者数量
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close 关闭总线与全部订阅通道，可重复调用
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for name, s := range b.subs {
		close(s.ch)
		delete(b.subs, name)
	}
}
