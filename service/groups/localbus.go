package groups

import (
	"context"
	"sync"
)

// LocalBus is an in-process Bus for single-node deployments and tests. It
// mirrors RedisBus semantics: only subscribed groups are delivered, publish
// to an unsubscribed group is a no-op.
type LocalBus struct {
	mu       sync.Mutex
	subs     map[string]struct{}
	ch       chan localMsg
	closed   bool
	doneOnce sync.Once
	done     chan struct{}
}

type localMsg struct {
	group   string
	payload []byte
}

func NewLocalBus() *LocalBus {
	return &LocalBus{
		subs: make(map[string]struct{}),
		ch:   make(chan localMsg, 256),
		done: make(chan struct{}),
	}
}

func (b *LocalBus) Publish(_ context.Context, group string, payload []byte) error {
	b.mu.Lock()
	_, ok := b.subs[group]
	closed := b.closed
	b.mu.Unlock()
	if closed || !ok {
		return nil
	}
	// copy: callers may reuse the slice
	p := make([]byte, len(payload))
	copy(p, payload)
	select {
	case b.ch <- localMsg{group: group, payload: p}:
	case <-b.done:
	}
	return nil
}

func (b *LocalBus) Subscribe(group string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[group] = struct{}{}
	return nil
}

func (b *LocalBus) Unsubscribe(group string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, group)
	return nil
}

func (b *LocalBus) Run(deliver func(group string, payload []byte)) {
	for {
		select {
		case m := <-b.ch:
			deliver(m.group, m.payload)
		case <-b.done:
			return
		}
	}
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.doneOnce.Do(func() { close(b.done) })
	return nil
}
