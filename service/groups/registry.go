package groups

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/bazario/pushgate/logger"
)

// Member is a local delivery target, one live socket. Deliver must not
// block; it reports false when the payload was dropped (slow consumer or
// closing connection).
type Member interface {
	ID() string
	Deliver(payload []byte) bool
}

var ErrRegistryClosed = errors.New("registry closed")

const shardCount = 32

// groupEntry is one group's local state. ops serializes join/leave for the
// group, so the bus sees subscribe and unsubscribe strictly in membership
// order; refs pins the entry in the shard map while an operation holds ops.
// members and subscribed are guarded by the shard mutex, which is never
// held across a bus call.
type groupEntry struct {
	ops        sync.Mutex
	members    map[string]Member
	subscribed bool
	refs       int
}

type shard struct {
	mu     sync.RWMutex
	groups map[string]*groupEntry
}

// Registry tracks which local connections belong to which group and bridges
// them onto the shared Bus. The membership table is sharded by group key so
// unrelated groups never contend on one lock.
type Registry struct {
	shards [shardCount]shard
	closed atomic.Bool

	bus Bus
	wg  sync.WaitGroup
}

func NewRegistry(bus Bus) *Registry {
	r := &Registry{bus: bus}
	for i := range r.shards {
		r.shards[i].groups = make(map[string]*groupEntry)
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		bus.Run(r.deliverLocal)
	}()
	return r
}

func (r *Registry) shardFor(group string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(group))
	return &r.shards[h.Sum32()%shardCount]
}

// Join adds m to group; the first local member subscribes the group on the
// bus. On subscribe failure only m is rolled back, and the next joiner
// attempts the subscribe itself.
func (r *Registry) Join(group string, m Member) error {
	s := r.shardFor(group)
	s.mu.Lock()
	if r.closed.Load() {
		s.mu.Unlock()
		return ErrRegistryClosed
	}
	e, ok := s.groups[group]
	if !ok {
		e = &groupEntry{members: make(map[string]Member)}
		s.groups[group] = e
	}
	e.refs++
	s.mu.Unlock()

	e.ops.Lock()
	defer func() {
		e.ops.Unlock()
		r.release(s, group, e)
	}()

	s.mu.Lock()
	if r.closed.Load() {
		s.mu.Unlock()
		return ErrRegistryClosed
	}
	e.members[m.ID()] = m
	needSub := !e.subscribed
	s.mu.Unlock()

	if !needSub {
		return nil
	}
	if err := r.bus.Subscribe(group); err != nil {
		s.mu.Lock()
		delete(e.members, m.ID())
		s.mu.Unlock()
		return errors.Wrapf(err, "subscribe %s", group)
	}
	s.mu.Lock()
	e.subscribed = true
	s.mu.Unlock()
	return nil
}

// Leave is idempotent: leaving twice, or a group never joined, is a no-op.
// The last local member unsubscribes the group.
func (r *Registry) Leave(group string, m Member) {
	s := r.shardFor(group)
	s.mu.Lock()
	e, ok := s.groups[group]
	if !ok {
		s.mu.Unlock()
		return
	}
	if _, member := e.members[m.ID()]; !member {
		s.mu.Unlock()
		return
	}
	e.refs++
	s.mu.Unlock()

	e.ops.Lock()
	defer func() {
		e.ops.Unlock()
		r.release(s, group, e)
	}()

	s.mu.Lock()
	delete(e.members, m.ID())
	needUnsub := len(e.members) == 0 && e.subscribed
	s.mu.Unlock()

	if !needUnsub || r.closed.Load() {
		return
	}
	if err := r.bus.Unsubscribe(group); err != nil {
		logger.Warnf("unsubscribe %s: %v", group, err)
	}
	s.mu.Lock()
	e.subscribed = false
	s.mu.Unlock()
}

func (r *Registry) release(s *shard, group string, e *groupEntry) {
	s.mu.Lock()
	e.refs--
	if e.refs == 0 && len(e.members) == 0 && !e.subscribed && s.groups[group] == e {
		delete(s.groups, group)
	}
	s.mu.Unlock()
}

// Publish broadcasts payload to every live connection of group, on this
// worker and every other one, via the bus.
func (r *Registry) Publish(ctx context.Context, group string, payload []byte) error {
	if r.closed.Load() {
		return ErrRegistryClosed
	}
	return r.bus.Publish(ctx, group, payload)
}

// LocalCount reports how many local members a group has.
func (r *Registry) LocalCount(group string) int {
	s := r.shardFor(group)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e := s.groups[group]; e != nil {
		return len(e.members)
	}
	return 0
}

func (r *Registry) deliverLocal(group string, payload []byte) {
	s := r.shardFor(group)
	s.mu.RLock()
	var members []Member
	if e := s.groups[group]; e != nil {
		members = make([]Member, 0, len(e.members))
		for _, m := range e.members {
			members = append(members, m)
		}
	}
	s.mu.RUnlock()

	for _, m := range members {
		if !m.Deliver(payload) {
			logger.Warnf("dropped event group=%s member=%s", group, m.ID())
		}
	}
}

// Close tears the registry down: no more joins or publishes, bus closed,
// receive loop drained. Connections are closed by their own gateways.
func (r *Registry) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		s.groups = make(map[string]*groupEntry)
		s.mu.Unlock()
	}
	err := r.bus.Close()
	r.wg.Wait()
	return err
}
