package store

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is the in-process backend: a JSON document tree with
// per-entity revision counters for optimistic transactions and ordered
// asynchronous snapshot delivery to subscribers. It is the default
// backend and the one the tests run against.
type MemoryStore struct {
	mu   sync.Mutex
	root map[string]any
	// revs tracks a revision per entity (the first two path segments,
	// e.g. "lobbies/HX3K"); bumped on any write beneath it.
	revs map[string]uint64

	subMu  sync.Mutex
	subs   map[int]*subscriber
	nextID int
}

type subscriber struct {
	segs []string
	ch   chan json.RawMessage
	stop chan struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		root: map[string]any{},
		revs: map[string]uint64{},
		subs: map[int]*subscriber{},
	}
}

func entityKey(segs []string) string {
	if len(segs) >= 2 {
		return segs[0] + "/" + segs[1]
	}
	if len(segs) == 1 {
		return segs[0]
	}
	return ""
}

// Get decodes the value at path into dest.
func (s *MemoryStore) Get(ctx context.Context, path string, dest any) error {
	s.mu.Lock()
	node, ok := navigate(s.root, splitPath(path))
	var raw []byte
	var err error
	if ok {
		raw, err = json.Marshal(node)
	}
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Set replaces the value at path and notifies subscribers.
func (s *MemoryStore) Set(ctx context.Context, path string, value any) error {
	tree, err := decode(value)
	if err != nil {
		return err
	}
	segs := splitPath(path)
	s.mu.Lock()
	setAt(s.root, segs, tree)
	s.revs[entityKey(segs)]++
	s.mu.Unlock()
	s.notify(segs)
	return nil
}

// Update applies a multi-path merge atomically.
func (s *MemoryStore) Update(ctx context.Context, path string, children map[string]any) error {
	base := splitPath(path)
	decoded := make(map[string]any, len(children))
	for rel, v := range children {
		tree, err := decode(v)
		if err != nil {
			return err
		}
		decoded[rel] = tree
	}
	s.mu.Lock()
	for rel, tree := range decoded {
		setAt(s.root, append(append([]string{}, base...), splitPath(rel)...), tree)
	}
	s.revs[entityKey(base)]++
	s.mu.Unlock()
	s.notify(base)
	return nil
}

// Transaction runs fn under optimistic concurrency: the entity revision
// observed at read time must still hold at write time, or the whole
// attempt is discarded and retried against the fresh value.
func (s *MemoryStore) Transaction(ctx context.Context, path string, fn TxFunc) error {
	segs := splitPath(path)
	ent := entityKey(segs)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.Lock()
		rev := s.revs[ent]
		node, ok := navigate(s.root, segs)
		var current json.RawMessage
		if ok {
			raw, err := json.Marshal(node)
			if err != nil {
				s.mu.Unlock()
				return err
			}
			current = raw
		}
		s.mu.Unlock()

		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		tree, err := decode(next)
		if err != nil {
			return err
		}

		s.mu.Lock()
		if s.revs[ent] != rev {
			s.mu.Unlock()
			continue // lost the race, retry against fresh state
		}
		setAt(s.root, segs, tree)
		s.revs[ent]++
		s.mu.Unlock()
		s.notify(segs)
		return nil
	}
}

// Remove deletes the subtree at path.
func (s *MemoryStore) Remove(ctx context.Context, path string) error {
	segs := splitPath(path)
	s.mu.Lock()
	deleteAt(s.root, segs)
	s.revs[entityKey(segs)]++
	s.mu.Unlock()
	s.notify(segs)
	return nil
}

// Subscribe registers a snapshot callback for changes under path. The
// callback runs on its own goroutine in delivery order; when it falls
// behind, intermediate snapshots are dropped (every delivery is a full
// snapshot, so only the latest matters).
func (s *MemoryStore) Subscribe(path string, fn func(snapshot json.RawMessage)) func() {
	sub := &subscriber{
		segs: splitPath(path),
		ch:   make(chan json.RawMessage, 16),
		stop: make(chan struct{}),
	}
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	s.subMu.Unlock()

	go func() {
		for {
			select {
			case snap := <-sub.ch:
				fn(snap)
			case <-sub.stop:
				return
			}
		}
	}()

	// Initial snapshot, matching the push-on-subscribe behavior clients
	// are written against.
	s.push(sub)

	return func() {
		s.subMu.Lock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub.stop)
		}
		s.subMu.Unlock()
	}
}

func (s *MemoryStore) notify(changed []string) {
	s.subMu.Lock()
	targets := make([]*subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		if isPrefix(sub.segs, changed) {
			targets = append(targets, sub)
		}
	}
	s.subMu.Unlock()
	for _, sub := range targets {
		s.push(sub)
	}
}

func (s *MemoryStore) push(sub *subscriber) {
	s.mu.Lock()
	node, ok := navigate(s.root, sub.segs)
	var raw json.RawMessage
	if ok {
		raw, _ = json.Marshal(node)
	}
	s.mu.Unlock()
	select {
	case sub.ch <- raw:
	default:
		// Drain one stale snapshot and replace it with the newest.
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- raw:
		default:
		}
	}
}
