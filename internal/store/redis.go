package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one JSON document per entity (the first two path
// segments) and publishes the full document on a per-entity channel after
// every write. Transactions use WATCH-based optimistic locking, so two
// concurrent writers to the same entity serialize exactly like the
// MemoryStore's revision check.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	maxRetry  int
}

// NewRedisStore connects a store to an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:    client,
		keyPrefix: "bth:",
		maxRetry:  64,
	}
}

func (s *RedisStore) docKey(ent string) string  { return s.keyPrefix + "doc:" + ent }
func (s *RedisStore) chanKey(ent string) string { return s.keyPrefix + "chg:" + ent }

// readDoc fetches and decodes the entity document. A missing key yields
// an empty tree with exists false, so callers can tell an absent entity
// apart from an empty one.
func (s *RedisStore) readDoc(ctx context.Context, tx redis.Cmdable, ent string) (map[string]any, bool, error) {
	raw, err := tx.Get(ctx, s.docKey(ent)).Result()
	if err == redis.Nil {
		return map[string]any{}, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	doc := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, false, fmt.Errorf("corrupt document at %s: %w", ent, err)
	}
	return doc, true, nil
}

func (s *RedisStore) writeDoc(ctx context.Context, pipe redis.Cmdable, ent string, doc map[string]any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	pipe.Set(ctx, s.docKey(ent), raw, 0)
	pipe.Publish(ctx, s.chanKey(ent), raw)
	return nil
}

// mutate runs fn against the entity document under WATCH and retries on
// contention.
func (s *RedisStore) mutate(ctx context.Context, ent string, fn func(doc map[string]any, exists bool) (map[string]any, error)) error {
	for i := 0; i < s.maxRetry; i++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			doc, exists, err := s.readDoc(ctx, tx, ent)
			if err != nil {
				return err
			}
			next, err := fn(doc, exists)
			if err != nil {
				return err
			}
			if next == nil {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				return s.writeDoc(ctx, pipe, ent, next)
			})
			return err
		}, s.docKey(ent))
		if err == redis.TxFailedErr {
			continue
		}
		return err
	}
	return fmt.Errorf("transaction on %s exhausted %d retries", ent, s.maxRetry)
}

// Get decodes the value at path into dest.
func (s *RedisStore) Get(ctx context.Context, path string, dest any) error {
	segs := splitPath(path)
	doc, exists, err := s.readDoc(ctx, s.client, entityKey(segs))
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	node, ok := navigate(map[string]any(doc), segsWithinEntity(segs))
	if !ok {
		return ErrNotFound
	}
	raw, err := json.Marshal(node)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Set replaces the value at path.
func (s *RedisStore) Set(ctx context.Context, path string, value any) error {
	segs := splitPath(path)
	tree, err := decode(value)
	if err != nil {
		return err
	}
	return s.mutate(ctx, entityKey(segs), func(doc map[string]any, _ bool) (map[string]any, error) {
		return replaceWithin(doc, segsWithinEntity(segs), tree)
	})
}

// Update applies a multi-path merge atomically.
func (s *RedisStore) Update(ctx context.Context, path string, children map[string]any) error {
	base := splitPath(path)
	decoded := make(map[string]any, len(children))
	for rel, v := range children {
		tree, err := decode(v)
		if err != nil {
			return err
		}
		decoded[rel] = tree
	}
	within := segsWithinEntity(base)
	return s.mutate(ctx, entityKey(base), func(doc map[string]any, _ bool) (map[string]any, error) {
		for rel, tree := range decoded {
			segs := append(append([]string{}, within...), splitPath(rel)...)
			var err error
			if doc, err = replaceWithin(doc, segs, tree); err != nil {
				return nil, err
			}
		}
		return doc, nil
	})
}

// Transaction runs fn against the current value at path with WATCH-based
// compare-and-swap semantics. An absent entity hands fn a nil current,
// matching the MemoryStore contract.
func (s *RedisStore) Transaction(ctx context.Context, path string, fn TxFunc) error {
	segs := splitPath(path)
	return s.mutate(ctx, entityKey(segs), func(doc map[string]any, exists bool) (map[string]any, error) {
		var current json.RawMessage
		if exists {
			if node, ok := navigate(map[string]any(doc), segsWithinEntity(segs)); ok {
				raw, err := json.Marshal(node)
				if err != nil {
					return nil, err
				}
				current = raw
			}
		}
		next, err := fn(current)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, nil
		}
		tree, err := decode(next)
		if err != nil {
			return nil, err
		}
		return replaceWithin(doc, segsWithinEntity(segs), tree)
	})
}

// Remove deletes the subtree at path; removing a whole entity drops its
// document key.
func (s *RedisStore) Remove(ctx context.Context, path string) error {
	segs := splitPath(path)
	ent := entityKey(segs)
	if len(segs) <= 2 {
		if err := s.client.Del(ctx, s.docKey(ent)).Err(); err != nil {
			return err
		}
		return s.client.Publish(ctx, s.chanKey(ent), "{}").Err()
	}
	return s.mutate(ctx, ent, func(doc map[string]any, _ bool) (map[string]any, error) {
		deleteAt(doc, segsWithinEntity(segs))
		return doc, nil
	})
}

// Subscribe listens on the entity's pub/sub channel and pushes the
// requested subtree on every published document.
func (s *RedisStore) Subscribe(path string, fn func(snapshot json.RawMessage)) func() {
	segs := splitPath(path)
	ent := entityKey(segs)
	within := segsWithinEntity(segs)

	ctx, cancel := context.WithCancel(context.Background())
	pubsub := s.client.Subscribe(ctx, s.chanKey(ent))

	deliver := func(raw []byte) {
		doc := map[string]any{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return
		}
		node, ok := navigate(map[string]any(doc), within)
		if !ok {
			fn(nil)
			return
		}
		snap, err := json.Marshal(node)
		if err != nil {
			return
		}
		fn(snap)
	}

	go func() {
		// Initial snapshot so a late joiner sees current state.
		initCtx, done := context.WithTimeout(ctx, 5*time.Second)
		if doc, exists, err := s.readDoc(initCtx, s.client, ent); err == nil && exists {
			if raw, err := json.Marshal(doc); err == nil {
				deliver(raw)
			}
		}
		done()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				deliver([]byte(msg.Payload))
			}
		}
	}()

	return func() {
		cancel()
		_ = pubsub.Close()
	}
}

// replaceWithin writes a decoded value into the entity document at the
// relative segments; empty segments replace the whole document.
func replaceWithin(doc map[string]any, within []string, tree any) (map[string]any, error) {
	if len(within) == 0 {
		m, ok := tree.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("entity root must be an object")
		}
		return m, nil
	}
	setAt(doc, within, tree)
	return doc, nil
}

// segsWithinEntity strips the entity segments off a full path.
func segsWithinEntity(segs []string) []string {
	if len(segs) <= 2 {
		return nil
	}
	return segs[2:]
}
