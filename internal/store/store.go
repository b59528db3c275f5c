// Package store abstracts the shared real-time key-path store that all
// game clients read and write through. Paths are hierarchical strings
// ("lobbies/{code}/battle/players/{id}"); every cross-client mutation of
// contended state goes through Transaction, an optimistic compare-and-swap
// retry, never a plain overwrite.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get when nothing exists at the path.
var ErrNotFound = errors.New("store: path not found")

// TxFunc receives the current JSON value at the transacted path (nil when
// absent) and returns the replacement value. Returning (nil, nil) aborts
// the transaction without writing. The function may run more than once.
type TxFunc func(current json.RawMessage) (any, error)

// Store is the key-path contract shared by all backends.
type Store interface {
	// Get decodes the value at path into dest.
	Get(ctx context.Context, path string, dest any) error
	// Set replaces the value at path.
	Set(ctx context.Context, path string, value any) error
	// Update applies a multi-path atomic merge: each key is a path
	// relative to path, written in one step.
	Update(ctx context.Context, path string, children map[string]any) error
	// Transaction runs fn against the current value under optimistic
	// concurrency; on contention it re-reads and retries.
	Transaction(ctx context.Context, path string, fn TxFunc) error
	// Subscribe registers fn for full-snapshot notifications whenever
	// anything under path changes. Deliveries may be redundant; handlers
	// must tolerate duplicate snapshots. Returns an unsubscribe func.
	Subscribe(path string, fn func(snapshot json.RawMessage)) func()
	// Remove deletes the subtree at path.
	Remove(ctx context.Context, path string) error
}

// splitPath normalizes a path into its segments.
func splitPath(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// navigate walks a decoded JSON tree down the segments.
func navigate(node any, segs []string) (any, bool) {
	for _, s := range segs {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok = m[s]
		if !ok {
			return nil, false
		}
	}
	return node, true
}

// setAt writes a decoded value into the tree, creating intermediate maps.
func setAt(root map[string]any, segs []string, value any) {
	for i, s := range segs {
		if i == len(segs)-1 {
			root[s] = value
			return
		}
		next, ok := root[s].(map[string]any)
		if !ok {
			next = map[string]any{}
			root[s] = next
		}
		root = next
	}
}

// deleteAt removes the subtree at segs, if present.
func deleteAt(root map[string]any, segs []string) {
	for i, s := range segs {
		if i == len(segs)-1 {
			delete(root, s)
			return
		}
		next, ok := root[s].(map[string]any)
		if !ok {
			return
		}
		root = next
	}
}

// decode round-trips an arbitrary Go value into a plain JSON tree.
func decode(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// isPrefix reports whether segments a form a path prefix of b or b of a;
// either relation means a write under one touches the other's snapshot.
func isPrefix(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
