// Package kv provides the key-value store contract the application persists
// through: compound keys, versioned entries, and an atomic multi-key commit
// that only applies when every checked key still has its expected version.
//
// Version 0 means "no value". A commit that checks a key against version 0
// succeeds only if the key is still absent, which is how first-time
// initialization stays race-free without locks.
package kv

import (
	"context"
	"strings"
)

// keySeparator joins key parts. The unit separator cannot appear in emails
// or decimal ids, so compound keys never collide.
const keySeparator = "\x1f"

// Key is a compound store key, e.g. {"accounts", "a@b.co"}.
type Key []string

// K builds a Key from its parts.
func K(parts ...string) Key {
	return Key(parts)
}

func (k Key) String() string {
	return strings.Join(k, keySeparator)
}

// Entry is a stored value together with its version.
type Entry struct {
	Value   []byte
	Version int64
}

// Check asserts a key is still at an expected version at commit time.
// Version 0 asserts the key has no value.
type Check struct {
	Key     Key
	Version int64
}

// Write sets a key to a value as part of a commit.
type Write struct {
	Key   Key
	Value []byte
}

// Store is the persistence contract. Get returns (nil, nil) for missing
// keys. Set is an unconditional last-write-wins upsert. Commit applies all
// writes if and only if every check holds; it returns (false, nil) when a
// check fails.
type Store interface {
	Get(ctx context.Context, key Key) (*Entry, error)
	Set(ctx context.Context, key Key, value []byte) error
	Commit(ctx context.Context, checks []Check, writes []Write) (bool, error)
}

// Atomic is a fluent builder over Store.Commit.
type Atomic struct {
	store  Store
	checks []Check
	writes []Write
}

// NewAtomic starts an atomic operation against the given store.
func NewAtomic(store Store) *Atomic {
	return &Atomic{store: store}
}

// Check adds a version assertion to the operation.
func (a *Atomic) Check(key Key, version int64) *Atomic {
	a.checks = append(a.checks, Check{Key: key, Version: version})
	return a
}

// Set adds a write to the operation.
func (a *Atomic) Set(key Key, value []byte) *Atomic {
	a.writes = append(a.writes, Write{Key: key, Value: value})
	return a
}

// Commit runs the operation. It reports false when a check failed and the
// writes were discarded.
func (a *Atomic) Commit(ctx context.Context) (bool, error) {
	return a.store.Commit(ctx, a.checks, a.writes)
}
