// Copyright 2026 CUE Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package par implements memoization primitives shared by the loader.
package par

import (
	"sync"
	"sync/atomic"
)

// Cache runs an action once per key and caches the result.
// Once a key has a result it is never replaced, so
// the first successful Do for a key determines its value for the
// lifetime of the cache.
type Cache[K comparable, V any] struct {
	m sync.Map
}

type cacheEntry[V any] struct {
	done   atomic.Bool
	mu     sync.Mutex
	result V
}

// Do calls the function f if and only if Do is being called for the first time with this key.
// No call to Do with a given key returns until the one call to f returns.
// Do returns the value returned by the one call to f.
func (c *Cache[K, V]) Do(key K, f func() V) V {
	entryIface, ok := c.m.Load(key)
	if !ok {
		entryIface, _ = c.m.LoadOrStore(key, new(cacheEntry[V]))
	}
	e := entryIface.(*cacheEntry[V])
	if !e.done.Load() {
		e.mu.Lock()
		if !e.done.Load() {
			e.result = f()
			e.done.Store(true)
		}
		e.mu.Unlock()
	}
	return e.result
}

// Get returns the cached result associated with key
// and reports whether there is such a result.
//
// If the result for key is being computed, Get does not wait for the computation to finish.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	entryIface, ok := c.m.Load(key)
	if !ok {
		return zero[V](), false
	}
	e := entryIface.(*cacheEntry[V])
	if !e.done.Load() {
		return zero[V](), false
	}
	return e.result, true
}

// Range calls f for every completed entry in the cache,
// stopping early if f returns false.
// Entries still being computed are skipped.
func (c *Cache[K, V]) Range(f func(key K, v V) bool) {
	c.m.Range(func(k, entryIface any) bool {
		e := entryIface.(*cacheEntry[V])
		if !e.done.Load() {
			return true
		}
		return f(k.(K), e.result)
	})
}

func zero[V any]() V {
	var v V
	return v
}
