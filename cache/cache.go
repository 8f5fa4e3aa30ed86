// Package cache memoizes expensive lookups, regenerating a value whenever the
// caller presents a different stamp for its key.
package cache

import (
	"sync"
)

type GenFunc[S comparable, V any] func() (V, S, error)

type cacheValue[S comparable, V any] struct {
	mu    sync.Mutex
	stamp S
	valid bool
	data  V
}

type Cache[K, S comparable, V any] struct {
	mu    sync.Mutex
	store map[K]*cacheValue[S, V]
}

func New[K, S comparable, V any]() *Cache[K, S, V] {
	return &Cache[K, S, V]{
		store: make(map[K]*cacheValue[S, V]),
	}
}

// Get returns the value stored for key if it was generated with stamp.
// Otherwise genfn is called while holding the key's lock, so concurrent
// callers for the same key generate once. Failed generations aren't kept.
func (me *Cache[K, S, V]) Get(key K, stamp S, genfn GenFunc[S, V]) (data V, err error) {
	me.mu.Lock()
	val, ok := me.store[key]
	if !ok {
		val = &cacheValue[S, V]{}
		me.store[key] = val
	}
	me.mu.Unlock()
	val.mu.Lock()
	defer val.mu.Unlock()
	if val.valid && val.stamp == stamp {
		return val.data, nil
	}
	data, stamp, err = genfn()
	if err != nil {
		var zero V
		val.data, val.valid = zero, false
		return
	}
	val.data, val.stamp, val.valid = data, stamp, true
	return
}

// Len is the number of keys with a valid value.
func (me *Cache[K, S, V]) Len() (n int) {
	me.mu.Lock()
	vals := make([]*cacheValue[S, V], 0, len(me.store))
	for _, v := range me.store {
		vals = append(vals, v)
	}
	me.mu.Unlock()
	for _, v := range vals {
		v.mu.Lock()
		if v.valid {
			n++
		}
		v.mu.Unlock()
	}
	return
}
