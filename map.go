// Copyright 2024 The Cockroach Authors
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

// Package hashtree is a Go implementation of a separately chained hash table
// whose buckets are promoted from linked lists to balanced search trees when
// they grow large, in the spirit of the tree bins used by Java's HashMap.
//
// # Buckets
//
// A Map is an array of buckets whose length is always a power of two. The
// bucket for a key is selected by masking the low bits of hash(key):
//
//	index = hash & (capacity - 1)
//
// Each bucket is either empty, a singly linked chain of entries, or an AVL
// tree of entries ordered by hash. A bucket starts out empty, becomes a chain
// on its first insertion and is promoted to a tree once the chain holds more
// than the promotion threshold (8 by default) entries. Promotion is one way:
// a tree bucket remains a tree until its last entry is removed, at which
// point it reverts to empty.
//
//	 buckets (capacity=4)
//	+---+
//	| 0 | --> empty
//	+---+
//	| 1 | --> [k3] -> [k7] -> [k1]
//	+---+
//	| 2 | -->        [k6]
//	+---+           /    \
//	| 3 |       [k2]      [k10]
//	+---+       /   \
//	         [k4]   [k8]
//
// Chains are cheap for the common case of a handful of entries per bucket.
// Trees bound the cost of an operation on a bucket to O(log n) comparisons
// when many keys collide, whether because of a poor hash function or an
// adversarial choice of keys.
//
// Every entry caches the hash of its key. The cached hash orders tree
// buckets, filters candidates before keys are compared, and lets a resize
// redistribute entries without rehashing any key.
//
// # Growth
//
// A Map grows when an insertion brings the number of entries to at least
// 3/4 of the number of buckets. Growth doubles the bucket array and
// reinserts every entry at the index computed from its cached hash. Chains
// that end up longer than the promotion threshold in the new array are
// promoted as they are rebuilt. Maps never shrink.
//
// # Hashing
//
// By default a Map uses the same hash function as Go's builtin map[K]V,
// combined with a random per-Map seed. A different hash function and a fixed
// seed can be supplied with the WithHash and WithSeed options. The string
// hash functions WyhashString, XXH3String and SipHashString depend only on
// the key and the seed and are suitable for reproducible layouts.
package hashtree

import (
	"fmt"
	"iter"
	"math/bits"
	"strings"
)

const (
	debug = false

	// DefaultCapacity is a reasonable initial capacity for a Map when
	// nothing is known about the number of entries it will hold.
	DefaultCapacity = 16

	defaultPromotionThreshold = 8

	// The maximum average load of a bucket that triggers growth is 3/4.
	// Represent as loadFactorNum/loadFactorDen, to allow integer math.
	loadFactorNum = 3
	loadFactorDen = 4
)

// Map is an unordered map from keys to values with Put, Get, Delete, and All
// operations. See the package documentation for a description of its
// structure.
//
// A Map is NOT goroutine-safe.
type Map[K comparable, V any] struct {
	hash HashFunc[K]
	seed uint64
	// The allocator to use for the bucket array.
	allocator Allocator[K, V]
	// A chain holding more than promotionThreshold entries is promoted to a
	// tree.
	promotionThreshold int
	// buckets has a power of two length.
	buckets []Bucket[K, V]
	// The number of entries across all buckets.
	used int
}

// New constructs a new Map with the specified initial capacity, rounded up
// to a power of two. Capacity is the number of buckets, not the number of
// entries the Map can hold before growing. An initialCapacity of 0 or 1
// results in a single bucket; use DefaultCapacity when there is no better
// estimate.
func New[K comparable, V any](initialCapacity int, options ...option[K, V]) *Map[K, V] {
	m := &Map[K, V]{
		hash:               defaultHash[K](),
		seed:               generateSeed(),
		allocator:          defaultAllocator[K, V]{},
		promotionThreshold: defaultPromotionThreshold,
	}

	for _, op := range options {
		op.apply(m)
	}

	capacity := 1
	if initialCapacity > 1 {
		capacity = 1 << bits.Len(uint(initialCapacity-1))
	}
	m.buckets = m.allocator.AllocBuckets(capacity)

	m.checkInvariants()
	return m
}

// Collect constructs a new Map holding the entries of seq. If seq yields the
// same key more than once the last value wins.
func Collect[K comparable, V any](seq iter.Seq2[K, V], options ...option[K, V]) *Map[K, V] {
	m := New[K, V](DefaultCapacity, options...)
	m.Extend(seq)
	return m
}

// Extend puts every entry of seq into the map.
func (m *Map[K, V]) Extend(seq iter.Seq2[K, V]) {
	for k, v := range seq {
		m.Put(k, v)
	}
}

// Close closes the map, releasing the bucket array back to its configured
// allocator. It is unnecessary to close a map using the default allocator.
// It is invalid to use a Map after it has been closed, though Close itself
// is idempotent.
func (m *Map[K, V]) Close() {
	if m.buckets != nil {
		clear(m.buckets)
		m.allocator.FreeBuckets(m.buckets)
		m.buckets = nil
		m.used = 0
	}
	m.allocator = nil
}

// Put inserts an entry into the map, overwriting an existing value if an
// entry with the same key already exists. If the key was already present
// the previous value is returned with replaced=true.
func (m *Map[K, V]) Put(key K, value V) (old V, replaced bool) {
	h := m.hash(key, m.seed)
	i := m.index(h)
	if debug {
		fmt.Printf("put(%v): hash=%016x index=%d kind=%s\n", key, h, i, m.buckets[i].kind)
	}

	old, replaced = m.buckets[i].put(h, key, value, m.promotionThreshold)
	if !replaced {
		m.used++
		if m.used*loadFactorDen >= len(m.buckets)*loadFactorNum {
			m.resize()
		}
	}
	m.checkInvariants()
	return old, replaced
}

// Get retrieves the value from the map for the specified key, return ok=false
// if the key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	if e := m.find(key); e != nil {
		return e.value, true
	}
	return value, false
}

// GetPtr returns a pointer to the value stored for key, or nil if the key is
// not present. The value may be modified through the pointer. The pointer is
// only valid until the next call to a method that mutates the map.
func (m *Map[K, V]) GetPtr(key K) *V {
	if e := m.find(key); e != nil {
		return &e.value
	}
	return nil
}

// GetKeyValue retrieves the stored key and value for the specified key,
// returning ok=false if the key is not present.
func (m *Map[K, V]) GetKeyValue(key K) (storedKey K, value V, ok bool) {
	if e := m.find(key); e != nil {
		return e.key, e.value, true
	}
	return storedKey, value, false
}

// Contains returns true if the map holds an entry for key.
func (m *Map[K, V]) Contains(key K) bool {
	return m.find(key) != nil
}

func (m *Map[K, V]) find(key K) *entry[K, V] {
	h := m.hash(key, m.seed)
	i := m.index(h)
	e := m.buckets[i].get(h, key)
	if debug {
		fmt.Printf("get(%v): hash=%016x index=%d kind=%s found=%t\n",
			key, h, i, m.buckets[i].kind, e != nil)
	}
	return e
}

// Delete deletes the entry corresponding to the specified key from the map,
// returning the deleted value. It is a noop to delete a non-existent key.
func (m *Map[K, V]) Delete(key K) (value V, ok bool) {
	_, value, ok = m.DeleteEntry(key)
	return value, ok
}

// DeleteEntry is like Delete but also returns the key that was stored in the
// map.
func (m *Map[K, V]) DeleteEntry(key K) (storedKey K, value V, ok bool) {
	h := m.hash(key, m.seed)
	i := m.index(h)
	e, ok := m.buckets[i].remove(h, key)
	if debug {
		fmt.Printf("delete(%v): hash=%016x index=%d kind=%s found=%t\n",
			key, h, i, m.buckets[i].kind, ok)
	}
	if ok {
		m.used--
	}
	m.checkInvariants()
	return e.key, e.value, ok
}

// All calls yield sequentially for each key and value present in the map. If
// yield returns false, iteration stops. Iteration order is unspecified. The
// map must not be mutated during iteration.
//
//	for k, v := range m.All {
//	  fmt.Printf("%v: %v\n", k, v)
//	}
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	for i := range m.buckets {
		if !m.buckets[i].all(func(e *entry[K, V]) bool {
			return yield(e.key, e.value)
		}) {
			return
		}
	}
}

// Keys returns an iterator over the keys in the map.
func (m *Map[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		m.All(func(k K, _ V) bool {
			return yield(k)
		})
	}
}

// Values returns an iterator over the values in the map.
func (m *Map[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		m.All(func(_ K, v V) bool {
			return yield(v)
		})
	}
}

// Drain removes every entry from the map, calling yield for each removed key
// and value. Each entry is yielded exactly once. The map is empty as soon as
// Drain begins and may be reused, including from within yield. If yield
// returns false, the remaining entries are discarded. The capacity of the
// map is retained.
func (m *Map[K, V]) Drain(yield func(key K, value V) bool) {
	buckets := m.buckets
	m.buckets = m.allocator.AllocBuckets(len(buckets))
	m.used = 0

	for i := range buckets {
		if !buckets[i].drain(func(e entry[K, V]) bool {
			return yield(e.key, e.value)
		}) {
			break
		}
	}
	clear(buckets)
	m.allocator.FreeBuckets(buckets)
	m.checkInvariants()
}

// Clear deletes all entries from the map resulting in an empty map. The
// capacity of the map is retained.
func (m *Map[K, V]) Clear() {
	clear(m.buckets)
	m.used = 0
	m.checkInvariants()
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.used
}

// IsEmpty returns true if the map holds no entries.
func (m *Map[K, V]) IsEmpty() bool {
	return m.used == 0
}

// capacity returns the number of buckets.
func (m *Map[K, V]) capacity() int {
	return len(m.buckets)
}

// index returns the index of the bucket corresponding to hash value h.
func (m *Map[K, V]) index(h uint64) uint64 {
	return h & uint64(len(m.buckets)-1)
}

// resize doubles the number of buckets.
func (m *Map[K, V]) resize() {
	m.rehash(2 * len(m.buckets))
}

// rehash moves every entry into a new bucket array of newCapacity buckets,
// placing each at the index computed from its cached hash. Entries are known
// to be distinct so no equality checks are performed, and the load factor is
// not consulted while entries are being moved.
func (m *Map[K, V]) rehash(newCapacity int) {
	oldBuckets := m.buckets
	if debug {
		fmt.Printf("rehash: capacity=%d->%d used=%d\n", len(oldBuckets), newCapacity, m.used)
	}

	m.buckets = m.allocator.AllocBuckets(newCapacity)
	for i := range oldBuckets {
		oldBuckets[i].drain(func(e entry[K, V]) bool {
			m.buckets[m.index(e.hash)].uncheckedPut(e, m.promotionThreshold)
			return true
		})
	}
	m.allocator.FreeBuckets(oldBuckets)
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		m.validate()
	}
}

// validate panics if the map's structural invariants do not hold.
func (m *Map[K, V]) validate() {
	if n := len(m.buckets); n == 0 || n&(n-1) != 0 {
		panic(fmt.Sprintf("invariant failed: capacity %d is not a power of two", n))
	}

	var used int
	for i := range m.buckets {
		b := &m.buckets[i]
		switch b.kind {
		case bucketEmpty:
			if !b.list.empty() || !b.tree.empty() || b.list.len != 0 || b.tree.len != 0 {
				panic(fmt.Sprintf("invariant failed: bucket(%d): empty bucket holds entries\n%s",
					i, b.debugString()))
			}
		case bucketList:
			if !b.tree.empty() || b.tree.len != 0 {
				panic(fmt.Sprintf("invariant failed: bucket(%d): list bucket holds a tree\n%s",
					i, b.debugString()))
			}
			if b.list.empty() {
				panic(fmt.Sprintf("invariant failed: bucket(%d): list bucket is empty", i))
			}
			if b.list.len > m.promotionThreshold {
				panic(fmt.Sprintf("invariant failed: bucket(%d): list length %d exceeds threshold %d\n%s",
					i, b.list.len, m.promotionThreshold, b.debugString()))
			}
		case bucketTree:
			if !b.list.empty() || b.list.len != 0 {
				panic(fmt.Sprintf("invariant failed: bucket(%d): tree bucket holds a list\n%s",
					i, b.debugString()))
			}
			if b.tree.empty() {
				panic(fmt.Sprintf("invariant failed: bucket(%d): tree bucket is empty", i))
			}
			b.tree.root.validate(0, ^uint64(0))
		default:
			panic(fmt.Sprintf("invariant failed: bucket(%d): unknown kind %s", i, b.kind))
		}

		var count int
		seen := make(map[K]struct{}, b.len())
		b.all(func(e *entry[K, V]) bool {
			count++
			if h := m.hash(e.key, m.seed); h != e.hash {
				panic(fmt.Sprintf("invariant failed: bucket(%d): %v cached hash %016x != %016x\n%s",
					i, e.key, e.hash, h, b.debugString()))
			}
			if j := m.index(e.hash); j != uint64(i) {
				panic(fmt.Sprintf("invariant failed: bucket(%d): %v belongs in bucket %d\n%s",
					i, e.key, j, b.debugString()))
			}
			if _, ok := seen[e.key]; ok {
				panic(fmt.Sprintf("invariant failed: bucket(%d): duplicate key %v\n%s",
					i, e.key, b.debugString()))
			}
			seen[e.key] = struct{}{}
			return true
		})
		if count != b.len() {
			panic(fmt.Sprintf("invariant failed: bucket(%d): found %d entries, but length is %d\n%s",
				i, count, b.len(), b.debugString()))
		}
		used += count
	}

	if used != m.used {
		panic(fmt.Sprintf("invariant failed: found %d entries, but used count is %d", used, m.used))
	}
}

// validate checks the subtree rooted at n for order, stored heights and
// balance, requiring every hash to lie within [lo, hi]. It returns the
// height of the subtree.
func (n *treeNode[K, V]) validate(lo, hi uint64) int {
	if n == nil {
		return 0
	}
	if n.hash < lo || n.hash > hi {
		panic(fmt.Sprintf("invariant failed: %v hash %016x outside [%016x, %016x]",
			n.key, n.hash, lo, hi))
	}
	lh := n.left.validate(lo, n.hash)
	rh := n.right.validate(n.hash, hi)
	if h := 1 + max(lh, rh); h != n.height {
		panic(fmt.Sprintf("invariant failed: %v height %d, but stored height is %d",
			n.key, h, n.height))
	}
	if lh-rh > 1 || rh-lh > 1 {
		panic(fmt.Sprintf("invariant failed: %v unbalanced: left=%d right=%d", n.key, lh, rh))
	}
	return n.height
}

func (b *Bucket[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "kind=%s  len=%d\n", b.kind, b.len())
	switch b.kind {
	case bucketList:
		for n := b.list.head; n != nil; n = n.next {
			fmt.Fprintf(&buf, "  %v [hash=%016x]\n", n.key, n.hash)
		}
	case bucketTree:
		b.tree.root.debugString(&buf, 1)
	}
	return buf.String()
}

func (n *treeNode[K, V]) debugString(buf *strings.Builder, depth int) {
	if n == nil {
		return
	}
	n.right.debugString(buf, depth+1)
	fmt.Fprintf(buf, "%s%v [hash=%016x height=%d]\n", strings.Repeat("  ", depth), n.key, n.hash, n.height)
	n.left.debugString(buf, depth+1)
}
