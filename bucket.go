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

package hashtree

import "fmt"

// entry holds a key and value along with the hash of the key. The hash is
// computed once at insertion and reused when descending a tree bucket and
// when redistributing entries during resize.
type entry[K comparable, V any] struct {
	hash  uint64
	key   K
	value V
}

type bucketKind uint8

const (
	bucketEmpty bucketKind = iota
	bucketList
	bucketTree
)

func (k bucketKind) String() string {
	switch k {
	case bucketEmpty:
		return "empty"
	case bucketList:
		return "list"
	case bucketTree:
		return "tree"
	default:
		return fmt.Sprintf("bucketKind(%d)", uint8(k))
	}
}

// Bucket is a single slot of a Map's bucket array. The zero value is an empty
// bucket. Bucket is exported only so that an Allocator can provide the
// memory for the bucket array; its contents are opaque.
//
// A bucket is in exactly one of three states: empty, a chain (list) or a
// search tree. At most one of list and tree is populated, selected by kind.
// A chain is promoted to a tree once it holds more than the map's promotion
// threshold entries. A tree is never demoted back to a chain; it stays a
// tree until its last entry is removed.
type Bucket[K comparable, V any] struct {
	kind bucketKind
	list list[K, V]
	tree tree[K, V]
}

func (b *Bucket[K, V]) len() int {
	switch b.kind {
	case bucketList:
		return b.list.len
	case bucketTree:
		return b.tree.len
	}
	return 0
}

func (b *Bucket[K, V]) get(h uint64, key K) *entry[K, V] {
	switch b.kind {
	case bucketList:
		return b.list.get(h, key)
	case bucketTree:
		return b.tree.get(h, key)
	}
	return nil
}

// put inserts or overwrites the entry for key. An empty bucket becomes a
// chain, and a chain longer than threshold is promoted to a tree.
func (b *Bucket[K, V]) put(h uint64, key K, value V, threshold int) (old V, replaced bool) {
	switch b.kind {
	case bucketEmpty:
		b.kind = bucketList
		b.list.uncheckedPut(entry[K, V]{hash: h, key: key, value: value})
	case bucketList:
		if old, replaced = b.list.put(h, key, value); replaced {
			return old, true
		}
	case bucketTree:
		return b.tree.put(h, key, value)
	}
	b.maybePromote(threshold)
	return old, false
}

// uncheckedPut inserts an entry known not to be in the bucket. Used when
// redistributing entries during resize.
func (b *Bucket[K, V]) uncheckedPut(e entry[K, V], threshold int) {
	switch b.kind {
	case bucketEmpty:
		b.kind = bucketList
		fallthrough
	case bucketList:
		b.list.uncheckedPut(e)
		b.maybePromote(threshold)
	case bucketTree:
		b.tree.uncheckedPut(e)
	}
}

func (b *Bucket[K, V]) maybePromote(threshold int) {
	if b.kind == bucketList && b.list.len > threshold {
		b.promote()
	}
}

// promote rebuilds a chain as a balanced search tree.
func (b *Bucket[K, V]) promote() {
	if debug {
		fmt.Printf("promote: len=%d\n", b.list.len)
	}
	b.kind = bucketTree
	b.list.drain(func(e entry[K, V]) bool {
		b.tree.uncheckedPut(e)
		return true
	})
}

// remove removes the entry for key, returning it and ok=true if it was
// present. A bucket whose last entry is removed reverts to empty.
func (b *Bucket[K, V]) remove(h uint64, key K) (e entry[K, V], ok bool) {
	switch b.kind {
	case bucketList:
		e, ok = b.list.remove(h, key)
		if b.list.empty() {
			*b = Bucket[K, V]{}
		}
	case bucketTree:
		e, ok = b.tree.remove(h, key)
		if b.tree.empty() {
			*b = Bucket[K, V]{}
		}
	}
	return e, ok
}

func (b *Bucket[K, V]) all(yield func(e *entry[K, V]) bool) bool {
	switch b.kind {
	case bucketList:
		return b.list.all(yield)
	case bucketTree:
		return b.tree.all(yield)
	}
	return true
}

// drain hands every entry to yield and leaves the bucket empty. If yield
// returns false the remaining entries are discarded.
func (b *Bucket[K, V]) drain(yield func(e entry[K, V]) bool) bool {
	kind := b.kind
	b.kind = bucketEmpty
	switch kind {
	case bucketList:
		return b.list.drain(yield)
	case bucketTree:
		return b.tree.drain(yield)
	}
	return true
}
