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

type listNode[K comparable, V any] struct {
	entry[K, V]
	next *listNode[K, V]
}

// list is a singly linked chain of entries sharing a bucket. New entries are
// prepended. Scan order is otherwise stable: removal unlinks a node without
// reordering its neighbors.
type list[K comparable, V any] struct {
	head *listNode[K, V]
	len  int
}

func (l *list[K, V]) empty() bool {
	return l.head == nil
}

// get returns the entry for key, or nil if the key is not present in the
// list. The cached hash is compared first as a cheap filter before comparing
// keys.
func (l *list[K, V]) get(h uint64, key K) *entry[K, V] {
	for n := l.head; n != nil; n = n.next {
		if n.hash == h && n.key == key {
			return &n.entry
		}
	}
	return nil
}

// put overwrites the value for key if it is already present, returning the
// previous value and replaced=true. Otherwise a new entry is prepended.
func (l *list[K, V]) put(h uint64, key K, value V) (old V, replaced bool) {
	if e := l.get(h, key); e != nil {
		old, e.value = e.value, value
		return old, true
	}
	l.uncheckedPut(entry[K, V]{hash: h, key: key, value: value})
	return old, false
}

// uncheckedPut prepends an entry known not to be in the list.
func (l *list[K, V]) uncheckedPut(e entry[K, V]) {
	l.head = &listNode[K, V]{entry: e, next: l.head}
	l.len++
}

// remove unlinks the entry for key, returning it and ok=true if it was
// present.
func (l *list[K, V]) remove(h uint64, key K) (e entry[K, V], ok bool) {
	for p := &l.head; *p != nil; p = &(*p).next {
		n := *p
		if n.hash == h && n.key == key {
			*p = n.next
			n.next = nil
			l.len--
			return n.entry, true
		}
	}
	return e, false
}

func (l *list[K, V]) all(yield func(e *entry[K, V]) bool) bool {
	for n := l.head; n != nil; n = n.next {
		if !yield(&n.entry) {
			return false
		}
	}
	return true
}

// drain empties the list, handing each entry to yield in scan order. If
// yield returns false the remaining entries are discarded.
func (l *list[K, V]) drain(yield func(e entry[K, V]) bool) bool {
	n := l.head
	l.head, l.len = nil, 0
	for n != nil {
		next := n.next
		n.next = nil
		if !yield(n.entry) {
			return false
		}
		n = next
	}
	return true
}
