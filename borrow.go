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

import "unsafe"

// Borrowed is implemented by probe types that can present a view of a key
// of type K without constructing an owned copy. The view is only used for
// the duration of a lookup and is never retained by the Map, so it may alias
// memory the caller continues to own.
type Borrowed[K any] interface {
	Borrow() K
}

// Bytes is a byte slice that can be used to probe a Map with string keys
// without allocating a string.
type Bytes []byte

// Borrow returns a string sharing the memory of b.
func (b Bytes) Borrow() string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// GetAs is like Map.Get but accepts a borrowed probe.
func GetAs[K comparable, V any, Q Borrowed[K]](m *Map[K, V], probe Q) (value V, ok bool) {
	return m.Get(probe.Borrow())
}

// GetKeyValueAs is like Map.GetKeyValue but accepts a borrowed probe. The
// returned key is the one stored in the map, not the probe.
func GetKeyValueAs[K comparable, V any, Q Borrowed[K]](
	m *Map[K, V], probe Q,
) (key K, value V, ok bool) {
	return m.GetKeyValue(probe.Borrow())
}

// ContainsAs is like Map.Contains but accepts a borrowed probe.
func ContainsAs[K comparable, V any, Q Borrowed[K]](m *Map[K, V], probe Q) bool {
	return m.Contains(probe.Borrow())
}

// DeleteAs is like Map.DeleteEntry but accepts a borrowed probe. The
// returned key is the one that was stored in the map.
func DeleteAs[K comparable, V any, Q Borrowed[K]](
	m *Map[K, V], probe Q,
) (key K, value V, ok bool) {
	return m.DeleteEntry(probe.Borrow())
}
