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

// option provide an interface to do work on Map while it is being created.
type option[K comparable, V any] interface {
	apply(m *Map[K, V])
}

type hashOption[K comparable, V any] struct {
	hash HashFunc[K]
}

func (op hashOption[K, V]) apply(m *Map[K, V]) {
	m.hash = op.hash
}

// WithHash is an option to specify the hash function to use for a Map[K,V].
// The hash function must be deterministic for a given key and seed, and keys
// that compare equal must hash equally.
func WithHash[K comparable, V any](hash HashFunc[K]) option[K, V] {
	return hashOption[K, V]{hash}
}

type seedOption[K comparable, V any] struct {
	seed uint64
}

func (op seedOption[K, V]) apply(m *Map[K, V]) {
	m.seed = op.seed
}

// WithSeed is an option to fix the seed passed to the hash function. By
// default each Map uses a randomly generated seed. Combined with a seeded
// hash function such as WyhashString, a fixed seed makes bucket placement
// reproducible.
func WithSeed[K comparable, V any](seed uint64) option[K, V] {
	return seedOption[K, V]{seed}
}

// Allocator specifies an interface for allocating and releasing the bucket
// arrays used by a Map. The default allocator utilizes Go's builtin make()
// and allows the GC to reclaim memory.
//
// If the allocator is manually managing memory and requires that bucket
// arrays be freed then Map.Close must be called in order to ensure
// FreeBuckets is called for the final array.
type Allocator[K comparable, V any] interface {
	// AllocBuckets should return a slice equivalent to
	// make([]Bucket[K,V], n). Every bucket must be the zero value.
	AllocBuckets(n int) []Bucket[K, V]

	// FreeBuckets can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocBuckets. Every bucket in the slice has been emptied.
	FreeBuckets(v []Bucket[K, V])
}

type defaultAllocator[K comparable, V any] struct{}

func (defaultAllocator[K, V]) AllocBuckets(n int) []Bucket[K, V] {
	return make([]Bucket[K, V], n)
}

func (defaultAllocator[K, V]) FreeBuckets(v []Bucket[K, V]) {
}

type allocatorOption[K comparable, V any] struct {
	allocator Allocator[K, V]
}

func (op allocatorOption[K, V]) apply(m *Map[K, V]) {
	m.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a Map[K,V].
func WithAllocator[K comparable, V any](allocator Allocator[K, V]) option[K, V] {
	return allocatorOption[K, V]{allocator}
}

type promotionThresholdOption[K comparable, V any] struct {
	threshold int
}

func (op promotionThresholdOption[K, V]) apply(m *Map[K, V]) {
	if op.threshold < 0 {
		panic(fmt.Sprintf("invalid promotion threshold %d", op.threshold))
	}
	m.promotionThreshold = op.threshold
}

// WithPromotionThreshold is an option to specify the chain length a bucket
// may reach before it is rebuilt as a search tree. A chain holding more than
// threshold entries is promoted. A threshold of 0 makes every non-empty
// bucket a tree.
func WithPromotionThreshold[K comparable, V any](threshold int) option[K, V] {
	return promotionThresholdOption[K, V]{threshold}
}
