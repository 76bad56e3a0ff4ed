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

import (
	"math/bits"
	"math/rand/v2"
	"unsafe"

	"github.com/dchest/siphash"
	"github.com/dgryski/go-wyhash"
	"github.com/dolthub/maphash"
	"github.com/zeebo/xxh3"
)

// HashFunc computes the 64-bit hash of a key under a seed. Keys which compare
// equal must produce equal hashes for the same seed.
type HashFunc[K any] func(key K, seed uint64) uint64

// defaultHash returns a HashFunc backed by the hash function the Go runtime
// uses for map[K]V. The runtime hasher carries its own random seed, so the
// resulting hashes are only stable for the lifetime of the returned
// function.
func defaultHash[K comparable]() HashFunc[K] {
	h := maphash.NewHasher[K]()
	return func(key K, seed uint64) uint64 {
		return h.Hash(key) ^ seed
	}
}

func generateSeed() uint64 {
	return rand.Uint64()
}

// WyhashString hashes a string key with wyhash. The result depends only on
// the key and seed.
func WyhashString(key string, seed uint64) uint64 {
	return wyhash.Hash(stringBytes(key), seed)
}

// XXH3String hashes a string key with XXH3. The result depends only on the
// key and seed.
func XXH3String(key string, seed uint64) uint64 {
	return xxh3.HashStringSeed(key, seed)
}

// SipHashString hashes a string key with SipHash-2-4, a keyed hash designed
// to resist hash flooding when the seed is kept secret. The 128-bit SipHash
// key is derived from the seed.
func SipHashString(key string, seed uint64) uint64 {
	return siphash.Hash(seed, bits.RotateLeft64(seed, 32)^0x9e3779b97f4a7c15, stringBytes(key))
}

// stringBytes returns the bytes of s without copying. The result must not be
// modified.
func stringBytes(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
