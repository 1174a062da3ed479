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

package densemap

import (
	"hash/maphash"
	"math/bits"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/constraints"
)

// hashFn computes a 64-bit hash of the key pointed to by key. The seed is
// fixed for the lifetime of a map, including across resizes.
type hashFn[K comparable] func(key *K, seed maphash.Seed) uint64

// Constants for the finalizing mix. The multiplier is the 64-bit golden
// ratio; the xor constant is odd so that a zero hash does not stay zero.
const (
	mixMul = 0x9e3779b97f4a7c15
	mixXor = 0xa0761d6478bd642f
)

// mix finalizes a low-entropy hash (e.g. the identity hash of a small
// integer) by folding a 128-bit product of the hash into 64 bits.
func mix(h uint64) uint64 {
	hi, lo := bits.Mul64(h^mixXor, mixMul)
	return hi ^ lo
}

// Each slot carries a 64-bit tag. The low bit is the occupancy flag and the
// remaining 63 bits are the fingerprint of the key's hash:
//
//	occupied: h h h ... h h 1   // h are the upper 63 bits of hash(key)
//	   empty: ? ? ? ... ? ? 0
const tagFull = 1

// fingerprint extracts the comparable portion of a hash or of a tag.
func fingerprint(h uint64) uint64 {
	return h >> 1
}

// makeTag returns the occupied tag for hash h.
func makeTag(h uint64) uint64 {
	return fingerprint(h)<<1 | tagFull
}

func isFull(tag uint64) bool {
	return tag&tagFull != 0
}

func defaultHash[K comparable](key *K, seed maphash.Seed) uint64 {
	return maphash.Comparable(seed, *key)
}

// IdentityHash hashes an integer key to itself. It is the cheapest possible
// hash and is only suitable for keys that are already well distributed, or
// in combination with WithHashMixing.
func IdentityHash[K constraints.Integer](key *K, _ maphash.Seed) uint64 {
	return uint64(*key)
}

// StringHash hashes string keys with xxHash64. The seed is ignored, making
// the hash stable across maps and processes.
func StringHash(key *string, _ maphash.Seed) uint64 {
	return xxhash.Sum64String(*key)
}
