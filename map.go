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

// Package densemap is a Go implementation of a dense hash table that
// resolves collisions with a hybrid of direct addressing and chaining
// through a managed overflow pool.
//
// # Layout
//
// A table is a single contiguous array of slots. Each slot holds a key, a
// value, a 64-bit tag and a 32-bit next index. The array is split into two
// regions. The primary region holds the first primary = capacity*ratio slots
// (the ratio defaults to 0.82) and is addressed directly from hash(key). The
// remaining slots form the overflow region which is never addressed from a
// hash: its slots are only reachable by following the next index of another
// slot. The slots reachable from a primary slot form that slot's chain and
// contain exactly the keys which hash to it.
//
// Mapping a hash to a primary slot avoids division: the hash is masked with
// the smallest 2^k-1 that covers [0, primary) and values that land in
// [primary, 2^k) are folded back by subtracting primary.
//
// # Fingerprints
//
// The tag of an occupied slot stores the upper 63 bits of hash(key) with the
// low bit set to mark the slot as occupied. Lookups compare the fingerprint
// before comparing keys so that chain members that merely share a primary
// slot are rejected without a key comparison. For string keys this avoids
// most memory accesses to the key data.
//
// # Insertion and deletion
//
// Insertion walks the chain for the key. If the key is absent, the new entry
// is placed in the primary slot when it is empty, and otherwise in an
// overflow slot which is linked to the end of the chain. Overflow slots are
// handed out from a frontier that advances towards the end of the array,
// and from a free list of overflow slots vacated by deletions. If the table
// would exceed its max load factor, or the overflow region is exhausted,
// the table is resized by the growth multiple and the insertion restarts.
//
// Deleting an overflow slot unlinks it from its chain and appends it to the
// free list. Deleting a primary slot which has a chain moves the next chain
// member into the primary slot and frees the member's overflow slot
// instead, so that the primary slot of a non-empty chain is never vacant and
// the common case of a hit on the primary slot needs a single probe.
//
// # Resizing
//
// A resize allocates a new array and re-inserts every entry in slot order.
// There is no in-place or incremental resize. Any resize invalidates all
// iterators.
//
// # Maps and sets
//
// Map[K,V] and Set[K] share the same engine. A Set is a table whose value
// type is struct{}, so its slots carry no value storage and all value writes
// compile to nothing.
package densemap

import (
	"iter"

	"github.com/cockroachdb/errors"
)

// Map is an unordered map from keys to values. By default, a Map[K,V] hashes
// keys with hash/maphash.Comparable using a per-map random seed, though a
// different hash function can be specified using the WithHash option.
//
// A Map is NOT goroutine-safe.
type Map[K comparable, V any] struct {
	t table[K, V]
}

// New constructs a new Map with the specified initial capacity (the number
// of slots). It returns an error wrapping ErrInvalidArgument if
// initialCapacity < 1 or an option is out of range, and ErrCapacityOverflow
// if initialCapacity cannot be indexed.
func New[K comparable, V any](initialCapacity int, options ...option[K, V]) (*Map[K, V], error) {
	m := &Map[K, V]{}
	if err := m.t.setup(initialCapacity, options); err != nil {
		return nil, err
	}
	return m, nil
}

// Close releases the map's memory back to its configured allocator. It is
// unnecessary to close a map using the default allocator. It is invalid to
// use a Map after it has been closed, though Close itself is idempotent.
func (m *Map[K, V]) Close() {
	m.t.close()
}

// Insert inserts key with value if key is not already present. It returns
// an iterator positioned at the entry for key and whether an insertion took
// place. The value of an existing entry is left unchanged.
func (m *Map[K, V]) Insert(key K, value V) (Iterator[K, V], bool) {
	i, inserted := m.t.emplace(key, value)
	return Iterator[K, V]{t: &m.t, index: i}, inserted
}

// InsertAll inserts every key and value produced by seq, skipping keys that
// are already present.
func (m *Map[K, V]) InsertAll(seq iter.Seq2[K, V]) {
	for k, v := range seq {
		m.t.emplace(k, v)
	}
}

// Emplace inserts key if it is not already present, calling makeValue to
// construct its value. makeValue is not called if key is present. makeValue
// may mutate the map.
func (m *Map[K, V]) Emplace(key K, makeValue func() V) (Iterator[K, V], bool) {
	i, inserted := m.t.claim(key)
	if inserted {
		v := makeValue()
		// makeValue may have resized the map or erased key, so the slot
		// is looked up again.
		i, _ = m.t.claim(key)
		m.t.slots[i].value = v
	}
	return Iterator[K, V]{t: &m.t, index: i}, inserted
}

// InsertOrAssign inserts key with value, overwriting the value of an
// existing entry. It reports whether an insertion took place.
func (m *Map[K, V]) InsertOrAssign(key K, value V) (Iterator[K, V], bool) {
	i, inserted := m.t.claim(key)
	m.t.slots[i].value = value
	return Iterator[K, V]{t: &m.t, index: i}, inserted
}

// Ref returns a pointer to the value for key, inserting the zero value if
// key is absent. The pointer is invalidated by the next mutation of the
// map.
func (m *Map[K, V]) Ref(key K) *V {
	i, _ := m.t.claim(key)
	return &m.t.slots[i].value
}

// Erase removes key from the map and returns the number of entries removed
// (0 or 1).
func (m *Map[K, V]) Erase(key K) int {
	if m.t.erase(key) {
		return 1
	}
	return 0
}

// EraseAt removes the entry at it and returns an iterator to the next entry.
// Erasing the head of a collision chain moves the chain's next entry into
// the erased slot, and the returned iterator is positioned at it, so
// erasing while iterating visits every remaining entry exactly once.
func (m *Map[K, V]) EraseAt(it Iterator[K, V]) Iterator[K, V] {
	m.t.erase(it.Key())
	return m.t.iterAt(it.index)
}

// EraseRange removes the entries in [first, last) and returns an iterator
// positioned at last.
func (m *Map[K, V]) EraseRange(first, last Iterator[K, V]) Iterator[K, V] {
	for _, k := range m.t.keysInRange(first.index, last.index) {
		m.t.erase(k)
	}
	return m.t.iterAt(last.index)
}

// Find returns an iterator positioned at the entry for key, or End() if key
// is absent.
func (m *Map[K, V]) Find(key K) Iterator[K, V] {
	return Iterator[K, V]{t: &m.t, index: m.t.lookup(key)}
}

// EqualRange returns the range [first, last) of entries whose key equals
// key. It holds at most one entry and is [End(), End()) if key is absent.
func (m *Map[K, V]) EqualRange(key K) (first, last Iterator[K, V]) {
	first = m.Find(key)
	last = first
	last.Next()
	return first, last
}

// Get retrieves the value from the map for the specified key, return
// ok=false if the key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	if i := m.t.lookup(key); i != m.t.capacity {
		return m.t.slots[i].value, true
	}
	return value, false
}

// At returns the value for key or an error wrapping ErrKeyNotFound.
func (m *Map[K, V]) At(key K) (V, error) {
	if i := m.t.lookup(key); i != m.t.capacity {
		return m.t.slots[i].value, nil
	}
	var zero V
	return zero, errors.Wrapf(ErrKeyNotFound, "%v", key)
}

// Contains reports whether key is present.
func (m *Map[K, V]) Contains(key K) bool {
	return m.t.lookup(key) != m.t.capacity
}

// Count returns the number of entries for key (0 or 1).
func (m *Map[K, V]) Count(key K) int {
	if m.Contains(key) {
		return 1
	}
	return 0
}

// Clear removes all entries, retaining the current capacity.
func (m *Map[K, V]) Clear() {
	m.t.clear()
}

// Swap exchanges the contents and policies of m and other.
func (m *Map[K, V]) Swap(other *Map[K, V]) {
	m.t, other.t = other.t, m.t
}

// Merge inserts a copy of every entry of other whose key is absent from m.
// other is not modified.
func (m *Map[K, V]) Merge(other *Map[K, V]) {
	other.All(func(k K, v V) bool {
		m.t.emplace(k, v)
		return true
	})
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.t.used
}

// Empty reports whether the map has no entries.
func (m *Map[K, V]) Empty() bool {
	return m.t.used == 0
}

// BucketCount returns the number of slots in the map.
func (m *Map[K, V]) BucketCount() int {
	return int(m.t.capacity)
}

// LoadFactor returns the ratio of entries to slots.
func (m *Map[K, V]) LoadFactor() float32 {
	return m.t.loadFactor()
}

// MaxLoadFactor returns the ratio of entries to slots above which the map
// grows.
func (m *Map[K, V]) MaxLoadFactor() float32 {
	return m.t.maxLoadFactor
}

// SetMaxLoadFactor sets the max load factor, growing the map immediately if
// its entries exceed the new bound. f must be in (0,1].
func (m *Map[K, V]) SetMaxLoadFactor(f float32) error {
	return m.t.setMaxLoadFactor(f)
}

// GrowthMultiple returns the factor by which the slot count is multiplied
// when the map grows.
func (m *Map[K, V]) GrowthMultiple() float32 {
	return m.t.growthMultiple
}

// SetGrowthMultiple sets the growth multiple. f must be greater than 1.
func (m *Map[K, V]) SetGrowthMultiple(f float32) error {
	return m.t.setGrowthMultiple(f)
}

// Reserve grows the map so that it can hold n entries without exceeding the
// max load factor. It does nothing if the map is already large enough.
func (m *Map[K, V]) Reserve(n int) error {
	if err := validateCount(n); err != nil {
		return err
	}
	m.t.reserve(uint64(n))
	return nil
}

// Rehash rebuilds the map with at least n slots, and at least as many slots
// as its entries require under the max load factor.
func (m *Map[K, V]) Rehash(n int) error {
	if err := validateCount(n); err != nil {
		return err
	}
	m.t.rehash(uint64(n))
	return nil
}

// All calls yield sequentially for each key and value present in the map. If
// yield returns false, iteration stops. The map can be mutated during
// iteration, though there is no guarantee that the mutations will be
// visible to the iteration. All can be used directly in a range statement:
//
//	for k, v := range m.All {
//	  fmt.Printf("%v: %v\n", k, v)
//	}
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	// Snapshot the slots so that iteration remains valid if the map is
	// resized during iteration.
	slots, capacity := m.t.slots, m.t.capacity
	for i := uint32(0); i < capacity; i++ {
		s := &slots[i]
		if isFull(s.tag) {
			if !yield(s.key, s.value) {
				return
			}
		}
	}
}

// Begin returns an iterator positioned at the first entry in slot order, or
// End() if the map is empty.
func (m *Map[K, V]) Begin() Iterator[K, V] {
	return m.t.iterAt(0)
}

// End returns the past-the-end iterator.
func (m *Map[K, V]) End() Iterator[K, V] {
	return Iterator[K, V]{t: &m.t, index: m.t.capacity}
}
