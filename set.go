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

import "iter"

// Set is an unordered set of keys. It shares its engine with Map, using
// struct{} as the value type so that slots carry no value storage.
//
// A Set is NOT goroutine-safe.
type Set[K comparable] struct {
	t table[K, struct{}]
}

// NewSet constructs a new Set with the specified initial capacity. See New
// for the errors returned.
func NewSet[K comparable](initialCapacity int, options ...option[K, struct{}]) (*Set[K], error) {
	s := &Set[K]{}
	if err := s.t.setup(initialCapacity, options); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the set's memory back to its configured allocator.
func (s *Set[K]) Close() {
	s.t.close()
}

// Insert inserts key if it is not already present. It returns an iterator
// positioned at key and whether an insertion took place.
func (s *Set[K]) Insert(key K) (SetIterator[K], bool) {
	i, inserted := s.t.claim(key)
	return s.iter(i), inserted
}

// InsertAll inserts every key produced by seq.
func (s *Set[K]) InsertAll(seq iter.Seq[K]) {
	for k := range seq {
		s.t.claim(k)
	}
}

// Erase removes key from the set and returns the number of keys removed
// (0 or 1).
func (s *Set[K]) Erase(key K) int {
	if s.t.erase(key) {
		return 1
	}
	return 0
}

// EraseAt removes the key at it and returns an iterator to the next key.
func (s *Set[K]) EraseAt(it SetIterator[K]) SetIterator[K] {
	s.t.erase(it.Key())
	return SetIterator[K]{it: s.t.iterAt(it.it.index)}
}

// EraseRange removes the keys in [first, last) and returns an iterator
// positioned at last.
func (s *Set[K]) EraseRange(first, last SetIterator[K]) SetIterator[K] {
	for _, k := range s.t.keysInRange(first.it.index, last.it.index) {
		s.t.erase(k)
	}
	return SetIterator[K]{it: s.t.iterAt(last.it.index)}
}

// Find returns an iterator positioned at key, or End() if key is absent.
func (s *Set[K]) Find(key K) SetIterator[K] {
	return s.iter(s.t.lookup(key))
}

// EqualRange returns the range [first, last) of keys equal to key.
func (s *Set[K]) EqualRange(key K) (first, last SetIterator[K]) {
	first = s.Find(key)
	last = first
	last.Next()
	return first, last
}

// Contains reports whether key is present.
func (s *Set[K]) Contains(key K) bool {
	return s.t.lookup(key) != s.t.capacity
}

// Count returns the number of keys equal to key (0 or 1).
func (s *Set[K]) Count(key K) int {
	if s.Contains(key) {
		return 1
	}
	return 0
}

// Clear removes all keys, retaining the current capacity.
func (s *Set[K]) Clear() {
	s.t.clear()
}

// Swap exchanges the contents and policies of s and other.
func (s *Set[K]) Swap(other *Set[K]) {
	s.t, other.t = other.t, s.t
}

// Merge inserts every key of other into s. other is not modified.
func (s *Set[K]) Merge(other *Set[K]) {
	other.All(func(k K) bool {
		s.t.claim(k)
		return true
	})
}

// Len returns the number of keys in the set.
func (s *Set[K]) Len() int {
	return s.t.used
}

// Empty reports whether the set has no keys.
func (s *Set[K]) Empty() bool {
	return s.t.used == 0
}

// BucketCount returns the number of slots in the set.
func (s *Set[K]) BucketCount() int {
	return int(s.t.capacity)
}

// LoadFactor returns the ratio of keys to slots.
func (s *Set[K]) LoadFactor() float32 {
	return s.t.loadFactor()
}

// MaxLoadFactor returns the ratio of keys to slots above which the set
// grows.
func (s *Set[K]) MaxLoadFactor() float32 {
	return s.t.maxLoadFactor
}

// SetMaxLoadFactor sets the max load factor. f must be in (0,1].
func (s *Set[K]) SetMaxLoadFactor(f float32) error {
	return s.t.setMaxLoadFactor(f)
}

// GrowthMultiple returns the growth multiple.
func (s *Set[K]) GrowthMultiple() float32 {
	return s.t.growthMultiple
}

// SetGrowthMultiple sets the growth multiple. f must be greater than 1.
func (s *Set[K]) SetGrowthMultiple(f float32) error {
	return s.t.setGrowthMultiple(f)
}

// Reserve grows the set so that it can hold n keys without exceeding the
// max load factor.
func (s *Set[K]) Reserve(n int) error {
	if err := validateCount(n); err != nil {
		return err
	}
	s.t.reserve(uint64(n))
	return nil
}

// Rehash rebuilds the set with at least n slots.
func (s *Set[K]) Rehash(n int) error {
	if err := validateCount(n); err != nil {
		return err
	}
	s.t.rehash(uint64(n))
	return nil
}

// All calls yield sequentially for each key present in the set. If yield
// returns false, iteration stops.
func (s *Set[K]) All(yield func(key K) bool) {
	slots, capacity := s.t.slots, s.t.capacity
	for i := uint32(0); i < capacity; i++ {
		if isFull(slots[i].tag) {
			if !yield(slots[i].key) {
				return
			}
		}
	}
}

// Begin returns an iterator positioned at the first key in slot order.
func (s *Set[K]) Begin() SetIterator[K] {
	return SetIterator[K]{it: s.t.iterAt(0)}
}

// End returns the past-the-end iterator.
func (s *Set[K]) End() SetIterator[K] {
	return s.iter(s.t.capacity)
}

func (s *Set[K]) iter(i uint32) SetIterator[K] {
	return SetIterator[K]{it: Iterator[K, struct{}]{t: &s.t, index: i}}
}
