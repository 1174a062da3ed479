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

// Iterator is a forward cursor over the entries of a Map in slot order. The
// zero Iterator is not valid.
//
// An Iterator is invalidated by any insertion that grows the map, by
// Rehash, Reserve and SetMaxLoadFactor, and by erasing an entry through
// another iterator or by key, since erasing the head of a collision chain
// moves the chain's next entry into the head's slot.
type Iterator[K comparable, V any] struct {
	t     *table[K, V]
	index uint32
}

// Valid reports whether the iterator is positioned at an entry, i.e. it is
// not the End() iterator.
func (it Iterator[K, V]) Valid() bool {
	return it.t != nil && it.index < it.t.capacity
}

// Next advances the iterator to the next entry. Advancing the End()
// iterator is a noop.
func (it *Iterator[K, V]) Next() {
	if it.index < it.t.capacity {
		it.index = it.t.next(it.index + 1)
	}
}

// Key returns the key of the current entry.
func (it Iterator[K, V]) Key() K {
	return it.slot().key
}

// Value returns the value of the current entry.
func (it Iterator[K, V]) Value() V {
	return it.slot().value
}

// SetValue overwrites the value of the current entry.
func (it Iterator[K, V]) SetValue(v V) {
	it.slot().value = v
}

// Equal reports whether both iterators are positioned at the same slot of
// the same map.
func (it Iterator[K, V]) Equal(other Iterator[K, V]) bool {
	return it.t == other.t && it.index == other.index
}

func (it Iterator[K, V]) slot() *Slot[K, V] {
	if !it.Valid() {
		panic("densemap: dereference of invalid iterator")
	}
	s := &it.t.slots[it.index]
	if !isFull(s.tag) {
		panic("densemap: dereference of stale iterator")
	}
	return s
}

// SetIterator is a forward cursor over the keys of a Set in slot order. It
// is invalidated by the same operations as Iterator.
type SetIterator[K comparable] struct {
	it Iterator[K, struct{}]
}

// Valid reports whether the iterator is positioned at a key.
func (it SetIterator[K]) Valid() bool {
	return it.it.Valid()
}

// Next advances the iterator to the next key.
func (it *SetIterator[K]) Next() {
	it.it.Next()
}

// Key returns the current key.
func (it SetIterator[K]) Key() K {
	return it.it.Key()
}

// Equal reports whether both iterators are positioned at the same slot of
// the same set.
func (it SetIterator[K]) Equal(other SetIterator[K]) bool {
	return it.it.Equal(other.it)
}

// iterAt returns an iterator positioned at the first occupied slot at or
// after index i.
func (t *table[K, V]) iterAt(i uint32) Iterator[K, V] {
	return Iterator[K, V]{t: t, index: t.next(min(i, t.capacity))}
}

// keysInRange returns the keys of the occupied slots in [first, last).
func (t *table[K, V]) keysInRange(first, last uint32) []K {
	last = min(last, t.capacity)
	var keys []K
	for i := t.next(first); i < last; i = t.next(i + 1) {
		keys = append(keys, t.slots[i].key)
	}
	return keys
}
