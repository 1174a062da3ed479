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
	"fmt"
	"hash/maphash"
	"math"
	"math/bits"
)

const (
	debug = false

	// noLink terminates a collision chain. Slot 0 is an ordinary slot and
	// is never used as a terminator.
	noLink = math.MaxUint32
)

// Slot holds a key and value along with the occupancy tag and collision
// chain link of a table entry.
type Slot[K comparable, V any] struct {
	key K
	// NB: value precedes tag. A trailing zero-size field is padded by the
	// compiler, so placing value last would cost a word per slot for sets.
	value V
	// tag is the fingerprint of hash(key) shifted left by one with the low
	// bit acting as the occupancy flag.
	tag uint64
	// next is the index of the next slot in this slot's collision chain, or
	// noLink. Unoccupied slots on the overflow free list reuse next to
	// thread the list.
	next uint32
}

// table is the storage engine shared by Map and Set. The slots array is
// split into two regions:
//
//	[0, primary)        primary region, addressed directly by hash(key)
//	[primary, capacity) overflow region, only reachable through chains
//	capacity            free-list anchor once the overflow frontier is
//	                    exhausted
//
// A key is stored either in its primary slot or in an overflow slot linked
// into the chain that starts at its primary slot. The primary slot of a
// non-empty chain is always occupied: erasing it promotes its successor.
//
// Overflow slots are handed out from the frontier freeHead until it reaches
// capacity. Overflow slots vacated by erase are appended to a free list
// whose anchor is the slot at freeHead and whose last element is freeTail.
// The list is empty iff freeHead == freeTail.
type table[K comparable, V any] struct {
	config[K, V]
	seed maphash.Seed
	// slots is capacity+1 in length.
	slots []Slot[K, V]
	// The total number of slots, not counting the free-list anchor at
	// slots[capacity].
	capacity uint32
	// The number of directly addressable slots.
	primary uint32
	// mask is the smallest 2^k-1 >= primary-1.
	mask uint64
	// The number of occupied slots.
	used     int
	freeHead uint32
	freeTail uint32
}

// setup validates the options and capacity and allocates the initial slots.
func (t *table[K, V]) setup(initialCapacity int, options []option[K, V]) error {
	cfg := defaultConfig[K, V]()
	for _, op := range options {
		op.apply(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	if err := validateCapacity(initialCapacity); err != nil {
		return err
	}
	t.config = cfg
	t.seed = maphash.MakeSeed()
	t.init(uint32(initialCapacity))
	t.checkInvariants()
	return nil
}

// init replaces the slots with a freshly allocated, empty array of the
// specified capacity. The previous slots are not released.
func (t *table[K, V]) init(capacity uint32) {
	t.slots = t.allocator.AllocSlots(int(capacity) + 1)
	for i := range t.slots {
		t.slots[i] = Slot[K, V]{next: noLink}
	}
	t.capacity = capacity
	t.primary = primaryLimit(capacity, t.primaryRatio)
	t.mask = uint64(1)<<bits.Len32(t.primary-1) - 1
	t.used = 0
	t.freeHead = t.primary
	t.freeTail = t.primary
}

func primaryLimit(capacity uint32, ratio float32) uint32 {
	p := uint32(float64(capacity) * float64(ratio))
	if p < 1 {
		p = 1
	}
	// Keep at least one overflow slot.
	if capacity > 1 && p >= capacity {
		p = capacity - 1
	}
	return p
}

// maxEntries returns the number of entries the table may hold before it
// must grow.
func (t *table[K, V]) maxEntries() int {
	return int(float64(t.capacity) * float64(t.maxLoadFactor))
}

func (t *table[K, V]) hashKey(key *K) uint64 {
	h := t.hash(key, t.seed)
	if t.mix {
		h = mix(h)
	}
	return h
}

// primaryIndex maps a hash to [0, primary). Masked values that land in
// [primary, mask] are folded back by subtracting primary, which is always
// sufficient because mask < 2*primary.
func (t *table[K, V]) primaryIndex(h uint64) uint32 {
	i := h & t.mask
	if i >= uint64(t.primary) {
		i -= uint64(t.primary)
	}
	return uint32(i)
}

// find walks the chain for hash h looking for key. It returns the index of
// the slot holding key and its chain predecessor (noLink for the chain
// head). If the key is absent, index is t.capacity and prev is the last slot
// of the chain, which is where an insertion must link the new slot.
func (t *table[K, V]) find(key *K, h uint64) (index, prev uint32) {
	fp := fingerprint(h)
	prev = noLink
	i := t.primaryIndex(h)
	if debug {
		fmt.Printf("find(%v): hash=%016x primary=%d\n", *key, h, i)
	}
	for {
		s := &t.slots[i]
		// NB: the fingerprint is compared before the key to avoid a
		// potentially expensive key comparison on a mismatch.
		if isFull(s.tag) && fingerprint(s.tag) == fp && s.key == *key {
			return i, prev
		}
		if s.next == noLink {
			return t.capacity, i
		}
		prev = i
		i = s.next
	}
}

// lookup returns the index of the slot holding key or t.capacity.
func (t *table[K, V]) lookup(key K) uint32 {
	i, _ := t.find(&key, t.hashKey(&key))
	return i
}

// claim returns the index of the slot holding key, inserting key with a
// zero value if it is absent. inserted reports whether an insertion took
// place.
func (t *table[K, V]) claim(key K) (index uint32, inserted bool) {
	for {
		h := t.hashKey(&key)
		i, prev := t.find(&key, h)
		if i != t.capacity {
			return i, false
		}

		// The key is absent and will definitely be inserted. Growing
		// changes the layout, so after a resize we start over from scratch.
		if t.used+1 > t.maxEntries() {
			t.grow()
			continue
		}

		i = prev
		if isFull(t.slots[prev].tag) {
			var ok bool
			if i, ok = t.allocOverflow(); !ok {
				t.grow()
				continue
			}
			t.slots[prev].next = i
		}

		s := &t.slots[i]
		var zero V
		s.key = key
		s.value = zero
		s.tag = makeTag(h)
		s.next = noLink
		t.used++
		if debug {
			fmt.Printf("put(%v): index=%d prev=%d used=%d free=[%d,%d]\n",
				key, i, prev, t.used, t.freeHead, t.freeTail)
		}
		t.checkInvariants()
		return i, true
	}
}

// emplace inserts key and value if key is absent. The value of an existing
// entry is not overwritten.
func (t *table[K, V]) emplace(key K, value V) (index uint32, inserted bool) {
	index, inserted = t.claim(key)
	if inserted {
		t.slots[index].value = value
	}
	return index, inserted
}

// allocOverflow returns an unused overflow slot, preferring recycled slots
// over the frontier. It returns false if the overflow region is exhausted.
func (t *table[K, V]) allocOverflow() (uint32, bool) {
	if t.freeHead == t.freeTail {
		if t.freeHead >= t.capacity {
			return 0, false
		}
		i := t.freeHead
		t.freeHead++
		t.freeTail++
		return i, true
	}

	anchor := &t.slots[t.freeHead]
	i := anchor.next
	if i == t.freeTail {
		t.freeTail = t.freeHead
	} else {
		anchor.next = t.slots[i].next
	}
	return i, true
}

// freeOverflow clears the overflow slot at index i and appends it to the
// free list.
func (t *table[K, V]) freeOverflow(i uint32) {
	t.slots[i] = Slot[K, V]{next: noLink}
	t.slots[t.freeTail].next = i
	t.freeTail = i
}

// erase removes key, returning false if it was not present.
func (t *table[K, V]) erase(key K) bool {
	h := t.hashKey(&key)
	i, prev := t.find(&key, h)
	if i == t.capacity {
		if debug {
			fmt.Printf("erase(%v): not found\n", key)
		}
		return false
	}
	t.eraseAt(i, prev)
	if debug {
		fmt.Printf("erase(%v): index=%d used=%d free=[%d,%d]\n",
			key, i, t.used, t.freeHead, t.freeTail)
	}
	t.checkInvariants()
	return true
}

// eraseAt removes the entry at index i whose chain predecessor is prev.
func (t *table[K, V]) eraseAt(i, prev uint32) {
	s := &t.slots[i]
	if i < t.primary {
		if s.next == noLink {
			*s = Slot[K, V]{next: noLink}
			t.used--
			return
		}
		// Keep the chain head occupied by moving the successor into the
		// primary slot. Copying the successor also copies its link, which
		// unlinks the successor's old slot.
		j := s.next
		*s = t.slots[j]
		i = j
	} else {
		t.slots[prev].next = s.next
	}
	t.freeOverflow(i)
	t.used--
}

// grow resizes the table by the growth multiple.
func (t *table[K, V]) grow() {
	n := uint64(float64(t.capacity) * float64(t.growthMultiple))
	if n <= uint64(t.capacity) {
		n = uint64(t.capacity) + 1
	}
	if n > maxCapacity {
		if t.capacity == maxCapacity {
			panic(fmt.Sprintf("densemap: cannot grow beyond %d slots", uint64(maxCapacity)))
		}
		n = maxCapacity
	}
	t.resize(uint32(n))
}

// resize allocates a new slot array of the specified capacity and inserts
// every entry of the old array into it in slot order. The old array is
// released to the allocator. Resizing is all-or-nothing: the chains of the
// old array are never repaired in place.
func (t *table[K, V]) resize(newCapacity uint32) {
	oldSlots, oldCapacity := t.slots, t.capacity
	if debug {
		fmt.Printf("resize: capacity=%d->%d used=%d\n", oldCapacity, newCapacity, t.used)
	}

	t.init(newCapacity)
	for i := uint32(0); i < oldCapacity; i++ {
		s := &oldSlots[i]
		if !isFull(s.tag) {
			continue
		}
		t.emplace(s.key, s.value)
	}
	t.allocator.FreeSlots(oldSlots)
	t.checkInvariants()
}

// rehash resizes the table to at least n slots and at least as many slots
// as the current entries require under the max load factor.
func (t *table[K, V]) rehash(n uint64) {
	minSlots := uint64(math.Ceil(float64(t.used) / float64(t.maxLoadFactor)))
	n = max(n, minSlots, 1)
	if n > maxCapacity {
		n = maxCapacity
	}
	t.resize(uint32(n))
}

// reserve rehashes the table if n entries would exceed the max load factor.
func (t *table[K, V]) reserve(n uint64) {
	if n > uint64(t.maxEntries()) {
		t.rehash(uint64(math.Ceil(float64(n) / float64(t.maxLoadFactor))))
	}
}

// setMaxLoadFactor changes the max load factor, growing the table if the
// current entries exceed the new bound.
func (t *table[K, V]) setMaxLoadFactor(f float32) error {
	if err := validateMaxLoadFactor(f); err != nil {
		return err
	}
	t.maxLoadFactor = f
	t.reserve(uint64(t.used))
	return nil
}

func (t *table[K, V]) setGrowthMultiple(f float32) error {
	if err := validateGrowthMultiple(f); err != nil {
		return err
	}
	t.growthMultiple = f
	return nil
}

// clear removes all entries, retaining the current capacity.
func (t *table[K, V]) clear() {
	for i := range t.slots {
		t.slots[i] = Slot[K, V]{next: noLink}
	}
	t.used = 0
	t.freeHead = t.primary
	t.freeTail = t.primary
	t.checkInvariants()
}

// close releases the slots to the allocator. Close is idempotent.
func (t *table[K, V]) close() {
	if t.slots != nil {
		t.allocator.FreeSlots(t.slots)
	}
	t.slots = nil
	t.capacity = 0
	t.primary = 0
	t.used = 0
	t.freeHead = 0
	t.freeTail = 0
}

func (t *table[K, V]) loadFactor() float32 {
	return float32(t.used) / float32(t.capacity)
}

// next returns the index of the first occupied slot at or after i, or
// t.capacity.
func (t *table[K, V]) next(i uint32) uint32 {
	for i < t.capacity && !isFull(t.slots[i].tag) {
		i++
	}
	return i
}
