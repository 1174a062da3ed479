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
	"math"

	"github.com/cockroachdb/errors"
)

// defaultLinearMaxLoadFactor is low because linear probing degrades quickly
// as clusters of occupied slots merge.
const defaultLinearMaxLoadFactor = 0.4

type linearSlot[K comparable, V any] struct {
	key   K
	value V
}

// LinearMap is an open-addressing map using linear probing. Unlike Map it
// does not store occupancy in the slots: a slot is unoccupied iff its key
// equals the reserved empty key supplied at construction, which therefore
// can never be inserted. Deletion uses backward shifting, so there are no
// tombstones and lookups never degrade after churn.
//
// LinearMap honors the WithHash, WithHashMixing and WithMaxLoadFactor
// options. The max load factor defaults to 0.4.
//
// A LinearMap is NOT goroutine-safe.
type LinearMap[K comparable, V any] struct {
	hash          hashFn[K]
	seed          maphash.Seed
	mix           bool
	maxLoadFactor float32
	emptyKey      K
	slots         []linearSlot[K, V]
	used          int
}

// NewLinearMap constructs a LinearMap with the specified empty key and
// initial capacity.
func NewLinearMap[K comparable, V any](
	emptyKey K, initialCapacity int, options ...option[K, V],
) (*LinearMap[K, V], error) {
	cfg := defaultConfig[K, V]()
	cfg.maxLoadFactor = defaultLinearMaxLoadFactor
	for _, op := range options {
		op.apply(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := validateCapacity(initialCapacity); err != nil {
		return nil, err
	}
	m := &LinearMap[K, V]{
		hash:          cfg.hash,
		seed:          maphash.MakeSeed(),
		mix:           cfg.mix,
		maxLoadFactor: cfg.maxLoadFactor,
		emptyKey:      emptyKey,
	}
	m.slots = m.makeSlots(initialCapacity)
	return m, nil
}

func (m *LinearMap[K, V]) makeSlots(n int) []linearSlot[K, V] {
	slots := make([]linearSlot[K, V], n)
	for i := range slots {
		slots[i].key = m.emptyKey
	}
	return slots
}

func (m *LinearMap[K, V]) checkKey(key K) error {
	if key == m.emptyKey {
		return errors.Wrapf(ErrInvalidArgument, "key %v equals the empty key", key)
	}
	return nil
}

func (m *LinearMap[K, V]) ideal(key *K) int {
	h := m.hash(key, m.seed)
	if m.mix {
		h = mix(h)
	}
	return int(h % uint64(len(m.slots)))
}

func (m *LinearMap[K, V]) probe(i int) int {
	i++
	if i == len(m.slots) {
		i = 0
	}
	return i
}

// distance returns how far slot i is from slot ideal along the probe
// sequence.
func (m *LinearMap[K, V]) distance(i, ideal int) int {
	d := i - ideal
	if d < 0 {
		d += len(m.slots)
	}
	return d
}

// find returns the index of key, or -1 if it is absent.
func (m *LinearMap[K, V]) find(key K) int {
	if key == m.emptyKey {
		return -1
	}
	for i := m.ideal(&key); ; i = m.probe(i) {
		switch m.slots[i].key {
		case key:
			return i
		case m.emptyKey:
			return -1
		}
	}
}

// claim returns the index of key, inserting it with a zero value if absent.
func (m *LinearMap[K, V]) claim(key K) (int, bool, error) {
	if err := m.checkKey(key); err != nil {
		return 0, false, err
	}
	m.reserve(m.used + 1)
	for i := m.ideal(&key); ; i = m.probe(i) {
		s := &m.slots[i]
		switch s.key {
		case key:
			return i, false, nil
		case m.emptyKey:
			var zero V
			s.key = key
			s.value = zero
			m.used++
			return i, true, nil
		}
	}
}

// Insert inserts key with value if key is absent, reporting whether an
// insertion took place. It returns an error wrapping ErrInvalidArgument if
// key equals the empty key.
func (m *LinearMap[K, V]) Insert(key K, value V) (bool, error) {
	i, inserted, err := m.claim(key)
	if inserted {
		m.slots[i].value = value
	}
	return inserted, err
}

// InsertOrAssign inserts key with value, overwriting the value of an
// existing entry.
func (m *LinearMap[K, V]) InsertOrAssign(key K, value V) (bool, error) {
	i, inserted, err := m.claim(key)
	if err != nil {
		return false, err
	}
	m.slots[i].value = value
	return inserted, nil
}

// Get retrieves the value for key. The empty key is never present.
func (m *LinearMap[K, V]) Get(key K) (value V, ok bool) {
	if i := m.find(key); i >= 0 {
		return m.slots[i].value, true
	}
	return value, false
}

// Contains reports whether key is present.
func (m *LinearMap[K, V]) Contains(key K) bool {
	return m.find(key) >= 0
}

// Erase removes key and returns the number of entries removed (0 or 1).
func (m *LinearMap[K, V]) Erase(key K) int {
	i := m.find(key)
	if i < 0 {
		return 0
	}
	// Shift subsequent members of the probe cluster back over the hole
	// when doing so moves them closer to their ideal slot.
	hole := i
	for j := m.probe(hole); ; j = m.probe(j) {
		s := &m.slots[j]
		if s.key == m.emptyKey {
			break
		}
		ideal := m.ideal(&s.key)
		if m.distance(hole, ideal) < m.distance(j, ideal) {
			m.slots[hole] = *s
			hole = j
		}
	}
	var zero V
	m.slots[hole] = linearSlot[K, V]{key: m.emptyKey, value: zero}
	m.used--
	return 1
}

// Clear removes all entries, retaining the current capacity.
func (m *LinearMap[K, V]) Clear() {
	var zero V
	for i := range m.slots {
		m.slots[i] = linearSlot[K, V]{key: m.emptyKey, value: zero}
	}
	m.used = 0
}

// Len returns the number of entries.
func (m *LinearMap[K, V]) Len() int {
	return m.used
}

// BucketCount returns the number of slots.
func (m *LinearMap[K, V]) BucketCount() int {
	return len(m.slots)
}

// LoadFactor returns the ratio of entries to slots.
func (m *LinearMap[K, V]) LoadFactor() float32 {
	return float32(m.used) / float32(len(m.slots))
}

// MaxLoadFactor returns the max load factor.
func (m *LinearMap[K, V]) MaxLoadFactor() float32 {
	return m.maxLoadFactor
}

// SetMaxLoadFactor sets the max load factor, growing the map immediately if
// its entries exceed the new bound.
func (m *LinearMap[K, V]) SetMaxLoadFactor(f float32) error {
	if err := validateMaxLoadFactor(f); err != nil {
		return err
	}
	m.maxLoadFactor = f
	m.reserve(m.used)
	return nil
}

// Reserve grows the map so that it can hold n entries without exceeding the
// max load factor.
func (m *LinearMap[K, V]) Reserve(n int) error {
	if err := validateCount(n); err != nil {
		return err
	}
	m.reserve(n)
	return nil
}

// Rehash rebuilds the map with at least n slots.
func (m *LinearMap[K, V]) Rehash(n int) error {
	if err := validateCount(n); err != nil {
		return err
	}
	m.rehash(n)
	return nil
}

func (m *LinearMap[K, V]) reserve(n int) {
	want := int(math.Ceil(float64(n) / float64(m.maxLoadFactor)))
	if want <= n {
		// At least one slot must stay empty to terminate probing.
		want = n + 1
	}
	if want > len(m.slots) {
		m.rehash(want)
	}
}

func (m *LinearMap[K, V]) rehash(n int) {
	n = max(n, int(math.Ceil(float64(m.used)/float64(m.maxLoadFactor))), m.used+1)
	old := m.slots
	m.slots = m.makeSlots(n)
	for i := range old {
		s := &old[i]
		if s.key == m.emptyKey {
			continue
		}
		for j := m.ideal(&s.key); ; j = m.probe(j) {
			if m.slots[j].key == m.emptyKey {
				m.slots[j] = *s
				break
			}
		}
	}
}

// All calls yield sequentially for each key and value present in the map.
// If yield returns false, iteration stops.
func (m *LinearMap[K, V]) All(yield func(key K, value V) bool) {
	slots := m.slots
	for i := range slots {
		if slots[i].key != m.emptyKey {
			if !yield(slots[i].key, slots[i].value) {
				return
			}
		}
	}
}

// LinearSet is a set built on LinearMap.
type LinearSet[K comparable] struct {
	m LinearMap[K, struct{}]
}

// NewLinearSet constructs a LinearSet with the specified empty key and
// initial capacity.
func NewLinearSet[K comparable](
	emptyKey K, initialCapacity int, options ...option[K, struct{}],
) (*LinearSet[K], error) {
	m, err := NewLinearMap[K, struct{}](emptyKey, initialCapacity, options...)
	if err != nil {
		return nil, err
	}
	return &LinearSet[K]{m: *m}, nil
}

// Insert inserts key, reporting whether an insertion took place.
func (s *LinearSet[K]) Insert(key K) (bool, error) {
	_, inserted, err := s.m.claim(key)
	return inserted, err
}

// Contains reports whether key is present.
func (s *LinearSet[K]) Contains(key K) bool {
	return s.m.Contains(key)
}

// Erase removes key and returns the number of keys removed (0 or 1).
func (s *LinearSet[K]) Erase(key K) int {
	return s.m.Erase(key)
}

// Clear removes all keys.
func (s *LinearSet[K]) Clear() {
	s.m.Clear()
}

// Len returns the number of keys.
func (s *LinearSet[K]) Len() int {
	return s.m.Len()
}

// BucketCount returns the number of slots.
func (s *LinearSet[K]) BucketCount() int {
	return s.m.BucketCount()
}

// LoadFactor returns the ratio of keys to slots.
func (s *LinearSet[K]) LoadFactor() float32 {
	return s.m.LoadFactor()
}

// MaxLoadFactor returns the max load factor.
func (s *LinearSet[K]) MaxLoadFactor() float32 {
	return s.m.MaxLoadFactor()
}

// SetMaxLoadFactor sets the max load factor, growing the set immediately if
// its keys exceed the new bound.
func (s *LinearSet[K]) SetMaxLoadFactor(f float32) error {
	return s.m.SetMaxLoadFactor(f)
}

// Reserve grows the set so that it can hold n keys without exceeding the
// max load factor.
func (s *LinearSet[K]) Reserve(n int) error {
	return s.m.Reserve(n)
}

// Rehash rebuilds the set with at least n slots.
func (s *LinearSet[K]) Rehash(n int) error {
	return s.m.Rehash(n)
}

// All calls yield sequentially for each key present in the set.
func (s *LinearSet[K]) All(yield func(key K) bool) {
	s.m.All(func(k K, _ struct{}) bool {
		return yield(k)
	})
}
