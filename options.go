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

import "hash/maphash"

const (
	defaultMaxLoadFactor  = 1.0
	defaultGrowthMultiple = 2.0
	// defaultPrimaryRatio is the fraction of slots reachable directly from a
	// hash. The remainder form the overflow pool used by collision chains.
	defaultPrimaryRatio = 0.82
)

// config holds the construction time policy of a map. It is carried over
// unchanged when the table is rehashed.
type config[K comparable, V any] struct {
	hash           hashFn[K]
	mix            bool
	maxLoadFactor  float32
	growthMultiple float32
	primaryRatio   float32
	allocator      Allocator[K, V]
}

func defaultConfig[K comparable, V any]() config[K, V] {
	return config[K, V]{
		hash:           defaultHash[K],
		maxLoadFactor:  defaultMaxLoadFactor,
		growthMultiple: defaultGrowthMultiple,
		primaryRatio:   defaultPrimaryRatio,
		allocator:      defaultAllocator[K, V]{},
	}
}

func (c *config[K, V]) validate() error {
	if err := validateMaxLoadFactor(c.maxLoadFactor); err != nil {
		return err
	}
	if err := validateGrowthMultiple(c.growthMultiple); err != nil {
		return err
	}
	return validatePrimaryRatio(c.primaryRatio)
}

// option provide an interface to do work on a map's config while it is being
// created.
type option[K comparable, V any] interface {
	apply(c *config[K, V])
}

type hashOption[K comparable, V any] struct {
	hash func(key *K, seed maphash.Seed) uint64
}

func (op hashOption[K, V]) apply(c *config[K, V]) {
	c.hash = op.hash
}

// WithHash is an option to specify the hash function to use for a map. The
// seed passed to the function is chosen randomly when the map is created
// and may be ignored. Low quality hash functions (such as IdentityHash)
// should be combined with WithHashMixing.
func WithHash[K comparable, V any](hash func(key *K, seed maphash.Seed) uint64) option[K, V] {
	return hashOption[K, V]{hash}
}

type mixOption[K comparable, V any] bool

func (op mixOption[K, V]) apply(c *config[K, V]) {
	c.mix = bool(op)
}

// WithHashMixing enables or disables the finalizing mix applied to every
// hash before it is used. Mixing is disabled by default because the default
// hash function is already well distributed.
func WithHashMixing[K comparable, V any](enabled bool) option[K, V] {
	return mixOption[K, V](enabled)
}

type maxLoadFactorOption[K comparable, V any] float32

func (op maxLoadFactorOption[K, V]) apply(c *config[K, V]) {
	c.maxLoadFactor = float32(op)
}

// WithMaxLoadFactor sets the ratio of entries to slots above which the map
// grows. It must be in (0,1].
func WithMaxLoadFactor[K comparable, V any](f float32) option[K, V] {
	return maxLoadFactorOption[K, V](f)
}

type growthMultipleOption[K comparable, V any] float32

func (op growthMultipleOption[K, V]) apply(c *config[K, V]) {
	c.growthMultiple = float32(op)
}

// WithGrowthMultiple sets the factor by which the slot count is multiplied
// when the map grows. It must be greater than 1.
func WithGrowthMultiple[K comparable, V any](f float32) option[K, V] {
	return growthMultipleOption[K, V](f)
}

type primaryRatioOption[K comparable, V any] float32

func (op primaryRatioOption[K, V]) apply(c *config[K, V]) {
	c.primaryRatio = float32(op)
}

// WithPrimaryRatio sets the fraction of slots that are directly addressable
// from a hash. The remaining slots are only used to extend collision
// chains. It must be in (0,1).
func WithPrimaryRatio[K comparable, V any](f float32) option[K, V] {
	return primaryRatioOption[K, V](f)
}

// Allocator specifies an interface for allocating and releasing memory used
// by a map. The default allocator utilizes Go's builtin make() and allows the
// GC to reclaim memory.
//
// If the allocator is manually managing memory and requires that slots be
// freed then Close must be called in order to ensure FreeSlots is called.
type Allocator[K comparable, V any] interface {
	// AllocSlots should return a slice equivalent to make([]Slot[K,V], n).
	AllocSlots(n int) []Slot[K, V]

	// FreeSlots can optional release the memory associated with the supplied
	// slice that is guaranteed to have been allocated by AllocSlots.
	FreeSlots(v []Slot[K, V])
}

type defaultAllocator[K comparable, V any] struct{}

func (defaultAllocator[K, V]) AllocSlots(n int) []Slot[K, V] {
	return make([]Slot[K, V], n)
}

func (defaultAllocator[K, V]) FreeSlots(v []Slot[K, V]) {
}

type allocatorOption[K comparable, V any] struct {
	allocator Allocator[K, V]
}

func (op allocatorOption[K, V]) apply(c *config[K, V]) {
	c.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a map.
func WithAllocator[K comparable, V any](allocator Allocator[K, V]) option[K, V] {
	return allocatorOption[K, V]{allocator}
}
