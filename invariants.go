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
	"strings"

	"github.com/cockroachdb/errors"
)

func (t *table[K, V]) checkInvariants() {
	if invariants {
		if err := t.validate(); err != nil {
			panic(fmt.Sprintf("invariant failed: %v\n%s", err, t.debugString()))
		}
	}
}

// validate verifies the structural invariants of the table, returning a
// description of the first violation found.
func (t *table[K, V]) validate() error {
	if uint32(len(t.slots)) != t.capacity+1 {
		return errors.Newf("found %d slots, but capacity is %d", len(t.slots), t.capacity)
	}
	if t.primary < 1 || t.primary > t.capacity {
		return errors.Newf("primary %d out of range [1,%d]", t.primary, t.capacity)
	}
	if t.freeHead < t.primary || t.freeHead > t.capacity {
		return errors.Newf("free-head %d out of range [%d,%d]", t.freeHead, t.primary, t.capacity)
	}

	// Walk every chain, checking that each member hashes to the chain's
	// primary slot and that only the head may be unoccupied.
	var used, chained int
	for p := uint32(0); p < t.primary; p++ {
		var n uint32
		for i := p; i != noLink; i = t.slots[i].next {
			if n > t.capacity {
				return errors.Newf("chain(%d): cycle detected", p)
			}
			s := &t.slots[i]
			if i != p && (i < t.primary || i >= t.freeHead) {
				return errors.Newf("chain(%d): member %d outside of allocated overflow [%d,%d)",
					p, i, t.primary, t.freeHead)
			}
			if !isFull(s.tag) {
				if i != p || s.next != noLink {
					return errors.Newf("chain(%d): unoccupied member %d", p, i)
				}
				break
			}
			h := t.hashKey(&s.key)
			if fingerprint(h) != fingerprint(s.tag) {
				return errors.Newf("slot(%d): %v has fingerprint %x, expected %x",
					i, s.key, fingerprint(s.tag), fingerprint(h))
			}
			if q := t.primaryIndex(h); q != p {
				return errors.Newf("slot(%d): %v chained from %d, but hashes to %d", i, s.key, p, q)
			}
			used++
			if i != p {
				chained++
			}
			n++
		}
	}
	if used != t.used {
		return errors.Newf("found %d used slots, but used count is %d", used, t.used)
	}

	// Every overflow slot below the frontier is either chained or on the
	// free list.
	free, err := t.freeList()
	if err != nil {
		return err
	}
	for _, i := range free {
		if i < t.primary || i >= t.freeHead {
			return errors.Newf("free slot %d outside of allocated overflow [%d,%d)", i, t.primary, t.freeHead)
		}
		if isFull(t.slots[i].tag) {
			return errors.Newf("free slot %d is occupied", i)
		}
	}
	if n := uint32(chained + len(free)); n != t.freeHead-t.primary {
		return errors.Newf("found %d chained and %d free overflow slots, but %d were allocated",
			chained, len(free), t.freeHead-t.primary)
	}
	for i := t.freeHead; i < t.capacity; i++ {
		if isFull(t.slots[i].tag) {
			return errors.Newf("slot(%d): occupied beyond the overflow frontier %d", i, t.freeHead)
		}
	}
	return nil
}

// freeList returns the indexes of the recycled overflow slots in the order
// they will be reused.
func (t *table[K, V]) freeList() ([]uint32, error) {
	var free []uint32
	for i := t.freeHead; i != t.freeTail; {
		i = t.slots[i].next
		if i == noLink || uint32(len(free)) > t.capacity {
			return nil, errors.Newf("free list from %d does not reach free-tail %d", t.freeHead, t.freeTail)
		}
		free = append(free, i)
	}
	return free, nil
}

func (t *table[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d primary=%d used=%d\n", t.capacity, t.primary, t.used)
	free, err := t.freeList()
	if err != nil {
		fmt.Fprintf(&buf, "free-head=%d free-tail=%d: %v\n", t.freeHead, t.freeTail, err)
	} else {
		fmt.Fprintf(&buf, "free-head=%d free-tail=%d free=%v\n", t.freeHead, t.freeTail, free)
	}
	for i := uint32(0); i < t.capacity; i++ {
		s := &t.slots[i]
		if !isFull(s.tag) {
			continue
		}
		fmt.Fprintf(&buf, "%6d: %v", i, s.key)
		if s.next != noLink {
			fmt.Fprintf(&buf, " -> %d", s.next)
		}
		buf.WriteString("\n")
	}
	return buf.String()
}
