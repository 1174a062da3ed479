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

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidArgument is returned for non-positive capacities, load
	// factors outside (0,1], growth multiples <= 1, primary ratios outside
	// (0,1) and for operations on the reserved empty key of a LinearMap.
	ErrInvalidArgument = errors.New("densemap: invalid argument")

	// ErrCapacityOverflow is returned when a requested capacity cannot be
	// represented by the 32-bit slot indexes.
	ErrCapacityOverflow = errors.New("densemap: capacity overflow")

	// ErrKeyNotFound is returned by Map.At when the key is absent. All other
	// lookups report absence through their return values.
	ErrKeyNotFound = errors.New("densemap: key not found")
)

// maxCapacity is the largest slot count a table may have. One index is
// reserved for the free-list anchor slot and MaxUint32 terminates chains.
const maxCapacity = noLink - 1

func validateCapacity(capacity int) error {
	if capacity < 1 {
		return errors.Wrapf(ErrInvalidArgument, "capacity must be positive: %d", capacity)
	}
	if uint64(capacity) >= maxCapacity {
		return errors.Wrapf(ErrCapacityOverflow, "capacity must be less than %d: %d",
			uint64(maxCapacity), capacity)
	}
	return nil
}

func validateMaxLoadFactor(f float32) error {
	// NB: written so that NaN fails the check.
	if !(f > 0 && f <= 1) {
		return errors.Wrapf(ErrInvalidArgument,
			"max load factor must be in (0,1]: %g", f)
	}
	return nil
}

func validateGrowthMultiple(f float32) error {
	if !(f > 1) {
		return errors.Wrapf(ErrInvalidArgument,
			"growth multiple must be greater than 1: %g", f)
	}
	return nil
}

// validatePrimaryRatio rejects a ratio of 1, which leaves no overflow region
// and makes every collision grow the table.
func validatePrimaryRatio(f float32) error {
	if !(f > 0 && f < 1) {
		return errors.Wrapf(ErrInvalidArgument,
			"primary ratio must be in (0,1): %g", f)
	}
	return nil
}

func validateCount(n int) error {
	if n < 0 {
		return errors.Wrapf(ErrInvalidArgument, "count must not be negative: %d", n)
	}
	if uint64(n) >= maxCapacity {
		return errors.Wrapf(ErrCapacityOverflow, "count must be less than %d: %d",
			uint64(maxCapacity), n)
	}
	return nil
}
