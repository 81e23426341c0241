// Copyright 2025 Drivepipe Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package granularity converts between duration strings like "1d2h30m" and
// integer seconds. The grammar is a concatenation of <int><unit> tokens with
// unit in {d,h,m,s}, each unit at most once, in any order.
package granularity

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidFormat reports a duration string that does not match the grammar.
var ErrInvalidFormat = errors.New("invalid granularity format")

const (
	secondsPerDay    = 86400
	secondsPerHour   = 3600
	secondsPerMinute = 60
)

var unitSeconds = map[byte]int64{
	'd': secondsPerDay,
	'h': secondsPerHour,
	'm': secondsPerMinute,
	's': 1,
}

// Parse converts a duration string to total seconds. The total must be
// positive; empty input, unknown units, duplicate units, and leftover
// characters all fail with ErrInvalidFormat.
func Parse(text string) (int64, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return 0, fmt.Errorf("%w: empty input", ErrInvalidFormat)
	}

	var total int64
	seen := map[byte]bool{}
	i := 0
	for i < len(s) {
		start := i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if start == i {
			return 0, fmt.Errorf("%w: expected digit at %q", ErrInvalidFormat, s[i:])
		}
		if i == len(s) {
			return 0, fmt.Errorf("%w: trailing value without unit in %q", ErrInvalidFormat, text)
		}
		unit := s[i]
		mult, ok := unitSeconds[unit]
		if !ok {
			return 0, fmt.Errorf("%w: unknown unit %q", ErrInvalidFormat, string(unit))
		}
		if seen[unit] {
			return 0, fmt.Errorf("%w: duplicate unit %q", ErrInvalidFormat, string(unit))
		}
		seen[unit] = true

		var value int64
		for _, c := range s[start:i] {
			value = value*10 + int64(c-'0')
			if value > 1<<40 {
				return 0, fmt.Errorf("%w: value too large in %q", ErrInvalidFormat, text)
			}
		}
		total += value * mult
		i++
	}

	if total <= 0 {
		return 0, fmt.Errorf("%w: duration must be positive, got %ds", ErrInvalidFormat, total)
	}
	return total, nil
}

// Render converts seconds to the canonical compact string, emitting only
// non-zero components in d,h,m,s order. Zero renders as "0s".
func Render(seconds int64) string {
	if seconds <= 0 {
		return "0s"
	}
	d := seconds / secondsPerDay
	r := seconds % secondsPerDay
	h := r / secondsPerHour
	r %= secondsPerHour
	m := r / secondsPerMinute
	s := r % secondsPerMinute

	var b strings.Builder
	if d > 0 {
		fmt.Fprintf(&b, "%dd", d)
	}
	if h > 0 {
		fmt.Fprintf(&b, "%dh", h)
	}
	if m > 0 {
		fmt.Fprintf(&b, "%dm", m)
	}
	if s > 0 {
		fmt.Fprintf(&b, "%ds", s)
	}
	return b.String()
}
