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

// Package window slices a calendar day into contiguous, non-overlapping time
// windows of a fixed size, clamping the final window to the day boundary.
package window

import (
	"fmt"
	"time"

	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/pkg/granularity"
)

// Window is one half-open slice [Start, End) of a single calendar day.
type Window struct {
	Start time.Time
	End   time.Time
}

// Seconds returns the window length in whole seconds.
func (w Window) Seconds() int64 {
	return int64(w.End.Sub(w.Start) / time.Second)
}

// Interval returns the window length as a granularity string.
func (w Window) Interval() string {
	return granularity.Render(w.Seconds())
}

// DayStart parses a YYYY-MM-DD day string into midnight in loc.
func DayStart(day string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid target day %q: %w", day, err)
	}
	return t, nil
}

// NextDayStart returns midnight of the following calendar day. Using the
// calendar date rather than a fixed 86400s offset keeps DST-irregular days
// correct.
func NextDayStart(dayStart time.Time) time.Time {
	y, m, d := dayStart.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, dayStart.Location())
}

// ForDay returns the ordered window partition of the day starting at
// dayStart. Windows advance by windowSeconds; the final window's end is
// clamped to the next day boundary, so the windows always exactly cover
// [dayStart, nextDayStart).
func ForDay(dayStart time.Time, windowSeconds int64) []Window {
	if windowSeconds <= 0 {
		return nil
	}
	nextDay := NextDayStart(dayStart)

	var windows []Window
	start := dayStart
	for start.Before(nextDay) {
		end := start.Add(time.Duration(windowSeconds) * time.Second)
		if end.After(nextDay) {
			end = nextDay
		}
		windows = append(windows, Window{Start: start, End: end})
		start = end
	}
	return windows
}
