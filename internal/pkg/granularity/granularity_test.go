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

package granularity

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1h", 3600},
		{"30m", 1800},
		{"1d2h30m40s", 95440},
		{"2h30m", 9000},
		{"45s", 45},
		{"1d", 86400},
		{"m30s1", 0}, // digit must precede unit
		{"  1H  ", 3600},
		{"90m", 5400},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.want == 0 {
				if err == nil {
					t.Fatalf("Parse(%q) = %d, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("Parse(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	invalid := []string{
		"",
		"   ",
		"abc",
		"1x",
		"1h1h",
		"1h30",
		"1.5h",
		"-1h",
		"0s",
		"0h0m",
		"1h 30m x",
	}
	for _, in := range invalid {
		if _, err := Parse(in); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalidFormat", in, err)
		}
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0s"},
		{45, "45s"},
		{3600, "1h"},
		{5400, "1h30m"},
		{86400, "1d"},
		{95440, "1d2h30m40s"},
		{86460, "1d1m"},
	}
	for _, tt := range tests {
		if got := Render(tt.in); got != tt.want {
			t.Errorf("Render(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	canonical := []string{"1h", "30m", "1d2h30m40s", "2h30m", "1d1m", "59s", "23h59m59s"}
	for _, s := range canonical {
		secs, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", s, err)
		}
		if got := Render(secs); got != s {
			t.Errorf("Render(Parse(%q)) = %q, want round-trip", s, got)
		}
	}
}
