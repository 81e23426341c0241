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

package continuity

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/config"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/model"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/repo"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/pkg/metrics"
)

// fakeLedger is an in-memory IDriveTableRepository covering what the engine
// calls. failDeleteDay injects a per-day fault for isolation tests.
type fakeLedger struct {
	records       map[string]*model.DriveRecord
	failDeleteDay string
	deletes       []string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: map[string]*model.DriveRecord{}}
}

func (f *fakeLedger) BulkInsert(_ context.Context, records []*model.DriveRecord) error {
	for _, r := range records {
		if _, ok := f.records[r.PipelineId]; ok {
			continue
		}
		clone := *r
		f.records[r.PipelineId] = &clone
	}
	return nil
}

func (f *fakeLedger) DeleteDay(_ context.Context, _ repo.Partition, day string) (int64, error) {
	if day == f.failDeleteDay {
		return 0, fmt.Errorf("injected delete failure for %s", day)
	}
	f.deletes = append(f.deletes, day)
	var n int64
	for id, r := range f.records {
		if r.TargetDay == day {
			delete(f.records, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeLedger) AllDays(_ context.Context, _ repo.Partition) ([]string, error) {
	set := map[string]struct{}{}
	for _, r := range f.records {
		set[r.TargetDay] = struct{}{}
	}
	days := make([]string, 0, len(set))
	for d := range set {
		days = append(days, d)
	}
	sort.Strings(days)
	return days, nil
}

func (f *fakeLedger) IncompleteDays(_ context.Context, _ repo.Partition) ([]string, error) {
	set := map[string]struct{}{}
	for _, r := range f.records {
		if r.ContinuityCheckPerformed != model.ContinuityYes {
			set[r.TargetDay] = struct{}{}
		}
	}
	days := make([]string, 0, len(set))
	for d := range set {
		days = append(days, d)
	}
	sort.Strings(days)
	return days, nil
}

func (f *fakeLedger) CountIncomplete(_ context.Context, _ repo.Partition, day string) (int64, error) {
	var n int64
	for _, r := range f.records {
		if r.TargetDay == day && r.ContinuityCheckPerformed != model.ContinuityYes {
			n++
		}
	}
	return n, nil
}

func (f *fakeLedger) Get(_ context.Context, id string) (*model.DriveRecord, error) {
	if r, ok := f.records[id]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("not found: %s", id)
}

func (f *fakeLedger) UpdateFields(context.Context, string, map[string]any) error { return nil }
func (f *fakeLedger) FetchPending(context.Context, repo.Partition, time.Time, int) ([]*model.DriveRecord, error) {
	return nil, nil
}
func (f *fakeLedger) FetchInProgress(context.Context, repo.Partition) ([]*model.DriveRecord, error) {
	return nil, nil
}
func (f *fakeLedger) MarkStarted(context.Context, string, time.Time) error { return nil }
func (f *fakeLedger) MarkPhaseComplete(context.Context, string, model.Phase, string) error {
	return nil
}
func (f *fakeLedger) MarkPreValidationSuccess(context.Context, string, int64, int64, time.Time) error {
	return nil
}
func (f *fakeLedger) UpdatePreValidation(context.Context, string, int64, int64, string) error {
	return nil
}
func (f *fakeLedger) UpdateAuditSuccess(context.Context, string, int64, int64, time.Time) error {
	return nil
}
func (f *fakeLedger) ResetOnMismatch(context.Context, string, time.Time) error     { return nil }
func (f *fakeLedger) MarkFailedPermanent(context.Context, string, time.Time) error { return nil }
func (f *fakeLedger) ReclaimStale(context.Context, repo.Partition, time.Time, time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeLedger) daysWithCounts() map[string]int {
	out := map[string]int{}
	for _, r := range f.records {
		out[r.TargetDay]++
	}
	return out
}

func testPipeline() *config.PipelineConfig {
	p := &config.PipelineConfig{
		Name:           "events-hourly",
		Granularity:    "1h",
		XTimeBack:      "1d",
		IndexGroup:     "telemetry",
		IndexName:      "events",
		IndexID:        "events-v5",
		S3Bucket:       "etl-staging",
		S3Prefix:       []string{"raw", "events"},
		TargetDatabase: "analytics",
		TargetSchema:   "public",
		TargetTable:    "events",
	}
	p.SetDefaults()
	return p
}

func newTestEngine(t *testing.T, ledger *fakeLedger) *Engine {
	t.Helper()
	e, err := NewEngine(testPipeline(), ledger, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e.WithClock(func() time.Time {
		return time.Date(2025, 6, 5, 10, 0, 0, 0, time.UTC)
	})
}

func seedDay(t *testing.T, e *Engine, ledger *fakeLedger, day, flag string) {
	t.Helper()
	records, err := e.GenerateDay(day)
	if err != nil {
		t.Fatalf("GenerateDay %s: %v", day, err)
	}
	for _, r := range records {
		r.ContinuityCheckPerformed = flag
	}
	if err := ledger.BulkInsert(context.Background(), records); err != nil {
		t.Fatalf("seed %s: %v", day, err)
	}
}

func TestPopulateFreshTableCreatesRequiredDay(t *testing.T) {
	ledger := newFakeLedger()
	e := newTestEngine(t, ledger)

	if got := e.RequiredDay(); got != "2025-06-04" {
		t.Fatalf("required day = %q, want 2025-06-04", got)
	}
	if err := e.Populate(context.Background()); err != nil {
		t.Fatalf("Populate: %v", err)
	}

	counts := ledger.daysWithCounts()
	if counts["2025-06-04"] != 24 {
		t.Errorf("required day has %d records, want 24", counts["2025-06-04"])
	}
	if len(counts) != 1 {
		t.Errorf("fresh table grew %d days, want 1: %v", len(counts), counts)
	}
}

func TestPopulateIdempotent(t *testing.T) {
	ledger := newFakeLedger()
	e := newTestEngine(t, ledger)
	ctx := context.Background()

	if err := e.Populate(ctx); err != nil {
		t.Fatalf("first Populate: %v", err)
	}
	before := ledger.daysWithCounts()
	deletesBefore := len(ledger.deletes)

	if err := e.Populate(ctx); err != nil {
		t.Fatalf("second Populate: %v", err)
	}
	if !reflect.DeepEqual(before, ledger.daysWithCounts()) {
		t.Errorf("second run changed the ledger: %v vs %v", before, ledger.daysWithCounts())
	}
	if len(ledger.deletes) != deletesBefore {
		t.Errorf("second run deleted days: %v", ledger.deletes[deletesBefore:])
	}
}

func TestPopulateRebuildsUnvouchedDay(t *testing.T) {
	ledger := newFakeLedger()
	e := newTestEngine(t, ledger)
	ctx := context.Background()

	seedDay(t, e, ledger, "2025-06-02", model.ContinuityNo)
	seedDay(t, e, ledger, "2025-06-04", model.ContinuityYes)

	if err := e.Populate(ctx); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	for _, r := range ledger.records {
		if r.ContinuityCheckPerformed != model.ContinuityYes {
			t.Fatalf("record %s on %s still unvouched", r.PipelineId, r.TargetDay)
		}
	}

	rebuilt := false
	for _, d := range ledger.deletes {
		if d == "2025-06-02" {
			rebuilt = true
		}
	}
	if !rebuilt {
		t.Error("unvouched day 2025-06-02 was not rebuilt")
	}
}

func TestPopulateFillsMissingDays(t *testing.T) {
	ledger := newFakeLedger()
	e := newTestEngine(t, ledger)
	ctx := context.Background()

	seedDay(t, e, ledger, "2025-06-01", model.ContinuityYes)
	seedDay(t, e, ledger, "2025-06-04", model.ContinuityYes)

	if err := e.Populate(ctx); err != nil {
		t.Fatalf("Populate: %v", err)
	}

	counts := ledger.daysWithCounts()
	for _, day := range []string{"2025-06-01", "2025-06-02", "2025-06-03", "2025-06-04"} {
		if counts[day] != 24 {
			t.Errorf("day %s has %d records, want 24", day, counts[day])
		}
	}
}

func TestPopulateIsolatesPerDayFailures(t *testing.T) {
	ledger := newFakeLedger()
	e := newTestEngine(t, ledger)
	ctx := context.Background()

	seedDay(t, e, ledger, "2025-06-01", model.ContinuityNo)
	seedDay(t, e, ledger, "2025-06-02", model.ContinuityNo)
	ledger.failDeleteDay = "2025-06-01"

	err := e.Populate(ctx)
	if err == nil {
		t.Fatal("expected error from injected delete failure")
	}

	// The sibling day was still rebuilt despite 06-01 failing.
	for _, r := range ledger.records {
		if r.TargetDay == "2025-06-02" && r.ContinuityCheckPerformed != model.ContinuityYes {
			t.Fatal("sibling day 2025-06-02 was not rebuilt")
		}
	}
}

func TestFindMissingDays(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		want     []string
	}{
		{"empty", nil, nil},
		{"single day", []string{"2025-06-01"}, nil},
		{"contiguous", []string{"2025-06-01", "2025-06-02", "2025-06-03"}, nil},
		{"one gap", []string{"2025-06-01", "2025-06-03"}, []string{"2025-06-02"}},
		{
			"wide gap unordered input",
			[]string{"2025-06-05", "2025-06-01"},
			[]string{"2025-06-02", "2025-06-03", "2025-06-04"},
		},
		{
			"month boundary",
			[]string{"2025-05-30", "2025-06-02"},
			[]string{"2025-05-31", "2025-06-01"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindMissingDays(tt.existing)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FindMissingDays(%v) = %v, want %v", tt.existing, got, tt.want)
			}
		})
	}
}

func TestPopulateCountsRebuiltDays(t *testing.T) {
	ledger := newFakeLedger()
	sink := metrics.NewServer(metrics.Conf{}).GetSink()
	e, err := NewEngine(testPipeline(), ledger, nil, sink)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.WithClock(func() time.Time {
		return time.Date(2025, 6, 5, 10, 0, 0, 0, time.UTC)
	})
	ctx := context.Background()

	seedDay(t, e, ledger, "2025-06-01", model.ContinuityNo)
	seedDay(t, e, ledger, "2025-06-03", model.ContinuityYes)

	if err := e.Populate(ctx); err != nil {
		t.Fatalf("Populate: %v", err)
	}

	for reason, want := range map[string]float64{
		"required":   1, // 2025-06-04 did not exist yet
		"incomplete": 1, // 2025-06-01 lacked the vouch
		"missing":    1, // 2025-06-02 gap
	} {
		got := testutil.ToFloat64(sink.DaysRebuilt.WithLabelValues(reason))
		if got != want {
			t.Errorf("days rebuilt (%s) = %v, want %v", reason, got, want)
		}
	}
}
