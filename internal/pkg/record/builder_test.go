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

package record

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/config"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/model"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/pkg/window"
)

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

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestBuildInitialState(t *testing.T) {
	b, err := NewBuilder(testPipeline())
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	captured := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	b.WithClock(fixedClock(captured))

	w := window.Window{
		Start: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	rec, err := b.Build("2025-06-01", w)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if rec.SourceCategory != "telemetry|events" {
		t.Errorf("source category = %q", rec.SourceCategory)
	}
	wantStage := "etl-staging|s3://etl-staging/raw/events/2025-06-01/08-00/events-v5_" +
		"1748856600.json"
	if rec.StageCategory != wantStage {
		t.Errorf("stage category = %q, want %q", rec.StageCategory, wantStage)
	}
	if rec.TargetCategory != "analytics.public.events|raw/events/2025-06-01/08-00/" {
		t.Errorf("target category = %q", rec.TargetCategory)
	}
	if len(rec.PipelineId) != 64 {
		t.Errorf("pipeline id %q is not a sha256 hex digest", rec.PipelineId)
	}
	if rec.PipelineStatus != model.StatusPending {
		t.Errorf("status = %q, want PENDING", rec.PipelineStatus)
	}
	if rec.CompletedPhase != model.PhaseNotStarted {
		t.Errorf("completed phase = %q, want empty", rec.CompletedPhase)
	}
	if rec.ContinuityCheckPerformed != model.ContinuityYes {
		t.Errorf("continuity flag = %q", rec.ContinuityCheckPerformed)
	}
	if rec.TimeInterval != "1h" {
		t.Errorf("time interval = %q, want 1h", rec.TimeInterval)
	}
	if rec.SourceCount != nil || rec.TargetCount != nil || rec.RetryAttempt != nil {
		t.Error("counts and retry attempt must start null")
	}
	if rec.PipelineStartTime != nil || rec.PipelineEndTime != nil {
		t.Error("start and end times must start null")
	}
}

func TestBuildDeterministicId(t *testing.T) {
	captured := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	w := window.Window{
		Start: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}

	build := func() *model.DriveRecord {
		b, err := NewBuilder(testPipeline())
		if err != nil {
			t.Fatalf("NewBuilder: %v", err)
		}
		rec, err := b.WithClock(fixedClock(captured)).Build("2025-06-01", w)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		return rec
	}

	first, second := build(), build()
	if first.PipelineId != second.PipelineId {
		t.Errorf("same inputs produced different ids: %q vs %q", first.PipelineId, second.PipelineId)
	}

	other := window.Window{Start: w.End, End: w.End.Add(time.Hour)}
	b, _ := NewBuilder(testPipeline())
	shifted, err := b.WithClock(fixedClock(captured)).Build("2025-06-01", other)
	if err != nil {
		t.Fatalf("Build shifted: %v", err)
	}
	if shifted.PipelineId == first.PipelineId {
		t.Error("different windows produced the same id")
	}
}

func TestNewBuilderMissingKey(t *testing.T) {
	p := testPipeline()
	p.S3Bucket = ""
	if _, err := NewBuilder(p); !errors.Is(err, config.ErrMissingKey) {
		t.Fatalf("err = %v, want ErrMissingKey", err)
	}
	if err := func() error { _, err := NewBuilder(p); return err }(); !strings.Contains(err.Error(), "s3Bucket") {
		t.Errorf("error does not name the missing key: %v", err)
	}
}

func TestBuildRejectsInvertedWindow(t *testing.T) {
	b, err := NewBuilder(testPipeline())
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	at := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	if _, err := b.Build("2025-06-01", window.Window{Start: at, End: at}); err == nil {
		t.Fatal("expected error for empty window")
	}
}
