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

// Package record derives drive-table records from pipeline configuration and
// time windows. Identical inputs always produce the same pipeline id; the id
// is the dedup key for the whole drive table.
package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/config"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/model"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/pkg/window"
)

// Builder assembles initial-state DriveRecords for a pipeline.
type Builder struct {
	cfg *config.PipelineConfig
	loc *time.Location

	// now is the only non-deterministic input: audit stamps and the staged
	// object's epoch suffix. Swappable in tests.
	now func() time.Time
}

// NewBuilder validates the pipeline configuration and returns a builder.
// Missing keys fail here, before any record is derived.
func NewBuilder(cfg *config.PipelineConfig) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &Builder{cfg: cfg, loc: loc, now: time.Now}, nil
}

// WithClock overrides the capture-time source.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build assembles the complete initial-state record for one window of the
// given target day.
func (b *Builder) Build(targetDay string, w window.Window) (*model.DriveRecord, error) {
	if !w.Start.Before(w.End) {
		return nil, fmt.Errorf("invalid window: start %v not before end %v", w.Start, w.End)
	}
	now := b.now().In(b.loc)

	sourceCategory := b.cfg.SourceCategory()
	stageCategory := b.stageCategory(w, now)
	targetCategory := b.targetCategory(w)
	pipelineId := PipelineId(b.cfg.Name, sourceCategory, stageCategory, targetCategory, w.Start, w.End)

	return &model.DriveRecord{
		PipelineId:               pipelineId,
		PipelineName:             b.cfg.Name,
		SourceCategory:           sourceCategory,
		StageCategory:            stageCategory,
		TargetCategory:           targetCategory,
		TargetDay:                targetDay,
		WindowStart:              w.Start,
		WindowEnd:                w.End,
		TimeInterval:             w.Interval(),
		CompletedPhase:           model.PhaseNotStarted,
		PipelineStatus:           model.StatusPending,
		PipelinePriority:         b.cfg.Priority,
		ContinuityCheckPerformed: model.ContinuityYes,
		CanAccessHistoricalData:  b.cfg.CanAccessHistoricalData,
		RecordFirstCreatedTime:   now,
		RecordLastUpdatedTime:    now,
	}, nil
}

// stageCategory is "<bucket>|s3://<bucket>/<prefix>/<date>/<time>/<indexID>_<epoch>.json".
// The epoch suffix is capture time, not window time.
func (b *Builder) stageCategory(w window.Window, now time.Time) string {
	path := fmt.Sprintf("s3://%s/%s/%s_%d.json",
		b.cfg.S3Bucket, windowPath(b.cfg.S3Prefix, w.Start), b.cfg.IndexID, now.Unix())
	return fmt.Sprintf("%s|%s", b.cfg.S3Bucket, path)
}

// targetCategory is "<db>.<schema>.<table>|<prefix>/<date>/<time>/".
func (b *Builder) targetCategory(w window.Window) string {
	return fmt.Sprintf("%s|%s/", b.cfg.TargetTablePath(), windowPath(b.cfg.S3Prefix, w.Start))
}

// windowPath renders "<join(prefix)>/<YYYY-MM-DD>/<HH-mm>" for a window start.
func windowPath(prefixList []string, start time.Time) string {
	return fmt.Sprintf("%s/%s/%s",
		strings.Join(prefixList, "/"),
		start.Format("2006-01-02"),
		start.Format("15-04"))
}

// StagePrefix is the staging key prefix for a record's window, with a
// trailing slash. Stage writes, stage cleanup, and the warehouse file-name
// match all key off this exact string.
func StagePrefix(prefixList []string, rec *model.DriveRecord) string {
	return windowPath(prefixList, rec.WindowStart) + "/"
}

// PipelineId hashes the record identity into the stable dedup key.
func PipelineId(name, sourceCategory, stageCategory, targetCategory string, start, end time.Time) string {
	base := strings.Join([]string{
		name,
		sourceCategory,
		stageCategory,
		targetCategory,
		start.Format(time.RFC3339),
		end.Format(time.RFC3339),
	}, "|")
	sum := sha256.Sum256([]byte(base))
	return hex.EncodeToString(sum[:])
}
