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

// Package continuity keeps the drive table gapless. Each populate pass
// anchors the forward edge at the required day, rebuilds days whose records
// lack the continuity vouch, and fills holes between the oldest and newest
// observed days. The pass is stateless and safe to re-run.
package continuity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/config"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/model"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/repo"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/pkg/record"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/pkg/window"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/pkg/log"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/pkg/metrics"
)

const dayFormat = "2006-01-02"

// Engine populates and repairs one pipeline's slice of the drive table.
type Engine struct {
	cfg     *config.PipelineConfig
	repo    repo.IDriveTableRepository
	builder *record.Builder
	logger  *log.Logger
	sink    *metrics.Sink
	loc     *time.Location
	part    repo.Partition

	now func() time.Time
}

// NewEngine validates the pipeline configuration and wires the engine. A nil
// sink disables metrics.
func NewEngine(cfg *config.PipelineConfig, r repo.IDriveTableRepository, logger *log.Logger, sink *metrics.Sink) (*Engine, error) {
	builder, err := record.NewBuilder(cfg)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewLogger()
	}
	return &Engine{
		cfg:     cfg,
		repo:    r,
		builder: builder,
		logger:  logger,
		sink:    sink,
		loc:     loc,
		part: repo.Partition{
			Name:           cfg.Name,
			SourceCategory: cfg.SourceCategory(),
			Priority:       cfg.Priority,
		},
		now: time.Now,
	}, nil
}

// WithClock overrides the time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) countRebuilt(reason string) {
	if e.sink != nil {
		e.sink.DaysRebuilt.WithLabelValues(reason).Inc()
	}
}

// RequiredDay is the day the forward edge must cover: today in the pipeline
// timezone, pulled back by the x-time-back lag.
func (e *Engine) RequiredDay() string {
	lag := time.Duration(e.cfg.XTimeBackSeconds()) * time.Second
	return e.now().In(e.loc).Add(-lag).Format(dayFormat)
}

// Populate runs one full continuity pass: required-day reconciliation, the
// incomplete-day sweep, then the missing-day sweep. A day that fails to
// regenerate never stops the others; the joined error reports them all.
func (e *Engine) Populate(ctx context.Context) error {
	requiredDay := e.RequiredDay()
	e.logger.Infow("continuity pass started",
		"pipeline", e.cfg.Name, "requiredDay", requiredDay)

	var errs []error

	if err := e.reconcileRequiredDay(ctx, requiredDay); err != nil {
		errs = append(errs, fmt.Errorf("required day %s: %w", requiredDay, err))
	}

	incomplete, err := e.repo.IncompleteDays(ctx, e.part)
	if err != nil {
		errs = append(errs, fmt.Errorf("fetch incomplete days: %w", err))
	}
	for _, day := range incomplete {
		if day == requiredDay {
			continue
		}
		e.logger.Infow("rebuilding incomplete day", "pipeline", e.cfg.Name, "day", day)
		if err := e.regenerateDay(ctx, day, true, "incomplete"); err != nil {
			e.logger.Errorw("incomplete day rebuild failed", "day", day, "err", err)
			errs = append(errs, fmt.Errorf("incomplete day %s: %w", day, err))
		}
	}

	allDays, err := e.repo.AllDays(ctx, e.part)
	if err != nil {
		errs = append(errs, fmt.Errorf("fetch all days: %w", err))
	} else {
		for _, day := range FindMissingDays(allDays) {
			e.logger.Infow("filling missing day", "pipeline", e.cfg.Name, "day", day)
			if err := e.regenerateDay(ctx, day, false, "missing"); err != nil {
				e.logger.Errorw("missing day fill failed", "day", day, "err", err)
				errs = append(errs, fmt.Errorf("missing day %s: %w", day, err))
			}
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	e.logger.Infow("continuity ensured", "pipeline", e.cfg.Name)
	return nil
}

// reconcileRequiredDay rebuilds the forward-edge day unless every record it
// holds already carries the continuity vouch.
func (e *Engine) reconcileRequiredDay(ctx context.Context, day string) error {
	n, err := e.repo.CountIncomplete(ctx, e.part, day)
	if err != nil {
		return fmt.Errorf("count incomplete: %w", err)
	}
	days, err := e.repo.AllDays(ctx, e.part)
	if err != nil {
		return fmt.Errorf("fetch all days: %w", err)
	}
	exists := false
	for _, d := range days {
		if d == day {
			exists = true
			break
		}
	}
	if exists && n == 0 {
		e.logger.Infow("required day already complete", "pipeline", e.cfg.Name, "day", day)
		return nil
	}
	return e.regenerateDay(ctx, day, exists, "required")
}

// regenerateDay rebuilds one target day from scratch. With deleteFirst the
// day's current records go away before the insert; the insert itself skips
// ids that already exist, so a replay never duplicates.
func (e *Engine) regenerateDay(ctx context.Context, day string, deleteFirst bool, reason string) error {
	if deleteFirst {
		deleted, err := e.repo.DeleteDay(ctx, e.part, day)
		if err != nil {
			return fmt.Errorf("delete day: %w", err)
		}
		if deleted > 0 {
			e.logger.Infow("deleted day records", "day", day, "count", deleted)
		}
	}

	records, err := e.GenerateDay(day)
	if err != nil {
		return err
	}
	if err := e.repo.BulkInsert(ctx, records); err != nil {
		return fmt.Errorf("bulk insert: %w", err)
	}
	e.logger.Infow("generated day records", "day", day, "count", len(records))
	e.countRebuilt(reason)
	return nil
}

// GenerateDay builds the complete chronological record set for one target
// day, without touching the ledger.
func (e *Engine) GenerateDay(day string) ([]*model.DriveRecord, error) {
	dayStart, err := window.DayStart(day, e.loc)
	if err != nil {
		return nil, err
	}
	windows := window.ForDay(dayStart, e.cfg.GranularitySeconds())
	records := make([]*model.DriveRecord, 0, len(windows))
	for _, w := range windows {
		rec, err := e.builder.Build(day, w)
		if err != nil {
			return nil, fmt.Errorf("build record for window %s: %w", w.Start, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// FindMissingDays returns the days absent from the inclusive [min, max] range
// of the given day strings, ascending. Unknown territory before the oldest or
// after the newest observed day is never synthesized here.
func FindMissingDays(existing []string) []string {
	if len(existing) < 2 {
		return nil
	}
	seen := make(map[string]struct{}, len(existing))
	var minDay, maxDay time.Time
	for _, d := range existing {
		t, err := time.ParseInLocation(dayFormat, d, time.UTC)
		if err != nil {
			continue
		}
		if len(seen) == 0 {
			minDay, maxDay = t, t
		} else {
			if t.Before(minDay) {
				minDay = t
			}
			if t.After(maxDay) {
				maxDay = t
			}
		}
		seen[d] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}

	var missing []string
	for d := minDay; !d.After(maxDay); d = d.AddDate(0, 0, 1) {
		key := d.Format(dayFormat)
		if _, ok := seen[key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}
