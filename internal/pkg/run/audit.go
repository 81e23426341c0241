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

package run

import (
	"context"
	"fmt"
	"time"

	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/model"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/pkg/granularity"
)

// Audit is the final, never-skipped phase. It fetches the source count, waits
// for the target count to settle, and either closes the record or wipes both
// downstream locations and resets it for a fresh attempt. A count mismatch is
// an outcome, not an error.
func (r *Runner) Audit(ctx context.Context, rec *model.DriveRecord) error {
	sourceCount, err := r.source.Count(ctx, rec)
	if err != nil {
		return fmt.Errorf("audit source count: %w", err)
	}
	r.logger.Infow("audit: waiting for target ingestion",
		"pipelineId", rec.PipelineId, "sourceCount", sourceCount)

	targetCount, err := r.waitForTargetCount(ctx, rec, sourceCount)
	if err != nil {
		return err
	}

	if sourceCount == targetCount {
		if err := r.repo.UpdateAuditSuccess(ctx, rec.PipelineId, sourceCount, targetCount, r.now()); err != nil {
			return fmt.Errorf("record audit success: %w", err)
		}
		r.logger.Infow("audit passed, record closed",
			"pipelineId", rec.PipelineId, "count", sourceCount)
		r.countRecord("success")
		return nil
	}

	r.logger.Errorw("audit count mismatch, cleaning and resetting record",
		"pipelineId", rec.PipelineId,
		"sourceCount", sourceCount, "targetCount", targetCount)

	if err := r.stage.Clean(ctx, rec); err != nil {
		return fmt.Errorf("clean stage after mismatch: %w", err)
	}
	if err := r.loader.Clean(ctx, rec); err != nil {
		return fmt.Errorf("clean target after mismatch: %w", err)
	}

	if max := r.cfg.MaxRetryAttempts; max > 0 && rec.Retries()+1 > max {
		if err := r.repo.MarkFailedPermanent(ctx, rec.PipelineId, r.now()); err != nil {
			return fmt.Errorf("mark failed permanent: %w", err)
		}
		r.logger.Errorw("retry budget exhausted, record parked",
			"pipelineId", rec.PipelineId, "attempts", rec.Retries(), "max", max)
		r.countRecord("failed_permanent")
		return nil
	}

	if err := r.repo.ResetOnMismatch(ctx, rec.PipelineId, r.now()); err != nil {
		return fmt.Errorf("reset on mismatch: %w", err)
	}
	r.countRetryReset()
	r.countRecord("mismatch_reset")
	return nil
}

// waitForTargetCount polls the target count until it matches the source
// count, stops changing between polls, or the max wait elapses. The last
// observed count is returned either way.
func (r *Runner) waitForTargetCount(ctx context.Context, rec *model.DriveRecord, sourceCount int64) (int64, error) {
	interval, _ := granularity.Parse(r.cfg.IngestionCheckInterval)
	maxWait, _ := granularity.Parse(r.cfg.IngestionMaxWait)

	last, err := r.target.Count(ctx, rec)
	if err != nil {
		return 0, fmt.Errorf("audit target count: %w", err)
	}

	var elapsed int64
	for elapsed < maxWait {
		if last == sourceCount {
			return last, nil
		}
		if err := ctx.Err(); err != nil {
			return last, err
		}

		r.sleep(time.Duration(interval) * time.Second)
		elapsed += interval

		current, err := r.target.Count(ctx, rec)
		if err != nil {
			return last, fmt.Errorf("audit target count: %w", err)
		}
		r.logger.Infow("audit: target count checked",
			"pipelineId", rec.PipelineId,
			"targetCount", current, "sourceCount", sourceCount, "elapsedSeconds", elapsed)

		// An unchanged count means ingestion has finished or stalled;
		// waiting longer cannot change the verdict.
		if current == last {
			return current, nil
		}
		last = current
	}

	r.logger.Warnw("audit: max wait reached",
		"pipelineId", rec.PipelineId, "targetCount", last, "elapsedSeconds", elapsed)
	return last, nil
}
