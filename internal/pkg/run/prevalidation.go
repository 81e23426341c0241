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

	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/model"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/pkg/granularity"
)

// Outcome is the pre-validation verdict for one record. A record whose source
// and target already agree needs no transfer at all.
type Outcome int

const (
	NeedsTransfer Outcome = iota
	AlreadyComplete
)

func (o Outcome) String() string {
	if o == AlreadyComplete {
		return "already_complete"
	}
	return "needs_transfer"
}

// PreValidate compares current source and target counts for the record's
// window. Equal counts close the record on the spot; unequal counts persist
// the numbers and hand the record on to the transfer phases.
func (r *Runner) PreValidate(ctx context.Context, rec *model.DriveRecord) (Outcome, error) {
	started := r.now()

	sourceCount, err := r.source.Count(ctx, rec)
	if err != nil {
		return NeedsTransfer, fmt.Errorf("source count: %w", err)
	}
	targetCount, err := r.target.Count(ctx, rec)
	if err != nil {
		return NeedsTransfer, fmt.Errorf("target count: %w", err)
	}

	if sourceCount == targetCount {
		if err := r.repo.MarkPreValidationSuccess(ctx, rec.PipelineId, sourceCount, targetCount, r.now()); err != nil {
			return AlreadyComplete, fmt.Errorf("mark pre-validation success: %w", err)
		}
		r.logger.Infow("pre-validation: counts already match, record closed",
			"pipelineId", rec.PipelineId, "count", sourceCount)
		r.countRecord("already_complete")
		return AlreadyComplete, nil
	}

	duration := granularity.Render(int64(r.now().Sub(started).Seconds()))
	if err := r.repo.UpdatePreValidation(ctx, rec.PipelineId, sourceCount, targetCount, duration); err != nil {
		return NeedsTransfer, fmt.Errorf("update pre-validation: %w", err)
	}
	r.logger.Infow("pre-validation: transfer needed",
		"pipelineId", rec.PipelineId,
		"sourceCount", sourceCount, "targetCount", targetCount)
	return NeedsTransfer, nil
}

// PreValidateBatch runs pre-validation over all fetched records and returns
// the ones that still need transfer work. One record's failure never stops
// the batch; failed records are skipped this cycle and retried on the next.
func (r *Runner) PreValidateBatch(ctx context.Context, records []*model.DriveRecord) []*model.DriveRecord {
	remaining := make([]*model.DriveRecord, 0, len(records))
	for _, rec := range records {
		outcome, err := r.PreValidate(ctx, rec)
		if err != nil {
			r.logger.Errorw("pre-validation failed, skipping record this cycle",
				"pipelineId", rec.PipelineId, "err", err)
			continue
		}
		if outcome == NeedsTransfer {
			remaining = append(remaining, rec)
		}
	}
	r.logger.Infow("pre-validation batch done",
		"fetched", len(records), "needTransfer", len(remaining))
	return remaining
}
