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

// SourceToStage exports the record's window from the source into the staging
// location. The location is cleaned before the write and again on failure, so
// a retry always starts from empty.
func (r *Runner) SourceToStage(ctx context.Context, rec *model.DriveRecord) error {
	if rec.CompletedPhase.Reached(model.PhaseSourceToStage) {
		r.logger.Infow("source-to-stage already complete, skipping",
			"pipelineId", rec.PipelineId)
		return nil
	}
	started := r.now()

	if err := r.stage.Clean(ctx, rec); err != nil {
		return fmt.Errorf("clean stage before transfer: %w", err)
	}
	r.logger.Infow("starting source-to-stage transfer", "pipelineId", rec.PipelineId)

	if err := r.stage.Transfer(ctx, rec); err != nil {
		r.logger.Errorw("source-to-stage transfer failed, cleaning stage",
			"pipelineId", rec.PipelineId, "err", err)
		if cleanErr := r.stage.Clean(ctx, rec); cleanErr != nil {
			r.logger.Errorw("stage cleanup after failure also failed",
				"pipelineId", rec.PipelineId, "err", cleanErr)
		}
		return fmt.Errorf("source-to-stage transfer: %w", err)
	}

	duration := granularity.Render(int64(r.now().Sub(started).Seconds()))
	if err := r.repo.MarkPhaseComplete(ctx, rec.PipelineId, model.PhaseSourceToStage, duration); err != nil {
		return fmt.Errorf("mark source-to-stage complete: %w", err)
	}
	rec.CompletedPhase = model.PhaseSourceToStage
	r.logger.Infow("source-to-stage complete",
		"pipelineId", rec.PipelineId, "duration", duration)
	return nil
}

// StageToTarget loads the staged window into the warehouse and waits for the
// asynchronous load to finish. Target rows for the window's file prefix are
// removed before the load and again on failure.
func (r *Runner) StageToTarget(ctx context.Context, rec *model.DriveRecord) error {
	if rec.CompletedPhase.Reached(model.PhaseStageToTarget) {
		r.logger.Infow("stage-to-target already complete, skipping",
			"pipelineId", rec.PipelineId)
		return nil
	}
	started := r.now()

	if err := r.loader.Clean(ctx, rec); err != nil {
		return fmt.Errorf("clean target before load: %w", err)
	}
	r.logger.Infow("starting stage-to-target load", "pipelineId", rec.PipelineId)

	if err := r.loader.Load(ctx, rec); err != nil {
		r.logger.Errorw("stage-to-target load failed, cleaning target",
			"pipelineId", rec.PipelineId, "err", err)
		if cleanErr := r.loader.Clean(ctx, rec); cleanErr != nil {
			r.logger.Errorw("target cleanup after failure also failed",
				"pipelineId", rec.PipelineId, "err", cleanErr)
		}
		return fmt.Errorf("stage-to-target load: %w", err)
	}

	duration := granularity.Render(int64(r.now().Sub(started).Seconds()))
	if err := r.repo.MarkPhaseComplete(ctx, rec.PipelineId, model.PhaseStageToTarget, duration); err != nil {
		return fmt.Errorf("mark stage-to-target complete: %w", err)
	}
	rec.CompletedPhase = model.PhaseStageToTarget
	r.logger.Infow("stage-to-target complete",
		"pipelineId", rec.PipelineId, "duration", duration)
	return nil
}

// Process runs one record end to end through the transfer and audit phases.
// Pre-validation has already happened by the time a record gets here.
func (r *Runner) Process(ctx context.Context, rec *model.DriveRecord) error {
	if err := r.repo.MarkStarted(ctx, rec.PipelineId, r.now()); err != nil {
		return fmt.Errorf("mark started: %w", err)
	}
	if err := r.SourceToStage(ctx, rec); err != nil {
		return err
	}
	if err := r.StageToTarget(ctx, rec); err != nil {
		return err
	}
	return r.Audit(ctx, rec)
}
