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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/pkg/granularity"
)

// RunCycle executes one full scheduling pass:
//
//  1. reclaim stale in-progress records
//  2. fetch pending records whose window is old enough to be final
//  3. pre-validate the batch, closing records that already landed
//  4. drive the remaining records through the phases on a bounded pool
//
// Worker failures are isolated per record; the returned error joins them so
// the exit status still reflects an imperfect cycle.
func (r *Runner) RunCycle(ctx context.Context) error {
	cycleId := uuid.NewString()
	r.logger.Infow("run cycle started", "pipeline", r.cfg.Name, "cycleId", cycleId)

	if _, err := r.ReclaimStale(ctx); err != nil {
		return err
	}

	records, err := r.repo.FetchPending(ctx, r.part, r.pendingCutoff(), r.cfg.Limit)
	if err != nil {
		return fmt.Errorf("fetch pending records: %w", err)
	}
	if r.sink != nil {
		r.sink.PendingFetched.Set(float64(len(records)))
	}
	if len(records) == 0 {
		r.logger.Infow("no pending records", "pipeline", r.cfg.Name, "cycleId", cycleId)
		return nil
	}

	remaining := r.PreValidateBatch(ctx, records)
	if len(remaining) == 0 {
		r.logger.Infow("nothing left after pre-validation",
			"pipeline", r.cfg.Name, "cycleId", cycleId)
		return nil
	}

	parallel := r.cfg.ParallelRuns
	r.logger.Infow("dispatching records to worker pool",
		"cycleId", cycleId, "records", len(remaining), "parallelRuns", parallel)

	var (
		mu       sync.Mutex
		failures []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for index, rec := range remaining {
		index, rec := index, rec
		g.Go(func() error {
			// Deterministic stagger keyed to pool slot, so concurrent
			// workers do not hit source and target in the same instant.
			slot := index % parallel
			if pause := time.Duration(slot*r.cfg.PauseBaseSeconds) * time.Second; pause > 0 {
				r.logger.Infow("staggered start",
					"pipelineId", rec.PipelineId, "slot", slot, "pause", pause)
				r.sleep(pause)
			}

			if err := r.Process(gctx, rec); err != nil {
				r.logger.Errorw("record processing failed",
					"pipelineId", rec.PipelineId, "cycleId", cycleId, "err", err)
				r.countRecord("error")
				mu.Lock()
				failures = append(failures, fmt.Errorf("record %s: %w", rec.PipelineId, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Infow("run cycle finished",
		"pipeline", r.cfg.Name, "cycleId", cycleId,
		"processed", len(remaining), "failed", len(failures))
	return errors.Join(failures...)
}

// pendingCutoff is the newest window end eligible for processing. The extra
// granularity beyond the x-time-back lag is a stability buffer: only windows
// whose data is old enough to be final get picked up.
func (r *Runner) pendingCutoff() time.Time {
	lag, _ := granularity.Parse(r.cfg.XTimeBack)
	gran := r.cfg.GranularitySeconds()
	return r.now().Add(-time.Duration(lag+gran) * time.Second)
}
