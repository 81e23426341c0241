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

	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/pkg/granularity"
)

// ReclaimStale returns in-flight records whose attempt outlived the
// acceptable process duration to PENDING, bumping their retry counter. A
// worker that died mid-record leaves exactly this signature: a start time
// with no end time. Runs before each pending fetch so reclaimed records are
// eligible again in the same cycle.
func (r *Runner) ReclaimStale(ctx context.Context) (int64, error) {
	acceptable, _ := granularity.Parse(r.cfg.AcceptableProcessDuration)
	now := r.now()
	olderThan := now.Add(-time.Duration(acceptable) * time.Second)

	reclaimed, err := r.repo.ReclaimStale(ctx, r.part, olderThan, now)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale records: %w", err)
	}
	if reclaimed > 0 {
		r.logger.Infow("reclaimed stale in-progress records",
			"pipeline", r.cfg.Name, "count", reclaimed,
			"acceptableDuration", r.cfg.AcceptableProcessDuration)
		if r.sink != nil {
			r.sink.StaleReclaimed.Add(float64(reclaimed))
		}
	}
	return reclaimed, nil
}
