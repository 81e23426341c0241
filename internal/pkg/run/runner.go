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
	"time"

	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/config"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/repo"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/pkg/log"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/pkg/metrics"
)

// Runner executes the phase state machine for single records. It holds no
// per-record state and is safe for concurrent use by the scheduler's workers.
type Runner struct {
	cfg    *config.PipelineConfig
	repo   repo.IDriveTableRepository
	source SourceCounter
	target TargetCounter
	stage  StageStore
	loader TargetStore
	logger *log.Logger
	sink   *metrics.Sink
	part   repo.Partition

	now   func() time.Time
	sleep func(time.Duration)
}

// NewRunner wires the phase executor. sink may be nil when metrics are off.
func NewRunner(
	cfg *config.PipelineConfig,
	r repo.IDriveTableRepository,
	source SourceCounter,
	target TargetCounter,
	stage StageStore,
	loader TargetStore,
	logger *log.Logger,
	sink *metrics.Sink,
) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewLogger()
	}
	return &Runner{
		cfg:    cfg,
		repo:   r,
		source: source,
		target: target,
		stage:  stage,
		loader: loader,
		logger: logger,
		sink:   sink,
		part: repo.Partition{
			Name:           cfg.Name,
			SourceCategory: cfg.SourceCategory(),
			Priority:       cfg.Priority,
		},
		now:   time.Now,
		sleep: time.Sleep,
	}, nil
}

// WithClock overrides the time source and the sleeper together, for tests.
func (r *Runner) WithClock(now func() time.Time, sleep func(time.Duration)) *Runner {
	r.now = now
	r.sleep = sleep
	return r
}

func (r *Runner) countRecord(result string) {
	if r.sink != nil {
		r.sink.RecordsProcessed.WithLabelValues(result).Inc()
	}
}

func (r *Runner) countRetryReset() {
	if r.sink != nil {
		r.sink.RetryResets.Inc()
	}
}
