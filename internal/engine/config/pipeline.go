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

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/pkg/granularity"
)

// ErrMissingKey reports a required pipeline configuration key that is absent.
// Record building and day calculations fail fast on it before touching the
// ledger.
var ErrMissingKey = errors.New("missing required config key")

// PipelineConfig carries the identity, naming, and scheduling knobs of one
// logical pipeline. A single deployment runs exactly one of these; several
// deployments may share the drive table, partitioned by
// (name, source category, priority).
type PipelineConfig struct {
	Name     string  `mapstructure:"name"`
	Timezone string  `mapstructure:"timezone"`
	Priority float64 `mapstructure:"priority"`

	// Window geometry and the forward-edge lag.
	Granularity string `mapstructure:"granularity"`
	XTimeBack   string `mapstructure:"xTimeBack"`

	// Source dataset identity.
	IndexGroup string `mapstructure:"indexGroup"`
	IndexName  string `mapstructure:"indexName"`
	IndexID    string `mapstructure:"indexID"`

	// Staging path components.
	S3Bucket string   `mapstructure:"s3Bucket"`
	S3Prefix []string `mapstructure:"s3Prefix"`

	// Target table identity.
	TargetDatabase string `mapstructure:"targetDatabase"`
	TargetSchema   string `mapstructure:"targetSchema"`
	TargetTable    string `mapstructure:"targetTable"`

	CanAccessHistoricalData string `mapstructure:"canAccessHistoricalData"`

	// Run scheduler knobs.
	Limit                     int    `mapstructure:"limit"`
	ParallelRuns              int    `mapstructure:"parallelRuns"`
	PauseBaseSeconds          int    `mapstructure:"pauseBaseSeconds"`
	AcceptableProcessDuration string `mapstructure:"acceptableProcessDuration"`
	IngestionCheckInterval    string `mapstructure:"ingestionCheckInterval"`
	IngestionMaxWait          string `mapstructure:"ingestionMaxWait"`

	// Mismatch resets past this count park the record as FAILED_PERMANENT.
	// 0 disables the cap.
	MaxRetryAttempts int `mapstructure:"maxRetryAttempts"`
}

// SetDefaults fills zero-valued optional fields.
func (p *PipelineConfig) SetDefaults() {
	if p.Timezone == "" {
		p.Timezone = "UTC"
	}
	if p.Priority == 0 {
		p.Priority = 1.3
	}
	if p.CanAccessHistoricalData == "" {
		p.CanAccessHistoricalData = "YES"
	}
	if p.Limit <= 0 {
		p.Limit = 10
	}
	if p.ParallelRuns <= 0 {
		p.ParallelRuns = 2
	}
	if p.PauseBaseSeconds < 0 {
		p.PauseBaseSeconds = 0
	}
	if p.AcceptableProcessDuration == "" {
		p.AcceptableProcessDuration = "1h"
	}
	if p.IngestionCheckInterval == "" {
		p.IngestionCheckInterval = "2m"
	}
	if p.IngestionMaxWait == "" {
		p.IngestionMaxWait = "15m"
	}
}

// Validate checks the required keys and duration grammars.
func (p *PipelineConfig) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"pipeline.name", p.Name},
		{"pipeline.granularity", p.Granularity},
		{"pipeline.xTimeBack", p.XTimeBack},
		{"pipeline.indexGroup", p.IndexGroup},
		{"pipeline.indexName", p.IndexName},
		{"pipeline.indexID", p.IndexID},
		{"pipeline.s3Bucket", p.S3Bucket},
		{"pipeline.targetDatabase", p.TargetDatabase},
		{"pipeline.targetSchema", p.TargetSchema},
		{"pipeline.targetTable", p.TargetTable},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingKey, r.key)
		}
	}
	if len(p.S3Prefix) == 0 {
		return fmt.Errorf("%w: pipeline.s3Prefix", ErrMissingKey)
	}
	for _, g := range []struct {
		key   string
		value string
	}{
		{"pipeline.granularity", p.Granularity},
		{"pipeline.xTimeBack", p.XTimeBack},
		{"pipeline.acceptableProcessDuration", p.AcceptableProcessDuration},
		{"pipeline.ingestionCheckInterval", p.IngestionCheckInterval},
		{"pipeline.ingestionMaxWait", p.IngestionMaxWait},
	} {
		if _, err := granularity.Parse(g.value); err != nil {
			return fmt.Errorf("%s: %w", g.key, err)
		}
	}
	if _, err := p.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured timezone.
func (p *PipelineConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline.timezone %q: %w", p.Timezone, err)
	}
	return loc, nil
}

// SourceCategory returns the source dataset identity string.
func (p *PipelineConfig) SourceCategory() string {
	return fmt.Sprintf("%s|%s", p.IndexGroup, p.IndexName)
}

// TargetTablePath returns the fully qualified target table name.
func (p *PipelineConfig) TargetTablePath() string {
	return fmt.Sprintf("%s.%s.%s", p.TargetDatabase, p.TargetSchema, p.TargetTable)
}

// GranularitySeconds parses the window size. Validate guarantees it parses.
func (p *PipelineConfig) GranularitySeconds() int64 {
	secs, _ := granularity.Parse(p.Granularity)
	return secs
}

// XTimeBackSeconds parses the forward-edge lag. Validate guarantees it parses.
func (p *PipelineConfig) XTimeBackSeconds() int64 {
	secs, _ := granularity.Parse(p.XTimeBack)
	return secs
}
