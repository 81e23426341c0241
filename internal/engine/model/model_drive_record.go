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

package model

import (
	"time"
)

// Phase is the high-water mark of a record's progress through the ingestion
// phases. The zero value means no phase has completed yet.
type Phase string

const (
	PhaseNotStarted    Phase = ""
	PhasePreValidation Phase = "PRE_VALIDATION"
	PhaseSourceToStage Phase = "SOURCE_TO_STAGE"
	PhaseStageToTarget Phase = "STAGE_TO_TARGET"
	PhaseAudit         Phase = "AUDIT"
)

var phaseOrder = map[Phase]int{
	PhaseNotStarted:    0,
	PhasePreValidation: 1,
	PhaseSourceToStage: 2,
	PhaseStageToTarget: 3,
	PhaseAudit:         4,
}

// Valid reports whether p is a member of the closed phase set.
func (p Phase) Valid() bool {
	_, ok := phaseOrder[p]
	return ok
}

// Reached reports whether p is at or past the given phase.
func (p Phase) Reached(other Phase) bool {
	return phaseOrder[p] >= phaseOrder[other]
}

// Next returns the phase that follows p. Audit is terminal.
func (p Phase) Next() Phase {
	switch p {
	case PhaseNotStarted:
		return PhasePreValidation
	case PhasePreValidation:
		return PhaseSourceToStage
	case PhaseSourceToStage:
		return PhaseStageToTarget
	default:
		return PhaseAudit
	}
}

// Pipeline status values. "In progress" is not a stored status: a record with
// a start time and no end time is in flight.
const (
	StatusPending         = "PENDING"
	StatusSuccess         = "SUCCESS"
	StatusFailedPermanent = "FAILED_PERMANENT"
)

// Audit result values.
const (
	AuditSuccess = "SUCCESS"
)

// Continuity flag values.
const (
	ContinuityYes = "YES"
	ContinuityNo  = "NO"
)

// DriveRecord is one row of the drive table: a single time window of a single
// target day for one logical pipeline. The record doubles as work-queue entry
// and audit trail.
type DriveRecord struct {
	Id                       uint       `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	PipelineId               string     `gorm:"column:pipeline_id;size:64;uniqueIndex" json:"pipelineId"`
	PipelineName             string     `gorm:"column:pipeline_name;size:128;index:idx_partition" json:"pipelineName"`
	SourceCategory           string     `gorm:"column:source_complete_category;size:256;index:idx_partition" json:"sourceCategory"`
	StageCategory            string     `gorm:"column:stage_complete_category;size:512" json:"stageCategory"`
	TargetCategory           string     `gorm:"column:target_complete_category;size:512" json:"targetCategory"`
	TargetDay                string     `gorm:"column:target_day;size:10;index" json:"targetDay"` // YYYY-MM-DD
	WindowStart              time.Time  `gorm:"column:window_start_time" json:"windowStart"`
	WindowEnd                time.Time  `gorm:"column:window_end_time" json:"windowEnd"`
	TimeInterval             string     `gorm:"column:time_interval;size:32" json:"timeInterval"`
	CompletedPhase           Phase      `gorm:"column:completed_phase;size:32" json:"completedPhase"`
	CompletedPhaseDuration   string     `gorm:"column:completed_phase_duration;size:32" json:"completedPhaseDuration"`
	PipelineStatus           string     `gorm:"column:pipeline_status;size:32;index" json:"pipelineStatus"`
	PipelineStartTime        *time.Time `gorm:"column:pipeline_start_time" json:"pipelineStartTime"`
	PipelineEndTime          *time.Time `gorm:"column:pipeline_end_time" json:"pipelineEndTime"`
	PipelinePriority         float64    `gorm:"column:pipeline_priority;index:idx_partition" json:"pipelinePriority"`
	ContinuityCheckPerformed string     `gorm:"column:continuity_check_performed;size:3" json:"continuityCheckPerformed"`
	CanAccessHistoricalData  string     `gorm:"column:can_access_historical_data;size:3" json:"canAccessHistoricalData"`
	SourceCount              *int64     `gorm:"column:source_count" json:"sourceCount"`
	TargetCount              *int64     `gorm:"column:target_count" json:"targetCount"`
	CountDiff                *int64     `gorm:"column:count_diff" json:"countDiff"`
	CountDiffPercentage      *float64   `gorm:"column:count_diff_percentage" json:"countDiffPercentage"`
	AuditResult              *string    `gorm:"column:audit_result;size:32" json:"auditResult"`
	RetryAttempt             *int       `gorm:"column:retry_attempt" json:"retryAttempt"`
	RecordFirstCreatedTime   time.Time  `gorm:"column:record_first_created_time" json:"recordFirstCreatedTime"`
	RecordLastUpdatedTime    time.Time  `gorm:"column:record_last_updated_time" json:"recordLastUpdatedTime"`
}

func (DriveRecord) TableName() string {
	return "t_drive_record"
}

// InProgress reports whether an attempt is currently running (or died without
// finishing): started but never finished.
func (r *DriveRecord) InProgress() bool {
	return r.PipelineStartTime != nil && r.PipelineEndTime == nil
}

// Retries returns the retry counter, treating null as zero.
func (r *DriveRecord) Retries() int {
	if r.RetryAttempt == nil {
		return 0
	}
	return *r.RetryAttempt
}
