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

package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/model"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/pkg/database"
)

// Partition identifies one logical pipeline's slice of the shared drive
// table. Every query below is scoped to it so co-tenant pipelines never see
// each other's rows.
type Partition struct {
	Name           string
	SourceCategory string
	Priority       float64
}

// IDriveTableRepository defines persistence methods for the drive table.
type IDriveTableRepository interface {
	BulkInsert(ctx context.Context, records []*model.DriveRecord) error
	DeleteDay(ctx context.Context, part Partition, targetDay string) (int64, error)
	Get(ctx context.Context, pipelineId string) (*model.DriveRecord, error)
	UpdateFields(ctx context.Context, pipelineId string, updates map[string]any) error

	AllDays(ctx context.Context, part Partition) ([]string, error)
	IncompleteDays(ctx context.Context, part Partition) ([]string, error)
	CountIncomplete(ctx context.Context, part Partition, targetDay string) (int64, error)

	FetchPending(ctx context.Context, part Partition, cutoff time.Time, limit int) ([]*model.DriveRecord, error)
	FetchInProgress(ctx context.Context, part Partition) ([]*model.DriveRecord, error)

	MarkStarted(ctx context.Context, pipelineId string, at time.Time) error
	MarkPhaseComplete(ctx context.Context, pipelineId string, phase model.Phase, duration string) error
	MarkPreValidationSuccess(ctx context.Context, pipelineId string, sourceCount, targetCount int64, at time.Time) error
	UpdatePreValidation(ctx context.Context, pipelineId string, sourceCount, targetCount int64, duration string) error
	UpdateAuditSuccess(ctx context.Context, pipelineId string, sourceCount, targetCount int64, at time.Time) error
	ResetOnMismatch(ctx context.Context, pipelineId string, at time.Time) error
	MarkFailedPermanent(ctx context.Context, pipelineId string, at time.Time) error
	ReclaimStale(ctx context.Context, part Partition, olderThan, at time.Time) (int64, error)
}

type DriveTableRepo struct {
	database.IDatabase
}

// NewDriveTableRepo creates the drive table repository.
func NewDriveTableRepo(db database.IDatabase) IDriveTableRepository {
	return &DriveTableRepo{IDatabase: db}
}

func (r *DriveTableRepo) scoped(ctx context.Context, part Partition) *gorm.DB {
	return r.Database().WithContext(ctx).
		Model(&model.DriveRecord{}).
		Where("pipeline_name = ? AND source_complete_category = ? AND pipeline_priority = ?",
			part.Name, part.SourceCategory, part.Priority)
}

// incompleteCond marks records a continuity pass has not vouched for yet.
// Day completeness is about the flag, not pipeline status: a freshly
// regenerated day is complete even though all its records are PENDING.
const incompleteCond = "continuity_check_performed <> ?"

// BulkInsert writes records, silently skipping ids that already exist. Day
// regeneration relies on this to be re-runnable.
func (r *DriveTableRepo) BulkInsert(ctx context.Context, records []*model.DriveRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.Database().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pipeline_id"}},
			DoNothing: true,
		}).
		CreateInBatches(records, 200).Error
}

// DeleteDay removes every record of a target day and returns how many went.
func (r *DriveTableRepo) DeleteDay(ctx context.Context, part Partition, targetDay string) (int64, error) {
	tx := r.scoped(ctx, part).
		Where("target_day = ?", targetDay).
		Delete(&model.DriveRecord{})
	return tx.RowsAffected, tx.Error
}

// Get returns a record by pipelineId.
func (r *DriveTableRepo) Get(ctx context.Context, pipelineId string) (*model.DriveRecord, error) {
	var one model.DriveRecord
	if err := r.Database().WithContext(ctx).
		Where("pipeline_id = ?", pipelineId).
		First(&one).Error; err != nil {
		return nil, err
	}
	return &one, nil
}

// UpdateFields applies arbitrary column updates to one record and stamps the
// last-updated time.
func (r *DriveTableRepo) UpdateFields(ctx context.Context, pipelineId string, updates map[string]any) error {
	if _, ok := updates["record_last_updated_time"]; !ok {
		updates["record_last_updated_time"] = time.Now().UTC()
	}
	return r.Database().WithContext(ctx).
		Model(&model.DriveRecord{}).
		Where("pipeline_id = ?", pipelineId).
		Updates(updates).Error
}

// AllDays returns every distinct target day in the partition, ascending.
func (r *DriveTableRepo) AllDays(ctx context.Context, part Partition) ([]string, error) {
	var days []string
	err := r.scoped(ctx, part).
		Distinct("target_day").
		Order("target_day").
		Pluck("target_day", &days).Error
	return days, err
}

// IncompleteDays returns the distinct target days that still hold records
// without a continuity vouch, ascending.
func (r *DriveTableRepo) IncompleteDays(ctx context.Context, part Partition) ([]string, error) {
	var days []string
	err := r.scoped(ctx, part).
		Where(incompleteCond, model.ContinuityYes).
		Distinct("target_day").
		Order("target_day").
		Pluck("target_day", &days).Error
	return days, err
}

// CountIncomplete returns how many records of a target day lack the
// continuity vouch.
func (r *DriveTableRepo) CountIncomplete(ctx context.Context, part Partition, targetDay string) (int64, error) {
	var n int64
	err := r.scoped(ctx, part).
		Where("target_day = ?", targetDay).
		Where(incompleteCond, model.ContinuityYes).
		Count(&n).Error
	return n, err
}

// FetchPending returns unstarted PENDING records whose window has fully
// elapsed, oldest first.
func (r *DriveTableRepo) FetchPending(ctx context.Context, part Partition, cutoff time.Time, limit int) ([]*model.DriveRecord, error) {
	var records []*model.DriveRecord
	err := r.scoped(ctx, part).
		Where("pipeline_status = ? AND pipeline_start_time IS NULL AND window_end_time <= ?",
			model.StatusPending, cutoff).
		Order("target_day, window_start_time").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// FetchInProgress returns records with a start time but no end time.
func (r *DriveTableRepo) FetchInProgress(ctx context.Context, part Partition) ([]*model.DriveRecord, error) {
	var records []*model.DriveRecord
	err := r.scoped(ctx, part).
		Where("pipeline_start_time IS NOT NULL AND pipeline_end_time IS NULL").
		Order("pipeline_start_time").
		Find(&records).Error
	return records, err
}

// MarkStarted stamps the attempt start and clears any stale end time.
func (r *DriveTableRepo) MarkStarted(ctx context.Context, pipelineId string, at time.Time) error {
	return r.UpdateFields(ctx, pipelineId, map[string]any{
		"pipeline_start_time": at,
		"pipeline_end_time":   nil,
	})
}

// MarkPhaseComplete advances the phase high-water mark.
func (r *DriveTableRepo) MarkPhaseComplete(ctx context.Context, pipelineId string, phase model.Phase, duration string) error {
	return r.UpdateFields(ctx, pipelineId, map[string]any{
		"completed_phase":          phase,
		"completed_phase_duration": duration,
	})
}

// diffPct is the count divergence as a percentage of the source. Undefined
// (null) when the source window is empty.
func diffPct(sourceCount, diff int64) any {
	if sourceCount == 0 {
		return nil
	}
	return float64(diff) / float64(sourceCount) * 100
}

// MarkPreValidationSuccess closes a record on the fast path: source and
// target already agree, so no transfer happens.
func (r *DriveTableRepo) MarkPreValidationSuccess(ctx context.Context, pipelineId string, sourceCount, targetCount int64, at time.Time) error {
	diff := sourceCount - targetCount
	return r.UpdateFields(ctx, pipelineId, map[string]any{
		"completed_phase":       model.PhaseAudit,
		"pipeline_status":       model.StatusSuccess,
		"audit_result":          model.AuditSuccess,
		"source_count":          sourceCount,
		"target_count":          targetCount,
		"count_diff":            diff,
		"count_diff_percentage": diffPct(sourceCount, diff),
		"pipeline_end_time":     at,
	})
}

// UpdatePreValidation records both counts for a record that does need a
// transfer and advances the phase mark.
func (r *DriveTableRepo) UpdatePreValidation(ctx context.Context, pipelineId string, sourceCount, targetCount int64, duration string) error {
	diff := sourceCount - targetCount
	return r.UpdateFields(ctx, pipelineId, map[string]any{
		"completed_phase":          model.PhasePreValidation,
		"completed_phase_duration": duration,
		"source_count":             sourceCount,
		"target_count":             targetCount,
		"count_diff":               diff,
		"count_diff_percentage":    diffPct(sourceCount, diff),
	})
}

// UpdateAuditSuccess closes a record after the audit confirmed the counts.
func (r *DriveTableRepo) UpdateAuditSuccess(ctx context.Context, pipelineId string, sourceCount, targetCount int64, at time.Time) error {
	diff := sourceCount - targetCount
	return r.UpdateFields(ctx, pipelineId, map[string]any{
		"completed_phase":       model.PhaseAudit,
		"pipeline_status":       model.StatusSuccess,
		"audit_result":          model.AuditSuccess,
		"source_count":          sourceCount,
		"target_count":          targetCount,
		"count_diff":            diff,
		"count_diff_percentage": diffPct(sourceCount, diff),
		"pipeline_end_time":     at,
	})
}

// ResetOnMismatch returns a record to its initial runnable state after an
// audit mismatch, keeping only its identity and bumping the retry counter.
func (r *DriveTableRepo) ResetOnMismatch(ctx context.Context, pipelineId string, at time.Time) error {
	return r.UpdateFields(ctx, pipelineId, map[string]any{
		"completed_phase":          model.PhaseNotStarted,
		"completed_phase_duration": "",
		"pipeline_status":          model.StatusPending,
		"pipeline_start_time":      nil,
		"pipeline_end_time":        nil,
		"source_count":             nil,
		"target_count":             nil,
		"count_diff":               nil,
		"count_diff_percentage":    nil,
		"audit_result":             nil,
		"retry_attempt":            gorm.Expr("COALESCE(retry_attempt, 0) + 1"),
		"record_last_updated_time": at,
	})
}

// MarkFailedPermanent parks a record that exhausted its retry budget.
func (r *DriveTableRepo) MarkFailedPermanent(ctx context.Context, pipelineId string, at time.Time) error {
	return r.UpdateFields(ctx, pipelineId, map[string]any{
		"pipeline_status":   model.StatusFailedPermanent,
		"pipeline_end_time": at,
	})
}

// ReclaimStale returns every in-flight record whose attempt started before
// olderThan to the runnable pool. Only the attempt bookkeeping resets; the
// phase high-water mark and counts survive the reclaim. A full wipe is
// reserved for audit mismatches.
func (r *DriveTableRepo) ReclaimStale(ctx context.Context, part Partition, olderThan, at time.Time) (int64, error) {
	tx := r.scoped(ctx, part).
		Where("pipeline_start_time IS NOT NULL AND pipeline_end_time IS NULL").
		Where("pipeline_start_time <= ?", olderThan).
		Updates(map[string]any{
			"pipeline_status":          model.StatusPending,
			"pipeline_start_time":      nil,
			"pipeline_end_time":        nil,
			"retry_attempt":            gorm.Expr("COALESCE(retry_attempt, 0) + 1"),
			"record_last_updated_time": at,
		})
	return tx.RowsAffected, tx.Error
}
