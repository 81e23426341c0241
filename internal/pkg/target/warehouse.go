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

// Package target covers the warehouse side: counting and deleting loaded
// rows by staged-file prefix, and driving the asynchronous pipe load.
package target

import (
	"context"
	"fmt"

	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/config"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/model"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/pkg/record"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/pkg/database"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/pkg/log"
)

// Warehouse queries loaded rows through the warehouse's SQL interface. Rows
// carry the staged file name, so a window maps to a FILE_NAME prefix match.
type Warehouse struct {
	db     database.IDatabase
	table  string
	prefix []string
	logger *log.Logger
}

// NewWarehouse wires the warehouse row accessor.
func NewWarehouse(db database.IDatabase, pipe *config.PipelineConfig, logger *log.Logger) *Warehouse {
	if logger == nil {
		logger = log.NewLogger()
	}
	return &Warehouse{
		db:     db,
		table:  pipe.TargetTablePath(),
		prefix: pipe.S3Prefix,
		logger: logger,
	}
}

func (w *Warehouse) likePattern(rec *model.DriveRecord) string {
	return record.StagePrefix(w.prefix, rec) + "%"
}

// Count returns how many rows of the record's window landed in the target
// table.
func (w *Warehouse) Count(ctx context.Context, rec *model.DriveRecord) (int64, error) {
	var n int64
	err := w.db.Database().WithContext(ctx).
		Raw(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE file_name LIKE ?", w.table),
			w.likePattern(rec)).
		Scan(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count target rows: %w", err)
	}
	w.logger.Debugw("target count fetched",
		"table", w.table, "pipelineId", rec.PipelineId, "count", n)
	return n, nil
}

// Clean deletes every row the record's window loaded into the target table.
func (w *Warehouse) Clean(ctx context.Context, rec *model.DriveRecord) error {
	tx := w.db.Database().WithContext(ctx).
		Exec(fmt.Sprintf("DELETE FROM %s WHERE file_name LIKE ?", w.table),
			w.likePattern(rec))
	if tx.Error != nil {
		return fmt.Errorf("clean target rows: %w", tx.Error)
	}
	if tx.RowsAffected > 0 {
		w.logger.Infow("cleaned target location",
			"table", w.table, "pipelineId", rec.PipelineId, "rows", tx.RowsAffected)
	}
	return nil
}
