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

// Package run advances drive-table records through the ingestion phases:
// pre-validation, source-to-stage, stage-to-target, audit. The ledger is the
// only shared state; every phase cleans its own location before writing so a
// replayed or concurrent attempt converges to the same result.
package run

import (
	"context"

	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/model"
)

// SourceCounter counts source-side units inside a record's window.
type SourceCounter interface {
	Count(ctx context.Context, rec *model.DriveRecord) (int64, error)
}

// TargetCounter counts target-side rows loaded from the record's staged
// file prefix.
type TargetCounter interface {
	Count(ctx context.Context, rec *model.DriveRecord) (int64, error)
}

// StageStore cleans and populates the staging location for a window.
type StageStore interface {
	Clean(ctx context.Context, rec *model.DriveRecord) error
	Transfer(ctx context.Context, rec *model.DriveRecord) error
}

// TargetStore cleans and loads target rows for a window. Load triggers an
// asynchronous ingestion and returns once the operation is accepted and
// confirmed finished by the remote side.
type TargetStore interface {
	Clean(ctx context.Context, rec *model.DriveRecord) error
	Load(ctx context.Context, rec *model.DriveRecord) error
}
