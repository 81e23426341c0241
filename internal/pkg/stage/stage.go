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

// Package stage owns the S3 staging area between source and warehouse. A
// window's objects all live under one prefix, so cleanup is a prefix wipe
// and the warehouse can match loaded rows by file name.
package stage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/config"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/model"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/pkg/record"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/pkg/log"
)

// Exporter pulls a window's documents out of the source system.
type Exporter interface {
	Export(ctx context.Context, rec *model.DriveRecord) ([]json.RawMessage, error)
}

// Store stages window exports as NDJSON objects in S3.
type Store struct {
	client *minio.Client
	bucket string
	prefix []string
	index  string
	source Exporter
	logger *log.Logger

	now func() time.Time
}

// NewStore connects the staging client.
func NewStore(conf config.StageConf, pipe *config.PipelineConfig, source Exporter, logger *log.Logger) (*Store, error) {
	client, err := minio.New(conf.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.AccessKey, conf.SecretKey, ""),
		Secure: conf.UseTLS,
		Region: conf.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("connect stage storage: %w", err)
	}
	if logger == nil {
		logger = log.NewLogger()
	}
	return &Store{
		client: client,
		bucket: pipe.S3Bucket,
		prefix: pipe.S3Prefix,
		index:  pipe.IndexID,
		source: source,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Prefix returns the staging key prefix for a record's window.
func (s *Store) Prefix(rec *model.DriveRecord) string {
	return record.StagePrefix(s.prefix, rec)
}

// Clean removes every staged object under the record's window prefix.
func (s *Store) Clean(ctx context.Context, rec *model.DriveRecord) error {
	prefix := s.Prefix(rec)
	var removed int
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return fmt.Errorf("list staged objects %s: %w", prefix, obj.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove staged object %s: %w", obj.Key, err)
		}
		removed++
	}
	if removed > 0 {
		s.logger.Infow("cleaned stage location",
			"bucket", s.bucket, "prefix", prefix, "objects", removed)
	}
	return nil
}

// Transfer exports the record's window from the source and writes it as one
// NDJSON object under the window prefix. An empty window still succeeds and
// stages nothing.
func (s *Store) Transfer(ctx context.Context, rec *model.DriveRecord) error {
	docs, err := s.source.Export(ctx, rec)
	if err != nil {
		return fmt.Errorf("export window: %w", err)
	}
	if len(docs) == 0 {
		s.logger.Infow("window is empty, nothing staged", "pipelineId", rec.PipelineId)
		return nil
	}

	var buf bytes.Buffer
	for _, doc := range docs {
		buf.Write(doc)
		buf.WriteByte('\n')
	}

	size := int64(buf.Len())
	key := fmt.Sprintf("%s%s_%d.json", s.Prefix(rec), s.index, s.now().Unix())
	_, err = s.client.PutObject(ctx, s.bucket, key, &buf, size, minio.PutObjectOptions{
		ContentType: "application/x-ndjson",
	})
	if err != nil {
		return fmt.Errorf("put staged object %s: %w", key, err)
	}
	s.logger.Infow("staged window export",
		"bucket", s.bucket, "key", key, "documents", len(docs), "bytes", size)
	return nil
}
