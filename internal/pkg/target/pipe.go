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

package target

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/config"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/model"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/pkg/granularity"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/pkg/record"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/pkg/log"
)

// PipeClient triggers the warehouse's ingest pipe over its REST API. Refresh
// is asynchronous: the submit returns a request id and the load has to be
// polled to completion.
type PipeClient struct {
	http   *resty.Client
	conf   config.TargetConf
	prefix []string
	logger *log.Logger

	sleep func(time.Duration)
}

// NewPipeClient builds the pipe REST client.
func NewPipeClient(conf config.TargetConf, pipe *config.PipelineConfig, logger *log.Logger) *PipeClient {
	c := resty.New().
		SetBaseURL(strings.TrimRight(conf.PipeURL, "/")).
		SetTimeout(2 * time.Minute).
		SetHeader("Content-Type", "application/json")
	if conf.AuthToken != "" {
		c.SetAuthToken(conf.AuthToken)
	}
	if logger == nil {
		logger = log.NewLogger()
	}
	return &PipeClient{
		http:   c,
		conf:   conf,
		prefix: pipe.S3Prefix,
		logger: logger,
		sleep:  time.Sleep,
	}
}

type refreshResponse struct {
	RequestId string `json:"requestId"`
}

type loadStatus struct {
	Status  string `json:"status"` // RUNNING, SUCCESS, FAILED
	Message string `json:"message"`
}

// Load submits a pipe refresh restricted to the record's staged prefix and
// polls until the warehouse reports the load finished.
func (p *PipeClient) Load(ctx context.Context, rec *model.DriveRecord) error {
	prefix := record.StagePrefix(p.prefix, rec)

	var refresh refreshResponse
	resp, err := p.http.R().
		SetContext(ctx).
		SetQueryParam("prefix", prefix).
		SetResult(&refresh).
		Post(fmt.Sprintf("/v1/pipes/%s/refresh", p.conf.Pipe))
	if err != nil {
		return errors.Wrap(err, "submit pipe refresh")
	}
	if resp.IsError() {
		return fmt.Errorf("submit pipe refresh: %s: %s", resp.Status(), resp.String())
	}
	p.logger.Infow("pipe refresh submitted",
		"pipe", p.conf.Pipe, "pipelineId", rec.PipelineId,
		"prefix", prefix, "requestId", refresh.RequestId)

	return p.waitForLoad(ctx, rec, refresh.RequestId)
}

// waitForLoad polls the refresh status until it leaves RUNNING or the poll
// budget runs out.
func (p *PipeClient) waitForLoad(ctx context.Context, rec *model.DriveRecord, requestId string) error {
	interval, err := granularity.Parse(p.conf.PollInterval)
	if err != nil {
		return fmt.Errorf("target.pollInterval: %w", err)
	}
	maxWait, err := granularity.Parse(p.conf.PollMaxWait)
	if err != nil {
		return fmt.Errorf("target.pollMaxWait: %w", err)
	}

	var elapsed int64
	for {
		var status loadStatus
		resp, err := p.http.R().
			SetContext(ctx).
			SetQueryParam("requestId", requestId).
			SetResult(&status).
			Get(fmt.Sprintf("/v1/pipes/%s/insertReport", p.conf.Pipe))
		if err != nil {
			return errors.Wrap(err, "poll pipe refresh")
		}
		if resp.IsError() {
			return fmt.Errorf("poll pipe refresh: %s: %s", resp.Status(), resp.String())
		}

		switch status.Status {
		case "SUCCESS":
			p.logger.Infow("pipe load finished",
				"pipe", p.conf.Pipe, "pipelineId", rec.PipelineId, "requestId", requestId)
			return nil
		case "FAILED":
			return fmt.Errorf("pipe load failed: %s", status.Message)
		}

		if elapsed >= maxWait {
			return fmt.Errorf("pipe load still running after %ds (requestId %s)", elapsed, requestId)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		p.sleep(time.Duration(interval) * time.Second)
		elapsed += interval
	}
}

// Store bundles row cleanup and the pipe loader behind the single
// collaborator surface the phase runner consumes.
type Store struct {
	*Warehouse
	pipe *PipeClient
}

// NewStore combines a warehouse accessor and pipe client.
func NewStore(wh *Warehouse, pipe *PipeClient) *Store {
	return &Store{Warehouse: wh, pipe: pipe}
}

// Load delegates to the pipe client.
func (s *Store) Load(ctx context.Context, rec *model.DriveRecord) error {
	return s.pipe.Load(ctx, rec)
}
