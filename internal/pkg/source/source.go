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

// Package source talks to the Elasticsearch side of the pipeline: window
// counts for validation and audit, and scroll exports for the transfer.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/config"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/model"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/pkg/log"
)

// Client queries one Elasticsearch index over its REST API.
type Client struct {
	http   *resty.Client
	conf   config.SourceConf
	index  string
	field  string
	logger *log.Logger
}

// NewClient builds the source client for a pipeline's index.
func NewClient(conf config.SourceConf, pipe *config.PipelineConfig, logger *log.Logger) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(conf.Endpoint, "/")).
		SetTimeout(2 * time.Minute).
		SetHeader("Content-Type", "application/json")
	if conf.Username != "" {
		c.SetBasicAuth(conf.Username, conf.Password)
	}
	if logger == nil {
		logger = log.NewLogger()
	}
	return &Client{
		http:   c,
		conf:   conf,
		index:  pipe.IndexName,
		field:  conf.TimestampField,
		logger: logger,
	}
}

func (c *Client) rangeQuery(rec *model.DriveRecord) map[string]any {
	return map[string]any{
		"query": map[string]any{
			"range": map[string]any{
				c.field: map[string]any{
					"gte": rec.WindowStart.Format(time.RFC3339),
					"lt":  rec.WindowEnd.Format(time.RFC3339),
				},
			},
		},
	}
}

// Count returns the number of documents inside the record's window.
func (c *Client) Count(ctx context.Context, rec *model.DriveRecord) (int64, error) {
	body, err := sonic.Marshal(c.rangeQuery(rec))
	if err != nil {
		return 0, fmt.Errorf("marshal count query: %w", err)
	}

	var out struct {
		Count int64 `json:"count"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post(fmt.Sprintf("/%s/_count", c.index))
	if err != nil {
		return 0, fmt.Errorf("source count request: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("source count: %s: %s", resp.Status(), resp.String())
	}
	c.logger.Debugw("source count fetched",
		"index", c.index, "pipelineId", rec.PipelineId, "count", out.Count)
	return out.Count, nil
}

type searchResponse struct {
	ScrollId string `json:"_scroll_id"`
	Hits     struct {
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Export streams every document of the record's window through a scroll
// search and returns the raw source documents in arrival order.
func (c *Client) Export(ctx context.Context, rec *model.DriveRecord) ([]json.RawMessage, error) {
	query := c.rangeQuery(rec)
	query["size"] = c.conf.ScrollSize
	query["sort"] = []any{map[string]any{c.field: "asc"}}
	body, err := sonic.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal scroll query: %w", err)
	}

	var page searchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("scroll", c.conf.ScrollKeep).
		SetBody(body).
		SetResult(&page).
		Post(fmt.Sprintf("/%s/_search", c.index))
	if err != nil {
		return nil, fmt.Errorf("scroll open: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("scroll open: %s: %s", resp.Status(), resp.String())
	}

	scrollId := page.ScrollId
	defer func() { c.clearScroll(scrollId) }()

	var docs []json.RawMessage
	for len(page.Hits.Hits) > 0 {
		for _, hit := range page.Hits.Hits {
			docs = append(docs, hit.Source)
		}

		next, err := sonic.Marshal(map[string]any{
			"scroll":    c.conf.ScrollKeep,
			"scroll_id": scrollId,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal scroll continuation: %w", err)
		}
		page = searchResponse{}
		resp, err = c.http.R().
			SetContext(ctx).
			SetBody(next).
			SetResult(&page).
			Post("/_search/scroll")
		if err != nil {
			return nil, fmt.Errorf("scroll continue: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("scroll continue: %s: %s", resp.Status(), resp.String())
		}
		if page.ScrollId != "" {
			scrollId = page.ScrollId
		}
	}

	c.logger.Infow("source export finished",
		"index", c.index, "pipelineId", rec.PipelineId, "documents", len(docs))
	return docs, nil
}

func (c *Client) clearScroll(scrollId string) {
	if scrollId == "" {
		return
	}
	body, err := sonic.Marshal(map[string]any{"scroll_id": scrollId})
	if err != nil {
		return
	}
	if _, err := c.http.R().SetBody(body).Delete("/_search/scroll"); err != nil {
		c.logger.Warnw("clear scroll failed", "err", err)
	}
}
