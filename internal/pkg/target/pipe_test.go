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
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/config"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/model"
)

func testRecord() *model.DriveRecord {
	return &model.DriveRecord{
		PipelineId:  "deadbeef",
		TargetDay:   "2025-06-02",
		WindowStart: time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC),
		WindowEnd:   time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC),
	}
}

// pipeServer answers refresh submits and serves insertReport statuses in
// sequence, repeating the last one.
func pipeServer(t *testing.T, statuses []string, polls *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/refresh") {
			fmt.Fprint(w, `{"requestId":"req-1"}`)
			return
		}
		n := atomic.AddInt64(polls, 1)
		s := statuses[len(statuses)-1]
		if int(n) <= len(statuses) {
			s = statuses[n-1]
		}
		fmt.Fprintf(w, `{"status":%q,"message":""}`, s)
	}))
}

func newTestPipeClient(url string, conf config.TargetConf) (*PipeClient, *[]time.Duration) {
	conf.PipeURL = url
	conf.Pipe = "ANALYTICS.RAW.ORDERS_PIPE"
	pipe := &config.PipelineConfig{S3Prefix: []string{"warehouse", "orders"}}
	c := NewPipeClient(conf, pipe, nil)
	sleeps := &[]time.Duration{}
	c.sleep = func(d time.Duration) { *sleeps = append(*sleeps, d) }
	return c, sleeps
}

func TestLoadFailsFastOnBadPollInterval(t *testing.T) {
	var polls int64
	srv := pipeServer(t, []string{"RUNNING"}, &polls)
	defer srv.Close()

	c, sleeps := newTestPipeClient(srv.URL, config.TargetConf{
		PollInterval: "5min",
		PollMaxWait:  "1m",
	})
	err := c.Load(context.Background(), testRecord())
	if err == nil || !strings.Contains(err.Error(), "pollInterval") {
		t.Fatalf("Load() error = %v, want pollInterval format error", err)
	}
	if polls != 0 {
		t.Errorf("status polled %d times before the format error, want 0", polls)
	}
	if len(*sleeps) != 0 {
		t.Errorf("slept %d times, want 0", len(*sleeps))
	}
}

func TestLoadGivesUpAtMaxWait(t *testing.T) {
	var polls int64
	srv := pipeServer(t, []string{"RUNNING"}, &polls)
	defer srv.Close()

	c, sleeps := newTestPipeClient(srv.URL, config.TargetConf{
		PollInterval: "5s",
		PollMaxWait:  "10s",
	})
	err := c.Load(context.Background(), testRecord())
	if err == nil || !strings.Contains(err.Error(), "still running") {
		t.Fatalf("Load() error = %v, want still-running error", err)
	}
	if polls != 3 {
		t.Errorf("status polled %d times, want 3", polls)
	}
	if len(*sleeps) != 2 {
		t.Fatalf("slept %d times, want 2", len(*sleeps))
	}
	for _, d := range *sleeps {
		if d != 5*time.Second {
			t.Errorf("sleep = %v, want 5s", d)
		}
	}
}

func TestLoadReturnsOnSuccess(t *testing.T) {
	var polls int64
	srv := pipeServer(t, []string{"RUNNING", "SUCCESS"}, &polls)
	defer srv.Close()

	c, _ := newTestPipeClient(srv.URL, config.TargetConf{
		PollInterval: "5s",
		PollMaxWait:  "10m",
	})
	if err := c.Load(context.Background(), testRecord()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if polls != 2 {
		t.Errorf("status polled %d times, want 2", polls)
	}
}

func TestLoadSurfacesFailedStatus(t *testing.T) {
	var polls int64
	srv := pipeServer(t, []string{"FAILED"}, &polls)
	defer srv.Close()

	c, _ := newTestPipeClient(srv.URL, config.TargetConf{
		PollInterval: "5s",
		PollMaxWait:  "10m",
	})
	err := c.Load(context.Background(), testRecord())
	if err == nil || !strings.Contains(err.Error(), "pipe load failed") {
		t.Fatalf("Load() error = %v, want load-failed error", err)
	}
}
