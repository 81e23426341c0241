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

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/config"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/model"
)

func testRecord() *model.DriveRecord {
	return &model.DriveRecord{
		PipelineId:  "deadbeef",
		WindowStart: time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC),
		WindowEnd:   time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC),
	}
}

func newTestClient(url string) *Client {
	conf := config.SourceConf{Endpoint: url}
	conf.SetDefaults()
	pipe := &config.PipelineConfig{IndexName: "events-v5"}
	return NewClient(conf, pipe, nil)
}

func TestCountQueriesWindowRange(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/events-v5/_count" {
			t.Errorf("count path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode count body: %v", err)
		}
		fmt.Fprint(w, `{"count":1234}`)
	}))
	defer srv.Close()

	n, err := newTestClient(srv.URL).Count(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1234 {
		t.Errorf("Count() = %d, want 1234", n)
	}
	rng := gotBody["query"].(map[string]any)["range"].(map[string]any)["@timestamp"].(map[string]any)
	if rng["gte"] != "2025-06-02T09:30:00Z" || rng["lt"] != "2025-06-02T10:30:00Z" {
		t.Errorf("range query = %v", rng)
	}
}

func TestExportClearsRotatedScrollId(t *testing.T) {
	var cleared []string
	scrollCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodDelete && r.URL.Path == "/_search/scroll":
			var body struct {
				ScrollId string `json:"scroll_id"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode clear body: %v", err)
			}
			cleared = append(cleared, body.ScrollId)
			fmt.Fprint(w, `{"succeeded":true}`)
		case strings.HasSuffix(r.URL.Path, "/_search") && r.URL.Path != "/_search/scroll":
			fmt.Fprint(w, `{"_scroll_id":"scroll-1","hits":{"hits":[{"_source":{"a":1}}]}}`)
		case r.URL.Path == "/_search/scroll":
			scrollCalls++
			if scrollCalls == 1 {
				// The server rotates the scroll id mid-export.
				fmt.Fprint(w, `{"_scroll_id":"scroll-2","hits":{"hits":[{"_source":{"a":2}}]}}`)
				return
			}
			fmt.Fprint(w, `{"_scroll_id":"scroll-2","hits":{"hits":[]}}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	docs, err := newTestClient(srv.URL).Export(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("Export() returned %d documents, want 2", len(docs))
	}
	if len(cleared) != 1 || cleared[0] != "scroll-2" {
		t.Errorf("cleared scroll ids = %v, want the rotated [scroll-2]", cleared)
	}
}
