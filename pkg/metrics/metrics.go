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

package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/Navneeth-G/TEST-DATA-PIPELINE/pkg/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Conf defines the metrics endpoint configuration.
type Conf struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

// SetDefaults fills zero-valued fields.
func (c *Conf) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":9091"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}

// Sink holds the drive-table pipeline collectors.
type Sink struct {
	RecordsProcessed *prometheus.CounterVec
	RetryResets      prometheus.Counter
	DaysRebuilt      *prometheus.CounterVec
	StaleReclaimed   prometheus.Counter
	PendingFetched   prometheus.Gauge
}

// Server exposes the registry over HTTP.
type Server struct {
	registry *prometheus.Registry
	sink     *Sink
	httpSrv  *http.Server
	conf     Conf
}

// NewServer builds the registry, registers pipeline collectors, and prepares
// the HTTP endpoint. Call Start to begin serving.
func NewServer(conf Conf) *Server {
	conf.SetDefaults()
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sink := &Sink{
		RecordsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drivepipe_records_processed_total",
			Help: "Records run through the phase machine, by terminal result.",
		}, []string{"result"}),
		RetryResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drivepipe_retry_resets_total",
			Help: "Audit mismatch resets that returned a record to PENDING.",
		}),
		DaysRebuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drivepipe_days_rebuilt_total",
			Help: "Target days regenerated by the continuity engine, by reason.",
		}, []string{"reason"}),
		StaleReclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drivepipe_stale_records_reclaimed_total",
			Help: "In-progress records reset to PENDING by the reclaimer.",
		}),
		PendingFetched: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "drivepipe_pending_records_fetched",
			Help: "Pending records picked up in the latest scheduler cycle.",
		}),
	}
	registry.MustRegister(
		sink.RecordsProcessed,
		sink.RetryResets,
		sink.DaysRebuilt,
		sink.StaleReclaimed,
		sink.PendingFetched,
	)

	mux := http.NewServeMux()
	mux.Handle(conf.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &Server{
		registry: registry,
		sink:     sink,
		conf:     conf,
		httpSrv:  &http.Server{Addr: conf.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
	}
}

// GetSink returns the pipeline collectors.
func (s *Server) GetSink() *Sink {
	return s.sink
}

// Start serves the metrics endpoint in the background when enabled.
func (s *Server) Start() {
	if !s.conf.Enabled {
		return
	}
	go func() {
		log.Infow("metrics server listening", "addr", s.conf.Addr, "path", s.conf.Path)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("metrics server stopped", "error", err)
		}
	}()
}

// Stop shuts down the metrics endpoint.
func (s *Server) Stop(ctx context.Context) error {
	if !s.conf.Enabled {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
