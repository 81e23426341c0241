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

package config

import (
	"fmt"
	"sync"

	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/pkg/granularity"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/pkg/database"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/pkg/env"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/pkg/log"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/pkg/metrics"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// SourceConf describes the Elasticsearch source cluster.
type SourceConf struct {
	Endpoint       string `mapstructure:"endpoint"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	TimestampField string `mapstructure:"timestampField"`
	ScrollSize     int    `mapstructure:"scrollSize"`
	ScrollKeep     string `mapstructure:"scrollKeep"`
}

// SetDefaults fills zero-valued fields.
func (c *SourceConf) SetDefaults() {
	if c.TimestampField == "" {
		c.TimestampField = "@timestamp"
	}
	if c.ScrollSize <= 0 {
		c.ScrollSize = 5000
	}
	if c.ScrollKeep == "" {
		c.ScrollKeep = "2m"
	}
	c.Password = env.GetEnvString("DRIVEPIPE_SOURCE_PASSWORD", c.Password)
}

// StageConf describes the S3-compatible staging store connection.
type StageConf struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"accessKey"`
	SecretKey string `mapstructure:"secretKey"`
	Region    string `mapstructure:"region"`
	UseTLS    bool   `mapstructure:"useTLS"`
}

// SetDefaults fills zero-valued fields.
func (c *StageConf) SetDefaults() {
	if c.Region == "" {
		c.Region = "us-west-2"
	}
	c.SecretKey = env.GetEnvString("DRIVEPIPE_STAGE_SECRET_KEY", c.SecretKey)
}

// TargetConf describes the warehouse pipe API used for async loads. The
// warehouse's SQL connection lives under the top-level warehouse database
// section.
type TargetConf struct {
	PipeURL      string `mapstructure:"pipeURL"` // base URL of the ingest/pipe REST API
	Pipe         string `mapstructure:"pipe"`    // fully qualified pipe name
	AuthToken    string `mapstructure:"authToken"`
	PollInterval string `mapstructure:"pollInterval"` // granularity string
	PollMaxWait  string `mapstructure:"pollMaxWait"`  // granularity string
}

// SetDefaults fills zero-valued fields.
func (c *TargetConf) SetDefaults() {
	if c.PollInterval == "" {
		c.PollInterval = "5s"
	}
	if c.PollMaxWait == "" {
		c.PollMaxWait = "10m"
	}
	c.AuthToken = env.GetEnvString("DRIVEPIPE_TARGET_AUTH_TOKEN", c.AuthToken)
}

// Validate checks the poll duration grammars. A bad interval would otherwise
// surface mid-load as a zero-sleep poll loop.
func (c *TargetConf) Validate() error {
	for _, g := range []struct {
		key   string
		value string
	}{
		{"target.pollInterval", c.PollInterval},
		{"target.pollMaxWait", c.PollMaxWait},
	} {
		if _, err := granularity.Parse(g.value); err != nil {
			return fmt.Errorf("%s: %w", g.key, err)
		}
	}
	return nil
}

// ScheduleConf holds cron expressions for serve mode.
type ScheduleConf struct {
	PopulateCron string `mapstructure:"populateCron"`
	RunCron      string `mapstructure:"runCron"`
}

// SetDefaults fills zero-valued fields.
func (c *ScheduleConf) SetDefaults() {
	if c.PopulateCron == "" {
		c.PopulateCron = "0 5 * * * *" // five past every hour
	}
	if c.RunCron == "" {
		c.RunCron = "0 */10 * * * *"
	}
}

// AppConfig is the root configuration for the drive-table pipeline.
type AppConfig struct {
	Log       log.Conf          `mapstructure:"log"`
	Database  database.Database `mapstructure:"database"`  // drive table
	Warehouse database.Database `mapstructure:"warehouse"` // target warehouse SQL access
	Metrics   metrics.Conf      `mapstructure:"metrics"`
	Pipeline  PipelineConfig    `mapstructure:"pipeline"`
	Source    SourceConf        `mapstructure:"source"`
	Stage     StageConf         `mapstructure:"stage"`
	Target    TargetConf        `mapstructure:"target"`
	Schedule  ScheduleConf      `mapstructure:"schedule"`
}

var (
	cfg  AppConfig
	mu   sync.RWMutex
	once sync.Once
)

// NewConf loads the configuration file once and returns the shared instance.
func NewConf(confFile string) *AppConfig {
	once.Do(func() {
		var err error
		cfg, err = LoadConfigFile(confFile)
		if err != nil {
			panic(fmt.Sprintf("load config file error: %s", err))
		}
	})
	mu.RLock()
	defer mu.RUnlock()
	return &cfg
}

// GetConfig returns a copy of the current configuration (hot-reload safe).
func GetConfig() AppConfig {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// LoadConfigFile reads, normalizes, and validates the configuration file, and
// installs a watcher that re-reads it on change.
func LoadConfigFile(confFile string) (AppConfig, error) {
	config := viper.New()
	config.SetConfigFile(confFile)
	if err := config.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("failed to read configuration file: %v", err)
	}

	config.WatchConfig()
	config.OnConfigChange(func(e fsnotify.Event) {
		log.Infow("configuration changed, re-reading", "file", e.Name)
		if err := config.ReadInConfig(); err != nil {
			log.Errorw("failed to re-read configuration file", "error", err, "file", e.Name)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		var next AppConfig
		if err := config.Unmarshal(&next); err != nil {
			log.Errorw("failed to unmarshal configuration file", "error", err, "file", e.Name)
			return
		}
		if err := applyDefaults(&next); err != nil {
			// Keep running with the previous values if the new file is bad.
			log.Errorw("reloaded configuration is invalid, keeping previous", "error", err, "file", e.Name)
			return
		}
		cfg = next
		log.Infow("configuration reloaded successfully", "file", e.Name)
	})

	if err := config.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal configuration file: %v", err)
	}
	if err := applyDefaults(&cfg); err != nil {
		return cfg, err
	}
	log.Infow("config file loaded", "path", confFile, "pipeline", cfg.Pipeline.Name)
	return cfg, nil
}

func applyDefaults(c *AppConfig) error {
	if err := c.Log.Validate(); err != nil {
		return err
	}
	c.Database.SetDefaults()
	c.Warehouse.SetDefaults()
	c.Metrics.SetDefaults()
	c.Source.SetDefaults()
	c.Stage.SetDefaults()
	c.Target.SetDefaults()
	c.Schedule.SetDefaults()
	c.Pipeline.SetDefaults()
	if err := c.Target.Validate(); err != nil {
		return err
	}
	return c.Pipeline.Validate()
}
