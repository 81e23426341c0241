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

package database

import (
	"fmt"
	"time"

	"github.com/Navneeth-G/TEST-DATA-PIPELINE/pkg/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const dataTablePrefix = "t_"

// Database defines connection configuration for one gorm-backed database.
type Database struct {
	Driver       string `mapstructure:"driver"` // mysql or sqlite
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbName"`
	DSN          string `mapstructure:"dsn"` // overrides the host/port fields when set
	MaxOpenConns int    `mapstructure:"maxOpenConns"`
	MaxIdleConns int    `mapstructure:"maxIdleConns"`
	MaxLifetime  int    `mapstructure:"maxLifetime"` // seconds
	MaxIdleTime  int    `mapstructure:"maxIdleTime"` // seconds
	OutPut       bool   `mapstructure:"output"`      // log SQL statements
}

// SetDefaults fills zero-valued pooling knobs.
func (d *Database) SetDefaults() {
	if d.Driver == "" {
		d.Driver = "mysql"
	}
	if d.MaxOpenConns <= 0 {
		d.MaxOpenConns = 20
	}
	if d.MaxIdleConns <= 0 {
		d.MaxIdleConns = 5
	}
	if d.MaxLifetime <= 0 {
		d.MaxLifetime = 3600
	}
	if d.MaxIdleTime <= 0 {
		d.MaxIdleTime = 600
	}
}

// Manager defines the unified interface for managing a database connection.
type Manager interface {
	// DB returns the gorm database handle
	DB() *gorm.DB

	// Close closes the underlying connection pool
	Close() error
}

// IDatabase is the narrow handle repositories depend on.
type IDatabase interface {
	Database() *gorm.DB
}

type managerImpl struct {
	db *gorm.DB
}

func (m *managerImpl) DB() *gorm.DB {
	return m.db
}

func (m *managerImpl) Close() error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return nil
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Database satisfies IDatabase so a Manager can be handed to repositories.
func (m *managerImpl) Database() *gorm.DB {
	return m.db
}

// NewManager opens a database connection from configuration.
func NewManager(cfg Database) (Manager, error) {
	cfg.SetDefaults()

	var gormLogger gormlogger.Interface
	if cfg.OutPut {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Info)
	} else {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Silent)
	}

	gormCfg := &gorm.Config{
		Logger: gormLogger,
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   dataTablePrefix,
			SingularTable: true,
		},
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "mysql":
		db, err = gorm.Open(mysql.Open(buildMySQLDSN(cfg)), gormCfg)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.DSN), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.MaxIdleTime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Driver, err)
	}

	log.Infow("database connected", "driver", cfg.Driver, "db", cfg.DBName)
	return &managerImpl{db: db}, nil
}

// NewDatabaseAdapter exposes a Manager through the IDatabase interface.
func NewDatabaseAdapter(m Manager) IDatabase {
	return &adapter{m: m}
}

type adapter struct {
	m Manager
}

func (a *adapter) Database() *gorm.DB {
	return a.m.DB()
}

func buildMySQLDSN(cfg Database) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)
}
