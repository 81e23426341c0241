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

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/bootstrap"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/pkg/version"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:          "drivepipe",
		Short:        "Drive-table continuity and run engine for recurring ETL pipelines",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configFile, "conf", "conf.d/config.toml", "config file path")

	root.AddCommand(populateCmd(), runCmd(), serveCmd(), version.VersionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// withApp boots the application for one command invocation. The exit status
// is the only top-level verdict; details live in logs and the ledger.
func withApp(fn func(ctx context.Context, app *bootstrap.App) error) error {
	app, cleanup, err := bootstrap.NewApp(configFile)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer cleanup()
	return fn(context.Background(), app)
}

func populateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "populate",
		Short: "Run one drive table continuity pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *bootstrap.App) error {
				return app.Populate(ctx)
			})
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one scheduling cycle over pending records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *bootstrap.App) error {
				return app.RunCycle(ctx)
			})
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run populate and run cycles on their cron schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *bootstrap.App) error {
				return app.Serve(ctx)
			})
		},
	}
}
