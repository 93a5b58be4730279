// Copyright 2026 Wikisoft
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wikisoft/rostercheck/internal/log"
	"github.com/wikisoft/rostercheck/pkg/config"
	"github.com/wikisoft/rostercheck/pkg/events"
	"github.com/wikisoft/rostercheck/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the validation HTTP service",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		p, err := buildPipeline(cfg)
		if err != nil {
			return err
		}
		emitter, err := events.NewEmitter(events.Config{
			Sinks:       cfg.Events.Sinks,
			Version:     version,
			Environment: cfg.Events.Environment,
		})
		if err != nil {
			return err
		}

		srv := server.New(server.Config{
			Addr:          cfg.Server.Addr,
			CORSOrigins:   cfg.Server.CORSOrigins,
			MaxUploadMB:   cfg.Server.MaxUploadMB,
			RequestLogger: cfg.Server.RequestLogger,
		}, p.agent, p.cases, emitter, log.Logger())

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return srv.Start(ctx)
	},
}
