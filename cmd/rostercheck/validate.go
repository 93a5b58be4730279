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
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wikisoft/rostercheck/pkg/agent"
	"github.com/wikisoft/rostercheck/pkg/config"
	"github.com/wikisoft/rostercheck/pkg/export"
	"github.com/wikisoft/rostercheck/pkg/schema"
)

var (
	answersJSON string
	sheetName   string
	reportPath  string
)

var validateCmd = &cobra.Command{
	Use:   "validate <roster-file>",
	Short: "Validate one roster file and print the result envelope",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		p, err := buildPipeline(cfg)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read roster: %w", err)
		}

		var answers schema.Answers
		if answersJSON != "" {
			if err := json.Unmarshal([]byte(answersJSON), &answers); err != nil {
				return fmt.Errorf("decode answers: %w", err)
			}
		}

		env := p.agent.Run(cmd.Context(), agent.Request{
			Data:      data,
			Sheet:     schema.Sheet(sheetName),
			Answers:   answers,
			SessionID: uuid.NewString(),
		})

		if reportPath != "" && env.Status == agent.StatusCompleted {
			wb, err := export.Workbook(env.Slots.Parsed, env.Slots.Matches, env.Slots.Validation)
			if err != nil {
				return fmt.Errorf("build report: %w", err)
			}
			if err := os.WriteFile(reportPath, wb, 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
		}

		out, err := json.MarshalIndent(env, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		if env.Status == agent.StatusFailed {
			return fmt.Errorf("validation failed: %s", env.Reason)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&answersJSON, "answers", "", "diagnostic questionnaire answers as a JSON object")
	validateCmd.Flags().StringVar(&sheetName, "sheet", string(schema.SheetActive), "roster sheet (재직자 or 퇴직자)")
	validateCmd.Flags().StringVar(&reportPath, "report", "", "write the corrected workbook to this path")
}
