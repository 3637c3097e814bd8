/*
 *    Copyright 2025 blockarchitech
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flowsync "flowos.app/flowsync/internal"
	"flowos.app/flowsync/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "flowsync",
		Short:   "FlowSync - calendar sync and notification scheduling for FlowOS",
		Version: Version,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(emitCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the production logger.
func setup() (*zap.Logger, *config.Config, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, nil, fmt.Errorf("can't initialize zap logger: %w", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		_ = logger.Sync()
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Version == "dev" {
		cfg.Version = Version
	}
	return logger, cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, cfg, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return flowsync.NewApp(logger, cfg).Run(ctx)
		},
	}
}

func emitCmd() *cobra.Command {
	var users []string
	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Run every notification and reminder check once",
		Long: `Run the affirmation, insight, advice, podcast and commitment checks once
for each given user. Checkpoints make repeated runs on the same day safe,
so this can be driven by cron instead of in-process sessions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(users) == 0 {
				return fmt.Errorf("at least one --user is required")
			}
			logger, cfg, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			return flowsync.NewApp(logger, cfg).Emit(cmd.Context(), users)
		},
	}
	cmd.Flags().StringSliceVarP(&users, "user", "u", nil, "User ID to run the checks for (repeatable)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(Version)
		},
	}
}
