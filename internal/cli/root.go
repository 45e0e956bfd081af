// Package cli implements texctl, the command-line front end that
// drives an embedded Orchestrator for local testing and demo use,
// mirroring the teacher's rnx command tree without its gRPC transport.
package cli

import (
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/texforge/texforge/internal/metrics"
	"github.com/texforge/texforge/internal/orchestrator"
	"github.com/texforge/texforge/pkg/config"
	"github.com/texforge/texforge/pkg/logger"
)

var (
	configPath string

	orchOnce sync.Once
	orch     *orchestrator.Orchestrator
	orchErr  error
)

var rootCmd = &cobra.Command{
	Use:   "texctl",
	Short: "texctl - command line interface to the conversion orchestration engine",
	Long:  "texctl drives an embedded conversion orchestration engine: submit a LaTeX project archive, poll its status, and fetch its converted HTML result.",
}

// Execute runs the texctl command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to engine configuration file (searches common locations if not specified)")

	rootCmd.AddCommand(newSubmitCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newCancelCmd())
	rootCmd.AddCommand(newResultCmd())
}

// sharedOrchestrator lazily builds one Orchestrator for the process
// lifetime of a texctl invocation, so status/cancel/result subcommands
// issued against the same in-process demo session see the same Job
// Registry.
func sharedOrchestrator() (*orchestrator.Orchestrator, error) {
	orchOnce.Do(func() {
		if configPath != "" {
			os.Setenv("TEXFORGE_CONFIG_PATH", configPath)
		}
		cfg, _, err := config.LoadConfig()
		if err != nil {
			orchErr = fmt.Errorf("failed to load configuration: %w", err)
			return
		}
		orch = orchestrator.New(cfg, logger.WithField("component", "texctl"), metrics.NoOp())
	})
	return orch, orchErr
}
