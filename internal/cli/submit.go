package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/texforge/texforge/internal/domain"
	"github.com/texforge/texforge/internal/orchestrator"
)

var (
	submitWait       bool
	submitSkipImages bool
	submitTimeout    time.Duration
)

func newSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <archive>",
		Short: "Submit a LaTeX project archive for conversion",
		Args:  cobra.ExactArgs(1),
		RunE:  runSubmit,
	}
	cmd.Flags().BoolVar(&submitWait, "wait", true, "block until the job reaches a terminal state, printing progress")
	cmd.Flags().BoolVar(&submitSkipImages, "skip-images", false, "skip asset (PDF/TikZ) to SVG conversion")
	cmd.Flags().DurationVar(&submitTimeout, "max-processing-time", 0, "override the computed timeout budget ceiling (0 uses the adaptive default)")
	return cmd
}

func runSubmit(cmd *cobra.Command, args []string) error {
	archivePath := args[0]

	o, err := sharedOrchestrator()
	if err != nil {
		return err
	}

	opts := domain.Options{
		SkipImages:        submitSkipImages,
		MaxProcessingTime: submitTimeout,
		OutputFormat:      "html",
	}

	jobID, err := o.Submit(context.Background(), archivePath, filenameOf(archivePath), opts)
	if err != nil {
		return fmt.Errorf("submit failed: %w", err)
	}
	fmt.Printf("Job ID: %s\n", jobID)

	if !submitWait {
		return nil
	}

	return waitAndPrint(o, jobID)
}

func waitAndPrint(o *orchestrator.Orchestrator, jobID string) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		snap, err := o.Status(jobID)
		if err != nil {
			return fmt.Errorf("status lookup failed: %w", err)
		}
		fmt.Printf("\rStatus: %-10s Progress: %3d%%", snap.Status, snap.Progress)
		if snap.Status.IsTerminal() {
			fmt.Println()
			break
		}
	}

	result, failure, err := o.Result(jobID)
	if err != nil {
		return fmt.Errorf("result lookup failed: %w", err)
	}
	if failure != nil {
		fmt.Printf("Conversion failed (%s): %s\n", failure.Kind, failure.Message)
		for _, s := range failure.Suggestions {
			fmt.Printf("  suggestion: %s\n", s)
		}
		return nil
	}
	fmt.Printf("Conversion complete. HTML: %s (score %d/100)\n", result.HTMLPath, result.Score)
	for _, w := range result.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	return nil
}

func filenameOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
