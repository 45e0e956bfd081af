package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the status of a job",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	o, err := sharedOrchestrator()
	if err != nil {
		return err
	}

	snap, err := o.Status(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Job ID:   %s\n", snap.JobID)
	fmt.Printf("Status:   %s\n", snap.Status)
	fmt.Printf("Progress: %d%%\n", snap.Progress)
	if snap.Message != "" {
		fmt.Printf("Message:  %s\n", snap.Message)
	}
	for _, s := range snap.Stages {
		fmt.Printf("  %-12s %s\n", s.Name, s.Status)
	}
	return nil
}
