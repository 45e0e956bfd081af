package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a running or pending job",
		Args:  cobra.ExactArgs(1),
		RunE:  runCancel,
	}
}

func runCancel(cmd *cobra.Command, args []string) error {
	o, err := sharedOrchestrator()
	if err != nil {
		return err
	}
	if err := o.Cancel(args[0]); err != nil {
		return err
	}
	fmt.Printf("Job %s cancelled\n", args[0])
	return nil
}
