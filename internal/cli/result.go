package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "result <job-id>",
		Short: "Fetch the terminal result of a completed or failed job",
		Args:  cobra.ExactArgs(1),
		RunE:  runResult,
	}
}

func runResult(cmd *cobra.Command, args []string) error {
	o, err := sharedOrchestrator()
	if err != nil {
		return err
	}

	result, failure, err := o.Result(args[0])
	if err != nil {
		return err
	}
	if failure != nil {
		fmt.Printf("Status: failed (%s)\n", failure.Kind)
		fmt.Printf("Message: %s\n", failure.Message)
		for _, s := range failure.Suggestions {
			fmt.Printf("  suggestion: %s\n", s)
		}
		return nil
	}

	fmt.Printf("Status: completed\n")
	fmt.Printf("HTML:   %s\n", result.HTMLPath)
	fmt.Printf("Score:  %d/100\n", result.Score)
	for _, a := range result.Assets {
		fmt.Printf("  asset: %s\n", a)
	}
	for _, w := range result.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	return nil
}
