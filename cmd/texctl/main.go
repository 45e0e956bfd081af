// Command texctl is the command-line front end for the conversion
// orchestration engine, mirroring the teacher's rnx client against an
// embedded Orchestrator.
package main

import (
	"fmt"
	"os"

	"github.com/texforge/texforge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
