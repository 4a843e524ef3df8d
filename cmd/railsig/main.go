// Command railsig generates model railway track signals on a simulated pin
// automaton.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/railsig/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "railsig: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
