// Command stochos plays and renders generative event scenes.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/stochos/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
