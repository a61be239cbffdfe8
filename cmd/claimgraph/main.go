// Command claimgraph follows a research backend's claim graph live.
package main

import (
	"fmt"
	"os"

	"github.com/ppiankov/claimgraph/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
