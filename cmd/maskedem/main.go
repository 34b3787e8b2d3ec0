// Command maskedem clusters synthetic masked data and manages checkpoints.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
