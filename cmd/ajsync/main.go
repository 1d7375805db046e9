// Command ajsync is the offline-first sync engine for Ajanda.
//
// It maintains a local SQLite cache of the owner's tasks, habits and
// habit completions and reconciles it with the Ajanda backend: dirty
// local records are pushed, then the remote snapshot is pulled, with
// pending local edits always taking precedence.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
