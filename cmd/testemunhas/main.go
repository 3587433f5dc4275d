// Command testemunhas imports case and witness spreadsheets into a local
// SQLite database and runs the pattern detectors over them.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
