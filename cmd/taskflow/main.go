// Package main is the entry point of the taskflow command.
package main

import (
	"os"

	"github.com/phrazzld/taskflow/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
