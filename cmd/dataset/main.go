// Package main provides the dataset CLI.
package main

import (
	"fmt"
	"os"

	"github.com/born-ml/dataset/internal/cli"
)

func main() {
	rootCmd := cli.NewRootCommand(os.Stdin, os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
