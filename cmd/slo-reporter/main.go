// Package main is the entry point for the slo-reporter.
package main

import (
	"os"

	"github.com/donaldgifford/slo-reporter/cmd/slo-reporter/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
