// Package main provides the shortlist command: the HTTP API server plus
// operator commands for submissions, usage and tier seeding.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "shortlist",
	Short:        "Shortlist candidate sourcing service",
	Long:         "Shortlist takes job requisitions from clients, lets sourcers submit LinkedIn profiles, and scores each profile against the job before it reaches the client.",
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
