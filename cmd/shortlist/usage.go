package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/shortlist/internal/config"
	"github.com/jonathan/shortlist/internal/db"
	"github.com/jonathan/shortlist/internal/server"
)

var (
	usageUser string
	seedDBURL string
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Print a user's credit and job usage for the current month",
	RunE:  runUsage,
}

var seedTiersCmd = &cobra.Command{
	Use:   "seed-tiers",
	Short: "Apply the schema and upsert the subscription tier catalog",
	RunE:  runSeedTiers,
}

func init() {
	usageCmd.Flags().StringVar(&usageUser, "user", "", "User ID (required)")
	_ = usageCmd.MarkFlagRequired("user")

	seedTiersCmd.Flags().StringVar(&seedDBURL, "db-url", "", "Database URL (defaults to DATABASE_URL)")

	rootCmd.AddCommand(usageCmd, seedTiersCmd)
}

func connect(cmd *cobra.Command, url string) (*db.DB, error) {
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	return db.Connect(cmd.Context(), url)
}

func runUsage(cmd *cobra.Command, _ []string) error {
	userID, err := uuid.Parse(usageUser)
	if err != nil {
		return fmt.Errorf("invalid --user: %w", err)
	}

	database, err := connect(cmd, "")
	if err != nil {
		return err
	}
	defer database.Close()

	user, err := database.GetUserProfile(cmd.Context(), userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user %s not found", userID)
	}

	u, err := server.ComputeUsage(cmd.Context(), database, user.ToAPI(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to compute usage: %w", err)
	}
	return printJSON(cmd, u)
}

func runSeedTiers(cmd *cobra.Command, _ []string) error {
	database, err := connect(cmd, seedDBURL)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(cmd.Context()); err != nil {
		return err
	}
	if err := database.SeedTiers(cmd.Context(), config.Tiers); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d tiers\n", len(config.Tiers))
	return nil
}
