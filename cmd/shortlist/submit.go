package main

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/shortlist/internal/config"
	"github.com/jonathan/shortlist/internal/csvimport"
	"github.com/jonathan/shortlist/internal/observability"
	"github.com/jonathan/shortlist/internal/server"
	"github.com/jonathan/shortlist/internal/submission"
	"github.com/jonathan/shortlist/internal/types"
)

var (
	submitJob     string
	submitUser    string
	submitFile    string
	submitPersist bool
	verbose       bool

	completeJob  string
	completeUser string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Run a file of profile URLs through the submission pipeline",
	Long: `Scrape and score every profile URL in a CSV or XLSX file for a job.
By default accepted candidates are staged in the submitter's draft; --persist
commits them immediately and deducts credits.`,
	RunE: runSubmit,
}

var completeCmd = &cobra.Command{
	Use:   "complete",
	Short: "Commit a user's staged candidates for a job",
	RunE:  runComplete,
}

func init() {
	submitCmd.Flags().StringVar(&submitJob, "job", "", "Job ID (required)")
	submitCmd.Flags().StringVar(&submitUser, "user", "", "Submitting user ID (required)")
	submitCmd.Flags().StringVarP(&submitFile, "file", "f", "", "CSV or XLSX file of profile URLs (required)")
	submitCmd.Flags().BoolVar(&submitPersist, "persist", false, "Commit accepted candidates instead of staging them")
	for _, name := range []string{"job", "user", "file"} {
		_ = submitCmd.MarkFlagRequired(name)
	}

	completeCmd.Flags().StringVar(&completeJob, "job", "", "Job ID (required)")
	completeCmd.Flags().StringVar(&completeUser, "user", "", "Submitting user ID (required)")
	_ = completeCmd.MarkFlagRequired("job")
	_ = completeCmd.MarkFlagRequired("user")

	for _, c := range []*cobra.Command{submitCmd, completeCmd} {
		c.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print a readable summary instead of JSON")
	}

	rootCmd.AddCommand(submitCmd, completeCmd)
}

func parseIDs(job, user string) (uuid.UUID, uuid.UUID, error) {
	jobID, err := uuid.Parse(job)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid --job: %w", err)
	}
	userID, err := uuid.Parse(user)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid --user: %w", err)
	}
	return jobID, userID, nil
}

func openRuntime(cmd *cobra.Command) (*server.Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireServe(); err != nil {
		return nil, err
	}
	return server.OpenRuntime(cmd.Context(), cfg)
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	jobID, userID, err := parseIDs(submitJob, submitUser)
	if err != nil {
		return err
	}
	parsed, err := readURLFile(submitFile)
	if err != nil {
		return err
	}

	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	mode := types.SubmitModeStage
	if submitPersist {
		mode = types.SubmitModePersist
	}
	result, err := rt.Pipeline.Submit(cmd.Context(), submission.Request{
		UserID:  userID,
		JobID:   jobID,
		URLs:    parsed.URLs,
		Mode:    mode,
		MaxURLs: csvimport.DefaultMaxRows,
		OnProgress: func(e submission.ProgressEvent) {
			log.Printf("[submit] %s %d/%d %s", e.Stage, e.Done, e.Total, e.Message)
		},
	})
	if err != nil {
		return fmt.Errorf("submission failed: %w", err)
	}
	if verbose {
		observability.NewPrinter(cmd.OutOrStdout()).PrintSubmission(result)
		return nil
	}
	return printJSON(cmd, result)
}

func runComplete(cmd *cobra.Command, _ []string) error {
	jobID, userID, err := parseIDs(completeJob, completeUser)
	if err != nil {
		return err
	}

	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	result, err := rt.Pipeline.Complete(cmd.Context(), userID, jobID)
	if err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	if verbose {
		observability.NewPrinter(cmd.OutOrStdout()).PrintCommit(result)
		return nil
	}
	return printJSON(cmd, result)
}
