package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var jobsShowID string

// JobsCmd is the parent command for queue inspection.
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Job queue commands",
	Long:  `Commands for inspecting the submission job queue.`,
}

// jobsStatsCmd shows the queue counters.
var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job queue counters",
	Long:  `Show how many jobs are queued, running, completed, failed and dead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		hub, err := openHub(ctx)
		if err != nil {
			return err
		}
		defer hub.Shutdown(ctx)

		stats, err := hub.Queue.Stats(ctx)
		if err != nil {
			return err
		}

		output, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(output))
		return nil
	},
}

// jobsShowCmd prints one job.
var jobsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a single job",
	Long:  `Show a job's state, attempts and last error.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		hub, err := openHub(ctx)
		if err != nil {
			return err
		}
		defer hub.Shutdown(ctx)

		job, err := hub.Store.GetJob(ctx, jobsShowID)
		if err != nil {
			return err
		}

		output, _ := json.MarshalIndent(job, "", "  ")
		fmt.Println(string(output))
		return nil
	},
}

func init() {
	jobsShowCmd.Flags().StringVar(&jobsShowID, "id", "", "Job id (required)")
	jobsShowCmd.MarkFlagRequired("id")

	JobsCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file")
	JobsCmd.AddCommand(jobsStatsCmd)
	JobsCmd.AddCommand(jobsShowCmd)
}
