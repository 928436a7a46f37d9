package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var pollsListJSON bool

// PollsCmd is the parent command for the polling schedule.
var PollsCmd = &cobra.Command{
	Use:   "polls",
	Short: "Status polling schedule commands",
	Long:  `Commands for inspecting the status polling schedule.`,
}

// pollsListCmd lists every schedule entry.
var pollsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List polling schedule entries",
	Long:    `List every claim the scheduler is tracking, with attempts and next run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		hub, err := openHub(ctx)
		if err != nil {
			return err
		}
		defer hub.Shutdown(ctx)

		polls, err := hub.Store.ListPolls(ctx)
		if err != nil {
			return err
		}
		if len(polls) == 0 {
			fmt.Println("No polls scheduled")
			return nil
		}

		if pollsListJSON {
			output, _ := json.MarshalIndent(polls, "", "  ")
			fmt.Println(string(output))
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CLAIM\tRAIL\tEXTERNAL ID\tATTEMPTS\tNEXT RUN\tLAST ERROR")
		for _, p := range polls {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
				p.ClaimID, p.Rail, p.ExternalID, p.Attempts, p.MaxAttempts,
				p.NextRunAt.Format("2006-01-02 15:04:05"), p.LastError)
		}
		return w.Flush()
	},
}

func init() {
	pollsListCmd.Flags().BoolVar(&pollsListJSON, "json", false, "Output as JSON")

	PollsCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file")
	PollsCmd.AddCommand(pollsListCmd)
}
