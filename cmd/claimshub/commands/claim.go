package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/application/submission"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
)

// Claim command flags
var (
	claimStatusID  string
	claimStatusOrg string

	claimEventsID   string
	claimEventsJSON bool

	claimDryRunID   string
	claimDryRunRail string
)

// ClaimCmd is the parent command for claim inspection.
var ClaimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Claim inspection commands",
	Long: `Commands for inspecting claims tracked by the hub.

Point --config at the deployment's store to inspect live claims.`,
}

// claimStatusCmd shows the adjudication status of one claim.
var claimStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a claim's adjudication status",
	Long:  `Show a claim's status, external id and most recent connector event.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		hub, err := openHub(ctx)
		if err != nil {
			return err
		}
		defer hub.Shutdown(ctx)

		p := submission.Principal{OrgID: claimStatusOrg, Role: submission.RoleAdmin}
		view, err := hub.Submissions.Status(ctx, claimStatusID, p)
		if err != nil {
			return err
		}

		output, _ := json.MarshalIndent(view, "", "  ")
		fmt.Println(string(output))
		return nil
	},
}

// claimEventsCmd lists the connector events recorded for one claim.
var claimEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List connector events for a claim",
	Long:  `List every connector event recorded for a claim, oldest first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		hub, err := openHub(ctx)
		if err != nil {
			return err
		}
		defer hub.Shutdown(ctx)

		events, err := hub.Store.ListEventsByClaim(ctx, claimEventsID)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No events recorded")
			return nil
		}

		if claimEventsJSON {
			output, _ := json.MarshalIndent(events, "", "  ")
			fmt.Println(string(output))
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "AT\tRAIL\tKIND\tSTATUS\tMESSAGE")
		for _, e := range events {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"), e.Rail, e.Kind, e.Status, e.Message)
		}
		return w.Flush()
	},
}

// claimDryRunCmd validates and renders a claim without submitting it.
var claimDryRunCmd = &cobra.Command{
	Use:   "dry-run",
	Short: "Validate a claim against a rail without submitting",
	Long: `Build the rail payload for a claim and run the connector's
validation, without submitting anything.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		hub, err := openHub(ctx)
		if err != nil {
			return err
		}
		defer hub.Shutdown(ctx)

		p := submission.Principal{Role: submission.RoleAdmin}
		res, err := hub.Submissions.DryRun(ctx, claimDryRunID, claimDryRunRail, p)

		var vErr *connector.ValidationError
		var cErr *connector.ConfigError
		if errors.As(err, &vErr) || errors.As(err, &cErr) {
			output, _ := json.MarshalIndent(map[string]interface{}{
				"valid": false,
				"error": err.Error(),
			}, "", "  ")
			fmt.Println(string(output))
			return nil
		}
		if err != nil {
			return err
		}

		output, _ := json.MarshalIndent(map[string]interface{}{
			"valid":   true,
			"rail":    res.Rail.String(),
			"payload": res.Payload,
		}, "", "  ")
		fmt.Println(string(output))
		return nil
	},
}

func init() {
	claimStatusCmd.Flags().StringVar(&claimStatusID, "id", "", "Claim id (required)")
	claimStatusCmd.Flags().StringVar(&claimStatusOrg, "org", "", "Acting organization id")
	claimStatusCmd.MarkFlagRequired("id")

	claimEventsCmd.Flags().StringVar(&claimEventsID, "id", "", "Claim id (required)")
	claimEventsCmd.Flags().BoolVar(&claimEventsJSON, "json", false, "Output as JSON")
	claimEventsCmd.MarkFlagRequired("id")

	claimDryRunCmd.Flags().StringVar(&claimDryRunID, "id", "", "Claim id (required)")
	claimDryRunCmd.Flags().StringVarP(&claimDryRunRail, "rail", "r", "", "Adjudication rail (required)")
	claimDryRunCmd.MarkFlagRequired("id")
	claimDryRunCmd.MarkFlagRequired("rail")

	ClaimCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file")
	ClaimCmd.AddCommand(claimStatusCmd)
	ClaimCmd.AddCommand(claimEventsCmd)
	ClaimCmd.AddCommand(claimDryRunCmd)
}
