// Package main provides the CLI entry point for the claims hub.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/cmd/claimshub/commands"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/app"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/application/submission"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/config"
)

var (
	version = "1.2.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "claimshub",
	Short: "MedLink claims hub - dental claim submission and tracking",
	Long: `MedLink claims hub submits dental claims to adjudication rails and
tracks their lifecycle until payment.

It provides:
  - Claim submission over CDAnet, eClaims and carrier portals
  - A durable job queue with retries and idempotent enqueue
  - Status polling with reconciliation back onto claim records
  - Webhook intake for carrier push notifications
  - Parquet export of remittances and connector events`,
	Version: version,
}

// openHub builds the hub from a configuration file, or from defaults
// when no path is given.
func openHub(ctx context.Context, path string) (*app.App, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	return app.New(ctx, cfg)
}

// ============================================================================
// Serve Command
// ============================================================================

var serveConfig string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the claims hub server",
	Long: `Run the claims hub: HTTP API, job queue workers and the status
polling scheduler.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		hub, err := openHub(context.Background(), serveConfig)
		if err != nil {
			return err
		}

		hub.Start()

		fmt.Printf("Claims hub listening on :%d\n", hub.Config.Server.Port)
		fmt.Println("Press Ctrl+C to stop")

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		fmt.Println("\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return hub.Shutdown(ctx)
	},
}

// ============================================================================
// Submit Command
// ============================================================================

var (
	submitClaim      string
	submitRail       string
	submitOrg        string
	submitConfigPath string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Queue a claim for submission",
	Long: `Queue a claim for submission on an adjudication rail.

The job is processed by the worker pool of the process sharing the same
store. With the in-memory store it only lives for this invocation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		hub, err := openHub(ctx, submitConfigPath)
		if err != nil {
			return err
		}
		defer hub.Shutdown(ctx)

		p := submission.Principal{OrgID: submitOrg, Role: submission.RoleAdmin}
		job, created, err := hub.Submissions.Enqueue(ctx, submitClaim, submitRail, p)
		if err != nil {
			return err
		}

		output, _ := json.MarshalIndent(map[string]interface{}{
			"jobId":   job.ID,
			"claimId": submitClaim,
			"rail":    submitRail,
			"created": created,
		}, "", "  ")
		fmt.Println(string(output))
		return nil
	},
}

func init() {
	// Serve command
	serveCmd.Flags().StringVarP(&serveConfig, "config", "c", "", "Path to the configuration file")
	rootCmd.AddCommand(serveCmd)

	// Submit command
	submitCmd.Flags().StringVar(&submitClaim, "claim", "", "Claim id (required)")
	submitCmd.Flags().StringVarP(&submitRail, "rail", "r", "", "Adjudication rail: cdanet, eclaims or portal (required)")
	submitCmd.Flags().StringVar(&submitOrg, "org", "", "Acting organization id")
	submitCmd.Flags().StringVarP(&submitConfigPath, "config", "c", "", "Path to the configuration file")
	submitCmd.MarkFlagRequired("claim")
	submitCmd.MarkFlagRequired("rail")
	rootCmd.AddCommand(submitCmd)

	// Claim commands (from commands package)
	rootCmd.AddCommand(commands.ClaimCmd)

	// Jobs commands
	rootCmd.AddCommand(commands.JobsCmd)

	// Polls commands
	rootCmd.AddCommand(commands.PollsCmd)

	// Export commands
	rootCmd.AddCommand(commands.ExportCmd)

	// Config commands
	rootCmd.AddCommand(commands.ConfigCmd)
}
