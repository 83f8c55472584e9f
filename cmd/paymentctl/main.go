package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fairwayhq/fairway-backend/internal/app"
	"github.com/fairwayhq/fairway-backend/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "paymentctl",
		Short: "Inspect and reconcile Fairway payments",
	}
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(checkCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [invoice]",
		Short: "Print the ledger row for an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.Payments.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		},
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [invoice]",
		Short: "Query the gateway for an invoice and commit the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.Close()

			status, err := a.Payments.Poll(context.WithoutCancel(cmd.Context()), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], status)
			return nil
		},
	}
}

func open() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, app.NewLogger(cfg.LogLevel))
}
