/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/evotar/apiserver/internal/server"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// tabulateCmd recomputes results for one election outside the HTTP server.
var tabulateCmd = &cobra.Command{
	Use:   "tabulate <election-id>",
	Short: "Recalculate and print the results of an election",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		electionID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid election id %q: %w", args[0], err)
		}

		cfg := loadConfig()
		app, err := server.NewApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		report, err := app.Tabulation.Run(cmd.Context(), electionID)
		app.Sink.Flush(context.WithoutCancel(cmd.Context()))
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	rootCmd.AddCommand(tabulateCmd)
}
