/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/evotar/apiserver/config"
	"github.com/evotar/apiserver/internal/obs"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "evotar",
	Short: "Evotar institutional election backend",
	Long: `Evotar runs student and institutional elections: accounts, ballots,
tabulation and an optional signed ballot ledger.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the environment and configures the process logger.
func loadConfig() config.Config {
	cfg := config.LoadConfig()
	obs.SetupLogger(cfg.LogLevel)
	return cfg
}
