/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/evotar/apiserver/internal/obs"
	"github.com/evotar/apiserver/internal/server"
	"github.com/spf13/cobra"
)

// workerCmd consumes tabulation jobs from the message queue.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume tabulation jobs from the message queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := server.NewApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		if app.MQ == nil {
			return fmt.Errorf("worker needs a message queue, MQ_BACKEND is %q", cfg.MQ.Backend)
		}

		go app.Sink.Run(ctx, 0)

		obs.Logger().Info("worker consuming", "channel", cfg.MQ.Channel)
		err = app.MQ.Subscribe(ctx, cfg.MQ.Channel, app.Tabulation.RunJob)
		if err != nil && !errors.Is(err, ctx.Err()) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
