package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/drstein77/salesdash/internal/app"
	"github.com/drstein77/salesdash/internal/config"
)

func main() {
	option := config.NewOptions()

	rootCmd := &cobra.Command{
		Use:   "salesdash",
		Short: "Sales MIS reporting dashboard",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return option.Validate()
		},
	}
	option.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newServeCommand(option), newReportCommand(option))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCommand(option *config.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Create a root context with the possibility of cancellation
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			server, err := app.NewServer(ctx, option)
			if err != nil {
				return err
			}

			// Create a channel for signal handling
			signalCh := make(chan os.Signal, 1)
			signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(signalCh)

			go func() {
				select {
				case sig := <-signalCh:
					server.Log.Info(fmt.Sprintf("Received signal: %+v", sig))
					// Serve drains open requests once the context is cancelled
					cancel()
				case <-ctx.Done():
				}
			}()

			return server.Serve()
		},
	}
}

func newReportCommand(option *config.Options) *cobra.Command {
	var file, bundle string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the sales report of a spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.RunReport(cmd.Context(), option, file, bundle, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "spreadsheet to report on (.xlsx, .xls or .csv)")
	cmd.Flags().StringVarP(&bundle, "bundle", "b", "", "also write the zip export bundle to this path")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
