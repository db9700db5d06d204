package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

func newWatchCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch configured directories and automation endpoints, optimising files as they settle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine(resolvedConfigDir(root))
			if err != nil {
				return err
			}

			w, err := eng.newWatcher()
			if err != nil {
				return fmt.Errorf("starting directory watcher: %w", err)
			}
			if err := w.Start(); err != nil {
				return fmt.Errorf("starting directory watcher: %w", err)
			}

			server := eng.newAutomationServer()
			if err := server.Start(); err != nil {
				return fmt.Errorf("starting automation endpoints: %w", err)
			}

			sigs := append([]os.Signal{os.Interrupt}, extraSignals...)
			ctx, cancel := signal.NotifyContext(cmd.Context(), sigs...)
			defer cancel()

			eng.log.Println("watching configured image/video/pdf directories; press Ctrl+C to stop")
			<-ctx.Done()
			eng.log.Println("shutting down")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer shutdownCancel()

			_ = w.Stop()
			_ = server.Stop(shutdownCtx)
			return eng.shutdown(shutdownCtx)
		},
	}
}
