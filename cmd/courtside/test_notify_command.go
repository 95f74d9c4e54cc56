package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"courtside/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification to the configured sinks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			if cfg.Notifications.NtfyTopic == "" && !cfg.MQTT.Enabled {
				fmt.Fprintln(cmd.OutOrStdout(), "No notification sinks configured")
				return nil
			}
			notifier := notifications.NewService(cfg, logger)
			defer notifier.Close()
			if err := notifier.Publish(cmd.Context(), notifications.EventTest, notifications.Payload{}); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
