package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rhuss/appgate/pkg/config"
)

func checkConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Load and validate the configuration, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "configuration OK")
			fmt.Fprintf(out, "  registry: %s (%d static apps)\n", cfg.Registry.Type, len(cfg.Registry.Apps))
			fmt.Fprintf(out, "  sessions: %s\n", cfg.Sessions.Type)
			fmt.Fprintf(out, "  listen:   :%d%s\n", cfg.Server.Port, cfg.Server.MountPath)
			return nil
		},
	}
}
