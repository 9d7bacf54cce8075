// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(cfg.MaskedCopy()); err != nil {
				return err
			}
			if check {
				if err := cfg.Validate(); err != nil {
					return fmt.Errorf("invalid config: %w", err)
				}
				fmt.Println("config OK")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "also validate the configuration")
	return cmd
}
