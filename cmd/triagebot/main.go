// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/zhaopengme/triagebot/pkg/config"
	"github.com/zhaopengme/triagebot/pkg/logger"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

const logo = "🛟"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:           "triagebot",
	Short:         "Slack support triage bot",
	Long:          "TriageBot watches Slack channels, batches each customer's rapid-fire messages, classifies them with an LLM and escalates support requests to a human and a ticket.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.json5 or $TRIAGEBOT_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())
}

// formatVersion returns the version string with optional git commit
func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s triagebot %s\n", logo, formatVersion())
			if buildTime != "" {
				fmt.Printf("  Build: %s\n", buildTime)
			}
			goVer := goVersion
			if goVer == "" {
				goVer = runtime.Version()
			}
			fmt.Printf("  Go: %s\n", goVer)
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("TRIAGEBOT_CONFIG"); v != "" {
		return v
	}
	return "config.json5"
}

// loadConfig reads the config and applies its logging settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger.Configure(os.Stderr, cfg.Log.JSON)
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	if verbose {
		logger.SetLevel(logger.DEBUG)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
