// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/zhaopengme/triagebot/pkg/providers"
	"github.com/zhaopengme/triagebot/pkg/triage"
)

func classifyCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a message with the configured model, or start an interactive prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			classifier, err := providers.NewClassifier(cfg.Classifier)
			if err != nil {
				return fmt.Errorf("classifier: %w", err)
			}
			timeout := cfg.Triage.ClassifyTimeout.Std()

			if message != "" {
				return classifyOnce(classifier, timeout, message)
			}
			fmt.Printf("%s Interactive classify mode (models: %s)\n\n", logo, strings.Join(classifier.Models(), ", "))
			interactiveClassify(classifier, timeout)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "message text to classify")
	return cmd
}

func classifyOnce(classifier triage.Classifier, timeout time.Duration, text string) error {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	verdict, err := classifier.Classify(ctx, text)
	if err != nil {
		return err
	}
	printVerdict(verdict)
	return nil
}

func printVerdict(v triage.Verdict) {
	answer := "NO"
	if v.IsSupportRequest {
		answer = "YES"
	}
	fmt.Printf("\n%s support request: %s\n  summary: %s\n  urgency: %s\n\n", logo, answer, v.Summary, v.Urgency)
}

func interactiveClassify(classifier triage.Classifier, timeout time.Duration) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".triagebot_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return
		}

		if err := classifyOnce(classifier, timeout, input); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}
