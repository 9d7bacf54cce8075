// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zhaopengme/triagebot/pkg/bus"
	"github.com/zhaopengme/triagebot/pkg/channels"
	"github.com/zhaopengme/triagebot/pkg/config"
	"github.com/zhaopengme/triagebot/pkg/gateway"
	"github.com/zhaopengme/triagebot/pkg/logger"
	"github.com/zhaopengme/triagebot/pkg/providers"
	"github.com/zhaopengme/triagebot/pkg/ticket"
	"github.com/zhaopengme/triagebot/pkg/triage"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Slack listener and triage pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return runServe(cfg)
		},
	}
}

func triageOptions(cfg *config.Config) triage.Options {
	return triage.Options{
		QuietWindow:     cfg.Triage.QuietWindow.Std(),
		BatchSize:       cfg.Triage.BatchSize,
		Cooldown:        cfg.Triage.Cooldown.Std(),
		ExcludedSenders: cfg.Triage.ExcludedSenders,
		ClassifyTimeout: cfg.Triage.ClassifyTimeout.Std(),
		ClassifyRPS:     cfg.Triage.ClassifyRPS,
		ClassifyBurst:   cfg.Triage.ClassifyBurst,
		DedupRetention:  cfg.Triage.DedupRetention.Std(),
		JanitorSchedule: cfg.Triage.JanitorSchedule,
	}
}

func runServe(cfg *config.Config) error {
	classifier, err := providers.NewClassifier(cfg.Classifier)
	if err != nil {
		return fmt.Errorf("classifier: %w", err)
	}

	var tickets triage.TicketSystem
	if cfg.Ticket.Enabled {
		client, err := ticket.NewClient(cfg.Ticket)
		if err != nil {
			return fmt.Errorf("ticket client: %w", err)
		}
		tickets = client
	}

	mb := bus.NewMessageBus(cfg.Triage.InboundQueueSize)
	slackCh, err := channels.NewSlackChannel(cfg.Slack, cfg.Notify, mb)
	if err != nil {
		return err
	}

	svc, err := triage.NewService(triageOptions(cfg), classifier, slackCh, tickets)
	if err != nil {
		return fmt.Errorf("triage service: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := slackCh.Start(ctx); err != nil {
		return err
	}
	svc.SetBotID(slackCh.BotUserID())
	svc.Start(ctx)

	var webhook http.Handler
	if !slackCh.SocketMode() {
		webhook = slackCh.WebhookHandler()
	}
	srv := gateway.NewServer(cfg.Gateway.Addr(), webhook, svc, mb.Depth)
	gw := gateway.NewGateway(mb, svc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	// The gateway drains the bus until it is closed, so queued events still reach the core.
	g.Go(func() error {
		gw.Run(context.Background())
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.InfoC("serve", "Shutting down")

		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(stopCtx); err != nil {
			logger.WarnCF("serve", "HTTP shutdown incomplete", map[string]interface{}{"error": err.Error()})
		}
		slackCh.Stop(stopCtx)
		mb.Close()
		return nil
	})

	logger.InfoCF("serve", "TriageBot started", map[string]interface{}{
		"version":      formatVersion(),
		"addr":         cfg.Gateway.Addr(),
		"models":       classifier.Models(),
		"quiet_window": cfg.Triage.QuietWindow.String(),
		"batch_size":   cfg.Triage.BatchSize,
		"cooldown":     cfg.Triage.Cooldown.String(),
		"tickets":      cfg.Ticket.Enabled,
	})

	runErr := g.Wait()
	if runErr != nil {
		logger.ErrorCF("serve", "Listener stopped", map[string]interface{}{"error": runErr.Error()})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.WarnCF("serve", "Triage shutdown incomplete", map[string]interface{}{"error": err.Error()})
	}
	stats := svc.Stats()
	logger.InfoCF("serve", "Stopped", map[string]interface{}{
		"admitted": stats.Admitted,
		"dropped":  stats.Dropped,
	})
	return runErr
}
