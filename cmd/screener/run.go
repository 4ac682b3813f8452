package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"google.golang.org/api/gmail/v1"

	"github.com/iabouzeid/gmailscreener/pkg/api"
	"github.com/iabouzeid/gmailscreener/pkg/archive/postgres"
	"github.com/iabouzeid/gmailscreener/pkg/client"
	"github.com/iabouzeid/gmailscreener/pkg/config"
	gmaildeliver "github.com/iabouzeid/gmailscreener/pkg/deliver/gmail"
	gmailbox "github.com/iabouzeid/gmailscreener/pkg/mailbox/gmail"
	"github.com/iabouzeid/gmailscreener/pkg/pipeline"
	"github.com/iabouzeid/gmailscreener/pkg/query"
	"github.com/iabouzeid/gmailscreener/pkg/render/pdf"
)

// scopes are the Gmail permissions the pipeline needs: read to search
// and fetch, send to deliver the report, modify to mark messages read.
var scopes = []string{
	gmail.GmailReadonlyScope,
	gmail.GmailSendScope,
	gmail.GmailModifyScope,
}

// runScreener executes one full screening run.
func runScreener(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	criteria, err := query.Load(cfg.CriteriaFile)
	if err != nil {
		return err
	}

	logger.Info("configuration loaded",
		"criteria_file", cfg.CriteriaFile,
		"forward_to", cfg.ForwardTo,
		"mark_as_read", cfg.MarkAsRead,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider := client.Provider{SecretsPath: cfg.CredentialsFile, TokenPath: cfg.TokenFile}
	httpClient, err := provider.Client(ctx, scopes...)
	if err != nil {
		return fmt.Errorf("creating http client: %w", err)
	}

	mailbox, err := gmailbox.New(httpClient, logger.With("component", "mailbox"))
	if err != nil {
		return fmt.Errorf("creating mailbox: %w", err)
	}

	deliverer, err := gmaildeliver.New(httpClient, logger.With("component", "deliverer"))
	if err != nil {
		return fmt.Errorf("creating deliverer: %w", err)
	}

	renderer := pdf.New(logger.With("component", "renderer"))

	var archiver api.Archiver
	if cfg.PostgresDSN != "" {
		pg, err := postgres.New(ctx, postgres.Config{DSN: cfg.PostgresDSN}, logger.With("component", "archive"))
		if err != nil {
			return fmt.Errorf("creating archive: %w", err)
		}
		defer pg.Close()
		archiver = pg
	}

	runner := pipeline.New(mailbox, renderer, deliverer, archiver, pipeline.Config{
		Recipient:    cfg.ForwardTo,
		Subject:      cfg.Subject,
		ArtifactName: cfg.ArtifactName,
		MarkAsRead:   cfg.MarkAsRead,
		KeepArtifact: cfg.KeepArtifact,
	}, logger.With("component", "pipeline"))

	return runner.Run(ctx, criteria)
}
