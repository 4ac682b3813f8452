// Package pipeline sequences a single screening run end to end.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/iabouzeid/gmailscreener/pkg/api"
	"github.com/iabouzeid/gmailscreener/pkg/extract"
	"github.com/iabouzeid/gmailscreener/pkg/normalize"
	"github.com/iabouzeid/gmailscreener/pkg/query"
	"github.com/iabouzeid/gmailscreener/pkg/report"
)

// DefaultArtifactName is used when no artifact name is configured.
const DefaultArtifactName = "forwarded_emails.pdf"

// ErrNoContent is returned when messages matched the criteria but none
// of them could be fetched.
var ErrNoContent = errors.New("no message content could be fetched")

// Config controls a run's behavior outside the core transformations.
type Config struct {
	// Recipient is the address the report is delivered to.
	Recipient string
	// Subject is the delivery subject line.
	Subject string
	// ArtifactName is the base artifact file name; date range tokens
	// are folded into it. Defaults to DefaultArtifactName.
	ArtifactName string
	// MarkAsRead marks processed messages as read after delivery.
	MarkAsRead bool
	// KeepArtifact leaves the rendered file on disk after delivery.
	KeepArtifact bool
}

// Runner drives one batch run over its injected collaborators.
type Runner struct {
	mailbox   api.Mailbox
	renderer  api.Renderer
	deliverer api.Deliverer
	archiver  api.Archiver
	cfg       Config
	logger    *slog.Logger
}

// New creates a runner. The archiver may be nil to disable archiving.
func New(mailbox api.Mailbox, renderer api.Renderer, deliverer api.Deliverer, archiver api.Archiver, cfg Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ArtifactName == "" {
		cfg.ArtifactName = DefaultArtifactName
	}
	return &Runner{
		mailbox:   mailbox,
		renderer:  renderer,
		deliverer: deliverer,
		archiver:  archiver,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes search, per-message normalization and extraction,
// assembly, rendering, delivery and mark-as-read, in that order.
//
// A search, render or delivery failure aborts the run; a single
// message's fetch failure only excludes that message; normalization
// problems degrade to partial text. Messages are never marked as read
// unless delivery succeeded.
func (r *Runner) Run(ctx context.Context, criteria query.Criteria) error {
	q := query.Compile(criteria)
	r.logger.Info("searching mailbox", "query", q)

	ids, err := r.mailbox.Search(ctx, q)
	if err != nil {
		return fmt.Errorf("searching mailbox: %w", err)
	}
	if len(ids) == 0 {
		r.logger.Info("no messages matched the criteria")
		return nil
	}

	var inputs []report.Input
	var processed []string
	for _, id := range ids {
		msg, err := r.mailbox.Fetch(ctx, id)
		if err != nil {
			r.logger.Warn("skipping message, fetch failed", "message_id", id, "error", err)
			continue
		}

		body, err := normalize.Message(msg)
		if err != nil {
			r.logger.Warn("message body decoded partially", "message_id", id, "error", err)
		}

		inputs = append(inputs, report.Input{Message: msg, Facts: extract.Facts(body)})
		processed = append(processed, id)
	}
	if len(inputs) == 0 {
		return ErrNoContent
	}

	sections := report.Assemble(inputs)
	artifact := ArtifactName(r.cfg.ArtifactName, criteria.DateRange)

	r.logger.Info("rendering report", "artifact", artifact, "sections", len(sections))
	if err := r.renderer.Render(sections, artifact); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}

	if r.archiver != nil {
		if err := r.archiver.Archive(ctx, filepath.Base(artifact), sections); err != nil {
			r.logger.Warn("archiving report entries failed", "error", err)
		}
	}

	if err := r.deliverer.Deliver(ctx, artifact, r.cfg.Recipient, r.cfg.Subject); err != nil {
		return fmt.Errorf("delivering report: %w", err)
	}
	r.logger.Info("report delivered", "recipient", r.cfg.Recipient, "messages", len(sections))

	if r.cfg.MarkAsRead {
		if err := r.mailbox.MarkProcessed(ctx, processed); err != nil {
			r.logger.Warn("marking messages as read failed", "error", err)
		}
	}

	if !r.cfg.KeepArtifact {
		if err := os.Remove(artifact); err != nil {
			r.logger.Warn("removing artifact failed", "path", artifact, "error", err)
		} else {
			r.logger.Info("removed artifact", "path", artifact)
		}
	}

	return nil
}

// ArtifactName folds the active date range tokens into the base
// artifact name: base_after_before.pdf with the provider's date
// separators removed. Without a date range the base name is used as
// is.
func ArtifactName(base string, dr query.DateRange) string {
	name := strings.TrimSuffix(base, filepath.Ext(base))
	for _, token := range []string{dr.After, dr.Before} {
		if token != "" {
			name += "_" + strings.ReplaceAll(token, "/", "")
		}
	}
	return name + ".pdf"
}
