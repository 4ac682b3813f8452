// Command maildump fetches the messages matching the configured
// criteria and dumps their normalized bodies to files. This utility is
// used to collect email samples for tuning criteria and for unit
// test fixtures.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"google.golang.org/api/gmail/v1"

	"github.com/iabouzeid/gmailscreener/pkg/api"
	"github.com/iabouzeid/gmailscreener/pkg/client"
	"github.com/iabouzeid/gmailscreener/pkg/config"
	"github.com/iabouzeid/gmailscreener/pkg/logging"
	gmailbox "github.com/iabouzeid/gmailscreener/pkg/mailbox/gmail"
	"github.com/iabouzeid/gmailscreener/pkg/normalize"
	"github.com/iabouzeid/gmailscreener/pkg/query"
)

var (
	dumpDir = flag.String("out", "testdata/dump", "directory to write message bodies to")
	maxMsgs = flag.Int("n", 10, "maximum number of messages to dump")
)

func main() {
	flag.Parse()
	logger := logging.Setup(logging.DefaultConfig())

	if err := run(logger); err != nil {
		logger.Error("maildump failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	criteria, err := query.Load(cfg.CriteriaFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	provider := client.Provider{SecretsPath: cfg.CredentialsFile, TokenPath: cfg.TokenFile}
	httpClient, err := provider.Client(ctx, gmail.GmailReadonlyScope)
	if err != nil {
		return fmt.Errorf("creating http client: %w", err)
	}

	mailbox, err := gmailbox.New(httpClient, logger.With("component", "mailbox"))
	if err != nil {
		return fmt.Errorf("creating mailbox: %w", err)
	}

	q := query.Compile(criteria)
	logger.Info("searching", "query", q)

	ids, err := mailbox.Search(ctx, q)
	if err != nil {
		return fmt.Errorf("searching mailbox: %w", err)
	}
	if len(ids) > *maxMsgs {
		ids = ids[:*maxMsgs]
	}

	if err := os.MkdirAll(*dumpDir, 0o755); err != nil {
		return fmt.Errorf("creating dump directory: %w", err)
	}

	dumped := 0
	for _, id := range ids {
		if err := dumpMessage(ctx, mailbox, id, logger); err != nil {
			logger.Warn("failed to dump message", "message_id", id, "error", err)
			continue
		}
		dumped++
	}

	logger.Info("dump complete", "dumped", dumped, "directory", *dumpDir)
	return nil
}

func dumpMessage(ctx context.Context, mailbox *gmailbox.Mailbox, id string, logger *slog.Logger) error {
	msg, err := mailbox.Fetch(ctx, id)
	if err != nil {
		return err
	}

	body, err := normalize.Message(msg)
	if err != nil {
		logger.Warn("message body decoded partially", "message_id", id, "error", err)
	}
	if body == "" {
		return fmt.Errorf("empty message body")
	}

	subject := headerValue(msg.Headers, "Subject")
	filename := sanitizeFilename(fmt.Sprintf("%s_%s.txt", id, subject))
	path := filepath.Join(*dumpDir, filename)

	if _, err := os.Stat(path); err == nil {
		logger.Debug("file already exists, skipping", "file", filename)
		return nil
	}

	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	logger.Info("dumped message", "file", filename, "subject", subject)
	return nil
}

func headerValue(headers []api.Header, name string) string {
	for _, h := range headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}

var (
	unsafeChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f\s]`)
	runs        = regexp.MustCompile(`_+`)
)

func sanitizeFilename(name string) string {
	name = unsafeChars.ReplaceAllString(name, "_")
	name = runs.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if len(name) > 200 {
		name = name[:200]
	}
	return name
}
