// Package gmail sends the generated report as an email attachment via the Gmail API.
package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go"
	"github.com/emersion/go-message/mail"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const user = "me"

// bodyText is the inline note accompanying the attachment.
const bodyText = "Please find the attached PDF containing the forwarded emails."

// Deliverer sends report artifacts from the authenticated account.
type Deliverer struct {
	svc    *gmail.Service
	logger *slog.Logger
}

// New creates a deliverer using the given authenticated HTTP client.
func New(httpClient *http.Client, logger *slog.Logger) (*Deliverer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	svc, err := gmail.NewService(context.Background(), option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}

	return &Deliverer{svc: svc, logger: logger}, nil
}

// Deliver sends the file at attachmentPath to the recipient. The send
// is retried once on rate limiting; any other failure is returned so
// the caller can abort before marking messages processed.
func (d *Deliverer) Deliver(ctx context.Context, attachmentPath, recipient, subject string) error {
	attachment, err := os.ReadFile(attachmentPath)
	if err != nil {
		return fmt.Errorf("reading attachment: %w", err)
	}

	raw, err := buildMessage(recipient, subject, attachment, filepath.Base(attachmentPath))
	if err != nil {
		return fmt.Errorf("building message: %w", err)
	}

	err = retry.Do(
		func() error {
			_, err := d.svc.Users.Messages.Send(user, &gmail.Message{
				Raw: base64.URLEncoding.EncodeToString(raw),
			}).Context(ctx).Do()
			return err
		},
		retry.RetryIf(isRateLimited),
		retry.Attempts(2),
		retry.Delay(60*time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}

	d.logger.Info("report delivered", "recipient", recipient, "attachment", filepath.Base(attachmentPath))
	return nil
}

// buildMessage assembles a multipart/mixed RFC 5322 message with a
// plain-text body and a single PDF attachment.
func buildMessage(recipient, subject string, attachment []byte, filename string) ([]byte, error) {
	var buf bytes.Buffer

	var header mail.Header
	header.SetDate(time.Now())
	header.SetAddressList("To", []*mail.Address{{Address: recipient}})
	header.SetSubject(subject)

	w, err := mail.CreateWriter(&buf, header)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}

	var inlineHeader mail.InlineHeader
	inlineHeader.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	body, err := w.CreateSingleInline(inlineHeader)
	if err != nil {
		return nil, fmt.Errorf("creating body part: %w", err)
	}
	if _, err := io.WriteString(body, bodyText); err != nil {
		return nil, fmt.Errorf("writing body part: %w", err)
	}
	if err := body.Close(); err != nil {
		return nil, fmt.Errorf("closing body part: %w", err)
	}

	var attachmentHeader mail.AttachmentHeader
	attachmentHeader.SetContentType("application/pdf", nil)
	attachmentHeader.SetFilename(filename)
	part, err := w.CreateAttachment(attachmentHeader)
	if err != nil {
		return nil, fmt.Errorf("creating attachment part: %w", err)
	}
	if _, err := part.Write(attachment); err != nil {
		return nil, fmt.Errorf("writing attachment: %w", err)
	}
	if err := part.Close(); err != nil {
		return nil, fmt.Errorf("closing attachment part: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message writer: %w", err)
	}

	return buf.Bytes(), nil
}

func isRateLimited(err error) bool {
	if apiErr, ok := err.(*googleapi.Error); ok {
		return apiErr.Code == http.StatusTooManyRequests
	}
	return false
}
