// Package gmail implements the mailbox service backed by the Gmail API.
package gmail

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/iabouzeid/gmailscreener/pkg/api"
)

const user = "me"

// Mailbox searches, fetches and marks messages through the Gmail API.
type Mailbox struct {
	svc    *gmail.Service
	logger *slog.Logger
}

// New creates a Gmail mailbox using the given authenticated HTTP client.
func New(httpClient *http.Client, logger *slog.Logger) (*Mailbox, error) {
	if logger == nil {
		logger = slog.Default()
	}

	svc, err := gmail.NewService(context.Background(), option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}

	return &Mailbox{svc: svc, logger: logger}, nil
}

// Search returns the IDs of all messages matching the query, following
// result pagination to exhaustion. List calls are retried once on rate
// limiting.
func (m *Mailbox) Search(ctx context.Context, query string) ([]string, error) {
	var ids []string
	pageToken := ""

	for {
		var resp *gmail.ListMessagesResponse
		err := retry.Do(
			func() error {
				call := m.svc.Users.Messages.List(user).Q(query).Context(ctx)
				if pageToken != "" {
					call = call.PageToken(pageToken)
				}
				var err error
				resp, err = call.Do()
				return err
			},
			retry.RetryIf(isRateLimited),
			retry.Attempts(2),
			retry.Delay(60*time.Second),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			return nil, fmt.Errorf("listing messages: %w", err)
		}

		for _, msg := range resp.Messages {
			ids = append(ids, msg.Id)
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	m.logger.Info("search complete", "query", query, "count", len(ids))
	return ids, nil
}

// Fetch retrieves the full content of a single message.
func (m *Mailbox) Fetch(ctx context.Context, id string) (*api.Message, error) {
	msg, err := m.svc.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("getting message %s: %w", id, err)
	}
	return convertMessage(msg), nil
}

// MarkProcessed removes the UNREAD label from the given messages in a
// single batch call. Removing an absent label is a no-op, so the call
// is idempotent.
func (m *Mailbox) MarkProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	err := m.svc.Users.Messages.BatchModify(user, &gmail.BatchModifyMessagesRequest{
		Ids:            ids,
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("marking %d messages as read: %w", len(ids), err)
	}

	m.logger.Info("marked messages as read", "count", len(ids))
	return nil
}

func isRateLimited(err error) bool {
	if apiErr, ok := err.(*googleapi.Error); ok {
		return apiErr.Code == http.StatusTooManyRequests
	}
	return false
}

// convertMessage maps the provider's message shape onto the pipeline's.
// Part payloads stay in the provider's transport encoding; decoding is
// the normalizer's job so a malformed part degrades per message.
func convertMessage(msg *gmail.Message) *api.Message {
	out := &api.Message{ID: msg.Id, Snippet: msg.Snippet}

	payload := msg.Payload
	if payload == nil {
		return out
	}

	for _, h := range payload.Headers {
		out.Headers = append(out.Headers, api.Header{Name: h.Name, Value: h.Value})
	}

	out.Body.MIMEType = payload.MimeType
	if payload.Body != nil {
		out.Body.Data = payload.Body.Data
	}

	for _, part := range payload.Parts {
		out.Parts = append(out.Parts, convertPart(part))
	}

	return out
}

func convertPart(part *gmail.MessagePart) api.Part {
	out := api.Part{MIMEType: part.MimeType}
	if part.Body != nil {
		out.Data = part.Body.Data
	}
	for _, child := range part.Parts {
		out.Parts = append(out.Parts, convertPart(child))
	}
	return out
}
