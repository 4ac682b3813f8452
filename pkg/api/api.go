// Package api defines the core interfaces and data structures for gmailscreener.
package api

import "context"

// Header is a single message header name/value pair.
type Header struct {
	Name  string
	Value string
}

// Part is one MIME part of a message body. Data carries the payload as
// supplied by the provider (base64url); it is empty when the provider
// returned no payload for the part.
type Part struct {
	MIMEType string
	Data     string
	Parts    []Part
}

// Message is a raw message as retrieved from the mailbox service.
type Message struct {
	ID      string
	Headers []Header
	// Body is the single-part payload, used when Parts is empty.
	Body    Part
	Parts   []Part
	Snippet string
}

// Facts holds the financially relevant content extracted from one message.
type Facts struct {
	// Amounts are monetary amount tokens in order of first appearance,
	// duplicates retained.
	Amounts []string
	// ExpenseLines are body lines containing an expense keyword, in
	// original order.
	ExpenseLines []string
}

// Section is one message's contribution to the generated report.
// All text fields are safe for the report renderer.
type Section struct {
	MessageID    string
	Subject      string
	Date         string
	From         string
	Amounts      []string
	ExpenseLines []string
	Snippet      string
}

// Mailbox is the remote mailbox service consumed by the pipeline.
type Mailbox interface {
	// Search returns the IDs of all messages matching the query,
	// following provider pagination to exhaustion.
	Search(ctx context.Context, query string) ([]string, error)
	Fetch(ctx context.Context, id string) (*Message, error)
	// MarkProcessed marks the given messages as read. Best-effort and
	// idempotent.
	MarkProcessed(ctx context.Context, ids []string) error
}

// Renderer builds the report artifact from assembled sections.
type Renderer interface {
	Render(sections []Section, path string) error
}

// Deliverer sends the rendered artifact as an attachment.
type Deliverer interface {
	Deliver(ctx context.Context, attachmentPath, recipient, subject string) error
}

// Archiver records report sections in durable storage after a run.
type Archiver interface {
	Archive(ctx context.Context, artifactName string, sections []Section) error
}
