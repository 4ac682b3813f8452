package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/iabouzeid/gmailscreener/pkg/api"
	"github.com/iabouzeid/gmailscreener/pkg/query"
)

type fakeMailbox struct {
	ids        []string
	messages   map[string]*api.Message
	failFetch  map[string]bool
	searchErr  error
	markErr    error
	gotQuery   string
	marked     []string
	markCalled bool
}

func (f *fakeMailbox) Search(_ context.Context, q string) ([]string, error) {
	f.gotQuery = q
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.ids, nil
}

func (f *fakeMailbox) Fetch(_ context.Context, id string) (*api.Message, error) {
	if f.failFetch[id] {
		return nil, errors.New("fetch failed")
	}
	return f.messages[id], nil
}

func (f *fakeMailbox) MarkProcessed(_ context.Context, ids []string) error {
	f.markCalled = true
	f.marked = append(f.marked, ids...)
	return f.markErr
}

type fakeRenderer struct {
	err      error
	path     string
	sections []api.Section
}

func (f *fakeRenderer) Render(sections []api.Section, path string) error {
	if f.err != nil {
		return f.err
	}
	f.sections = sections
	f.path = path
	return os.WriteFile(path, []byte("%PDF fake"), 0o644)
}

type fakeDeliverer struct {
	err       error
	delivered bool
	path      string
	recipient string
	subject   string
}

func (f *fakeDeliverer) Deliver(_ context.Context, path, recipient, subject string) error {
	if f.err != nil {
		return f.err
	}
	f.delivered = true
	f.path = path
	f.recipient = recipient
	f.subject = subject
	return nil
}

type fakeArchiver struct {
	err      error
	artifact string
	sections []api.Section
}

func (f *fakeArchiver) Archive(_ context.Context, artifactName string, sections []api.Section) error {
	if f.err != nil {
		return f.err
	}
	f.artifact = artifactName
	f.sections = sections
	return nil
}

func encode(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func testMessage(id, subject, body string) *api.Message {
	return &api.Message{
		ID: id,
		Headers: []api.Header{
			{Name: "Subject", Value: subject},
			{Name: "From", Value: "sender@example.com"},
			{Name: "Date", Value: "Mon, 15 Jan 2024 10:00:00 -0500"},
		},
		Parts: []api.Part{
			{MIMEType: "text/plain", Data: encode(body)},
		},
		Snippet: "snippet for " + id,
	}
}

func newTestRunner(t *testing.T, mb *fakeMailbox, rd *fakeRenderer, dl *fakeDeliverer, ar api.Archiver, cfg Config) *Runner {
	t.Helper()
	if cfg.ArtifactName == "" {
		cfg.ArtifactName = filepath.Join(t.TempDir(), "report.pdf")
	}
	if cfg.Recipient == "" {
		cfg.Recipient = "me@example.com"
	}
	if cfg.Subject == "" {
		cfg.Subject = "Forwarded Emails in PDF"
	}
	return New(mb, rd, dl, ar, cfg, nil)
}

func TestRunHappyPath(t *testing.T) {
	mb := &fakeMailbox{
		ids: []string{"m1", "m2"},
		messages: map[string]*api.Message{
			"m1": testMessage("m1", "Invoice", "Total: $1,234.56 due"),
			"m2": testMessage("m2", "Newsletter", "nothing financial"),
		},
	}
	rd := &fakeRenderer{}
	dl := &fakeDeliverer{}
	ar := &fakeArchiver{}

	r := newTestRunner(t, mb, rd, dl, ar, Config{MarkAsRead: true})
	criteria := query.Criteria{Include: query.TermGroup{Terms: []string{"invoice"}}}

	if err := r.Run(context.Background(), criteria); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if mb.gotQuery != "(invoice)" {
		t.Errorf("query = %q, want %q", mb.gotQuery, "(invoice)")
	}
	if len(rd.sections) != 2 {
		t.Fatalf("rendered %d sections, want 2", len(rd.sections))
	}
	if rd.sections[0].Subject != "Invoice" || rd.sections[1].Subject != "Newsletter" {
		t.Errorf("section order wrong: %q, %q", rd.sections[0].Subject, rd.sections[1].Subject)
	}
	if got := rd.sections[0].Amounts; len(got) != 1 || got[0] != "$1,234.56" {
		t.Errorf("first section amounts = %v", got)
	}
	if !dl.delivered {
		t.Error("report was not delivered")
	}
	if dl.path != rd.path {
		t.Errorf("delivered %q but rendered %q", dl.path, rd.path)
	}
	if len(mb.marked) != 2 {
		t.Errorf("marked %v, want both messages", mb.marked)
	}
	if len(ar.sections) != 2 {
		t.Errorf("archived %d sections, want 2", len(ar.sections))
	}

	// Artifact is cleaned up after successful delivery.
	if _, err := os.Stat(rd.path); !os.IsNotExist(err) {
		t.Errorf("artifact still exists after run: %v", err)
	}
}

func TestRunFetchFailureSkipsMessage(t *testing.T) {
	mb := &fakeMailbox{
		ids: []string{"m1", "m2", "m3"},
		messages: map[string]*api.Message{
			"m1": testMessage("m1", "one", "a"),
			"m3": testMessage("m3", "three", "c"),
		},
		failFetch: map[string]bool{"m2": true},
	}
	rd := &fakeRenderer{}
	dl := &fakeDeliverer{}

	r := newTestRunner(t, mb, rd, dl, nil, Config{MarkAsRead: true})
	if err := r.Run(context.Background(), query.Criteria{}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(rd.sections) != 2 {
		t.Fatalf("rendered %d sections, want 2", len(rd.sections))
	}
	if rd.sections[0].Subject != "one" || rd.sections[1].Subject != "three" {
		t.Errorf("sections = %q, %q", rd.sections[0].Subject, rd.sections[1].Subject)
	}
	if !dl.delivered {
		t.Error("run should still deliver after a single fetch failure")
	}
	if len(mb.marked) != 2 || mb.marked[0] != "m1" || mb.marked[1] != "m3" {
		t.Errorf("marked = %v, want [m1 m3]", mb.marked)
	}
}

func TestRunSearchFailureAborts(t *testing.T) {
	mb := &fakeMailbox{searchErr: errors.New("boom")}
	rd := &fakeRenderer{}
	dl := &fakeDeliverer{}

	r := newTestRunner(t, mb, rd, dl, nil, Config{})
	if err := r.Run(context.Background(), query.Criteria{}); err == nil {
		t.Fatal("Run() expected error on search failure")
	}

	if rd.sections != nil || dl.delivered {
		t.Error("no rendering or delivery should happen after search failure")
	}
}

func TestRunNoMatches(t *testing.T) {
	mb := &fakeMailbox{}
	rd := &fakeRenderer{}
	dl := &fakeDeliverer{}

	r := newTestRunner(t, mb, rd, dl, nil, Config{})
	if err := r.Run(context.Background(), query.Criteria{}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if rd.sections != nil || dl.delivered || mb.markCalled {
		t.Error("nothing should happen when no messages match")
	}
}

func TestRunAllFetchesFail(t *testing.T) {
	mb := &fakeMailbox{
		ids:       []string{"m1", "m2"},
		failFetch: map[string]bool{"m1": true, "m2": true},
	}
	rd := &fakeRenderer{}
	dl := &fakeDeliverer{}

	r := newTestRunner(t, mb, rd, dl, nil, Config{})
	err := r.Run(context.Background(), query.Criteria{})
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("Run() error = %v, want ErrNoContent", err)
	}
	if dl.delivered {
		t.Error("nothing should be delivered when no content was fetched")
	}
}

func TestRunRenderFailureAborts(t *testing.T) {
	mb := &fakeMailbox{
		ids:      []string{"m1"},
		messages: map[string]*api.Message{"m1": testMessage("m1", "s", "b")},
	}
	rd := &fakeRenderer{err: errors.New("render boom")}
	dl := &fakeDeliverer{}

	r := newTestRunner(t, mb, rd, dl, nil, Config{MarkAsRead: true})
	if err := r.Run(context.Background(), query.Criteria{}); err == nil {
		t.Fatal("Run() expected error on render failure")
	}

	if dl.delivered || mb.markCalled {
		t.Error("no delivery or marking after render failure")
	}
}

func TestRunDeliveryFailureSkipsMarking(t *testing.T) {
	mb := &fakeMailbox{
		ids:      []string{"m1"},
		messages: map[string]*api.Message{"m1": testMessage("m1", "s", "b")},
	}
	rd := &fakeRenderer{}
	dl := &fakeDeliverer{err: errors.New("send boom")}

	r := newTestRunner(t, mb, rd, dl, nil, Config{MarkAsRead: true})
	if err := r.Run(context.Background(), query.Criteria{}); err == nil {
		t.Fatal("Run() expected error on delivery failure")
	}

	if mb.markCalled {
		t.Error("messages must never be marked without confirmed delivery")
	}
}

func TestRunMarkAsReadDisabled(t *testing.T) {
	mb := &fakeMailbox{
		ids:      []string{"m1"},
		messages: map[string]*api.Message{"m1": testMessage("m1", "s", "b")},
	}
	rd := &fakeRenderer{}
	dl := &fakeDeliverer{}

	r := newTestRunner(t, mb, rd, dl, nil, Config{MarkAsRead: false})
	if err := r.Run(context.Background(), query.Criteria{}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if mb.markCalled {
		t.Error("marking should be skipped when disabled")
	}
}

func TestRunMarkFailureIsNotFatal(t *testing.T) {
	mb := &fakeMailbox{
		ids:      []string{"m1"},
		messages: map[string]*api.Message{"m1": testMessage("m1", "s", "b")},
		markErr:  errors.New("mark boom"),
	}
	rd := &fakeRenderer{}
	dl := &fakeDeliverer{}

	r := newTestRunner(t, mb, rd, dl, nil, Config{MarkAsRead: true})
	if err := r.Run(context.Background(), query.Criteria{}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

func TestRunArchiveFailureIsNotFatal(t *testing.T) {
	mb := &fakeMailbox{
		ids:      []string{"m1"},
		messages: map[string]*api.Message{"m1": testMessage("m1", "s", "b")},
	}
	rd := &fakeRenderer{}
	dl := &fakeDeliverer{}
	ar := &fakeArchiver{err: errors.New("archive boom")}

	r := newTestRunner(t, mb, rd, dl, ar, Config{})
	if err := r.Run(context.Background(), query.Criteria{}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !dl.delivered {
		t.Error("delivery should proceed despite archive failure")
	}
}

func TestRunKeepArtifact(t *testing.T) {
	mb := &fakeMailbox{
		ids:      []string{"m1"},
		messages: map[string]*api.Message{"m1": testMessage("m1", "s", "b")},
	}
	rd := &fakeRenderer{}
	dl := &fakeDeliverer{}

	r := newTestRunner(t, mb, rd, dl, nil, Config{KeepArtifact: true})
	if err := r.Run(context.Background(), query.Criteria{}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if _, err := os.Stat(rd.path); err != nil {
		t.Errorf("artifact should be kept: %v", err)
	}
}

func TestArtifactName(t *testing.T) {
	tests := []struct {
		name string
		base string
		dr   query.DateRange
		want string
	}{
		{
			name: "no date range",
			base: "forwarded_emails.pdf",
			dr:   query.DateRange{},
			want: "forwarded_emails.pdf",
		},
		{
			name: "full range",
			base: "forwarded_emails.pdf",
			dr:   query.DateRange{After: "2024/01/01", Before: "2024/02/01"},
			want: "forwarded_emails_20240101_20240201.pdf",
		},
		{
			name: "after only",
			base: "report.pdf",
			dr:   query.DateRange{After: "2024/01/01"},
			want: "report_20240101.pdf",
		},
		{
			name: "before only",
			base: "report.pdf",
			dr:   query.DateRange{Before: "2024/02/01"},
			want: "report_20240201.pdf",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ArtifactName(tc.base, tc.dr); got != tc.want {
				t.Errorf("ArtifactName() = %q, want %q", got, tc.want)
			}
		})
	}
}
