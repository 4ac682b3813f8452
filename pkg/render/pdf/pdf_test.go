package pdf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iabouzeid/gmailscreener/pkg/api"
)

func TestRender(t *testing.T) {
	sections := []api.Section{
		{
			MessageID:    "m1",
			Subject:      "Your invoice",
			Date:         "Mon, 15 Jan 2024 10:00:00 -0500",
			From:         "billing@example.com",
			Amounts:      []string{"$1,234.56", "$12.00"},
			ExpenseLines: []string{"Total: $1,234.56 due"},
			Snippet:      "Invoice for January",
		},
		{
			MessageID: "m2",
			Subject:   "N/A",
			Date:      "N/A",
			From:      "N/A",
			Snippet:   "no facts in this one",
		},
	}

	path := filepath.Join(t.TempDir(), "report.pdf")
	if err := New(nil).Render(sections, path); err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading rendered file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("rendered file is empty")
	}
	if !strings.HasPrefix(string(data), "%PDF") {
		t.Errorf("rendered file does not start with PDF magic, got %q", data[:8])
	}
}

func TestRenderNoSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pdf")
	if err := New(nil).Render(nil, path); err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("rendered file missing: %v", err)
	}
}

func TestRenderBadPath(t *testing.T) {
	err := New(nil).Render(nil, filepath.Join(t.TempDir(), "no", "such", "dir", "x.pdf"))
	if err == nil {
		t.Error("Render() to nonexistent directory: expected error, got nil")
	}
}
