package normalize

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/iabouzeid/gmailscreener/pkg/api"
)

func encode(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestMessageMultipart(t *testing.T) {
	msg := &api.Message{
		Parts: []api.Part{
			{MIMEType: "text/plain", Data: encode("Order confirmed.\nTotal: $42.00\n")},
			{MIMEType: "text/html", Data: encode("<p>Thanks   for\nyour <b>purchase</b>!</p>")},
		},
	}

	got, err := Message(msg)
	if err != nil {
		t.Fatalf("Message() error: %v", err)
	}

	want := "Order confirmed.\nTotal: $42.00\nThanks for your purchase!"
	if got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}
}

func TestMessageNestedParts(t *testing.T) {
	msg := &api.Message{
		Parts: []api.Part{
			{
				MIMEType: "multipart/alternative",
				Parts: []api.Part{
					{MIMEType: "text/plain", Data: encode("plain here ")},
					{MIMEType: "text/html", Data: encode("<div>html here</div>")},
				},
			},
		},
	}

	got, err := Message(msg)
	if err != nil {
		t.Fatalf("Message() error: %v", err)
	}

	if got != "plain here html here" {
		t.Errorf("Message() = %q", got)
	}
}

func TestMessageEntityRoundTrip(t *testing.T) {
	msg := &api.Message{
		Parts: []api.Part{
			{MIMEType: "text/html", Data: encode("<b>Paid</b> &amp; done")},
		},
	}

	got, err := Message(msg)
	if err != nil {
		t.Fatalf("Message() error: %v", err)
	}

	if got != "Paid &amp; done" {
		t.Errorf("Message() = %q, want %q", got, "Paid &amp; done")
	}
}

func TestMessageSinglePartBody(t *testing.T) {
	msg := &api.Message{
		Body: api.Part{MIMEType: "text/html", Data: encode("<h1>Invoice</h1><p>Amount due: $10.00</p>")},
	}

	got, err := Message(msg)
	if err != nil {
		t.Fatalf("Message() error: %v", err)
	}

	if got != "Invoice Amount due: $10.00" {
		t.Errorf("Message() = %q", got)
	}
}

func TestMessagePartWithoutPayload(t *testing.T) {
	msg := &api.Message{
		Parts: []api.Part{
			{MIMEType: "text/plain"},
			{MIMEType: "text/plain", Data: encode("still here")},
		},
	}

	got, err := Message(msg)
	if err != nil {
		t.Fatalf("Message() error: %v", err)
	}

	if got != "still here" {
		t.Errorf("Message() = %q, want %q", got, "still here")
	}
}

func TestMessageMalformedEncoding(t *testing.T) {
	msg := &api.Message{
		Parts: []api.Part{
			{MIMEType: "text/plain", Data: "!!! not base64 !!!"},
			{MIMEType: "text/plain", Data: encode("good part")},
		},
	}

	got, err := Message(msg)
	if err == nil {
		t.Error("Message() with malformed part: expected error, got nil")
	}

	// The remaining parts still yield best-effort text.
	if got != "good part" {
		t.Errorf("Message() = %q, want %q", got, "good part")
	}
}

func TestMessagePlainPartEscaped(t *testing.T) {
	msg := &api.Message{
		Parts: []api.Part{
			{MIMEType: "text/plain", Data: encode("a < b & c > d")},
		},
	}

	got, err := Message(msg)
	if err != nil {
		t.Fatalf("Message() error: %v", err)
	}

	if got != "a &lt; b &amp; c &gt; d" {
		t.Errorf("Message() = %q", got)
	}
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "tags and attributes removed",
			input: `<a href="http://example.com" style="color:red">click</a> here`,
			want:  "click here",
		},
		{
			name:  "entities resolved",
			input: "Fish &amp; Chips &lt;fresh&gt;",
			want:  "Fish & Chips <fresh>",
		},
		{
			name:  "whitespace collapsed",
			input: "one\n\ntwo\t three   four",
			want:  "one two three four",
		},
		{
			name:  "script and style dropped",
			input: "<style>p{color:red}</style><script>alert(1)</script>visible",
			want:  "visible",
		},
		{
			name:  "plain text unchanged",
			input: "Total: $1,234.56 due",
			want:  "Total: $1,234.56 due",
		},
		{
			name:  "block elements separate words",
			input: "<p>first</p><p>second</p>",
			want:  "first second",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := HTMLToText(tc.input)
			if got != tc.want {
				t.Errorf("HTMLToText(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestHTMLToTextIdempotentOnPlainText(t *testing.T) {
	input := "Receipt  for order   12345, charged $99.99"
	collapsed := strings.Join(strings.Fields(input), " ")

	once := HTMLToText(input)
	if once != collapsed {
		t.Errorf("HTMLToText(plain) = %q, want %q", once, collapsed)
	}
	if twice := HTMLToText(once); twice != once {
		t.Errorf("HTMLToText not idempotent: %q -> %q", once, twice)
	}
}

func TestEscape(t *testing.T) {
	got := Escape(`5 < 6 && 7 > 4`)
	want := "5 &lt; 6 &amp;&amp; 7 &gt; 4"
	if got != want {
		t.Errorf("Escape() = %q, want %q", got, want)
	}
}

func TestCleanText(t *testing.T) {
	got := CleanText("<b>Shipped!</b> Tracking &amp; details inside")
	want := "Shipped! Tracking &amp; details inside"
	if got != want {
		t.Errorf("CleanText() = %q, want %q", got, want)
	}
}
