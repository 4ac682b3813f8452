// Package normalize converts raw message content into renderer-safe plain text.
package normalize

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/iabouzeid/gmailscreener/pkg/api"
)

const (
	mimeTextPlain = "text/plain"
	mimeTextHTML  = "text/html"
)

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Message reconstructs the plain-text body of a message. text/plain
// parts are appended verbatim; text/html parts are stripped of markup
// with entities resolved and whitespace collapsed. The accumulated text
// is escaped so no residual markup can reach the report renderer.
//
// Malformed part encodings are skipped and reported through the
// returned error; the text built from the remaining parts is still
// returned, so callers can degrade to partial content instead of
// dropping the message.
func Message(msg *api.Message) (string, error) {
	var sb strings.Builder
	var errs []error

	var walk func(p api.Part)
	walk = func(p api.Part) {
		switch p.MIMEType {
		case mimeTextPlain:
			if data, err := decodePart(p); err != nil {
				errs = append(errs, err)
			} else {
				sb.WriteString(data)
			}
		case mimeTextHTML:
			if data, err := decodePart(p); err != nil {
				errs = append(errs, err)
			} else {
				sb.WriteString(HTMLToText(data))
			}
		}
		for _, child := range p.Parts {
			walk(child)
		}
	}

	if len(msg.Parts) > 0 {
		for _, p := range msg.Parts {
			walk(p)
		}
	} else if msg.Body.Data != "" {
		// Single-part message: the payload may carry markup regardless
		// of its declared type, so it goes through the HTML stripper.
		if data, err := decodePart(msg.Body); err != nil {
			errs = append(errs, err)
		} else {
			sb.WriteString(HTMLToText(data))
		}
	}

	return Escape(sb.String()), errors.Join(errs...)
}

// decodePart decodes a part's base64url payload. A part with no
// payload contributes nothing and is not an error.
func decodePart(p api.Part) (string, error) {
	if p.Data == "" {
		return "", nil
	}
	data, err := base64.URLEncoding.DecodeString(p.Data)
	if err != nil {
		return "", fmt.Errorf("decoding %s part: %w", p.MIMEType, err)
	}
	return string(data), nil
}

// HTMLToText strips all markup from an HTML fragment using a
// structural parse, resolves entity references, collapses whitespace
// runs to single spaces and trims the result. Input without markup
// passes through unchanged apart from whitespace collapse.
func HTMLToText(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		// The parser recovers from malformed markup on its own; a hard
		// parse failure leaves nothing usable.
		return ""
	}

	var sb strings.Builder
	var extract func(n *html.Node)
	extract = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "style", "script", "noscript", "iframe", "head", "meta", "link":
				return
			}
		case html.TextNode:
			sb.WriteString(n.Data)
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}

		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "br", "tr", "li", "h1", "h2", "h3", "h4", "h5", "h6":
				sb.WriteString(" ")
			}
		}
	}
	extract(doc)

	return strings.Join(strings.Fields(sb.String()), " ")
}

// Escape replaces characters reserved by the report renderer's markup
// dialect so extracted text is never interpreted as structure.
func Escape(text string) string {
	return escaper.Replace(text)
}

// CleanText is HTMLToText followed by Escape, for short provider
// strings such as snippets.
func CleanText(text string) string {
	return Escape(HTMLToText(text))
}
