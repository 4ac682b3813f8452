// Package report arranges extracted facts and message metadata into report sections.
package report

import (
	"github.com/iabouzeid/gmailscreener/pkg/api"
	"github.com/iabouzeid/gmailscreener/pkg/normalize"
)

// missingHeader is the placeholder for absent Subject/From/Date headers.
const missingHeader = "N/A"

// Input pairs a fetched message with its derived data.
type Input struct {
	Message *api.Message
	Facts   api.Facts
}

// Assemble produces one section per input message, in input order.
// Subject, From and Date come from exact case-sensitive header lookup
// with first match winning; absent headers fall back to a placeholder.
// The snippet is cleaned for the renderer.
func Assemble(inputs []Input) []api.Section {
	sections := make([]api.Section, 0, len(inputs))
	for _, in := range inputs {
		sections = append(sections, api.Section{
			MessageID:    in.Message.ID,
			Subject:      normalize.Escape(headerValue(in.Message.Headers, "Subject")),
			Date:         normalize.Escape(headerValue(in.Message.Headers, "Date")),
			From:         normalize.Escape(headerValue(in.Message.Headers, "From")),
			Amounts:      in.Facts.Amounts,
			ExpenseLines: in.Facts.ExpenseLines,
			Snippet:      normalize.CleanText(in.Message.Snippet),
		})
	}
	return sections
}

func headerValue(headers []api.Header, name string) string {
	for _, h := range headers {
		if h.Name == name {
			return h.Value
		}
	}
	return missingHeader
}
