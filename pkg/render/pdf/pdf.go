// Package pdf renders report sections into a paginated PDF document.
package pdf

import (
	"fmt"
	"log/slog"

	"github.com/go-pdf/fpdf"

	"github.com/iabouzeid/gmailscreener/pkg/api"
)

const (
	fontFamily  = "Helvetica"
	lineHeight  = 5
	blockGap    = 4
	sectionGap  = 10
	amountsHead = "Dollar Amounts Found:"
	expenseHead = "Expense/Purchase Details:"
)

// Renderer writes report sections to a Letter-sized PDF with page
// numbers on every page.
type Renderer struct {
	logger *slog.Logger
}

// New creates a PDF renderer.
func New(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{logger: logger}
}

// Render writes one block per section to the document at path: the
// subject/date/sender heading, the amounts block when non-empty, the
// expense-lines block when non-empty, then the snippet. Nothing is
// written to path on failure.
func (r *Renderer) Render(sections []api.Section, path string) error {
	doc := fpdf.New("P", "mm", "Letter", "")
	doc.SetFooterFunc(func() {
		doc.SetY(-15)
		doc.SetFont(fontFamily, "", 9)
		doc.CellFormat(0, 10, fmt.Sprintf("Page %d", doc.PageNo()), "", 0, "R", false, 0, "")
	})
	doc.AddPage()

	for _, s := range sections {
		r.renderSection(doc, s)
	}

	if err := doc.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}

	r.logger.Info("report rendered", "path", path, "sections", len(sections), "pages", doc.PageCount())
	return nil
}

func (r *Renderer) renderSection(doc *fpdf.Fpdf, s api.Section) {
	doc.SetFont(fontFamily, "B", 13)
	doc.MultiCell(0, 6, "Subject: "+s.Subject, "", "L", false)
	doc.SetFont(fontFamily, "B", 11)
	doc.MultiCell(0, lineHeight, "Date: "+s.Date, "", "L", false)
	doc.SetFont(fontFamily, "", 11)
	doc.MultiCell(0, lineHeight, "From: "+s.From, "", "L", false)
	doc.Ln(blockGap)

	if len(s.Amounts) > 0 {
		doc.SetFont(fontFamily, "B", 11)
		doc.MultiCell(0, lineHeight, amountsHead, "", "L", false)
		doc.SetFont(fontFamily, "", 11)
		for _, amount := range s.Amounts {
			doc.MultiCell(0, lineHeight, amount, "", "L", false)
		}
		doc.Ln(blockGap)
	}

	if len(s.ExpenseLines) > 0 {
		doc.SetFont(fontFamily, "B", 11)
		doc.MultiCell(0, lineHeight, expenseHead, "", "L", false)
		doc.SetFont(fontFamily, "", 11)
		for _, line := range s.ExpenseLines {
			doc.MultiCell(0, lineHeight, line, "", "L", false)
		}
		doc.Ln(blockGap)
	}

	doc.SetFont(fontFamily, "", 11)
	doc.MultiCell(0, lineHeight, s.Snippet, "", "L", false)
	doc.Ln(sectionGap)
}
