package artifact

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"courtside/internal/report"
)

// FailedBanner prefixes the content of every failed placeholder.
const FailedBanner = "[REPORT GENERATION FAILED]"

// Renderer encodes an artifact into one file format.
type Renderer interface {
	// Ext returns the file extension without the dot.
	Ext() string
	Render(w io.Writer, a report.Artifact) error
}

// TextRenderer writes plain UTF-8 text.
type TextRenderer struct{}

func (TextRenderer) Ext() string { return "txt" }

func (TextRenderer) Render(w io.Writer, a report.Artifact) error {
	var b strings.Builder
	if a.Failed {
		b.WriteString(FailedBanner)
		b.WriteString("\n")
		if a.FailureReason != "" {
			fmt.Fprintf(&b, "Reason: %s\n", a.FailureReason)
		}
		b.WriteString("\n")
	}
	b.WriteString(a.Text())
	fmt.Fprintf(&b, "\nGenerated: %s\n", a.GeneratedAt.UTC().Format(time.RFC3339))
	_, err := io.WriteString(w, b.String())
	return err
}

// PDFRenderer lays the artifact out on A4 pages with the core Helvetica font.
// The core fonts only cover Latin script.
type PDFRenderer struct{}

func (PDFRenderer) Ext() string { return "pdf" }

func (PDFRenderer) Render(w io.Writer, a report.Artifact) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetTitle(a.Title, true)
	pdf.SetAuthor("courtside", false)
	pdf.SetCreationDate(a.GeneratedAt)
	pdf.SetModificationDate(a.GeneratedAt)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	if a.Failed {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.SetTextColor(200, 0, 0)
		pdf.SetFillColor(255, 230, 230)
		pdf.CellFormat(0, 10, FailedBanner, "1", 1, "C", true, 0, "")
		if a.FailureReason != "" {
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, 5, tr(a.FailureReason), "", "L", false)
		}
		pdf.Ln(4)
	}

	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(20, 40, 90)
	pdf.MultiCell(0, 9, tr(a.Title), "", "C", false)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 6, "Generated "+a.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	for _, s := range a.Sections {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.SetTextColor(20, 40, 90)
		pdf.MultiCell(0, 7, tr(s.Heading), "B", "L", false)
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "", 11)
		pdf.SetTextColor(0, 0, 0)
		for _, para := range strings.Split(s.Body, "\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				pdf.Ln(3)
				continue
			}
			if strings.HasPrefix(para, "- ") || strings.HasPrefix(para, "* ") {
				para = "• " + strings.TrimSpace(para[2:])
			}
			pdf.MultiCell(0, 6, tr(para), "", "L", false)
		}
		pdf.Ln(4)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("layout pdf: %w", err)
	}
	return pdf.Output(w)
}
