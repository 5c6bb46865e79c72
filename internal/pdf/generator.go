package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/nurpe/rental-contracts/internal/model"
)

const fontName = "Helvetica"

// Generator renders the audit trail of a contract process. The core
// Helvetica font is used, with text translated to cp1252.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(report model.ProcessReport) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	p := report.Process

	pdf.SetFont(fontName, "B", 14)
	pdf.CellFormat(0, 10, "Rental contract audit trail", "", 1, "C", false, 0, "")
	pdf.SetFont(fontName, "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Process %s, generated %s", p.ID, formatDateTime(report.GeneratedAt)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	section(pdf, "Status")
	lines := []string{
		fmt.Sprintf("State: %s", p.State),
		fmt.Sprintf("Stage: %d %s%s", report.Stage.Stage, report.Stage.Name, closedSuffix(report.Stage.Closed)),
		fmt.Sprintf("Tenant review: %s", p.TenantReviewStatus()),
		fmt.Sprintf("Signing: %s", report.SigningStatus),
		fmt.Sprintf("Property: %s (%.1f m2, %s)", safeValue(p.Property.Address), p.Property.AreaM2, safeValue(string(p.Property.Type))),
		fmt.Sprintf("Landlord: %s", safeValue(p.Landlord.FullName)),
		fmt.Sprintf("Tenant: %s", safeValue(p.Tenant.FullName)),
		fmt.Sprintf("Rent %.2f, deposit %.2f, from %s for %d months, paid on day %d",
			p.Terms.MonthlyRent, p.Terms.Deposit, formatDate(p.Terms.StartDate), p.Terms.DurationMonths, p.Terms.PaymentDay),
	}
	for _, line := range lines {
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
	}
	pdf.Ln(3)

	section(pdf, "Workflow history")
	historyWidths := []float64{10, 38, 40, 45, 45, 28, 61}
	drawTableRow(pdf, tr, []string{"#", "Time", "Action", "From", "To", "Actor", "Comment"}, historyWidths, true)
	for _, entry := range p.History {
		drawTableRow(pdf, tr, []string{
			fmt.Sprintf("%d", entry.Seq),
			formatDateTime(entry.At),
			string(entry.Action),
			string(entry.From),
			string(entry.To),
			string(entry.Actor.Role),
			truncate(entry.Comment, 40),
		}, historyWidths, false)
	}
	pdf.Ln(3)

	section(pdf, "Document audit")
	docWidths := []float64{70, 30, 38, 40, 89}
	drawTableRow(pdf, tr, []string{"Document", "Action", "Time", "Actor", "Notes"}, docWidths, true)
	for _, slot := range report.Slots {
		for _, audit := range slot.Audit {
			drawTableRow(pdf, tr, []string{
				slot.Label(),
				audit.Action,
				formatDateTime(audit.At),
				string(audit.Actor.Role),
				truncate(audit.Notes, 60),
			}, docWidths, false)
		}
	}
	pdf.Ln(3)

	section(pdf, "Signatures")
	for _, rec := range report.Signings {
		status := "started " + formatDateTime(rec.StartedAt)
		if rec.CompletedAt != nil {
			status = "signed " + formatDateTime(*rec.CompletedAt)
		}
		pdf.MultiCell(0, 5, tr(fmt.Sprintf("%s: %s %s", rec.Role, status, rec.VerificationHash)), "", "L", false)
	}
	if len(report.Signings) == 0 {
		pdf.MultiCell(0, 5, "No signatures yet", "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont(fontName, "B", 12)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.SetFont(fontName, "", 10)
}

func drawTableRow(pdf *gofpdf.Fpdf, tr func(string) string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 9)
	for i, col := range cols {
		pdf.CellFormat(widths[i], 7, tr(col), "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
}

func closedSuffix(closed bool) string {
	if closed {
		return " (closed)"
	}
	return ""
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max-3]) + "..."
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02.01.2006")
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("02.01.2006 15:04")
}
