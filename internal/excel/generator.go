package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nurpe/rental-contracts/internal/model"
)

const (
	summarySheet   = "Summary"
	historySheet   = "History"
	documentsSheet = "Documents"
	signingSheet   = "Signatures"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(report model.ProcessReport) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	file.SetSheetName("Sheet1", summarySheet)
	g.writeSummary(file, report)

	for _, sheet := range []string{historySheet, documentsSheet, signingSheet} {
		if _, err := file.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", sheet, err)
		}
	}
	g.writeHistory(file, report.Process.History)
	g.writeDocuments(file, report.Slots)
	g.writeSignatures(file, report.Signings)

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, report model.ProcessReport) {
	p := report.Process
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(summarySheet, cell, value)
	}

	rows := [][2]interface{}{
		{"Process", p.ID.String()},
		{"State", string(p.State)},
		{"Stage", fmt.Sprintf("%d %s", report.Stage.Stage, report.Stage.Name)},
		{"Closed", report.Stage.Closed},
		{"Tenant review", string(p.TenantReviewStatus())},
		{"Signing", string(report.SigningStatus)},
		{"Published", p.Published()},
		{"Guarantee", formatString(string(p.GuaranteeType))},
		{"Property", p.Property.Address},
		{"Area, m2", p.Property.AreaM2},
		{"Landlord", p.Landlord.FullName},
		{"Tenant", p.Tenant.FullName},
		{"Monthly rent", formatAmount(p.Terms.MonthlyRent)},
		{"Deposit", formatAmount(p.Terms.Deposit)},
		{"Start date", formatDate(p.Terms.StartDate)},
		{"Duration, months", p.Terms.DurationMonths},
		{"Payment day", p.Terms.PaymentDay},
		{"Visit", formatVisit(p.Visit)},
		{"Generated at", formatDateTime(report.GeneratedAt)},
	}
	for i, row := range rows {
		set(fmt.Sprintf("A%d", i+1), row[0])
		set(fmt.Sprintf("B%d", i+1), row[1])
	}
	if len(p.Terms.SpecialClauses) > 0 {
		row := len(rows) + 1
		set(fmt.Sprintf("A%d", row), "Special clauses")
		set(fmt.Sprintf("B%d", row), strings.Join(p.Terms.SpecialClauses, "; "))
	}

	_ = file.SetColWidth(summarySheet, "A", "A", 22)
	_ = file.SetColWidth(summarySheet, "B", "B", 48)
}

func (g *Generator) writeHistory(file *excelize.File, history []model.HistoryEntry) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(historySheet, cell, value)
	}
	writeHeader(file, historySheet, []string{"#", "Time", "Action", "From", "To", "Actor", "Comment"})
	for i, entry := range history {
		row := i + 2
		set(fmt.Sprintf("A%d", row), entry.Seq)
		set(fmt.Sprintf("B%d", row), formatDateTime(entry.At))
		set(fmt.Sprintf("C%d", row), string(entry.Action))
		set(fmt.Sprintf("D%d", row), string(entry.From))
		set(fmt.Sprintf("E%d", row), string(entry.To))
		set(fmt.Sprintf("F%d", row), string(entry.Actor.Role))
		set(fmt.Sprintf("G%d", row), entry.Comment)
	}
	_ = file.SetColWidth(historySheet, "B", "B", 20)
	_ = file.SetColWidth(historySheet, "C", "E", 22)
	_ = file.SetColWidth(historySheet, "G", "G", 48)
}

func (g *Generator) writeDocuments(file *excelize.File, slots []model.DocumentSlot) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(documentsSheet, cell, value)
	}
	writeHeader(file, documentsSheet, []string{"Document", "Category", "Required", "Status", "File", "Uploaded", "Reviewed", "Notes"})
	for i, slot := range slots {
		row := i + 2
		set(fmt.Sprintf("A%d", row), slot.Label())
		set(fmt.Sprintf("B%d", row), string(slot.Category))
		set(fmt.Sprintf("C%d", row), yesNo(slot.Required))
		set(fmt.Sprintf("D%d", row), string(slot.Status))
		set(fmt.Sprintf("E%d", row), slot.FileName)
		set(fmt.Sprintf("F%d", row), formatTimePtr(slot.UploadedAt))
		set(fmt.Sprintf("G%d", row), formatTimePtr(slot.ReviewedAt))
		set(fmt.Sprintf("H%d", row), slot.ReviewNotes)
	}
	_ = file.SetColWidth(documentsSheet, "A", "A", 36)
	_ = file.SetColWidth(documentsSheet, "E", "G", 22)
	_ = file.SetColWidth(documentsSheet, "H", "H", 40)
}

func (g *Generator) writeSignatures(file *excelize.File, records []model.SigningRecord) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(signingSheet, cell, value)
	}
	writeHeader(file, signingSheet, []string{"Role", "Started", "Completed", "Device", "Hash"})
	for i, rec := range records {
		row := i + 2
		set(fmt.Sprintf("A%d", row), string(rec.Role))
		set(fmt.Sprintf("B%d", row), formatDateTime(rec.StartedAt))
		set(fmt.Sprintf("C%d", row), formatTimePtr(rec.CompletedAt))
		set(fmt.Sprintf("D%d", row), rec.Context.Device)
		set(fmt.Sprintf("E%d", row), rec.VerificationHash)
	}
	_ = file.SetColWidth(signingSheet, "B", "D", 22)
	_ = file.SetColWidth(signingSheet, "E", "E", 72)
}

func writeHeader(file *excelize.File, sheet string, headers []string) {
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = file.SetCellValue(sheet, cell, header)
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatDateTime(*t)
}

func formatVisit(v model.Visit) string {
	switch {
	case v.CompletedAt != nil:
		return "completed " + formatDateTime(*v.CompletedAt)
	case v.ScheduledAt != nil:
		return "scheduled " + formatDateTime(*v.ScheduledAt)
	default:
		return "not scheduled"
	}
}

func formatString(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatAmount(value float64) string {
	return fmt.Sprintf("%.2f", value)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
