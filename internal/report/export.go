package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// BuildDailyPDF renders a minimal PDF for a daily summary.
func BuildDailyPDF(summary DailySummary) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Daily Temperature Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Sensor: %s", summary.SensorID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", summary.Date.Format("2006-01-02")))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(25, 6, "Hour", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Samples", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Min (F)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Avg (F)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Max (F)", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, h := range summary.Hours {
		pdf.CellFormat(25, 6, fmt.Sprintf("%02d:00", h.Hour), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", h.Samples), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", h.Min), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", h.Avg), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", h.Max), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Alerts (%d)", len(summary.Alerts)))
	pdf.Ln(7)
	pdf.SetFont("Arial", "", 10)
	for _, a := range summary.Alerts {
		pdf.Cell(0, 5, fmt.Sprintf("%s  %s -> %s (%s, %.2f F)",
			a.Timestamp.Format(time.RFC3339), a.Previous, a.New, a.Severity, a.Value))
		pdf.Ln(5)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildDailyXLSX renders a minimal XLSX for a daily summary.
func BuildDailyXLSX(summary DailySummary) ([]byte, error) {
	f := excelize.NewFile()
	hoursSheet := "hourly"
	alertsSheet := "alerts"
	f.SetSheetName("Sheet1", hoursSheet)
	f.NewSheet(alertsSheet)

	_ = f.SetCellValue(hoursSheet, "A1", "Sensor")
	_ = f.SetCellValue(hoursSheet, "B1", summary.SensorID)
	_ = f.SetCellValue(hoursSheet, "A2", "Date")
	_ = f.SetCellValue(hoursSheet, "B2", summary.Date.Format("2006-01-02"))

	_ = f.SetCellValue(hoursSheet, "A4", "Hour")
	_ = f.SetCellValue(hoursSheet, "B4", "Samples")
	_ = f.SetCellValue(hoursSheet, "C4", "Min (F)")
	_ = f.SetCellValue(hoursSheet, "D4", "Avg (F)")
	_ = f.SetCellValue(hoursSheet, "E4", "Max (F)")
	for i, h := range summary.Hours {
		row := i + 5
		_ = f.SetCellValue(hoursSheet, fmt.Sprintf("A%d", row), fmt.Sprintf("%02d:00", h.Hour))
		_ = f.SetCellValue(hoursSheet, fmt.Sprintf("B%d", row), h.Samples)
		_ = f.SetCellValue(hoursSheet, fmt.Sprintf("C%d", row), h.Min)
		_ = f.SetCellValue(hoursSheet, fmt.Sprintf("D%d", row), h.Avg)
		_ = f.SetCellValue(hoursSheet, fmt.Sprintf("E%d", row), h.Max)
	}

	_ = f.SetCellValue(alertsSheet, "A1", "Timestamp")
	_ = f.SetCellValue(alertsSheet, "B1", "Previous")
	_ = f.SetCellValue(alertsSheet, "C1", "New")
	_ = f.SetCellValue(alertsSheet, "D1", "Band")
	_ = f.SetCellValue(alertsSheet, "E1", "Value (F)")
	_ = f.SetCellValue(alertsSheet, "F1", "Severity")
	for i, a := range summary.Alerts {
		row := i + 2
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("A%d", row), a.Timestamp.Format(time.RFC3339))
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("B%d", row), string(a.Previous))
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("C%d", row), string(a.New))
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("D%d", row), string(a.Band))
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("E%d", row), a.Value)
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("F%d", row), a.Severity)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
