package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Letterhead identifies the issuing institute.
type Letterhead struct {
	Name    string
	City    string
	Address string
	Email   string
}

// VisaLetter holds the facts printed on a visa support letter.
type VisaLetter struct {
	Reference      string
	IssuedAt       time.Time
	StudentName    string
	StudentID      string
	Nationality    string
	PassportNumber string
	CourseTitle    string
	Duration       string
	PlanDays       string
}

// PDFExporter renders institute letters.
type PDFExporter struct {
	letterhead Letterhead
}

// NewPDFExporter constructs a PDF exporter printing the given letterhead.
func NewPDFExporter(letterhead Letterhead) *PDFExporter {
	return &PDFExporter{letterhead: letterhead}
}

// RenderVisaLetter produces a single page A4 visa support letter.
func (e *PDFExporter) RenderVisaLetter(letter VisaLetter) ([]byte, error) {
	if strings.TrimSpace(letter.StudentName) == "" || strings.TrimSpace(letter.CourseTitle) == "" {
		return nil, fmt.Errorf("student name and course title required")
	}
	if letter.IssuedAt.IsZero() {
		letter.IssuedAt = time.Now().UTC()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetTitle("Visa Support Letter", false)
	pdf.SetAuthor(e.letterhead.Name, false)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 9, tr(e.letterhead.Name), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, tr(e.letterhead.Address), "", 1, "C", false, 0, "")
	if e.letterhead.Email != "" {
		pdf.CellFormat(0, 5, tr(e.letterhead.Email), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, tr("Reference: "+letter.Reference), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Date: "+letter.IssuedAt.Format("2 January 2006"), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 8, "VISA SUPPORT LETTER", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 11)
	pdf.MultiCell(0, 6, tr("To Whom It May Concern,"), "", "L", false)
	pdf.Ln(2)
	body := fmt.Sprintf(
		"This is to confirm that %s has been accepted and is enrolled as a student of %s, %s, in the programme described below. "+
			"The student has completed the required payment and submitted valid identity documents.",
		letter.StudentName, e.letterhead.Name, e.letterhead.City,
	)
	pdf.MultiCell(0, 6, tr(body), "", "L", false)
	pdf.Ln(4)

	rows := [][2]string{
		{"Student name", letter.StudentName},
		{"Student ID", letter.StudentID},
		{"Nationality", letter.Nationality},
		{"Passport number", letter.PassportNumber},
		{"Programme", letter.CourseTitle},
		{"Duration", letter.Duration},
	}
	if letter.PlanDays != "" {
		rows = append(rows, [2]string{"Study plan", letter.PlanDays + " days"})
	}
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(50, 7, row[0], "1", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(120, 7, tr(row[1]), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 11)
	pdf.MultiCell(0, 6, tr("We kindly request that the student be granted the appropriate visa to attend the programme."), "", "L", false)
	pdf.Ln(10)
	pdf.CellFormat(0, 6, "Admissions Office", "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr(e.letterhead.Name), "", 1, "L", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
