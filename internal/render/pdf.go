package render

import (
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/rotisserie/eris"

	"github.com/sells-group/standards-cli/internal/model"
)

const (
	pdfFont     = "Arial"
	labelWidth  = 50.0
	lineHeight  = 6.0
	sdoHeadline = "Standards Development Organization"
)

// PDF writes d to path as a single-column A4 document.
func PDF(d model.StandardDetail, path string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetHeaderFunc(func() {
		pdf.SetFont(pdfFont, "B", 12)
		pdf.CellFormat(0, 10, "FDA Standard", "", 1, "C", false, 0, "")
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(pdfFont, "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(pdfFont, "B", 12)
	pdf.CellFormat(0, 10, "Standard Information", "", 1, "", false, 0, "")

	for _, f := range d.Fields() {
		pdf.SetFont(pdfFont, "B", 10)
		pdf.CellFormat(labelWidth, lineHeight, latin1(f.Label)+":", "", 0, "", false, 0, "")
		pdf.SetFont(pdfFont, "", 9)
		pdf.MultiCell(0, lineHeight, latin1(f.Value), "", "", false)
	}

	pdf.SetFont(pdfFont, "B", 10)
	pdf.CellFormat(0, 8, sdoHeadline, "", 1, "", false, 0, "")
	for _, f := range d.SDOFields() {
		pdf.SetFont(pdfFont, "", 9)
		pdf.CellFormat(labelWidth, lineHeight, latin1(f.Label)+":", "", 0, "", false, 0, "")
		pdf.MultiCell(0, lineHeight, latin1(f.Value), "", "", false)
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return eris.Wrapf(err, "render: write pdf %s", path)
	}
	return nil
}
