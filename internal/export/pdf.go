package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jung-kurt/gofpdf"

	"bizassist/internal/model"
)

var invoiceColumns = []struct {
	title string
	width float64
	align string
}{
	{"Description", 90, "L"},
	{"Qty", 20, "R"},
	{"Unit Price", 35, "R"},
	{"Total", 35, "R"},
}

// WriteInvoicePDF renders inv as a one-page A4 invoice addressed to client.
func WriteInvoicePDF(w io.Writer, inv model.Invoice, client model.Client) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Invoice "+inv.Number, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, tr("Invoice "+inv.Number), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, tr("Client: "+client.Name), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Date: "+inv.Date, "", 1, "L", false, 0, "")
	if due, err := inv.DueDate(); err == nil {
		pdf.CellFormat(0, 6, fmt.Sprintf("Due: %s (%d days)", model.FormatDate(due), inv.DueDays), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(220, 220, 220)
	pdf.SetDrawColor(128, 128, 128)
	for _, col := range invoiceColumns {
		pdf.CellFormat(col.width, 8, col.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, li := range inv.LineItems {
		cells := []string{
			tr(li.Description),
			strconv.FormatFloat(li.Quantity, 'f', -1, 64),
			amount(li.UnitPrice, inv.Currency),
			amount(li.Amount(), inv.Currency),
		}
		for i, col := range invoiceColumns {
			pdf.CellFormat(col.width, 7, cells[i], "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	summary := [][2]string{
		{"Subtotal", amount(inv.Subtotal, inv.Currency)},
		{fmt.Sprintf("VAT %d%%", int(inv.VATRate*100+0.5)), amount(inv.VAT, inv.Currency)},
		{"Total", amount(inv.Total, inv.Currency)},
	}
	lead := invoiceColumns[0].width + invoiceColumns[1].width
	for i, row := range summary {
		if i == len(summary)-1 {
			pdf.SetFont("Helvetica", "B", 10)
		}
		pdf.CellFormat(lead, 7, "", "", 0, "L", false, 0, "")
		pdf.CellFormat(invoiceColumns[2].width, 7, row[0], "1", 0, "R", false, 0, "")
		pdf.CellFormat(invoiceColumns[3].width, 7, row[1], "1", 1, "R", false, 0, "")
	}

	if inv.Notes != "" {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 5, tr(inv.Notes), "", "L", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render invoice %s: %w", inv.Number, err)
	}
	return nil
}

func amount(v float64, c model.Currency) string {
	return fmt.Sprintf("%.2f %s", v, c)
}
