package renderer

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"orderflow-backend/internal/domains/invoice/model"
)

// Renderer turns an invoice into a downloadable document.
type Renderer interface {
	Render(invoice *model.Invoice) ([]byte, error)
}

// PDFRenderer produces a single-page A4 tax invoice.
type PDFRenderer struct {
	sellerName    string
	sellerAddress string
	sellerGSTIN   string
}

func NewPDFRenderer(sellerName, sellerAddress, sellerGSTIN string) *PDFRenderer {
	return &PDFRenderer{
		sellerName:    sellerName,
		sellerAddress: sellerAddress,
		sellerGSTIN:   sellerGSTIN,
	}
}

func (r *PDFRenderer) Render(invoice *model.Invoice) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	// Header
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "TAX INVOICE")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.Cell(0, 5, r.sellerName)
	pdf.Ln(5)
	pdf.SetFont("Helvetica", "", 9)
	pdf.Cell(0, 5, r.sellerAddress)
	pdf.Ln(5)
	if r.sellerGSTIN != "" {
		pdf.Cell(0, 5, "GSTIN: "+r.sellerGSTIN)
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 9)
	pdf.Cell(95, 5, "Invoice No: "+invoice.InvoiceNumber)
	pdf.Cell(95, 5, "Order No: "+invoice.OrderNumber)
	pdf.Ln(5)
	pdf.Cell(95, 5, "Date: "+invoice.GeneratedAt.Format("02 Jan 2006"))
	pdf.Ln(9)

	// Billing address
	pdf.SetFont("Helvetica", "B", 9)
	pdf.Cell(0, 5, "Billed To")
	pdf.Ln(5)
	pdf.SetFont("Helvetica", "", 9)
	addr := invoice.BillingAddress
	pdf.Cell(0, 5, addr.FullName)
	pdf.Ln(5)
	pdf.Cell(0, 5, addr.Line1)
	pdf.Ln(5)
	if addr.Line2 != "" {
		pdf.Cell(0, 5, addr.Line2)
		pdf.Ln(5)
	}
	pdf.Cell(0, 5, fmt.Sprintf("%s, %s %s", addr.City, addr.State, addr.Pincode))
	pdf.Ln(9)

	// Line table
	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(70, 7, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(20, 7, "HSN", "1", 0, "C", true, 0, "")
	pdf.CellFormat(15, 7, "Qty", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 7, "Unit Price", "1", 0, "R", true, 0, "")
	pdf.CellFormat(25, 7, "Tax", "1", 0, "R", true, 0, "")
	pdf.CellFormat(30, 7, "Total", "1", 0, "R", true, 0, "")
	pdf.Ln(7)

	pdf.SetFont("Helvetica", "", 8)
	for _, line := range invoice.Lines {
		pdf.CellFormat(70, 6, line.Description, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, line.HSNCode, "1", 0, "C", false, 0, "")
		pdf.CellFormat(15, 6, fmt.Sprintf("%d", line.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, line.UnitPrice.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, line.TaxAmount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, line.LineTotal.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(6)
	}
	pdf.Ln(4)

	// Totals
	totals := invoice.Totals
	writeTotal := func(label, value string, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 9)
		pdf.CellFormat(155, 6, label, "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, value, "", 0, "R", false, 0, "")
		pdf.Ln(6)
	}
	writeTotal("Subtotal", totals.Subtotal.StringFixed(2), false)
	writeTotal("Discount", "-"+totals.DiscountTotal.StringFixed(2), false)
	writeTotal("Shipping", totals.ShippingTotal.StringFixed(2), false)
	writeTotal("Tax", totals.TaxTotal.StringFixed(2), false)
	writeTotal("Grand Total", totals.GrandTotal.StringFixed(2), true)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}
