package orders

import (
	"bytes"
	"fmt"

	"foodcart/models"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

// Receipt renders a one-page PDF for o. When trackURL is not empty a QR code
// pointing at it is printed next to the header.
func Receipt(o models.Order, trackURL string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Order Receipt")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 7, "Order: "+o.ID)
	pdf.Ln(6)
	pdf.Cell(0, 7, "Placed: "+o.CreatedAt.Format("02 Jan 2006 15:04"))
	pdf.Ln(6)
	pdf.Cell(0, 7, "Status: "+string(o.Status))
	pdf.Ln(6)
	pdf.Cell(0, 7, tr("Customer: "+o.Customer.Name+" ("+o.Customer.Phone+")"))
	pdf.Ln(6)
	pdf.MultiCell(120, 6, tr("Deliver to: "+o.Customer.Address), "", "L", false)
	pdf.Ln(4)

	if trackURL != "" {
		png, err := qrcode.Encode(trackURL, qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("encode tracking qr: %w", err)
		}
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("track", opts, bytes.NewReader(png))
		pdf.ImageOptions("track", 150, 20, 40, 40, false, opts, 0, "")
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(100, 8, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(20, 8, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Price", "B", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Amount", "B", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	for _, it := range o.Items {
		name := it.Name
		if it.Size != "" {
			name += " (" + it.Size + ")"
		}
		pdf.CellFormat(100, 7, tr(name), "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", it.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, money(it.Price), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, money(it.Price*float64(it.Quantity)), "", 1, "R", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(150, 9, "Total", "T", 0, "R", false, 0, "")
	pdf.CellFormat(30, 9, money(o.Total), "T", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 7, "Payment: "+string(o.PaymentMethod))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

func money(v float64) string {
	return fmt.Sprintf("Rs. %.2f", v)
}
