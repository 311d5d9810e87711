package utility

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// TicketPDFData holds everything rendered onto a printable e-ticket
type TicketPDFData struct {
	TicketCode     string
	TierName       string
	PriceCents     int64
	QRCodeBase64   string
	EventName      string
	EventVenue     string
	EventStartTime string
	OrderID        string
}

// GenerateTicketPDF renders a printable e-ticket PDF with the embedded QR code
func GenerateTicketPDF(ticket *TicketPDFData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	primary := gofpdf.RGBType{R: 33, G: 37, B: 41}
	gray := gofpdf.RGBType{R: 108, G: 117, B: 125}

	pdf.SetFillColor(primary.R, primary.G, primary.B)
	pdf.Rect(0, 0, 210, 36, "F")

	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 20)
	pdf.SetY(12)
	pdf.CellFormat(0, 10, "TICKETDROP", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 8, "E-TICKET", "", 1, "C", false, 0, "")

	pdf.SetTextColor(0, 0, 0)
	pdf.SetY(48)

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, ticket.EventName, "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	pdf.SetTextColor(gray.R, gray.G, gray.B)
	pdf.CellFormat(0, 7, ticket.EventVenue, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, ticket.EventStartTime, "", 1, "L", false, 0, "")

	pdf.Ln(6)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Tier: %s", ticket.TierName), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Price: %.2f", float64(ticket.PriceCents)/100), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Order: %s", ticket.OrderID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Ticket: %s", ticket.TicketCode), "", 1, "L", false, 0, "")

	// Embed the QR image
	if ticket.QRCodeBase64 != "" {
		qrBytes, err := base64.StdEncoding.DecodeString(ticket.QRCodeBase64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode QR image: %w", err)
		}
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("ticket-qr", opts, bytes.NewReader(qrBytes))
		pdf.ImageOptions("ticket-qr", 75, 130, 60, 60, false, opts, 0, "")
	}

	pdf.SetY(200)
	pdf.SetFont("Arial", "I", 9)
	pdf.SetTextColor(gray.R, gray.G, gray.B)
	pdf.CellFormat(0, 6, "Present this QR code at the venue entrance. One scan per ticket.", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}
