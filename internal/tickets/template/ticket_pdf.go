package template

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/signintech/gopdf"

	"ms-checkout/internal/models"
)

type TicketPDFGenerator struct {
	FontPath string
}

func NewTicketPDFGenerator() *TicketPDFGenerator {
	return &TicketPDFGenerator{FontPath: "./fonts/DejaVuSans.ttf"}
}

func (g *TicketPDFGenerator) Generate(ticket models.Ticket) ([]byte, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	err := pdf.AddTTFFont("dejavu", g.FontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}

	err = pdf.SetFont("dejavu", "", 14)
	if err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}

	addHeader(pdf, ticket)

	pdf.SetY(60)
	addTicketInfo(pdf, ticket)

	if len(ticket.QRCode) > 0 {
		pdf.SetY(pdf.GetY() + 20)
		addQRCode(pdf, ticket.QRCode)
	}

	pdf.SetY(260)
	addFooter(pdf)

	var buf bytes.Buffer
	err = pdf.Write(&buf)
	if err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}

	return buf.Bytes(), nil
}

func addHeader(pdf *gopdf.GoPdf, ticket models.Ticket) {
	pdf.SetX(40)
	pdf.SetY(30)
	switch ticket.Type {
	case models.TicketTypeWorkshop:
		pdf.Cell(nil, "WORKSHOP TICKET")
	case models.TicketTypeEvent:
		pdf.Cell(nil, "EVENT TICKET")
	default:
		pdf.Cell(nil, "ENTRANCE TICKET")
	}
}

func addTicketInfo(pdf *gopdf.GoPdf, ticket models.Ticket) {
	info := []struct {
		Label string
		Value string
	}{
		{"Ticket Code", ticket.TicketCode},
		{"Order ID", ticket.OrderID},
		{"Type", ticket.Type},
		{"Status", ticket.Status},
		{"Issued At", ticket.IssuedAt.Format("2006-01-02 15:04")},
	}
	if !ticket.ExpiresAt.IsZero() {
		info = append(info, struct {
			Label string
			Value string
		}{"Valid Until", ticket.ExpiresAt.Format("2006-01-02 15:04")})
	}

	for _, item := range info {
		pdf.Cell(nil, item.Label+": "+item.Value)
		pdf.Br(20)
	}
}

func addQRCode(pdf *gopdf.GoPdf, qrCode []byte) {
	img, err := png.Decode(bytes.NewReader(qrCode))
	if err != nil {
		pdf.Cell(nil, "Failed to load QR code")
		return
	}

	rect := &gopdf.Rect{W: 100, H: 100}
	err = pdf.ImageFrom(img, 100, pdf.GetY(), rect)
	if err != nil {
		pdf.Cell(nil, "Failed to draw QR code")
	}
}

func addFooter(pdf *gopdf.GoPdf) {
	pdf.SetX(50)
	pdf.Cell(nil, "Present this ticket at the entrance. Each ticket admits one person once.")
}
