package orders

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"agromart/apperr"
	"agromart/models"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReceiptPayload is the QR content: orderId|signature.
func ReceiptPayload(secret []byte, orderID string) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(orderID))
	sig := base64.StdEncoding.EncodeToString(h.Sum(nil))
	return fmt.Sprintf("%s|%s", orderID, sig)
}

// VerifyReceiptPayload checks a scanned receipt code and returns its order id.
func VerifyReceiptPayload(secret []byte, payload string) (string, bool) {
	orderID, _, ok := strings.Cut(payload, "|")
	if !ok {
		return "", false
	}
	want := ReceiptPayload(secret, orderID)
	return orderID, hmac.Equal([]byte(want), []byte(payload))
}

// Receipt renders a PDF receipt for the owner of the order or an admin.
func (s *Service) Receipt(ctx context.Context, caller models.Identity, id primitive.ObjectID) ([]byte, error) {
	o, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	pdf, err := renderReceipt(o, ReceiptPayload(s.cfg.ReceiptSecret, o.ID.Hex()))
	if err != nil {
		return nil, apperr.Internal("failed to render receipt", err)
	}
	return pdf, nil
}

func renderReceipt(o *models.Order, qrPayload string) ([]byte, error) {
	qrPNG, err := qrcode.Encode(qrPayload, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("qr: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	// Core fonts are cp1252; characters outside it print as '?'.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Order Receipt")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 7, "Order: "+o.ID.Hex())
	pdf.Ln(7)
	pdf.Cell(0, 7, "Date: "+o.CreatedAt.Format("2006-01-02 15:04 MST"))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Status: "+string(o.Status))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Payment: "+string(o.PaymentMethod))
	pdf.Ln(7)
	if o.ShippingAddress != "" {
		pdf.MultiCell(120, 7, tr("Ship to: "+o.ShippingAddress), "", "L", false)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(80, 8, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(20, 8, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Price", "B", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Subtotal", "B", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	for _, it := range o.Items {
		pdf.CellFormat(80, 7, tr(it.Name), "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprint(it.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, it.Price.StringFixed(2), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, it.Subtotal().StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(130, 9, "Total ("+strings.ToUpper(o.Currency)+")", "T", 0, "R", false, 0, "")
	pdf.CellFormat(30, 9, o.TotalAmount.StringFixed(2), "T", 1, "R", false, 0, "")

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 150, 20, 40, 40, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
