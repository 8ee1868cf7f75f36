package invoice

import (
	"time"

	"github.com/invoiceai/invoice-ledger/internal/extraction"
)

// FromExtraction converts a pipeline result into a review-ready record with
// a locally generated id and status parsed. The record is normalized here so
// reviewers always see canonical fields.
func FromExtraction(res *extraction.Result, id, fileName string, now time.Time) Invoice {
	items := make([]LineItem, len(res.LineItems))
	for i, item := range res.LineItems {
		items[i] = LineItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    item.Subtotal,
		}
	}

	inv := Invoice{
		ID:            id,
		Status:        StatusParsed,
		VendorName:    res.VendorName,
		InvoiceNumber: res.InvoiceNumber,
		InvoiceDate:   res.InvoiceDate,
		InvoiceTime:   res.InvoiceTime,
		FileName:      fileName,
		LineItems:     items,
		TaxAmount:     res.TaxAmount,
		TotalAmount:   res.TotalAmount,
	}
	Normalize(&inv, now)
	return inv
}
