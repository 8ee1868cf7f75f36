package invoice

// Status tracks where a record is in its lifecycle: extracted but not yet
// committed, or committed to the remote store.
type Status string

const (
	StatusParsed Status = "parsed"
	StatusSaved  Status = "saved"
)

// LineItem is a single billed item. Subtotal is derived from Quantity and
// UnitPrice and is recomputed on every edit, never hand-maintained.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	Subtotal    float64 `json:"subtotal"`
}

// Invoice is the canonical record. Nullable text fields use the empty string
// for absence; TaxAmount and TotalAmount are pointers because null-vs-zero is
// meaningful for total-only receipts.
type Invoice struct {
	ID            string     `json:"id"`
	Status        Status     `json:"status"`
	VendorName    string     `json:"vendorName,omitempty"`
	InvoiceNumber string     `json:"invoiceNumber,omitempty"`
	InvoiceDate   string     `json:"invoiceDate,omitempty"` // YYYY-MM-DD
	InvoiceTime   string     `json:"invoiceTime,omitempty"` // HH:MM, 24-hour
	FileName      string     `json:"fileName,omitempty"`
	LineItems     []LineItem `json:"lineItems"`
	TaxAmount     *float64   `json:"taxAmount,omitempty"`
	TotalAmount   *float64   `json:"totalAmount,omitempty"`
}

// Clone returns a deep copy, so snapshots taken for rollback are not aliased
// to the collection being mutated.
func (inv Invoice) Clone() Invoice {
	out := inv
	out.LineItems = append([]LineItem(nil), inv.LineItems...)
	if inv.TaxAmount != nil {
		v := *inv.TaxAmount
		out.TaxAmount = &v
	}
	if inv.TotalAmount != nil {
		v := *inv.TotalAmount
		out.TotalAmount = &v
	}
	return out
}

func cloneAll(invs []Invoice) []Invoice {
	out := make([]Invoice, len(invs))
	for i, inv := range invs {
		out[i] = inv.Clone()
	}
	return out
}
