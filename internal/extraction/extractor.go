// Package extraction turns unstructured invoice input into a
// schema-constrained structured result by trying a prioritized chain of AI
// model providers.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Attachment is one binary input file (image, PDF, or plain text).
type Attachment struct {
	Name string
	MIME string
	Data []byte
}

// Request is a single extraction call: either a raw text blob or one or more
// file attachments, never both.
type Request struct {
	Text        string
	Files       []Attachment
	VendorHints []string
	// Today anchors relative date references ("yesterday"). Zero means now.
	Today time.Time
}

// LineItem mirrors the schema the model is asked to fill.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	Subtotal    float64 `json:"subtotal"`
}

// Result is the partial invoice a provider extracted. Absent fields are left
// zero-valued; TaxAmount and TotalAmount distinguish null from zero.
type Result struct {
	VendorName    string     `json:"vendorName"`
	InvoiceNumber string     `json:"invoiceNumber"`
	InvoiceDate   string     `json:"invoiceDate"`
	InvoiceTime   string     `json:"invoiceTime"`
	LineItems     []LineItem `json:"lineItems"`
	TaxAmount     *float64   `json:"taxAmount"`
	TotalAmount   *float64   `json:"totalAmount"`
}

// Empty reports whether the result carries no extracted content at all.
func (r *Result) Empty() bool {
	return r.VendorName == "" && r.InvoiceNumber == "" && r.InvoiceDate == "" &&
		len(r.LineItems) == 0 && r.TotalAmount == nil
}

// Provider is a single external AI extraction service.
type Provider interface {
	Name() string
	Extract(ctx context.Context, req Request) (*Result, error)
	Close() error
}

// ErrSafetyRejected marks a content-policy rejection. It is surfaced
// distinctly and verbatim: switching providers does not change a policy
// decision one of them already made.
var ErrSafetyRejected = errors.New("extraction declined by provider content-safety policy")

// SchemaError reports a response that was missing, malformed, or violated
// the required output schema.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return "malformed extraction response: " + e.Reason
}

// ExhaustedError aggregates a full chain failure, reporting the last
// provider's failure reason. It unwraps to that error so a safety rejection
// anywhere at the end of the chain stays distinguishable.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d extraction providers failed, last error: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}
