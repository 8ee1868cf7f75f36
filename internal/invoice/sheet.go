package invoice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Action tags a mutating remote request.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// RemoteStore is the authoritative collection. Every successful call returns
// the full list as the server now sees it; an empty slice with a nil error
// means the server answered but returned a degenerate body. Transport and
// non-2xx failures are never downgraded to success.
type RemoteStore interface {
	Apply(ctx context.Context, action Action, inv Invoice) ([]Invoice, error)
	List(ctx context.Context) ([]Invoice, error)
}

// SheetClient talks to a Google-Sheets-style webhook: one endpoint that
// multiplexes create/update/delete over POST and serves the full list on GET.
type SheetClient struct {
	url        string
	httpClient *http.Client
	timeSource TimeSource
}

// sheetPayload matches the spreadsheet's column headers exactly.
type sheetPayload struct {
	Action        Action  `json:"action"`
	ID            string  `json:"id"`
	Date          string  `json:"Date"`
	Time          string  `json:"Time"`
	VendorName    string  `json:"Vendor Name"`
	InvoiceNumber string  `json:"Invoice Number"`
	TotalAmount   float64 `json:"Total Amount"`
	LineItems     string  `json:"Line Items"`
	FileName      string  `json:"File Name"`
}

type sheetResponse struct {
	Result   string    `json:"result"`
	Invoices []Invoice `json:"invoices"`
}

// NewSheetClient creates a client for the given webhook URL. A missing URL is
// a configuration error and fails here rather than on first use.
func NewSheetClient(rawURL string) (*SheetClient, error) {
	if rawURL == "" {
		return nil, errors.New("sheet endpoint URL is not configured: set --sheet-url or INVOICE_LEDGER_SHEET_URL")
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil

	return &SheetClient{
		url:        rawURL,
		httpClient: rc.StandardClient(),
		timeSource: &defaultTimeSource{},
	}, nil
}

// Apply sends a mutating action and returns the authoritative collection.
func (c *SheetClient) Apply(ctx context.Context, action Action, inv Invoice) ([]Invoice, error) {
	items, err := json.Marshal(inv.LineItems)
	if err != nil {
		return nil, fmt.Errorf("encoding line items: %w", err)
	}

	id := inv.ID
	if id == "" {
		id = inv.InvoiceNumber
	}
	fileName := inv.FileName
	if fileName == "" {
		fileName = "Manual Entry"
	}
	var total float64
	if inv.TotalAmount != nil {
		total = *inv.TotalAmount
	}

	payload := sheetPayload{
		Action:        action,
		ID:            id,
		Date:          inv.InvoiceDate,
		Time:          NormalizeTime(inv.InvoiceTime, c.timeSource.Now()),
		VendorName:    inv.VendorName,
		InvoiceNumber: inv.InvoiceNumber,
		TotalAmount:   total,
		LineItems:     string(items),
		FileName:      fileName,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, string(action))
}

// List fetches the full authoritative collection.
func (c *SheetClient) List(ctx context.Context) ([]Invoice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, "list")
}

func (c *SheetClient) do(req *http.Request, op string) ([]Invoice, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling sheet endpoint for %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sheet endpoint error for %s (status %d): %s", op, resp.StatusCode, string(body))
	}

	// A 2xx with a body the client cannot make sense of is a degenerate
	// success: the caller gets an empty list, not an error.
	var sr sheetResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return make([]Invoice, 0), nil
	}
	if sr.Result != "success" || sr.Invoices == nil {
		return make([]Invoice, 0), nil
	}
	return sr.Invoices, nil
}
