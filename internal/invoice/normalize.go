package invoice

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// clockPattern matches an H:MM or HH:MM prefix inside a longer time string
// (e.g. "14:30:05" or "2:45 PM" both yield the leading hour:minute part).
var clockPattern = regexp.MustCompile(`\d{1,2}:\d{2}`)

var vendorCaser = cases.Title(language.English, cases.NoLower)

// StripNullPlaceholder elides the literal word "null" that extraction models
// sometimes emit in place of an actual null value.
func StripNullPlaceholder(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "null") {
		return ""
	}
	return s
}

// CapitalizeVendor upper-cases the first letter of each word without touching
// the rest, so "rohit kumar" becomes "Rohit Kumar" and "CVS" stays "CVS".
func CapitalizeVendor(s string) string {
	return vendorCaser.String(s)
}

// NormalizeTime truncates a time string to its HH:MM part. Absent or
// placeholder values default to the given wall-clock time.
func NormalizeTime(s string, now time.Time) string {
	s = StripNullPlaceholder(s)
	if m := clockPattern.FindString(s); m != "" {
		return m
	}
	return now.Format("15:04")
}

// NormalizeDate canonicalizes a date string to YYYY-MM-DD. Values that match
// no known format normalize to absent rather than guessing.
func NormalizeDate(s string) string {
	s = StripNullPlaceholder(s)
	if s == "" {
		return ""
	}
	formats := []string{
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
		"02-01-2006",
	}
	for _, format := range formats {
		if d, err := time.Parse(format, s); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return ""
}

// RecalcSubtotal rederives a line item's subtotal from quantity and unit
// price. Called after every edit to either operand.
func RecalcSubtotal(item *LineItem) {
	item.Subtotal = item.Quantity * item.UnitPrice
}

// RecalcTotal rederives the invoice total as the sum of line item subtotals
// plus tax. An invoice with no line items keeps its own total verbatim: for
// total-only receipts the stated total is the sole source of truth.
func RecalcTotal(inv *Invoice) {
	if len(inv.LineItems) == 0 {
		return
	}
	var sum float64
	for _, item := range inv.LineItems {
		sum += item.Subtotal
	}
	if inv.TaxAmount != nil {
		sum += *inv.TaxAmount
	}
	inv.TotalAmount = &sum
}

// Normalize applies the full pre-persistence pass: placeholder elision,
// vendor capitalization, date and time canonicalization, line item defaults,
// and the derived-amount invariants.
func Normalize(inv *Invoice, now time.Time) {
	inv.VendorName = CapitalizeVendor(StripNullPlaceholder(inv.VendorName))
	inv.InvoiceNumber = StripNullPlaceholder(inv.InvoiceNumber)
	inv.InvoiceDate = NormalizeDate(inv.InvoiceDate)
	inv.InvoiceTime = NormalizeTime(inv.InvoiceTime, now)
	if inv.LineItems == nil {
		inv.LineItems = []LineItem{}
	}
	for i := range inv.LineItems {
		// A subtotal with no known operands (total-only extractions can emit
		// bare amounts) is kept as stated rather than zeroed.
		if inv.LineItems[i].Quantity != 0 || inv.LineItems[i].UnitPrice != 0 {
			RecalcSubtotal(&inv.LineItems[i])
		}
	}
	RecalcTotal(inv)
}

// NextInvoiceNumber assigns the next number after the highest numeric invoice
// number already in the collection. Non-numeric numbers are skipped.
func NextInvoiceNumber(invs []Invoice) string {
	max := 0
	for _, inv := range invs {
		n, err := strconv.Atoi(strings.TrimSpace(inv.InvoiceNumber))
		if err == nil && n > max {
			max = n
		}
	}
	return strconv.Itoa(max + 1)
}
