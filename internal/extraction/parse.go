package extraction

import (
	"encoding/json"
	"strings"
)

// parseResult extracts the structured result from a model's text response.
// Models wrap JSON in markdown fences or chatter despite instructions, so the
// parser slices out the outermost object before decoding.
func parseResult(text string) (*Result, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, &SchemaError{Reason: "no JSON object found in response"}
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, &SchemaError{Reason: "unterminated JSON object in response"}
	}
	text = text[startIdx : endIdx+1]

	var res Result
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		return nil, &SchemaError{Reason: err.Error()}
	}

	scrubNegatives(&res)

	if res.Empty() {
		return nil, &SchemaError{Reason: "response carried no extractable fields"}
	}
	return &res, nil
}

// scrubNegatives enforces the no-negative-values rule on models that ignore
// it: a negative amount is treated as unknown, never passed through.
func scrubNegatives(res *Result) {
	if res.TaxAmount != nil && *res.TaxAmount < 0 {
		res.TaxAmount = nil
	}
	if res.TotalAmount != nil && *res.TotalAmount < 0 {
		res.TotalAmount = nil
	}
	for i := range res.LineItems {
		item := &res.LineItems[i]
		if item.Quantity < 0 {
			item.Quantity = 0
		}
		if item.UnitPrice < 0 {
			item.UnitPrice = 0
		}
		if item.Subtotal < 0 {
			item.Subtotal = 0
		}
	}
}
