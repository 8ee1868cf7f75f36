package extraction

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("parseResult", func() {
	var (
		text string
		res  *Result
		err  error
	)

	JustBeforeEach(func() {
		res, err = parseResult(text)
	})

	When("parsing a clean JSON response", func() {
		BeforeEach(func() {
			text = `{"vendorName": "Acme", "invoiceNumber": "7", "invoiceDate": "2024-06-01", "lineItems": [{"description": "Widget", "quantity": 2, "unitPrice": 3, "subtotal": 6}], "taxAmount": 1.5, "totalAmount": 7.5}`
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("parses every field", func() {
			Expect(res.VendorName).To(Equal("Acme"))
			Expect(res.InvoiceNumber).To(Equal("7"))
			Expect(res.InvoiceDate).To(Equal("2024-06-01"))
			Expect(res.LineItems).To(HaveLen(1))
			Expect(*res.TaxAmount).To(Equal(1.5))
			Expect(*res.TotalAmount).To(Equal(7.5))
		})
	})

	When("the model wraps the JSON in markdown fences", func() {
		BeforeEach(func() {
			text = "```json\n{\"vendorName\": \"Acme\", \"totalAmount\": 10}\n```"
		})

		It("salvages the object", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(res.VendorName).To(Equal("Acme"))
		})
	})

	When("the model chatters around the JSON", func() {
		BeforeEach(func() {
			text = "Sure! Here is the extraction:\n{\"vendorName\": \"Acme\", \"totalAmount\": 10}\nLet me know if you need anything else."
		})

		It("salvages the object", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(res.VendorName).To(Equal("Acme"))
		})
	})

	When("JSON null stands in for absent fields", func() {
		BeforeEach(func() {
			text = `{"vendorName": "Acme", "invoiceNumber": null, "invoiceDate": null, "taxAmount": null, "totalAmount": 10}`
		})

		It("leaves those fields absent", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(res.InvoiceNumber).To(Equal(""))
			Expect(res.TaxAmount).To(BeNil())
		})
	})

	When("the model emits negative amounts despite the rules", func() {
		BeforeEach(func() {
			text = `{"vendorName": "Acme", "lineItems": [{"description": "Refund", "quantity": -1, "unitPrice": -5, "subtotal": -5}], "taxAmount": -2, "totalAmount": -5}`
		})

		It("scrubs them instead of passing them through", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(res.TaxAmount).To(BeNil())
			Expect(res.TotalAmount).To(BeNil())
			Expect(res.LineItems[0].Quantity).To(BeZero())
			Expect(res.LineItems[0].UnitPrice).To(BeZero())
			Expect(res.LineItems[0].Subtotal).To(BeZero())
		})
	})

	When("the response carries no JSON object", func() {
		BeforeEach(func() {
			text = "I could not read the document."
		})

		It("returns a schema error", func() {
			var schemaErr *SchemaError
			Expect(errors.As(err, &schemaErr)).To(BeTrue())
		})
	})

	When("the JSON is malformed", func() {
		BeforeEach(func() {
			text = `{"vendorName": "Acme", "totalAmount": }`
		})

		It("returns a schema error", func() {
			var schemaErr *SchemaError
			Expect(errors.As(err, &schemaErr)).To(BeTrue())
		})
	})

	When("the object is well-formed but empty", func() {
		BeforeEach(func() {
			text = `{"vendorName": null, "invoiceNumber": null, "lineItems": [], "totalAmount": null}`
		})

		It("returns a schema error rather than an empty result", func() {
			var schemaErr *SchemaError
			Expect(errors.As(err, &schemaErr)).To(BeTrue())
		})
	})
})
