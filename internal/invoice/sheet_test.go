package invoice

import (
	"context"
	"encoding/json"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("SheetClient", func() {
	var (
		ghServer *ghttp.Server
		client   *SheetClient
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		ghServer = ghttp.NewServer()
		var err error
		client, err = NewSheetClient(ghServer.URL())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		ghServer.Close()
	})

	Describe("NewSheetClient", func() {
		It("rejects a missing URL with an actionable message", func() {
			_, err := NewSheetClient("")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("sheet-url"))
		})
	})

	Describe("Apply", func() {
		var (
			received sheetPayload
			invs     []Invoice
			err      error
			subject  Invoice
		)

		BeforeEach(func() {
			subject = Invoice{
				ID:            "id-1",
				VendorName:    "Acme",
				InvoiceNumber: "7",
				InvoiceDate:   "2024-06-01",
				InvoiceTime:   "14:30:00",
				FileName:      "scan.png",
				LineItems: []LineItem{
					{Description: "Widget", Quantity: 2, UnitPrice: 3, Subtotal: 6},
				},
				TotalAmount: amount(6),
			}
		})

		When("the server confirms with a collection", func() {
			BeforeEach(func() {
				ghServer.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest("POST", "/"),
					ghttp.VerifyContentType("application/json"),
					func(w http.ResponseWriter, r *http.Request) {
						Expect(json.NewDecoder(r.Body).Decode(&received)).To(Succeed())
					},
					ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
						"result": "success",
						"invoices": []Invoice{
							{ID: "id-1", InvoiceNumber: "7", LineItems: []LineItem{}},
						},
					}),
				))
			})

			JustBeforeEach(func() {
				invs, err = client.Apply(ctx, ActionCreate, subject)
			})

			It("returns the authoritative list", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(invs).To(HaveLen(1))
				Expect(invs[0].ID).To(Equal("id-1"))
			})

			It("sends the spreadsheet column keys", func() {
				Expect(received.Action).To(Equal(ActionCreate))
				Expect(received.ID).To(Equal("id-1"))
				Expect(received.Date).To(Equal("2024-06-01"))
				Expect(received.VendorName).To(Equal("Acme"))
				Expect(received.InvoiceNumber).To(Equal("7"))
				Expect(received.TotalAmount).To(Equal(6.0))
				Expect(received.FileName).To(Equal("scan.png"))
			})

			It("truncates the time to HH:MM", func() {
				Expect(received.Time).To(Equal("14:30"))
			})

			It("JSON-encodes the line items", func() {
				var items []LineItem
				Expect(json.Unmarshal([]byte(received.LineItems), &items)).To(Succeed())
				Expect(items).To(HaveLen(1))
				Expect(items[0].Description).To(Equal("Widget"))
			})
		})

		When("the time is absent", func() {
			BeforeEach(func() {
				subject.InvoiceTime = ""
				ghServer.AppendHandlers(ghttp.CombineHandlers(
					func(w http.ResponseWriter, r *http.Request) {
						Expect(json.NewDecoder(r.Body).Decode(&received)).To(Succeed())
					},
					ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{"result": "success", "invoices": []Invoice{}}),
				))
			})

			It("substitutes the current wall clock as HH:MM", func() {
				_, err = client.Apply(ctx, ActionCreate, subject)
				Expect(err).NotTo(HaveOccurred())
				Expect(received.Time).To(MatchRegexp(`^\d{2}:\d{2}$`))
			})
		})

		When("the server answers with a degenerate body", func() {
			BeforeEach(func() {
				ghServer.AppendHandlers(ghttp.RespondWith(http.StatusOK, "this is not json"))
			})

			It("returns an empty list without an error", func() {
				invs, err = client.Apply(ctx, ActionUpdate, subject)
				Expect(err).NotTo(HaveOccurred())
				Expect(invs).To(BeEmpty())
			})
		})

		When("the server reports a non-success result", func() {
			BeforeEach(func() {
				ghServer.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{"result": "error"}))
			})

			It("returns an empty list without an error", func() {
				invs, err = client.Apply(ctx, ActionUpdate, subject)
				Expect(err).NotTo(HaveOccurred())
				Expect(invs).To(BeEmpty())
			})
		})

		When("the server returns a non-2xx status", func() {
			BeforeEach(func() {
				// Repeated handlers because the client retries transient
				// server errors before giving up.
				for i := 0; i < 3; i++ {
					ghServer.AppendHandlers(ghttp.RespondWith(http.StatusBadGateway, "upstream broke"))
				}
			})

			It("propagates an error", func() {
				_, err = client.Apply(ctx, ActionDelete, subject)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("sheet endpoint"))
			})
		})
	})

	Describe("List", func() {
		When("the fetch succeeds", func() {
			BeforeEach(func() {
				ghServer.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest("GET", "/"),
					ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
						"result": "success",
						"invoices": []Invoice{
							{ID: "a", InvoiceNumber: "1", LineItems: []LineItem{}},
							{ID: "b", InvoiceNumber: "2", LineItems: []LineItem{}},
						},
					}),
				))
			})

			It("returns the full collection", func() {
				invs, err := client.List(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(invs).To(HaveLen(2))
			})
		})

		When("the endpoint is unreachable", func() {
			BeforeEach(func() {
				ghServer.Close()
			})

			It("propagates an error", func() {
				_, err := client.List(ctx)
				Expect(err).To(HaveOccurred())
			})
		})
	})
})
