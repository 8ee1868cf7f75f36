package invoice

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.etcd.io/bbolt"
)

var _ = Describe("BoltCache", func() {
	var (
		dbPath string
		cache  *BoltCache
	)

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "test.db")
		var err error
		cache, err = NewBoltCache(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if cache != nil {
			cache.Close()
		}
	})

	Describe("round trip", func() {
		It("loads exactly what was stored, order preserved", func() {
			invs := []Invoice{
				{ID: "b", InvoiceNumber: "2", VendorName: "Globex", Status: StatusSaved, LineItems: []LineItem{
					{Description: "Widget", Quantity: 2, UnitPrice: 3, Subtotal: 6},
				}},
				{ID: "a", InvoiceNumber: "1", VendorName: "Acme", Status: StatusSaved, LineItems: []LineItem{}, TotalAmount: amount(500)},
			}
			cache.ReplaceAll(invs)
			Expect(cache.Load()).To(Equal(invs))
		})

		It("overwrites the previous collection completely", func() {
			cache.ReplaceAll([]Invoice{{ID: "a", LineItems: []LineItem{}}, {ID: "b", LineItems: []LineItem{}}})
			cache.ReplaceAll([]Invoice{{ID: "c", LineItems: []LineItem{}}})
			loaded := cache.Load()
			Expect(loaded).To(HaveLen(1))
			Expect(loaded[0].ID).To(Equal("c"))
		})
	})

	Describe("Load", func() {
		When("nothing was ever stored", func() {
			It("returns an empty collection", func() {
				Expect(cache.Load()).To(BeEmpty())
			})
		})

		When("the stored slot is corrupt", func() {
			BeforeEach(func() {
				err := cache.db.Update(func(tx *bbolt.Tx) error {
					return tx.Bucket([]byte(cacheBucket)).Put([]byte(cacheKey), []byte("{not json"))
				})
				Expect(err).NotTo(HaveOccurred())
			})

			It("returns an empty collection instead of failing", func() {
				Expect(cache.Load()).To(BeEmpty())
			})
		})

		When("reopening an existing file", func() {
			It("sees the persisted collection", func() {
				cache.ReplaceAll([]Invoice{{ID: "a", LineItems: []LineItem{}}})
				Expect(cache.Close()).To(Succeed())

				reopened, err := NewBoltCache(dbPath)
				Expect(err).NotTo(HaveOccurred())
				defer reopened.Close()
				Expect(reopened.Load()).To(HaveLen(1))
			})
		})
	})

	Describe("NewBoltCache", func() {
		It("fails for an unwritable path", func() {
			_, err := NewBoltCache(filepath.Join(string(os.PathSeparator), "no-such-dir", "x", "test.db"))
			Expect(err).To(HaveOccurred())
		})
	})
})
