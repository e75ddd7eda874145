package beleg

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/belegflow/internal/document"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("documents", func() {
		var rec *document.Record

		BeforeEach(func() {
			rec = &document.Record{
				ID:         "doc-1",
				FileName:   "rechnung.pdf",
				StoredFile: "doc-1_rechnung.pdf",
				Status:     document.StatusCompleted,
				UploadDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
				Data:       &document.ExtractedData{LieferantName: "Hetzner Online GmbH", BruttoBetrag: 11.9},
			}
			Expect(db.SaveDocument(rec)).To(Succeed())
		})

		It("loads a saved document", func() {
			got, err := db.GetDocument("doc-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.FileName).To(Equal("rechnung.pdf"))
			Expect(got.Data.LieferantName).To(Equal("Hetzner Online GmbH"))
			Expect(got.UploadDate.Equal(rec.UploadDate)).To(BeTrue())
		})

		It("lists documents", func() {
			docs, err := db.ListDocuments()
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
		})

		It("returns ErrNotFound for missing documents", func() {
			_, err := db.GetDocument("missing")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})

		It("deletes documents", func() {
			Expect(db.DeleteDocument("doc-1")).To(Succeed())
			_, err := db.GetDocument("doc-1")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})

		It("returns ErrNotFound when deleting missing documents", func() {
			err := db.DeleteDocument("missing")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})

	Describe("Commit", func() {
		It("builds from the stored documents and saves the result", func() {
			Expect(db.SaveDocument(&document.Record{ID: "a"})).To(Succeed())

			var seen int
			rec, err := db.Commit(func(existing []*document.Record) (*document.Record, error) {
				seen = len(existing)
				return &document.Record{ID: "b"}, nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.ID).To(Equal("b"))
			Expect(seen).To(Equal(1))

			docs, err := db.ListDocuments()
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(2))
		})

		It("stores nothing when the build fails", func() {
			_, err := db.Commit(func([]*document.Record) (*document.Record, error) {
				return nil, errors.New("boom")
			})
			Expect(err).To(MatchError("boom"))

			docs, err := db.ListDocuments()
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(BeEmpty())
		})
	})

	Describe("vendor rules", func() {
		It("saves, lists and deletes rules", func() {
			Expect(db.SaveVendorRule(&document.VendorRule{ID: "r1", VendorPattern: "hetzner", AccountID: "4925"})).To(Succeed())

			rules, err := db.ListVendorRules()
			Expect(err).NotTo(HaveOccurred())
			Expect(rules).To(HaveLen(1))
			Expect(rules[0].AccountID).To(Equal("4925"))

			Expect(db.DeleteVendorRule("r1")).To(Succeed())
			rules, err = db.ListVendorRules()
			Expect(err).NotTo(HaveOccurred())
			Expect(rules).To(BeEmpty())
		})
	})

	Describe("exports", func() {
		It("stores the batch together with its documents", func() {
			Expect(db.SaveDocument(&document.Record{ID: "d1"})).To(Succeed())

			batch := &document.ExportBatch{ID: "e1", DocumentIDs: []string{"d1"}, TotalBrutto: 119}
			Expect(db.SaveExport(batch, []*document.Record{{ID: "d1", ExportID: "e1"}})).To(Succeed())

			got, err := db.GetExport("e1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.TotalBrutto).To(Equal(119.0))

			rec, err := db.GetDocument("d1")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.ExportID).To(Equal("e1"))

			batches, err := db.ListExports()
			Expect(err).NotTo(HaveOccurred())
			Expect(batches).To(HaveLen(1))
		})

		It("returns ErrNotFound for missing exports", func() {
			_, err := db.GetExport("missing")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})
})
