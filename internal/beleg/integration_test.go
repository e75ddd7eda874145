package beleg_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/belegflow/internal/beleg"
	"github.com/zombor/belegflow/internal/document"
)

// jsonScanner replays a recorded OCR response
type jsonScanner struct {
	response string
}

func (s *jsonScanner) Scan(data []byte, contentType string) (*document.RawExtraction, error) {
	var raw document.RawExtraction
	if err := json.Unmarshal([]byte(s.response), &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

func (s *jsonScanner) Close() error {
	return nil
}

const hetznerResponse = `{
	"documentType": "Rechnung",
	"belegDatum": "05.02.2025",
	"belegNummerLieferant": "R0012345",
	"lieferantName": "Hetzner Online GmbH",
	"nettoBetrag": "10,00",
	"mwstSatz19": 19,
	"mwstBetrag19": "1,90",
	"bruttoBetrag": "11,90 EUR",
	"lineItems": [{"description": "Cloud Server CX22", "amount": "10,00"}],
	"ocr_score": 5,
	"ocr_rationale": "Steuernummer schlecht lesbar"
}`

var _ = Describe("Integration", func() {
	var (
		db       *beleg.BoltDB
		store    *beleg.LocalStorage
		scanner  *jsonScanner
		server   *beleg.Server
		ghServer *ghttp.Server
	)

	request := func(method, path string, body io.Reader, contentType string) *http.Response {
		ghServer.AppendHandlers(server.ServeHTTP)
		req, err := http.NewRequest(method, ghServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	upload := func(filename string, content []byte) document.Record {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", filename)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(content)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		resp := request(http.MethodPost, "/api/documents", body, writer.FormDataContentType())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var rec document.Record
		Expect(json.NewDecoder(resp.Body).Decode(&rec)).To(Succeed())
		return rec
	}

	BeforeEach(func() {
		tempDir := GinkgoT().TempDir()

		var err error
		db, err = beleg.NewBoltDB(filepath.Join(tempDir, "test.db"))
		Expect(err).NotTo(HaveOccurred())
		store, err = beleg.NewLocalStorage(filepath.Join(tempDir, "belege"))
		Expect(err).NotTo(HaveOccurred())

		scanner = &jsonScanner{response: hetznerResponse}
		service := beleg.NewService(db, scanner, store, beleg.DefaultConfig())
		server = beleg.NewServer(service, beleg.BasicAuth{})
		ghServer = ghttp.NewServer()
	})

	AfterEach(func() {
		if ghServer != nil {
			ghServer.Close()
		}
		if db != nil {
			db.Close()
		}
	})

	It("takes an invoice from upload to export", func() {
		rec := upload("hetzner.pdf", []byte("%PDF-1.4 hetzner"))
		Expect(rec.Status).To(Equal(document.StatusReviewNeeded))
		Expect(rec.Data.BelegDatum).To(Equal("2025-02-05"))
		Expect(rec.Data.BruttoBetrag).To(Equal(11.9))
		Expect(rec.Data.Kontierungskonto).To(Equal("4925"))
		Expect(rec.Data.EigeneBelegNummer).To(Equal("ZOE-2025-0001"))

		_, err := store.Get(rec.StoredFile)
		Expect(err).NotTo(HaveOccurred())

		By("blocking the export while the document needs review")
		resp := request(http.MethodPost, "/api/exports", bytes.NewBufferString(`{"documentIds":["`+rec.ID+`"]}`), "application/json")
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))

		By("booking it manually and remembering the vendor")
		resp = request(http.MethodPut, "/api/documents/"+rec.ID+"/kontierung", bytes.NewBufferString(`{"accountId":"4920","taxCategoryValue":"19%","remember":true}`), "application/json")
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		resp = request(http.MethodPost, "/api/documents/"+rec.ID+"/resolve", nil, "")
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		By("exporting it")
		resp = request(http.MethodPost, "/api/exports", bytes.NewBufferString(`{"documentIds":["`+rec.ID+`"]}`), "application/json")
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		var batch document.ExportBatch
		Expect(json.NewDecoder(resp.Body).Decode(&batch)).To(Succeed())
		resp.Body.Close()
		Expect(batch.TotalBrutto).To(Equal(11.9))

		stored, err := db.GetDocument(rec.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.ExportID).To(Equal(batch.ID))
		Expect(stored.Data.Kontierungskonto).To(Equal("4920"))

		By("refusing to delete the exported document")
		resp = request(http.MethodDelete, "/api/documents/"+rec.ID, nil, "")
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

		By("booking the next invoice from the vendor with the learned rule")
		scanner.response = strings.NewReplacer("R0012345", "R0012399", "05.02.2025", "05.03.2025").Replace(hetznerResponse)
		next := upload("hetzner-maerz.pdf", []byte("%PDF-1.4 hetzner march"))
		Expect(next.Status).To(Equal(document.StatusReviewNeeded))
		Expect(next.Data.Kontierungskonto).To(Equal("4920"))
		Expect(next.Data.EigeneBelegNummer).To(Equal("ZOE-2025-0002"))

		rules, err := db.ListVendorRules()
		Expect(err).NotTo(HaveOccurred())
		Expect(rules).To(HaveLen(1))
		Expect(rules[0].VendorPattern).To(Equal("hetzner online gmbh"))
		Expect(rules[0].UseCount).To(Equal(1))
	})
})
