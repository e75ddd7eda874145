package beleg

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/belegflow/internal/document"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		scanner     *mockScanner
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	}

	do := func(method, path string, body io.Reader) *http.Response {
		req, err := http.NewRequest(method, ghttpServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, v any) {
		defer resp.Body.Close()
		Expect(json.NewDecoder(resp.Body).Decode(v)).To(Succeed())
	}

	BeforeEach(func() {
		db = newMockDB()
		scanner = newMockScanner()
		scanner.raw = microsoftInvoice()
		service = NewServiceWithDeps(db, scanner, newMockStorage(), DefaultConfig(), &sequenceIDs{}, fixedClock{t: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)})
		auth = BasicAuth{}
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("POST /api/documents", func() {
		upload := func(filename string, data []byte) *http.Response {
			body := &bytes.Buffer{}
			writer := multipart.NewWriter(body)
			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
			h.Set("Content-Type", "application/pdf")
			part, err := writer.CreatePart(h)
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(writer.Close()).To(Succeed())

			resp, err := http.Post(ghttpServer.URL()+"/api/documents", writer.FormDataContentType(), body)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		It("processes the upload and returns the record", func() {
			resp := upload("rechnung.pdf", []byte("pdf"))
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var rec document.Record
			decode(resp, &rec)
			Expect(rec.Status).To(Equal(document.StatusCompleted))
			Expect(rec.ContentType).To(Equal("application/pdf"))
			Expect(rec.Data.Kontierungskonto).To(Equal("4964"))
		})

		It("rejects requests without a file", func() {
			resp, err := http.Post(ghttpServer.URL()+"/api/documents", "application/json", strings.NewReader("{}"))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects empty files", func() {
			resp := upload("leer.pdf", nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/documents/{id}", func() {
		It("returns 404 for unknown documents", func() {
			resp := do(http.MethodGet, "/api/documents/missing", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

			var body map[string]string
			decode(resp, &body)
			Expect(body["error"]).To(ContainSubstring("not found"))
		})

		It("returns a stored document", func() {
			db.documents["d1"] = &document.Record{ID: "d1", Status: document.StatusCompleted}

			resp := do(http.MethodGet, "/api/documents/d1", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var rec document.Record
			decode(resp, &rec)
			Expect(rec.ID).To(Equal("d1"))
		})
	})

	Describe("GET /api/documents", func() {
		It("returns an empty list", func() {
			resp := do(http.MethodGet, "/api/documents", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var docs []document.Record
			decode(resp, &docs)
			Expect(docs).To(BeEmpty())
		})
	})

	Describe("PUT /api/documents/{id}/kontierung", func() {
		BeforeEach(func() {
			db.documents["d1"] = &document.Record{ID: "d1", Status: document.StatusReviewNeeded, Data: &document.ExtractedData{LieferantName: "Hetzner"}}
		})

		It("requires an account or tax category", func() {
			resp := do(http.MethodPut, "/api/documents/d1/kontierung", strings.NewReader(`{"remember":true}`))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			var body map[string]any
			decode(resp, &body)
			Expect(body["error"]).To(Equal("Validation failed"))
			Expect(body["fields"]).To(HaveKey("accountId"))
		})

		It("rejects malformed JSON", func() {
			resp := do(http.MethodPut, "/api/documents/d1/kontierung", strings.NewReader(`{`))
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects unknown accounts", func() {
			resp := do(http.MethodPut, "/api/documents/d1/kontierung", strings.NewReader(`{"accountId":"9999"}`))
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("updates the booking", func() {
			resp := do(http.MethodPut, "/api/documents/d1/kontierung", strings.NewReader(`{"accountId":"4925","taxCategoryValue":"19%"}`))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var rec document.Record
			decode(resp, &rec)
			Expect(rec.Data.Kontierungskonto).To(Equal("4925"))
			Expect(rec.Data.Steuerkategorie).To(Equal("19%"))
		})
	})

	Describe("POST /api/exports", func() {
		It("returns 422 with the preflight result when blocked", func() {
			db.documents["d1"] = &document.Record{ID: "d1", FileName: "a.pdf", Status: document.StatusError}

			resp := do(http.MethodPost, "/api/exports", strings.NewReader(`{"documentIds":["d1"]}`))
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))

			var body map[string]any
			decode(resp, &body)
			Expect(body["verdict"]).To(Equal("Export blockiert"))
			Expect(body).To(HaveKey("preflight"))
		})

		It("requires document IDs", func() {
			resp := do(http.MethodPost, "/api/exports", strings.NewReader(`{"documentIds":[]}`))
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /api/preflight", func() {
		It("accepts an empty body", func() {
			resp := do(http.MethodPost, "/api/preflight", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body map[string]any
			decode(resp, &body)
			Expect(body["verdict"]).To(Equal("Export OK"))
			Expect(body["canExport"]).To(BeTrue())
			Expect(body["totalDocs"]).To(BeNumerically("==", 0))
		})
	})

	Describe("POST /api/vendor-rules", func() {
		It("validates the pattern", func() {
			resp := do(http.MethodPost, "/api/vendor-rules", strings.NewReader(`{"vendorPattern":"x","accountId":"4925"}`))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			var body map[string]any
			decode(resp, &body)
			Expect(body["fields"]).To(HaveKeyWithValue("vendorPattern", "min"))
		})

		It("creates a rule", func() {
			resp := do(http.MethodPost, "/api/vendor-rules", strings.NewReader(`{"vendorPattern":"Hetzner","accountId":"4925"}`))
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var rule document.VendorRule
			decode(resp, &rule)
			Expect(rule.VendorPattern).To(Equal("hetzner"))
		})
	})

	Describe("GET /api/reference", func() {
		It("returns the chart of accounts", func() {
			resp := do(http.MethodGet, "/api/reference", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring(`"4964"`))
		})
	})

	Describe("OPTIONS", func() {
		It("answers preflight requests with CORS headers", func() {
			resp := do(http.MethodOptions, "/api/documents", nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("PUT"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "buchhaltung", Password: "geheim"}
			setupServer()
		})

		It("rejects requests without credentials", func() {
			resp := do(http.MethodGet, "/api/documents", nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Belegflow"))
		})

		It("accepts valid credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/documents", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("buchhaltung:geheim")))
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})
