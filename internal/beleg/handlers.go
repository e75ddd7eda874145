package beleg

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/zombor/belegflow/internal/accounting"
	"github.com/zombor/belegflow/internal/document"
)

const maxUploadSize = int64(50 << 20)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// writeServiceError maps service errors to status codes
func writeServiceError(w http.ResponseWriter, err error) {
	var pfErr *PreflightError
	switch {
	case errors.As(err, &pfErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":     err.Error(),
			"verdict":   pfErr.Result.Verdict(),
			"preflight": pfErr.Result,
		})
	case errors.Is(err, ErrNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrInvalid):
		writeError(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("Request failed", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// validationErrors maps each failing JSON field to the rule it broke
func validationErrors(err error) map[string]string {
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["body"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

// decodeBody decodes and validates a JSON request body. It writes the
// error response itself and reports whether the handler may continue.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "Validation failed",
			"fields": validationErrors(err),
		})
		return false
	}
	return true
}

type kontierungRequest struct {
	AccountID        string `json:"accountId" validate:"required_without=TaxCategoryValue"`
	TaxCategoryValue string `json:"taxCategoryValue" validate:"required_without=AccountID"`
	Remember         bool   `json:"remember"`
}

type documentIDsRequest struct {
	DocumentIDs []string `json:"documentIds" validate:"dive,required"`
}

type exportRequest struct {
	DocumentIDs []string `json:"documentIds" validate:"required,min=1,dive,required"`
}

type vendorRuleRequest struct {
	VendorPattern    string `json:"vendorPattern" validate:"required,min=2"`
	AccountID        string `json:"accountId" validate:"required_without=TaxCategoryValue"`
	TaxCategoryValue string `json:"taxCategoryValue" validate:"required_without=AccountID"`
}

// handleListDocuments returns all documents
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.service.ListDocuments()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func contentTypeFor(filename, declared string) string {
	ct := strings.ToLower(strings.TrimSpace(declared))
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handleUploadDocument accepts a multipart upload in the "file" field
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+(1<<20))
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		msg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "Datei zu groß (max 50MB)"
		}
		writeError(w, msg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, "Keine Datei ausgewählt", http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, "Datei konnte nicht gelesen werden", http.StatusInternalServerError)
		return
	}
	if len(data) == 0 {
		writeError(w, "Datei ist leer", http.StatusBadRequest)
		return
	}

	rec, err := s.service.ProcessDocument(header.Filename, data, contentTypeFor(header.Filename, header.Header.Get("Content-Type")))
	if err != nil {
		slog.Error("Error processing document", "filename", header.Filename, "error", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// handleGetDocument returns a single document
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.GetDocument(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleGetDocumentFile streams the original upload
func (s *Server) handleGetDocumentFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetDocumentFile(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteDocument deletes a document
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteDocument(r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpdateKontierung applies a manual account/tax choice
func (s *Server) handleUpdateKontierung(w http.ResponseWriter, r *http.Request) {
	var req kontierungRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	override := accounting.Override{AccountID: req.AccountID, TaxCategoryValue: req.TaxCategoryValue}
	rec, err := s.service.UpdateKontierung(r.PathValue("id"), override, req.Remember)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleResolveReview completes a reviewed document
func (s *Server) handleResolveReview(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.ResolveReview(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleValidateDocument returns the booking problems of a document
func (s *Server) handleValidateDocument(w http.ResponseWriter, r *http.Request) {
	problems, err := s.service.ValidateDocument(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":  len(problems) == 0,
		"errors": problems,
	})
}

// handlePreflight checks documents for export readiness
func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	var req documentIDsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	res, err := s.service.Preflight(req.DocumentIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"verdict":   res.Verdict(),
		"canExport": res.CanExport(),
		"blockers":  res.Blockers,
		"warnings":  res.Warnings,
		"totalDocs": res.TotalDocs,
	})
}

// handleListExports returns all export batches
func (s *Server) handleListExports(w http.ResponseWriter, r *http.Request) {
	batches, err := s.service.ListExports()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batches)
}

// handleCreateExport creates an export batch
func (s *Server) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	batch, err := s.service.CreateExport(req.DocumentIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, batch)
}

// handleGetExport returns an export batch with its documents
func (s *Server) handleGetExport(w http.ResponseWriter, r *http.Request) {
	batch, docs, err := s.service.GetExportWithDocuments(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"export":    batch,
		"documents": docs,
	})
}

// handleListVendorRules returns the learned vendor rules
func (s *Server) handleListVendorRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.service.ListVendorRules()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

// handleSaveVendorRule creates a vendor rule
func (s *Server) handleSaveVendorRule(w http.ResponseWriter, r *http.Request) {
	var req vendorRuleRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	rule, err := s.service.SaveVendorRule(&document.VendorRule{
		VendorPattern:    req.VendorPattern,
		AccountID:        req.AccountID,
		TaxCategoryValue: req.TaxCategoryValue,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// handleDeleteVendorRule deletes a vendor rule
func (s *Server) handleDeleteVendorRule(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteVendorRule(r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReference returns the chart of accounts and tax categories
func (s *Server) handleReference(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Reference())
}
