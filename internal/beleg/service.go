// Package beleg runs the document pipeline: it stores uploads, extracts
// their data, books them and hands consistent batches to the export.
package beleg

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/belegflow/internal/accounting"
	"github.com/zombor/belegflow/internal/document"
	"github.com/zombor/belegflow/internal/duplicate"
	"github.com/zombor/belegflow/internal/normalize"
	"github.com/zombor/belegflow/internal/outcome"
	"github.com/zombor/belegflow/internal/preflight"
	"github.com/zombor/belegflow/internal/privacy"
	"github.com/zombor/belegflow/internal/scanning"
)

// IDGenerator generates unique IDs for documents, rules and exports
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Config carries the bookkeeping policy of a Service.
type Config struct {
	Reference accounting.Reference
	Rules     []accounting.Rule
	Preflight preflight.Config
	// DefaultVorsteuerabzug applies when OCR does not report the flag.
	DefaultVorsteuerabzug bool
}

// DefaultConfig uses the built-in chart of accounts and rules.
func DefaultConfig() Config {
	return Config{
		Reference: accounting.DefaultReference(),
		Rules:     accounting.DefaultRules(),
		Preflight: preflight.DefaultConfig(),
	}
}

// Service handles document operations
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	engine      *accounting.Engine
	cfg         Config
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a Service with UUID identifiers and the system clock
func NewService(db DB, scanner scanning.Scanner, storage Storage, cfg Config) *Service {
	return NewServiceWithDeps(db, scanner, storage, cfg, uuidGenerator{}, systemClock{})
}

// NewServiceWithDeps creates a Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, cfg Config, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		engine:      accounting.NewEngine(cfg.Reference, cfg.Rules),
		cfg:         cfg,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_äöüÄÖÜß]`)
	spaceRuns           = regexp.MustCompile(`\s+`)
)

// sanitizeFilename shortens phone-generated names and drops characters
// that are unsafe in storage keys
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(spaceRuns.ReplaceAllString(base, " "))

	if r := []rune(base); len(r) > 50 {
		base = string(r[:50])
	}
	if base == "" {
		base = "beleg"
	}
	return base + ext
}

func fileHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ProcessDocument stores an upload and runs it through extraction,
// duplicate detection, booking, private-purchase detection, invoice
// numbering and status classification. Extraction failures do not fail the
// upload; they surface as the document status.
func (s *Service) ProcessDocument(filename string, data []byte, contentType string) (*document.Record, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	key, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	rec := &document.Record{
		ID:          id,
		FileName:    filename,
		StoredFile:  key,
		ContentType: contentType,
		FileHash:    fileHash(data),
		UploadDate:  now,
		UpdatedAt:   now,
		Status:      document.StatusProcessing,
	}

	existing, err := s.db.ListDocuments()
	if err != nil {
		s.cleanup(key)
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	if m := duplicate.FindByHash(rec.FileHash, existing); m != nil {
		return s.storeHashDuplicate(rec, m, existing)
	}

	extracted := s.extract(filename, data, contentType)

	vendorRules, err := s.vendorRules()
	if err != nil {
		s.cleanup(key)
		return nil, err
	}

	var decision accounting.Decision
	saved, err := s.db.Commit(func(existing []*document.Record) (*document.Record, error) {
		rec.Data = &extracted
		if m := duplicate.Find(rec, existing); m != nil {
			markDuplicate(rec, m)
			return rec, nil
		}

		booked, dec := s.engine.Apply(extracted, nil, vendorRules)
		decision = dec
		booked.EigeneBelegNummer = s.engine.NextInvoiceID(booked.BelegDatum, existing, now)
		rec.Data = &booked

		if p := privacy.Detect(booked); p.IsPrivate {
			rec.Data.Privatanteil = true
			rec.Status = document.StatusPrivate
			rec.PrivateReason = p.Reason
			return rec, nil
		}

		res := outcome.Classify(booked)
		rec.Status, rec.Error = res.Status, res.Error
		return rec, nil
	})
	if err != nil {
		s.cleanup(key)
		return nil, fmt.Errorf("saving document: %w", err)
	}

	if decision.Source == accounting.SourceVendorRule {
		s.countVendorRuleUse(decision.VendorRuleID, vendorRules)
	}

	slog.Info("Document processed",
		"id", saved.ID,
		"filename", filename,
		"status", saved.Status,
		"account", accountOf(saved),
		"booking_source", decision.Source,
	)
	return saved, nil
}

// extract runs the scanner and normalizes the result. A scanner failure
// becomes a manual-entry template so the classifier can report it.
func (s *Service) extract(filename string, data []byte, contentType string) document.ExtractedData {
	raw, err := s.scanner.Scan(data, contentType)
	if err != nil {
		slog.Error("Failed to scan document",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		raw = &document.RawExtraction{
			LieferantName: document.V(outcome.ManualEntryVendor),
			OCRScore:      document.V(0),
			OCRRationale:  document.V(fmt.Sprintf("Vision API error: %v", err)),
		}
	}
	if raw == nil {
		raw = &document.RawExtraction{}
	}

	return normalize.Normalize(*raw, normalize.Options{
		Now:                   s.timeSource.Now,
		DefaultVorsteuerabzug: s.cfg.DefaultVorsteuerabzug,
	})
}

func (s *Service) storeHashDuplicate(rec *document.Record, m *duplicate.Match, existing []*document.Record) (*document.Record, error) {
	for _, e := range existing {
		if e.ID == m.DocumentID && e.Data != nil {
			d := *e.Data
			rec.Data = &d
		}
	}
	markDuplicate(rec, m)
	if err := s.db.SaveDocument(rec); err != nil {
		s.cleanup(rec.StoredFile)
		return nil, fmt.Errorf("saving document: %w", err)
	}
	slog.Info("Identical file uploaded again", "id", rec.ID, "duplicate_of", m.DocumentID)
	return rec, nil
}

func markDuplicate(rec *document.Record, m *duplicate.Match) {
	rec.Status = document.StatusDuplicate
	rec.DuplicateOfID = m.DocumentID
	rec.DuplicateReason = m.Reason
	rec.DuplicateConfidence = m.Confidence
	rec.Error = ""
}

func (s *Service) cleanup(key string) {
	if err := s.storage.Delete(key); err != nil {
		slog.Warn("Failed to delete file", "filename", key, "error", err)
	}
}

func accountOf(rec *document.Record) string {
	if rec.Data == nil {
		return ""
	}
	return rec.Data.Kontierungskonto
}

// GetDocument retrieves a document by ID
func (s *Service) GetDocument(id string) (*document.Record, error) {
	rec, err := s.db.GetDocument(id)
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return rec, nil
}

// ListDocuments returns all documents, oldest upload first
func (s *Service) ListDocuments() ([]*document.Record, error) {
	recs, err := s.db.ListDocuments()
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	sortByUpload(recs)
	return recs, nil
}

func sortByUpload(recs []*document.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].UploadDate.Equal(recs[j].UploadDate) {
			return recs[i].UploadDate.Before(recs[j].UploadDate)
		}
		return recs[i].ID < recs[j].ID
	})
}

// GetDocumentFile returns the stored original and its content type
func (s *Service) GetDocumentFile(id string) ([]byte, string, error) {
	rec, err := s.db.GetDocument(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting document: %w", err)
	}
	data, err := s.storage.Get(rec.StoredFile)
	if err != nil {
		return nil, "", fmt.Errorf("getting document file: %w", err)
	}
	return data, rec.ContentType, nil
}

// DeleteDocument removes a document and its file. Exported documents are
// kept because the export batch refers to them.
func (s *Service) DeleteDocument(id string) error {
	rec, err := s.db.GetDocument(id)
	if err != nil {
		return fmt.Errorf("getting document for deletion: %w", err)
	}
	if rec.ExportID != "" {
		return fmt.Errorf("document %s belongs to export %s: %w", id, rec.ExportID, ErrInvalid)
	}

	if err := s.storage.Delete(rec.StoredFile); err != nil {
		slog.Warn("Failed to delete file", "filename", rec.StoredFile, "error", err)
	}
	if err := s.db.DeleteDocument(id); err != nil {
		return fmt.Errorf("deleting document from database: %w", err)
	}
	return nil
}

// Reference returns the chart of accounts and tax categories in use
func (s *Service) Reference() accounting.Reference {
	return s.engine.Reference()
}
