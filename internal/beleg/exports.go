package beleg

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/zombor/belegflow/internal/document"
	"github.com/zombor/belegflow/internal/fieldparse"
	"github.com/zombor/belegflow/internal/preflight"
)

// Preflight checks the given documents for export readiness. Without IDs
// every document not yet exported is checked.
func (s *Service) Preflight(ids []string) (preflight.Result, error) {
	docs, err := s.selectDocuments(ids)
	if err != nil {
		return preflight.Result{}, err
	}
	return preflight.Run(docs, s.cfg.Preflight), nil
}

func (s *Service) selectDocuments(ids []string) ([]*document.Record, error) {
	if len(ids) == 0 {
		all, err := s.ListDocuments()
		if err != nil {
			return nil, err
		}
		docs := make([]*document.Record, 0, len(all))
		for _, rec := range all {
			if rec.ExportID == "" {
				docs = append(docs, rec)
			}
		}
		return docs, nil
	}

	docs := make([]*document.Record, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		rec, err := s.db.GetDocument(id)
		if err != nil {
			return nil, fmt.Errorf("getting document %s: %w", id, err)
		}
		docs = append(docs, rec)
	}
	return docs, nil
}

// CreateExport books the given documents into a new export batch. The batch
// is refused with a *PreflightError when preflight finds blockers.
func (s *Service) CreateExport(ids []string) (*document.ExportBatch, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one document is required: %w", ErrInvalid)
	}

	docs, err := s.selectDocuments(ids)
	if err != nil {
		return nil, err
	}
	for _, rec := range docs {
		if rec.ExportID != "" {
			return nil, fmt.Errorf("document %s is already exported: %w", rec.ID, ErrInvalid)
		}
	}

	res := preflight.Run(docs, s.cfg.Preflight)
	if !res.CanExport() {
		slog.Warn("Export blocked", "documents", len(docs), "blockers", len(res.Blockers))
		return nil, &PreflightError{Result: res}
	}

	now := s.timeSource.Now()
	batch := &document.ExportBatch{
		ID:        s.idGenerator.Generate(),
		CreatedAt: now,
	}
	amounts := make([]float64, 0, len(docs))
	for _, rec := range docs {
		batch.DocumentIDs = append(batch.DocumentIDs, rec.ID)
		if rec.Data != nil {
			amounts = append(amounts, rec.Data.BruttoBetrag)
		}
		rec.ExportID = batch.ID
		rec.UpdatedAt = now
	}
	batch.TotalBrutto = fieldparse.Round2(fieldparse.Sum(amounts...))

	if err := s.db.SaveExport(batch, docs); err != nil {
		return nil, fmt.Errorf("saving export: %w", err)
	}

	slog.Info("Export created", "id", batch.ID, "documents", len(docs), "total_brutto", batch.TotalBrutto, "warnings", len(res.Warnings))
	return batch, nil
}

// GetExportWithDocuments returns an export batch with its documents
func (s *Service) GetExportWithDocuments(id string) (*document.ExportBatch, []*document.Record, error) {
	batch, err := s.db.GetExport(id)
	if err != nil {
		return nil, nil, fmt.Errorf("getting export: %w", err)
	}

	docs := make([]*document.Record, 0, len(batch.DocumentIDs))
	for _, docID := range batch.DocumentIDs {
		rec, err := s.db.GetDocument(docID)
		if err != nil {
			return nil, nil, fmt.Errorf("getting document %s: %w", docID, err)
		}
		docs = append(docs, rec)
	}
	return batch, docs, nil
}

// ListExports returns all export batches, newest first
func (s *Service) ListExports() ([]*document.ExportBatch, error) {
	batches, err := s.db.ListExports()
	if err != nil {
		return nil, fmt.Errorf("listing exports: %w", err)
	}
	sort.SliceStable(batches, func(i, j int) bool {
		return batches[i].CreatedAt.After(batches[j].CreatedAt)
	})
	return batches, nil
}
