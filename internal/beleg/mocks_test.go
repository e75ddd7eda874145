package beleg

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/zombor/belegflow/internal/document"
)

// mockDB is an in-memory DB
type mockDB struct {
	documents   map[string]*document.Record
	vendorRules map[string]*document.VendorRule
	exports     map[string]*document.ExportBatch
	saveErr     error
	listErr     error
	commitErr   error
	exportErr   error
	commits     int
}

func newMockDB() *mockDB {
	return &mockDB{
		documents:   make(map[string]*document.Record),
		vendorRules: make(map[string]*document.VendorRule),
		exports:     make(map[string]*document.ExportBatch),
	}
}

func (m *mockDB) SaveDocument(rec *document.Record) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.documents[rec.ID] = rec
	return nil
}

func (m *mockDB) GetDocument(id string) (*document.Record, error) {
	rec, ok := m.documents[id]
	if !ok {
		return nil, fmt.Errorf("documents %s: %w", id, ErrNotFound)
	}
	return rec, nil
}

func (m *mockDB) ListDocuments() ([]*document.Record, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*document.Record, 0, len(m.documents))
	for _, rec := range m.documents {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockDB) DeleteDocument(id string) error {
	if _, ok := m.documents[id]; !ok {
		return fmt.Errorf("documents %s: %w", id, ErrNotFound)
	}
	delete(m.documents, id)
	return nil
}

func (m *mockDB) Commit(build CommitFunc) (*document.Record, error) {
	m.commits++
	if m.commitErr != nil {
		return nil, m.commitErr
	}
	existing, _ := m.ListDocuments()
	rec, err := build(existing)
	if err != nil {
		return nil, err
	}
	m.documents[rec.ID] = rec
	return rec, nil
}

func (m *mockDB) SaveVendorRule(rule *document.VendorRule) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	r := *rule
	m.vendorRules[rule.ID] = &r
	return nil
}

func (m *mockDB) ListVendorRules() ([]*document.VendorRule, error) {
	out := make([]*document.VendorRule, 0, len(m.vendorRules))
	for _, r := range m.vendorRules {
		c := *r
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockDB) DeleteVendorRule(id string) error {
	if _, ok := m.vendorRules[id]; !ok {
		return fmt.Errorf("vendor_rules %s: %w", id, ErrNotFound)
	}
	delete(m.vendorRules, id)
	return nil
}

func (m *mockDB) SaveExport(batch *document.ExportBatch, docs []*document.Record) error {
	if m.exportErr != nil {
		return m.exportErr
	}
	m.exports[batch.ID] = batch
	for _, rec := range docs {
		m.documents[rec.ID] = rec
	}
	return nil
}

func (m *mockDB) GetExport(id string) (*document.ExportBatch, error) {
	b, ok := m.exports[id]
	if !ok {
		return nil, fmt.Errorf("exports %s: %w", id, ErrNotFound)
	}
	return b, nil
}

func (m *mockDB) ListExports() ([]*document.ExportBatch, error) {
	out := make([]*document.ExportBatch, 0, len(m.exports))
	for _, b := range m.exports {
		out = append(out, b)
	}
	return out, nil
}

func (m *mockDB) Close() error {
	return nil
}

// mockStorage keeps files in memory
type mockStorage struct {
	files   map[string][]byte
	saveErr error
}

func newMockStorage() *mockStorage {
	return &mockStorage{files: make(map[string][]byte)}
}

func (m *mockStorage) Save(name string, data []byte) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.files[name] = data
	return name, nil
}

func (m *mockStorage) Get(key string) ([]byte, error) {
	data, ok := m.files[key]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", key, ErrNotFound)
	}
	return data, nil
}

func (m *mockStorage) Delete(key string) error {
	if _, ok := m.files[key]; !ok {
		return errors.New("file not found")
	}
	delete(m.files, key)
	return nil
}

// mockScanner returns a canned extraction
type mockScanner struct {
	raw   *document.RawExtraction
	err   error
	calls int
}

func newMockScanner() *mockScanner {
	return &mockScanner{raw: &document.RawExtraction{}}
}

func (m *mockScanner) Scan(data []byte, contentType string) (*document.RawExtraction, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.raw, nil
}

func (m *mockScanner) Close() error {
	return nil
}

// sequenceIDs hands out id-1, id-2, ...
type sequenceIDs struct {
	n int
}

func (s *sequenceIDs) Generate() string {
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time {
	return c.t
}
