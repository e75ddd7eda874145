package beleg

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/belegflow/internal/document"
)

const (
	documentsBucket   = "documents"
	vendorRulesBucket = "vendor_rules"
	exportsBucket     = "exports"
)

// CommitFunc builds the record to store from the documents stored so far.
type CommitFunc func(existing []*document.Record) (*document.Record, error)

// DB defines the interface for database operations
type DB interface {
	SaveDocument(rec *document.Record) error
	GetDocument(id string) (*document.Record, error)
	ListDocuments() ([]*document.Record, error)
	DeleteDocument(id string) error

	// Commit runs build against a consistent snapshot of all documents and
	// stores its result in the same write transaction. Duplicate detection
	// and invoice numbering go through here so concurrent uploads cannot
	// claim the same number.
	Commit(build CommitFunc) (*document.Record, error)

	SaveVendorRule(rule *document.VendorRule) error
	ListVendorRules() ([]*document.VendorRule, error)
	DeleteVendorRule(id string) error

	// SaveExport stores batch and the documents it marks as exported in
	// one transaction.
	SaveExport(batch *document.ExportBatch, docs []*document.Record) error
	GetExport(id string) (*document.ExportBatch, error)
	ListExports() ([]*document.ExportBatch, error)

	Close() error
}

// BoltDB implements DB on a single bbolt file with one bucket per kind.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens or creates the database at path
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{documentsBucket, vendorRulesBucket, exportsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func put(tx *bbolt.Tx, bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s/%s: %w", bucket, key, err)
	}
	return tx.Bucket([]byte(bucket)).Put([]byte(key), data)
}

func get[T any](tx *bbolt.Tx, bucket, key string) (*T, error) {
	data := tx.Bucket([]byte(bucket)).Get([]byte(key))
	if data == nil {
		return nil, fmt.Errorf("%s %s: %w", bucket, key, ErrNotFound)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unmarshaling %s/%s: %w", bucket, key, err)
	}
	return &v, nil
}

func list[T any](tx *bbolt.Tx, bucket string) ([]*T, error) {
	out := make([]*T, 0)
	err := tx.Bucket([]byte(bucket)).ForEach(func(k, data []byte) error {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("unmarshaling %s/%s: %w", bucket, k, err)
		}
		out = append(out, &v)
		return nil
	})
	return out, err
}

func remove(tx *bbolt.Tx, bucket, key string) error {
	b := tx.Bucket([]byte(bucket))
	if b.Get([]byte(key)) == nil {
		return fmt.Errorf("%s %s: %w", bucket, key, ErrNotFound)
	}
	return b.Delete([]byte(key))
}

// SaveDocument stores rec under its ID
func (b *BoltDB) SaveDocument(rec *document.Record) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, documentsBucket, rec.ID, rec)
	})
}

// GetDocument loads a document by ID
func (b *BoltDB) GetDocument(id string) (*document.Record, error) {
	var rec *document.Record
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		rec, err = get[document.Record](tx, documentsBucket, id)
		return err
	})
	return rec, err
}

// ListDocuments returns all documents in key order
func (b *BoltDB) ListDocuments() ([]*document.Record, error) {
	var recs []*document.Record
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		recs, err = list[document.Record](tx, documentsBucket)
		return err
	})
	return recs, err
}

// DeleteDocument removes a document
func (b *BoltDB) DeleteDocument(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return remove(tx, documentsBucket, id)
	})
}

// Commit implements DB
func (b *BoltDB) Commit(build CommitFunc) (*document.Record, error) {
	var rec *document.Record
	err := b.db.Update(func(tx *bbolt.Tx) error {
		existing, err := list[document.Record](tx, documentsBucket)
		if err != nil {
			return err
		}
		rec, err = build(existing)
		if err != nil {
			return err
		}
		return put(tx, documentsBucket, rec.ID, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// SaveVendorRule stores a learned vendor rule
func (b *BoltDB) SaveVendorRule(rule *document.VendorRule) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, vendorRulesBucket, rule.ID, rule)
	})
}

// ListVendorRules returns all learned vendor rules
func (b *BoltDB) ListVendorRules() ([]*document.VendorRule, error) {
	var rules []*document.VendorRule
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		rules, err = list[document.VendorRule](tx, vendorRulesBucket)
		return err
	})
	return rules, err
}

// DeleteVendorRule removes a learned vendor rule
func (b *BoltDB) DeleteVendorRule(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return remove(tx, vendorRulesBucket, id)
	})
}

// SaveExport implements DB
func (b *BoltDB) SaveExport(batch *document.ExportBatch, docs []*document.Record) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := put(tx, exportsBucket, batch.ID, batch); err != nil {
			return err
		}
		for _, rec := range docs {
			if err := put(tx, documentsBucket, rec.ID, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetExport loads an export batch by ID
func (b *BoltDB) GetExport(id string) (*document.ExportBatch, error) {
	var batch *document.ExportBatch
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		batch, err = get[document.ExportBatch](tx, exportsBucket, id)
		return err
	})
	return batch, err
}

// ListExports returns all export batches
func (b *BoltDB) ListExports() ([]*document.ExportBatch, error) {
	var batches []*document.ExportBatch
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		batches, err = list[document.ExportBatch](tx, exportsBucket)
		return err
	})
	return batches, err
}

// Close closes the database
func (b *BoltDB) Close() error {
	return b.db.Close()
}
