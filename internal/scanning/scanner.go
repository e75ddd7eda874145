// Package scanning extracts invoice fields from document images and PDFs
// with a vision language model.
package scanning

import "github.com/zombor/belegflow/internal/document"

// Scanner defines the interface for OCR extraction
type Scanner interface {
	// Scan reads an image or PDF and returns the raw, untrusted extraction
	Scan(data []byte, contentType string) (*document.RawExtraction, error)
	// Close releases the underlying client
	Close() error
}
