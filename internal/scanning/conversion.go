package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

const (
	// MaxPDFBytes is the largest PDF sent to a vision model.
	MaxPDFBytes = 12 << 20
	// maxPDFPages is how many pages are stitched into one image.
	maxPDFPages = 3
)

// toPNG converts a PDF, HEIC, JPEG or GIF document to PNG. PNG input is
// returned unchanged.
func toPNG(data []byte, contentType string) ([]byte, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	switch {
	case mimeType == "application/pdf":
		if len(data) > MaxPDFBytes {
			return nil, fmt.Errorf("PDF ist zu groß (%d MB, maximal %d MB)", len(data)>>20, MaxPDFBytes>>20)
		}
		img, err := renderPDF(data)
		if err != nil {
			return nil, fmt.Errorf("converting PDF to image: %w", err)
		}
		return encodePNG(img)
	case isHEIC(data, mimeType):
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return encodePNG(img)
	case mimeType == "image/png":
		return data, nil
	default:
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("unsupported image format %q (supported: PDF, PNG, JPEG, GIF, HEIC): %w", mimeType, err)
		}
		return encodePNG(img)
	}
}

// renderPDF renders the first pages of a PDF and stacks them vertically so
// multi-page invoices keep their totals, which usually sit on the last page.
func renderPDF(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	if pages > maxPDFPages {
		pages = maxPDFPages
	}

	rendered := make([]image.Image, 0, pages)
	width, height := 0, 0
	for i := 0; i < pages; i++ {
		img, err := doc.Image(i)
		if err != nil {
			return nil, fmt.Errorf("rendering PDF page %d: %w", i+1, err)
		}
		rendered = append(rendered, img)
		if w := img.Bounds().Dx(); w > width {
			width = w
		}
		height += img.Bounds().Dy()
	}
	if len(rendered) == 1 {
		return rendered[0], nil
	}
	return stack(rendered, width, height), nil
}

func stack(pages []image.Image, width, height int) image.Image {
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	y := 0
	for _, p := range pages {
		b := p.Bounds()
		for py := b.Min.Y; py < b.Max.Y; py++ {
			for px := b.Min.X; px < b.Max.X; px++ {
				canvas.Set(px-b.Min.X, y+py-b.Min.Y, p.At(px, py))
			}
		}
		y += b.Dy()
	}
	return canvas
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEIC checks the MIME type and the ftyp brand at offset 4.
func isHEIC(data []byte, mimeType string) bool {
	if strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif") {
		return true
	}
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}
