package extraction

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// prepareAttachment normalizes one input file for a provider request. Plain
// text files become a labeled text block; everything else (PDF, HEIC, JPEG,
// GIF, PNG) becomes PNG image bytes, since that is the one format every
// vision model in the chain accepts.
func prepareAttachment(att Attachment) (imageData []byte, textBlock string, err error) {
	mime := strings.ToLower(strings.TrimSpace(att.MIME))

	if mime == "text/plain" || strings.EqualFold(filepath.Ext(att.Name), ".txt") {
		return nil, fmt.Sprintf("--- File Content: %s ---\n%s", att.Name, string(att.Data)), nil
	}

	if mime == "application/pdf" {
		data, err := pdfToPNG(att.Data)
		if err != nil {
			return nil, "", fmt.Errorf("converting %s: %w", att.Name, err)
		}
		return data, "", nil
	}

	if mime == "image/png" && !isHEIC(att.Data, mime) {
		return att.Data, "", nil
	}

	data, err := imageToPNG(att.Data, mime)
	if err != nil {
		return nil, "", fmt.Errorf("converting %s: %w", att.Name, err)
	}
	return data, "", nil
}

// pdfToPNG renders the first page of a PDF. Receipts and invoices are almost
// always single page.
func pdfToPNG(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return encodePNG(img)
}

func imageToPNG(data []byte, mime string) ([]byte, error) {
	var img image.Image
	var err error

	if isHEIC(data, mime) {
		// iPhone photos; the stdlib image package cannot decode these.
		img, err = heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding image (supported: JPEG, PNG, GIF, HEIC, PDF, TXT): %w", err)
		}
	}
	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEIC detects HEIC/HEIF content by the ftyp box brand or the MIME type.
func isHEIC(data []byte, mime string) bool {
	if strings.Contains(mime, "heic") || strings.Contains(mime, "heif") {
		return true
	}
	if len(data) >= 12 && string(data[4:8]) == "ftyp" {
		switch string(data[8:12]) {
		case "heic", "heif", "mif1", "msf1":
			return true
		}
	}
	return false
}
