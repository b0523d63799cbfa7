package utils

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// SimulatedExtraction stands in for the text of uploads that cannot be read.
const SimulatedExtraction = "Text extraction simulated for demo. Add a vision provider for real image OCR."

type TextExtractor interface {
	ExtractText(data []byte, mimeType string) (string, error)
}

// PDFExtractor reads text out of PDFs and plain-text uploads. Anything else
// gets a placeholder so the upload can still be recorded.
type PDFExtractor struct{}

func NewPDFExtractor() TextExtractor {
	return PDFExtractor{}
}

func (PDFExtractor) ExtractText(data []byte, mimeType string) (string, error) {
	mt := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	switch {
	case mt == "application/pdf" || isPDF(data):
		return extractPDF(data)
	case strings.HasPrefix(mt, "text/"):
		return string(data), nil
	default:
		return SimulatedExtraction, nil
	}
}

func isPDF(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plaintext: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("pdf read: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Truncate cuts s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
