// Package pdfinfo inspects compiled output before it is handed to a caller.
package pdfinfo

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// Magic is the header every PDF file starts with.
var Magic = []byte("%PDF-")

// ErrNotPDF is returned when data does not start with Magic.
var ErrNotPDF = errors.New("output is not a PDF document")

// IsPDF reports whether data carries the PDF header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, Magic)
}

// PageCount parses data and returns the number of pages in its page tree.
// The parser panics on some malformed inputs; those are reported as errors.
func PageCount(data []byte) (pages int, err error) {
	if !IsPDF(data) {
		return 0, ErrNotPDF
	}
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pdf: %w", err)
	}
	n := reader.NumPage()
	if n <= 0 {
		return 0, fmt.Errorf("parse pdf: empty page tree")
	}
	return n, nil
}
