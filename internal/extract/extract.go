// Package extract converts uploaded files into plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Kind is the extraction route chosen from a file name.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindDOCX  Kind = "docx"
	KindImage Kind = "image"
	KindText  Kind = "text"
	KindCSV   Kind = "csv"
	KindXLSX  Kind = "xlsx"
	KindOther Kind = "other"
)

// ErrUnsupported is returned for files that have no text extraction route.
var ErrUnsupported = errors.New("extract: unsupported file type")

// KindOf sniffs the extraction route from the file extension.
func KindOf(filename string) Kind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return KindPDF
	case ".docx":
		return KindDOCX
	case ".png", ".jpg", ".jpeg":
		return KindImage
	case ".txt", ".md", ".markdown":
		return KindText
	case ".csv":
		return KindCSV
	case ".xlsx":
		return KindXLSX
	default:
		return KindOther
	}
}

// ContentType returns a best-effort MIME type for blob uploads.
func ContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".csv":
		return "text/csv"
	case ".txt", ".md", ".markdown":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// Local extracts text from document formats without calling external services.
type Local struct{}

// ExtractText dispatches on the file extension. Images and unknown types
// return ErrUnsupported.
func (Local) ExtractText(_ context.Context, filename string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch KindOf(filename) {
	case KindPDF:
		text, err = PDFText(data)
	case KindDOCX:
		text, err = DOCXText(data)
	case KindCSV:
		text, err = CSVText(data)
	case KindXLSX:
		text, err = XLSXText(data)
	case KindText:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("extract: %s is not valid UTF-8 text", filename)
		}
		text = string(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(filename))
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
