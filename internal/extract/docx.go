package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"
)

const docxBody = "word/document.xml"

// DOCXText returns the text of a .docx file, one line per paragraph. Tables
// come out as markdown rows.
func DOCXText(data []byte) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("extract: open docx: %w", err)
	}
	// The body element is only named once word/document.xml was decoded.
	if doc.Document.XMLName.Local != "document" {
		return "", fmt.Errorf("extract: docx has no %s", docxBody)
	}

	var sb strings.Builder
	for _, it := range doc.Document.Body.Items {
		switch v := it.(type) {
		case *docx.Paragraph:
			sb.WriteString(v.String())
			sb.WriteByte('\n')
		case *docx.Table:
			sb.WriteString(v.String())
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}
