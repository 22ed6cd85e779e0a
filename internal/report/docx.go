package report

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"time"

	"github.com/fumiama/go-docx"
)

// ContentType is the MIME type of rendered reports.
const ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

const (
	listStyle    = "ListParagraph"
	bulletMarker = "• "
)

// Render serializes doc as a .docx file.
func Render(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteDOCX(&buf, doc, time.Now().UTC()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteDOCX writes doc as an OOXML word-processing package to w. Numbered
// items count up from 1 and restart after each heading.
func WriteDOCX(w io.Writer, doc Document, created time.Time) error {
	f := docx.New().UseTemplate("", docx.DefaultTemplateFilesList, newPackageParts(doc.Title, created))

	number := 0
	for _, b := range doc.Blocks {
		p := f.AddParagraph()
		switch b.Kind {
		case Heading:
			p.Style("Heading" + strconv.Itoa(b.Level))
			number = 0
		case Bullet:
			p.Style(listStyle)
			addRun(p, Run{Text: bulletMarker})
		case Numbered:
			number++
			p.Style(listStyle)
			addRun(p, Run{Text: strconv.Itoa(number) + ". "})
		}
		for _, r := range b.Runs {
			addRun(p, r)
		}
	}
	f.WithA4Page()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("report: write package: %w", err)
	}
	return nil
}

func addRun(p *docx.Paragraph, r Run) {
	if r.Text == "" {
		return
	}
	run := p.AddText(r.Text)
	for _, c := range run.Children {
		if t, ok := c.(*docx.Text); ok {
			t.XMLSpace = "preserve"
		}
	}
	if r.Bold {
		run.Bold()
	}
}

// packageParts serves the static parts of the package: the report styles and
// core properties, with everything else taken from the library's template.
type packageParts struct {
	parts map[string][]byte
}

func newPackageParts(title string, created time.Time) packageParts {
	return packageParts{parts: map[string][]byte{
		"word/styles.xml":   []byte(stylesXML),
		"docProps/core.xml": []byte(corePropsXML(title, created)),
	}}
}

func (p packageParts) Open(name string) (fs.File, error) {
	if data, ok := p.parts[name]; ok {
		return &partFile{Reader: bytes.NewReader(data), name: name, size: int64(len(data))}, nil
	}
	return docx.TemplateXMLFS.Open("xml/default/" + name)
}

type partFile struct {
	*bytes.Reader
	name string
	size int64
}

func (f *partFile) Stat() (fs.FileInfo, error) { return partInfo{name: f.name, size: f.size}, nil }
func (f *partFile) Close() error               { return nil }

type partInfo struct {
	name string
	size int64
}

func (i partInfo) Name() string       { return i.name }
func (i partInfo) Size() int64        { return i.size }
func (i partInfo) Mode() fs.FileMode  { return 0o444 }
func (i partInfo) ModTime() time.Time { return time.Time{} }
func (i partInfo) IsDir() bool        { return false }
func (i partInfo) Sys() any           { return nil }

func corePropsXML(title string, created time.Time) string {
	return xml.Header +
		`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" ` +
		`xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" ` +
		`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
		`<dc:title>` + escape(title) + `</dc:title>` +
		`<dcterms:created xsi:type="dcterms:W3CDTF">` + created.UTC().Format(time.RFC3339) + `</dcterms:created>` +
		`</cp:coreProperties>`
}

func escape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

const stylesXML = xml.Header +
	`<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:rPr><w:sz w:val="22"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:pPr><w:outlineLvl w:val="0"/></w:pPr><w:rPr><w:b/><w:sz w:val="36"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:pPr><w:outlineLvl w:val="1"/></w:pPr><w:rPr><w:b/><w:sz w:val="30"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading3"><w:name w:val="heading 3"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:pPr><w:outlineLvl w:val="2"/></w:pPr><w:rPr><w:b/><w:sz w:val="26"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading4"><w:name w:val="heading 4"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:pPr><w:outlineLvl w:val="3"/></w:pPr><w:rPr><w:b/><w:i/><w:sz w:val="24"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="ListParagraph"><w:name w:val="List Paragraph"/><w:basedOn w:val="Normal"/><w:pPr><w:ind w:left="720" w:hanging="360"/></w:pPr></w:style>` +
	`</w:styles>`
