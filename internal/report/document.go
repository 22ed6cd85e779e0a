// Package report converts lightweight markdown into a document model and
// serializes it as a .docx file.
package report

import (
	"regexp"
	"strings"
)

// BlockKind identifies the kind of a document block.
type BlockKind int

const (
	Paragraph BlockKind = iota
	Heading
	Bullet
	Numbered
)

func (k BlockKind) String() string {
	switch k {
	case Heading:
		return "heading"
	case Bullet:
		return "bullet"
	case Numbered:
		return "numbered"
	default:
		return "paragraph"
	}
}

// Run is a span of text with uniform formatting.
type Run struct {
	Text string
	Bold bool
}

// Block is one paragraph-level element. Headings carry Level 1-4 and a single
// plain run; an empty paragraph has no runs.
type Block struct {
	Kind  BlockKind
	Level int
	Runs  []Run
}

// Text returns the concatenated run text.
func (b Block) Text() string {
	var sb strings.Builder
	for _, r := range b.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// Document is the structured form of a report.
type Document struct {
	Title  string
	Blocks []Block
}

const (
	defaultFilenameBase = "report"
	fileExtension       = ".docx"
)

var (
	bulletPrefix   = regexp.MustCompile(`^-\s`)
	numberedPrefix = regexp.MustCompile(`^\d+\.\s`)
	unsafeRune     = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// Filename derives the download name from the title.
func (d Document) Filename() string {
	return SafeFilenameBase(d.Title) + fileExtension
}

// SafeFilenameBase replaces every non-alphanumeric character of title with an
// underscore, one for one. An empty title yields "report".
func SafeFilenameBase(title string) string {
	if title == "" {
		return defaultFilenameBase
	}
	return unsafeRune.ReplaceAllString(title, "_")
}

// Parse scans text line by line and builds the document model. It never fails
// and produces exactly one block per input line.
func Parse(text string) Document {
	var doc Document
	titled := false

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)

		if level, heading, ok := parseHeading(line); ok {
			if !titled && level <= 3 {
				doc.Title = heading
				titled = true
			}
			doc.Blocks = append(doc.Blocks, Block{Kind: Heading, Level: level, Runs: []Run{{Text: heading}}})
			continue
		}

		switch {
		case line == "":
			doc.Blocks = append(doc.Blocks, Block{Kind: Paragraph})
		case bulletPrefix.MatchString(line):
			doc.Blocks = append(doc.Blocks, Block{Kind: Bullet, Runs: boldRuns(strings.TrimSpace(line[1:]))})
		case numberedPrefix.MatchString(line):
			body := strings.TrimSpace(numberedPrefix.ReplaceAllString(line, ""))
			doc.Blocks = append(doc.Blocks, Block{Kind: Numbered, Runs: boldRuns(body)})
		default:
			doc.Blocks = append(doc.Blocks, Block{Kind: Paragraph, Runs: boldRuns(line)})
		}
	}
	return doc
}

func parseHeading(line string) (int, string, bool) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 4 || level >= len(line) || line[level] != ' ' {
		return 0, "", false
	}
	return level, strings.TrimSpace(line[level:]), true
}

// boldRuns splits s on "**" and alternates plain and bold runs, starting with
// plain. Empty runs are kept; an unmatched marker bolds the rest of the line.
func boldRuns(s string) []Run {
	segments := strings.Split(s, "**")
	runs := make([]Run, len(segments))
	for i, seg := range segments {
		runs[i] = Run{Text: seg, Bold: i%2 == 1}
	}
	return runs
}
