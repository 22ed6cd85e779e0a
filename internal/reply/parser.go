// Package reply turns a raw model reply into the visible answer, its citations
// and the report-download signal.
//
// The markers are a textual contract with the system prompt:
//
//	References:
//	- [Name](URL): short description
//
// and the literal ReportMarker anywhere in the answer. Nothing beyond these
// exact forms is recognised.
package reply

import (
	"regexp"
	"strings"
)

const (
	// ReferencesMarker separates the answer from its reference block.
	ReferencesMarker = "References:"
	// ReportMarker asks for a downloadable report.
	ReportMarker = "download://report.docx"
)

var citationLine = regexp.MustCompile(`^- \[(.*?)\]\((.*?)\): (.*)`)

// Citation is a single parsed reference line.
type Citation struct {
	Name        string
	URL         string
	Description string
}

// Parsed is the structured form of a model reply.
type Parsed struct {
	Visible         string
	Citations       []Citation
	ReportRequested bool
}

// Parse splits raw at the first ReferencesMarker, extracts citations from the
// trailing block and strips the ReportMarker from the visible text.
func Parse(raw string) Parsed {
	out := Parsed{Visible: raw, Citations: []Citation{}}

	if before, after, found := strings.Cut(raw, ReferencesMarker); found {
		out.Visible = strings.TrimSpace(before)
		out.Citations = parseCitations(after)
	}

	if strings.Contains(out.Visible, ReportMarker) {
		out.Visible = strings.TrimSpace(strings.ReplaceAll(out.Visible, ReportMarker, ""))
		out.ReportRequested = true
	}
	return out
}

func parseCitations(block string) []Citation {
	block = strings.TrimSpace(block)
	citations := []Citation{}
	if fields := strings.Fields(block); len(fields) == 0 || strings.EqualFold(fields[0], "none") {
		return citations
	}

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-") {
			continue
		}
		m := citationLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		citations = append(citations, Citation{Name: m[1], URL: m[2], Description: m[3]})
	}
	return citations
}
