// Package chunker splits extracted text into bounded-size retrieval units.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultSize is the target chunk length in characters used when callers
// pass a non-positive size.
const DefaultSize = 1000

// Split greedily packs whitespace-delimited tokens into chunks of at most size
// characters. A chunk is flushed as soon as it reaches size, or before a token
// that would push it past size. A single token longer than size becomes its
// own chunk. Chunks never overlap and sentence boundaries are ignored.
func Split(text string, size int) []string {
	if size <= 0 {
		size = DefaultSize
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}

	var (
		chunks []string
		buf    []string
		length int
	)
	flush := func() {
		if len(buf) == 0 {
			return
		}
		chunks = append(chunks, strings.Join(buf, " "))
		buf = buf[:0]
		length = 0
	}

	for _, tok := range tokens {
		n := utf8.RuneCountInString(tok)
		if len(buf) > 0 && length+1+n > size {
			flush()
		}
		if len(buf) > 0 {
			length++
		}
		buf = append(buf, tok)
		length += n
		if length >= size {
			flush()
		}
	}
	flush()
	return chunks
}
