package analysis

import (
	"strings"
	"unicode/utf8"
)

// ParagraphSeparator delimits paragraphs in a paper body.
const ParagraphSeparator = "\n\n"

// ChunkText partitions text into contiguous chunks of at most maxSize characters,
// cutting only on paragraph boundaries. A paragraph longer than maxSize forms
// a chunk of its own. strings.Join(chunks, ParagraphSeparator) == text.
func ChunkText(text string, maxSize int) []string {
	total := utf8.RuneCountInString(text)
	if maxSize <= 0 || total <= maxSize {
		return []string{text}
	}

	paragraphs := strings.Split(text, ParagraphSeparator)
	chunks := make([]string, 0, total/maxSize+1)
	sepSize := utf8.RuneCountInString(ParagraphSeparator)

	var current strings.Builder
	size := 0
	started := false
	for _, p := range paragraphs {
		pSize := utf8.RuneCountInString(p)
		if !started {
			current.WriteString(p)
			size = pSize
			started = true
			continue
		}
		if size+sepSize+pSize > maxSize {
			chunks = append(chunks, current.String())
			current.Reset()
			current.WriteString(p)
			size = pSize
			continue
		}
		current.WriteString(ParagraphSeparator)
		current.WriteString(p)
		size += sepSize + pSize
	}
	chunks = append(chunks, current.String())
	return chunks
}

var (
	introMarkers      = []string{"introduction", "background"}
	conclusionMarkers = []string{"conclusion", "discussion", "summary"}
)

// findIntroduction returns the first chunk mentioning an introduction marker.
func findIntroduction(chunks []string) (string, bool) {
	for _, c := range chunks {
		if containsAny(c, introMarkers) {
			return c, true
		}
	}
	return "", false
}

// findConclusion returns the last chunk mentioning a conclusion marker.
func findConclusion(chunks []string) (string, bool) {
	for i := len(chunks) - 1; i >= 0; i-- {
		if containsAny(chunks[i], conclusionMarkers) {
			return chunks[i], true
		}
	}
	return "", false
}

func containsAny(text string, markers []string) bool {
	lower := strings.ToLower(text)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
