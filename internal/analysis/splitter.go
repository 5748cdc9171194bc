package analysis

import "strings"

// Splitter breaks document text into overlapping chunks small enough to
// analyze in one call. It walks a separator hierarchy, preferring to break on
// paragraph boundaries, then lines, then words, then anywhere.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// NewSplitter returns a splitter with the engine's standard chunking:
// 500-character chunks with 250 characters of overlap.
func NewSplitter() *Splitter {
	return &Splitter{
		ChunkSize:    500,
		ChunkOverlap: 250,
		Separators:   []string{"\n\n", "\n", " ", ""},
	}
}

// Split divides text into chunks of at most ChunkSize characters, adjacent
// chunks sharing up to ChunkOverlap characters of context.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.splitText(text, s.Separators)
}

func (s *Splitter) splitText(text string, separators []string) []string {
	separator := ""
	remaining := []string{}
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			remaining = separators[i+1:]
			break
		}
	}

	var splits []string
	if separator == "" {
		splits = splitEvery(text, s.ChunkSize)
	} else {
		splits = strings.Split(text, separator)
	}

	var chunks []string
	var small []string
	for _, piece := range splits {
		if len(piece) < s.ChunkSize {
			small = append(small, piece)
			continue
		}
		if len(small) > 0 {
			chunks = append(chunks, s.merge(small, separator)...)
			small = nil
		}
		if len(remaining) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.splitText(piece, remaining)...)
		}
	}
	if len(small) > 0 {
		chunks = append(chunks, s.merge(small, separator)...)
	}
	return chunks
}

// merge packs small splits back into chunks no larger than ChunkSize, sliding
// a window so consecutive chunks overlap by roughly ChunkOverlap characters.
func (s *Splitter) merge(splits []string, separator string) []string {
	sepLen := len(separator)
	var chunks []string
	var window []string
	total := 0

	joinLen := func(pieces int, chars int) int {
		if pieces <= 1 {
			return chars
		}
		return chars + sepLen*(pieces-1)
	}

	flush := func() {
		chunk := strings.TrimSpace(strings.Join(window, separator))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	for _, piece := range splits {
		if len(window) > 0 && joinLen(len(window)+1, total+len(piece)) > s.ChunkSize {
			flush()
			// Drop leading pieces until the retained context fits the overlap.
			for len(window) > 0 && joinLen(len(window), total) > s.ChunkOverlap {
				total -= len(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += len(piece)
	}
	if len(window) > 0 {
		flush()
	}
	return chunks
}

func splitEvery(text string, size int) []string {
	if size < 1 {
		size = 1
	}
	var out []string
	runes := []rune(text)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
