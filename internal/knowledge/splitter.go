package knowledge

import "strings"

// SplitterConfig controls chunking of ingested documents.
type SplitterConfig struct {
	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"200"`
}

// separators are tried in order; the splitter prefers breaking on larger
// structural boundaries before falling back to characters.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter breaks text into overlapping chunks along natural boundaries.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

// NewSplitter builds a Splitter; zero or negative settings fall back to the
// defaults (1000/200).
func NewSplitter(cfg SplitterConfig) *Splitter {
	size := cfg.ChunkSize
	if size <= 0 {
		size = 1000
	}
	overlap := cfg.ChunkOverlap
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Splitter{chunkSize: size, chunkOverlap: overlap}
}

// Split recursively partitions text into chunks of at most chunkSize runes
// with chunkOverlap runes of carry-over between consecutive chunks.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	pieces := s.split(text, 0)

	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Splitter) split(text string, sepIdx int) []string {
	if len([]rune(text)) <= s.chunkSize {
		return []string{text}
	}
	if sepIdx >= len(separators) {
		return s.splitRunes(text)
	}

	sep := separators[sepIdx]
	if sep == "" {
		return s.splitRunes(text)
	}

	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		return s.split(text, sepIdx+1)
	}

	var chunks []string
	var current strings.Builder
	flush := func() {
		if current.Len() == 0 {
			return
		}
		piece := current.String()
		if len([]rune(piece)) > s.chunkSize {
			chunks = append(chunks, s.split(piece, sepIdx+1)...)
		} else {
			chunks = append(chunks, piece)
		}
		// Seed the next chunk with the tail of this one for continuity.
		tail := overlapTail(piece, s.chunkOverlap)
		current.Reset()
		current.WriteString(tail)
	}

	for i, part := range parts {
		candidate := part
		if i < len(parts)-1 {
			candidate += sep
		}
		if current.Len() > 0 && len([]rune(current.String()+candidate)) > s.chunkSize {
			flush()
		}
		current.WriteString(candidate)
	}
	if strings.TrimSpace(current.String()) != "" {
		piece := current.String()
		if len([]rune(piece)) > s.chunkSize {
			chunks = append(chunks, s.split(piece, sepIdx+1)...)
		} else {
			chunks = append(chunks, piece)
		}
	}
	return chunks
}

// splitRunes is the last-resort fixed-window splitter.
func (s *Splitter) splitRunes(text string) []string {
	runes := []rune(text)
	step := s.chunkSize - s.chunkOverlap
	if step <= 0 {
		step = s.chunkSize
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func overlapTail(text string, overlap int) string {
	if overlap <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= overlap {
		return text
	}
	return string(runes[len(runes)-overlap:])
}
