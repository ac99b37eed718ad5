package service

import (
	"regexp"
	"strings"
)

// ChunkConfig controls chunking of page-group text.
type ChunkConfig struct {
	// MaxWords is the word budget per chunk. A single sentence longer
	// than the budget still forms its own chunk.
	MaxWords int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{MaxWords: 1000}
}

var sentenceSplitter = regexp.MustCompile(`[^.!?]*[.!?]+|[^.!?]+$`)

// ChunkText splits text into sentence-aligned chunks whose word count
// stays within cfg.MaxWords. Sentences are never split; a sentence whose
// own word count exceeds the budget becomes an oversized chunk of its
// own. ChunkText never fails: empty or non-segmentable input yields a
// single chunk, falling back to fixed-width slicing when sentence
// segmentation produces nothing usable.
func ChunkText(text string, cfg ChunkConfig) []string {
	if cfg.MaxWords <= 0 {
		cfg = DefaultChunkConfig()
	}
	if strings.TrimSpace(text) == "" {
		return []string{""}
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return sliceFixedWidth(text, cfg.MaxWords)
	}

	chunks := make([]string, 0, 4)
	var current []string
	currentWords := 0
	for _, sentence := range sentences {
		words := len(strings.Fields(sentence))
		if currentWords+words > cfg.MaxWords && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = current[:0]
			currentWords = 0
		}
		current = append(current, sentence)
		currentWords += words
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	if len(chunks) == 0 {
		return []string{""}
	}
	return chunks
}

func splitSentences(text string) []string {
	matches := sentenceSplitter.FindAllString(text, -1)
	sentences := make([]string, 0, len(matches))
	for _, m := range matches {
		if trimmed := strings.TrimSpace(m); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences
}

// sliceFixedWidth is the segmentation-failure fallback: plain
// maxWords-character windows over the raw text.
func sliceFixedWidth(text string, width int) []string {
	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/width+1)
	for start := 0; start < len(runes); start += width {
		end := start + width
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	if len(chunks) == 0 {
		return []string{""}
	}
	return chunks
}
