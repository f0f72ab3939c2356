// Package chunk splits long text into bounded word-count segments.
//
// Chunks are the unit of embedding and indexing: every segment except
// possibly the last contains exactly the configured number of words, so
// index entries stay within the embedding model's useful input range.
// Splitting is purely whitespace-based — no sentence or semantic
// awareness — which keeps it deterministic and lossless.
package chunk

import "strings"

// DefaultMaxWords is the word budget per chunk used by the ingestion
// pipeline when no explicit size is configured.
const DefaultMaxWords = 400

// Split divides text into successive chunks of at most maxWords
// whitespace-delimited words. Every chunk except the last has exactly
// maxWords words; the remainder forms the final chunk. Empty or
// whitespace-only input yields no chunks. Words are never split.
//
// Joining the returned chunks with single spaces reproduces the
// original word sequence exactly.
func Split(text string, maxWords int) []string {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]string, 0, (len(words)+maxWords-1)/maxWords)
	for len(words) > maxWords {
		chunks = append(chunks, strings.Join(words[:maxWords], " "))
		words = words[maxWords:]
	}
	chunks = append(chunks, strings.Join(words, " "))

	return chunks
}
