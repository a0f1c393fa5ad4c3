package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ChunkerConfig bounds chunk length in runes.
type ChunkerConfig struct {
	// MinLength: shorter paragraphs are merged into a neighbour.
	MinLength int `mapstructure:"min_length"`
	// MaxLength: longer paragraphs are split at sentence boundaries.
	MaxLength int `mapstructure:"max_length"`
}

// DefaultChunkerConfig returns bounds suited to passage-level retrieval.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{MinLength: 80, MaxLength: 1000}
}

// Validate checks the bounds.
func (c ChunkerConfig) Validate() error {
	if c.MinLength < 0 || c.MaxLength <= 0 {
		return fmt.Errorf("%w: chunk lengths must be positive, got min=%d max=%d", ErrConfiguration, c.MinLength, c.MaxLength)
	}
	if c.MinLength > c.MaxLength {
		return fmt.Errorf("%w: chunk min_length %d exceeds max_length %d", ErrConfiguration, c.MinLength, c.MaxLength)
	}
	return nil
}

// Chunk is one passage cut from a corpus record.
type Chunk struct {
	Ordinal int
	Content string
	// Hash is the hex SHA-256 of Content; identical passages share it.
	Hash string
}

// Chunker splits corpus text into passages.
type Chunker interface {
	Chunk(body string) []Chunk
}

type paragraphChunker struct {
	cfg ChunkerConfig
}

// NewChunker creates a paragraph chunker.
func NewChunker(cfg ChunkerConfig) Chunker {
	return &paragraphChunker{cfg: cfg}
}

// Chunk splits on blank lines, merges short paragraphs and splits long ones.
func (c *paragraphChunker) Chunk(body string) []Chunk {
	normalized := strings.ReplaceAll(body, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	var paragraphs []string
	for _, part := range strings.Split(normalized, "\n\n") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}

	passages := splitLongParagraphs(mergeShortParagraphs(paragraphs, c.cfg.MinLength), c.cfg.MaxLength)

	chunks := make([]Chunk, 0, len(passages))
	for i, content := range passages {
		chunks = append(chunks, Chunk{Ordinal: i, Content: content, Hash: HashText(content)})
	}
	return chunks
}

// HashText returns the hex SHA-256 of s.
func HashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
