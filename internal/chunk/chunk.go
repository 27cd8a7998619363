// Package chunk implements the Chunker (C3): splitting parser output
// into overlapping passages with stable character offsets.
package chunk

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/jbovet/docwell/internal/docmodel"
	"github.com/jbovet/docwell/internal/parser"
)

// Default chunk sizing parameters.
const (
	DefaultTargetTokens  = 200
	DefaultOverlapTokens = 40
	MinChunkChars        = 50
)

// Options configures the Chunker. The zero value is not usable; call
// DefaultOptions() and override individual fields.
type Options struct {
	TargetTokens  int
	OverlapTokens int
}

// DefaultOptions returns the default chunking parameters.
func DefaultOptions() Options {
	return Options{TargetTokens: DefaultTargetTokens, OverlapTokens: DefaultOverlapTokens}
}

// word is one whitespace-delimited token together with its byte
// offset in the segment's original text, so offsets survive chunking.
type word struct {
	text   string
	offset int
}

// Split turns a single parser Segment into overlapping Chunks.
// Splitting is on whitespace, character offsets are preserved
// relative to the segment's own text, and the result is deterministic
// for identical input.
func Split(path string, mtimeMS int64, fileType string, seg parser.Segment, opt Options) []docmodel.Chunk {
	words := tokenize(seg.Text)
	if len(words) == 0 {
		return nil
	}

	title := seg.Heading
	if title == "" {
		title = filepath.Base(path)
	}

	var chunks []docmodel.Chunk
	i := 0
	for i < len(words) {
		end := i + opt.TargetTokens
		if end > len(words) {
			end = len(words)
		}
		start := words[i]
		last := words[end-1]
		text := seg.Text[start.offset : last.offset+len(last.text)]

		isFinal := end >= len(words)
		if !isFinal && len(strings.TrimSpace(text)) < MinChunkChars {
			// Extend to the end rather than emit a sub-minimum chunk;
			// this only happens for very short trailing remainders.
			end = len(words)
			last = words[end-1]
			text = seg.Text[start.offset : last.offset+len(last.text)]
			isFinal = true
		}

		charOffset := utf8.RuneCountInString(seg.Text[:start.offset])
		chunks = append(chunks, docmodel.Chunk{
			ID:     docmodel.ChunkID(path, charOffset),
			Path:   path,
			MTime:  mtimeMS,
			Page:   seg.Page,
			Offset: charOffset,
			Text:   text,
			Type:   fileType,
			Title:  title,
		})

		if isFinal {
			break
		}

		next := end - opt.OverlapTokens
		if next <= i {
			next = i + 1 // always make forward progress
		}
		i = next
	}

	return chunks
}

// SplitAll chunks every segment a parser produced for a file.
func SplitAll(path string, mtimeMS int64, fileType string, segments []parser.Segment, opt Options) []docmodel.Chunk {
	var all []docmodel.Chunk
	for _, seg := range segments {
		all = append(all, Split(path, mtimeMS, fileType, seg, opt)...)
	}
	return all
}

// tokenize splits on whitespace runs, recording each token's byte
// offset in s so chunk boundaries can be mapped back to character
// offsets in the original text.
func tokenize(s string) []word {
	var words []word
	inWord := false
	start := 0
	for i, r := range s {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if isSpace {
			if inWord {
				words = append(words, word{text: s[start:i], offset: start})
				inWord = false
			}
			continue
		}
		if !inWord {
			start = i
			inWord = true
		}
	}
	if inWord {
		words = append(words, word{text: s[start:], offset: start})
	}
	return words
}
