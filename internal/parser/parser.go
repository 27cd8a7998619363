// Package parser implements the Parser Registry (C1): a map from file
// extension to a pure, versioned text extractor producing (page, text)
// segments for the Chunker.
package parser

import (
	"context"
	"strings"

	"github.com/jbovet/docwell/internal/docmodel"
)

// Segment is the Go form of the spec's (page, text) tuple: one unit of
// extracted text together with the page it came from (0 if the format
// has no concept of pages).
type Segment struct {
	Page int
	Text string
	// Heading, when non-empty, is the nearest section title the parser
	// found above this segment. The Chunker copies it onto Chunk.Title.
	Heading string
}

// Parser extracts text from a single document format. Implementations
// are pure with respect to the input bytes: identical file content
// always yields identical segments.
type Parser interface {
	// Parse extracts ordered segments from the file at path.
	Parse(ctx context.Context, path string) ([]Segment, error)
	// Version is this parser's current version. Bumping it forces
	// re-indexing of every file with a registered extension.
	Version() int
}

// Versions is the compile-time ParserVersion table, kept in sync
// with each Parser's Version().
var Versions = docmodel.ParserVersions{
	"txt":  1,
	"md":   1,
	"pdf":  1,
	"docx": 1,
	"xlsx": 1,
	"xls":  1,
	"doc":  1,
	"ppt":  1,
}

// Registry maps a lowercase extension (without the leading dot) to
// the Parser that handles it. The zero value is not usable; use New.
type Registry struct {
	parsers map[string]Parser
}

// New builds a Registry with the default set of parsers wired in.
func New() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	text := &TextParser{}
	r.Register("txt", text)
	r.Register("md", text)
	r.Register("pdf", &PDFParser{})
	r.Register("docx", &DOCXParser{})
	xlsx := &XLSXParser{}
	r.Register("xlsx", xlsx)
	r.Register("xls", xlsx)
	legacy := &LegacyParser{}
	r.Register("doc", legacy)
	r.Register("ppt", legacy)
	return r
}

// Register adds or replaces the parser for an extension.
func (r *Registry) Register(ext string, p Parser) {
	r.parsers[strings.ToLower(ext)] = p
}

// Get returns the parser registered for ext, and whether one exists.
// An unsupported extension returns (nil, false).
func (r *Registry) Get(ext string) (Parser, bool) {
	p, ok := r.parsers[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return p, ok
}

// Version returns the current ParserVersion for ext, or (0, false) if
// the extension is unsupported.
func (r *Registry) Version(ext string) (int, bool) {
	p, ok := r.Get(ext)
	if !ok {
		return 0, false
	}
	return p.Version(), true
}
