package parser

import (
	"context"
	"os"

	"github.com/jbovet/docwell/internal/encoding"
	"github.com/jbovet/docwell/internal/xerrors"
)

// TextParser handles plain text and Markdown files. Pages do not apply
// to this format, so every segment reports page 0.
type TextParser struct{}

func (p *TextParser) Version() int { return 1 }

func (p *TextParser) Parse(ctx context.Context, path string) ([]Segment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.ParseErr(path, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	text, err := encoding.Decode(raw)
	if err != nil {
		return nil, xerrors.EncodingErr(path, err)
	}

	return []Segment{{Page: 0, Text: text}}, nil
}
