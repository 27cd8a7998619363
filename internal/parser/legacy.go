package parser

import (
	"context"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/richardlehane/mscfb"

	"github.com/jbovet/docwell/internal/xerrors"
)

// LegacyParser handles the pre-XML binary Office formats (.doc, .ppt)
// by walking the OLE2/CFB container and pulling readable runs of text
// out of the stream that typically holds it ("WordDocument" for .doc,
// "PowerPoint Document" for .ppt). This is best-effort: these formats
// interleave text with binary layout records, so the result is a
// coarse text dump rather than a structured extraction.
type LegacyParser struct{}

func (p *LegacyParser) Version() int { return 1 }

func (p *LegacyParser) Parse(ctx context.Context, path string) ([]Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.ParseErr(path, err)
	}
	defer f.Close()

	doc, err := mscfb.New(f)
	if err != nil {
		return nil, xerrors.ParseErr(path, err)
	}

	var buf strings.Builder
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		name := strings.ToLower(entry.Name)
		if !strings.Contains(name, "worddocument") && !strings.Contains(name, "powerpoint") {
			continue
		}
		data := make([]byte, entry.Size)
		if _, rerr := io.ReadFull(entry, data); rerr != nil && rerr != io.ErrUnexpectedEOF {
			continue
		}
		buf.WriteString(extractReadableRuns(data))
		buf.WriteString("\n")
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		return nil, nil
	}
	return []Segment{{Page: 0, Text: text}}, nil
}

// extractReadableRuns decodes data as UTF-16LE byte pairs and keeps
// runs of at least 4 consecutive printable characters below U+2500,
// discarding the binary layout records these formats interleave with
// the prose. Single-byte ASCII text is not recognised as a run.
func extractReadableRuns(data []byte) string {
	var out strings.Builder
	var run []rune
	flush := func() {
		if len(run) >= 4 {
			out.WriteString(string(run))
			out.WriteByte('\n')
		}
		run = run[:0]
	}
	for i := 0; i+1 < len(data); i += 2 {
		r := rune(data[i]) | rune(data[i+1])<<8
		if r > 0 && r < 0x2500 && (unicode.IsPrint(r) || r == '\n') {
			run = append(run, r)
		} else {
			flush()
		}
	}
	flush()
	return out.String()
}
