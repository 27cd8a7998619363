package parser

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/jbovet/docwell/internal/xerrors"
)

// PDFParser extracts page-ordered text from PDF documents. Headings
// are detected heuristically so Chunk.Title can be populated; no
// image extraction is performed since images have no place in this
// spec's Chunk model.
type PDFParser struct{}

func (p *PDFParser) Version() int { return 1 }

func (p *PDFParser) Parse(ctx context.Context, path string) ([]Segment, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, xerrors.ParseErr(path, err)
	}
	defer f.Close()

	var segments []Segment
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		select {
		case <-ctx.Done():
			return segments, ctx.Err()
		default:
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := extractPageTextOrdered(page)
		if err != nil {
			continue // corrupt page: skip it, keep extracting the rest of the document
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		heading := firstHeading(text)
		segments = append(segments, Segment{Page: i, Text: text, Heading: heading})
	}

	return segments, nil
}

// extractPageTextOrdered groups a page's text elements into visual
// lines by Y proximity, then sorts lines top-to-bottom, since the
// library's default reading order follows content-stream order which
// can place headings after the body text they label.
func extractPageTextOrdered(page pdf.Page) (string, error) {
	content := page.Content()
	if len(content.Text) == 0 {
		return page.GetPlainText(nil)
	}

	const lineTolerance = 3.0
	type visualLine struct {
		y   float64
		buf strings.Builder
	}

	var lines []*visualLine
	var cur *visualLine
	for _, t := range content.Text {
		if cur == nil || math.Abs(t.Y-cur.y) > lineTolerance {
			lines = append(lines, &visualLine{y: t.Y})
			cur = lines[len(lines)-1]
		}
		cur.buf.WriteString(t.S)
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].y > lines[j].y })

	var parts []string
	for _, l := range lines {
		if s := strings.TrimSpace(l.buf.String()); s != "" {
			parts = append(parts, s)
		}
	}
	result := strings.Join(parts, "\n")
	if strings.TrimSpace(result) == "" {
		return page.GetPlainText(nil)
	}
	return result, nil
}

// firstHeading returns the first non-empty line of text as a heading
// guess when it is all upper-case and 3 to 99 bytes long, and "" otherwise.
// Later lines are not examined, and numbered lines are not recognised.
func firstHeading(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) < 100 && line == strings.ToUpper(line) && len(line) > 2 {
			return line
		}
		return ""
	}
	return ""
}
