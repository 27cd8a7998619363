package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"io"
	"strings"

	"github.com/jbovet/docwell/internal/xerrors"
)

// DOCXParser extracts paragraph text from word/document.xml inside a
// DOCX package. DOCX has no native page concept (pagination is a
// rendering-time property), so every segment reports page 0.
type DOCXParser struct{}

func (p *DOCXParser) Version() int { return 1 }

// docxParagraph models the subset of WordprocessingML we care about:
// a <w:p> paragraph containing a run of <w:t> text nodes, optionally
// styled as a heading via <w:pStyle w:val="HeadingN"/>.
type docxParagraph struct {
	XMLName xml.Name `xml:"p"`
	Style   struct {
		Val string `xml:"val,attr"`
	} `xml:"pPr>pStyle"`
	Runs []struct {
		Text string `xml:"t"`
	} `xml:"r"`
}

type docxBody struct {
	Paragraphs []docxParagraph `xml:"body>p"`
}

func (p *DOCXParser) Parse(ctx context.Context, path string) ([]Segment, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, xerrors.ParseErr(path, err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, xerrors.ParseErr(path, xerrors.New(xerrors.ErrCodeParse, "word/document.xml not found", nil))
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, xerrors.ParseErr(path, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, xerrors.ParseErr(path, err)
	}

	var body docxBody
	if err := xml.Unmarshal(raw, &body); err != nil {
		// Corrupt document: return no segments rather than failing
		// the whole file.
		return nil, nil
	}

	var buf strings.Builder
	var heading string
	for _, para := range body.Paragraphs {
		var text strings.Builder
		for _, run := range para.Runs {
			text.WriteString(run.Text)
		}
		line := strings.TrimSpace(text.String())
		if line == "" {
			continue
		}
		if strings.HasPrefix(para.Style.Val, "Heading") || para.Style.Val == "Title" {
			heading = line
		}
		buf.WriteString(line)
		buf.WriteString("\n")
	}

	content := strings.TrimSpace(buf.String())
	if content == "" {
		return nil, nil
	}
	return []Segment{{Page: 0, Text: content, Heading: heading}}, nil
}
