package parser

import (
	"context"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jbovet/docwell/internal/xerrors"
)

// XLSXParser renders each worksheet as a pipe-delimited text table,
// one segment per sheet. Spreadsheets have no page concept here
// either; page is 0 and the sheet name becomes the heading.
type XLSXParser struct{}

func (p *XLSXParser) Version() int { return 1 }

func (p *XLSXParser) Parse(ctx context.Context, path string) ([]Segment, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, xerrors.ParseErr(path, err)
	}
	defer f.Close()

	var segments []Segment
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}
		var content strings.Builder
		for _, row := range rows {
			content.WriteString("| ")
			content.WriteString(strings.Join(row, " | "))
			content.WriteString(" |\n")
		}
		segments = append(segments, Segment{Page: 0, Text: content.String(), Heading: sheet})
	}

	return segments, nil
}
