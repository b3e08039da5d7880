package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	einoparser "github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
	"github.com/fumiama/go-docx"
)

// DocxParser reads the paragraph and table text of a Word document.
type DocxParser struct{}

var _ einoparser.Parser = (*DocxParser)(nil)

func (p *DocxParser) Parse(ctx context.Context, reader io.Reader, opts ...einoparser.Option) ([]*schema.Document, error) {
	options := einoparser.GetCommonOptions(&einoparser.Options{}, opts...)

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("docx: read: %w", err)
	}

	doc, err := docx.Parse(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("docx: open: %w", err)
	}

	meta := make(map[string]any, len(options.ExtraMeta)+1)
	for k, v := range options.ExtraMeta {
		meta[k] = v
	}
	meta["_source"] = options.URI

	return []*schema.Document{{Content: bodyText(doc), MetaData: meta}}, nil
}

// bodyText renders one line per paragraph; tables come out as markdown.
func bodyText(doc *docx.Docx) string {
	var out strings.Builder
	for _, item := range doc.Document.Body.Items {
		switch v := item.(type) {
		case *docx.Paragraph:
			out.WriteString(v.String())
			out.WriteByte('\n')
		case *docx.Table:
			out.WriteString(v.String())
			out.WriteByte('\n')
		}
	}
	return out.String()
}
