package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoparser "github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
)

var (
	// ErrUnsupportedType is returned for file extensions the service does not read.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrEmptyContent is returned when a file holds no extractable text.
	ErrEmptyContent = errors.New("no text content found in file")
)

var allowedExtensions = map[string]struct{}{
	".txt":  {},
	".md":   {},
	".pdf":  {},
	".docx": {},
}

// AllowedExtensions lists the accepted upload types for client messages.
const AllowedExtensions = ".pdf, .docx, .txt, .md"

// Service turns uploaded profile files into plain text.
type Service struct {
	ext *einoparser.ExtParser
}

// New builds the extension-routed parser.
func New(ctx context.Context) (*Service, error) {
	pdfParser, err := pdf.NewPDFParser(ctx, &pdf.Config{})
	if err != nil {
		return nil, fmt.Errorf("init pdf parser: %w", err)
	}

	ext, err := einoparser.NewExtParser(ctx, &einoparser.ExtParserConfig{
		Parsers: map[string]einoparser.Parser{
			".pdf":  pdfParser,
			".docx": &DocxParser{},
		},
		FallbackParser: einoparser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init ext parser: %w", err)
	}
	return &Service{ext: ext}, nil
}

// Allowed reports whether filename has a supported extension.
func Allowed(filename string) bool {
	_, ok := allowedExtensions[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Parse extracts the text of the file named filename.
func (s *Service) Parse(ctx context.Context, filename string, r io.Reader) (string, error) {
	if !Allowed(filename) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, filepath.Ext(filename))
	}

	docs, err := s.ext.Parse(ctx, r, einoparser.WithURI(strings.ToLower(filename)))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", filename, err)
	}

	text := strings.TrimSpace(joinDocuments(docs))
	if text == "" {
		return "", ErrEmptyContent
	}
	return text, nil
}

func joinDocuments(docs []*schema.Document) string {
	var buf bytes.Buffer
	for i, doc := range docs {
		if doc == nil {
			continue
		}
		if i > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(doc.Content)
	}
	return buf.String()
}
