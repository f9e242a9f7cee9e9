// Package textextract extracts plain text from the document formats accepted by ingestion.
package textextract

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// SupportedExtensions lists the lower-cased file extensions ingestion picks up.
var SupportedExtensions = []string{".pdf", ".md", ".markdown", ".txt"}

// IsSupported reports whether path has a supported extension.
func IsSupported(path string) bool {
	return slices.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(path)))
}

// DetectDocumentType returns a short document type for path.
func DetectDocumentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "pdf"
	case ".md", ".markdown":
		return "markdown"
	default:
		return "text"
	}
}

// ExtractFile returns the plain text of the file at path, chosen by extension.
// Unknown extensions are read as UTF-8 text.
func ExtractFile(path string) (string, error) {
	if DetectDocumentType(path) == "pdf" {
		return ExtractPDF(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", path)
	}
	if DetectDocumentType(path) == "markdown" {
		return ExtractMarkdown(data), nil
	}
	return strings.ToValidUTF8(string(data), ""), nil
}

// ExtractPDF concatenates the text of every page.
func ExtractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to open pdf %s", path)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", errors.Wrapf(err, "failed to read pdf text %s", path)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", errors.Wrapf(err, "failed to read pdf buffer %s", path)
	}
	return strings.ToValidUTF8(buf.String(), ""), nil
}

// ExtractMarkdown renders markdown source as plain text, one block per line.
// Markup, link targets and raw HTML are dropped; code blocks are kept verbatim.
func ExtractMarkdown(src []byte) string {
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				sb.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					sb.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				sb.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				sb.Write(node.URL(src))
			}
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					sb.Write(seg.Value(src))
				}
			}
		case *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		}
		if !entering && n.Type() == ast.TypeBlock {
			sb.WriteByte('\n')
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
