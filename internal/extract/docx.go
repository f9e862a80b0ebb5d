package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/docqa/docqa-go/internal/rag"
)

// documentXML mirrors the paragraph/run/text nesting of word/document.xml.
type documentXML struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Text []docxText `xml:"t"`
}

type docxText struct {
	Content string `xml:",chardata"`
}

// extractDOCX reads word/document.xml from the DOCX zip container and joins
// paragraph text with newlines. DOCX has no page concept in the XML, so the
// whole document is a single unpaged block.
func extractDOCX(data []byte) ([]Block, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("extract: opening DOCX container: %v: %w", err, rag.ErrUnsupportedFormat)
	}

	var raw []byte
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("extract: opening word/document.xml: %v: %w", err, rag.ErrUnsupportedFormat)
		}
		raw, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("extract: reading word/document.xml: %v: %w", err, rag.ErrUnsupportedFormat)
		}
		break
	}
	if raw == nil {
		return nil, fmt.Errorf("extract: DOCX has no word/document.xml: %w", rag.ErrUnsupportedFormat)
	}

	var doc documentXML
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("extract: parsing word/document.xml: %v: %w", err, rag.ErrUnsupportedFormat)
	}

	var b strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			b.WriteString("\n")
		}
		for _, run := range para.Runs {
			for _, t := range run.Text {
				b.WriteString(t.Content)
			}
		}
	}

	return []Block{{Text: strings.TrimSpace(b.String())}}, nil
}
