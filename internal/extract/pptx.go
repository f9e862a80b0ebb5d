package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/docqa/docqa-go/internal/rag"
)

// slideFilePattern matches slide part names inside the PPTX container.
var slideFilePattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// extractPPTX reads each slide's XML and produces one block per slide, in
// slide-number order. Slide files use the DrawingML namespace, so text lives
// in a:t elements; a token walk collects them without modelling the full
// schema.
func extractPPTX(data []byte) ([]Block, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("extract: opening PPTX container: %v: %w", err, rag.ErrUnsupportedFormat)
	}

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, file := range reader.File {
		m := slideFilePattern.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slide{num: n, file: file})
	}
	if len(slides) == 0 {
		return nil, fmt.Errorf("extract: PPTX has no slides: %w", rag.ErrUnsupportedFormat)
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	blocks := make([]Block, 0, len(slides))
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return nil, fmt.Errorf("extract: opening slide %d: %v: %w", s.num, err, rag.ErrUnsupportedFormat)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("extract: reading slide %d: %v: %w", s.num, err, rag.ErrUnsupportedFormat)
		}

		text, err := slideText(raw)
		if err != nil {
			return nil, fmt.Errorf("extract: parsing slide %d: %v: %w", s.num, err, rag.ErrUnsupportedFormat)
		}
		blocks = append(blocks, Block{Text: text, Page: s.num})
	}

	return blocks, nil
}

// slideText collects the character data of every a:t element in a slide.
func slideText(raw []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))

	var b strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
				b.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
