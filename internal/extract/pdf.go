package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/ledongthuc/pdf"

	"github.com/docqa/docqa-go/internal/logging"
	"github.com/docqa/docqa-go/internal/rag"
)

// extractPDF produces one block per page. Pages whose embedded text layer is
// empty (scanned pages) are handed to the OCR collaborator when one is
// configured; OCR failure degrades that page to an empty block.
func (l *Loader) extractPDF(ctx context.Context, data []byte) ([]Block, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("extract: opening PDF: %v: %w", err, rag.ErrUnsupportedFormat)
	}

	log := logging.FromContext(ctx)
	numPages := reader.NumPage()
	blocks := make([]Block, 0, numPages)

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			blocks = append(blocks, Block{Page: i})
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Warn("extract: PDF page unreadable",
				slog.Int("page", i),
				slog.Any("error", err),
			)
			text = ""
		}

		if text == "" && l.ocr != nil {
			ocrText, ocrErr := l.ocr.RecognizePage(ctx, data, i)
			if ocrErr != nil {
				log.Warn("extract: OCR failed, page degraded to empty",
					slog.Int("page", i),
					slog.Any("error", ocrErr),
				)
			} else {
				text = ocrText
			}
		}

		blocks = append(blocks, Block{Text: text, Page: i})
	}

	return blocks, nil
}
