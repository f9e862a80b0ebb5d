package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/docqa/docqa-go/internal/rag"
)

// extractXLSX produces one block per sheet. Rows render as tab-separated
// lines so tabular structure survives into the text the embedder sees.
// Sheet blocks use the 1-based sheet index as their page number.
func extractXLSX(data []byte) ([]Block, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("extract: opening XLSX: %v: %w", err, rag.ErrUnsupportedFormat)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	blocks := make([]Block, 0, len(sheets))
	for i, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("extract: reading sheet %q: %v: %w", sheet, err, rag.ErrUnsupportedFormat)
		}

		var b strings.Builder
		b.WriteString(sheet)
		b.WriteString("\n")
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line == "" {
				continue
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		blocks = append(blocks, Block{Text: strings.TrimSpace(b.String()), Page: i + 1})
	}

	return blocks, nil
}
