// Package extract turns uploaded files and fetched URLs into ordered text
// blocks. Each supported format has its own extractor; all of them prefer
// partial output over total failure, so a damaged page degrades to an empty
// block instead of aborting the document.
package extract

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"context"

	"github.com/docqa/docqa-go/internal/rag"
)

// Format identifies a supported document format.
type Format string

const (
	FormatPDF     Format = "pdf"
	FormatDOCX    Format = "docx"
	FormatPPTX    Format = "pptx"
	FormatXLSX    Format = "xlsx"
	FormatTXT     Format = "txt"
	FormatUnknown Format = ""
)

// Source is one document to extract: either uploaded bytes or a URL.
type Source struct {
	// ID is the stable identifier used in chunk IDs and answer sources.
	// For uploads this is the filename, for URLs the URL itself.
	ID string

	// Name is the original filename, used for format detection.
	Name string

	// URL is set for remote sources fetched at load time.
	URL string

	// Data holds uploaded file bytes. Nil for URL sources.
	Data []byte
}

// Block is one ordered unit of extracted text.
type Block struct {
	// Text is the extracted content. May be empty for pages that could
	// not be read.
	Text string

	// Page is the 1-based page or slide number, 0 for unpaged formats.
	Page int
}

// Loader fetches and extracts sources.
type Loader struct {
	httpClient *http.Client
	ocr        *OCRClient
	userAgent  string

	// maxFetchBytes caps remote document size. Oversized responses fail
	// the fetch rather than exhausting memory.
	maxFetchBytes int64
}

// Option configures a Loader.
type Option func(*Loader)

// WithOCR attaches an OCR collaborator used for PDF pages that yield no
// machine-readable text.
func WithOCR(c *OCRClient) Option {
	return func(l *Loader) { l.ocr = c }
}

// WithHTTPClient overrides the HTTP client used for URL sources.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.httpClient = c }
}

// NewLoader constructs a Loader with a 30s fetch timeout and a 100MB
// remote size cap.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		userAgent:     "docqa-go/1.0 (document ingestion)",
		maxFetchBytes: 100 << 20,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DetectFormat determines the document format from the filename extension,
// falling back to the Content-Type header for extensionless URLs.
func DetectFormat(name, contentType string) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	case ".pptx":
		return FormatPPTX
	case ".xlsx":
		return FormatXLSX
	case ".txt", ".md", ".text":
		return FormatTXT
	}

	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			switch mt {
			case "application/pdf":
				return FormatPDF
			case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
				return FormatDOCX
			case "application/vnd.openxmlformats-officedocument.presentationml.presentation":
				return FormatPPTX
			case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
				return FormatXLSX
			case "text/plain", "text/html", "text/markdown":
				return FormatTXT
			}
		}
	}
	return FormatUnknown
}

// Load resolves the source to bytes (fetching URLs as needed), detects its
// format, and extracts ordered text blocks. Unknown formats return
// rag.ErrUnsupportedFormat; unreachable URLs return rag.ErrFetchFailure.
func (l *Loader) Load(ctx context.Context, src Source) ([]Block, error) {
	data := src.Data
	contentType := ""
	name := src.Name

	if len(data) == 0 && src.URL != "" {
		var err error
		data, contentType, err = l.fetch(ctx, src.URL)
		if err != nil {
			return nil, err
		}
		if name == "" {
			if u, perr := url.Parse(src.URL); perr == nil {
				name = path.Base(u.Path)
			}
		}
	}

	format := DetectFormat(name, contentType)
	switch format {
	case FormatPDF:
		return l.extractPDF(ctx, data)
	case FormatDOCX:
		return extractDOCX(data)
	case FormatPPTX:
		return extractPPTX(data)
	case FormatXLSX:
		return extractXLSX(data)
	case FormatTXT:
		return []Block{{Text: string(data)}}, nil
	default:
		return nil, fmt.Errorf("extract: %q (content type %q): %w", name, contentType, rag.ErrUnsupportedFormat)
	}
}

// fetch retrieves a URL source, returning its body and Content-Type.
// All failure modes wrap rag.ErrFetchFailure so callers can classify them.
func (l *Loader) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("extract: invalid URL %q: %w", rawURL, rag.ErrFetchFailure)
	}
	req.Header.Set("User-Agent", l.userAgent)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("extract: fetching %s: %v: %w", rawURL, err, rag.ErrFetchFailure)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("extract: fetching %s: status %d: %w", rawURL, resp.StatusCode, rag.ErrFetchFailure)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxFetchBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("extract: reading %s: %v: %w", rawURL, err, rag.ErrFetchFailure)
	}
	if int64(len(body)) > l.maxFetchBytes {
		return nil, "", fmt.Errorf("extract: %s exceeds %d byte limit: %w", rawURL, l.maxFetchBytes, rag.ErrFetchFailure)
	}

	return body, resp.Header.Get("Content-Type"), nil
}
