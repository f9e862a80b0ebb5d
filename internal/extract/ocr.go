package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"
)

// OCRClient talks to an external OCR service over HTTP. It is a best-effort
// collaborator: callers treat any error as "no text available" for the
// affected page.
type OCRClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewOCRClient constructs a client for the OCR service at baseURL.
// OCR is slow on large scans, so the client allows up to two minutes per page.
func NewOCRClient(baseURL string) *OCRClient {
	return &OCRClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// ocrResponse is the OCR service's recognition payload.
type ocrResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Error   string `json:"error,omitempty"`
}

// RecognizePage submits the PDF and a 1-based page number for recognition
// and returns the recognised text.
func (c *OCRClient) RecognizePage(ctx context.Context, pdfData []byte, page int) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", "document.pdf")
	if err != nil {
		return "", fmt.Errorf("ocr: building request: %w", err)
	}
	if _, err := part.Write(pdfData); err != nil {
		return "", fmt.Errorf("ocr: building request: %w", err)
	}
	if err := w.WriteField("page", strconv.Itoa(page)); err != nil {
		return "", fmt.Errorf("ocr: building request: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("ocr: building request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", &body)
	if err != nil {
		return "", fmt.Errorf("ocr: creating request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr: service returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ocr: reading response: %w", err)
	}

	var parsed ocrResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("ocr: decoding response: %w", err)
	}
	if !parsed.Success {
		return "", fmt.Errorf("ocr: recognition failed: %s", parsed.Error)
	}
	return parsed.Text, nil
}

// Ping reports whether the OCR service is reachable and healthy.
func (c *OCRClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("ocr: creating health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ocr: health request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ocr: unhealthy, status %d", resp.StatusCode)
	}
	return nil
}
