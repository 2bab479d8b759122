package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/docqa/backend/internal/errs"
)

// PDFService extracts PDF text by calling a sidecar HTTP service that
// runs pypdf. Extraction quality tracks the Python library; this layer
// only moves bytes and pages.
type PDFService struct {
	baseURL string
	client  *http.Client
}

func NewPDFService(baseURL string, timeout time.Duration) *PDFService {
	if baseURL == "" {
		baseURL = "http://localhost:8081"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &PDFService{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type extractResponse struct {
	Pages []string `json:"pages"`
	Error string   `json:"error,omitempty"`
}

// ExtractPages posts the PDF bytes and returns one string per page.
// Pages with no extractable text come back empty; the page count is
// still the document's real page count.
func (s *PDFService) ExtractPages(ctx context.Context, name string, data []byte) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/extract", bytes.NewReader(data))
	if err != nil {
		return nil, &errs.ExtractionError{Document: name, Err: err}
	}
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &errs.ExtractionError{Document: name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.ExtractionError{Document: name, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &errs.ExtractionError{
			Document: name,
			Err:      fmt.Errorf("extraction service returned %d", resp.StatusCode),
		}
	}

	var result extractResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &errs.ExtractionError{Document: name, Err: err}
	}
	if result.Error != "" {
		return nil, &errs.ExtractionError{Document: name, Err: fmt.Errorf("%s", result.Error)}
	}

	return result.Pages, nil
}

// Healthy reports whether the sidecar is reachable.
func (s *PDFService) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
