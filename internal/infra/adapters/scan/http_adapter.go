package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"medscan-registration/internal/domain/model"
	"medscan-registration/internal/domain/ports/adapter"
)

var _ adapter.ScanServiceAdapter = (*HTTPAdapter)(nil)

// HTTPAdapter talks to the document-extraction backend: a multipart upload
// creates a job, a status endpoint reports its progress.
type HTTPAdapter struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPAdapter(baseURL, token string, timeout time.Duration) (*HTTPAdapter, error) {
	if baseURL == "" {
		return nil, errors.New("scan base url empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid scan base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type submitResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message,omitempty"`
}

func (a *HTTPAdapter) SubmitScanJob(ctx context.Context, image []byte, filename string) (string, error) {
	if len(image) == 0 {
		return "", errors.New("empty image")
	}
	if filename == "" {
		filename = "document.jpg"
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(image)); err != nil {
		return "", fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/v1/scans", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit scan: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("submit scan: %s", serverMessage(resp))
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if out.JobID == "" {
		return "", errors.New("submit scan: backend returned no job id")
	}
	return out.JobID, nil
}

func (a *HTTPAdapter) GetJobStatus(ctx context.Context, jobID string) (*model.JobStatusReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/v1/scans/%s", a.baseURL, url.PathEscape(jobID)), nil)
	if err != nil {
		return nil, err
	}
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get job status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("get job status: %s", serverMessage(resp))
	}

	var report model.JobStatusReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	if report.JobID == "" {
		report.JobID = jobID
	}
	return &report, nil
}

func (a *HTTPAdapter) authorize(req *http.Request) {
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
}

// serverMessage pulls a human-readable message out of an error response,
// falling back to the HTTP status line.
func serverMessage(resp *http.Response) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return resp.Status
}
