package record

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"medscan-registration/internal/domain/model"
	"medscan-registration/internal/domain/ports/adapter"
)

var _ adapter.RecordServiceAdapter = (*HTTPAdapter)(nil)

// HTTPAdapter submits completed registration forms to the persistence
// backend.
type HTTPAdapter struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPAdapter(baseURL, token string, timeout time.Duration) (*HTTPAdapter, error) {
	if baseURL == "" {
		return nil, errors.New("records base url empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid records base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type createResponse struct {
	RecordID string `json:"record_id"`
	Message  string `json:"message,omitempty"`
}

func (a *HTTPAdapter) CreatePersistedRecord(ctx context.Context, payload *model.RecordPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode record payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/v1/medication-records", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("create record: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// The server-reported message is what the user sees on the edit
		// screen, so keep it intact.
		return "", errors.New(serverMessage(resp))
	}

	var out createResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	return out.RecordID, nil
}

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
	return fmt.Sprintf("record service error: %s", resp.Status)
}
