package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPSender posts transfers to {BaseURL}/api/v1/transfers with the
// idempotency key in the Idempotency-Key header.
type HTTPSender struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

type transferResponse struct {
	TxHash string `json:"tx_hash"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

func (s *HTTPSender) Send(ctx context.Context, t Transfer) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if base == "" {
		return "", errors.New("payout base url is empty")
	}
	body, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", t.IdempotencyKey)
	if key := strings.TrimSpace(s.APIKey); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return "", fmt.Errorf("%w: http %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("payout http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var parsed transferResponse
	if err := json.Unmarshal(b, &parsed); err != nil {
		return "", err
	}
	if strings.TrimSpace(parsed.TxHash) == "" {
		return "", fmt.Errorf("payout response missing tx_hash (status=%s error=%s)", parsed.Status, parsed.Error)
	}
	return strings.TrimSpace(parsed.TxHash), nil
}

func (s *HTTPSender) httpClient() *http.Client {
	if s.HTTP != nil {
		return s.HTTP
	}
	return &http.Client{Timeout: 15 * time.Second}
}
