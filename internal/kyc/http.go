package kyc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"virtual-wallet/backend/internal/account/domain"
)

const defaultTimeout = 5 * time.Second

// HTTPVerifier calls a provider that accepts {"phone": ...} and answers {"status": "pending|approved|rejected"}.
type HTTPVerifier struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// NewHTTPVerifier returns a verifier posting to baseURL with apiKey as bearer credential.
func NewHTTPVerifier(baseURL, apiKey string, timeout time.Duration) *HTTPVerifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPVerifier{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type verifyRequest struct {
	Phone string `json:"phone"`
}

type verifyResponse struct {
	Status string `json:"status"`
}

func (c *HTTPVerifier) Verify(ctx context.Context, phone string) (domain.VerificationStatus, error) {
	raw, err := json.Marshal(verifyRequest{Phone: phone})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("kyc: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("kyc: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	var out verifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		return "", fmt.Errorf("kyc: decode response: %w", err)
	}
	status, ok := domain.ParseVerificationStatus(out.Status)
	if !ok {
		return "", fmt.Errorf("kyc: unknown status %q", out.Status)
	}
	return status, nil
}
