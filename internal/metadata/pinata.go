package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"campusid/internal/platform/config"
	"campusid/pkg/platform/sentinel"
)

// PinataClient pins content through a Pinata-compatible API and reads it
// back through an IPFS gateway.
type PinataClient struct {
	apiBaseURL string
	gatewayURL string
	jwt        string
	httpClient *http.Client
}

func NewPinataClient(cfg config.PinningConfig) *PinataClient {
	return &PinataClient{
		apiBaseURL: cfg.APIBaseURL,
		gatewayURL: cfg.GatewayURL,
		jwt:        cfg.JWT,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

func (c *PinataClient) PutJSON(ctx context.Context, v any) (string, error) {
	payload, err := json.Marshal(map[string]any{"pinataContent": v})
	if err != nil {
		return "", fmt.Errorf("marshal pin payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBaseURL+"/pinning/pinJSONToIPFS", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.jwt)

	return c.doPin(req)
}

func (c *PinataClient) PutBytes(ctx context.Context, data []byte, name string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBaseURL+"/pinning/pinFileToIPFS", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.jwt)

	return c.doPin(req)
}

func (c *PinataClient) GetJSON(ctx context.Context, contentHash string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.gatewayURL+"/ipfs/"+contentHash, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: gateway fetch: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return sentinel.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: gateway returned %d", sentinel.ErrUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode pinned content %s: %w", contentHash, err)
	}
	return nil
}

func (c *PinataClient) doPin(req *http.Request) (string, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: pin request: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: pin API returned %d: %s", sentinel.ErrUnavailable, resp.StatusCode, string(body))
	}

	var pinned pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&pinned); err != nil {
		return "", fmt.Errorf("decode pin response: %w", err)
	}
	if pinned.IpfsHash == "" {
		return "", fmt.Errorf("pin response missing content hash")
	}
	return pinned.IpfsHash, nil
}
