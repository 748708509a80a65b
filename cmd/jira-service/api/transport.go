package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

var emptyObject = json.RawMessage(`{}`)

// authHeader returns the Basic auth header value
func (c *Client) authHeader() string {
	credentials := fmt.Sprintf("%s:%s", c.creds.Email, c.creds.Token)
	encoded := base64.StdEncoding.EncodeToString([]byte(credentials))
	return "Basic " + encoded
}

// Do executes one authenticated request against an API-relative path and
// returns the raw JSON body. A 2xx response without a body yields {}.
// Any other status is logged and returned as a *TransportError.
func (c *Client) Do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	url := c.creds.Site + path

	var payload []byte
	var reader io.Reader
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jira %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %s response: %w", method, url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Error("jira request failed",
			zap.String("method", method),
			zap.String("url", url),
			zap.ByteString("request_body", payload),
			zap.Int("status_code", resp.StatusCode),
			zap.ByteString("response_body", respBody),
		)
		return nil, &TransportError{
			Method:     method,
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return emptyObject, nil
	}
	return json.RawMessage(respBody), nil
}

// doJSON runs Do and decodes the response into out when out is non-nil
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	raw, err := c.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
