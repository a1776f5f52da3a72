package clip

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError is a non-2xx reply from Clip.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("clip: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("clip: status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// do sends a JSON request to the versioned API and decodes the reply into out.
func (c *clip) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: json.Marshal: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	url := fmt.Sprintf("%s/%s%s", c.baseURL, apiVersion, path)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("%s: http.NewRequestWithContext: %w", op, err)
	}
	req = c.setHeaders(req, in != nil)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: hc.Do: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rbody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s: %w", op, newAPIError(resp.StatusCode, rbody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: json.Decode: %w", op, err)
	}
	return nil
}

func (c *clip) setHeaders(req *http.Request, hasBody bool) *http.Request {
	req.Header.Set("Authorization", "Bearer "+c.authToken)
	req.Header.Set("Accept", acceptHeader)
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func newAPIError(code int, body []byte) *APIError {
	e := &APIError{StatusCode: code, Body: string(body)}

	var reply struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &reply) == nil {
		e.Message = firstNonEmpty(reply.Message, reply.Error)
	}
	if e.Message == "" {
		e.Message = http.StatusText(code)
	}
	return e
}
