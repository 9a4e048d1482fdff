package supastore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// rest is a minimal PostgREST client for the two tables this store uses.
type rest struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type apiError struct {
	StatusCode int
	Message    string
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("supabase error: %s", e.Message)
	}
	return fmt.Sprintf("supabase error: status %d", e.StatusCode)
}

func (c *rest) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
}

func (c *rest) do(ctx context.Context, method, table string, params url.Values, body any, out any) error {
	reqURL := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, table)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal data: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		json.Unmarshal(data, &errResp)
		msg := errResp.Message
		if msg == "" {
			msg = errResp.Error
		}
		return &apiError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func eq(column, value string) url.Values {
	return url.Values{column: {"eq." + value}}
}

func newestFirst() url.Values {
	return url.Values{"select": {"*"}, "order": {"created_at.desc"}}
}

// wsURL turns the project URL into its Realtime websocket endpoint.
func wsURL(base, apiKey string) string {
	u := base
	switch {
	case strings.HasPrefix(u, "https"):
		u = "wss" + strings.TrimPrefix(u, "https")
	case strings.HasPrefix(u, "http"):
		u = "ws" + strings.TrimPrefix(u, "http")
	}
	return u + "/realtime/v1/websocket?apikey=" + url.QueryEscape(apiKey) + "&vsn=1.0.0"
}
