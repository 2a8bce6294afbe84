package remotesync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPFiles — файловое API: GET/PUT {base}/files/{name} с Bearer-токеном.
type HTTPFiles struct {
	base   string
	auth   Auth
	client *http.Client
}

func NewHTTPFiles(baseURL string, auth Auth) *HTTPFiles {
	if auth == nil {
		auth = NoAuth{}
	}
	return &HTTPFiles{
		base:   strings.TrimRight(baseURL, "/"),
		auth:   auth,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (h *HTTPFiles) do(ctx context.Context, method, name string, body []byte) (int, []byte, error) {
	token, ok := h.auth.Token()
	if !ok {
		return 0, nil, ErrNotSignedIn
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.base+"/files/"+url.PathEscape(name), rd)
	if err != nil {
		return 0, nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return resp.StatusCode, nil, fmt.Errorf("%s %s: %w", method, name, ErrAuthExpired)
	case resp.StatusCode == http.StatusNotFound:
		return resp.StatusCode, nil, nil
	case resp.StatusCode/100 != 2:
		return resp.StatusCode, nil, fmt.Errorf("%s %s: http %d: %s", method, name, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return resp.StatusCode, data, nil
}

func (h *HTTPFiles) LoadRemoteFile(ctx context.Context, name string) (json.RawMessage, error) {
	code, data, err := h.do(ctx, http.MethodGet, name, nil)
	if err != nil {
		return nil, err
	}
	if code == http.StatusNotFound || len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return json.RawMessage(data), nil
}

func (h *HTTPFiles) SaveRemoteFile(ctx context.Context, name string, payload json.RawMessage) error {
	code, _, err := h.do(ctx, http.MethodPut, name, payload)
	if err != nil {
		return err
	}
	if code == http.StatusNotFound {
		return fmt.Errorf("PUT %s: http %d", name, code)
	}
	return nil
}
