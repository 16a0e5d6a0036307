package recordstore

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

const maxResponseBytes = 16 << 20

// EndpointStore talks to the department's spreadsheet web-app endpoint.
// Reads are GET ?type=<entity>; writes POST {type, action, data}.
type EndpointStore struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// EndpointOption customises an EndpointStore.
type EndpointOption func(*EndpointStore)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) EndpointOption {
	return func(s *EndpointStore) {
		if client != nil {
			s.client = client
		}
	}
}

// NewEndpointStore builds a store for the given web-app URL.
func NewEndpointStore(baseURL string, timeout time.Duration, opts ...EndpointOption) (*EndpointStore, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid endpoint url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	s := &EndpointStore{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout + 5*time.Second},
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type envelope struct {
	Type   string      `json:"type"`
	Action string      `json:"action"`
	Data   interface{} `json:"data"`
}

// writeResult covers the reply shapes the web-app uses for writes.
type writeResult struct {
	Status  string `json:"status"`
	Result  string `json:"result"`
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// List fetches every record of an entity.
func (s *EndpointStore) List(ctx context.Context, entity string) ([]json.RawMessage, error) {
	if err := validEntity(entity); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	target, err := s.listURL(entity)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}
	body, err := s.do(req)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", entity, err)
	}
	records, err := decodeList(body, entity)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", entity, err)
	}
	return records, nil
}

// Save upserts a record by id.
func (s *EndpointStore) Save(ctx context.Context, entity string, record interface{}) error {
	if err := validEntity(entity); err != nil {
		return err
	}
	raw, _, err := marshalRecord(record)
	if err != nil {
		return err
	}
	return s.write(ctx, envelope{Type: entity, Action: ActionSave, Data: raw})
}

// Delete removes a record by id.
func (s *EndpointStore) Delete(ctx context.Context, entity, id string) error {
	if err := validEntity(entity); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return ErrRecordID
	}
	return s.write(ctx, envelope{Type: entity, Action: ActionDelete, Data: map[string]string{"id": id}})
}

// Ping issues a cheap read to confirm the endpoint answers.
func (s *EndpointStore) Ping(ctx context.Context) error {
	_, err := s.List(ctx, EntityNotifications)
	return err
}

func (s *EndpointStore) write(ctx context.Context, payload envelope) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", payload.Action, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", payload.Action, err)
	}
	// The web-app only accepts simple requests; JSON travels as plain text.
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")

	reply, err := s.do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", payload.Action, payload.Type, err)
	}
	if err := checkWriteReply(reply); err != nil {
		return fmt.Errorf("%s %s: %w", payload.Action, payload.Type, err)
	}
	return nil
}

func (s *EndpointStore) do(req *http.Request) ([]byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, snippet(body))
	}
	return body, nil
}

func (s *EndpointStore) listURL(entity string) (string, error) {
	parsed, err := url.Parse(s.baseURL)
	if err != nil {
		return "", err
	}
	q := parsed.Query()
	q.Set("type", entity)
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

func decodeList(body []byte, entity string) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return []json.RawMessage{}, nil
	}

	var records []json.RawMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
		return records, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("unexpected response: %s", snippet(trimmed))
	}
	if msg, ok := wrapped["error"]; ok && string(msg) != "null" && string(msg) != `""` {
		return nil, fmt.Errorf("endpoint error: %s", snippet(msg))
	}
	for _, key := range []string{"data", entity, "records"} {
		if inner, ok := wrapped[key]; ok {
			if err := json.Unmarshal(inner, &records); err != nil {
				return nil, fmt.Errorf("decode %s: %w", key, err)
			}
			return records, nil
		}
	}
	return nil, fmt.Errorf("unexpected response: %s", snippet(trimmed))
}

// checkWriteReply accepts empty and plain-text replies, and rejects JSON
// replies that report failure.
func checkWriteReply(body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var result writeResult
	if err := json.Unmarshal(trimmed, &result); err != nil {
		return nil
	}
	failed := strings.EqualFold(result.Status, "error") ||
		strings.EqualFold(result.Result, "error") ||
		(result.Success != nil && !*result.Success) ||
		result.Error != ""
	if !failed {
		return nil
	}
	msg := result.Error
	if msg == "" {
		msg = result.Message
	}
	if msg == "" {
		msg = "write rejected"
	}
	return fmt.Errorf("endpoint rejected write: %s", msg)
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
