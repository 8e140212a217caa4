package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"
)

// APIVault talks to a locally reachable vault REST endpoint with bearer
// auth. Probe runs once at startup; a failed request marks the
// transport down so the caller can lazily re-probe on the next write.
type APIVault struct {
	baseURL string
	token   string
	client  *http.Client
	healthy atomic.Bool
}

func NewAPIVault(baseURL, token string, timeout time.Duration) *APIVault {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &APIVault{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// Probe checks endpoint availability with a short deadline and records
// the result.
func (v *APIVault) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, v.baseURL+"/vault/", nil)
	if err != nil {
		v.healthy.Store(false)
		return false
	}
	v.authorize(req)

	resp, err := v.client.Do(req)
	if err != nil {
		v.healthy.Store(false)
		return false
	}
	defer resp.Body.Close()

	ok := resp.StatusCode == http.StatusOK
	v.healthy.Store(ok)
	return ok
}

func (v *APIVault) Healthy() bool { return v.healthy.Load() }

func (v *APIVault) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+v.token)
	req.Header.Set("Content-Type", "application/json")
}

func (v *APIVault) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, v.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	v.authorize(req)

	resp, err := v.client.Do(req)
	if err != nil {
		v.healthy.Store(false)
		return fmt.Errorf("%w: %v", ErrVaultUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("vault API status %d: %s", resp.StatusCode, msg)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (v *APIVault) ListNotes(ctx context.Context) ([]NoteInfo, error) {
	var notes []NoteInfo
	if err := v.do(ctx, http.MethodGet, "/vault/notes", nil, &notes); err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

func (v *APIVault) GetNote(ctx context.Context, path string) (*VaultNote, error) {
	var payload struct {
		Content  string    `json:"content"`
		Modified time.Time `json:"modified"`
	}
	endpoint := "/vault/note?path=" + url.QueryEscape(path)
	if err := v.do(ctx, http.MethodGet, endpoint, nil, &payload); err != nil {
		return nil, err
	}
	return parseNote(path, payload.Content, payload.Modified)
}

type notePayload struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (v *APIVault) CreateNote(ctx context.Context, path, content string) error {
	if err := v.do(ctx, http.MethodPost, "/vault/create", notePayload{Path: path, Content: content}, nil); err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	return nil
}

func (v *APIVault) UpdateNote(ctx context.Context, path, content string) error {
	if err := v.do(ctx, http.MethodPost, "/vault/update", notePayload{Path: path, Content: content}, nil); err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	return nil
}

func (v *APIVault) SearchNotes(ctx context.Context, query string) ([]SearchMatch, error) {
	var matches []SearchMatch
	endpoint := "/vault/search?query=" + url.QueryEscape(query)
	if err := v.do(ctx, http.MethodGet, endpoint, nil, &matches); err != nil {
		return nil, fmt.Errorf("search notes: %w", err)
	}
	return matches, nil
}
