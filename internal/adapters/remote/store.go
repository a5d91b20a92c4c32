// Package remote is a DocumentStore that forwards writes to a docgate
// server. A client side collection on top of it pre-checks mutations
// locally; the server decides.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/atvirokodosprendimai/docgate/internal/adapters/httpapi"
	"github.com/atvirokodosprendimai/docgate/internal/core/docops"
	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/ports"
)

type Store struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ ports.DocumentStore = (*Store)(nil)

type Option func(*Store)

// WithHTTPClient replaces the default client, which times out after 10s.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.client = c }
}

func New(baseURL, apiKey string, opts ...Option) *Store {
	s := &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) NewID() string { return uuid.NewString() }

func (s *Store) Insert(ctx context.Context, collection string, doc domain.Document) (string, error) {
	var out httpapi.InsertResponse
	body := httpapi.InsertBody{Doc: extended(doc)}
	if err := s.do(ctx, http.MethodPost, s.path(collection, "documents"), body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (s *Store) Update(ctx context.Context, collection string, selector, modifier domain.Document, opts ports.UpdateOptions) (ports.UpdateResult, error) {
	var out httpapi.UpdateResponse
	body := httpapi.UpdateBody{
		Selector: extended(selector),
		Modifier: extended(modifier),
		Options:  &httpapi.Options{Upsert: opts.Upsert, Multi: opts.Multi},
	}
	if err := s.do(ctx, http.MethodPatch, s.path(collection, "documents"), body, &out); err != nil {
		return ports.UpdateResult{}, err
	}
	return ports.UpdateResult{Matched: out.Affected, InsertedID: out.InsertedID}, nil
}

func (s *Store) Remove(ctx context.Context, collection string, selector domain.Document) (int64, error) {
	var out httpapi.UpdateResponse
	body := httpapi.RemoveBody{Selector: extended(selector)}
	if err := s.do(ctx, http.MethodPost, s.path(collection, "documents:remove"), body, &out); err != nil {
		return 0, err
	}
	return out.Affected, nil
}

func (s *Store) Find(ctx context.Context, collection string, selector domain.Document, limit int) ([]domain.Document, error) {
	var out httpapi.ListResponse
	body := httpapi.FindBody{Selector: extended(selector), Limit: limit}
	if err := s.do(ctx, http.MethodPost, s.path(collection, "documents:find"), body, &out); err != nil {
		return nil, err
	}
	docs := make([]domain.Document, 0, len(out.Items))
	for _, item := range out.Items {
		docops.FromExtended(item)
		docs = append(docs, item)
	}
	return docs, nil
}

// EnsureUniqueIndex is a no-op: the server owns its indexes.
func (s *Store) EnsureUniqueIndex(context.Context, string, string, string) error {
	return nil
}

func (s *Store) path(collection, suffix string) string {
	return s.baseURL + "/v1/collections/" + url.PathEscape(collection) + "/" + suffix
}

func extended(d domain.Document) map[string]any {
	if d == nil {
		return nil
	}
	return docops.ToExtended(map[string]any(d)).(map[string]any)
}

// do sends body and decodes a 2xx reply into out. Error replies come back
// as *domain.BoundaryError.
func (s *Store) do(ctx context.Context, method, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.ErrStorage.Wrap(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return domain.ErrStorage.Wrap(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return boundaryError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return domain.ErrStorage.New("decode response: %v", err)
	}
	return nil
}

func boundaryError(status int, data []byte) *domain.BoundaryError {
	var be domain.BoundaryError
	if err := json.Unmarshal(data, &be); err != nil || be.Reason == "" {
		return &domain.BoundaryError{Status: status, Reason: http.StatusText(status), Details: strings.TrimSpace(string(data))}
	}
	if be.Status == 0 {
		be.Status = status
	}
	return &be
}
