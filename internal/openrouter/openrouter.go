// Package openrouter fetches the OpenRouter model list and indexes it by id.
package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/tidwall/gjson"

	"github.com/laurenamos/sustainable-model-chooser/internal/httpclient"
)

// DefaultURL is the public OpenRouter models endpoint.
const DefaultURL = "https://openrouter.ai/api/v1/models"

// ErrMalformedResponse is returned when the body is not an object with a
// "data" list.
var ErrMalformedResponse = errors.New("malformed models response")

// Model is the normalized subset of a remote record the sync needs.
type Model struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// ContextLength is the raw JSON value, nil when absent or null.
	ContextLength json.RawMessage `json:"context_length"`
	// Pricing is the raw pricing object in remote key order; "{}" when
	// absent or null.
	Pricing     json.RawMessage `json:"pricing"`
	IsModerated *bool           `json:"is_moderated"`
}

// Index maps remote ids to models.
type Index map[string]*Model

// Lookup returns the model for id.
func (idx Index) Lookup(id string) (*Model, bool) {
	m, ok := idx[id]
	return m, ok
}

// IDs returns the indexed ids sorted.
func (idx Index) IDs() []string {
	ids := make([]string, 0, len(idx))
	for id := range idx {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Client fetches the model list from one endpoint.
type Client struct {
	url  string
	http *httpclient.Client
}

// New creates a Client for url. An empty url selects DefaultURL.
func New(url string, client *httpclient.Client) *Client {
	if url == "" {
		url = DefaultURL
	}
	if client == nil {
		client = httpclient.New()
	}
	return &Client{url: url, http: client}
}

// URL returns the endpoint the client reads from.
func (c *Client) URL() string { return c.url }

// FetchIndex performs the single GET and builds a fresh index.
func (c *Client) FetchIndex(ctx context.Context) (Index, error) {
	resp, err := c.http.Get(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching models: %w", err)
	}

	idx, err := ParseIndex(resp.Body)
	if err != nil {
		return nil, err
	}

	slog.Info("openrouter models fetched", "url", c.url, "models", len(idx), "revalidated", resp.Revalidated)
	return idx, nil
}

// /api/v1/models response envelope.
type modelsResponse struct {
	Data *[]json.RawMessage `json:"data"`
}

// ParseIndex parses a models response body into an Index.
func ParseIndex(body []byte) (Index, error) {
	var resp modelsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("%w: missing \"data\" list", ErrMalformedResponse)
	}

	idx := make(Index, len(*resp.Data))
	for i, raw := range *resp.Data {
		m, ok := parseModel(raw)
		if !ok {
			slog.Debug("skipping remote record without id", "position", i)
			continue
		}
		idx[m.ID] = m
	}
	return idx, nil
}

func parseModel(raw json.RawMessage) (*Model, bool) {
	rec := gjson.ParseBytes(raw)
	if !rec.IsObject() {
		return nil, false
	}

	id := rec.Get("id")
	if id.Type != gjson.String || id.Str == "" {
		return nil, false
	}

	m := &Model{
		ID:      id.Str,
		Name:    rec.Get("name").String(),
		Pricing: json.RawMessage("{}"),
	}

	if cl := rec.Get("context_length"); cl.Exists() && cl.Type != gjson.Null {
		m.ContextLength = json.RawMessage(cl.Raw)
	}

	if p := rec.Get("pricing"); p.IsObject() {
		m.Pricing = json.RawMessage(p.Raw)
	}

	switch mod := rec.Get("top_provider.is_moderated"); mod.Type {
	case gjson.True, gjson.False:
		v := mod.Bool()
		m.IsModerated = &v
	}

	return m, true
}
