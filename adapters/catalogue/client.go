// Package catalogue resolves entity ids against the catalogue service's item API.
package catalogue

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/buger/jsonparser"

	provisioner "github.com/datakaveri/dx-resource-server-sub001"
)

// DefaultItemPath is the catalogue endpoint returning a single item by id.
const DefaultItemPath = "/iudx/cat/v1/item"

// maxResponseSize bounds the catalogue response read into memory.
const maxResponseSize = 4 << 20

// Client implements provisioner.CatalogueGateway over HTTP.
type Client struct {
	baseURL  string
	itemPath string
	http     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithItemPath overrides DefaultItemPath.
func WithItemPath(path string) Option {
	return func(cl *Client) {
		cl.itemPath = path
	}
}

// New creates a client for the catalogue at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		itemPath: DefaultItemPath,
		http:     &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve implements provisioner.CatalogueGateway.
func (c *Client) Resolve(ctx context.Context, entityID string) (provisioner.CatalogueItem, error) {
	endpoint := c.baseURL + c.itemPath + "?" + url.Values{"id": {entityID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return provisioner.CatalogueItem{}, provisioner.NewErrorWithCause(provisioner.ErrCodeInternal, "failed to build catalogue request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return provisioner.CatalogueItem{}, provisioner.NewErrorWithCause(provisioner.ErrCodeInternal, "catalogue request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return provisioner.CatalogueItem{}, provisioner.NewErrorWithCause(provisioner.ErrCodeInternal, "failed to read catalogue response", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return provisioner.CatalogueItem{}, provisioner.NewError(provisioner.ErrCodeNotFound,
			fmt.Sprintf("catalogue entity not found: %s", entityID))
	case resp.StatusCode >= http.StatusBadRequest:
		return provisioner.CatalogueItem{}, provisioner.NewError(provisioner.ErrCodeInternal,
			fmt.Sprintf("catalogue responded %d for %s", resp.StatusCode, entityID))
	}

	return parseItem(body, entityID)
}

// parseItem extracts the first element of "results" from a catalogue response.
func parseItem(body []byte, entityID string) (provisioner.CatalogueItem, error) {
	raw, dataType, _, err := jsonparser.Get(body, "results", "[0]")
	if dataType == jsonparser.NotExist {
		return provisioner.CatalogueItem{}, provisioner.NewError(provisioner.ErrCodeNotFound,
			fmt.Sprintf("catalogue entity not found: %s", entityID))
	}
	if err != nil || dataType != jsonparser.Object {
		return provisioner.CatalogueItem{}, provisioner.NewErrorWithCause(provisioner.ErrCodeInvalidCatalogueData,
			fmt.Sprintf("malformed catalogue response for %s", entityID), err)
	}

	item := provisioner.CatalogueItem{Raw: string(raw)}
	item.ID, _ = jsonparser.GetString(raw, "id")
	if item.ID == "" {
		item.ID = entityID
	}
	item.ResourceGroup, _ = jsonparser.GetString(raw, "resourceGroup")
	item.Provider, _ = jsonparser.GetString(raw, "provider")
	item.Name, _ = jsonparser.GetString(raw, "name")

	_, err = jsonparser.ArrayEach(raw, func(value []byte, dt jsonparser.ValueType, _ int, _ error) {
		if dt == jsonparser.String {
			item.Types = append(item.Types, string(value))
		}
	}, "type")
	if err != nil && err != jsonparser.KeyPathNotFoundError {
		if single, serr := jsonparser.GetString(raw, "type"); serr == nil {
			item.Types = []string{single}
			return item, nil
		}
		return provisioner.CatalogueItem{}, provisioner.NewErrorWithCause(provisioner.ErrCodeInvalidCatalogueData,
			fmt.Sprintf("malformed type of %s", entityID), err)
	}

	return item, nil
}

var _ provisioner.CatalogueGateway = (*Client)(nil)
