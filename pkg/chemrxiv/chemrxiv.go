// Package chemrxiv provides a client for the chemRxiv preprint repository,
// which is hosted on the figshare v2 API.
package chemrxiv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// DefaultBase is the figshare v2 API root.
	DefaultBase = "https://api.figshare.com/v2"

	// DOIRootURL is the resolver prefix used to build canonical preprint URLs.
	DOIRootURL = "https://doi.org/"

	// institutionID is figshare's institution number for chemRxiv.
	institutionID = 259

	// pageSize is the number of items requested per listing page.
	pageSize = 100
)

// httpClient is a shared HTTP client with a timeout for all requests.
var httpClient = &http.Client{Timeout: 15 * time.Second}

// RemoteError is returned when the API answers with a non-2xx status.
type RemoteError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("chemrxiv: request to %s failed: %s", e.URL, e.Status)
}

// PreprintSummary is the minimal listing record. Only the identifier is
// needed downstream; the title is kept for logging.
type PreprintSummary struct {
	ID    json.Number `json:"id"`
	Title string      `json:"title"`
}

// Author is one entry of a preprint's ordered author list.
type Author struct {
	FullName string `json:"full_name"`
}

// AccountAuthor is the record returned by the account author endpoint.
type AccountAuthor struct {
	ID       json.Number `json:"id"`
	FullName string      `json:"full_name"`
	OrcidID  string      `json:"orcid_id"`
}

// Preprint is the full record returned by the detail endpoint.
type Preprint struct {
	ID            json.Number     `json:"id"`
	Title         string          `json:"title"`
	DOI           string          `json:"doi"`
	Thumb         string          `json:"thumb"`
	Authors       []Author        `json:"authors"`
	URLPublicHTML string          `json:"url_public_html"`
	CustomFields  json.RawMessage `json:"custom_fields"`
}

// CanonicalURL builds the DOI-resolver URL for the preprint.
func (p *Preprint) CanonicalURL() string {
	return DOIRootURL + p.DOI
}

// CustomField returns the value of a named custom field, or "" if absent.
// custom_fields comes down as a list of {name, value} pairs.
func (p *Preprint) CustomField(name string) string {
	return gjson.GetBytes(p.CustomFields, fmt.Sprintf(`#(name==%q).value`, name)).String()
}

// CustomFieldMap returns all custom fields as a name to value map.
func (p *Preprint) CustomFieldMap() map[string]string {
	fields := make(map[string]string)
	gjson.ParseBytes(p.CustomFields).ForEach(func(_, field gjson.Result) bool {
		fields[field.Get("name").String()] = field.Get("value").String()
		return true
	})
	return fields
}

// Client talks to the figshare v2 API using token authentication.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// NewClient creates a client and checks access to the API by fetching the
// account record. A rejected token surfaces here, before any listing work.
func NewClient(token string) (*Client, error) {
	return NewClientWithBase(token, DefaultBase)
}

// NewClientWithBase is NewClient against an alternate API root.
func NewClientWithBase(token, base string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("chemrxiv: API token must be provided")
	}
	c := &Client{base: base, token: token, http: httpClient}
	if err := c.get(context.Background(), "account", nil, nil); err != nil {
		return nil, fmt.Errorf("chemrxiv: account check failed: %w", err)
	}
	return c, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values, body io.Reader) (*http.Request, error) {
	u := c.base + "/" + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "token "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request, v any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RemoteError{URL: req.URL.String(), StatusCode: resp.StatusCode, Status: resp.Status}
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.String(), err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, v any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}
	return c.do(req, v)
}

func (c *Client) post(ctx context.Context, path string, payload, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request payload: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, bytes.NewReader(body))
	if err != nil {
		return err
	}
	return c.do(req, v)
}

// ListAll returns a lazy iterator over every chemRxiv preprint summary.
// Pages are fetched on demand as the iterator is drained; the sequence is
// finite and not restartable.
func (c *Client) ListAll() *Pager {
	params := url.Values{}
	params.Set("institution", strconv.Itoa(institutionID))
	return &Pager{c: c, path: "articles", params: params}
}

// Pager walks a paginated listing endpoint with an internal offset cursor.
type Pager struct {
	c      *Client
	path   string
	params url.Values

	offset int
	buf    []PreprintSummary
	pos    int
	done   bool
}

// Next returns the next summary, fetching the next page only once the current
// one is exhausted. It returns (nil, nil) when the sequence is exhausted,
// which happens on the first empty page. A non-list (singleton) response is
// yielded as a single summary and ends the sequence.
func (p *Pager) Next(ctx context.Context) (*PreprintSummary, error) {
	for {
		if p.pos < len(p.buf) {
			s := &p.buf[p.pos]
			p.pos++
			return s, nil
		}
		if p.done {
			return nil, nil
		}

		params := url.Values{}
		for k, vs := range p.params {
			params[k] = vs
		}
		params.Set("limit", strconv.Itoa(pageSize))
		params.Set("offset", strconv.Itoa(p.offset))

		var raw json.RawMessage
		if err := p.c.get(ctx, p.path, params, &raw); err != nil {
			return nil, fmt.Errorf("failed to fetch listing page at offset %d: %w", p.offset, err)
		}

		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			p.done = true
			return nil, nil
		}
		if trimmed[0] != '[' {
			// Single item, not a list: yield it and stop.
			p.done = true
			var single PreprintSummary
			if err := json.Unmarshal(trimmed, &single); err != nil {
				return nil, fmt.Errorf("failed to parse singleton listing response: %w", err)
			}
			return &single, nil
		}

		var page []PreprintSummary
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, fmt.Errorf("failed to parse listing page at offset %d: %w", p.offset, err)
		}
		if len(page) == 0 {
			p.done = true
			return nil, nil
		}

		p.buf = page
		p.pos = 0
		p.offset += pageSize
	}
}

// Preprint fetches the full record for one identifier. The listing endpoint
// omits author data, so detail is fetched only for items actually announced.
func (c *Client) Preprint(ctx context.Context, id string) (*Preprint, error) {
	var pre Preprint
	if err := c.get(ctx, "articles/"+id, nil, &pre); err != nil {
		return nil, fmt.Errorf("failed to fetch preprint %s: %w", id, err)
	}
	return &pre, nil
}

// Author fetches an account author record by identifier.
func (c *Client) Author(ctx context.Context, id string) (*AccountAuthor, error) {
	var author AccountAuthor
	if err := c.get(ctx, "account/authors/"+id, nil, &author); err != nil {
		return nil, fmt.Errorf("failed to fetch author %s: %w", id, err)
	}
	return &author, nil
}

// SearchPreprints runs a preprint search scoped to chemRxiv.
func (c *Client) SearchPreprints(ctx context.Context, criteria map[string]any) ([]Preprint, error) {
	payload := map[string]any{"institution": institutionID}
	for k, v := range criteria {
		payload[k] = v
	}
	var results []Preprint
	if err := c.post(ctx, "articles/search", payload, &results); err != nil {
		return nil, fmt.Errorf("failed to search preprints: %w", err)
	}
	return results, nil
}

// SearchAuthors runs an account author search.
func (c *Client) SearchAuthors(ctx context.Context, criteria map[string]any) ([]AccountAuthor, error) {
	var results []AccountAuthor
	if err := c.post(ctx, "account/authors/search", criteria, &results); err != nil {
		return nil, fmt.Errorf("failed to search authors: %w", err)
	}
	return results, nil
}
