// Package api is the client for the events REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"feid-go/internal/feid"
	"feid-go/internal/model"
	"feid-go/internal/tables"
)

// maxErrorBody caps how much of a failed response is kept in an APIError.
const maxErrorBody = 4096

// APIError is returned for non-2xx responses.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api returned %d: %s", e.Status, e.Message)
}

// Client talks to the events API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewClient creates a client for the API rooted at baseURL.
// A nil httpClient gets a default client with the given timeout.
func NewClient(baseURL string, timeout time.Duration, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing api base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api base url must be http or https: %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: u, httpClient: httpClient}, nil
}

func (c *Client) endpoint(p string, query url.Values) string {
	u := *c.baseURL
	u.Path = path.Join(u.Path, p)
	u.RawQuery = query.Encode()
	return u.String()
}

// do sends the request and decodes a JSON response into out (if non-nil).
// Numbers are decoded as json.Number so integer ids keep their precision.
func (c *Client) do(ctx context.Context, method, p string, query url.Values, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(p, query), reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", p, err)
	}
	return nil
}

func readError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Status: resp.StatusCode}

	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && (body.Message != "" || body.Error != "") {
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

type tableResponse struct {
	Columns   []model.Column                             `json:"columns"`
	Data      [][]any                                    `json:"data"`
	Changelog map[string]map[string][]changelogEntryWire `json:"changelog"`
}

type changelogEntryWire struct {
	Time    json.Number `json:"time"`
	Author  string      `json:"author"`
	Old     any         `json:"old"`
	New     any         `json:"new"`
	Special string      `json:"special"`
}

// FetchTable retrieves the columns and rows of an entity. Time cells and
// changelog timestamps arrive as epoch seconds.
func (c *Client) FetchTable(ctx context.Context, entity string, changelog bool) (*feid.TableData, error) {
	query := url.Values{}
	query.Set("entity", entity)
	query.Set("changelog", strconv.FormatBool(changelog))

	var resp tableResponse
	if err := c.do(ctx, http.MethodGet, "events", query, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Columns) == 0 {
		return nil, fmt.Errorf("fetching %s: response has no columns", entity)
	}

	data := &feid.TableData{Columns: resp.Columns, Rows: make([]model.Row, 0, len(resp.Data))}
	for i, raw := range resp.Data {
		if len(raw) != len(resp.Columns) {
			return nil, fmt.Errorf("fetching %s: row %d has %d values for %d columns", entity, i, len(raw), len(resp.Columns))
		}
		row := make(model.Row, len(raw))
		for j, v := range raw {
			typed, err := model.DecodeValue(resp.Columns[j], v)
			if err != nil {
				return nil, fmt.Errorf("fetching %s: row %d: %w", entity, i, err)
			}
			row[j] = typed
		}
		data.Rows = append(data.Rows, row)
	}

	if resp.Changelog != nil {
		cl, err := decodeChangelog(resp.Changelog)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", entity, err)
		}
		data.Changelog = cl
	}
	return data, nil
}

func decodeChangelog(wire map[string]map[string][]changelogEntryWire) (model.Changelog, error) {
	cl := make(model.Changelog, len(wire))
	for idText, columns := range wire {
		id, err := strconv.ParseInt(idText, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("changelog row id %q: %w", idText, err)
		}
		entries := make(map[string][]model.ChangelogEntry, len(columns))
		for column, list := range columns {
			for _, e := range list {
				secs, err := e.Time.Float64()
				if err != nil {
					return nil, fmt.Errorf("changelog time for %d.%s: %w", id, column, err)
				}
				entries[column] = append(entries[column], model.ChangelogEntry{
					Time:    time.Unix(int64(secs), 0).UTC(),
					Author:  e.Author,
					Old:     plainJSON(e.Old),
					New:     plainJSON(e.New),
					Special: e.Special,
				})
			}
		}
		cl[id] = entries
	}
	return cl, nil
}

// plainJSON turns a json.Number back into int64 or float64.
func plainJSON(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, _ := n.Float64()
	return f
}

// FetchSamples lists every sample visible to the user.
func (c *Client) FetchSamples(ctx context.Context) ([]model.Sample, error) {
	var resp struct {
		Samples []model.Sample `json:"samples"`
	}
	if err := c.do(ctx, http.MethodGet, "events/samples", nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Samples == nil {
		resp.Samples = []model.Sample{}
	}
	return resp.Samples, nil
}

// CreateSample creates an empty sample with the given name.
func (c *Client) CreateSample(ctx context.Context, name string) (model.Sample, error) {
	var created model.Sample
	if err := c.do(ctx, http.MethodPost, "events/samples/create", nil, map[string]string{"name": name}, &created); err != nil {
		return model.Sample{}, err
	}
	return created, nil
}

// UpdateSample replaces the stored sample with s.
func (c *Client) UpdateSample(ctx context.Context, s model.Sample) error {
	return c.do(ctx, http.MethodPost, "events/samples/update", nil, s, nil)
}

// RemoveSample deletes a sample.
func (c *Client) RemoveSample(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, "events/samples/remove", nil, map[string]int64{"id": id}, nil)
}

type pendingWire struct {
	Changes []changeWire `json:"changes"`
	Created [][]any      `json:"created"`
	Deleted []int64      `json:"deleted"`
}

type changeWire struct {
	ID     int64  `json:"id"`
	Column string `json:"column"`
	Value  any    `json:"value"`
}

// CommitChanges submits the pending state of several tables in one request.
func (c *Client) CommitChanges(ctx context.Context, entities map[string]tables.Pending) error {
	wire := make(map[string]pendingWire, len(entities))
	for name, p := range entities {
		w := pendingWire{
			Changes: make([]changeWire, len(p.Changes)),
			Created: make([][]any, len(p.Created)),
			Deleted: p.Deleted,
		}
		if w.Deleted == nil {
			w.Deleted = []int64{}
		}
		for i, ch := range p.Changes {
			w.Changes[i] = changeWire{ID: ch.ID, Column: ch.Column, Value: model.EncodeValue(ch.Value)}
		}
		for i, row := range p.Created {
			cells := make([]any, len(row))
			for j, v := range row {
				cells[j] = model.EncodeValue(v)
			}
			w.Created[i] = cells
		}
		wire[name] = w
	}
	return c.do(ctx, http.MethodPost, "events/changes", nil, map[string]any{"entities": wire}, nil)
}

// Compile-time check that Client implements feid.API
var _ feid.API = (*Client)(nil)
