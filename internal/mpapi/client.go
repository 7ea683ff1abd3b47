// Package mpapi is a client for the Materials Project REST API.
package mpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/matsift/internal/record"
)

// ProbeMaterialID is fetched to check a key: a small, always-present structure (Si).
const ProbeMaterialID = "mp-149"

// Client talks to one REST endpoint with one API key.
type Client struct {
	Endpoint string
	Key      string
	HTTP     *http.Client
	Logger   *zap.Logger
}

// New returns a Client for endpoint using key. No timeout is set: a query is
// a one-shot batch call and the caller waits for it.
func New(endpoint, key string) *Client {
	return &Client{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Key:      key,
		HTTP:     http.DefaultClient,
	}
}

// envelope is the wrapper every REST v2 response uses.
type envelope struct {
	ValidResponse bool            `json:"valid_response"`
	Response      json.RawMessage `json:"response"`
	Error         string          `json:"error,omitempty"`
}

// Query returns every material matching criteria, projected onto fields.
// With chunkSize > 0 the matching material ids are fetched first and the
// projection is then requested chunkSize ids at a time.
func (c *Client) Query(ctx context.Context, criteria map[string]any, fields []string, chunkSize int) (record.ResultSet, error) {
	if chunkSize <= 0 {
		var rs record.ResultSet
		if err := c.query(ctx, criteria, fields, &rs); err != nil {
			return nil, err
		}
		return rs, nil
	}

	var ids []struct {
		MaterialID string `json:"material_id"`
	}
	if err := c.query(ctx, criteria, []string{record.FieldMaterialID}, &ids); err != nil {
		return nil, err
	}
	c.logger().Debug("matched materials", zap.Int("count", len(ids)), zap.Int("chunk_size", chunkSize))

	rs := make(record.ResultSet, 0, len(ids))
	for start := 0; start < len(ids); start += chunkSize {
		end := min(start+chunkSize, len(ids))
		chunk := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			chunk = append(chunk, id.MaterialID)
		}

		chunkCriteria := make(map[string]any, len(criteria)+1)
		for k, v := range criteria {
			chunkCriteria[k] = v
		}
		chunkCriteria[record.FieldMaterialID] = map[string]any{"$in": chunk}

		var part record.ResultSet
		if err := c.query(ctx, chunkCriteria, fields, &part); err != nil {
			return nil, err
		}
		rs = append(rs, part...)
	}
	return rs, nil
}

// ProbeConnectivity fetches a known structure with key and reports whether the
// service accepted it.
func (c *Client) ProbeConnectivity(ctx context.Context, key string) error {
	u := c.Endpoint + "/materials/" + url.PathEscape(ProbeMaterialID) + "/vasp/structure"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", key)

	var out json.RawMessage
	return c.do(req, &out)
}

func (c *Client) query(ctx context.Context, criteria map[string]any, fields []string, out any) error {
	criteriaJSON, err := json.Marshal(criteria)
	if err != nil {
		return fmt.Errorf("encode criteria: %w", err)
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode properties: %w", err)
	}

	form := url.Values{}
	form.Set("criteria", string(criteriaJSON))
	form.Set("properties", string(fieldsJSON))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/query", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("x-api-key", c.Key)

	return c.do(req, out)
}

// do sends req and decodes the envelope's response field into out.
func (c *Client) do(req *http.Request, out any) error {
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", req.URL.Path, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode/100 != 2 {
		if decodeErr == nil && env.Error != "" {
			return fmt.Errorf("%s %s: %s: %s", req.Method, req.URL.Path, resp.Status, env.Error)
		}
		return fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, resp.Status)
	}
	if decodeErr != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, decodeErr)
	}
	if !env.ValidResponse {
		msg := env.Error
		if msg == "" {
			msg = "invalid response"
		}
		return fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, msg)
	}
	if len(env.Response) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Response, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
