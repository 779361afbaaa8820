// Package httpjson is the shared REST plumbing of the public price sources:
// one GET, status mapping, optional schema validation and gjson access.
package httpjson

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

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"pricewatch/internal/logger"
	"pricewatch/internal/pkg/text"
	"pricewatch/internal/market"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 8 << 20
	userAgent      = "pricewatch/1.0"
)

// Schema is a compiled JSON schema for one upstream response shape.
type Schema struct {
	name     string
	compiled *jsonschema.Schema
}

// MustCompile compiles a schema literal and panics on error. It is meant
// for package-level vars.
func MustCompile(name, src string) *Schema {
	s, err := Compile(name, src)
	if err != nil {
		panic(err)
	}
	return s
}

func Compile(name, src string) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name+".json", strings.NewReader(src)); err != nil {
		return nil, err
	}
	compiled, err := compiler.Compile(name + ".json")
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, compiled: compiled}, nil
}

func (s *Schema) validate(body []byte) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	return s.compiled.Validate(doc)
}

// Request describes one GET against the client's base URL.
type Request struct {
	Op     string
	Market string
	Path   string
	Query  url.Values
	Schema *Schema
}

type Client struct {
	source  string
	baseURL string
	http    *http.Client
}

func New(source, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		source:  source,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// Get performs the request. Transport failures and non-2xx statuses become
// *market.FetchError; undecodable or schema-violating bodies become
// *market.MalformedResponseError.
func (c *Client) Get(ctx context.Context, req Request) (gjson.Result, error) {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return gjson.Result{}, c.fetchErr(req, 0, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return gjson.Result{}, c.fetchErr(req, 0, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return gjson.Result{}, c.fetchErr(req, resp.StatusCode, err)
	}
	logger.Debugf("[%s] GET %s -> %d (%d bytes, %s)", c.source, req.Path, resp.StatusCode, len(body), time.Since(start).Round(time.Millisecond))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gjson.Result{}, c.fetchErr(req, resp.StatusCode, fmt.Errorf("unexpected status %s: %s", resp.Status, text.Snippet(string(body), 160)))
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, c.Malformed(req.Op, "invalid json", nil)
	}
	if req.Schema != nil {
		if err := req.Schema.validate(body); err != nil {
			return gjson.Result{}, c.Malformed(req.Op, "schema "+req.Schema.name, err)
		}
	}
	return gjson.ParseBytes(body), nil
}

func (c *Client) fetchErr(req Request, status int, err error) error {
	return &market.FetchError{Source: c.source, Op: req.Op, Market: req.Market, Status: status, Err: err}
}

// Malformed builds a MalformedResponseError attributed to this client's source.
func (c *Client) Malformed(op, reason string, err error) error {
	return &market.MalformedResponseError{Source: c.source, Op: op, Reason: reason, Err: err}
}

// Price reads a positive price that upstreams encode either as a JSON
// number or a numeric string.
func Price(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number, gjson.String:
		v := r.Float()
		if r.Type == gjson.String && strings.TrimSpace(r.Str) == "" {
			return 0, false
		}
		return v, v > 0
	default:
		return 0, false
	}
}
