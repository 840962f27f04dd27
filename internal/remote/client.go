// Package remote is a minimal HTTP client for a document-hosting API (gist-style):
// create, read and update one named JSON file inside a private document.
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

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/and161185/logistics-keeper/internal/errs"
)

const (
	// FileName is the fixed logical file inside every document.
	FileName = "logistics_backup.json"

	DefaultBaseURL    = "https://api.github.com"
	DefaultCollection = "documents"

	description = "Logistics App Data Backup"
	apiVersion  = "2022-11-28"
)

// Client is a stateless transport; it never retries.
type Client struct {
	base       string
	collection string
	http       *http.Client
	timeout    time.Duration
	log        *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithCollection sets the path segment documents live under ("gists" for GitHub).
func WithCollection(c string) Option {
	return func(cl *Client) { cl.collection = strings.Trim(c, "/") }
}

// WithHTTPClient replaces the default client. A caller-supplied client is used as is;
// WithTimeout does not modify it.
func WithHTTPClient(h *http.Client) Option { return func(cl *Client) { cl.http = h } }

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option { return func(cl *Client) { cl.timeout = d } }

// WithLogger enables request metadata logging.
func WithLogger(l *zap.Logger) Option { return func(cl *Client) { cl.log = l } }

// New constructs a client for baseURL (DefaultBaseURL when empty).
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		base:       strings.TrimRight(baseURL, "/"),
		collection: DefaultCollection,
		timeout:    30 * time.Second,
		log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = &http.Client{
			Timeout:   c.timeout,
			Transport: &loggingTransport{log: c.log.Named("remote")},
		}
	}
	return c
}

type file struct {
	Content string `json:"content"`
}

type createBody struct {
	Description string          `json:"description"`
	Visibility  string          `json:"visibility"`
	Files       map[string]file `json:"files"`
}

type updateBody struct {
	Files map[string]file `json:"files"`
}

type documentResp struct {
	ID    string          `json:"id"`
	Files map[string]file `json:"files"`
}

// CreateDocument stores content as a new private document and returns its id.
func (c *Client) CreateDocument(ctx context.Context, token string, content any) (string, error) {
	files, err := fileSet(content)
	if err != nil {
		return "", err
	}
	body := createBody{Description: description, Visibility: "private", Files: files}

	var out documentResp
	if err := c.do(ctx, http.MethodPost, c.docURL(""), token, body, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("create document: empty id in response")
	}
	return out.ID, nil
}

// UpdateDocument replaces only the named file of an existing document.
func (c *Client) UpdateDocument(ctx context.Context, token, id string, content any) error {
	files, err := fileSet(content)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPatch, c.docURL(id), token, updateBody{Files: files}, nil)
}

// ReadDocument fetches the named file and returns its content as JSON.
func (c *Client) ReadDocument(ctx context.Context, token, id string) (json.RawMessage, error) {
	var out documentResp
	if err := c.do(ctx, http.MethodGet, c.docURL(id), token, nil, &out); err != nil {
		return nil, err
	}
	f, ok := out.Files[FileName]
	if !ok {
		return nil, &errs.DocumentFormatError{File: FileName}
	}
	if !json.Valid([]byte(f.Content)) {
		return nil, &errs.BackupFormatError{Reason: "document content is not JSON"}
	}
	return json.RawMessage(f.Content), nil
}

func fileSet(content any) (map[string]file, error) {
	raw, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	return map[string]file{FileName: {Content: string(raw)}}, nil
}

func (c *Client) docURL(id string) string {
	u := c.base + "/" + c.collection
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	return u
}

func (c *Client) do(ctx context.Context, method, u, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

// apiError extracts the "message" field from the error body, falling back to status text.
func apiError(resp *http.Response) error {
	var payload struct {
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &payload)
	msg := payload.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &errs.RemoteAPIError{Status: resp.StatusCode, Message: msg}
}
