// Package jupyter talks to a Jupyter server: the REST API for kernels,
// kernelspecs and contents, and the websocket channels endpoint of a running
// kernel.
package jupyter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"pkt.systems/pslog"

	"pkt.systems/cellpad/internal/version"
	"pkt.systems/cellpad/schema"
)

const defaultHTTPTimeout = 30 * time.Second

// APIError is a non-2xx response from the server.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %d", e.Method, e.Path, e.Status)
}

// Unwrap maps 404 responses to schema.ErrNotFound.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return schema.ErrNotFound
	}
	return nil
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// BaseURL is the server root, e.g. http://localhost:8888.
	BaseURL string
	// Token is sent as "Authorization: token <Token>" when set.
	Token      string
	HTTPClient *http.Client
}

// Client is a Jupyter server REST client.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient validates opts and returns a client.
func NewClient(opts ClientOptions) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, errors.New("jupyter base url is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse jupyter base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("jupyter base url must be http or https, got %q", base.Scheme)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{base: base, token: strings.TrimSpace(opts.Token), http: httpClient}, nil
}

// BaseURL returns a copy of the server root.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

func (c *Client) endpoint(elems ...string) *url.URL {
	u := c.BaseURL()
	u.Path = path.Join(append([]string{"/", c.base.Path}, elems...)...)
	return u
}

func (c *Client) authorize(h http.Header) {
	h.Set("User-Agent", version.UserAgent())
	if c.token != "" {
		h.Set("Authorization", "token "+c.token)
	}
}

func (c *Client) do(ctx context.Context, method string, u *url.URL, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, u.Path, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req.Header)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, u.Path, err)
	}
	defer resp.Body.Close()
	pslog.Ctx(ctx).Debug("jupyter api call", "method", method, "path", u.Path, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Method: method, Path: u.Path, Status: resp.StatusCode}
		var payload struct {
			Message string `json:"message"`
			Reason  string `json:"reason"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Message = strings.TrimSpace(payload.Message + " " + payload.Reason)
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, u.Path, err)
	}
	return nil
}

// Kernel is a running kernel as reported by /api/kernels.
type Kernel struct {
	ID             schema.KernelID `json:"id"`
	Name           string          `json:"name"`
	LastActivity   string          `json:"last_activity,omitempty"`
	ExecutionState string          `json:"execution_state,omitempty"`
	Connections    int             `json:"connections,omitempty"`
}

// Kernels lists running kernels.
func (c *Client) Kernels(ctx context.Context) ([]Kernel, error) {
	var out []Kernel
	if err := c.do(ctx, http.MethodGet, c.endpoint("api", "kernels"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Kernel returns one running kernel.
func (c *Client) Kernel(ctx context.Context, id schema.KernelID) (Kernel, error) {
	var out Kernel
	if err := c.do(ctx, http.MethodGet, c.endpoint("api", "kernels", string(id)), nil, &out); err != nil {
		if errors.Is(err, schema.ErrNotFound) {
			return Kernel{}, fmt.Errorf("%w: %s", schema.ErrKernelNotFound, id)
		}
		return Kernel{}, err
	}
	return out, nil
}

// StartKernel starts a kernel of the named kernelspec. An empty name starts
// the server default.
func (c *Client) StartKernel(ctx context.Context, name string) (Kernel, error) {
	body := map[string]string{}
	if name != "" {
		body["name"] = name
	}
	var out Kernel
	if err := c.do(ctx, http.MethodPost, c.endpoint("api", "kernels"), body, &out); err != nil {
		return Kernel{}, err
	}
	pslog.Ctx(ctx).Info("jupyter kernel started", "kernel", out.ID, "kernel_name", out.Name)
	return out, nil
}

// ShutdownKernel stops a kernel.
func (c *Client) ShutdownKernel(ctx context.Context, id schema.KernelID) error {
	if err := c.do(ctx, http.MethodDelete, c.endpoint("api", "kernels", string(id)), nil, nil); err != nil {
		return err
	}
	pslog.Ctx(ctx).Info("jupyter kernel stopped", "kernel", id)
	return nil
}

// InterruptKernel interrupts the current execution of a kernel.
func (c *Client) InterruptKernel(ctx context.Context, id schema.KernelID) error {
	return c.do(ctx, http.MethodPost, c.endpoint("api", "kernels", string(id), "interrupt"), nil, nil)
}

// KernelSpecs is the /api/kernelspecs listing.
type KernelSpecs struct {
	Default     string                      `json:"default"`
	KernelSpecs map[string]KernelSpecRecord `json:"kernelspecs"`
}

// KernelSpecRecord is one kernelspec entry.
type KernelSpecRecord struct {
	Name string `json:"name"`
	Spec struct {
		DisplayName string `json:"display_name"`
		Language    string `json:"language"`
	} `json:"spec"`
}

// Info converts the record into notebook metadata form.
func (r KernelSpecRecord) Info() schema.KernelSpecInfo {
	return schema.KernelSpecInfo{Name: r.Name, DisplayName: r.Spec.DisplayName, Language: r.Spec.Language}
}

// KernelSpecs lists the installed kernelspecs.
func (c *Client) KernelSpecs(ctx context.Context) (KernelSpecs, error) {
	var out KernelSpecs
	if err := c.do(ctx, http.MethodGet, c.endpoint("api", "kernelspecs"), nil, &out); err != nil {
		return KernelSpecs{}, err
	}
	return out, nil
}

// Get fetches a notebook through the contents API.
func (c *Client) Get(ctx context.Context, p string) (schema.ContentsModel, error) {
	u := c.endpoint("api", "contents", p)
	q := u.Query()
	q.Set("type", schema.ContentsTypeNotebook)
	q.Set("content", "1")
	u.RawQuery = q.Encode()
	var out schema.ContentsModel
	if err := c.do(ctx, http.MethodGet, u, nil, &out); err != nil {
		return schema.ContentsModel{}, err
	}
	return out, nil
}

// Save writes a notebook through the contents API.
func (c *Client) Save(ctx context.Context, p string, model schema.ContentsModel) (schema.ContentsModel, error) {
	var out schema.ContentsModel
	if err := c.do(ctx, http.MethodPut, c.endpoint("api", "contents", p), model, &out); err != nil {
		return schema.ContentsModel{}, err
	}
	return out, nil
}
