package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"mediahub.dev/portal/internal/content"
)

const (
	defaultTimeout    = 8 * time.Second
	idempotencyHeader = "Idempotency-Key"
	maxErrorBody      = 4096
)

// ErrNotFound is returned when the backend reports a missing resource.
var ErrNotFound = errors.New("backend: not found")

// APIError carries a non-2xx backend response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: status %d", e.Status)
	}
	return fmt.Sprintf("backend: status %d: %s", e.Status, e.Message)
}

// Unwrap maps 404 responses onto ErrNotFound.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Message extracts a user-facing message from err, or "" when none is available.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// Client talks to the content REST backend. A client without a base URL serves the
// embedded fallback dataset.
type Client struct {
	baseURL  string
	http     *http.Client
	logger   *zap.Logger
	fallback *Dataset
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithFallback replaces the embedded fallback dataset.
func WithFallback(ds *Dataset) Option {
	return func(c *Client) {
		if ds != nil {
			c.fallback = ds
		}
	}
}

// NewClient constructs a Client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.fallback == nil {
		c.fallback = DefaultDataset()
	}
	return c
}

// Offline reports whether the client serves the fallback dataset.
func (c *Client) Offline() bool {
	return c == nil || c.baseURL == ""
}

// GetContentsByCategoryID returns a page of articles in the category.
func (c *Client) GetContentsByCategoryID(ctx context.Context, id content.CategoryID, limit, offset int) (content.Page, error) {
	return c.listByCategory(ctx, content.KindContent, "contents", id, limit, offset)
}

// GetVideosByCategoryID returns a page of videos in the category.
func (c *Client) GetVideosByCategoryID(ctx context.Context, id content.CategoryID, limit, offset int) (content.Page, error) {
	return c.listByCategory(ctx, content.KindVideo, "videos", id, limit, offset)
}

// GetPostsByCategoryID returns a page of posts in the category.
func (c *Client) GetPostsByCategoryID(ctx context.Context, id content.CategoryID, limit, offset int) (content.Page, error) {
	return c.listByCategory(ctx, content.KindPost, "posts", id, limit, offset)
}

// GetEventsByCategoryID returns a page of events in the category.
func (c *Client) GetEventsByCategoryID(ctx context.Context, id content.CategoryID, limit, offset int) (content.Page, error) {
	return c.listByCategory(ctx, content.KindEvent, "events", id, limit, offset)
}

func (c *Client) listByCategory(ctx context.Context, kind content.Kind, plural string, id content.CategoryID, limit, offset int) (content.Page, error) {
	if c.Offline() {
		return c.fallback.ByCategory(kind, id, limit, offset), nil
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var env struct {
		Data *pagePayload `json:"data"`
	}
	if err := c.getJSON(ctx, q, &env, plural, "category", string(id)); err != nil {
		return content.Page{}, err
	}
	return env.Data.toPage(kind), nil
}

// GetItem returns a single item.
func (c *Client) GetItem(ctx context.Context, kind content.Kind, id string) (content.Item, error) {
	id = strings.TrimSpace(id)
	if id == "" || !kind.Valid() {
		return content.Item{}, ErrNotFound
	}
	if c.Offline() {
		it, ok := c.fallback.Item(kind, id)
		if !ok {
			return content.Item{}, ErrNotFound
		}
		return it, nil
	}
	var env struct {
		Data *content.Item `json:"data"`
	}
	if err := c.getJSON(ctx, nil, &env, pluralFor(kind), id); err != nil {
		return content.Item{}, err
	}
	if env.Data == nil {
		return content.Item{}, ErrNotFound
	}
	it := *env.Data
	if it.Kind == "" {
		it.Kind = kind
	}
	return it, nil
}

// SiteInfo returns the site description and its categories, localised for lang.
func (c *Client) SiteInfo(ctx context.Context, lang string) (content.SiteInfo, error) {
	if c.Offline() {
		return c.fallback.SiteInfo(), nil
	}
	q := url.Values{}
	if lang != "" {
		q.Set("lang", lang)
	}
	var env struct {
		Data *siteInfoPayload `json:"data"`
	}
	if err := c.getJSON(ctx, q, &env, "site"); err != nil {
		return content.SiteInfo{}, err
	}
	return env.Data.toSiteInfo(), nil
}

// SearchQuery filters a search request.
type SearchQuery struct {
	Text   string
	Kind   content.Kind
	Lang   string
	Limit  int
	Offset int
}

// Search returns items matching q.
func (c *Client) Search(ctx context.Context, q SearchQuery) (content.Page, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Limit <= 0 {
		q.Limit = content.PageSize
	}
	if q.Text == "" {
		return content.Page{Results: []content.Item{}}, nil
	}
	if c.Offline() {
		return c.fallback.Search(q), nil
	}
	params := url.Values{}
	params.Set("q", q.Text)
	if q.Kind != "" {
		params.Set("type", string(q.Kind))
	}
	if q.Lang != "" {
		params.Set("lang", q.Lang)
	}
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))

	var env struct {
		Data *pagePayload `json:"data"`
	}
	if err := c.getJSON(ctx, params, &env, "search"); err != nil {
		return content.Page{}, err
	}
	return env.Data.toPage(""), nil
}

// GuidedReading returns the guided-reading cards in step order.
func (c *Client) GuidedReading(ctx context.Context, lang string) ([]content.GuidedCard, error) {
	if c.Offline() {
		return c.fallback.Guided(), nil
	}
	q := url.Values{}
	if lang != "" {
		q.Set("lang", lang)
	}
	var env struct {
		Data struct {
			Results []content.GuidedCard `json:"results"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, q, &env, "guided-reading"); err != nil {
		return nil, err
	}
	if env.Data.Results == nil {
		return []content.GuidedCard{}, nil
	}
	return env.Data.Results, nil
}

// Statistics returns dashboard statistics. token authorises the call on behalf of an
// admin user.
func (c *Client) Statistics(ctx context.Context, token string) (content.Statistics, error) {
	if c.Offline() {
		return c.fallback.Statistics(), nil
	}
	req, err := c.newRequest(ctx, http.MethodGet, nil, nil, "statistics")
	if err != nil {
		return content.Statistics{}, err
	}
	setBearer(req, token)
	var env struct {
		Data content.Statistics `json:"data"`
	}
	if err := c.do(req, &env); err != nil {
		return content.Statistics{}, err
	}
	return env.Data, nil
}

// Draft is a new item submitted from the admin dashboard.
type Draft struct {
	Kind       content.Kind       `json:"kind"`
	Title      string             `json:"title"`
	Summary    string             `json:"summary,omitempty"`
	Body       string             `json:"body,omitempty"`
	BodyFormat string             `json:"body_format,omitempty"`
	Image      string             `json:"image,omitempty"`
	CategoryID content.CategoryID `json:"category_id"`
	StreamURL  string             `json:"stream_url,omitempty"`
	StartsAt   *time.Time         `json:"starts_at,omitempty"`
	EndsAt     *time.Time         `json:"ends_at,omitempty"`
	Location   string             `json:"location,omitempty"`
}

// CreateItem submits a draft. An empty idempotencyKey is replaced with a fresh one.
func (c *Client) CreateItem(ctx context.Context, token, idempotencyKey string, d Draft) (content.Item, error) {
	if !d.Kind.Valid() {
		return content.Item{}, content.ErrUnknownKind
	}
	if c.Offline() {
		return c.fallback.Create(d), nil
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return content.Item{}, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, nil, bytes.NewReader(payload), pluralFor(d.Kind))
	if err != nil {
		return content.Item{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(idempotencyHeader, EnsureIdempotencyKey(idempotencyKey))
	setBearer(req, token)

	var env struct {
		Data content.Item `json:"data"`
	}
	if err := c.do(req, &env); err != nil {
		return content.Item{}, err
	}
	if env.Data.Kind == "" {
		env.Data.Kind = d.Kind
	}
	return env.Data, nil
}

func (c *Client) getJSON(ctx context.Context, q url.Values, out any, segments ...string) error {
	req, err := c.newRequest(ctx, http.MethodGet, q, nil, segments...)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method string, q url.Values, body io.Reader, segments ...string) (*http.Request, error) {
	escaped := make([]string, len(segments))
	for i, seg := range segments {
		// JoinPath resolves dot segments, so an ID must not climb out of its route.
		if seg == "" || seg == "." || seg == ".." || strings.Contains(seg, "/") {
			return nil, fmt.Errorf("backend: invalid path segment %q: %w", seg, ErrNotFound)
		}
		escaped[i] = url.PathEscape(seg)
	}
	endpoint, err := url.JoinPath(c.baseURL, escaped...)
	if err != nil {
		return nil, fmt.Errorf("backend: join path: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("backend: build request: %w", err)
	}
	if len(q) > 0 {
		req.URL.RawQuery = q.Encode()
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: extractMessage(resp.Body)}
		c.logger.Warn("backend request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
		)
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("backend: decode %s: %w", req.URL.Path, err)
	}
	return nil
}

func extractMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if len(data) == 0 {
		return ""
	}
	var body struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Error   any    `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return strings.TrimSpace(string(data[:min(len(data), 256)]))
	}
	if m := strings.TrimSpace(body.Message); m != "" {
		return m
	}
	if m := strings.TrimSpace(body.Detail); m != "" {
		return m
	}
	switch v := body.Error.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		if m, ok := v["message"].(string); ok {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

func setBearer(req *http.Request, token string) {
	if token = strings.TrimSpace(token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func pluralFor(kind content.Kind) string {
	switch kind {
	case content.KindContent:
		return "contents"
	case content.KindVideo:
		return "videos"
	case content.KindPost:
		return "posts"
	case content.KindEvent:
		return "events"
	default:
		return ""
	}
}

type pagePayload struct {
	Results []content.Item `json:"results"`
	Count   int            `json:"count"`
}

func (p *pagePayload) toPage(kind content.Kind) content.Page {
	if p == nil || p.Results == nil {
		return content.Page{Results: []content.Item{}}
	}
	items := make([]content.Item, len(p.Results))
	for i, it := range p.Results {
		if it.Kind == "" {
			it.Kind = kind
		}
		items[i] = it
	}
	return content.Page{Results: items, Count: p.Count}
}

type siteInfoPayload struct {
	Name        string                        `json:"name"`
	Description string                        `json:"description"`
	Categories  map[string][]content.Category `json:"categories"`
}

func (p *siteInfoPayload) toSiteInfo() content.SiteInfo {
	info := content.SiteInfo{Categories: map[content.Kind][]content.Category{}}
	if p == nil {
		return info
	}
	info.Name = strings.TrimSpace(p.Name)
	info.Description = strings.TrimSpace(p.Description)
	for raw, cats := range p.Categories {
		kind, err := content.ParseKind(raw)
		if err != nil {
			continue
		}
		info.Categories[kind] = cats
	}
	return info
}
