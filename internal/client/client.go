package client

import (
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

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/glefebvre/housou/internal/circuitbreaker"
	apperrors "github.com/glefebvre/housou/internal/errors"
	"github.com/glefebvre/housou/internal/logger"
	"github.com/glefebvre/housou/internal/models"
	"github.com/glefebvre/housou/internal/retry"
)

const (
	serviceName    = "housou-api"
	defaultTimeout = 10 * time.Second

	configPath   = "/api/config"
	itemsPath    = "/api/items"
	metadataPath = "/api/metadata"

	// maxBodySize caps how much of a response body is read
	maxBodySize = 16 << 20
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	Timeout     time.Duration
	ConfigRetry retry.Config
	Breaker     circuitbreaker.Config
	HTTPClient  *http.Client
}

// Client talks to the schedule backend
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	retry      retry.Config
	breaker    *circuitbreaker.CircuitBreaker
	logger     *logger.Logger
	now        func() time.Time
}

// MetadataQuery carries the lookup hints for one title
type MetadataQuery struct {
	Title  string
	TMDBID string
	Begin  string
}

// New creates a backend client rooted at baseURL
func New(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, apperrors.ConfigError(fmt.Sprintf("invalid api base url %q", baseURL), err)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.ConfigRetry.MaxAttempts == 0 {
		opts.ConfigRetry = retry.DefaultConfig()
	}
	if opts.Breaker.MaxFailures == 0 {
		opts.Breaker = circuitbreaker.DefaultConfig()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}

	log := logger.AppLogger()
	if opts.ConfigRetry.OnRetry == nil {
		opts.ConfigRetry.OnRetry = func(attempt int, wait time.Duration, err error) {
			log.WithFields(map[string]interface{}{
				"attempt": attempt,
				"wait_ms": wait.Milliseconds(),
				"code":    string(apperrors.GetErrorCode(err)),
			}).Warn("Retrying config fetch")
		}
	}
	if opts.Breaker.OnStateChange == nil {
		opts.Breaker.OnStateChange = func(name string, from, to circuitbreaker.State) {
			log.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Info("Circuit breaker state changed")
		}
	}

	return &Client{
		baseURL:    u,
		httpClient: opts.HTTPClient,
		timeout:    opts.Timeout,
		retry:      opts.ConfigRetry,
		breaker:    circuitbreaker.New(opts.Breaker),
		logger:     log,
		now:        time.Now,
	}, nil
}

// BaseURL returns the backend root
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Breaker exposes the metadata circuit breaker
func (c *Client) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// FetchConfig loads the backend configuration. Retryable failures are retried with backoff.
func (c *Client) FetchConfig(ctx context.Context) (*models.Config, error) {
	return retry.DoWithResult(ctx, c.retry, func(ctx context.Context) (*models.Config, error) {
		params := url.Values{}
		params.Set("v", strconv.FormatInt(c.now().UnixMilli(), 10))

		body, err := c.get(ctx, configPath, params, "fetch failed")
		if err != nil {
			return nil, err
		}
		return decodeConfig(body)
	})
}

// FetchItems loads the items of a year, optionally narrowed to a season.
// A season of "" or "all" requests the whole year.
func (c *Client) FetchItems(ctx context.Context, year, season string) ([]models.AnimeItem, error) {
	params := url.Values{}
	params.Set("year", year)
	if season != "" && season != string(models.SeasonAll) {
		params.Set("season", season)
	}

	body, err := c.get(ctx, itemsPath, params, "Items fetch failed")
	if err != nil {
		return nil, err
	}
	return decodeItems(body)
}

// FetchMetadata resolves extended metadata for a title. It returns nil, nil when
// the backend has nothing for the title.
func (c *Client) FetchMetadata(ctx context.Context, q MetadataQuery) (*models.UnifiedMetadata, error) {
	params := url.Values{}
	params.Set("title", q.Title)
	if q.TMDBID != "" {
		params.Set("tmdb_id", q.TMDBID)
	}
	if q.Begin != "" {
		params.Set("begin", q.Begin)
	}

	var md *models.UnifiedMetadata
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		body, err := c.get(ctx, metadataPath, params, "fetch failed")
		if err != nil {
			return err
		}
		md, err = decodeMetadata(body)
		return err
	})
	switch {
	case errors.Is(err, circuitbreaker.ErrOpenState), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		return nil, apperrors.Wrap(err, apperrors.CodeServiceUnavailable, "metadata temporarily unavailable").
			WithContext("title", q.Title)
	case err != nil:
		return nil, err
	}
	return md, nil
}

func (c *Client) endpoint(path string, params url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = params.Encode()
	return u.String()
}

// get performs one GET and returns the body of a 2xx response.
// failMessage is the message attached to non-2xx and transport failures.
func (c *Client) get(ctx context.Context, path string, params url.Values, failMessage string) ([]byte, error) {
	ctx, span := otel.Tracer("housou.client").Start(ctx, path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.path", path)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	requestURL := c.endpoint(path, params)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to build request").
			WithContext("url", requestURL)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		if ctxErr := apperrors.FromContext(ctx, err); ctxErr != nil {
			if ctxErr.Code == apperrors.CodeServiceTimeout {
				ctxErr.Message = "timed out"
			}
			return nil, ctxErr.WithContext("endpoint", path)
		}
		return nil, apperrors.ExternalServiceError(serviceName, failMessage, err).WithContext("endpoint", path)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		span.SetStatus(codes.Error, resp.Status)
		return nil, statusError(path, resp.StatusCode, failMessage)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if ctxErr := apperrors.FromContext(ctx, err); ctxErr != nil {
			return nil, ctxErr.WithContext("endpoint", path)
		}
		return nil, apperrors.ExternalServiceError(serviceName, failMessage, err).WithContext("endpoint", path)
	}

	c.logger.WithFields(map[string]interface{}{
		"endpoint": path,
		"status":   resp.StatusCode,
		"bytes":    len(body),
	}).DebugContext(ctx, "Backend request completed")

	return body, nil
}

func statusError(path string, status int, failMessage string) error {
	code := apperrors.CodeExternalService
	switch status {
	case http.StatusServiceUnavailable:
		code = apperrors.CodeServiceUnavailable
	case http.StatusTooManyRequests:
		code = apperrors.CodeRateLimited
	}
	return apperrors.New(code, failMessage).
		WithContext("endpoint", path).
		WithContext("status", status)
}

func decodeConfig(body []byte) (*models.Config, error) {
	if !gjson.ValidBytes(body) {
		return nil, apperrors.MalformedResponseError(configPath, "config is not valid JSON", nil)
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, apperrors.MalformedResponseError(configPath, "config is not an object", nil)
	}

	years := doc.Get("years")
	if !years.IsArray() {
		return nil, apperrors.MalformedResponseError(configPath, "config.years is not an array", nil)
	}
	for _, y := range years.Array() {
		if y.Type != gjson.Number {
			return nil, apperrors.MalformedResponseError(configPath, "config.years holds a non-number", nil).
				WithContext("value", y.Raw)
		}
	}
	if meta := doc.Get("site_meta"); meta.Exists() && meta.Type != gjson.Null && !meta.IsObject() {
		return nil, apperrors.MalformedResponseError(configPath, "config.site_meta is not an object", nil)
	}

	var cfg models.Config
	if err := json.Unmarshal(body, &cfg); err != nil {
		return nil, apperrors.MalformedResponseError(configPath, "failed to decode config", err)
	}
	return &cfg, nil
}

func decodeItems(body []byte) ([]models.AnimeItem, error) {
	if !gjson.ValidBytes(body) {
		return nil, apperrors.MalformedResponseError(itemsPath, "items are not valid JSON", nil)
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsArray() {
		return nil, apperrors.MalformedResponseError(itemsPath, "items are not an array", nil)
	}
	for i, entry := range doc.Array() {
		if !entry.IsObject() || entry.Get("title").Type != gjson.String {
			return nil, apperrors.MalformedResponseError(itemsPath, "item without a title", nil).
				WithContext("index", i)
		}
	}

	items := make([]models.AnimeItem, 0, len(doc.Array()))
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, apperrors.MalformedResponseError(itemsPath, "failed to decode items", err)
	}
	return items, nil
}

func decodeMetadata(body []byte) (*models.UnifiedMetadata, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if !gjson.Valid(trimmed) {
		return nil, apperrors.MalformedResponseError(metadataPath, "metadata is not valid JSON", nil)
	}
	doc := gjson.Parse(trimmed)
	if !doc.IsObject() {
		return nil, apperrors.MalformedResponseError(metadataPath, "metadata is not an object", nil)
	}

	var md models.UnifiedMetadata
	if err := json.Unmarshal([]byte(trimmed), &md); err != nil {
		return nil, apperrors.MalformedResponseError(metadataPath, "failed to decode metadata", err)
	}
	return &md, nil
}
