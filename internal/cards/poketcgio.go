package cards

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL   = "https://api.pokemontcg.io/v2"
	DefaultUserAgent = "pkmprice/1.0"
	DefaultTimeout   = 10 * time.Second
	DefaultRetries   = 3
)

// Resource is a catalog entity type. Implementations use value receivers so
// the zero value can answer both methods.
type Resource interface {
	// ResourcePath is the URL segment under the base URL, e.g. "cards".
	ResourcePath() string
	// Findable reports whether {path}/{id} exists for this type.
	Findable() bool
}

// Client talks to the Pokémon TCG API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *resty.Client
	log     zerolog.Logger
}

type options struct {
	baseURL      string
	apiKey       string
	userAgent    string
	timeout      time.Duration
	retries      int
	retryWait    time.Duration
	retryMaxWait time.Duration
	httpClient   *http.Client
	logger       zerolog.Logger
}

// Option customises a Client.
type Option func(o *options)

// WithBaseURL points the client at another catalog, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = strings.TrimRight(u, "/") }
}

// WithAPIKey sets the X-Api-Key header. An empty key sends no header.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithTimeout bounds each attempt, not the whole retried call.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRetries sets how many times a transient failure is retried and the
// backoff window between attempts.
func WithRetries(count int, wait, maxWait time.Duration) Option {
	return func(o *options) {
		o.retries = count
		o.retryWait = wait
		o.retryMaxWait = maxWait
	}
}

// WithHTTPClient uses c as the underlying transport client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogger sets the logger for request and retry logs.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New returns a Client with the defaults above.
func New(opts ...Option) *Client {
	o := options{
		baseURL:      DefaultBaseURL,
		userAgent:    DefaultUserAgent,
		timeout:      DefaultTimeout,
		retries:      DefaultRetries,
		retryWait:    500 * time.Millisecond,
		retryMaxWait: 5 * time.Second,
		logger:       zerolog.Nop(),
	}
	for _, op := range opts {
		op(&o)
	}

	var rc *resty.Client
	if o.httpClient != nil {
		rc = resty.NewWithClient(o.httpClient)
	} else {
		rc = resty.New()
	}

	rc.SetTimeout(o.timeout).
		SetRetryCount(o.retries).
		SetRetryWaitTime(o.retryWait).
		SetRetryMaxWaitTime(o.retryMaxWait).
		AddRetryCondition(retryable).
		SetLogger(restyLogger{log: o.logger}).
		SetHeader("User-Agent", o.userAgent).
		SetHeader("Accept", "application/json").
		SetHeader("Accept-Encoding", "gzip, br")
	if o.apiKey != "" {
		rc.SetHeader("X-Api-Key", o.apiKey)
	}

	c := &Client{
		baseURL: o.baseURL,
		http:    rc,
		log:     o.logger.With().Str("component", "pokemontcg").Logger(),
	}
	rc.OnAfterResponse(c.logResponse)

	return c
}

// retryable retries transport failures and 5xx responses. 4xx responses are
// final.
func retryable(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	return r != nil && r.StatusCode() >= http.StatusInternalServerError
}

func (c *Client) logResponse(_ *resty.Client, r *resty.Response) error {
	c.log.Debug().
		Str("url", r.Request.URL).
		Int("status", r.StatusCode()).
		Dur("took", r.Time()).
		Msg("catalog response")
	return nil
}

// get fetches path (relative to the base URL) and returns the decoded body.
func (c *Client) get(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	req := c.http.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}

	resp, err := req.Get(c.baseURL + "/" + path)
	if err != nil {
		return nil, &TransportError{Path: path, Err: err}
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	case !resp.IsSuccess():
		return nil, &StatusError{Path: path, Code: resp.StatusCode(), Body: truncate(resp.String(), 200)}
	}

	body, err := decodeBody(resp.Header().Get("Content-Encoding"), resp.Body())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: decode body: %v", ErrEnvelope, path, err)
	}
	return body, nil
}

// decodeBody undoes brotli compression. Gzip is usually inflated before we
// see it, so it is only handled when the gzip magic bytes are still there.
func decodeBody(encoding string, body []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "br":
		return io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
	case "gzip":
		if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
			return body, nil
		}
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// restyLogger sends resty's own log lines to zerolog.
type restyLogger struct {
	log zerolog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) { l.log.Error().Msgf(format, v...) }
func (l restyLogger) Warnf(format string, v ...interface{})  { l.log.Warn().Msgf(format, v...) }
func (l restyLogger) Debugf(format string, v ...interface{}) { l.log.Debug().Msgf(format, v...) }
