package bluemap

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/park285/sakura-mc-bot/internal/metrics"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var (
	ErrPlayerNotFound = errors.New("玩家未找到")
	ErrLookupFailed   = errors.New("position lookup failed")
)

// Sleeper waits between attempts. It returns early with ctx.Err() on cancellation.
type Sleeper func(ctx context.Context, d time.Duration) error

type Client struct {
	baseURL string
	http    *fasthttp.Client
	logger  *zap.Logger

	timeout     time.Duration
	maxAttempts int
	retryDelay  time.Duration
	userAgent   string
	sleep       Sleeper
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithMaxAttempts(n int) Option {
	return func(c *Client) { c.maxAttempts = n }
}

func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:        &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		logger:      zap.NewNop(),
		timeout:     10 * time.Second,
		maxAttempts: 3,
		retryDelay:  2 * time.Second,
		userAgent:   "sakura-mc-bot",
		sleep:       sleepWithContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = 1
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.sleep == nil {
		c.sleep = sleepWithContext
	}
	return c
}

// Lookup finds player in the live roster. Transport, status and decode failures are
// retried with a fixed delay; a roster without the player fails immediately with
// ErrPlayerNotFound.
func (c *Client) Lookup(ctx context.Context, player string) (Position, error) {
	start := time.Now()
	defer func() { metrics.LookupDuration.Observe(time.Since(start).Seconds()) }()

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		r, err := c.fetchRoster(ctx)
		if err == nil {
			pos, ok := r.find(player)
			if !ok {
				metrics.LookupAttempts.WithLabelValues("not_found").Inc()
				c.logger.Debug("lookup_not_found", zap.String("player", player), zap.Int("attempt", attempt), zap.Int("roster", len(r)))
				return Position{}, ErrPlayerNotFound
			}
			metrics.LookupAttempts.WithLabelValues("ok").Inc()
			c.logger.Debug("lookup_ok", zap.String("player", player), zap.Int("attempt", attempt))
			return pos, nil
		}

		lastErr = err
		if attempt == c.maxAttempts {
			break
		}
		c.logger.Warn("lookup_retry",
			zap.String("player", player),
			zap.Int("attempt", attempt),
			zap.Duration("delay", c.retryDelay),
			zap.Error(err),
		)
		if sleepErr := c.sleep(ctx, c.retryDelay); sleepErr != nil {
			return Position{}, fmt.Errorf("%w: %w", ErrLookupFailed, lastErr)
		}
	}
	return Position{}, fmt.Errorf("%w after %d attempts: %w", ErrLookupFailed, c.maxAttempts, lastErr)
}

// Players returns the whole roster in service order.
func (c *Client) Players(ctx context.Context) ([]Position, error) {
	r, err := c.fetchRoster(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Position, 0, len(r))
	for _, e := range r {
		if p, ok := e.position(); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *Client) fetchRoster(ctx context.Context) (roster, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + "/players")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.SetUserAgent(c.userAgent)
	}

	if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
		metrics.LookupAttempts.WithLabelValues("transport").Inc()
		return nil, fmt.Errorf("网络请求失败: %w", err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		metrics.LookupAttempts.WithLabelValues("status").Inc()
		return nil, fmt.Errorf("HTTP请求失败，状态码: %d", status)
	}

	r, err := decodeRoster(resp.Body())
	if err != nil {
		metrics.LookupAttempts.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("解析JSON响应失败: %w", err)
	}
	return r, nil
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// truncate mirrors a saturating float→int32 cast: toward zero, NaN to 0.
func truncate(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}
