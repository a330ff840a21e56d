package bridge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/park285/sakura-mc-bot/internal/metrics"
)

// Egress delivers one chat line to the game, over HTTP or the event socket.
type Egress interface {
	Send(ctx context.Context, line string) error
}

type transportMode string

const (
	transportHTTP transportMode = "http"
	transportWS   transportMode = "ws"
	transportAuto transportMode = "auto"
)

// NewEgress picks the transport. In auto mode the socket is preferred while
// connected and a failed frame falls back to HTTP once.
func NewEgress(mode string, dryrun bool, c *Client, ws *WebSocket, logger *zap.Logger) Egress {
	if logger == nil {
		logger = zap.NewNop()
	}
	var e Egress
	switch transportMode(mode) {
	case transportWS:
		e = &wsEgress{ws: ws}
	case transportAuto:
		e = &autoEgress{ws: &wsEgress{ws: ws}, http: &httpEgress{c: c}, logger: logger}
	default:
		e = &httpEgress{c: c}
	}
	if dryrun {
		return &dryrunEgress{logger: logger}
	}
	return &countingEgress{next: e}
}

type httpEgress struct{ c *Client }

func (h *httpEgress) Send(ctx context.Context, line string) error {
	if h == nil || h.c == nil {
		return errors.New("http egress not available")
	}
	return h.c.SendChat(ctx, line)
}

type wsEgress struct{ ws *WebSocket }

func (w *wsEgress) Send(ctx context.Context, line string) error {
	if w == nil || w.ws == nil {
		return errors.New("ws egress not available")
	}
	return w.ws.WriteJSON(ctx, ChatRequest{Type: EventChat, Text: line})
}

func (w *wsEgress) ready() bool { return w != nil && w.ws != nil && w.ws.Connected() }

type autoEgress struct {
	ws     *wsEgress
	http   *httpEgress
	logger *zap.Logger
}

func (a *autoEgress) Send(ctx context.Context, line string) error {
	if a.ws.ready() {
		err := a.ws.Send(ctx, line)
		if err == nil {
			return nil
		}
		metrics.ChatLines.WithLabelValues("fallback").Inc()
		a.logger.Warn("egress_fallback", zap.Error(err))
	}
	return a.http.Send(ctx, line)
}

type dryrunEgress struct{ logger *zap.Logger }

func (d *dryrunEgress) Send(_ context.Context, line string) error {
	metrics.ChatLines.WithLabelValues("dryrun").Inc()
	d.logger.Info("egress_dryrun", zap.String("line", line))
	return nil
}

type countingEgress struct{ next Egress }

func (c *countingEgress) Send(ctx context.Context, line string) error {
	if err := c.next.Send(ctx, line); err != nil {
		metrics.ChatLines.WithLabelValues("failed").Inc()
		return err
	}
	metrics.ChatLines.WithLabelValues("sent").Inc()
	return nil
}

// WithRateLimit waits for the limiter before every line, so bursts of replies
// do not trip the server's spam filter. A nil limiter disables limiting.
func WithRateLimit(e Egress, l *rate.Limiter) Egress {
	if l == nil {
		return e
	}
	return &limitedEgress{next: e, limiter: l}
}

// NewLimiter builds a limiter from lines per second and burst. perSecond <= 0 means unlimited.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

type limitedEgress struct {
	next    Egress
	limiter *rate.Limiter
}

func (l *limitedEgress) Send(ctx context.Context, line string) error {
	if err := l.limiter.Wait(ctx); err != nil {
		metrics.ChatLines.WithLabelValues("throttled").Inc()
		return fmt.Errorf("chat rate limit: %w", err)
	}
	return l.next.Send(ctx, line)
}
