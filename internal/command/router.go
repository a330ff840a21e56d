package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/sakura-mc-bot/internal/audit"
	"github.com/park285/sakura-mc-bot/internal/bridge"
	"github.com/park285/sakura-mc-bot/internal/metrics"
	"github.com/park285/sakura-mc-bot/internal/msgcat"
	"github.com/park285/sakura-mc-bot/internal/roles"
)

// Sink delivers one chat line. Replies and in-game commands both go through it.
type Sink interface {
	Send(ctx context.Context, line string) error
}

// Tier is the role a sender needs before a handler runs.
type Tier int

const (
	TierNone Tier = iota
	TierOperator
	TierSuperOperator
)

func (t Tier) String() string {
	switch t {
	case TierOperator:
		return "operator"
	case TierSuperOperator:
		return "super_operator"
	default:
		return "none"
	}
}

// ArgPolicy says whether an argument is required and when it is checked
// relative to authorization.
type ArgPolicy int

const (
	ArgOptional ArgPolicy = iota
	// ArgRequired is checked after the tier gate.
	ArgRequired
	// ArgRequiredFirst is checked before the tier gate, so unauthorized
	// senders still get the usage line.
	ArgRequiredFirst
)

type HandlerFunc func(ctx context.Context, inv *Invocation)

type Middleware func(HandlerFunc) HandlerFunc

type Command struct {
	Name    string
	Aliases []string
	Tier    Tier
	Arg     ArgPolicy
	// Usage is the catalog key replied when a required argument is missing.
	Usage   string
	Handler HandlerFunc
}

type Router struct {
	grammar *Grammar
	roles   roles.Authorizer
	catalog *msgcat.Catalog
	sink    Sink
	audit   audit.Sink
	logger  *zap.Logger

	auditTimeout time.Duration

	ignore map[string]struct{}
	table  map[string]*route
}

type route struct {
	cmd  *Command
	exec HandlerFunc
}

type Option func(*Router)

func WithLogger(l *zap.Logger) Option {
	return func(r *Router) { r.logger = l }
}

func WithAudit(s audit.Sink) Option {
	return func(r *Router) { r.audit = s }
}

// WithAuditTimeout bounds each audit write. Defaults to 2s.
func WithAuditTimeout(d time.Duration) Option {
	return func(r *Router) { r.auditTimeout = d }
}

// WithIgnoredSenders drops events from the given ids, typically the bot's own name.
func WithIgnoredSenders(ids ...string) Option {
	return func(r *Router) {
		for _, id := range ids {
			if id = strings.TrimSpace(id); id != "" {
				r.ignore[id] = struct{}{}
			}
		}
	}
}

func NewRouter(prefix string, store roles.Authorizer, catalog *msgcat.Catalog, sink Sink, opts ...Option) (*Router, error) {
	g, err := NewGrammar(prefix)
	if err != nil {
		return nil, err
	}
	if store == nil || catalog == nil || sink == nil {
		return nil, fmt.Errorf("router requires a role store, a catalog and a sink")
	}
	r := &Router{
		grammar: g,
		roles:   store,
		catalog: catalog,
		sink:    sink,
		audit:   audit.Nop(),
		logger:  zap.NewNop(),

		auditTimeout: 2 * time.Second,
		ignore:       make(map[string]struct{}),
		table:        make(map[string]*route),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.audit == nil {
		r.audit = audit.Nop()
	}
	if r.auditTimeout <= 0 {
		r.auditTimeout = 2 * time.Second
	}
	return r, nil
}

// Register adds commands under their name and aliases. Names are matched exactly.
func (r *Router) Register(cmds ...Command) error {
	for i := range cmds {
		c := cmds[i]
		if c.Handler == nil {
			return fmt.Errorf("command %q has no handler", c.Name)
		}
		if c.Arg != ArgOptional && c.Usage == "" {
			return fmt.Errorf("command %q requires an argument but has no usage key", c.Name)
		}
		rt := &route{cmd: &c, exec: r.chain(&c)}
		for _, name := range append([]string{c.Name}, c.Aliases...) {
			if name == "" {
				continue
			}
			if _, dup := r.table[name]; dup {
				return fmt.Errorf("duplicate command name %q", name)
			}
			r.table[name] = rt
		}
	}
	return nil
}

func (r *Router) chain(c *Command) HandlerFunc {
	var mws []Middleware
	switch c.Arg {
	case ArgRequiredFirst:
		mws = append(mws, requireArgument(c.Usage), requireTier(r.roles, c.Tier))
	case ArgRequired:
		mws = append(mws, requireTier(r.roles, c.Tier), requireArgument(c.Usage))
	default:
		mws = append(mws, requireTier(r.roles, c.Tier))
	}
	h := c.Handler
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Handle processes one chat event. Events without a sender and lines that are
// not commands are dropped without a reply.
func (r *Router) Handle(ctx context.Context, ev bridge.Event) {
	sender, ok := ev.SenderName()
	if !ok {
		return
	}
	if _, skip := r.ignore[sender]; skip {
		return
	}
	name, arg, ok := r.grammar.Parse(ev.Content)
	if !ok {
		return
	}

	inv := &Invocation{
		ID:      uuid.NewString(),
		Sender:  sender,
		Name:    name,
		Arg:     arg,
		router:  r,
		outcome: "ok",
	}
	inv.logger = r.logger.With(zap.String("invocation", inv.ID), zap.String("sender", sender), zap.String("command", name))

	rt, found := r.table[name]
	if !found {
		inv.logger.Debug("command_unknown")
		inv.Reply(ctx, "unknown_command", nil)
		metrics.Commands.WithLabelValues("unknown", "unknown").Inc()
		return
	}
	inv.Command = rt.cmd
	inv.logger.Info("command_dispatch", zap.String("arg", arg), zap.Stringer("tier", rt.cmd.Tier))

	defer func() {
		if rec := recover(); rec != nil {
			inv.logger.Error("command_panic", zap.Any("panic", rec))
			inv.outcome = "panic"
		}
		metrics.Commands.WithLabelValues(rt.cmd.Name, inv.outcome).Inc()
	}()
	rt.exec(ctx, inv)
}

func requireTier(store roles.Authorizer, tier Tier) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, inv *Invocation) {
			allowed := true
			switch tier {
			case TierOperator:
				allowed = store.IsOperator(inv.Sender)
			case TierSuperOperator:
				allowed = store.IsSuperOperator(inv.Sender)
			}
			if !allowed {
				inv.SetOutcome("denied")
				inv.logger.Info("command_denied", zap.Stringer("tier", tier))
				inv.Reply(ctx, "denied", nil)
				inv.Record(ctx, inv.Arg, audit.OutcomeDenied)
				return
			}
			next(ctx, inv)
		}
	}
}

func requireArgument(usage string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, inv *Invocation) {
			if inv.Arg == "" {
				inv.SetOutcome("usage")
				inv.Reply(ctx, usage, nil)
				return
			}
			next(ctx, inv)
		}
	}
}
