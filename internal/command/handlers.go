package command

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/sakura-mc-bot/internal/audit"
	"github.com/park285/sakura-mc-bot/internal/bluemap"
	"github.com/park285/sakura-mc-bot/internal/roles"
)

// Locator resolves a player's current position.
type Locator interface {
	Lookup(ctx context.Context, player string) (bluemap.Position, error)
}

type Handlers struct {
	roles         roles.Authorizer
	locator       Locator
	waypointDelay time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
}

type HandlerOption func(*Handlers)

func WithWaypointDelay(d time.Duration) HandlerOption {
	return func(h *Handlers) { h.waypointDelay = d }
}

// WithSleep replaces the waypoint wait; tests use it to avoid real delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) HandlerOption {
	return func(h *Handlers) { h.sleep = fn }
}

func NewHandlers(store roles.Authorizer, locator Locator, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		roles:         store,
		locator:       locator,
		waypointDelay: 5 * time.Second,
		sleep:         sleepCtx,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.sleep == nil {
		h.sleep = sleepCtx
	}
	return h
}

// Commands returns the chat command table.
func (h *Handlers) Commands() []Command {
	return []Command{
		{Name: "开盒", Aliases: []string{"open-box", "query-position"}, Tier: TierOperator, Arg: ArgRequiredFirst, Usage: "usage.open_box", Handler: h.queryPosition},
		{Name: "tpa", Tier: TierOperator, Handler: h.teleport},
		{Name: "设置传送点", Aliases: []string{"set-waypoint"}, Tier: TierOperator, Arg: ArgRequiredFirst, Usage: "usage.set_waypoint", Handler: h.setWaypoint},
		{Name: "挖矿", Aliases: []string{"mine"}, Tier: TierOperator, Handler: h.mine},
		{Name: "op", Aliases: []string{"grant-operator"}, Tier: TierSuperOperator, Arg: ArgRequiredFirst, Usage: "usage.grant", Handler: h.grantOperator},
		{Name: "deop", Aliases: []string{"revoke-operator"}, Tier: TierSuperOperator, Arg: ArgRequiredFirst, Usage: "usage.revoke", Handler: h.revokeOperator},
		{Name: "op查询", Aliases: []string{"list-operators"}, Tier: TierOperator, Handler: h.listOperators},
		{Name: "指令", Aliases: []string{"help"}, Handler: h.help},
	}
}

func (h *Handlers) queryPosition(ctx context.Context, inv *Invocation) {
	pos, err := h.locator.Lookup(ctx, inv.Arg)
	if err != nil {
		inv.SetOutcome("lookup_failed")
		inv.Logger().Info("lookup_failed", zap.String("player", inv.Arg), zap.Error(err))
		inv.Reply(ctx, "lookup.failed", map[string]any{"Error": err.Error()})
		return
	}
	inv.Reply(ctx, "lookup.ok", map[string]any{
		"Player": inv.Arg,
		"X":      pos.X,
		"Y":      pos.Y,
		"Z":      pos.Z,
	})
}

func (h *Handlers) teleport(ctx context.Context, inv *Invocation) {
	switch inv.Arg {
	case "me":
		inv.Say(ctx, "/tpa "+inv.Sender)
	case "you":
		inv.Say(ctx, "/tpa here")
	default:
		inv.SetOutcome("usage")
		inv.Reply(ctx, "usage.tpa", nil)
		return
	}
	inv.Reply(ctx, "tpa.ack", nil)
}

// setWaypoint walks the bot to the sender, waits for the teleport to land,
// then records the spot as a home. Arrival is not confirmed. The wait cannot be
// cut short by the sender, but it does end on process shutdown (ctx done), in
// which case /sethome is not sent.
func (h *Handlers) setWaypoint(ctx context.Context, inv *Invocation) {
	inv.Say(ctx, "/tpa "+inv.Sender)
	inv.Reply(ctx, "tpa.ack", nil)

	if err := h.sleep(ctx, h.waypointDelay); err != nil {
		inv.SetOutcome("aborted")
		inv.Logger().Info("waypoint_aborted", zap.String("name", inv.Arg), zap.Error(err))
		return
	}

	inv.Say(ctx, "/sethome "+inv.Arg)
	inv.Reply(ctx, "waypoint.done", map[string]any{"Name": inv.Arg})
	inv.Record(ctx, inv.Arg, audit.OutcomeExecuted)
}

func (h *Handlers) mine(ctx context.Context, inv *Invocation) {
	inv.Say(ctx, "/tpa here")
	inv.Reply(ctx, "mine.ack", nil)
}

func (h *Handlers) grantOperator(ctx context.Context, inv *Invocation) {
	target := inv.Arg
	data := map[string]any{"Player": target}
	if h.roles.IsOperator(target) || !h.roles.AddOperator(target) {
		inv.SetOutcome("noop")
		inv.Reply(ctx, "operator.grant_already", data)
		inv.Record(ctx, target, audit.OutcomeNoop)
		return
	}
	inv.Logger().Info("operator_granted", zap.String("target", target))
	inv.Reply(ctx, "operator.grant_ok", data)
	inv.Record(ctx, target, audit.OutcomeGranted)
}

func (h *Handlers) revokeOperator(ctx context.Context, inv *Invocation) {
	target := inv.Arg
	data := map[string]any{"Player": target}
	switch {
	case h.roles.IsSuperOperator(target):
		inv.SetOutcome("refused")
		inv.Reply(ctx, "operator.revoke_super", data)
		inv.Record(ctx, target, audit.OutcomeRefused)
	case !h.roles.HasOperator(target) || !h.roles.RemoveOperator(target):
		inv.SetOutcome("noop")
		inv.Reply(ctx, "operator.revoke_missing", data)
		inv.Record(ctx, target, audit.OutcomeNoop)
	default:
		inv.Logger().Info("operator_revoked", zap.String("target", target))
		inv.Reply(ctx, "operator.revoke_ok", data)
		inv.Record(ctx, target, audit.OutcomeRevoked)
	}
}

func (h *Handlers) listOperators(ctx context.Context, inv *Invocation) {
	inv.Reply(ctx, "operator.list_supers", map[string]any{
		"Supers": strings.Join(h.roles.SuperOperators(), ", "),
	})
	ops := h.roles.ListOperators()
	if len(ops) == 0 {
		inv.Reply(ctx, "operator.list_operators", map[string]any{"Operators": h.none(inv)})
		return
	}
	inv.Reply(ctx, "operator.list_operators", map[string]any{"Operators": strings.Join(ops, ", ")})
}

func (h *Handlers) none(inv *Invocation) string {
	s, err := inv.router.catalog.Render("operator.list_none", nil)
	if err != nil {
		return "-"
	}
	return s
}

func (h *Handlers) help(ctx context.Context, inv *Invocation) {
	inv.Reply(ctx, "help.body", nil)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
