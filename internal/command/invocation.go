package command

import (
	"context"

	"go.uber.org/zap"

	"github.com/park285/sakura-mc-bot/internal/audit"
)

// Invocation is one parsed command from one sender.
type Invocation struct {
	ID     string
	Sender string
	// Name is the command name as typed; it may be an alias.
	Name    string
	Arg     string
	Command *Command

	router  *Router
	logger  *zap.Logger
	outcome string
}

func (inv *Invocation) Logger() *zap.Logger { return inv.logger }

func (inv *Invocation) SetOutcome(o string) { inv.outcome = o }

// Say sends line verbatim. Failures are logged and dropped.
func (inv *Invocation) Say(ctx context.Context, line string) {
	if err := inv.router.sink.Send(ctx, line); err != nil {
		inv.logger.Warn("chat_send_failed", zap.String("line", line), zap.Error(err))
	}
}

// Reply renders a catalog entry and sends each non-empty line. Prefix, Command
// and Sender are always available to the template.
func (inv *Invocation) Reply(ctx context.Context, key string, data map[string]any) {
	vars := map[string]any{
		"Prefix":  inv.router.grammar.Prefix(),
		"Command": inv.Name,
		"Sender":  inv.Sender,
	}
	for k, v := range data {
		vars[k] = v
	}
	lines, err := inv.router.catalog.Lines(key, vars)
	if err != nil {
		inv.logger.Error("reply_render_failed", zap.String("key", key), zap.Error(err))
		return
	}
	for _, line := range lines {
		inv.Say(ctx, line)
	}
}

// Record appends a privileged outcome to the audit trail. The write is bounded
// by the router's audit timeout; callers reply before recording.
func (inv *Invocation) Record(ctx context.Context, target string, outcome audit.Outcome) {
	name := inv.Name
	if inv.Command != nil {
		name = inv.Command.Name
	}
	e := audit.NewEntry(inv.Sender, name, target, outcome)
	rctx, cancel := context.WithTimeout(ctx, inv.router.auditTimeout)
	defer cancel()
	if err := inv.router.audit.Record(rctx, e); err != nil {
		inv.logger.Warn("audit_record_failed", zap.String("outcome", string(outcome)), zap.Error(err))
	}
}
