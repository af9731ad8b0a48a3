package bot

import (
	"context"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fallenrobot/fallenbot/internal/ratelimit"
)

// Call is one command invocation.
type Call struct {
	Bot  BotAPI
	Msg  *tgbotapi.Message
	Args string
	Log  *zerolog.Logger
}

// Reply sends a Markdown reply without link previews.
func (c *Call) Reply(text string) (tgbotapi.Message, error) {
	return reply(c.Bot, c.Log, c.Msg, text, false)
}

// Edit replaces the text of sent, falling back to a new reply.
func (c *Call) Edit(sent tgbotapi.Message, text string, preview bool) {
	edit(c.Bot, c.Log, c.Msg, sent, text, preview)
}

// HandlerFunc runs a command and reports its outcome.
type HandlerFunc func(ctx context.Context, c *Call) string

// Command is a registered bot command.
type Command struct {
	Handler HandlerFunc
	// Description is shown by /help; empty hides the command.
	Description string
	Access      Access
	// Denied is the reply to unauthorized callers; empty stays silent.
	Denied string
	// Ungated commands skip the subscription gate.
	Ungated bool
}

// Gate decides whether call may proceed. A gate that refuses is expected to
// have told the user why.
type Gate func(ctx context.Context, call *Call) bool

// Router dispatches command messages to registered commands.
type Router struct {
	bot      BotAPI
	auth     Authorizer
	flood    *ratelimit.Keyed
	gate     Gate
	commands map[string]Command
	aliases  map[string]string
	order    []string
}

// NewRouter builds a router. flood may be nil to disable per-user limits.
func NewRouter(bot BotAPI, auth Authorizer, flood *ratelimit.Keyed) *Router {
	return &Router{
		bot:      bot,
		auth:     auth,
		flood:    flood,
		commands: make(map[string]Command),
		aliases:  make(map[string]string),
	}
}

// Register adds cmd under name and optional aliases. Names are matched
// case-insensitively.
func (r *Router) Register(name string, cmd Command, aliases ...string) {
	name = strings.ToLower(name)
	if _, dup := r.commands[name]; !dup {
		r.order = append(r.order, name)
	}
	r.commands[name] = cmd
	for _, a := range aliases {
		r.aliases[strings.ToLower(a)] = name
	}
}

// UseGate installs g in front of every ungated user command. Operators and
// admin commands are never gated.
func (r *Router) UseGate(g Gate) { r.gate = g }

func (r *Router) lookup(name string) (string, Command, bool) {
	name = strings.ToLower(name)
	if target, ok := r.aliases[name]; ok {
		name = target
	}
	cmd, ok := r.commands[name]
	return name, cmd, ok
}

// HelpEntry is one line of /help.
type HelpEntry struct {
	Name        string
	Description string
	Access      Access
}

// Help lists visible commands in registration order, grouped by access.
func (r *Router) Help() []HelpEntry {
	out := make([]HelpEntry, 0, len(r.order))
	for _, name := range r.order {
		c := r.commands[name]
		if c.Description == "" {
			continue
		}
		out = append(out, HelpEntry{Name: name, Description: c.Description, Access: c.Access})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Access < out[j].Access })
	return out
}

// Dispatch handles a single update. Non-command updates, senderless
// messages and unknown commands are ignored and report false.
func (r *Router) Dispatch(ctx context.Context, upd tgbotapi.Update) bool {
	msg := upd.Message
	if msg == nil || msg.Chat == nil || msg.From == nil || !msg.IsCommand() {
		return false
	}
	name, cmd, ok := r.lookup(msg.Command())
	if !ok {
		return false
	}

	lg := log.With().
		Str("request_id", uuid.NewString()).
		Int("update_id", upd.UpdateID).
		Int64("chat_id", msg.Chat.ID).
		Int64("user_id", msg.From.ID).
		Str("command", name).
		Logger()

	start := time.Now()
	botInflight.Inc()
	outcome := r.run(ctx, name, cmd, msg, &lg)
	botInflight.Dec()
	elapsed := time.Since(start)

	botCommands.WithLabelValues(name, outcome).Inc()
	botLatency.WithLabelValues(name).Observe(elapsed.Seconds())

	var ev *zerolog.Event
	switch outcome {
	case OutcomeError:
		ev = lg.Error()
	case OutcomeOK:
		ev = lg.Info()
	default:
		ev = lg.Debug()
	}
	ev.Str("outcome", outcome).Dur("latency", elapsed).Msg("command")
	return true
}

func (r *Router) run(ctx context.Context, name string, cmd Command, msg *tgbotapi.Message, lg *zerolog.Logger) (outcome string) {
	defer func() {
		if rec := recover(); rec != nil {
			lg.Error().Interface("panic", rec).Msg("command panicked")
			outcome = OutcomeError
		}
	}()

	if r.flood != nil && !r.auth.Sudo(msg.From.ID) {
		if !r.flood.Allow("user:" + formatID(msg.From.ID)) {
			return OutcomeThrottled
		}
	}

	allowed, err := r.auth.Allowed(cmd.Access, msg)
	if err != nil {
		lg.Error().Err(err).Msg("authorization check failed")
		return OutcomeError
	}
	if !allowed {
		if cmd.Denied != "" {
			_, _ = reply(r.bot, lg, msg, cmd.Denied, false)
		}
		return OutcomeDenied
	}

	call := &Call{
		Bot:  r.bot,
		Msg:  msg,
		Args: strings.TrimSpace(msg.CommandArguments()),
		Log:  lg,
	}
	if r.gate != nil && cmd.Access == AccessUser && !cmd.Ungated && !r.auth.Sudo(msg.From.ID) {
		if !r.gate(ctx, call) {
			return OutcomeGated
		}
	}
	return cmd.Handler(ctx, call)
}
