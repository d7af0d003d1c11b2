// Package dispatch is the caller side of usage governance: it turns chat lines
// into command requests, gates them through the engine, runs the registered
// action and records the use only when the action succeeded.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/chatgov/governance"
	"github.com/onnwee/chatgov/settings"
	"github.com/onnwee/chatgov/telemetry"
)

// Outcome is the result of a dispatch attempt.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeGranted
	OutcomeDenied
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeGranted:
		return "granted"
	case OutcomeDenied:
		return "denied"
	case OutcomeFailed:
		return "failed"
	default:
		return "ignored"
	}
}

// Request is one viewer invocation.
type Request struct {
	Command string   `json:"command"`
	User    string   `json:"user"`
	Channel string   `json:"channel,omitempty"`
	Args    []string `json:"args,omitempty"`
}

// Action performs the effect of a command or purchase. A returned error means
// nothing happened and no use is recorded.
type Action func(ctx context.Context, req Request) error

// Replier delivers text back to a chat user.
type Replier interface {
	Reply(user, text string)
}

type logReplier struct{ logger *slog.Logger }

func (r logReplier) Reply(user, text string) {
	r.logger.Info("chat reply", slog.String("user", user), slog.String("text", text))
}

// Dispatcher serializes gate, action and record so concurrent callers cannot
// both pass a check that only one use fits under.
//
// The lock is held while the action runs, so a slow action delays every other
// command and purchase. Actions should hand long work off to the host and
// return; a failed action records nothing, which a release-after-reserve
// scheme could not guarantee without undoing ledger entries.
type Dispatcher struct {
	mu       sync.Mutex
	engine   *governance.Engine
	settings *settings.Store
	actions  map[string]Action
	prefix   string
	replier  Replier
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPrefix sets the chat command prefix (default "!").
func WithPrefix(p string) Option {
	return func(d *Dispatcher) {
		if p != "" {
			d.prefix = p
		}
	}
}

// WithReplier routes replies somewhere other than the log.
func WithReplier(r Replier) Option { return func(d *Dispatcher) { d.replier = r } }

func New(engine *governance.Engine, ps *settings.Store, opts ...Option) *Dispatcher {
	logger := slog.Default().With(slog.String("component", "dispatch"))
	d := &Dispatcher{
		engine:   engine,
		settings: ps,
		actions:  make(map[string]Action),
		prefix:   "!",
		replier:  logReplier{logger: logger},
		logger:   logger,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func normalize(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// Register binds an action to a command name.
func (d *Dispatcher) Register(name string, a Action) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions[normalize(name)] = a
}

// Commands lists registered command names.
func (d *Dispatcher) Commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.actions))
	for k := range d.actions {
		out = append(out, k)
	}
	return out
}

// Dispatch gates and runs a command. Commands without an action are ignored;
// registered commands without settings run ungated.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Outcome, error) {
	req.Command = normalize(req.Command)
	outcome, err := d.dispatch(ctx, req)
	telemetry.ObserveDispatch("command", outcome.String())
	return outcome, err
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) (Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	action, ok := d.actions[req.Command]
	if !ok {
		return OutcomeIgnored, nil
	}
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "dispatch"), slog.String("command", req.Command), slog.String("user", req.User))

	cp, _ := d.settings.Command(req.Command)
	if !d.engine.CanUseCommand(req.Command, cp, d.settings.Global()) {
		d.replier.Reply(req.User, fmt.Sprintf("@%s %s%s is on cooldown", req.User, d.prefix, req.Command))
		logger.Info("command refused")
		return OutcomeDenied, nil
	}
	if err := action(ctx, req); err != nil {
		d.replier.Reply(req.User, fmt.Sprintf("@%s %s%s failed", req.User, d.prefix, req.Command))
		logger.Warn("command action failed", slog.Any("err", err))
		return OutcomeFailed, fmt.Errorf("command %s: %w", req.Command, err)
	}
	d.engine.RecordCommandUse(req.Command, cp.RecordsCategoryUse)
	logger.Info("command granted")
	return OutcomeGranted, nil
}

// PurchaseEvent gates an event purchase on its category. The gate only
// applies while global event cooldowns are enabled; the use is always recorded
// after a successful action.
func (d *Dispatcher) PurchaseEvent(ctx context.Context, category, user string, action Action) (Outcome, error) {
	category = normalize(category)
	outcome, err := d.purchase(ctx, category, user, action)
	telemetry.ObserveDispatch("event", outcome.String())
	return outcome, err
}

func (d *Dispatcher) purchase(ctx context.Context, category, user string, action Action) (Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "dispatch"), slog.String("category", category), slog.String("user", user))
	gp := d.settings.Global()
	if gp.EventCooldownsEnabled && !d.engine.CanUseEvent(category, gp) {
		d.replier.Reply(user, fmt.Sprintf("@%s %s events are on cooldown", user, category))
		logger.Info("purchase refused")
		return OutcomeDenied, nil
	}
	if action != nil {
		if err := action(ctx, Request{Command: category, User: user}); err != nil {
			logger.Warn("purchase action failed", slog.Any("err", err))
			return OutcomeFailed, fmt.Errorf("purchase %s: %w", category, err)
		}
	}
	d.engine.RecordEventUse(category)
	logger.Info("purchase granted")
	return OutcomeGranted, nil
}

// HandleMessage dispatches a chat message when it starts with the command prefix.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg twitch.PrivateMessage) (Outcome, error) {
	req, ok := d.parseCommand(msg)
	if !ok {
		return OutcomeIgnored, nil
	}
	return d.Dispatch(ctx, req)
}

// HandleRawLine parses one IRC line; anything other than PRIVMSG is ignored.
func (d *Dispatcher) HandleRawLine(ctx context.Context, line string) (Outcome, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return OutcomeIgnored, nil
	}
	switch m := twitch.ParseMessage(line).(type) {
	case *twitch.PrivateMessage:
		return d.HandleMessage(ctx, *m)
	default:
		return OutcomeIgnored, nil
	}
}

func (d *Dispatcher) parseCommand(msg twitch.PrivateMessage) (Request, bool) {
	text := strings.TrimSpace(msg.Message)
	if !strings.HasPrefix(text, d.prefix) {
		return Request{}, false
	}
	fields := strings.Fields(strings.TrimPrefix(text, d.prefix))
	if len(fields) == 0 {
		return Request{}, false
	}
	user := msg.User.Name
	if user == "" {
		user = msg.User.DisplayName
	}
	return Request{
		Command: normalize(fields[0]),
		User:    user,
		Channel: msg.Channel,
		Args:    fields[1:],
	}, true
}
