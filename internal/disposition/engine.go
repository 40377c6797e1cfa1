// Package disposition drives every inbound WhatsApp event to a terminal
// disposition: auto-replied, flagged for an agent, or left to a human.
//
// Replies are never sent synchronously. An eligible inbound message gets a
// durable reply job that becomes due after the reply delay; the worker
// re-checks eligibility when the job runs. The sweepers are the backstop for
// anything the job path missed.
package disposition

import (
	"context"
	"errors"
	"time"

	"whatsapp-assistant/internal/assistant"
	"whatsapp-assistant/internal/eligibility"
	"whatsapp-assistant/internal/models"
	"whatsapp-assistant/internal/store"
	"whatsapp-assistant/internal/whatsapp"
)

var ErrMissingSender = errors.New("missing sender address")

const defaultFollowUpMessage = "Hi {{name}}, checking in on your delivery. Has your package arrived yet?"

// Sender is the outbound channel.
type Sender interface {
	SendMessage(ctx context.Context, to, body string) (*whatsapp.SendResult, error)
	SendTemplate(ctx context.Context, to, contentSID string, variables map[string]string) (*whatsapp.SendResult, error)
}

// Guard decides whether automation may answer a number.
type Guard interface {
	Check(ctx context.Context, number string) (eligibility.Decision, error)
}

// Notifier receives store changes for live dashboards. Calls must not block.
type Notifier interface {
	NotifyMessage(m models.Message)
	NotifyStatus(providerMessageID, status string)
	NotifyDisposition(messageID string, d models.Disposition, needsReview bool)
}

type Options struct {
	ReplyDelay      time.Duration
	AgentWindow     time.Duration
	HistoryTurns    int
	GenerateTimeout time.Duration
	SendTimeout     time.Duration
	CountryCode     string
	FollowUpMessage string
	Now             func() time.Time
}

type Engine struct {
	store     *store.Store
	guard     Guard
	generator assistant.Generator
	sender    Sender
	notifier  Notifier
	opts      Options
}

func NewEngine(st *store.Store, guard Guard, generator assistant.Generator, sender Sender, opts Options) *Engine {
	if opts.ReplyDelay < 0 {
		opts.ReplyDelay = 0
	}
	if opts.AgentWindow <= 0 {
		opts.AgentWindow = 5 * time.Minute
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = 5
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = 30 * time.Second
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 15 * time.Second
	}
	if opts.FollowUpMessage == "" {
		opts.FollowUpMessage = defaultFollowUpMessage
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:     st,
		guard:     guard,
		generator: generator,
		sender:    sender,
		notifier:  noopNotifier{},
		opts:      opts,
	}
}

func (e *Engine) SetNotifier(n Notifier) {
	if n == nil {
		n = noopNotifier{}
	}
	e.notifier = n
}

func (e *Engine) now() time.Time {
	return e.opts.Now().UTC()
}

type noopNotifier struct{}

func (noopNotifier) NotifyMessage(models.Message) {}
func (noopNotifier) NotifyStatus(string, string) {}
func (noopNotifier) NotifyDisposition(string, models.Disposition, bool) {}
