// Package eligibility decides whether automation may answer a phone number.
// The decision is advisory: two concurrent checks for the same number can
// both allow a reply.
package eligibility

import (
	"context"
	"fmt"
	"time"

	"whatsapp-assistant/internal/models"
	"whatsapp-assistant/internal/phone"
)

type Reason string

const (
	ReasonEligible    Reason = "eligible"
	ReasonAgentActive Reason = "agent_active"
	ReasonRateLimited Reason = "rate_limited"
)

type Decision struct {
	Allowed bool
	Reason  Reason
}

// Reader is the part of the conversation store the guard consults.
type Reader interface {
	HasAgentReplySince(ctx context.Context, phones []string, since time.Time) (bool, error)
	LatestOutbound(ctx context.Context, phones []string) (*models.Message, error)
	CountInboundSince(ctx context.Context, phones []string, since time.Time) (int64, error)
}

type Options struct {
	AgentWindow time.Duration
	DailyLimit  int
	Location    *time.Location
	CountryCode string
	Now         func() time.Time
}

type Guard struct {
	store Reader
	opts  Options
}

func NewGuard(store Reader, opts Options) *Guard {
	if opts.AgentWindow <= 0 {
		opts.AgentWindow = 5 * time.Minute
	}
	if opts.DailyLimit <= 0 {
		opts.DailyLimit = 20
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Guard{store: store, opts: opts}
}

// Check evaluates the agent-recency and daily-volume rules for number.
func (g *Guard) Check(ctx context.Context, number string) (Decision, error) {
	phones := phone.Variants(number, g.opts.CountryCode)
	if len(phones) == 0 {
		return Decision{}, fmt.Errorf("eligibility: empty phone number")
	}
	now := g.opts.Now()
	windowStart := now.Add(-g.opts.AgentWindow)

	active, err := g.store.HasAgentReplySince(ctx, phones, windowStart)
	if err != nil {
		return Decision{}, fmt.Errorf("eligibility: agent check: %w", err)
	}
	if active {
		return Decision{Reason: ReasonAgentActive}, nil
	}

	// An agent who went quiet longer than the window no longer blocks.
	latest, err := g.store.LatestOutbound(ctx, phones)
	if err != nil {
		return Decision{}, fmt.Errorf("eligibility: latest outbound: %w", err)
	}
	if latest != nil && latest.IsAgentReply() && latest.CreatedAt.After(windowStart) {
		return Decision{Reason: ReasonAgentActive}, nil
	}

	count, err := g.store.CountInboundSince(ctx, phones, startOfDay(now, g.opts.Location))
	if err != nil {
		return Decision{}, fmt.Errorf("eligibility: inbound count: %w", err)
	}
	if count >= int64(g.opts.DailyLimit) {
		return Decision{Reason: ReasonRateLimited}, nil
	}

	return Decision{Allowed: true, Reason: ReasonEligible}, nil
}

// MayAutomate is Check reduced to its boolean outcome.
func (g *Guard) MayAutomate(ctx context.Context, number string) (bool, error) {
	d, err := g.Check(ctx, number)
	return d.Allowed, err
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
