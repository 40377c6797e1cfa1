package disposition

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"whatsapp-assistant/internal/eligibility"
	"whatsapp-assistant/internal/phone"
)

type SweepAction string

const (
	SweepUnanswered SweepAction = "unanswered"
	SweepFollowUp   SweepAction = "follow_up"
)

const (
	unansweredMinAge = 5 * time.Minute
	unansweredMaxAge = 24 * time.Hour
	followUpMinAge   = 24 * time.Hour
	followUpMaxAge   = 48 * time.Hour
)

type SweepReport struct {
	Action    SweepAction `json:"action"`
	Scanned   int         `json:"scanned"`
	Replied   int         `json:"replied"`
	Escalated int         `json:"escalated"`
	Skipped   int         `json:"skipped"`
	Failed    int         `json:"failed"`
}

// ParseSweepAction validates an action discriminator.
func ParseSweepAction(s string) (SweepAction, error) {
	switch a := SweepAction(strings.ToLower(strings.TrimSpace(s))); a {
	case SweepUnanswered, SweepFollowUp:
		return a, nil
	}
	return "", fmt.Errorf("unknown sweep action %q", s)
}

// RunSweep runs one pass of the named sweep.
func (e *Engine) RunSweep(ctx context.Context, action SweepAction) (SweepReport, error) {
	switch action {
	case SweepUnanswered:
		return e.SweepUnanswered(ctx), nil
	case SweepFollowUp:
		return e.SweepFollowUps(ctx), nil
	}
	return SweepReport{Action: action}, fmt.Errorf("unknown sweep action %q", action)
}

// SweepUnanswered answers inbound messages between five minutes and a day old
// that still have no disposition and no reply of any kind. The outbound
// check is the only de-duplication, so overlapping runs may double-send.
func (e *Engine) SweepUnanswered(ctx context.Context) SweepReport {
	report := SweepReport{Action: SweepUnanswered}
	now := e.now()

	candidates, err := e.store.SweepCandidates(ctx, now.Add(-unansweredMaxAge), now.Add(-unansweredMinAge))
	if err != nil {
		log.Printf("Error loading unanswered sweep candidates: %v", err)
		report.Failed++
		return report
	}

	for i := range candidates {
		if ctx.Err() != nil {
			break
		}
		msg := &candidates[i]
		report.Scanned++
		phones := phone.Variants(msg.PhoneNumber, e.opts.CountryCode)

		answered, err := e.store.HasOutboundAfter(ctx, phones, msg.CreatedAt)
		if err != nil {
			log.Printf("Sweep: error checking outbound replies for %s: %v", msg.ID, err)
			report.Failed++
			continue
		}
		if answered {
			report.Skipped++
			continue
		}

		agent, err := e.store.HasAgentReplyBetween(ctx, phones, msg.CreatedAt, msg.CreatedAt.Add(e.opts.AgentWindow))
		if err != nil {
			log.Printf("Sweep: error checking agent replies for %s: %v", msg.ID, err)
			report.Failed++
			continue
		}
		if agent {
			report.Skipped++
			continue
		}

		if _, err := e.store.SupersedeReplyJobs(ctx, msg.ID); err != nil {
			log.Printf("Sweep: error superseding reply jobs for %s: %v", msg.ID, err)
		}

		switch e.respond(ctx, msg) {
		case OutcomeSent:
			report.Replied++
		case OutcomeSentForReview:
			report.Replied++
			report.Escalated++
		case OutcomeEscalated, OutcomeFlagged:
			report.Escalated++
		case OutcomeFailed:
			report.Failed++
		default:
			report.Skipped++
		}
	}

	log.Printf("Unanswered sweep finished: scanned=%d replied=%d escalated=%d skipped=%d failed=%d",
		report.Scanned, report.Replied, report.Escalated, report.Skipped, report.Failed)
	return report
}

// SweepFollowUps checks in once with customers who reported a missing
// delivery one to two days ago and have not confirmed it since.
func (e *Engine) SweepFollowUps(ctx context.Context) SweepReport {
	report := SweepReport{Action: SweepFollowUp}
	now := e.now()

	customers, err := e.store.FollowUpCandidates(ctx, now.Add(-followUpMaxAge), now.Add(-followUpMinAge))
	if err != nil {
		log.Printf("Error loading follow-up candidates: %v", err)
		report.Failed++
		return report
	}

	for i := range customers {
		if ctx.Err() != nil {
			break
		}
		c := &customers[i]
		report.Scanned++

		to := phone.International(c.ContactPhone(), e.opts.CountryCode)
		if to == "" {
			report.Skipped++
			continue
		}

		decision, err := e.guard.Check(ctx, to)
		if err != nil {
			log.Printf("Follow-up: error checking eligibility for customer %s: %v", c.ID, err)
			report.Failed++
			continue
		}
		if decision.Reason == eligibility.ReasonAgentActive {
			report.Skipped++
			continue
		}

		customerID := c.ID
		if _, err := e.sendAndRecord(ctx, to, e.followUpBody(c.Name), &customerID); err != nil {
			log.Printf("Follow-up to customer %s not sent: %v", c.ID, err)
			report.Failed++
			continue
		}
		if err := e.store.MarkFollowUpSent(ctx, c.ID, now); err != nil {
			log.Printf("Error marking follow-up for customer %s: %v", c.ID, err)
		}
		report.Replied++
	}

	log.Printf("Follow-up sweep finished: scanned=%d sent=%d skipped=%d failed=%d",
		report.Scanned, report.Replied, report.Skipped, report.Failed)
	return report
}

func (e *Engine) followUpBody(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "there"
	}
	return strings.ReplaceAll(e.opts.FollowUpMessage, "{{name}}", name)
}
