// Package assistant produces customer-facing replies from bounded
// conversation context. Every failure is reported as an escalation.
package assistant

import (
	"context"
	"strings"
)

type Role string

const (
	RoleCustomer  Role = "customer"
	RoleAssistant Role = "assistant"
)

// Turn is one prior message in the context window.
type Turn struct {
	Role Role
	Text string
}

type Task string

const (
	// TaskReply answers the current message in the light of history.
	TaskReply Task = "reply"
	// TaskAcknowledge writes a short acknowledgement of a described scenario.
	TaskAcknowledge Task = "acknowledge"
)

type Request struct {
	Task            Task
	History         []Turn
	CurrentMessage  *string
	UnansweredPrior []string
	CustomerName    *string
	// Scenario describes the event to acknowledge for TaskAcknowledge.
	Scenario string
}

// Reply is the generator outcome. Text is empty whenever no usable reply was
// produced, and ShouldEscalate is then always true.
type Reply struct {
	Text           string
	ShouldEscalate bool
	Reason         string
}

func (r Reply) HasText() bool {
	return strings.TrimSpace(r.Text) != ""
}

// Escalate returns a text-less reply asking for a human.
func Escalate(reason string) Reply {
	return Reply{ShouldEscalate: true, Reason: reason}
}

type Generator interface {
	Generate(ctx context.Context, req Request) Reply
}
