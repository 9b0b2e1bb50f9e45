package chat

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/zulandar/deskhand/internal/models"
	"github.com/zulandar/deskhand/internal/workflow"
)

// DefaultSendDelay is the pause between consecutive fan-out deliveries, a
// courtesy to platform rate limits rather than a correctness requirement.
const DefaultSendDelay = 300 * time.Millisecond

// Notifier fans request events out to recipients: creation cards with
// triage controls to every administrator, plain-text status notices to the
// submitter. Every delivery is fire-and-forget; a failure to reach one
// recipient is logged and does not abort the rest.
type Notifier struct {
	adapter   Adapter
	admins    []string
	channel   string
	sendDelay time.Duration
}

// NotifierOpts holds parameters for creating a Notifier.
type NotifierOpts struct {
	Adapter   Adapter
	Admins    []string      // administrator user IDs
	Channel   string        // optional shared channel for new-request cards
	SendDelay time.Duration // defaults to DefaultSendDelay; negative disables
}

// NewNotifier creates a Notifier.
func NewNotifier(opts NotifierOpts) (*Notifier, error) {
	if opts.Adapter == nil {
		return nil, fmt.Errorf("chat: notifier: adapter is required")
	}
	if len(opts.Admins) == 0 {
		return nil, fmt.Errorf("chat: notifier: at least one admin is required")
	}
	delay := opts.SendDelay
	if delay == 0 {
		delay = DefaultSendDelay
	}
	if delay < 0 {
		delay = 0
	}
	return &Notifier{
		adapter:   opts.Adapter,
		admins:    opts.Admins,
		channel:   opts.Channel,
		sendDelay: delay,
	}, nil
}

// RequestCreated delivers the new-request card, with attached photo and
// the full triage control set, to every administrator and, when a shared
// channel is configured, to that channel as well.
func (n *Notifier) RequestCreated(ctx context.Context, req models.Request) {
	msg := OutboundMessage{
		Text:     FormatRequestCard(req),
		PhotoRef: req.PhotoRef,
		Buttons:  ControlButtons(workflow.ActionsFor(models.StatusNew), req.ID),
	}
	if n.channel != "" {
		msg.ChannelID = n.channel
		if err := n.adapter.Send(ctx, msg); err != nil {
			log.Printf("chat: announce request %d in %s: %v", req.ID, n.channel, err)
		}
		msg.ChannelID = ""
		n.pause(ctx)
	}
	for i, admin := range n.admins {
		if i > 0 {
			n.pause(ctx)
		}
		msg.UserID = admin
		if err := n.adapter.Send(ctx, msg); err != nil {
			log.Printf("chat: notify admin %s of request %d: %v", admin, req.ID, err)
		}
	}
}

// StatusChanged delivers a status notice to the original submitter.
func (n *Notifier) StatusChanged(ctx context.Context, submitterID string, id uint, description string, status models.Status) {
	msg := OutboundMessage{
		UserID: submitterID,
		Text:   FormatStatusNotice(id, description, status),
	}
	if err := n.adapter.Send(ctx, msg); err != nil {
		log.Printf("chat: notify submitter %s of request %d: %v", submitterID, id, err)
	}
}

// pause waits the configured send delay, returning early on cancellation.
func (n *Notifier) pause(ctx context.Context) {
	if n.sendDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(n.sendDelay):
	}
}
