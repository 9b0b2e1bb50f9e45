package chat

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/zulandar/deskhand/internal/intake"
	"github.com/zulandar/deskhand/internal/store"
	"github.com/zulandar/deskhand/internal/workflow"
)

// Router classifies inbound chat messages and routes them to the
// appropriate handler: commands, triage control activations, or the
// intake form for plain text.
type Router struct {
	form      *intake.Form
	flow      *workflow.Workflow
	store     *store.Store
	adapter   Adapter
	isAdmin   func(string) bool
	botUserID string // the bot's own user ID (to filter self-messages)
	sendDelay time.Duration
	out       io.Writer
}

// RouterOpts holds parameters for creating a Router.
type RouterOpts struct {
	Form      *intake.Form
	Workflow  *workflow.Workflow
	Store     *store.Store
	Adapter   Adapter
	IsAdmin   func(string) bool // admin predicate; nil means nobody is admin
	BotUserID string            // bot's user ID for self-message filtering
	SendDelay time.Duration     // pause between active-panel sends
	Out       io.Writer         // defaults to os.Stdout
}

// NewRouter creates a Router.
func NewRouter(opts RouterOpts) (*Router, error) {
	if opts.Form == nil {
		return nil, fmt.Errorf("chat: router: form is required")
	}
	if opts.Workflow == nil {
		return nil, fmt.Errorf("chat: router: workflow is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("chat: router: store is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("chat: router: adapter is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	isAdmin := opts.IsAdmin
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	return &Router{
		form:      opts.Form,
		flow:      opts.Workflow,
		store:     opts.Store,
		adapter:   opts.Adapter,
		isAdmin:   isAdmin,
		botUserID: opts.BotUserID,
		sendDelay: opts.SendDelay,
		out:       out,
	}, nil
}

// Handle classifies and routes a single inbound message. Routing paths:
//  1. Bot self-message → ignore
//  2. Control activation (ActionData set) → triage workflow
//  3. Command ("/...") → command handler
//  4. Plain text with an open form → intake form
//  5. Everything else → ignore
func (r *Router) Handle(ctx context.Context, msg InboundMessage) {
	if r.isSelfMessage(msg) {
		return
	}

	text := strings.TrimSpace(msg.Text)
	fmt.Fprintf(r.out, "chat: router: recv [user=%s action=%q] %q\n",
		msg.UserID, msg.ActionData, truncateRunes(text, 80))

	if msg.ActionData != "" {
		fmt.Fprintf(r.out, "chat: router: → control\n")
		r.handleControl(ctx, msg)
		return
	}

	if strings.HasPrefix(text, "/") {
		fmt.Fprintf(r.out, "chat: router: → command %s\n", commandWord(text))
		r.handleCommand(ctx, msg, text)
		return
	}

	sub := submitterOf(msg)
	reply, handled, err := r.form.Handle(ctx, sub, text, msg.PhotoRef)
	if err != nil {
		log.Printf("chat: router: form step for %s: %v", msg.UserID, err)
		r.reply(ctx, msg, "Something went wrong saving your answer. Please try again.")
		return
	}
	if handled {
		r.sendReply(ctx, msg, reply)
		return
	}

	fmt.Fprintf(r.out, "chat: router: → ignore (no open form)\n")
}

// submitterOf builds the intake identity from an inbound message.
func submitterOf(msg InboundMessage) intake.Submitter {
	return intake.Submitter{ID: msg.UserID, Handle: msg.UserName}
}

// commandWord returns the first word of a command text.
func commandWord(text string) string {
	return strings.Fields(text)[0]
}

// handleCommand dispatches a "/" command.
func (r *Router) handleCommand(ctx context.Context, msg InboundMessage, text string) {
	switch commandWord(text) {
	case "/start":
		r.form.Cancel(submitterOf(msg))
		r.reply(ctx, msg, welcomeText(msg.UserName, r.isAdmin(msg.UserID)))
	case "/new":
		reply, err := r.form.Start(submitterOf(msg))
		if err != nil {
			log.Printf("chat: router: start form for %s: %v", msg.UserID, err)
			r.reply(ctx, msg, "Could not start a new request. Please try again.")
			return
		}
		r.sendReply(ctx, msg, reply)
	case "/my":
		r.handleMyRequests(ctx, msg)
	case "/active":
		r.handleActivePanel(ctx, msg)
	case "/cancel":
		if r.form.Cancel(submitterOf(msg)) {
			r.reply(ctx, msg, "Request cancelled.")
		} else {
			r.reply(ctx, msg, "Nothing to cancel.")
		}
	default:
		r.reply(ctx, msg, helpText(r.isAdmin(msg.UserID)))
	}
}

// handleMyRequests sends the submitter their recent requests.
func (r *Router) handleMyRequests(ctx context.Context, msg InboundMessage) {
	reqs, err := r.store.ListBySubmitter(msg.UserID)
	if err != nil {
		log.Printf("chat: router: list for %s: %v", msg.UserID, err)
		r.reply(ctx, msg, "Could not load your requests. Please try again.")
		return
	}
	r.reply(ctx, msg, FormatMyRequests(reqs))
}

// handleActivePanel sends an administrator every open request as a card
// with the controls its status allows. Non-admins are silently ignored.
func (r *Router) handleActivePanel(ctx context.Context, msg InboundMessage) {
	if !r.isAdmin(msg.UserID) {
		fmt.Fprintf(r.out, "chat: router: → ignore /active from non-admin %s\n", msg.UserID)
		return
	}

	reqs, err := r.store.ListActive()
	if err != nil {
		log.Printf("chat: router: list active: %v", err)
		r.reply(ctx, msg, "Could not load active requests. Please try again.")
		return
	}
	if len(reqs) == 0 {
		r.reply(ctx, msg, "No active requests ☕️")
		return
	}

	r.reply(ctx, msg, fmt.Sprintf("Active requests: %d", len(reqs)))
	for _, req := range reqs {
		r.pause(ctx)
		out := OutboundMessage{
			ChannelID: msg.ChannelID,
			UserID:    msg.UserID,
			Text:      FormatActiveCard(req),
			PhotoRef:  req.PhotoRef,
			Buttons:   ControlButtons(workflow.ActionsFor(req.Status), req.ID),
		}
		if err := r.adapter.Send(ctx, out); err != nil {
			log.Printf("chat: router: send active card %d: %v", req.ID, err)
		}
	}
}

// handleControl applies a triage control activation and acks the admin
// with the updated control affordance.
func (r *Router) handleControl(ctx context.Context, msg InboundMessage) {
	if !r.isAdmin(msg.UserID) {
		fmt.Fprintf(r.out, "chat: router: → ignore control from non-admin %s\n", msg.UserID)
		return
	}

	tag, id, err := ParseControl(msg.ActionData)
	if err != nil {
		log.Printf("chat: router: %v", err)
		return
	}
	action, err := workflow.ParseAction(tag)
	if err != nil {
		log.Printf("chat: router: %v", err)
		return
	}

	status, next, err := r.flow.Apply(ctx, action, id)
	if err != nil {
		log.Printf("chat: router: apply %s to %d: %v", action, id, err)
		r.reply(ctx, msg, fmt.Sprintf("Request #%d could not be updated.", id))
		return
	}

	out := OutboundMessage{
		ChannelID: msg.ChannelID,
		UserID:    msg.UserID,
		Text:      fmt.Sprintf("Request #%d → %s", id, StatusLabel(status)),
		Buttons:   ControlButtons(next, id),
	}
	if err := r.adapter.Send(ctx, out); err != nil {
		log.Printf("chat: router: ack control for %d: %v", id, err)
	}
}

// sendReply delivers a form reply, rendering suggestions as buttons that
// echo their label as message text.
func (r *Router) sendReply(ctx context.Context, msg InboundMessage, reply intake.Reply) {
	if reply.Text == "" {
		return
	}
	out := OutboundMessage{
		ChannelID: msg.ChannelID,
		UserID:    msg.UserID,
		Text:      reply.Text,
	}
	for _, s := range reply.Suggestions {
		out.Buttons = append(out.Buttons, Button{Label: s})
	}
	if err := r.adapter.Send(ctx, out); err != nil {
		log.Printf("chat: router: send reply to %s: %v", msg.UserID, err)
	}
}

// reply sends plain text back to the message's origin.
func (r *Router) reply(ctx context.Context, msg InboundMessage, text string) {
	err := r.adapter.Send(ctx, OutboundMessage{
		ChannelID: msg.ChannelID,
		UserID:    msg.UserID,
		Text:      text,
	})
	if err != nil {
		log.Printf("chat: router: send reply to %s: %v", msg.UserID, err)
	}
}

// pause waits the configured send delay, returning early on cancellation.
func (r *Router) pause(ctx context.Context) {
	if r.sendDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(r.sendDelay):
	}
}

// isSelfMessage returns true if the message is from the bot itself.
func (r *Router) isSelfMessage(msg InboundMessage) bool {
	return r.botUserID != "" && msg.UserID == r.botUserID
}

// welcomeText greets a user and points them at the intake commands.
func welcomeText(userName string, isAdmin bool) string {
	greeting := "Hi"
	if userName != "" {
		greeting = fmt.Sprintf("Hi, %s!", userName)
	}
	return greeting + " 👋 I collect facility-maintenance requests.\n\n" + helpText(isAdmin)
}

// helpText lists the available commands.
func helpText(isAdmin bool) string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	b.WriteString("/new — report a problem\n")
	b.WriteString("/my — your recent requests\n")
	b.WriteString("/cancel — abandon the current form")
	if isAdmin {
		b.WriteString("\n/active — open requests (admin)")
	}
	return b.String()
}
