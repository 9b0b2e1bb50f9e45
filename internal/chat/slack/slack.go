// Package slack implements the chat Adapter for Slack using Socket Mode.
package slack

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"github.com/zulandar/deskhand/internal/chat"
)

const (
	// Rate-limited API calls are retried up to maxRetries times.
	maxRetries = 3
	// Reconnection backoff starts at baseBackoff and doubles up to
	// maxBackoff, for at most maxReconnectAttempts attempts.
	baseBackoff          = 2 * time.Second
	maxBackoff           = 2 * time.Minute
	maxReconnectAttempts = 10
	// suggestPrefix marks button values that echo a form answer rather
	// than carrying a triage control.
	suggestPrefix = "suggest:"
)

// slackClient is the slice of the Slack Web API the adapter needs. Tests
// substitute a mock.
type slackClient interface {
	AuthTest() (*slackapi.AuthTestResponse, error)
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
	OpenConversation(params *slackapi.OpenConversationParameters) (*slackapi.Channel, bool, bool, error)
	GetUserInfo(userID string) (*slackapi.User, error)
}

// socketClient is the slice of the Socket Mode client the adapter needs.
type socketClient interface {
	Run() error
	EventsChan() chan socketmode.Event
	Ack(req socketmode.Request, payload ...interface{})
}

// realSocketClient wraps *socketmode.Client to implement socketClient.
type realSocketClient struct {
	client *socketmode.Client
}

func (r *realSocketClient) Run() error                        { return r.client.Run() }
func (r *realSocketClient) EventsChan() chan socketmode.Event { return r.client.Events }
func (r *realSocketClient) Ack(req socketmode.Request, payload ...interface{}) {
	r.client.Ack(req, payload...)
}

// Adapter implements chat.Adapter for Slack Socket Mode. Intake happens in
// direct messages, so Send resolves user IDs to DM conversations and caches
// the mapping.
type Adapter struct {
	client       slackClient
	socket       socketClient
	botUserID    string
	appToken     string
	botToken     string
	mu           sync.Mutex
	connected    bool
	closed       bool
	inbound      chan chat.InboundMessage
	cancelFunc   context.CancelFunc
	dmChannels   map[string]string // user ID → DM conversation ID
	baseBackoff  time.Duration
	maxBackoff   time.Duration
	maxReconnect int
}

// AdapterOpts holds parameters for creating a Slack Adapter.
type AdapterOpts struct {
	AppToken string // xapp-... Slack app-level token for Socket Mode
	BotToken string // xoxb-... Slack bot token
	// For testing: inject mock clients instead of real Slack API.
	Client slackClient
	Socket socketClient
}

// New creates a Slack Adapter. Tokens may be omitted when mock clients are
// injected.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.Socket == nil && opts.AppToken == "" {
		return nil, fmt.Errorf("slack: app token is required for socket mode")
	}

	return &Adapter{
		client:       opts.Client,
		socket:       opts.Socket,
		appToken:     opts.AppToken,
		botToken:     opts.BotToken,
		inbound:      make(chan chat.InboundMessage, 100),
		dmChannels:   make(map[string]string),
		baseBackoff:  baseBackoff,
		maxBackoff:   maxBackoff,
		maxReconnect: maxReconnectAttempts,
	}, nil
}

// Connect establishes the Socket Mode WebSocket connection.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("slack: adapter already closed")
	}
	if a.connected {
		return nil
	}

	if a.client == nil {
		api := slackapi.New(a.botToken, slackapi.OptionAppLevelToken(a.appToken))
		a.client = api
		a.socket = &realSocketClient{client: socketmode.New(api)}
	}

	// The bot's own user ID is needed to drop self-messages.
	auth, err := a.client.AuthTest()
	if err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	a.botUserID = auth.UserID

	a.connected = true
	return nil
}

// Listen returns a channel of inbound messages. Starts the Socket Mode
// event pump in a background goroutine. Must be called after Connect.
func (a *Adapter) Listen(ctx context.Context) (<-chan chat.InboundMessage, error) {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return nil, fmt.Errorf("slack: not connected")
	}
	a.mu.Unlock()

	listenCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancelFunc = cancel
	a.mu.Unlock()

	go a.runWithReconnect(listenCtx)
	go a.pumpEvents(listenCtx)

	return a.inbound, nil
}

// Send delivers a message to Slack. Messages addressed to a user ID go to
// that user's DM conversation. Buttons become Block Kit action elements and
// the photo reference becomes an image block.
func (a *Adapter) Send(ctx context.Context, msg chat.OutboundMessage) error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return fmt.Errorf("slack: not connected")
	}
	a.mu.Unlock()

	channelID := msg.ChannelID
	if channelID == "" && msg.UserID != "" {
		var err error
		channelID, err = a.dmConversation(ctx, msg.UserID)
		if err != nil {
			return err
		}
	}
	if channelID == "" {
		return fmt.Errorf("slack: no recipient specified")
	}

	options := buildMessageOptions(msg)

	err := retryOnRateLimit(ctx, func() error {
		_, _, postErr := a.client.PostMessage(channelID, options...)
		return postErr
	})
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// dmConversation resolves a user ID to their DM conversation, caching it.
func (a *Adapter) dmConversation(ctx context.Context, userID string) (string, error) {
	a.mu.Lock()
	if id, ok := a.dmChannels[userID]; ok {
		a.mu.Unlock()
		return id, nil
	}
	a.mu.Unlock()

	var ch *slackapi.Channel
	err := retryOnRateLimit(ctx, func() error {
		var apiErr error
		ch, _, _, apiErr = a.client.OpenConversation(&slackapi.OpenConversationParameters{
			Users: []string{userID},
		})
		return apiErr
	})
	if err != nil {
		return "", fmt.Errorf("slack: open DM with %s: %w", userID, err)
	}

	a.mu.Lock()
	a.dmChannels[userID] = ch.ID
	a.mu.Unlock()
	return ch.ID, nil
}

// Close shuts down the adapter and closes the inbound channel.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	close(a.inbound)
	return nil
}

// BotUserID returns the bot's Slack user ID (available after Connect).
func (a *Adapter) BotUserID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.botUserID
}

// runWithReconnect keeps the Socket Mode client running. A clean Run return
// means shutdown; an error triggers exponentially backed-off reconnects.
func (a *Adapter) runWithReconnect(ctx context.Context) {
	for attempt := 0; attempt < a.maxReconnect; attempt++ {
		err := a.socket.Run()
		if err == nil || ctx.Err() != nil {
			return
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * a.baseBackoff
		if wait > a.maxBackoff {
			wait = a.maxBackoff
		}
		log.Printf("slack: socket mode lost (attempt %d/%d): %v, retrying in %v",
			attempt+1, a.maxReconnect, err, wait)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
	log.Printf("slack: giving up after %d reconnection attempts", a.maxReconnect)
}

// pumpEvents feeds Socket Mode events into the inbound channel until the
// context ends or the event channel closes.
func (a *Adapter) pumpEvents(ctx context.Context) {
	events := a.socket.EventsChan()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			a.handleSocketEvent(evt)
		}
	}
}

// handleSocketEvent acks and dispatches a single Socket Mode event. Payloads
// must be acked or Slack redelivers them.
func (a *Adapter) handleSocketEvent(evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeEventsAPI:
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		if evt.Request != nil {
			a.socket.Ack(*evt.Request)
		}
		a.handleEventsAPI(apiEvent)

	case socketmode.EventTypeInteractive:
		callback, ok := evt.Data.(slackapi.InteractionCallback)
		if !ok {
			return
		}
		if evt.Request != nil {
			a.socket.Ack(*evt.Request)
		}
		a.handleInteraction(callback)

	case socketmode.EventTypeConnecting:
		log.Printf("slack: connecting to Socket Mode...")

	case socketmode.EventTypeConnected:
		log.Printf("slack: Socket Mode up")

	case socketmode.EventTypeConnectionError:
		log.Printf("slack: connection error: %v", evt.Data)

	case socketmode.EventTypeDisconnect:
		log.Printf("slack: server asked us to reconnect")
	}
}

// handleEventsAPI processes Events API callbacks.
func (a *Adapter) handleEventsAPI(event slackevents.EventsAPIEvent) {
	switch event.Type {
	case slackevents.CallbackEvent:
		innerEvent := event.InnerEvent
		if ev, ok := innerEvent.Data.(*slackevents.MessageEvent); ok {
			a.handleMessage(ev)
		}
	}
}

// handleMessage converts a Slack message event to an InboundMessage.
func (a *Adapter) handleMessage(ev *slackevents.MessageEvent) {
	// Filter bot self-messages and other bots.
	if ev.User == a.botUserID || ev.BotID != "" {
		return
	}
	// Filter message subtypes (edits, deletes, etc.), but keep file shares
	// so photo submissions come through.
	if ev.SubType != "" && ev.SubType != "file_share" {
		return
	}

	// File attachments ride on the normalized Msg payload.
	photoRef := ""
	if ev.Message != nil {
		for _, f := range ev.Message.Files {
			if strings.HasPrefix(f.Mimetype, "image/") {
				photoRef = f.URLPrivate
				break
			}
		}
	}

	a.inbound <- chat.InboundMessage{
		Platform:  "slack",
		ChannelID: ev.Channel,
		UserID:    ev.User,
		UserName:  a.resolveUserName(ev.User),
		Text:      ev.Text,
		PhotoRef:  photoRef,
		Timestamp: parseSlackTimestamp(ev.TimeStamp),
	}
}

// handleInteraction converts a block_actions press to an InboundMessage.
// Suggestion buttons echo their label as message text; everything else
// carries the button value as control data.
func (a *Adapter) handleInteraction(callback slackapi.InteractionCallback) {
	if callback.Type != slackapi.InteractionTypeBlockActions {
		return
	}
	if callback.User.ID == "" || callback.User.ID == a.botUserID {
		return
	}

	for _, action := range callback.ActionCallback.BlockActions {
		msg := chat.InboundMessage{
			Platform:  "slack",
			ChannelID: callback.Channel.ID,
			UserID:    callback.User.ID,
			UserName:  callback.User.Name,
			Timestamp: time.Now(),
		}
		if label, ok := strings.CutPrefix(action.Value, suggestPrefix); ok {
			msg.Text = label
		} else {
			msg.ActionData = action.Value
		}
		a.inbound <- msg
	}
}

// resolveUserName looks up a user's display name. Falls back to user ID.
func (a *Adapter) resolveUserName(userID string) string {
	if userID == "" {
		return ""
	}
	user, err := a.client.GetUserInfo(userID)
	if err != nil {
		return userID
	}
	if user.Profile.DisplayName != "" {
		return user.Profile.DisplayName
	}
	return user.RealName
}

// buildMessageOptions translates an OutboundMessage into Slack MsgOptions.
func buildMessageOptions(msg chat.OutboundMessage) []slackapi.MsgOption {
	var blocks []slackapi.Block

	if msg.Text != "" {
		blocks = append(blocks, slackapi.NewSectionBlock(
			slackapi.NewTextBlockObject(slackapi.PlainTextType, msg.Text, true, false),
			nil, nil,
		))
	}

	if msg.PhotoRef != "" {
		blocks = append(blocks, slackapi.NewImageBlock(msg.PhotoRef, "attached photo", "", nil))
	}

	if len(msg.Buttons) > 0 {
		var elements []slackapi.BlockElement
		for i, b := range msg.Buttons {
			value := b.Data
			if value == "" {
				value = suggestPrefix + b.Label
			}
			elements = append(elements, slackapi.NewButtonBlockElement(
				fmt.Sprintf("deskhand_%d", i),
				value,
				slackapi.NewTextBlockObject(slackapi.PlainTextType, b.Label, true, false),
			))
		}
		blocks = append(blocks, slackapi.NewActionBlock("deskhand_actions", elements...))
	}

	options := []slackapi.MsgOption{slackapi.MsgOptionBlocks(blocks...)}
	// Plain-text fallback for notifications.
	if msg.Text != "" {
		options = append(options, slackapi.MsgOptionText(msg.Text, false))
	}
	return options
}

// retryOnRateLimit runs fn, sleeping out Slack's RetryAfter hint (or an
// exponential fallback) on rate limit errors. Any other error is returned
// immediately.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}

		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) || attempt == maxRetries {
			return err
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}

// parseSlackTimestamp converts a Slack "seconds.fraction" timestamp to a
// time.Time, dropping the fraction.
func parseSlackTimestamp(ts string) time.Time {
	secs, _, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
