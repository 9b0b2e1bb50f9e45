// Package discord implements the chat Adapter for Discord using the Gateway WebSocket.
package discord

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/deskhand/internal/chat"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// baseBackoff is the initial backoff duration for rate-limit retries.
	baseBackoff = 2 * time.Second
	// maxBackoff caps the exponential backoff for rate-limit retries.
	maxBackoff = 2 * time.Minute
	// suggestPrefix marks component custom IDs that echo a form answer
	// rather than carrying a triage control.
	suggestPrefix = "suggest:"
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	Open() error
	Close() error
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	AddHandler(handler interface{}) func()
}

// realSession wraps *discordgo.Session to implement the session interface.
type realSession struct {
	s *discordgo.Session
}

func (r *realSession) Open() error  { return r.s.Open() }
func (r *realSession) Close() error { return r.s.Close() }
func (r *realSession) UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return r.s.UserChannelCreate(recipientID, options...)
}
func (r *realSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageSendComplex(channelID, data, options...)
}
func (r *realSession) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	return r.s.InteractionRespond(interaction, resp, options...)
}
func (r *realSession) AddHandler(handler interface{}) func() {
	return r.s.AddHandler(handler)
}

// Adapter implements chat.Adapter for Discord via the Gateway WebSocket.
// Intake happens in direct messages, so Send resolves user IDs to DM
// channels and caches the mapping.
type Adapter struct {
	sess           session
	botToken       string
	mu             sync.Mutex
	botUserID      string
	connected      bool
	closed         bool
	inbound        chan chat.InboundMessage
	dmChannels     map[string]string // user ID → DM channel ID
	removeHandlers []func()
	baseBackoff    time.Duration
	maxBackoff     time.Duration
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	BotToken string // Discord bot token
	// For testing: inject a mock session instead of real Discord API.
	Session session
}

// New creates a Discord Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}

	return &Adapter{
		sess:        opts.Session,
		botToken:    opts.BotToken,
		inbound:     make(chan chat.InboundMessage, 100),
		dmChannels:  make(map[string]string),
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}, nil
}

// Connect establishes the Discord Gateway WebSocket connection.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("discord: adapter already closed")
	}
	if a.connected {
		return nil
	}

	if a.sess == nil {
		dg, err := discordgo.New("Bot " + a.botToken)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuildMessages |
			discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
		a.sess = &realSession{s: dg}
	}

	// Register Ready handler to capture bot user ID on connect/reconnect.
	a.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		a.mu.Lock()
		a.botUserID = r.User.ID
		a.mu.Unlock()
		log.Printf("discord: connected as %s (ID: %s)", r.User.Username, r.User.ID)
	})

	// discordgo reconnects the gateway on its own; log it for observability.
	a.sess.AddHandler(func(_ *discordgo.Session, d *discordgo.Disconnect) {
		log.Printf("discord: gateway disconnected, discordgo will auto-reconnect")
	})
	a.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Resumed) {
		log.Printf("discord: gateway session resumed")
	})

	if err := a.sess.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}

	a.connected = true
	return nil
}

// Listen returns a channel of inbound messages from Discord. Registers
// message and component-interaction handlers on the Gateway session.
// Must be called after Connect.
func (a *Adapter) Listen(ctx context.Context) (<-chan chat.InboundMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil, fmt.Errorf("discord: not connected")
	}

	removeMsg := a.sess.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		a.handleMessage(m)
	})
	removeInteraction := a.sess.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		a.handleInteraction(i)
	})
	a.removeHandlers = append(a.removeHandlers, removeMsg, removeInteraction)

	return a.inbound, nil
}

// Send delivers a message to Discord. Messages addressed to a user ID are
// sent to that user's DM channel. Buttons become message components and
// the photo reference becomes an embed image.
func (a *Adapter) Send(ctx context.Context, msg chat.OutboundMessage) error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return fmt.Errorf("discord: not connected")
	}
	a.mu.Unlock()

	channelID := msg.ChannelID
	if channelID == "" && msg.UserID != "" {
		var err error
		channelID, err = a.dmChannel(ctx, msg.UserID)
		if err != nil {
			return err
		}
	}
	if channelID == "" {
		return fmt.Errorf("discord: no recipient specified")
	}

	data := buildMessageSend(msg)

	err := a.retryOnRateLimit(ctx, func() error {
		_, sendErr := a.sess.ChannelMessageSendComplex(channelID, data)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

// dmChannel resolves a user ID to their DM channel, caching the result.
func (a *Adapter) dmChannel(ctx context.Context, userID string) (string, error) {
	a.mu.Lock()
	if id, ok := a.dmChannels[userID]; ok {
		a.mu.Unlock()
		return id, nil
	}
	a.mu.Unlock()

	var ch *discordgo.Channel
	err := a.retryOnRateLimit(ctx, func() error {
		var apiErr error
		ch, apiErr = a.sess.UserChannelCreate(userID)
		return apiErr
	})
	if err != nil {
		return "", fmt.Errorf("discord: open DM with %s: %w", userID, err)
	}

	a.mu.Lock()
	a.dmChannels[userID] = ch.ID
	a.mu.Unlock()
	return ch.ID, nil
}

// Close gracefully shuts down the adapter connection.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	for _, remove := range a.removeHandlers {
		remove()
	}
	close(a.inbound)
	if a.sess != nil {
		return a.sess.Close()
	}
	return nil
}

// BotUserID returns the bot's Discord user ID (available after Connect).
func (a *Adapter) BotUserID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.botUserID
}

// SetBotUserID sets the bot user ID (used for self-message filtering).
func (a *Adapter) SetBotUserID(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.botUserID = id
}

// handleMessage converts a Discord message event to an InboundMessage.
func (a *Adapter) handleMessage(m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}

	a.mu.Lock()
	botID := a.botUserID
	a.mu.Unlock()

	if m.Author.ID == botID || m.Author.Bot {
		return
	}

	photoRef := ""
	for _, att := range m.Attachments {
		if strings.HasPrefix(att.ContentType, "image/") {
			photoRef = att.URL
			break
		}
	}

	ts, _ := discordgo.SnowflakeTimestamp(m.ID)

	a.inbound <- chat.InboundMessage{
		Platform:  "discord",
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		UserName:  m.Author.Username,
		Text:      m.Content,
		PhotoRef:  photoRef,
		Timestamp: ts,
	}
}

// handleInteraction converts a button press to an InboundMessage. Suggestion
// buttons echo their label as message text; everything else carries the
// custom ID as control data. The interaction is acknowledged with a
// deferred update so Discord does not flag it as failed.
func (a *Adapter) handleInteraction(i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}

	user := i.User
	if user == nil && i.Member != nil {
		user = i.Member.User
	}
	if user == nil {
		return
	}

	if err := a.sess.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		log.Printf("discord: ack interaction: %v", err)
	}

	customID := i.MessageComponentData().CustomID
	msg := chat.InboundMessage{
		Platform:  "discord",
		ChannelID: i.ChannelID,
		UserID:    user.ID,
		UserName:  user.Username,
		Timestamp: time.Now(),
	}
	if label, ok := strings.CutPrefix(customID, suggestPrefix); ok {
		msg.Text = label
	} else {
		msg.ActionData = customID
	}

	a.inbound <- msg
}

// buildMessageSend translates an OutboundMessage into a Discord MessageSend.
func buildMessageSend(msg chat.OutboundMessage) *discordgo.MessageSend {
	data := &discordgo.MessageSend{
		Content: msg.Text,
	}

	if msg.PhotoRef != "" {
		data.Embeds = append(data.Embeds, &discordgo.MessageEmbed{
			Image: &discordgo.MessageEmbedImage{URL: msg.PhotoRef},
		})
	}

	if len(msg.Buttons) > 0 {
		row := discordgo.ActionsRow{}
		for _, b := range msg.Buttons {
			customID := b.Data
			if customID == "" {
				customID = suggestPrefix + b.Label
			}
			row.Components = append(row.Components, discordgo.Button{
				Label:    b.Label,
				Style:    discordgo.SecondaryButton,
				CustomID: customID,
			})
		}
		data.Components = append(data.Components, row)
	}

	return data
}

// retryOnRateLimit runs fn, backing off exponentially on HTTP 429 responses.
// Any other error is returned immediately.
func (a *Adapter) retryOnRateLimit(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}

		restErr, ok := err.(*discordgo.RESTError)
		rateLimited := ok && restErr.Response != nil && restErr.Response.StatusCode == 429
		if !rateLimited || attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * a.baseBackoff
		if wait > a.maxBackoff {
			wait = a.maxBackoff
		}

		log.Printf("discord: rate limited (attempt %d/%d), retrying in %v",
			attempt+1, maxRetries, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}
