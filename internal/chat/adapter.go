// Package chat bridges Deskhand to chat platforms (Discord, Slack): it
// routes inbound employee messages into the intake form, administrator
// control activations into the triage workflow, and fans notifications out
// to recipients.
package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Adapter is the interface that platform-specific implementations must
// satisfy. Each adapter handles connection management and message
// sending/receiving for a single chat platform.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages from the platform.
	// The channel is closed when the context is cancelled or the adapter
	// is closed. Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan InboundMessage, error)

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// InboundMessage represents an event received from the chat platform:
// a command, a text message, an attachment-bearing message, or an
// interactive-control activation.
type InboundMessage struct {
	Platform   string    // e.g. "slack", "discord"
	ChannelID  string    // platform-specific channel identifier (empty for DMs)
	UserID     string    // platform-specific user identifier
	UserName   string    // human-readable username
	Text       string    // raw message text; "/..." prefix marks a command
	PhotoRef   string    // opaque reference to an attached image, if any
	ActionData string    // control payload (e.g. "claim:7"); empty for plain messages
	Timestamp  time.Time // when the message was sent
}

// OutboundMessage represents a message to be sent to the chat platform.
// When ChannelID is empty the adapter delivers to UserID's direct-message
// conversation.
type OutboundMessage struct {
	ChannelID string   // target channel
	UserID    string   // direct-message recipient when ChannelID is empty
	Text      string   // message text
	PhotoRef  string   // attached image reference to forward, if any
	Buttons   []Button // interactive controls rendered under the message
}

// Button is one labeled interactive control. Activating it echoes Data
// back as InboundMessage.ActionData.
type Button struct {
	Label string
	Data  string
}

// BotUserIDer is an optional interface that adapters can implement to
// expose the bot's own user ID. This enables self-message filtering.
type BotUserIDer interface {
	BotUserID() string
}

// EncodeControl builds a control payload from an action tag and request id.
func EncodeControl(action string, id uint) string {
	return fmt.Sprintf("%s:%d", action, id)
}

// ParseControl splits a control payload back into (action, id).
func ParseControl(data string) (string, uint, error) {
	action, idStr, ok := strings.Cut(data, ":")
	if !ok || action == "" {
		return "", 0, fmt.Errorf("chat: malformed control payload %q", data)
	}
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("chat: control payload %q: bad request id: %w", data, err)
	}
	return action, uint(id), nil
}
