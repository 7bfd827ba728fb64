package chat

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
)

// ErrNotFound signals that the requested channel or message no longer exists
// on the platform. The reconciliation loop reacts to it; every other error is
// treated as transient.
var ErrNotFound = errors.New("chat: not found")

// Channel is a resolved target channel. Postable is false for channel kinds
// that cannot hold bot status messages (voice, categories, threads the bot
// cannot write to).
type Channel struct {
	ID       string
	Name     string
	Postable bool
}

// Message identifies a message previously posted by the bot.
type Message struct {
	ID        string
	ChannelID string
}

// Client is the chat-platform surface the reconciliation loop depends on.
// Message identifiers are opaque. Deleted messages surface as ErrNotFound
// from GetMessage and EditMessage.
type Client interface {
	ResolveChannel(ctx context.Context, channelID string) (Channel, error)
	GetMessage(ctx context.Context, channelID, messageID string) (Message, error)
	CreateMessage(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) (string, error)
	EditMessage(ctx context.Context, channelID, messageID string, embed *discordgo.MessageEmbed) error
}
