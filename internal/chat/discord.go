package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// Discord adapts a live discordgo session to the Client interface. Transport,
// auth and rate-limit handling stay inside discordgo.
type Discord struct {
	session *discordgo.Session
}

func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

func (d *Discord) ResolveChannel(ctx context.Context, channelID string) (Channel, error) {
	ch, err := d.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return Channel{}, fmt.Errorf("resolve channel %s: %w", channelID, ErrNotFound)
		}
		return Channel{}, fmt.Errorf("resolve channel %s: %w", channelID, err)
	}
	return Channel{
		ID:       ch.ID,
		Name:     ch.Name,
		Postable: isPostable(ch.Type),
	}, nil
}

func (d *Discord) GetMessage(ctx context.Context, channelID, messageID string) (Message, error) {
	msg, err := d.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return Message{}, fmt.Errorf("get message %s/%s: %w", channelID, messageID, ErrNotFound)
		}
		return Message{}, fmt.Errorf("get message %s/%s: %w", channelID, messageID, err)
	}
	return Message{ID: msg.ID, ChannelID: msg.ChannelID}, nil
}

func (d *Discord) CreateMessage(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) (string, error) {
	msg, err := d.session.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("create message in %s: %w", channelID, ErrNotFound)
		}
		return "", fmt.Errorf("create message in %s: %w", channelID, err)
	}
	return msg.ID, nil
}

func (d *Discord) EditMessage(ctx context.Context, channelID, messageID string, embed *discordgo.MessageEmbed) error {
	_, err := d.session.ChannelMessageEditEmbed(channelID, messageID, embed, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("edit message %s/%s: %w", channelID, messageID, ErrNotFound)
		}
		return fmt.Errorf("edit message %s/%s: %w", channelID, messageID, err)
	}
	return nil
}

func isPostable(t discordgo.ChannelType) bool {
	switch t {
	case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews:
		return true
	default:
		return false
	}
}

func isNotFound(err error) bool {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return false
	}
	if rest.Message != nil {
		switch rest.Message.Code {
		case discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownMessage:
			return true
		}
	}
	return rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound
}
